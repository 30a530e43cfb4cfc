// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	_ "emg-service/docs"
	"emg-service/internal/config"
	"emg-service/internal/discovery"
	btscan "emg-service/internal/discovery/bluetooth"
	serialscan "emg-service/internal/discovery/serial"
	"emg-service/internal/events"
	"emg-service/internal/handler"
	"emg-service/internal/protocol"
	"emg-service/internal/routes"
	"emg-service/internal/service"
	"emg-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	eventBus *events.EventBus
	uiState  *service.UIState
	manager  *service.ConnectionManager

	bluetoothScanner *btscan.Scanner
	serialScanner    *serialscan.Scanner
	scanners         *discovery.ScannerManager

	clientHub     *handler.ClientHub
	healthHandler *handler.HealthHandler
}

// @title EMG Glove Service API
// @version 1.0.0
// @description Connects to an EMG glove over WiFi, Bluetooth or serial and streams its samples

// @host localhost:8084
// @BasePath /
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "emg-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	app.initializeEventBus()
	app.initializeDiscovery()
	app.initializeServices()

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeEventBus starts the presentation event bus
func (app *Application) initializeEventBus() {
	app.eventBus = events.NewEventBus(app.config.Stream.SendBuffer*2, app.logger)
	go app.eventBus.Start()

	app.logger.Info("Event bus started")
}

// initializeDiscovery registers the device scanners
func (app *Application) initializeDiscovery() {
	app.bluetoothScanner = btscan.NewScanner(app.config.Device.Bluetooth.Adapter, app.logger)
	app.serialScanner = serialscan.NewScanner(
		app.config.Device.Serial.BaudRate,
		app.config.Device.Serial.USBOnly,
		app.logger,
	)

	app.scanners = discovery.NewScannerManager(app.logger)
	app.scanners.RegisterScanner(app.bluetoothScanner)
	app.scanners.RegisterScanner(app.serialScanner)

	app.logger.Info("Discovery initialized",
		zap.Strings("available_scanners", app.scanners.GetAvailableScanners()),
	)
}

// initializeServices creates the presentation state and the connection
// manager feeding it
func (app *Application) initializeServices() {
	app.uiState = service.NewUIState(app.config.Device.SampleWindow, app.eventBus, app.logger)

	factory := protocol.NewFactory(&app.config.Device, app.logger)
	app.manager = service.NewConnectionManager(factory, app.bluetoothScanner, app.uiState, app.logger)

	// Fill the device picker once; Bluetooth may be missing on this host
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Device.Bluetooth.ConnectTimeout)
	defer cancel()
	if _, err := app.uiState.RefreshBluetoothDevices(ctx, app.bluetoothScanner); err != nil {
		app.logger.Warn("Initial bonded device refresh failed", zap.Error(err))
	}

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	app.clientHub = handler.NewClientHub()
	app.healthHandler = handler.NewHealthHandler(app.config, app.manager, app.eventBus, app.clientHub, app.logger)

	handlers := &routes.Handlers{
		Health:     app.healthHandler,
		Connection: handler.NewConnectionHandler(app.manager, app.logger),
		UI:         handler.NewUIHandler(app.uiState, app.manager, app.logger),
		Device:     handler.NewDeviceHandler(app.uiState, app.bluetoothScanner, app.serialScanner, app.scanners, app.logger),
		Stream: handler.NewWebSocketHandler(
			app.config,
			app.clientHub,
			app.eventBus,
			app.manager,
			app.uiState,
			app.bluetoothScanner,
			app.logger,
		),
	}

	router := routes.NewRouter(app.config, app.logger, handlers).SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)

	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "emg-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	app.healthHandler.MarkDraining()

	// Releases the transport before the stream goes away
	if err := app.manager.Close(); err != nil {
		app.logger.Error("Connection manager close error", zap.Error(err))
	}

	app.clientHub.CloseAll()
	app.eventBus.Stop()
	<-app.eventBus.Finished()

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()

	return nil
}
