// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"emg-service/internal/config"
	"emg-service/internal/handler"
	"emg-service/internal/middleware"
	"emg-service/internal/utils"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health     *handler.HealthHandler
	Connection *handler.ConnectionHandler
	UI         *handler.UIHandler
	Device     *handler.DeviceHandler
	Stream     *handler.WebSocketHandler
}

// Router holds all dependencies for routing
type Router struct {
	config   *config.Config
	logger   *zap.Logger
	handlers *Handlers
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, handlers *Handlers) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		handlers: handlers,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(r.logger))

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger, "/live", "/ready"))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	r.addHealthRoutes(router)

	apiV1 := router.Group("/api/v1")
	r.addConnectionRoutes(apiV1)
	r.addUIRoutes(apiV1)
	r.addDeviceRoutes(apiV1)

	r.addStreamRoutes(router, apiV1)

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine) {
	h := r.handlers.Health
	health := router.Group("")
	{
		health.GET("/health", h.HealthCheck)
		health.GET("/ready", h.ReadinessCheck)
		health.GET("/live", h.LivenessCheck)
	}
}

// addConnectionRoutes sets up connection intent routes
func (r *Router) addConnectionRoutes(api *gin.RouterGroup) {
	h := r.handlers.Connection
	connection := api.Group("/connection")
	{
		connection.GET("", h.GetConnection)
		connection.POST("/wifi", h.ConnectWifi)
		connection.POST("/bluetooth", h.ConnectBluetooth)
		connection.POST("/serial", h.ConnectSerial)
		connection.POST("/disconnect", h.Disconnect)
	}
}

// addUIRoutes sets up presentation state and training routes
func (r *Router) addUIRoutes(api *gin.RouterGroup) {
	h := r.handlers.UI

	api.GET("/ui", h.GetSnapshot)
	api.GET("/samples", h.GetSamples)
	api.DELETE("/status", h.ClearStatus)

	training := api.Group("/training")
	{
		training.POST("/start", h.StartTraining)
		training.POST("/stop", h.StopTraining)
	}
}

// addDeviceRoutes sets up device discovery routes
func (r *Router) addDeviceRoutes(api *gin.RouterGroup) {
	h := r.handlers.Device
	devices := api.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.GET("/bluetooth", h.ListBluetoothDevices)
		devices.GET("/serial", h.ListSerialPorts)
		devices.GET("/scanners", h.ListScanners)
		devices.GET("/scan/:type", h.ScanByType)
	}
}

// addStreamRoutes sets up WebSocket routes
func (r *Router) addStreamRoutes(router *gin.Engine, api *gin.RouterGroup) {
	h := r.handlers.Stream

	ws := router.Group("/ws")
	{
		ws.GET("/stream", h.HandleStream)
	}

	api.GET("/stream/clients", h.GetConnectionStats)
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
