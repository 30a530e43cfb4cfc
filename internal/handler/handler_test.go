// internal/handler/handler_test.go
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"emg-service/internal/config"
	"emg-service/internal/discovery"
	"emg-service/internal/events"
	"emg-service/internal/model"
	"emg-service/internal/protocol"
	"emg-service/internal/protocol/prototest"
	"emg-service/internal/service"
	"emg-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFactory struct {
	mu         sync.Mutex
	transports []*prototest.FakeTransport
	methods    []model.ConnectionMethod
}

func (f *stubFactory) push(transports ...*prototest.FakeTransport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transports = append(f.transports, transports...)
}

func (f *stubFactory) Create(method model.ConnectionMethod, device *model.BluetoothDevice) (protocol.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.methods = append(f.methods, method)
	if len(f.transports) == 0 {
		return nil, errors.New("no transport queued")
	}
	transport := f.transports[0]
	f.transports = f.transports[1:]
	return transport, nil
}

func (f *stubFactory) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.methods)
}

type stubBonded struct {
	devices []model.BluetoothDevice
	err     error
}

func (s *stubBonded) BondedDevices(ctx context.Context) ([]model.BluetoothDevice, error) {
	return s.devices, s.err
}

type stubPorts struct {
	ports []model.SerialPortInfo
	err   error
}

func (s *stubPorts) Ports(ctx context.Context) ([]model.SerialPortInfo, error) {
	return s.ports, s.err
}

type stubScanner struct {
	scannerType string
	devices     []*discovery.DiscoveredDevice
}

func (s *stubScanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	return s.devices, nil
}

func (s *stubScanner) GetScannerType() string { return s.scannerType }

func (s *stubScanner) IsAvailable() bool { return true }

type testEnv struct {
	router  *gin.Engine
	config  *config.Config
	manager *service.ConnectionManager
	ui      *service.UIState
	bus     *events.EventBus
	hub     *ClientHub
	health  *HealthHandler
	factory *stubFactory
	bonded  *stubBonded
	ports   *stubPorts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	cfg := config.Default()

	bus := events.NewEventBus(1024, logger)
	go bus.Start()

	env := &testEnv{
		config:  cfg,
		bus:     bus,
		hub:     NewClientHub(),
		factory: &stubFactory{},
		bonded:  &stubBonded{},
		ports:   &stubPorts{},
	}
	env.ui = service.NewUIState(cfg.Device.SampleWindow, bus, logger)
	env.manager = service.NewConnectionManager(env.factory, env.bonded, env.ui, logger)

	t.Cleanup(func() {
		env.manager.Close()
		env.hub.CloseAll()
		bus.Stop()
	})

	scanners := discovery.NewScannerManager(logger)
	scanners.RegisterScanner(&stubScanner{
		scannerType: discovery.ScannerTypeSerial,
		devices: []*discovery.DiscoveredDevice{{
			ConnectionType: model.ConnectionTypeSerial,
			Name:           "/dev/ttyUSB0",
			Method:         model.SerialMethod("/dev/ttyUSB0", 115200),
		}},
	})

	env.health = NewHealthHandler(cfg, env.manager, bus, env.hub, logger)
	connection := NewConnectionHandler(env.manager, logger)
	ui := NewUIHandler(env.ui, env.manager, logger)
	device := NewDeviceHandler(env.ui, env.bonded, env.ports, scanners, logger)
	stream := NewWebSocketHandler(cfg, env.hub, bus, env.manager, env.ui, env.bonded, logger)

	router := gin.New()
	router.GET("/health", env.health.HealthCheck)
	router.GET("/ready", env.health.ReadinessCheck)
	router.GET("/live", env.health.LivenessCheck)

	api := router.Group("/api/v1")
	api.GET("/connection", connection.GetConnection)
	api.POST("/connection/wifi", connection.ConnectWifi)
	api.POST("/connection/bluetooth", connection.ConnectBluetooth)
	api.POST("/connection/serial", connection.ConnectSerial)
	api.POST("/connection/disconnect", connection.Disconnect)
	api.GET("/ui", ui.GetSnapshot)
	api.GET("/samples", ui.GetSamples)
	api.DELETE("/status", ui.ClearStatus)
	api.POST("/training/start", ui.StartTraining)
	api.POST("/training/stop", ui.StopTraining)
	api.GET("/devices", device.ListDevices)
	api.GET("/devices/bluetooth", device.ListBluetoothDevices)
	api.GET("/devices/serial", device.ListSerialPorts)
	api.GET("/devices/scanners", device.ListScanners)
	api.GET("/devices/scan/:type", device.ScanByType)
	api.GET("/stream/clients", stream.GetConnectionStats)
	router.GET("/ws/stream", stream.HandleStream)

	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var response utils.APIResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &response)
	}
	return w, response
}

// decodeData re-decodes the data field of a response into out
func decodeData(t *testing.T, response utils.APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(response.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (e *testEnv) connectWifi(t *testing.T) *prototest.FakeTransport {
	t.Helper()
	transport := prototest.NewFakeTransport("192.168.4.1:8080")
	e.factory.push(transport)

	w, _ := e.do(t, http.MethodPost, "/api/v1/connection/wifi", `{"host":"192.168.4.1","port":8080}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return transport
}

func TestGetConnection_Idle(t *testing.T) {
	env := newTestEnv(t)

	w, response := env.do(t, http.MethodGet, "/api/v1/connection", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response.Success)

	var data ConnectionResponse
	decodeData(t, response, &data)
	assert.Equal(t, model.ConnectionStatusIdle, data.State.Status)
	assert.Nil(t, data.Session)
}

func TestConnectWifi_Success(t *testing.T) {
	env := newTestEnv(t)

	env.connectWifi(t)

	w, response := env.do(t, http.MethodGet, "/api/v1/connection", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data ConnectionResponse
	decodeData(t, response, &data)
	assert.Equal(t, model.ConnectionStatusConnected, data.State.Status)
	require.NotNil(t, data.State.Method)
	assert.Equal(t, "192.168.4.1", data.State.Method.Host)
	assert.Equal(t, 8080, data.State.Method.Port)
	assert.NotNil(t, data.Session)
}

func TestConnectWifi_PortAsString(t *testing.T) {
	env := newTestEnv(t)
	env.factory.push(prototest.NewFakeTransport("192.168.4.1:8080"))

	w, _ := env.do(t, http.MethodPost, "/api/v1/connection/wifi", `{"host":"192.168.4.1","port":"8080"}`)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.manager.State().IsConnected())
}

func TestConnectWifi_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"non numeric", `{"host":"192.168.4.1","port":"abc"}`},
		{"out of range", `{"host":"192.168.4.1","port":70000}`},
		{"zero", `{"host":"192.168.4.1","port":0}`},
		{"missing host", `{"port":8080}`},
		{"malformed body", `{"host":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w, response := env.do(t, http.MethodPost, "/api/v1/connection/wifi", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, response.Success)
			assert.Equal(t, 0, env.factory.createCalls())
			assert.True(t, env.manager.State().IsIdle())
		})
	}
}

func TestConnectWifi_ConnectErrors(t *testing.T) {
	tests := []struct {
		name       string
		kind       protocol.ConnectErrorKind
		wantStatus int
		wantCode   string
	}{
		{"refused", protocol.ConnectErrorRefused, http.StatusBadGateway, "DEVICE_UNREACHABLE"},
		{"timeout", protocol.ConnectErrorTimeout, http.StatusGatewayTimeout, "CONNECT_TIMEOUT"},
		{"unsupported", protocol.ConnectErrorUnsupported, http.StatusServiceUnavailable, "UNSUPPORTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			transport := prototest.NewFakeTransport("192.168.4.1:8080")
			connErr := protocol.NewConnectError(tt.kind, transport.Target(), errors.New("dial tcp: raw detail"))
			transport.ConnectErr = connErr
			env.factory.push(transport)

			w, response := env.do(t, http.MethodPost, "/api/v1/connection/wifi", `{"host":"192.168.4.1","port":8080}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, response.Error)
			assert.Equal(t, tt.wantCode, response.Error.Code)
			assert.Equal(t, connErr.UserMessage(), response.Error.Message)
			assert.NotContains(t, w.Body.String(), "raw detail")

			state := env.manager.State()
			assert.True(t, state.IsError())
			assert.Equal(t, connErr.UserMessage(), state.Message)
		})
	}
}

func TestConnectBluetooth(t *testing.T) {
	t.Run("not bonded", func(t *testing.T) {
		env := newTestEnv(t)
		env.bonded.devices = []model.BluetoothDevice{{Name: "Other", Address: "11:22:33:44:55:66", Paired: true}}

		w, response := env.do(t, http.MethodPost, "/api/v1/connection/bluetooth", `{"address":"AA:BB:CC:DD:EE:FF"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, response.Error)
		assert.Equal(t, "DEVICE_NOT_FOUND", response.Error.Code)
		assert.Equal(t, model.ErrorState(service.MessageDeviceNotFound), env.manager.State())
		assert.Equal(t, 0, env.factory.createCalls())
	})

	t.Run("bluetooth unavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.bonded.err = errors.New("org.freedesktop.DBus.Error.ServiceUnknown")

		w, response := env.do(t, http.MethodPost, "/api/v1/connection/bluetooth", `{"address":"AA:BB:CC:DD:EE:FF"}`)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.NotNil(t, response.Error)
		assert.Equal(t, "BLUETOOTH_UNAVAILABLE", response.Error.Code)
	})

	t.Run("missing address", func(t *testing.T) {
		env := newTestEnv(t)

		w, _ := env.do(t, http.MethodPost, "/api/v1/connection/bluetooth", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.True(t, env.manager.State().IsIdle())
	})

	t.Run("bonded glove", func(t *testing.T) {
		env := newTestEnv(t)
		env.bonded.devices = []model.BluetoothDevice{{Name: "EMG Glove", Address: "AA:BB:CC:DD:EE:FF", Paired: true}}
		transport := prototest.NewFakeTransport("AA:BB:CC:DD:EE:FF")
		transport.Type = model.ConnectionTypeBluetooth
		env.factory.push(transport)

		w, _ := env.do(t, http.MethodPost, "/api/v1/connection/bluetooth", `{"address":"aa:bb:cc:dd:ee:ff"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		state := env.manager.State()
		require.True(t, state.IsConnected())
		assert.Equal(t, "EMG Glove", state.Method.DeviceName)
	})
}

func TestConnectSerial_InvalidBaud(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodPost, "/api/v1/connection/serial", `{"port":"/dev/ttyUSB0","baud_rate":-1}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, env.manager.State().IsIdle())
}

func TestDisconnect(t *testing.T) {
	t.Run("from idle", func(t *testing.T) {
		env := newTestEnv(t)

		w, response := env.do(t, http.MethodPost, "/api/v1/connection/disconnect", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, response.Success)
		assert.True(t, env.manager.State().IsIdle())
		assert.Empty(t, env.ui.StatusMessage())
	})

	t.Run("from connected", func(t *testing.T) {
		env := newTestEnv(t)
		transport := env.connectWifi(t)

		w, _ := env.do(t, http.MethodPost, "/api/v1/connection/disconnect", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.manager.State().IsIdle())
		assert.True(t, transport.Closed())
		assert.Equal(t, service.MessageConnectionFinished, env.ui.StatusMessage())
	})
}

func TestTraining(t *testing.T) {
	env := newTestEnv(t)

	w, response := env.do(t, http.MethodPost, "/api/v1/training/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "NOT_CONNECTED", response.Error.Code)
	assert.False(t, env.ui.TrainingActive())

	env.connectWifi(t)

	w, _ = env.do(t, http.MethodPost, "/api/v1/training/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.ui.TrainingActive())

	w, _ = env.do(t, http.MethodPost, "/api/v1/training/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.ui.TrainingActive())

	// Disconnecting interrupts a running training session
	env.do(t, http.MethodPost, "/api/v1/training/start", nil)
	require.True(t, env.ui.TrainingActive())
	env.do(t, http.MethodPost, "/api/v1/connection/disconnect", nil)
	assert.False(t, env.ui.TrainingActive())
}

func TestSamplesAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	transport := env.connectWifi(t)

	transport.Send("1.5", "noise", "2", " 3.25 ")
	require.Eventually(t, func() bool {
		return len(env.ui.Samples()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	w, response := env.do(t, http.MethodGet, "/api/v1/samples", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var samples SamplesResponse
	decodeData(t, response, &samples)
	assert.Equal(t, []model.Sample{1.5, 2, 3.25}, samples.Samples)
	assert.Equal(t, 3, samples.Count)

	w, response = env.do(t, http.MethodGet, "/api/v1/ui", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot model.UISnapshot
	decodeData(t, response, &snapshot)
	assert.Equal(t, model.ConnectionStatusConnected, snapshot.ConnectionState.Status)
	require.NotNil(t, snapshot.ConnectionMethod)
	assert.Equal(t, model.ConnectionTypeWifi, snapshot.ConnectionMethod.Type)
	assert.Equal(t, []model.Sample{1.5, 2, 3.25}, snapshot.Samples)
	require.NotNil(t, snapshot.Session)
	assert.Equal(t, int64(1), snapshot.Session.LinesDiscarded)
}

func TestEndOfStream_ReportedThroughSnapshot(t *testing.T) {
	env := newTestEnv(t)
	transport := env.connectWifi(t)

	transport.EndStream()
	require.Eventually(t, func() bool {
		return env.manager.State().IsError()
	}, 2*time.Second, 10*time.Millisecond)

	_, response := env.do(t, http.MethodGet, "/api/v1/ui", nil)

	var snapshot model.UISnapshot
	decodeData(t, response, &snapshot)
	assert.Equal(t, model.ErrorState(service.MessageClosedByDevice), snapshot.ConnectionState)
	assert.Nil(t, snapshot.ConnectionMethod)
}

func TestClearStatus(t *testing.T) {
	env := newTestEnv(t)
	env.connectWifi(t)
	require.NotEmpty(t, env.ui.StatusMessage())

	w, _ := env.do(t, http.MethodDelete, "/api/v1/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.ui.StatusMessage())
}

func TestDeviceRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.bonded.devices = []model.BluetoothDevice{
		{Name: "zeta", Address: "00:00:00:00:00:02", Paired: true},
		{Name: "Alpha", Address: "00:00:00:00:00:01", Paired: true},
	}
	env.ports.ports = []model.SerialPortInfo{{Name: "/dev/ttyUSB0", IsUSB: true}}

	w, response := env.do(t, http.MethodGet, "/api/v1/devices/bluetooth", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var devices []model.BluetoothDevice
	decodeData(t, response, &devices)
	require.Len(t, devices, 2)
	assert.Equal(t, "Alpha", devices[0].Name)
	assert.Equal(t, "zeta", devices[1].Name)
	assert.Len(t, env.ui.Snapshot().BluetoothDevices, 2)

	w, response = env.do(t, http.MethodGet, "/api/v1/devices/serial", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ports []model.SerialPortInfo
	decodeData(t, response, &ports)
	assert.Equal(t, env.ports.ports, ports)

	w, response = env.do(t, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list DeviceListResponse
	decodeData(t, response, &list)
	assert.Equal(t, 1, list.Count)

	w, _ = env.do(t, http.MethodGet, "/api/v1/devices/scan/serial", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/devices/scan/usb", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.bonded.err = errors.New("bluez gone")
	w, _ = env.do(t, http.MethodGet, "/api/v1/devices/bluetooth", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthRoutes(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Checks, "connection")
	assert.Contains(t, health.Checks, "event_bus")

	w, _ = env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.health.MarkDraining()

	w, _ = env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w, _ = env.do(t, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassifyIntentError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid target", service.ErrInvalidTarget, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"superseded", service.ErrSuperseded, http.StatusConflict, "SUPERSEDED"},
		{"closed", service.ErrManagerClosed, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"not connected", service.ErrNotConnected, http.StatusConflict, "NOT_CONNECTED"},
		{"cancelled", context.Canceled, http.StatusGatewayTimeout, "CONNECT_CANCELLED"},
		{"unknown", errors.New("boom"), http.StatusBadGateway, "DEVICE_UNREACHABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, message := classifyIntentError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
			assert.NotEmpty(t, message)
		})
	}
}
