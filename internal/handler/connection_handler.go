// internal/handler/connection_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"emg-service/internal/model"
	"emg-service/internal/protocol"
	"emg-service/internal/service"
	"emg-service/internal/utils"
)

// ConnectionHandler handles connection intents over HTTP
type ConnectionHandler struct {
	manager *service.ConnectionManager
	logger  *utils.ServiceLogger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(manager *service.ConnectionManager, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		manager: manager,
		logger:  utils.NewServiceLogger(logger, "connection-handler"),
	}
}

// WifiConnectRequest selects a glove reachable over TCP. Port accepts a
// JSON number or a numeric string.
type WifiConnectRequest struct {
	Host string      `json:"host" binding:"required" example:"192.168.4.1"`
	Port json.Number `json:"port" binding:"required" swaggertype:"string" example:"8080"`
}

// BluetoothConnectRequest selects a bonded glove by hardware address
type BluetoothConnectRequest struct {
	Address string `json:"address" binding:"required" example:"00:11:22:33:44:55"`
}

// SerialConnectRequest selects a glove on a wired serial port
type SerialConnectRequest struct {
	Port     string `json:"port" binding:"required" example:"/dev/ttyUSB0"`
	BaudRate int    `json:"baud_rate" example:"115200"`
}

// ConnectionResponse describes the connection and its session counters
type ConnectionResponse struct {
	State   model.ConnectionState `json:"state"`
	Session *model.SessionStats   `json:"session,omitempty"`
}

// GetConnection returns the current connection state
// @Summary Get connection state
// @Description Get the connection state and the counters of the current or last session
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ConnectionResponse} "Connection state"
// @Router /api/v1/connection [get]
func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Connection state retrieved", h.connectionResponse())
}

// ConnectWifi connects to the glove over TCP
// @Summary Connect over WiFi
// @Description Tear down any active connection and connect to the glove at host:port
// @Tags Connection
// @Accept json
// @Produce json
// @Param request body WifiConnectRequest true "WiFi target"
// @Success 200 {object} utils.APIResponse{data=ConnectionResponse} "Connected"
// @Failure 400 {object} utils.APIResponse "Invalid target"
// @Failure 409 {object} utils.APIResponse "Superseded by another intent"
// @Failure 502 {object} utils.APIResponse "Glove unreachable"
// @Failure 504 {object} utils.APIResponse "Connection timed out"
// @Router /api/v1/connection/wifi [post]
func (h *ConnectionHandler) ConnectWifi(c *gin.Context) {
	var req WifiConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return
	}

	port, err := model.ParsePort(req.Port.String())
	if err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"port": err.Error()})
		return
	}

	h.runConnect(c, func(ctx context.Context) error {
		return h.manager.ConnectWifi(ctx, req.Host, port)
	})
}

// ConnectBluetooth connects to a bonded glove
// @Summary Connect over Bluetooth
// @Description Tear down any active connection and connect to a bonded glove over RFCOMM
// @Tags Connection
// @Accept json
// @Produce json
// @Param request body BluetoothConnectRequest true "Bluetooth target"
// @Success 200 {object} utils.APIResponse{data=ConnectionResponse} "Connected"
// @Failure 400 {object} utils.APIResponse "Invalid target"
// @Failure 404 {object} utils.APIResponse "Device not bonded"
// @Failure 502 {object} utils.APIResponse "Glove unreachable"
// @Failure 503 {object} utils.APIResponse "Bluetooth unavailable"
// @Router /api/v1/connection/bluetooth [post]
func (h *ConnectionHandler) ConnectBluetooth(c *gin.Context) {
	var req BluetoothConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return
	}

	h.runConnect(c, func(ctx context.Context) error {
		return h.manager.ConnectBluetooth(ctx, req.Address)
	})
}

// ConnectSerial connects to the glove on a serial port
// @Summary Connect over serial
// @Description Tear down any active connection and open the glove's serial port
// @Tags Connection
// @Accept json
// @Produce json
// @Param request body SerialConnectRequest true "Serial target"
// @Success 200 {object} utils.APIResponse{data=ConnectionResponse} "Connected"
// @Failure 400 {object} utils.APIResponse "Invalid target"
// @Failure 502 {object} utils.APIResponse "Port could not be opened"
// @Router /api/v1/connection/serial [post]
func (h *ConnectionHandler) ConnectSerial(c *gin.Context) {
	var req SerialConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err)
		return
	}

	h.runConnect(c, func(ctx context.Context) error {
		return h.manager.ConnectSerial(ctx, req.Port, req.BaudRate)
	})
}

// Disconnect stops the active connection
// @Summary Disconnect
// @Description Stop the active session and return to Idle. Does nothing when already Idle.
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ConnectionResponse} "Disconnected"
// @Router /api/v1/connection/disconnect [post]
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	if err := h.manager.Disconnect(c.Request.Context()); err != nil {
		h.logger.Error("Disconnect failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to disconnect", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Disconnected", h.connectionResponse())
}

func (h *ConnectionHandler) runConnect(c *gin.Context, connect func(context.Context) error) {
	if err := connect(c.Request.Context()); err != nil {
		status, code, message := classifyIntentError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("Connect intent failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
		utils.ErrorResponseWithCode(c, status, code, message, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Connected", h.connectionResponse())
}

func (h *ConnectionHandler) connectionResponse() ConnectionResponse {
	return ConnectionResponse{
		State:   h.manager.State(),
		Session: h.manager.SessionStats(),
	}
}

// classifyIntentError maps an intent failure to an HTTP status, an error
// code and a message safe to show to the user
func classifyIntentError(err error) (int, string, string) {
	var connErr *protocol.ConnectError

	switch {
	case errors.Is(err, service.ErrInvalidTarget):
		return http.StatusBadRequest, "VALIDATION_ERROR", "Invalid connection target"
	case errors.Is(err, service.ErrDeviceNotFound):
		return http.StatusNotFound, "DEVICE_NOT_FOUND", service.MessageDeviceNotFound
	case errors.Is(err, service.ErrSuperseded):
		return http.StatusConflict, "SUPERSEDED", "Connection attempt superseded by a newer request"
	case errors.Is(err, service.ErrManagerClosed):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service is shutting down"
	case errors.Is(err, service.ErrNotConnected):
		return http.StatusConflict, "NOT_CONNECTED", "Glove is not connected"
	case errors.As(err, &connErr):
		switch connErr.Kind {
		case protocol.ConnectErrorTimeout:
			return http.StatusGatewayTimeout, "CONNECT_TIMEOUT", connErr.UserMessage()
		case protocol.ConnectErrorUnsupported:
			return http.StatusServiceUnavailable, "UNSUPPORTED", connErr.UserMessage()
		default:
			return http.StatusBadGateway, "DEVICE_UNREACHABLE", connErr.UserMessage()
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "CONNECT_CANCELLED", service.MessageConnectCancelled
	case errors.Is(err, service.ErrBluetoothUnavailable):
		return http.StatusServiceUnavailable, "BLUETOOTH_UNAVAILABLE", service.MessageBluetoothUnavailable
	default:
		return http.StatusBadGateway, "DEVICE_UNREACHABLE", "Could not connect to the glove"
	}
}
