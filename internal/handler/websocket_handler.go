// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"emg-service/internal/config"
	"emg-service/internal/events"
	"emg-service/internal/model"
	"emg-service/internal/service"
	"emg-service/internal/utils"
)

const (
	maxIntentSize = 4096
	intentTimeout = 30 * time.Second
)

var streamEventTypes = map[model.EventType]struct{}{
	model.EventStateChanged:    {},
	model.EventSample:          {},
	model.EventStatusMessage:   {},
	model.EventTrainingChanged: {},
	model.EventDevicesUpdated:  {},
}

// WebSocketHandler streams presentation events to clients and accepts
// connection and training intents from them
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *ClientHub
	bus      *events.EventBus
	manager  *service.ConnectionManager
	ui       *service.UIState
	bonded   service.BondedDeviceSource
	config   config.StreamConfig
	logger   *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	cfg *config.Config,
	hub *ClientHub,
	bus *events.EventBus,
	manager *service.ConnectionManager,
	ui *service.UIState,
	bonded service.BondedDeviceSource,
	logger *zap.Logger,
) *WebSocketHandler {
	allowed := cfg.Security.AllowedOrigins

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowed, r.Header.Get("Origin"))
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      hub,
		bus:      bus,
		manager:  manager,
		ui:       ui,
		bonded:   bonded,
		config:   cfg.Stream,
		logger:   utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// HandleStream upgrades the request and streams events to the client
// @Summary Event stream
// @Description WebSocket stream. Sends a snapshot on open, then every presentation event. Accepts intents such as connect_wifi, disconnect and start_training.
// @Tags Stream
// @Param events query string false "Comma separated event types to receive"
// @Success 101 "Switching protocols"
// @Failure 400 {object} utils.APIResponse "Unknown event type"
// @Router /ws/stream [get]
func (h *WebSocketHandler) HandleStream(c *gin.Context) {
	types, err := parseEventTypes(c.Query("events"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid event filter", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := newClient(conn, uuid.New().String(), h.config.SendBuffer)
	client.UserAgent = c.Request.UserAgent()
	client.RemoteAddr = c.Request.RemoteAddr
	client.EventTypes = types

	h.hub.Register(client)
	h.logger.Info("Stream client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	// Subscribe before the snapshot so no change falls between the two
	stream, unsubscribe := h.bus.Subscribe(h.config.SendBuffer, types...)
	h.sendSnapshot(client, "")

	go h.forwardEvents(client, stream, unsubscribe)
	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// GetConnectionStats returns the connected stream clients
// @Summary Stream clients
// @Description List the connected stream clients
// @Tags Stream
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ClientStats} "Stream clients"
// @Router /api/v1/stream/clients [get]
func (h *WebSocketHandler) GetConnectionStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Stream clients retrieved", h.hub.GetStats())
}

// forwardEvents copies bus events to the client until either side closes
func (h *WebSocketHandler) forwardEvents(client *Client, stream <-chan model.Event, unsubscribe func()) {
	defer utils.LogPanic(h.logger.Logger)
	defer unsubscribe()

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				// Bus stopped
				client.Close()
				return
			}
			h.sendMessage(client, &StreamMessage{
				Type:      string(event.Type),
				Data:      event.Data,
				Timestamp: event.Timestamp,
			})

		case <-client.Done():
			return
		}
	}
}

// handleClientRead handles reading intents from the WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.Connection.Close()
		h.logger.Info("Stream client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadLimit(maxIntentSize)
	client.Connection.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message IntentMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Debug("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			h.sendError(client, "", "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite is the only writer of the connection
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				client.Close()
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}

		case <-client.Done():
			client.Connection.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			client.Connection.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleClientMessage dispatches one intent
func (h *WebSocketHandler) handleClientMessage(client *Client, message *IntentMessage) {
	switch message.Type {
	case IntentPing:
		h.sendMessage(client, &StreamMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})

	case IntentSnapshot:
		h.sendSnapshot(client, message.RequestID)

	case IntentStartTraining:
		h.respond(client, message, h.ui.StartTraining())

	case IntentStopTraining:
		h.ui.StopTraining()
		h.respond(client, message, nil)

	case IntentClearStatus:
		h.ui.ClearStatusMessage()
		h.respond(client, message, nil)

	case IntentConnectWifi, IntentConnectBluetooth, IntentConnectSerial, IntentDisconnect, IntentRefreshDevices:
		// Intents that may block run off the read loop so ping and the
		// next intent are still served
		go h.executeIntent(client, message)

	default:
		h.logger.Debug("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, message.RequestID, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

// executeIntent runs a blocking intent and reports its outcome
func (h *WebSocketHandler) executeIntent(client *Client, message *IntentMessage) {
	defer utils.LogPanic(h.logger.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()

	var err error

	switch message.Type {
	case IntentConnectWifi:
		var req WifiConnectRequest
		if err = decodeIntent(message, &req); err != nil {
			break
		}
		var port int
		if port, err = model.ParsePort(req.Port.String()); err != nil {
			err = fmt.Errorf("%w: %v", service.ErrInvalidTarget, err)
			break
		}
		err = h.manager.ConnectWifi(ctx, req.Host, port)

	case IntentConnectBluetooth:
		var req BluetoothConnectRequest
		if err = decodeIntent(message, &req); err != nil {
			break
		}
		err = h.manager.ConnectBluetooth(ctx, req.Address)

	case IntentConnectSerial:
		var req SerialConnectRequest
		if err = decodeIntent(message, &req); err != nil {
			break
		}
		err = h.manager.ConnectSerial(ctx, req.Port, req.BaudRate)

	case IntentDisconnect:
		err = h.manager.Disconnect(ctx)

	case IntentRefreshDevices:
		if _, err = h.ui.RefreshBluetoothDevices(ctx, h.bonded); err != nil {
			h.logger.Warn("Bonded device refresh failed", zap.Error(err))
			err = fmt.Errorf("%w: %v", service.ErrBluetoothUnavailable, err)
		}
	}

	h.respond(client, message, err)
}

func (h *WebSocketHandler) respond(client *Client, message *IntentMessage, err error) {
	response := IntentResponse{
		Intent:  message.Type,
		Success: err == nil,
	}
	if err != nil {
		_, response.Code, response.Message = classifyIntentError(err)
	}
	response.State = h.manager.State()

	h.sendMessage(client, &StreamMessage{
		Type:      MessageTypeResponse,
		Data:      response,
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

func (h *WebSocketHandler) sendSnapshot(client *Client, requestID string) {
	h.sendMessage(client, &StreamMessage{
		Type:      MessageTypeSnapshot,
		Data:      snapshotWithSession(h.ui, h.manager),
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendMessage queues a message for the client
func (h *WebSocketHandler) sendMessage(client *Client, message *StreamMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !client.enqueue(messageBytes) {
		h.logger.Debug("Client send queue full or closed, dropping message",
			zap.String("client_id", client.ID),
			zap.String("type", message.Type),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, requestID, errorMsg string) {
	h.sendMessage(client, &StreamMessage{
		Type: MessageTypeError,
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

func decodeIntent(message *IntentMessage, target interface{}) error {
	if len(message.Data) == 0 {
		return fmt.Errorf("%w: missing data", service.ErrInvalidTarget)
	}
	if err := json.Unmarshal(message.Data, target); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidTarget, err)
	}
	return nil
}

func parseEventTypes(raw string) ([]model.EventType, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var types []model.EventType
	for _, part := range strings.Split(raw, ",") {
		eventType := model.EventType(strings.TrimSpace(part))
		if eventType == "" {
			continue
		}
		if _, ok := streamEventTypes[eventType]; !ok {
			return nil, fmt.Errorf("unknown event type: %s", eventType)
		}
		types = append(types, eventType)
	}
	return types, nil
}

// originAllowed accepts requests without an Origin header, and every origin
// when the allow list is empty or holds "*"
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}
