// internal/handler/ui_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"emg-service/internal/model"
	"emg-service/internal/service"
	"emg-service/internal/utils"
)

// UIHandler serves the presentation state and the training controls
type UIHandler struct {
	ui      *service.UIState
	manager *service.ConnectionManager
	logger  *utils.ServiceLogger
}

// NewUIHandler creates a new presentation handler
func NewUIHandler(ui *service.UIState, manager *service.ConnectionManager, logger *zap.Logger) *UIHandler {
	return &UIHandler{
		ui:      ui,
		manager: manager,
		logger:  utils.NewServiceLogger(logger, "ui-handler"),
	}
}

// SamplesResponse holds the sample window, oldest first
type SamplesResponse struct {
	Samples []model.Sample `json:"samples"`
	Count   int            `json:"count"`
}

// GetSnapshot returns the full presentation state
// @Summary Get presentation state
// @Description Get connection state, sample window, training flag, status message and bonded devices
// @Tags UI
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.UISnapshot} "Presentation state"
// @Router /api/v1/ui [get]
func (h *UIHandler) GetSnapshot(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Presentation state retrieved", snapshotWithSession(h.ui, h.manager))
}

// GetSamples returns the most recent samples
// @Summary Get samples
// @Description Get the sample window, oldest first
// @Tags UI
// @Produce json
// @Success 200 {object} utils.APIResponse{data=SamplesResponse} "Sample window"
// @Router /api/v1/samples [get]
func (h *UIHandler) GetSamples(c *gin.Context) {
	samples := h.ui.Samples()
	utils.SuccessResponse(c, http.StatusOK, "Samples retrieved", SamplesResponse{
		Samples: samples,
		Count:   len(samples),
	})
}

// StartTraining starts a training session
// @Summary Start training
// @Description Mark a training session as running. Requires a connected glove.
// @Tags UI
// @Produce json
// @Success 200 {object} utils.APIResponse "Training started"
// @Failure 409 {object} utils.APIResponse "Glove is not connected"
// @Router /api/v1/training/start [post]
func (h *UIHandler) StartTraining(c *gin.Context) {
	if err := h.ui.StartTraining(); err != nil {
		if errors.Is(err, service.ErrNotConnected) {
			utils.ErrorResponseWithCode(c, http.StatusConflict, "NOT_CONNECTED", "Glove is not connected", err)
			return
		}
		h.logger.Error("Failed to start training", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to start training", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Training started", gin.H{"training_active": true})
}

// StopTraining stops the training session
// @Summary Stop training
// @Description Mark the training session as stopped
// @Tags UI
// @Produce json
// @Success 200 {object} utils.APIResponse "Training stopped"
// @Router /api/v1/training/stop [post]
func (h *UIHandler) StopTraining(c *gin.Context) {
	h.ui.StopTraining()
	utils.SuccessResponse(c, http.StatusOK, "Training stopped", gin.H{"training_active": false})
}

// ClearStatus drops the current status message
// @Summary Clear status message
// @Description Clear the status message shown to the user
// @Tags UI
// @Produce json
// @Success 200 {object} utils.APIResponse "Status message cleared"
// @Router /api/v1/status [delete]
func (h *UIHandler) ClearStatus(c *gin.Context) {
	h.ui.ClearStatusMessage()
	utils.SuccessResponse(c, http.StatusOK, "Status message cleared", nil)
}

func snapshotWithSession(ui *service.UIState, manager *service.ConnectionManager) model.UISnapshot {
	snapshot := ui.Snapshot()
	if manager != nil {
		snapshot.Session = manager.SessionStats()
	}
	return snapshot
}
