// internal/handler/device_handler.go
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"emg-service/internal/discovery"
	"emg-service/internal/model"
	"emg-service/internal/service"
	"emg-service/internal/utils"
)

// SerialPortLister lists the serial ports present on the host
type SerialPortLister interface {
	Ports(ctx context.Context) ([]model.SerialPortInfo, error)
}

// DeviceHandler lists connection candidates
type DeviceHandler struct {
	ui       *service.UIState
	bonded   service.BondedDeviceSource
	ports    SerialPortLister
	scanners *discovery.ScannerManager
	logger   *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(
	ui *service.UIState,
	bonded service.BondedDeviceSource,
	ports SerialPortLister,
	scanners *discovery.ScannerManager,
	logger *zap.Logger,
) *DeviceHandler {
	return &DeviceHandler{
		ui:       ui,
		bonded:   bonded,
		ports:    ports,
		scanners: scanners,
		logger:   utils.NewServiceLogger(logger, "device-handler"),
	}
}

// DeviceListResponse holds a list of discovered candidates
type DeviceListResponse struct {
	Devices []*discovery.DiscoveredDevice `json:"devices"`
	Count   int                           `json:"count"`
}

// ListDevices runs every available scanner
// @Summary List connection candidates
// @Description Scan bonded Bluetooth devices and serial ports
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=DeviceListResponse} "Candidates"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.scanners.ScanAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Device scan failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Device scan failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved", DeviceListResponse{
		Devices: devices,
		Count:   len(devices),
	})
}

// ListBluetoothDevices refreshes the bonded device list
// @Summary List bonded Bluetooth devices
// @Description Reload the devices bonded with the local adapter, sorted by name
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.BluetoothDevice} "Bonded devices"
// @Failure 503 {object} utils.APIResponse "Bluetooth unavailable"
// @Router /api/v1/devices/bluetooth [get]
func (h *DeviceHandler) ListBluetoothDevices(c *gin.Context) {
	devices, err := h.ui.RefreshBluetoothDevices(c.Request.Context(), h.bonded)
	if err != nil {
		h.logger.Warn("Bonded device refresh failed", zap.Error(err))
		utils.ErrorResponseWithCode(c, http.StatusServiceUnavailable, "BLUETOOTH_UNAVAILABLE", service.MessageBluetoothUnavailable, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Bonded devices retrieved", devices)
}

// ListSerialPorts lists the serial ports present on the host
// @Summary List serial ports
// @Description List the serial ports the glove can be reached through
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.SerialPortInfo} "Serial ports"
// @Failure 500 {object} utils.APIResponse "Enumeration failed"
// @Router /api/v1/devices/serial [get]
func (h *DeviceHandler) ListSerialPorts(c *gin.Context) {
	ports, err := h.ports.Ports(c.Request.Context())
	if err != nil {
		h.logger.Error("Serial port enumeration failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Serial port enumeration failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial ports retrieved", ports)
}

// ListScanners lists the scanners usable on this host
// @Summary List scanners
// @Description List the discovery scanners available on this host
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]string} "Scanner types"
// @Router /api/v1/devices/scanners [get]
func (h *DeviceHandler) ListScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", h.scanners.GetAvailableScanners())
}

// ScanByType runs one scanner
// @Summary Scan one transport
// @Description Run the scanner of one transport kind
// @Tags Devices
// @Produce json
// @Param type path string true "Scanner type" Enums(bluetooth, serial)
// @Success 200 {object} utils.APIResponse{data=DeviceListResponse} "Candidates"
// @Failure 404 {object} utils.APIResponse "Scanner not available"
// @Router /api/v1/devices/scan/{type} [get]
func (h *DeviceHandler) ScanByType(c *gin.Context) {
	scannerType := c.Param("type")

	devices, err := h.scanners.ScanByType(c.Request.Context(), scannerType)
	if err != nil {
		h.logger.Warn("Scan failed", zap.String("type", scannerType), zap.Error(err))
		utils.ErrorResponse(c, http.StatusNotFound, "Scanner not available", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved", DeviceListResponse{
		Devices: devices,
		Count:   len(devices),
	})
}
