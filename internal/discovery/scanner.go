// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"emg-service/internal/model"
)

// Scanner types
const (
	ScannerTypeBluetooth = "bluetooth"
	ScannerTypeSerial    = "serial"
)

// DeviceScanner lists connection candidates for one transport kind
type DeviceScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredDevice, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredDevice is one connection candidate. Method is ready to be
// passed to the connection manager.
type DiscoveredDevice struct {
	ConnectionType model.ConnectionType   `json:"connection_type"`
	Name           string                 `json:"name"`
	Method         model.ConnectionMethod `json:"method"`
	Bluetooth      *model.BluetoothDevice `json:"bluetooth,omitempty"`
	Serial         *model.SerialPortInfo  `json:"serial,omitempty"`
}

// ScannerManager manages all device scanners
type ScannerManager struct {
	scanners map[string]DeviceScanner
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]DeviceScanner),
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner registers a device scanner
func (sm *ScannerManager) RegisterScanner(scanner DeviceScanner) {
	scannerType := scanner.GetScannerType()

	sm.mutex.Lock()
	sm.scanners[scannerType] = scanner
	sm.mutex.Unlock()

	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner. A failing scanner is logged and
// skipped.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredDevice, error) {
	allDevices := []*DiscoveredDevice{}

	for _, scannerType := range sm.scannerTypes() {
		scanner := sm.get(scannerType)
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		devices, err := scanner.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return allDevices, ctx.Err()
			}
			sm.logger.Warn("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		allDevices = append(allDevices, devices...)
		sm.logger.Debug("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("devices_found", len(devices)),
		)
	}

	return allDevices, nil
}

// ScanByType runs one scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredDevice, error) {
	scanner := sm.get(scannerType)
	if scanner == nil {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns the available scanner types, sorted
func (sm *ScannerManager) GetAvailableScanners() []string {
	available := []string{}
	for _, scannerType := range sm.scannerTypes() {
		if sm.get(scannerType).IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}

func (sm *ScannerManager) get(scannerType string) DeviceScanner {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.scanners[scannerType]
}

func (sm *ScannerManager) scannerTypes() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	types := make([]string, 0, len(sm.scanners))
	for scannerType := range sm.scanners {
		types = append(types, scannerType)
	}
	sort.Strings(types)
	return types
}
