// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"emg-service/internal/discovery"
	"emg-service/internal/model"
)

// Scanner lists serial ports the glove can be reached through
type Scanner struct {
	baudRate int
	usbOnly  bool
	logger   *zap.Logger

	// listPorts is replaced in tests
	listPorts func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a serial port scanner. Discovered methods use
// baudRate; with usbOnly set, built-in UARTs are skipped.
func NewScanner(baudRate int, usbOnly bool, logger *zap.Logger) *Scanner {
	return &Scanner{
		baudRate:  baudRate,
		usbOnly:   usbOnly,
		logger:    logger.With(zap.String("scanner", discovery.ScannerTypeSerial)),
		listPorts: enumerator.GetDetailedPortsList,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return discovery.ScannerTypeSerial
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Ports returns the serial ports present on the host, sorted by name
func (s *Scanner) Ports(ctx context.Context) ([]model.SerialPortInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := []model.SerialPortInfo{}
	for _, d := range details {
		if d == nil || (s.usbOnly && !d.IsUSB) {
			continue
		}
		ports = append(ports, model.SerialPortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VendorID:     d.VID,
			ProductID:    d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })

	s.logger.Debug("Listed serial ports", zap.Int("count", len(ports)))
	return ports, nil
}

// Scan implements discovery.DeviceScanner
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	ports, err := s.Ports(ctx)
	if err != nil {
		return nil, err
	}

	discovered := make([]*discovery.DiscoveredDevice, 0, len(ports))
	for i := range ports {
		port := ports[i]
		name := port.Name
		if port.Product != "" {
			name = fmt.Sprintf("%s (%s)", port.Product, port.Name)
		}
		discovered = append(discovered, &discovery.DiscoveredDevice{
			ConnectionType: model.ConnectionTypeSerial,
			Name:           name,
			Method:         model.SerialMethod(port.Name, s.baudRate),
			Serial:         &port,
		})
	}
	return discovered, nil
}
