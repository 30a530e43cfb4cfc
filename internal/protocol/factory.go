// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"emg-service/internal/config"
	"emg-service/internal/model"
)

// Factory builds transports from connection methods using device config
type Factory struct {
	config *config.DeviceConfig
	logger *zap.Logger
}

// NewFactory creates a transport factory
func NewFactory(cfg *config.DeviceConfig, logger *zap.Logger) *Factory {
	return &Factory{config: cfg, logger: logger}
}

// Create builds an unconnected transport for method. For Bluetooth, device
// is the bonded device the address resolved to and may be nil.
func (f *Factory) Create(method model.ConnectionMethod, device *model.BluetoothDevice) (Transport, error) {
	if err := ValidateMethod(method); err != nil {
		return nil, err
	}

	switch method.Type {
	case model.ConnectionTypeWifi:
		return f.createTCPTransport(method), nil
	case model.ConnectionTypeBluetooth:
		return f.createBluetoothTransport(method, device), nil
	case model.ConnectionTypeSerial:
		return f.createSerialTransport(method), nil
	default:
		return nil, fmt.Errorf("unsupported connection type: %s", method.Type)
	}
}

// createTCPTransport creates a WiFi transport
func (f *Factory) createTCPTransport(method model.ConnectionMethod) Transport {
	return NewTCPTransport(&TCPConfig{
		Host:           strings.TrimSpace(method.Host),
		Port:           method.Port,
		KeepAlive:      f.config.Wifi.KeepAlive,
		ConnectTimeout: f.config.Wifi.ConnectTimeout,
		ReadTimeout:    f.config.Wifi.ReadTimeout,
	}, f.logger)
}

// createBluetoothTransport creates an RFCOMM transport
func (f *Factory) createBluetoothTransport(method model.ConnectionMethod, device *model.BluetoothDevice) Transport {
	btConfig := &BluetoothConfig{
		Adapter:        f.config.Bluetooth.Adapter,
		Address:        method.Address,
		ProfilePath:    f.config.Bluetooth.ProfilePath,
		ConnectTimeout: f.config.Bluetooth.ConnectTimeout,
	}

	if device != nil {
		btConfig.DevicePath = device.Path
		btConfig.UUIDs = device.UUIDs
		if device.Adapter != "" {
			btConfig.Adapter = device.Adapter
		}
	}

	return NewBluetoothTransport(btConfig, f.logger)
}

// createSerialTransport creates a wired serial transport
func (f *Factory) createSerialTransport(method model.ConnectionMethod) Transport {
	baudRate := method.BaudRate
	if baudRate <= 0 {
		baudRate = f.config.Serial.BaudRate
	}

	return NewSerialTransport(&SerialConfig{
		Port:           method.SerialPort,
		BaudRate:       baudRate,
		ConnectTimeout: f.config.Serial.ConnectTimeout,
	}, f.logger)
}

// ValidateMethod validates a connection method before a transport is built
func ValidateMethod(method model.ConnectionMethod) error {
	switch method.Type {
	case model.ConnectionTypeWifi:
		return model.ValidateWifiTarget(method.Host, method.Port)
	case model.ConnectionTypeBluetooth:
		if strings.TrimSpace(method.Address) == "" {
			return fmt.Errorf("bluetooth address is required")
		}
		return nil
	case model.ConnectionTypeSerial:
		if strings.TrimSpace(method.SerialPort) == "" {
			return fmt.Errorf("serial port is required")
		}
		if method.BaudRate < 0 {
			return fmt.Errorf("invalid baud rate: %d", method.BaudRate)
		}
		return nil
	default:
		return fmt.Errorf("unsupported connection type: %s", method.Type)
	}
}
