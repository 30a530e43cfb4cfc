// internal/protocol/bluetooth_connection.go
package protocol

import (
	"strings"

	"go.uber.org/zap"

	"emg-service/internal/bluez"
	"emg-service/internal/model"
)

// Target returns the device hardware address
func (b *BluetoothTransport) Target() string {
	return strings.ToUpper(b.config.Address)
}

// GetProtocolType returns the protocol type
func (b *BluetoothTransport) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeBluetooth
}

func newBluetoothLogger(config *BluetoothConfig, logger *zap.Logger) *zap.Logger {
	return logger.With(
		zap.String("protocol", "bluetooth"),
		zap.String("adapter", config.Adapter),
		zap.String("address", strings.ToUpper(config.Address)),
	)
}

// classifyBluezError maps BlueZ error names onto connect error kinds
func classifyBluezError(target string, err error) *ConnectError {
	switch bluez.ErrorName(err) {
	case "org.bluez.Error.NotPermitted",
		"org.bluez.Error.AuthenticationFailed",
		"org.bluez.Error.AuthenticationRejected",
		"org.bluez.Error.AuthenticationCanceled",
		"org.freedesktop.DBus.Error.AccessDenied":
		return NewConnectError(ConnectErrorPermissionDenied, target, err)
	case "org.bluez.Error.DoesNotExist",
		"org.freedesktop.DBus.Error.UnknownObject",
		"org.freedesktop.DBus.Error.UnknownMethod":
		return NewConnectError(ConnectErrorDeviceNotFound, target, err)
	case "org.bluez.Error.NotSupported",
		"org.bluez.Error.NotAvailable",
		"org.freedesktop.DBus.Error.ServiceUnknown":
		return NewConnectError(ConnectErrorUnsupported, target, err)
	case "org.freedesktop.DBus.Error.NoReply",
		"org.freedesktop.DBus.Error.Timeout":
		return NewConnectError(ConnectErrorTimeout, target, err)
	case "":
		return ClassifyConnectError(target, err)
	default:
		return NewConnectError(ConnectErrorRefused, target, err)
	}
}
