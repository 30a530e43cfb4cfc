//go:build !linux

// internal/protocol/bluetooth_other.go
package protocol

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

// BluetoothTransport is unavailable on this platform
type BluetoothTransport struct {
	config *BluetoothConfig
	logger *zap.Logger
}

// NewBluetoothTransport creates a transport whose Connect always fails
func NewBluetoothTransport(config *BluetoothConfig, logger *zap.Logger) *BluetoothTransport {
	return &BluetoothTransport{
		config: config,
		logger: newBluetoothLogger(config, logger),
	}
}

func (b *BluetoothTransport) Connect(_ context.Context) error {
	return NewConnectError(ConnectErrorUnsupported, b.Target(), errors.New("bluetooth requires BlueZ"))
}

func (b *BluetoothTransport) ReadLine() (string, error) {
	return "", io.EOF
}

func (b *BluetoothTransport) Close() error {
	return nil
}
