// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"emg-service/internal/model"
)

// SerialTransport reads the glove stream from a wired serial port
type SerialTransport struct {
	config *SerialConfig
	port   serial.Port
	reader *lineReader
	logger *zap.Logger
	mutex  sync.Mutex
	closed bool

	// open is replaced in tests
	open func(name string, mode *serial.Mode) (serial.Port, error)
}

type serialOpenResult struct {
	port serial.Port
	err  error
}

// NewSerialTransport creates a new serial transport
func NewSerialTransport(config *SerialConfig, logger *zap.Logger) *SerialTransport {
	return &SerialTransport{
		config: config,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
		open: serial.Open,
	}
}

// Connect opens the port in 8N1 mode at the configured baud rate
func (s *SerialTransport) Connect(ctx context.Context) error {
	target := s.Target()

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return connectAborted(target, ErrClosed)
	}
	if s.port != nil {
		s.mutex.Unlock()
		return nil
	}
	s.mutex.Unlock()

	if s.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ConnectTimeout)
		defer cancel()
	}

	s.logger.Debug("Opening serial port", zap.Int("baud_rate", s.config.BaudRate))

	mode := &serial.Mode{
		BaudRate: s.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	// serial.Open takes no context, so the wait is bounded here instead
	results := make(chan serialOpenResult, 1)
	go func() {
		port, err := s.open(s.config.Port, mode)
		results <- serialOpenResult{port: port, err: err}
	}()

	var result serialOpenResult
	select {
	case result = <-results:
	case <-ctx.Done():
		go func() {
			if late := <-results; late.port != nil {
				late.port.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.Canceled) {
			return connectAborted(target, context.Canceled)
		}
		return NewConnectError(ConnectErrorTimeout, target, ctx.Err())
	}

	if result.err != nil {
		s.logger.Debug("Failed to open serial port", zap.Error(result.err))
		return classifySerialError(target, result.err)
	}

	if err := result.port.SetReadTimeout(serial.NoTimeout); err != nil {
		result.port.Close()
		return NewConnectError(ConnectErrorUnsupported, target, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		result.port.Close()
		return connectAborted(target, ErrClosed)
	}

	s.port = result.port
	s.reader = newLineReader(result.port)

	s.logger.Info("Serial port opened")
	return nil
}

// ReadLine blocks for the next line from the port
func (s *SerialTransport) ReadLine() (string, error) {
	s.mutex.Lock()
	port, reader := s.port, s.reader
	s.mutex.Unlock()

	if port == nil {
		return "", ErrNotConnected
	}

	line, err := reader.readLine()
	if err == nil {
		return line, nil
	}

	if s.isClosed() || errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	return "", err
}

// Close closes the port and unblocks a pending read
func (s *SerialTransport) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.port == nil {
		return nil
	}

	if err := s.port.Close(); err != nil {
		s.logger.Debug("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	s.logger.Info("Serial port closed")
	return nil
}

// GetProtocolType returns the protocol type
func (s *SerialTransport) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// Target returns the port name
func (s *SerialTransport) Target() string {
	return s.config.Port
}

func (s *SerialTransport) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

func classifySerialError(target string, err error) *ConnectError {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return ClassifyConnectError(target, err)
	}

	switch portErr.Code() {
	case serial.PortNotFound:
		return NewConnectError(ConnectErrorDeviceNotFound, target, err)
	case serial.PermissionDenied:
		return NewConnectError(ConnectErrorPermissionDenied, target, err)
	case serial.InvalidSerialPort, serial.InvalidSpeed, serial.FunctionNotImplemented:
		return NewConnectError(ConnectErrorUnsupported, target, err)
	default:
		return NewConnectError(ConnectErrorRefused, target, err)
	}
}
