// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"emg-service/internal/model"
)

const tcpKeepAlivePeriod = 30 * time.Second

// TCPTransport reads the glove stream over a WiFi TCP socket
type TCPTransport struct {
	config *TCPConfig
	conn   net.Conn
	reader *lineReader
	logger *zap.Logger
	mutex  sync.Mutex
	closed bool
}

// NewTCPTransport creates a new TCP transport
func NewTCPTransport(config *TCPConfig, logger *zap.Logger) *TCPTransport {
	return &TCPTransport{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Connect dials the glove, bounded by the configured connect timeout
func (t *TCPTransport) Connect(ctx context.Context) error {
	address := t.Target()

	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return connectAborted(address, ErrClosed)
	}
	if t.conn != nil {
		t.mutex.Unlock()
		return nil
	}
	t.mutex.Unlock()

	t.logger.Debug("Opening TCP connection",
		zap.Duration("timeout", t.config.ConnectTimeout),
	)

	dialer := &net.Dialer{
		Timeout: t.config.ConnectTimeout,
	}
	if t.config.KeepAlive {
		dialer.KeepAlive = tcpKeepAlivePeriod
	} else {
		dialer.KeepAlive = -1
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return connectAborted(address, context.Canceled)
		}
		t.logger.Debug("Failed to open TCP connection", zap.Error(err))
		return ClassifyConnectError(address, err)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	// Close raced with the dial
	if t.closed {
		conn.Close()
		return connectAborted(address, ErrClosed)
	}

	t.conn = conn
	t.reader = newLineReader(conn)

	t.logger.Info("TCP connection opened")
	return nil
}

// ReadLine blocks for the next line from the socket
func (t *TCPTransport) ReadLine() (string, error) {
	t.mutex.Lock()
	conn, reader := t.conn, t.reader
	t.mutex.Unlock()

	if conn == nil {
		return "", ErrNotConnected
	}

	if t.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(t.config.ReadTimeout))
	}

	line, err := reader.readLine()
	if err == nil {
		return line, nil
	}

	if t.isClosed() || errors.Is(err, io.EOF) {
		return "", io.EOF
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "", fmt.Errorf("no data received for %s: %w", t.config.ReadTimeout, err)
	}
	return "", err
}

// Close closes the socket and unblocks a pending read
func (t *TCPTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.conn == nil {
		return nil
	}

	if err := t.conn.Close(); err != nil {
		t.logger.Debug("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	t.logger.Info("TCP connection closed")
	return nil
}

// GetProtocolType returns the protocol type
func (t *TCPTransport) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeWifi
}

// Target returns host:port
func (t *TCPTransport) Target() string {
	return net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
}

func (t *TCPTransport) isClosed() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.closed
}
