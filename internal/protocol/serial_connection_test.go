package protocol

import (
	"context"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// pipePort backs serial.Port with an in-memory pipe
type pipePort struct {
	serial.Port
	reader *io.PipeReader
}

func (p *pipePort) Read(b []byte) (int, error)           { return p.reader.Read(b) }
func (p *pipePort) SetReadTimeout(_ time.Duration) error { return nil }
func (p *pipePort) Close() error                         { return p.reader.Close() }

func newTestSerialTransport(open func(string, *serial.Mode) (serial.Port, error)) *SerialTransport {
	transport := NewSerialTransport(&SerialConfig{
		Port:           "/dev/ttyUSB0",
		BaudRate:       115200,
		ConnectTimeout: time.Second,
	}, zap.NewNop())
	transport.open = open
	return transport
}

func TestSerialTransport_ReadsLines(t *testing.T) {
	reader, writer := io.Pipe()
	var gotMode *serial.Mode

	transport := newTestSerialTransport(func(name string, mode *serial.Mode) (serial.Port, error) {
		gotMode = mode
		return &pipePort{reader: reader}, nil
	})
	require.NoError(t, transport.Connect(context.Background()))
	assert.Equal(t, 115200, gotMode.BaudRate)

	go func() {
		writer.Write([]byte("0.10\r\n0.20\n"))
		writer.Close()
	}()

	line, err := transport.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "0.10", line)

	line, err = transport.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "0.20", line)

	_, err = transport.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSerialTransport_CloseUnblocksRead(t *testing.T) {
	reader, _ := io.Pipe()
	transport := newTestSerialTransport(func(string, *serial.Mode) (serial.Port, error) {
		return &pipePort{reader: reader}, nil
	})
	require.NoError(t, transport.Connect(context.Background()))

	result := make(chan error, 1)
	go func() {
		_, err := transport.ReadLine()
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	select {
	case err := <-result:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("ReadLine still blocked after Close")
	}
}

func TestSerialTransport_MissingPort(t *testing.T) {
	transport := newTestSerialTransport(func(name string, _ *serial.Mode) (serial.Port, error) {
		return nil, &os.PathError{Op: "open", Path: name, Err: syscall.ENOENT}
	})

	err := transport.Connect(context.Background())
	assert.True(t, IsConnectError(err, ConnectErrorDeviceNotFound))
}

func TestSerialTransport_OpenTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	transport := NewSerialTransport(&SerialConfig{
		Port:           "/dev/ttyUSB0",
		BaudRate:       9600,
		ConnectTimeout: 20 * time.Millisecond,
	}, zap.NewNop())
	transport.open = func(string, *serial.Mode) (serial.Port, error) {
		<-release
		return nil, syscall.ENOENT
	}

	err := transport.Connect(context.Background())
	assert.True(t, IsConnectError(err, ConnectErrorTimeout))
}
