// Package prototest provides an in-memory Transport for tests.
package prototest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"emg-service/internal/model"
	"emg-service/internal/protocol"
)

// FakeTransport feeds lines pushed by the test to ReadLine
type FakeTransport struct {
	Type model.ConnectionType
	Addr string

	// ConnectErr is returned by Connect when set
	ConnectErr error
	// BlockConnect makes Connect wait for ctx or Close
	BlockConnect bool

	lines      chan string
	failures   chan error
	closed     chan struct{}
	connecting chan struct{}
	closeOnce  sync.Once
	connOnce   sync.Once

	ConnectCalls atomic.Int32
	CloseCalls   atomic.Int32
}

// NewFakeTransport creates a fake WiFi transport
func NewFakeTransport(target string) *FakeTransport {
	return &FakeTransport{
		Type:       model.ConnectionTypeWifi,
		Addr:       target,
		lines:      make(chan string, 1024),
		failures:   make(chan error, 1),
		closed:     make(chan struct{}),
		connecting: make(chan struct{}),
	}
}

func (f *FakeTransport) Connect(ctx context.Context) error {
	f.ConnectCalls.Add(1)
	f.connOnce.Do(func() { close(f.connecting) })

	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	if !f.BlockConnect {
		select {
		case <-f.closed:
			return fmt.Errorf("connect %s: %w", f.Addr, protocol.ErrClosed)
		default:
			return nil
		}
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("connect %s: %w", f.Addr, ctx.Err())
	case <-f.closed:
		return fmt.Errorf("connect %s: %w", f.Addr, protocol.ErrClosed)
	}
}

func (f *FakeTransport) ReadLine() (string, error) {
	// Lines already queued win over a pending failure or EOF
	select {
	case line, ok := <-f.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	default:
	}

	select {
	case line, ok := <-f.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case err := <-f.failures:
		return "", err
	case <-f.closed:
		return "", io.EOF
	}
}

func (f *FakeTransport) Close() error {
	f.CloseCalls.Add(1)
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *FakeTransport) GetProtocolType() model.ConnectionType {
	return f.Type
}

func (f *FakeTransport) Target() string {
	return f.Addr
}

// Send queues lines for ReadLine
func (f *FakeTransport) Send(lines ...string) {
	for _, line := range lines {
		f.lines <- line
	}
}

// EndStream makes ReadLine return io.EOF once queued lines are drained
func (f *FakeTransport) EndStream() {
	close(f.lines)
}

// Fail makes the next blocked ReadLine return err
func (f *FakeTransport) Fail(err error) {
	f.failures <- err
}

// Closed reports whether Close has been called
func (f *FakeTransport) Closed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// Connecting is closed once Connect has been entered
func (f *FakeTransport) Connecting() <-chan struct{} {
	return f.connecting
}
