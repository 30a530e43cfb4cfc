// internal/service/connection_manager.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"emg-service/internal/model"
	"emg-service/internal/protocol"
	"emg-service/internal/session"
	"emg-service/internal/utils"
)

var (
	// ErrInvalidTarget is returned when an intent names an unusable target.
	// The connection state is left untouched.
	ErrInvalidTarget = errors.New("invalid connection target")

	// ErrDeviceNotFound is returned when a Bluetooth address is not bonded
	ErrDeviceNotFound = errors.New("device not found")

	// ErrBluetoothUnavailable is returned when the bonded device list
	// cannot be read
	ErrBluetoothUnavailable = errors.New("bluetooth unavailable")

	// ErrSuperseded is returned by a connect intent that a later intent
	// aborted before it completed
	ErrSuperseded = errors.New("connection attempt superseded")

	// ErrManagerClosed is returned once Close has been called
	ErrManagerClosed = errors.New("connection manager closed")
)

// User facing messages
const (
	MessageDeviceNotFound       = "device not found"
	MessageBluetoothUnavailable = "bluetooth unavailable"
	MessageClosedByDevice       = "connection closed by device"
	MessageConnectionLost       = "connection lost"
	MessageConnectionFinished   = "connection finished"
	MessageConnectCancelled     = "connection attempt cancelled"
)

// Observer receives connection events. Calls are serialized and arrive in
// the order the changes happened. Implementations must not call back into
// the manager's intents synchronously.
type Observer interface {
	OnConnectionStateChanged(state model.ConnectionState)
	OnConnectionMethodChanged(method *model.ConnectionMethod)
	OnSample(sample model.Sample)
	OnStatusMessage(message string)
	OnTrainingInterrupted()
}

// TransportFactory builds unconnected transports
type TransportFactory interface {
	Create(method model.ConnectionMethod, device *model.BluetoothDevice) (protocol.Transport, error)
}

// BondedDeviceSource lists the devices bonded with the local adapter
type BondedDeviceSource interface {
	BondedDevices(ctx context.Context) ([]model.BluetoothDevice, error)
}

// ConnectionManager owns the connection state and at most one live session.
// Intents are serialized; a new intent aborts a connect still in flight and
// fully tears down the active session before it proceeds.
type ConnectionManager struct {
	factory  TransportFactory
	bonded   BondedDeviceSource
	observer Observer
	logger   *utils.ServiceLogger

	// opMutex serializes intents. It is held while waiting for a session
	// to stop, so session callbacks never take it.
	opMutex sync.Mutex

	// notifyMutex orders state changes with observer calls
	notifyMutex sync.Mutex

	mutex     sync.Mutex
	state     model.ConnectionState
	session   *session.Session
	pending   *connectAttempt
	lastStats *model.SessionStats
	closed    bool
}

type connectAttempt struct {
	cancel     context.CancelFunc
	superseded atomic.Bool
}

// NewConnectionManager creates a connection manager in the Idle state
func NewConnectionManager(
	factory TransportFactory,
	bonded BondedDeviceSource,
	observer Observer,
	logger *zap.Logger,
) *ConnectionManager {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ConnectionManager{
		factory:  factory,
		bonded:   bonded,
		observer: observer,
		logger:   utils.NewServiceLogger(logger, "connection-manager"),
		state:    model.IdleState(),
	}
}

// State returns the current connection state
func (m *ConnectionManager) State() model.ConnectionState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// SessionStats returns the counters of the active session, or of the last
// one when none is active
func (m *ConnectionManager) SessionStats() *model.SessionStats {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.session != nil {
		stats := m.session.Stats()
		return &stats
	}
	return m.lastStats
}

// ConnectWifi connects to the glove over TCP
func (m *ConnectionManager) ConnectWifi(ctx context.Context, host string, port int) error {
	host = strings.TrimSpace(host)
	if err := model.ValidateWifiTarget(host, port); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	return m.runIntent(ctx, func(ctx context.Context, attempt *connectAttempt) error {
		return m.connect(ctx, attempt, model.WifiMethod(host, port), nil)
	})
}

// ConnectBluetooth connects to a bonded glove selected by hardware address
func (m *ConnectionManager) ConnectBluetooth(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("%w: bluetooth address is required", ErrInvalidTarget)
	}

	return m.runIntent(ctx, func(ctx context.Context, attempt *connectAttempt) error {
		device, err := m.resolveBonded(ctx, address)
		if err != nil {
			if attempt.superseded.Load() {
				return ErrSuperseded
			}

			message := MessageBluetoothUnavailable
			if errors.Is(err, ErrDeviceNotFound) {
				message = MessageDeviceNotFound
			}

			m.logger.Warn("Bluetooth device resolution failed",
				zap.String("address", address),
				zap.Error(err),
			)
			m.teardown()
			m.fail(message)
			return err
		}

		return m.connect(ctx, attempt, model.BluetoothMethod(device.Name, device.Address), device)
	})
}

// ConnectSerial connects to the glove over a wired serial port
func (m *ConnectionManager) ConnectSerial(ctx context.Context, port string, baudRate int) error {
	method := model.SerialMethod(strings.TrimSpace(port), baudRate)
	if err := protocol.ValidateMethod(method); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	return m.runIntent(ctx, func(ctx context.Context, attempt *connectAttempt) error {
		return m.connect(ctx, attempt, method, nil)
	})
}

// Disconnect stops the active session and lands on Idle. From Idle it
// does nothing.
func (m *ConnectionManager) Disconnect(ctx context.Context) error {
	m.abortPending()

	m.opMutex.Lock()
	defer m.opMutex.Unlock()

	hadSession := m.teardown()

	m.notifyMutex.Lock()
	defer m.notifyMutex.Unlock()

	m.mutex.Lock()
	if m.state.IsIdle() && !hadSession {
		m.mutex.Unlock()
		return nil
	}
	m.state = model.IdleState()
	m.mutex.Unlock()

	m.logger.Info("Disconnected")

	m.observer.OnConnectionStateChanged(model.IdleState())
	m.observer.OnConnectionMethodChanged(nil)
	m.observer.OnStatusMessage(MessageConnectionFinished)
	m.observer.OnTrainingInterrupted()
	return nil
}

// Close disconnects and rejects further intents
func (m *ConnectionManager) Close() error {
	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return nil
	}
	m.closed = true
	m.mutex.Unlock()

	m.logger.LogServiceStop("connection manager closed")
	return m.Disconnect(context.Background())
}

// runIntent aborts any connect in flight, then runs connect while holding
// the intent lock
func (m *ConnectionManager) runIntent(ctx context.Context, connect func(context.Context, *connectAttempt) error) error {
	if m.isClosed() {
		return ErrManagerClosed
	}

	m.abortPending()

	m.opMutex.Lock()
	defer m.opMutex.Unlock()

	if m.isClosed() {
		return ErrManagerClosed
	}

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	attempt := &connectAttempt{cancel: cancel}

	m.mutex.Lock()
	m.pending = attempt
	m.mutex.Unlock()

	defer func() {
		m.mutex.Lock()
		if m.pending == attempt {
			m.pending = nil
		}
		m.mutex.Unlock()
	}()

	return connect(connectCtx, attempt)
}

// connect runs one connection attempt. Called with opMutex held.
func (m *ConnectionManager) connect(ctx context.Context, attempt *connectAttempt, method model.ConnectionMethod, device *model.BluetoothDevice) error {
	deviceLogger := utils.NewDeviceLogger(m.logger.Logger, method)

	previous := m.beginConnecting(method)
	m.stopSession(previous)

	transport, err := m.factory.Create(method, device)
	if err != nil {
		deviceLogger.LogConnection("create_transport", 0, err)
		m.fail(fmt.Sprintf("could not connect to %s", method))
		return err
	}

	s := session.New(transport, deviceLogger.Logger)

	m.mutex.Lock()
	m.session = s
	m.mutex.Unlock()

	start := time.Now()
	err = s.Start(ctx, m.sampleHandler(s), m.endHandler(s, deviceLogger))
	deviceLogger.LogConnection("connect", time.Since(start), err)

	if err != nil {
		m.detach(s)

		switch {
		case attempt.superseded.Load() || errors.Is(err, session.ErrCancelled):
			return ErrSuperseded
		case ctx.Err() != nil:
			m.fail(MessageConnectCancelled)
			return err
		}

		var connErr *protocol.ConnectError
		if errors.As(err, &connErr) {
			m.fail(connErr.UserMessage())
		} else {
			m.fail(fmt.Sprintf("could not connect to %s", method))
		}
		return err
	}

	if attempt.superseded.Load() {
		// The next intent tears the session down
		return ErrSuperseded
	}

	m.transition(s, model.ConnectedState(method), func() {
		m.observer.OnConnectionMethodChanged(&method)
		m.observer.OnStatusMessage(fmt.Sprintf("connected to %s", method))
	})
	return nil
}

// teardown detaches the active session, cancels it and waits for it to
// stop. Called with opMutex held.
func (m *ConnectionManager) teardown() bool {
	m.notifyMutex.Lock()
	m.mutex.Lock()
	s := m.detachLocked()
	m.mutex.Unlock()
	m.notifyMutex.Unlock()

	return m.stopSession(s)
}

// beginConnecting detaches the active session and enters Connecting in one
// step, so the old session can no longer report its end
func (m *ConnectionManager) beginConnecting(method model.ConnectionMethod) *session.Session {
	m.notifyMutex.Lock()
	defer m.notifyMutex.Unlock()

	m.mutex.Lock()
	previous := m.detachLocked()
	m.state = model.ConnectingState()
	m.mutex.Unlock()

	m.logger.Debug("Connection state changed", zap.Stringer("state", model.ConnectingState()))

	m.observer.OnConnectionStateChanged(model.ConnectingState())
	m.observer.OnConnectionMethodChanged(&method)
	m.observer.OnStatusMessage("")
	return previous
}

func (m *ConnectionManager) stopSession(s *session.Session) bool {
	if s == nil {
		return false
	}

	s.Cancel()
	s.Wait()

	m.mutex.Lock()
	stats := s.Stats()
	m.lastStats = &stats
	m.mutex.Unlock()
	return true
}

func (m *ConnectionManager) detachLocked() *session.Session {
	s := m.session
	if s != nil {
		m.session = nil
		stats := s.Stats()
		m.lastStats = &stats
	}
	return s
}

func (m *ConnectionManager) detach(s *session.Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.session == s {
		m.detachLocked()
	}
}

// transition sets state and notifies. With a non-nil session it only
// applies while that session is still the active one.
func (m *ConnectionManager) transition(s *session.Session, state model.ConnectionState, notify func()) bool {
	m.notifyMutex.Lock()
	defer m.notifyMutex.Unlock()

	m.mutex.Lock()
	if s != nil && m.session != s {
		m.mutex.Unlock()
		return false
	}
	m.state = state
	m.mutex.Unlock()

	m.logger.Debug("Connection state changed", zap.Stringer("state", state))

	m.observer.OnConnectionStateChanged(state)
	if notify != nil {
		notify()
	}
	return true
}

// fail moves to Error and clears training
func (m *ConnectionManager) fail(message string) {
	m.transition(nil, model.ErrorState(message), func() {
		m.observer.OnConnectionMethodChanged(nil)
		m.observer.OnStatusMessage(message)
		m.observer.OnTrainingInterrupted()
	})
}

func (m *ConnectionManager) sampleHandler(s *session.Session) session.SampleFunc {
	return func(sample model.Sample) {
		m.notifyMutex.Lock()
		defer m.notifyMutex.Unlock()

		m.mutex.Lock()
		current := m.session == s
		m.mutex.Unlock()

		if current {
			m.observer.OnSample(sample)
		}
	}
}

func (m *ConnectionManager) endHandler(s *session.Session, deviceLogger *utils.DeviceLogger) session.EndFunc {
	return func(reason model.EndReason) {
		deviceLogger.LogSessionEnd(reason, s.Stats())

		if reason.Kind == model.EndReasonCancelled {
			return
		}

		message := MessageConnectionLost
		if reason.Kind == model.EndReasonEndOfStream {
			message = MessageClosedByDevice
		}

		m.notifyMutex.Lock()
		defer m.notifyMutex.Unlock()

		m.mutex.Lock()
		if m.session != s {
			m.mutex.Unlock()
			return
		}
		m.detachLocked()
		state := model.ErrorState(message)
		m.state = state
		m.mutex.Unlock()

		m.observer.OnConnectionStateChanged(state)
		m.observer.OnConnectionMethodChanged(nil)
		m.observer.OnStatusMessage(message)
		m.observer.OnTrainingInterrupted()
	}
}

func (m *ConnectionManager) abortPending() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.pending != nil {
		m.pending.superseded.Store(true)
		m.pending.cancel()
	}
}

func (m *ConnectionManager) resolveBonded(ctx context.Context, address string) (*model.BluetoothDevice, error) {
	if m.bonded == nil {
		return nil, fmt.Errorf("%w: no bonded device source", ErrBluetoothUnavailable)
	}

	devices, err := m.bonded.BondedDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list bonded devices: %v", ErrBluetoothUnavailable, err)
	}

	for i := range devices {
		if strings.EqualFold(devices[i].Address, address) {
			device := devices[i]
			return &device, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, address)
}

func (m *ConnectionManager) isClosed() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.closed
}

type noopObserver struct{}

func (noopObserver) OnConnectionStateChanged(model.ConnectionState)   {}
func (noopObserver) OnConnectionMethodChanged(*model.ConnectionMethod) {}
func (noopObserver) OnSample(model.Sample)                             {}
func (noopObserver) OnStatusMessage(string)                            {}
func (noopObserver) OnTrainingInterrupted()                            {}
