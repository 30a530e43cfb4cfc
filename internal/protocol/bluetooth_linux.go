//go:build linux

// internal/protocol/bluetooth_linux.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"emg-service/internal/bluez"
)

var profileCounter uint64

// BluetoothTransport opens an RFCOMM stream to a bonded glove through
// BlueZ. A client Profile1 object is registered for the session and BlueZ
// hands the connected socket over in NewConnection.
type BluetoothTransport struct {
	config *BluetoothConfig
	logger *zap.Logger

	mutex   sync.Mutex
	closed  bool
	bus     *dbus.Conn
	file    *os.File
	reader  *lineReader
	cleanup []func()
}

// NewBluetoothTransport creates a new Bluetooth transport
func NewBluetoothTransport(config *BluetoothConfig, logger *zap.Logger) *BluetoothTransport {
	return &BluetoothTransport{
		config: config,
		logger: newBluetoothLogger(config, logger),
	}
}

// rfcommProfile implements org.bluez.Profile1
type rfcommProfile struct {
	conns chan dbus.UnixFD
}

func (p *rfcommProfile) Release() *dbus.Error { return nil }

func (p *rfcommProfile) Cancel() *dbus.Error { return nil }

func (p *rfcommProfile) RequestDisconnection(_ dbus.ObjectPath) *dbus.Error { return nil }

// NewConnection must not block: BlueZ waits on it before answering
// ConnectProfile.
func (p *rfcommProfile) NewConnection(_ dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	select {
	case p.conns <- fd:
		return nil
	default:
		unix.Close(int(fd))
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"connection already delivered"}}
	}
}

// Connect registers the client profile and asks BlueZ to connect it
func (b *BluetoothTransport) Connect(ctx context.Context) error {
	target := b.Target()

	if b.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.ConnectTimeout)
		defer cancel()
	}

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return NewConnectError(ConnectErrorPermissionDenied, target, err)
		}
		return NewConnectError(ConnectErrorUnsupported, target, err)
	}

	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		bus.Close()
		return connectAborted(target, ErrClosed)
	}
	if b.file != nil {
		b.mutex.Unlock()
		bus.Close()
		return nil
	}
	b.bus = bus
	b.cleanup = append(b.cleanup, func() { bus.Close() })
	b.mutex.Unlock()

	// An active inquiry slows RFCOMM setup down considerably
	adapter := bus.Object(bluez.Service, bluez.AdapterPath(b.config.Adapter))
	if err := adapter.CallWithContext(ctx, bluez.AdapterIface+".StopDiscovery", 0).Err; err != nil {
		b.logger.Debug("StopDiscovery failed", zap.Error(err))
	}

	devicePath := dbus.ObjectPath(b.config.DevicePath)
	if devicePath == "" {
		devicePath = bluez.DevicePath(b.config.Adapter, b.config.Address)
	}
	device := bus.Object(bluez.Service, devicePath)

	uuids := b.config.UUIDs
	if len(uuids) == 0 {
		var variant dbus.Variant
		call := device.CallWithContext(ctx, bluez.PropertiesIface+".Get", 0, bluez.DeviceIface, "UUIDs")
		if call.Err == nil && call.Store(&variant) == nil {
			uuids, _ = variant.Value().([]string)
		}
	}
	uuid := bluez.SelectServiceUUID(uuids)

	profile := &rfcommProfile{conns: make(chan dbus.UnixFD, 1)}
	profilePath := dbus.ObjectPath(b.config.ProfilePath + "/p" + strconv.FormatUint(atomic.AddUint64(&profileCounter, 1), 10))
	if err := bus.Export(profile, profilePath, bluez.ProfileIface); err != nil {
		return NewConnectError(ConnectErrorUnsupported, target, fmt.Errorf("export profile: %w", err))
	}

	manager := bus.Object(bluez.Service, bluez.RootPath)
	options := map[string]dbus.Variant{
		"Role":        dbus.MakeVariant("client"),
		"AutoConnect": dbus.MakeVariant(false),
	}
	if call := manager.CallWithContext(ctx, bluez.ProfileManagerIface+".RegisterProfile", 0, profilePath, uuid, options); call.Err != nil {
		bus.Export(nil, profilePath, bluez.ProfileIface)
		return b.connectFailed(ctx, target, fmt.Errorf("register profile: %w", call.Err))
	}
	if !b.addCleanup(func() {
		manager.Call(bluez.ProfileManagerIface+".UnregisterProfile", 0, profilePath)
		bus.Export(nil, profilePath, bluez.ProfileIface)
	}) {
		return connectAborted(target, ErrClosed)
	}

	b.logger.Debug("Connecting RFCOMM profile",
		zap.String("uuid", uuid),
		zap.String("device_path", string(devicePath)),
	)

	if call := device.CallWithContext(ctx, bluez.DeviceIface+".ConnectProfile", 0, uuid); call.Err != nil {
		return b.connectFailed(ctx, target, call.Err)
	}

	var fd dbus.UnixFD
	select {
	case fd = <-profile.conns:
	case <-ctx.Done():
		return b.connectFailed(ctx, target, ctx.Err())
	}

	if err := unix.SetNonblock(int(fd), true); err != nil {
		unix.Close(int(fd))
		return NewConnectError(ConnectErrorRefused, target, err)
	}
	// A non-blocking descriptor lets Close interrupt a pending Read
	file := os.NewFile(uintptr(fd), "rfcomm:"+target)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		file.Close()
		return connectAborted(target, ErrClosed)
	}

	b.file = file
	b.reader = newLineReader(file)
	b.cleanup = append(b.cleanup, func() {
		device.Call(bluez.DeviceIface+".DisconnectProfile", 0, uuid)
	})

	b.logger.Info("RFCOMM connection opened", zap.String("uuid", uuid))
	return nil
}

func (b *BluetoothTransport) connectFailed(ctx context.Context, target string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || b.isClosed() {
		return connectAborted(target, context.Canceled)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewConnectError(ConnectErrorTimeout, target, err)
	}
	b.logger.Debug("RFCOMM connect failed", zap.Error(err))
	return classifyBluezError(target, err)
}

// ReadLine blocks for the next line from the RFCOMM socket
func (b *BluetoothTransport) ReadLine() (string, error) {
	b.mutex.Lock()
	file, reader := b.file, b.reader
	b.mutex.Unlock()

	if file == nil {
		return "", ErrNotConnected
	}

	line, err := reader.readLine()
	if err == nil {
		return line, nil
	}

	if b.isClosed() || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return "", io.EOF
	}
	return "", err
}

// Close releases the socket and the BlueZ registration in reverse order
func (b *BluetoothTransport) Close() error {
	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		return nil
	}
	b.closed = true
	file := b.file
	cleanup := b.cleanup
	b.cleanup = nil
	b.mutex.Unlock()

	var closeErr error
	if file != nil {
		if conn, err := file.SyscallConn(); err == nil {
			conn.Control(func(fd uintptr) {
				unix.Shutdown(int(fd), unix.SHUT_RDWR)
			})
		}
		closeErr = file.Close()
	}

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close RFCOMM socket: %w", closeErr)
	}

	b.logger.Info("RFCOMM connection closed")
	return nil
}

// addCleanup queues fn for Close. When Close already ran, fn runs at once
// and false is returned.
func (b *BluetoothTransport) addCleanup(fn func()) bool {
	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		fn()
		return false
	}
	b.cleanup = append(b.cleanup, fn)
	b.mutex.Unlock()
	return true
}

func (b *BluetoothTransport) isClosed() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.closed
}
