// internal/discovery/bluetooth/scanner.go
package bluetooth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"emg-service/internal/bluez"
	"emg-service/internal/discovery"
	"emg-service/internal/model"
)

// ManagedObjects is the reply of ObjectManager.GetManagedObjects
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Scanner lists devices bonded with the local adapter. It never starts an
// inquiry; pairing happens in the platform settings.
type Scanner struct {
	adapter string
	logger  *zap.Logger

	// listObjects is replaced in tests
	listObjects func(ctx context.Context) (ManagedObjects, error)
}

// NewScanner creates a bonded device scanner for adapter, e.g. hci0. An
// empty adapter lists devices of every adapter.
func NewScanner(adapter string, logger *zap.Logger) *Scanner {
	return &Scanner{
		adapter:     adapter,
		logger:      logger.With(zap.String("scanner", discovery.ScannerTypeBluetooth)),
		listObjects: systemManagedObjects,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return discovery.ScannerTypeBluetooth
}

// IsAvailable reports whether BlueZ answers on the system bus
func (s *Scanner) IsAvailable() bool {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return false
	}
	defer conn.Close()

	var owner string
	err = conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, bluez.Service).Store(&owner)
	return err == nil && owner != ""
}

// BondedDevices returns paired devices sorted by display name
func (s *Scanner) BondedDevices(ctx context.Context) ([]model.BluetoothDevice, error) {
	objects, err := s.listObjects(ctx)
	if err != nil {
		return nil, err
	}

	devices := bondedFromObjects(objects, s.adapter)

	s.logger.Debug("Listed bonded devices", zap.Int("count", len(devices)))
	return devices, nil
}

// Scan implements discovery.DeviceScanner
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	devices, err := s.BondedDevices(ctx)
	if err != nil {
		return nil, err
	}

	discovered := make([]*discovery.DiscoveredDevice, 0, len(devices))
	for i := range devices {
		device := devices[i]
		discovered = append(discovered, &discovery.DiscoveredDevice{
			ConnectionType: model.ConnectionTypeBluetooth,
			Name:           device.DisplayName(),
			Method:         model.BluetoothMethod(device.Name, device.Address),
			Bluetooth:      &device,
		})
	}
	return discovered, nil
}

func bondedFromObjects(objects ManagedObjects, adapter string) []model.BluetoothDevice {
	devices := []model.BluetoothDevice{}

	for path, ifaces := range objects {
		props, ok := ifaces[bluez.DeviceIface]
		if !ok {
			continue
		}

		if adapter != "" && !strings.HasPrefix(string(path), string(bluez.AdapterPath(adapter))+"/") {
			continue
		}

		paired, _ := variantValue[bool](props, "Paired")
		if !paired {
			continue
		}

		address, _ := variantValue[string](props, "Address")
		if address == "" {
			address = bluez.AddressFromPath(path)
		}

		name, _ := variantValue[string](props, "Name")
		if name == "" {
			name, _ = variantValue[string](props, "Alias")
		}
		uuids, _ := variantValue[[]string](props, "UUIDs")

		devices = append(devices, model.BluetoothDevice{
			Name:    name,
			Address: strings.ToUpper(address),
			Path:    string(path),
			Adapter: bluez.AdapterFromPath(path),
			UUIDs:   uuids,
			Paired:  paired,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		a, b := strings.ToLower(devices[i].DisplayName()), strings.ToLower(devices[j].DisplayName())
		if a != b {
			return a < b
		}
		return devices[i].Address < devices[j].Address
	})
	return devices
}

func variantValue[T any](props map[string]dbus.Variant, key string) (T, bool) {
	var zero T
	variant, ok := props[key]
	if !ok {
		return zero, false
	}
	value, ok := variant.Value().(T)
	return value, ok
}

func systemManagedObjects(ctx context.Context) (ManagedObjects, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	defer conn.Close()

	var objects ManagedObjects
	call := conn.Object(bluez.Service, "/").CallWithContext(ctx, bluez.ObjectManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", call.Err)
	}
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("decode GetManagedObjects: %w", err)
	}
	return objects, nil
}
