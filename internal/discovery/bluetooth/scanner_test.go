package bluetooth

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"emg-service/internal/bluez"
	"emg-service/internal/model"
)

func deviceObject(props map[string]interface{}) map[string]map[string]dbus.Variant {
	variants := make(map[string]dbus.Variant, len(props))
	for k, v := range props {
		variants[k] = dbus.MakeVariant(v)
	}
	return map[string]map[string]dbus.Variant{bluez.DeviceIface: variants}
}

func testObjects() ManagedObjects {
	return ManagedObjects{
		"/org/bluez/hci0": {
			bluez.AdapterIface: {"Address": dbus.MakeVariant("00:11:22:33:44:55")},
		},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF": deviceObject(map[string]interface{}{
			"Address": "AA:BB:CC:DD:EE:FF",
			"Name":    "EMG Glove",
			"Paired":  true,
			"UUIDs":   []string{bluez.SPPUUID},
		}),
		"/org/bluez/hci0/dev_11_22_33_44_55_66": deviceObject(map[string]interface{}{
			"Address": "11:22:33:44:55:66",
			"Alias":   "Android Phone",
			"Paired":  true,
		}),
		"/org/bluez/hci0/dev_99_99_99_99_99_99": deviceObject(map[string]interface{}{
			"Address": "99:99:99:99:99:99",
			"Name":    "Stranger",
			"Paired":  false,
		}),
		"/org/bluez/hci1/dev_CC_CC_CC_CC_CC_CC": deviceObject(map[string]interface{}{
			"Address": "CC:CC:CC:CC:CC:CC",
			"Name":    "Other adapter",
			"Paired":  true,
		}),
	}
}

func newTestScanner(adapter string, objects ManagedObjects, err error) *Scanner {
	scanner := NewScanner(adapter, zap.NewNop())
	scanner.listObjects = func(context.Context) (ManagedObjects, error) {
		return objects, err
	}
	return scanner
}

func TestBondedDevices(t *testing.T) {
	scanner := newTestScanner("hci0", testObjects(), nil)

	devices, err := scanner.BondedDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "Android Phone", devices[0].Name)
	assert.Equal(t, model.BluetoothDevice{
		Name:    "EMG Glove",
		Address: "AA:BB:CC:DD:EE:FF",
		Path:    "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
		Adapter: "hci0",
		UUIDs:   []string{bluez.SPPUUID},
		Paired:  true,
	}, devices[1])
}

func TestBondedDevices_AllAdapters(t *testing.T) {
	scanner := newTestScanner("", testObjects(), nil)

	devices, err := scanner.BondedDevices(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 3)
}

func TestBondedDevices_BusError(t *testing.T) {
	scanner := newTestScanner("hci0", nil, errors.New("connect system bus: no such file"))

	_, err := scanner.BondedDevices(context.Background())
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	scanner := newTestScanner("hci0", testObjects(), nil)

	discovered, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, discovered, 2)

	glove := discovered[1]
	assert.Equal(t, model.ConnectionTypeBluetooth, glove.ConnectionType)
	assert.Equal(t, model.BluetoothMethod("EMG Glove", "AA:BB:CC:DD:EE:FF"), glove.Method)
	require.NotNil(t, glove.Bluetooth)
	assert.Equal(t, "hci0", glove.Bluetooth.Adapter)
}
