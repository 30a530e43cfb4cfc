package bluez

import (
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestDevicePath(t *testing.T) {
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"), DevicePath("hci0", "aa:bb:cc:dd:ee:ff"))
}

func TestAddressFromPath(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", AddressFromPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"))
	assert.Equal(t, "", AddressFromPath("/org/bluez/hci0"))
}

func TestAdapterFromPath(t *testing.T) {
	assert.Equal(t, "hci1", AdapterFromPath("/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF"))
	assert.Equal(t, "", AdapterFromPath("/org/bluez"))
}

func TestErrorName(t *testing.T) {
	byPtr := &dbus.Error{Name: "org.bluez.Error.NotPermitted"}
	byVal := dbus.Error{Name: "org.bluez.Error.Failed"}

	assert.Equal(t, "org.bluez.Error.NotPermitted", ErrorName(byPtr))
	assert.Equal(t, "org.bluez.Error.NotPermitted", ErrorName(fmt.Errorf("wrapped: %w", byPtr)))
	assert.Equal(t, "org.bluez.Error.Failed", ErrorName(byVal))
	assert.Equal(t, "", ErrorName(fmt.Errorf("plain")))
}

func TestSelectServiceUUID(t *testing.T) {
	assert.Equal(t, SPPUUID, SelectServiceUUID(nil))
	assert.Equal(t, SPPUUID, SelectServiceUUID([]string{" "}))
	assert.Equal(t, "0000110a-0000-1000-8000-00805f9b34fb",
		SelectServiceUUID([]string{"0000110A-0000-1000-8000-00805F9B34FB", SPPUUID}))
}
