// internal/bluez/bluez.go
package bluez

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

// BlueZ D-Bus names
const (
	Service             = "org.bluez"
	RootPath            = dbus.ObjectPath("/org/bluez")
	AdapterIface        = "org.bluez.Adapter1"
	DeviceIface         = "org.bluez.Device1"
	ProfileIface        = "org.bluez.Profile1"
	ProfileManagerIface = "org.bluez.ProfileManager1"
	ObjectManagerIface  = "org.freedesktop.DBus.ObjectManager"
	PropertiesIface     = "org.freedesktop.DBus.Properties"
)

// SPPUUID is the Serial Port Profile service class
const SPPUUID = "00001101-0000-1000-8000-00805f9b34fb"

// AdapterPath returns the object path of a local adapter, e.g. hci0
func AdapterPath(adapter string) dbus.ObjectPath {
	return dbus.ObjectPath(string(RootPath) + "/" + adapter)
}

// DevicePath returns the object path BlueZ uses for a device address
func DevicePath(adapter, address string) dbus.ObjectPath {
	mac := strings.ToUpper(strings.ReplaceAll(address, ":", "_"))
	return dbus.ObjectPath(string(AdapterPath(adapter)) + "/dev_" + mac)
}

// AddressFromPath extracts the hardware address from a device path
func AddressFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
}

// AdapterFromPath extracts the adapter name from a device path
func AdapterFromPath(path dbus.ObjectPath) string {
	parts := strings.Split(strings.TrimPrefix(string(path), string(RootPath)+"/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// ErrorName returns the D-Bus error name carried by err, if any
func ErrorName(err error) string {
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name
	}
	var val dbus.Error
	if errors.As(err, &val) {
		return val.Name
	}
	return ""
}

// SelectServiceUUID prefers the first service the device advertises and
// falls back to SPP
func SelectServiceUUID(uuids []string) string {
	for _, uuid := range uuids {
		if strings.TrimSpace(uuid) != "" {
			return strings.ToLower(uuid)
		}
	}
	return SPPUUID
}
