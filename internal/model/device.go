// internal/model/device.go
package model

// BluetoothDevice is a bonded device as reported by the platform stack
type BluetoothDevice struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Path    string   `json:"path,omitempty"`
	Adapter string   `json:"adapter,omitempty"`
	UUIDs   []string `json:"uuids,omitempty"`
	Paired  bool     `json:"paired"`
}

// DisplayName returns the name shown in pickers, falling back to the address
func (d BluetoothDevice) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}

// SerialPortInfo describes a serial port found on the host
type SerialPortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}
