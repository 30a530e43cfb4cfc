// internal/protocol/connection.go
package protocol

import "time"

// TCPConfig represents WiFi (TCP socket) transport configuration
type TCPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	KeepAlive      bool          `json:"keep_alive"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
}

// BluetoothConfig represents Bluetooth RFCOMM transport configuration
type BluetoothConfig struct {
	Adapter        string        `json:"adapter"`
	Address        string        `json:"address"`
	DevicePath     string        `json:"device_path"`
	UUIDs          []string      `json:"uuids"`
	ProfilePath    string        `json:"profile_path"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// SerialConfig represents wired serial transport configuration
type SerialConfig struct {
	Port           string        `json:"port"`
	BaudRate       int           `json:"baud_rate"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}
