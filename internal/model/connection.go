// internal/model/connection.go
package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ConnectionType represents how the glove is reached
type ConnectionType string

const (
	ConnectionTypeWifi      ConnectionType = "WIFI"
	ConnectionTypeBluetooth ConnectionType = "BLUETOOTH"
	ConnectionTypeSerial    ConnectionType = "SERIAL"
)

// ConnectionStatus is the discriminator of ConnectionState
type ConnectionStatus string

const (
	ConnectionStatusIdle       ConnectionStatus = "IDLE"
	ConnectionStatusConnecting ConnectionStatus = "CONNECTING"
	ConnectionStatusConnected  ConnectionStatus = "CONNECTED"
	ConnectionStatusError      ConnectionStatus = "ERROR"
)

// Port bounds accepted for WiFi targets
const (
	MinPort = 1
	MaxPort = 65535
)

// ConnectionMethod describes one way of reaching the glove. Only the fields
// belonging to Type are meaningful; build values with the constructors.
type ConnectionMethod struct {
	Type ConnectionType `json:"type"`

	// WIFI
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// BLUETOOTH
	DeviceName string `json:"device_name,omitempty"`
	Address    string `json:"address,omitempty"`

	// SERIAL
	SerialPort string `json:"serial_port,omitempty"`
	BaudRate   int    `json:"baud_rate,omitempty"`
}

// WifiMethod builds a WiFi connection method
func WifiMethod(host string, port int) ConnectionMethod {
	return ConnectionMethod{Type: ConnectionTypeWifi, Host: host, Port: port}
}

// BluetoothMethod builds a Bluetooth connection method. An empty name falls
// back to the hardware address.
func BluetoothMethod(deviceName, address string) ConnectionMethod {
	if deviceName == "" {
		deviceName = address
	}
	return ConnectionMethod{Type: ConnectionTypeBluetooth, DeviceName: deviceName, Address: address}
}

// SerialMethod builds a wired serial connection method
func SerialMethod(port string, baudRate int) ConnectionMethod {
	return ConnectionMethod{Type: ConnectionTypeSerial, SerialPort: port, BaudRate: baudRate}
}

// Target returns the address the method points at, used in logs and messages
func (m ConnectionMethod) Target() string {
	switch m.Type {
	case ConnectionTypeWifi:
		return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	case ConnectionTypeBluetooth:
		return m.Address
	case ConnectionTypeSerial:
		return m.SerialPort
	default:
		return ""
	}
}

// String returns the display form of the method
func (m ConnectionMethod) String() string {
	switch m.Type {
	case ConnectionTypeWifi:
		return m.Target()
	case ConnectionTypeBluetooth:
		return m.DeviceName
	case ConnectionTypeSerial:
		return fmt.Sprintf("%s @ %d baud", m.SerialPort, m.BaudRate)
	default:
		return "unknown"
	}
}

// ValidateWifiTarget checks host and port of a WiFi target
func ValidateWifiTarget(host string, port int) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("host is required")
	}
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid port number: %d", port)
	}
	return nil
}

// ParsePort parses a textual port and checks its range
func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("port must be numeric: %q", raw)
	}
	if port < MinPort || port > MaxPort {
		return 0, fmt.Errorf("invalid port number: %d", port)
	}
	return port, nil
}

// ConnectionState is the single connection status owned by the manager.
// Method is set only when Connected, Message only when Error.
type ConnectionState struct {
	Status  ConnectionStatus  `json:"status"`
	Method  *ConnectionMethod `json:"method,omitempty"`
	Message string            `json:"message,omitempty"`
}

// IdleState returns the Idle state
func IdleState() ConnectionState {
	return ConnectionState{Status: ConnectionStatusIdle}
}

// ConnectingState returns the Connecting state
func ConnectingState() ConnectionState {
	return ConnectionState{Status: ConnectionStatusConnecting}
}

// ConnectedState returns the Connected state for a method
func ConnectedState(method ConnectionMethod) ConnectionState {
	return ConnectionState{Status: ConnectionStatusConnected, Method: &method}
}

// ErrorState returns the Error state with a user facing message
func ErrorState(message string) ConnectionState {
	return ConnectionState{Status: ConnectionStatusError, Message: message}
}

// IsIdle reports whether the state is Idle
func (s ConnectionState) IsIdle() bool { return s.Status == ConnectionStatusIdle }

// IsConnecting reports whether the state is Connecting
func (s ConnectionState) IsConnecting() bool { return s.Status == ConnectionStatusConnecting }

// IsConnected reports whether the state is Connected
func (s ConnectionState) IsConnected() bool { return s.Status == ConnectionStatusConnected }

// IsError reports whether the state is Error
func (s ConnectionState) IsError() bool { return s.Status == ConnectionStatusError }

// String renders the state for logs
func (s ConnectionState) String() string {
	switch s.Status {
	case ConnectionStatusConnected:
		if s.Method != nil {
			return fmt.Sprintf("CONNECTED(%s)", s.Method)
		}
	case ConnectionStatusError:
		return fmt.Sprintf("ERROR(%s)", s.Message)
	}
	return string(s.Status)
}
