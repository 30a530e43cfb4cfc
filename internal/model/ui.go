// internal/model/ui.go
package model

// UISnapshot is the presentation state rendered by clients
type UISnapshot struct {
	ConnectionState  ConnectionState   `json:"connection_state"`
	ConnectionMethod *ConnectionMethod `json:"connection_method,omitempty"`
	Samples          []Sample          `json:"emg_samples"`
	WindowCapacity   int               `json:"window_capacity"`
	TrainingActive   bool              `json:"training_active"`
	StatusMessage    string            `json:"status_message,omitempty"`
	BluetoothDevices []BluetoothDevice `json:"available_bluetooth_devices"`
	Session          *SessionStats     `json:"session,omitempty"`
}
