// internal/model/event.go
package model

import "time"

// EventType represents the type of presentation event
type EventType string

const (
	EventStateChanged    EventType = "state_changed"
	EventSample          EventType = "sample"
	EventStatusMessage   EventType = "status_message"
	EventTrainingChanged EventType = "training_changed"
	EventDevicesUpdated  EventType = "devices_updated"
)

// Event is the envelope fanned out to stream subscribers
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// StateChangedEventData carries a connection state transition
type StateChangedEventData struct {
	State ConnectionState `json:"state"`
}

// SampleEventData carries one delivered sample
type SampleEventData struct {
	Value Sample `json:"value"`
}

// StatusMessageEventData carries the current status message, empty when cleared
type StatusMessageEventData struct {
	Message string `json:"message"`
}

// TrainingChangedEventData carries the training flag
type TrainingChangedEventData struct {
	Active bool `json:"active"`
}
