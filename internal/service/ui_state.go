// internal/service/ui_state.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"emg-service/internal/buffer"
	"emg-service/internal/model"
)

// ErrNotConnected is returned when training is started without a connection
var ErrNotConnected = errors.New("glove is not connected")

// Status messages for training
const (
	MessageTrainingStarted = "training started"
	MessageTrainingStopped = "training stopped"
)

// Publisher receives presentation events
type Publisher interface {
	Publish(eventType model.EventType, data interface{})
}

// UIState is the presentation state fed by the connection manager. It owns
// the sample window and the training flag, and republishes every change.
type UIState struct {
	window    *buffer.SampleWindow
	publisher Publisher
	logger    *zap.Logger

	mutex          sync.RWMutex
	state          model.ConnectionState
	method         *model.ConnectionMethod
	trainingActive bool
	statusMessage  string
	devices        []model.BluetoothDevice
}

// NewUIState creates the presentation state with a sample window of the
// given capacity
func NewUIState(windowCapacity int, publisher Publisher, logger *zap.Logger) *UIState {
	return &UIState{
		window:    buffer.NewSampleWindow(windowCapacity),
		publisher: publisher,
		logger:    logger.With(zap.String("component", "ui_state")),
		state:     model.IdleState(),
		devices:   []model.BluetoothDevice{},
	}
}

// OnConnectionStateChanged implements Observer
func (u *UIState) OnConnectionStateChanged(state model.ConnectionState) {
	u.mutex.Lock()
	u.state = state
	u.mutex.Unlock()

	u.publish(model.EventStateChanged, model.StateChangedEventData{State: state})
}

// OnConnectionMethodChanged implements Observer
func (u *UIState) OnConnectionMethodChanged(method *model.ConnectionMethod) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if method == nil {
		u.method = nil
		return
	}
	m := *method
	u.method = &m
}

// OnSample implements Observer
func (u *UIState) OnSample(sample model.Sample) {
	if err := u.window.Push(sample); err != nil {
		u.logger.Warn("Failed to buffer sample", zap.Error(err))
	}
	u.publish(model.EventSample, model.SampleEventData{Value: sample})
}

// OnStatusMessage implements Observer
func (u *UIState) OnStatusMessage(message string) {
	u.setStatusMessage(message)
}

// OnTrainingInterrupted implements Observer
func (u *UIState) OnTrainingInterrupted() {
	u.setTraining(false)
}

// StartTraining marks a training session as running
func (u *UIState) StartTraining() error {
	u.mutex.Lock()
	if !u.state.IsConnected() {
		u.mutex.Unlock()
		return ErrNotConnected
	}
	changed := !u.trainingActive
	u.trainingActive = true
	u.mutex.Unlock()

	if changed {
		u.publish(model.EventTrainingChanged, model.TrainingChangedEventData{Active: true})
	}
	u.setStatusMessage(MessageTrainingStarted)
	return nil
}

// StopTraining marks the training session as stopped
func (u *UIState) StopTraining() {
	u.setTraining(false)
	u.setStatusMessage(MessageTrainingStopped)
}

// ClearStatusMessage drops the current status message
func (u *UIState) ClearStatusMessage() {
	u.setStatusMessage("")
}

// RefreshBluetoothDevices reloads the bonded device list, sorted by
// display name
func (u *UIState) RefreshBluetoothDevices(ctx context.Context, source BondedDeviceSource) ([]model.BluetoothDevice, error) {
	if source == nil {
		return nil, fmt.Errorf("no bonded device source")
	}

	devices, err := source.BondedDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bonded devices: %w", err)
	}

	sorted := make([]model.BluetoothDevice, len(devices))
	copy(sorted, devices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].DisplayName()) < strings.ToLower(sorted[j].DisplayName())
	})

	u.mutex.Lock()
	u.devices = sorted
	u.mutex.Unlock()

	u.publish(model.EventDevicesUpdated, sorted)
	return sorted, nil
}

// Samples returns the sample window, oldest first
func (u *UIState) Samples() []model.Sample {
	return u.window.Snapshot()
}

// TrainingActive reports whether training is running
func (u *UIState) TrainingActive() bool {
	u.mutex.RLock()
	defer u.mutex.RUnlock()
	return u.trainingActive
}

// StatusMessage returns the current status message
func (u *UIState) StatusMessage() string {
	u.mutex.RLock()
	defer u.mutex.RUnlock()
	return u.statusMessage
}

// Snapshot returns the full presentation state
func (u *UIState) Snapshot() model.UISnapshot {
	samples := u.window.Snapshot()

	u.mutex.RLock()
	defer u.mutex.RUnlock()

	snapshot := model.UISnapshot{
		ConnectionState:  u.state,
		Samples:          samples,
		WindowCapacity:   u.window.Capacity(),
		TrainingActive:   u.trainingActive,
		StatusMessage:    u.statusMessage,
		BluetoothDevices: append([]model.BluetoothDevice(nil), u.devices...),
	}
	if u.method != nil {
		m := *u.method
		snapshot.ConnectionMethod = &m
	}
	if snapshot.BluetoothDevices == nil {
		snapshot.BluetoothDevices = []model.BluetoothDevice{}
	}
	return snapshot
}

func (u *UIState) setTraining(active bool) {
	u.mutex.Lock()
	changed := u.trainingActive != active
	u.trainingActive = active
	u.mutex.Unlock()

	if changed {
		u.publish(model.EventTrainingChanged, model.TrainingChangedEventData{Active: active})
	}
}

func (u *UIState) setStatusMessage(message string) {
	u.mutex.Lock()
	changed := u.statusMessage != message
	u.statusMessage = message
	u.mutex.Unlock()

	if changed {
		u.publish(model.EventStatusMessage, model.StatusMessageEventData{Message: message})
	}
}

func (u *UIState) publish(eventType model.EventType, data interface{}) {
	if u.publisher != nil {
		u.publisher.Publish(eventType, data)
	}
}
