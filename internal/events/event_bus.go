// internal/events/event_bus.go
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"emg-service/internal/model"
)

const defaultSubscriberBuffer = 256

// EventBus fans presentation events out to subscribers. A single
// distribution goroutine keeps per-subscriber ordering; a subscriber that
// falls behind loses events instead of stalling the others.
type EventBus struct {
	subscribers map[string]*subscription
	events      chan model.Event
	quit        chan struct{}
	finished    chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

type subscription struct {
	ch    chan model.Event
	types map[model.EventType]struct{}
}

func (s *subscription) wants(eventType model.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// NewEventBus creates a new event bus with a publish queue of bufferSize
func NewEventBus(bufferSize int, logger *zap.Logger) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &EventBus{
		subscribers: make(map[string]*subscription),
		events:      make(chan model.Event, bufferSize),
		quit:        make(chan struct{}),
		finished:    make(chan struct{}),
		logger:      logger.With(zap.String("component", "event_bus")),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	defer close(eb.finished)

	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.quit:
			eb.closeSubscribers()
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.quit)
	})
}

// Finished is closed once Start has returned
func (eb *EventBus) Finished() <-chan struct{} {
	return eb.finished
}

// Publish queues an event without blocking
func (eb *EventBus) Publish(eventType model.EventType, data interface{}) {
	event := model.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case <-eb.quit:
		return
	default:
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(eventType)),
		)
	}
}

// Subscribe registers a subscriber for the given event types, or for all
// events when none are given. The returned function unsubscribes and closes
// the channel.
func (eb *EventBus) Subscribe(bufferSize int, types ...model.EventType) (<-chan model.Event, func()) {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriberBuffer
	}

	sub := &subscription{
		ch:    make(chan model.Event, bufferSize),
		types: make(map[model.EventType]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	id := uuid.New().String()

	eb.mutex.Lock()
	select {
	case <-eb.quit:
		close(sub.ch)
	default:
		eb.subscribers[id] = sub
	}
	eb.mutex.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			eb.mutex.Lock()
			defer eb.mutex.Unlock()
			if _, ok := eb.subscribers[id]; ok {
				delete(eb.subscribers, id)
				close(sub.ch)
			}
		})
	}

	return sub.ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for id, sub := range eb.subscribers {
		close(sub.ch)
		delete(eb.subscribers, id)
	}
}
