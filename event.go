package tpool

import (
	"sync"
	"time"

	"go.uber.org/multierr"
)

const (
	PoolEventActivated  = 1
	PoolEventTaskFailed = 2
	PoolEventStopped    = 3
)

type EventPayload interface {
	isEventPayload()
}

type PoolEventActivatedPayload struct {
	PoolID   string
	Previous int
	Active   int
	Time     time.Time
}

func (p *PoolEventActivatedPayload) isEventPayload() {}

type PoolEventTaskFailedPayload struct {
	PoolID string
	Worker int
	Err    error
	Time   time.Time
}

func (p *PoolEventTaskFailedPayload) isEventPayload() {}

type PoolEventStoppedPayload struct {
	PoolID  string
	Dropped int
	Time    time.Time
}

func (p *PoolEventStoppedPayload) isEventPayload() {}

type EventBus struct {
	subscribers map[int][]func(payload EventPayload) error
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[int][]func(payload EventPayload) error),
	}
}

func (bus *EventBus) Subscribe(eventName int, handler func(payload EventPayload) error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers[eventName] = append(bus.subscribers[eventName], handler)
}

// Publish runs every handler in subscription order and combines their errors.
func (bus *EventBus) Publish(eventName int, payload EventPayload) error {
	bus.mu.RLock()
	handlers := bus.subscribers[eventName]
	bus.mu.RUnlock()

	var err error
	for _, handler := range handlers {
		err = multierr.Append(err, handler(payload))
	}
	return err
}
