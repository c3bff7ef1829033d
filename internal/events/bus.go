package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// EventType names an observable orchestrator event.
type EventType string

const (
	ProcessStart          EventType = "process:start"
	ProcessComplete       EventType = "process:complete"
	ProcessError          EventType = "process:error"
	TaskState             EventType = "task:state"
	ReasoningComplete     EventType = "reasoning:complete"
	DecisionMade          EventType = "decision:made"
	DecisionExecuted      EventType = "decision:executed"
	ContingencyTriggered  EventType = "contingency:triggered"
	PlanCreated           EventType = "plan:created"
	PlanAdapted           EventType = "plan:adapted"
	LearningComplete      EventType = "learning:complete"
	CreativityComplete    EventType = "creativity:complete"
	CycleTick             EventType = "cycle:tick"
	ConsolidationComplete EventType = "consolidation:complete"
)

// Event is a single published notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// Subscriber receives events.
type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe bus for observers.
// Each subscriber gets a buffered channel drained by its own goroutine;
// events are dropped for a subscriber whose buffer is full.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	all         []chan Event
	bufferSize  int
	dropped     atomic.Int64
	log         zerolog.Logger
	closed      bool
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int, log zerolog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
		log:         log,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe func.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	go b.deliver(ch, fn)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.all = append(b.all, ch)
	go b.deliver(ch, fn)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, subCh := range b.all {
			if subCh == ch {
				b.all = append(b.all[:i], b.all[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

func (b *Bus) deliver(ch chan Event, fn Subscriber) {
	for event := range ch {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Str("event", string(event.Type)).Msg("event subscriber panicked")
				}
			}()
			fn(event)
		}()
	}
}

// Publish sends an event to every subscriber without blocking.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	send := func(ch chan Event) {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	for _, ch := range b.subscribers[eventType] {
		send(ch)
	}
	for _, ch := range b.all {
		send(ch)
	}
}

// Dropped returns how many deliveries were dropped on full buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
	for _, ch := range b.all {
		close(ch)
	}
	b.all = nil
}
