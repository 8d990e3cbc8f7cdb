package engine

import "sync"

type EventType int

type Event struct {
	Type    EventType
	Payload any
}

type subscription struct {
	fn    func(Event)
	types map[EventType]bool // nil means all
}

// EventBus fans events out to subscribers synchronously in subscription
// order. Subscribers must not block.
type EventBus struct {
	mu   sync.RWMutex
	subs []subscription
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

func (b *EventBus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{fn: fn})
}

func (b *EventBus) SubscribeTypes(fn func(Event), types ...EventType) {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{fn: fn, types: set})
}

func (b *EventBus) Emit(evt Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, s := range subs {
		if s.types == nil || s.types[evt.Type] {
			s.fn(evt)
		}
	}
}
