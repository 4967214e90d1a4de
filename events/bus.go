// Package events provides the in-process publish/subscribe bus behind
// core.EventBus. Publishing never blocks: a subscriber whose buffer is full
// misses the event and the drop is counted.
package events

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/logging"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Options configures a Bus.
type Options struct {
	Logger logging.Logger
}

// Subscription is a registered event consumer.
type Subscription struct {
	ID     string
	C      <-chan core.Event
	ch     chan core.Event
	types  []core.EventType
	bus    *Bus
	closed bool
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() { s.bus.unsubscribe(s.ID) }

func (s *Subscription) wants(t core.EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Bus fans events out to subscribers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	dropped atomic.Int64
	opts    Options
}

var _ core.EventBus = (*Bus)(nil)

// New creates an empty Bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Bus{subs: map[string]*Subscription{}, opts: opts}
}

// Subscribe registers a consumer for the given event types (all when none
// are given). buffer <= 0 selects DefaultBuffer.
func (b *Bus) Subscribe(buffer int, types ...core.EventType) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan core.Event, buffer)
	sub := &Subscription{
		ID:    core.NewID(),
		C:     ch,
		ch:    ch,
		types: slices.Clone(types),
		bus:   b,
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()

	return sub
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Publish implements core.EventBus.
func (b *Bus) Publish(ev core.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.wants(ev.Type) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
			b.opts.Logger.Warn("events.bus.dropped", "subscription", sub.ID, "event_type", string(ev.Type), "run_id", ev.RunID)
		}
	}
}

// Subscribers returns the number of registered subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the number of events lost to full subscriber buffers.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close unregisters every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
}
