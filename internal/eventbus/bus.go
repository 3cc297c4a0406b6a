package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/swayless/schema"
)

// Bus fans state events out to watch subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[chan schema.StateEvent]struct{}
	closed bool
	log    pslog.Logger
	depth  int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan schema.StateEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan schema.StateEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.StateEvent, b.depth)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
			b.log.Debug("eventbus unsubscribe")
		})
	}
}

// OnStateEvent publishes a state event.
func (b *Bus) OnStateEvent(event schema.StateEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	dropped := 0
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "count", dropped, "reason", event.Reason)
	}
}

// Close closes every subscriber channel. Later subscribers get a closed channel.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub)
	}
}
