package event

import "sync"

// DefaultBuffer is the subscription channel buffer used when no buffer
// is configured.
const DefaultBuffer = 16

// Bus fans membership messages out to topic subscribers. Delivery is
// at-least-once per published message with no ordering guarantee across
// different masters. Publish blocks if a subscriber's buffer is full
// until the subscriber drains its channel or cancels, so subscribers
// must drain promptly.
type Bus struct {
	mu     sync.RWMutex
	buffer int
	subs   map[string][]*Subscription
	closed bool
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBuffer sets the channel buffer size for new subscriptions.
func WithBuffer(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// NewBus creates an event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		buffer: DefaultBuffer,
		subs:   make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is a registered interest in one topic. Receive messages
// from C and call Cancel when done.
type Subscription struct {
	bus   *Bus
	topic string
	ch    chan Message

	// stop aborts a delivery blocked on a full buffer so cancellation
	// never has to wait behind a stalled publisher.
	stop     chan struct{}
	stopOnce sync.Once

	// mu serializes delivery against cancellation so Publish never
	// sends on a closed channel.
	mu   sync.Mutex
	done bool
}

// C returns the channel messages are delivered on. The channel is closed
// when the subscription is cancelled or the bus is closed.
func (s *Subscription) C() <-chan Message { return s.ch }

// Topic returns the topic this subscription is registered for.
func (s *Subscription) Topic() string { return s.topic }

// Cancel removes the subscription from the bus and closes its channel.
// Cancel is safe to call more than once, and unblocks any Publish
// waiting on this subscriber's full buffer.
func (s *Subscription) Cancel() {
	s.bus.remove(s)
	s.terminate()
}

// terminate aborts any in-flight delivery, then closes the channel.
// Closing stop first lets a deliver blocked on the send release mu.
func (s *Subscription) terminate() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}

func (s *Subscription) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.ch <- msg:
	case <-s.stop:
	}
}

// Subscribe registers interest in a topic and returns the subscription.
func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Message, b.buffer),
		stop:  make(chan struct{}),
	}
	b.subs[topic] = append(b.subs[topic], s)
	return s
}

// Publish delivers a message to every subscriber of the topic.
func (b *Bus) Publish(topic string, msg Message) {
	b.mu.RLock()
	subs := make([]*Subscription, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return
	}
	for _, s := range subs {
		s.deliver(msg)
	}
}

// Close cancels all subscriptions. Publish becomes a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[string][]*Subscription)
	b.mu.Unlock()

	for _, s := range all {
		s.terminate()
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[s.topic]
	for i, cur := range subs {
		if cur == s {
			b.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
