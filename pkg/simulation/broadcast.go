package simulation

import "sync"

const controlBufferSize = 16

// ControlBroadcaster fans control messages out to every subscribed instance.
// Delivery is best effort: a subscriber whose buffer is full misses the message.
type ControlBroadcaster struct {
	mu     sync.RWMutex
	subs   map[*ControlSubscription]struct{}
	closed bool
}

// NewControlBroadcaster returns a broadcaster with no subscribers.
func NewControlBroadcaster() *ControlBroadcaster {
	return &ControlBroadcaster{subs: make(map[*ControlSubscription]struct{})}
}

// ControlSubscription receives broadcast control messages on C.
type ControlSubscription struct {
	C <-chan ControlMessage

	ch   chan ControlMessage
	b    *ControlBroadcaster
	once sync.Once
}

// Subscribe registers a new subscriber. Subscribing to a closed broadcaster
// returns an already closed subscription.
func (b *ControlBroadcaster) Subscribe() *ControlSubscription {
	ch := make(chan ControlMessage, controlBufferSize)
	sub := &ControlSubscription{C: ch, ch: ch, b: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers msg to every subscriber and returns how many received it.
func (b *ControlBroadcaster) Publish(msg ControlMessage) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the current subscriber count.
func (b *ControlBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription; later Publish calls deliver nothing.
func (b *ControlBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, sub)
	}
}

// Close unsubscribes and closes C.
func (s *ControlSubscription) Close() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
}

// drain applies the messages already buffered on messages without blocking.
func drain(messages <-chan ControlMessage, state *SharedControlState) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			state.Apply(msg)
		default:
			return
		}
	}
}

// listen applies inbound messages to state until the channel closes or done
// is closed. It never touches the population.
func listen(messages <-chan ControlMessage, state *SharedControlState, done <-chan struct{}) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			state.Apply(msg)
		case <-done:
			return
		}
	}
}
