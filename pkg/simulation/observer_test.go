package simulation

import (
	"sync"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
)

// ChanObserver delivers events on a channel. Publish blocks until the
// consumer receives the event or calls Close.
type ChanObserver struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewChanObserver returns an observer with the given buffer size.
func NewChanObserver(buffer int) *ChanObserver {
	return &ChanObserver{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Events returns the receive side. It is never closed because several
// instances may publish; consumers stop after the Finish events they expect.
func (o *ChanObserver) Events() <-chan Event {
	return o.ch
}

// Publish sends ev unless the observer was closed.
func (o *ChanObserver) Publish(ev Event) error {
	select {
	case <-o.done:
		return errChannelClosed()
	default:
	}
	select {
	case o.ch <- ev:
		return nil
	case <-o.done:
		return errChannelClosed()
	}
}

// Close marks the consumer as gone. Pending and later Publish calls fail.
func (o *ChanObserver) Close() {
	o.once.Do(func() { close(o.done) })
}

func errChannelClosed() error {
	return cerrors.Simulation(cerrors.ErrChannelClosed, "observer is no longer receiving events")
}
