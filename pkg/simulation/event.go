package simulation

import "errors"

// EventType identifies an outbound event.
type EventType string

const (
	// EventUpdate carries a distribution snapshot.
	EventUpdate EventType = "update"
	// EventNext announces that the next K-phase started.
	EventNext EventType = "next"
	// EventFinish carries the run's result. It is always the last event.
	EventFinish EventType = "finish"
)

// Event is one message of an instance's outbound stream.
type Event struct {
	Type     EventType `json:"type"`
	Batch    string    `json:"batch,omitempty"`
	RunID    string    `json:"run_id"`
	Instance int       `json:"instance"`

	// K is the opinion count of the phase the event belongs to.
	K uint16 `json:"k"`

	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Result   *Result   `json:"result,omitempty"`
}

// Observer consumes outbound events. Publish may be called from several
// instances at once. An error means the observer is gone; the engine logs it
// and keeps running.
type Observer interface {
	Publish(Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event) error

// Publish calls f(ev).
func (f ObserverFunc) Publish(ev Event) error {
	return f(ev)
}

// MultiObserver publishes to every observer and joins their errors.
type MultiObserver []Observer

// Publish forwards ev to each observer.
func (m MultiObserver) Publish(ev Event) error {
	var errs []error
	for _, o := range m {
		if o == nil {
			continue
		}
		if err := o.Publish(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
