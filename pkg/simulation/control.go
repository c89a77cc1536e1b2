package simulation

import (
	"fmt"
	"strings"
	"sync"
)

// ControlState is the execution state shared by the execution goroutine and
// the control listener of one instance.
type ControlState int

const (
	StatePlay ControlState = iota
	StatePause
	StateReadyForNext
	StateExit
)

func (s ControlState) String() string {
	switch s {
	case StatePlay:
		return "play"
	case StatePause:
		return "pause"
	case StateReadyForNext:
		return "ready_for_next"
	case StateExit:
		return "exit"
	}
	return fmt.Sprintf("ControlState(%d)", int(s))
}

// ControlMessage is an inbound request from an external controller.
type ControlMessage int

const (
	ControlPause ControlMessage = iota + 1
	ControlPlay
	ControlAbort
)

func (m ControlMessage) String() string {
	switch m {
	case ControlPause:
		return "pause"
	case ControlPlay:
		return "play"
	case ControlAbort:
		return "abort"
	}
	return fmt.Sprintf("ControlMessage(%d)", int(m))
}

// ParseControlMessage accepts "pause", "play"/"resume" and "abort"/"stop".
func ParseControlMessage(s string) (ControlMessage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pause":
		return ControlPause, nil
	case "play", "resume":
		return ControlPlay, nil
	case "abort", "stop":
		return ControlAbort, nil
	}
	return 0, fmt.Errorf("unknown control action %q", s)
}

// SharedControlState guards a ControlState with a mutex and wakes the
// execution goroutine through a condition variable.
//
// Exit is terminal. Pause remembers the state it interrupted, so a Pause
// that lands while a phase advance is pending resumes into that advance.
type SharedControlState struct {
	mu     sync.Mutex
	cond   *sync.Cond
	state  ControlState
	resume ControlState
}

// NewSharedControlState returns a state in Play.
func NewSharedControlState() *SharedControlState {
	s := &SharedControlState{state: StatePlay, resume: StatePlay}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Apply performs the transition for msg and wakes any waiter.
func (s *SharedControlState) Apply(msg ControlMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg {
	case ControlAbort:
		s.state = StateExit
	case ControlPause:
		if s.state == StatePlay || s.state == StateReadyForNext {
			s.resume = s.state
			s.state = StatePause
		}
	case ControlPlay:
		if s.state == StatePause {
			s.state = s.resume
		}
	}
	s.cond.Broadcast()
}

// Await blocks while the state is Pause and returns the first other state.
func (s *SharedControlState) Await() ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == StatePause {
		s.cond.Wait()
	}
	return s.state
}

// State returns the current state without blocking.
func (s *SharedControlState) State() ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkReadyForNext requests a phase advance. While paused, the advance is
// parked until Play.
func (s *SharedControlState) MarkReadyForNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePlay:
		s.state = StateReadyForNext
	case StatePause:
		s.resume = StateReadyForNext
	}
}

// ConsumeReadyForNext resets ReadyForNext to Play. It reports false if the
// state changed in the meantime.
func (s *SharedControlState) ConsumeReadyForNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReadyForNext {
		return false
	}
	s.state = StatePlay
	return true
}

// Exit moves to Exit and wakes any waiter.
func (s *SharedControlState) Exit() {
	s.Apply(ControlAbort)
}
