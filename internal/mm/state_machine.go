package mm

import "sync"

type State string

type Event string

const (
	StateIdle         State = "IDLE"
	StateReplenishing State = "REPLENISHING"
	StateCancelling   State = "CANCELLING"
	StateQuoting      State = "QUOTING"
)

const (
	EventBegin   Event = "BEGIN"
	EventFunded  Event = "FUNDED"
	EventCleared Event = "CLEARED"
	EventDone    Event = "DONE"
	EventAbort   Event = "ABORT"
)

// StateMachine tracks where a quoting cycle is. Transitions are strictly
// ordered; an event that does not apply to the current state is a no-op.
type StateMachine struct {
	mu    sync.Mutex
	State State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{State: StateIdle}
}

func (s *StateMachine) Apply(event Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = nextState(s.State, event)
	return s.State
}

func (s *StateMachine) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

func nextState(current State, event Event) State {
	if event == EventAbort {
		return StateIdle
	}
	switch current {
	case StateIdle:
		if event == EventBegin {
			return StateReplenishing
		}
	case StateReplenishing:
		if event == EventFunded {
			return StateCancelling
		}
	case StateCancelling:
		if event == EventCleared {
			return StateQuoting
		}
	case StateQuoting:
		if event == EventDone {
			return StateIdle
		}
	}
	return current
}
