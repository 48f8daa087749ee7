package stream

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle phase of the client's single logical connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// legal lists every allowed edge; anything else is a no-op.
var legal = map[State]State{
	Disconnected: Connecting,
	Open:         Closing,
	Closing:      Disconnected,
}

func allowed(from, to State) bool {
	if from == Connecting {
		return to == Open || to == Disconnected
	}
	next, ok := legal[from]
	return ok && next == to
}

// StateMachine tracks one connection lifecycle. Reads are lock-free;
// transitions are serialized so listeners observe them in order.
type StateMachine struct {
	state atomic.Int32

	mu        sync.Mutex
	listeners []func(from, to State)
}

func NewStateMachine() *StateMachine {
	return &StateMachine{} // zero value is Disconnected
}

// Current is a point-in-time read.
func (m *StateMachine) Current() State {
	return State(m.state.Load())
}

// Transition moves from -> to when the machine is in from and the edge is
// legal. It reports whether the transition happened.
func (m *StateMachine) Transition(from, to State) bool {
	if !allowed(from, to) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	for _, fn := range m.listeners {
		fn(from, to)
	}
	return true
}

// OnChange registers fn to run after every successful transition. fn runs
// on the transitioning goroutine and must not call Transition.
func (m *StateMachine) OnChange(fn func(from, to State)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}
