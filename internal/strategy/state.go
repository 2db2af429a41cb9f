package strategy

import "fmt"

// State is the position lifecycle state of the condor strategy.
type State string

const (
	// StateNoPosition means nothing is held yet.
	StateNoPosition State = "no_position"
	// StateLeapOnly means the long-dated anchor call is held without a
	// condor overlay.
	StateLeapOnly State = "leap_only"
	// StateLeapAndCondor means both the anchor and a four-leg condor are
	// held.
	StateLeapAndCondor State = "leap_and_condor"
)

// validTransitions enumerates the allowed lifecycle moves.
var validTransitions = map[State][]State{
	StateNoPosition:    {StateLeapOnly},
	StateLeapOnly:      {StateLeapAndCondor},
	StateLeapAndCondor: {StateLeapOnly},
}

// machine tracks the current state and rejects invalid transitions.
type machine struct {
	current State
}

func newMachine() *machine {
	return &machine{current: StateNoPosition}
}

// Current returns the present state.
func (m *machine) Current() State {
	return m.current
}

// Transition moves to the target state, erroring on a move outside the
// lifecycle.
func (m *machine) Transition(to State) error {
	for _, allowed := range validTransitions[m.current] {
		if allowed == to {
			m.current = to
			return nil
		}
	}
	return fmt.Errorf("invalid state transition: %s -> %s", m.current, to)
}
