package continuation

import "fmt"

// State is a step of one continuation run. Runs start in StateRequesting
// and end in one of the terminal states.
type State int

const (
	StateRequesting State = iota
	StateAccumulating

	// Terminal states.
	StateSatisfied
	StateExhausted
	StateFailed
	StateCancelled
	StateSkipped
	StateOffline
)

var stateNames = [...]string{
	StateRequesting:   "requesting",
	StateAccumulating: "accumulating",
	StateSatisfied:    "satisfied",
	StateExhausted:    "exhausted",
	StateFailed:       "failed",
	StateCancelled:    "cancelled",
	StateSkipped:      "skipped",
	StateOffline:      "offline",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s >= StateSatisfied
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("continuation: unknown state %q", b)
}
