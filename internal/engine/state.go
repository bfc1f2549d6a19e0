package engine

// State is the controller's run state
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in events and records
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether a run is in progress
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused || s == StateStopping
}
