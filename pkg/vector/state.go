package vector

// State is the client's position in the worker lifecycle. Transitions are
// explicit: Start moves NotStarted/Stopped/Failed through Starting to Ready
// or Failed, Stop moves anything through Stopping to Stopped, and an
// unexpected exit while Ready drops straight to Stopped so the next
// EnsureReady can relaunch.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
