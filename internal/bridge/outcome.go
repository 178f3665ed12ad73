package bridge

// State classifies how a forwarding task terminated.
type State int

const (
	StateCompleted State = iota // source reached end-of-stream
	StateCancelled              // cancellation observed before the source ended
	StateFailed                 // a read or write failed; never retried
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one forwarding task. A task produces
// exactly one Outcome on every exit path, including cancellation and error.
type Outcome struct {
	State State
	Err   error // set only when State is StateFailed
}
