package domain

// ReadinessState is the lifecycle state of the serving process.
type ReadinessState int32

const (
	// StateUninitialized is the state at process start.
	StateUninitialized ReadinessState = iota
	// StateLoading is set while artifacts are being loaded.
	StateLoading
	// StateReady is set once every component loaded and passed the consistency check.
	StateReady
	// StateFailed is terminal for the process lifetime.
	StateFailed
)

func (s ReadinessState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
