package pipeline

import "fmt"

// State is the lifecycle state of one pipeline worker.
type State int32

const (
	// StateRunning is the initial state of every worker.
	StateRunning State = iota
	// StateCancelRequested means the worker observed cancellation and is
	// propagating it downstream.
	StateCancelRequested
	// StateTerminated means the worker goroutine returned.
	StateTerminated
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCancelRequested:
		return "cancel_requested"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Worker identifies one of the three pipeline stages.
type Worker int

const (
	WorkerReader Worker = iota
	WorkerAnalyzer
	WorkerPrinter
	workerCount
)

var workerNames = [workerCount]string{
	WorkerReader:   "reader",
	WorkerAnalyzer: "analyzer",
	WorkerPrinter:  "printer",
}

// String returns the worker name used in logs.
func (w Worker) String() string {
	if w < 0 || w >= workerCount {
		return fmt.Sprintf("worker(%d)", int(w))
	}
	return workerNames[w]
}
