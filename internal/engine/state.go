package engine

import "sync/atomic"

// State is the coordinator's position in the reaction pipeline.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateExecuting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateExecuting:
		return "executing"
	default:
		return "unknown"
	}
}

// stateCell is the single-flight flag. Only enter, promote and release move it.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State {
	return State(c.v.Load())
}

// enter claims the pipeline. It fails unless the coordinator is idle.
func (c *stateCell) enter() bool {
	return c.v.CompareAndSwap(int32(StateIdle), int32(StateEvaluating))
}

func (c *stateCell) promote() bool {
	return c.v.CompareAndSwap(int32(StateEvaluating), int32(StateExecuting))
}

func (c *stateCell) release() {
	c.v.Store(int32(StateIdle))
}
