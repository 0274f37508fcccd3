// clock.go - process-wide T-state counter shared by the CPU, ULA and tape.

package main

// Clock is the single T-state counter the whole machine advances against.
// It is process-wide for the lifetime of a Machine: reset only happens at
// configure_model, never per-frame, so BeeperEvent/BorderEvent T-states stay
// monotonic across frame boundaries until the host explicitly rebases them.
type Clock struct {
	tState uint64
}

func (c *Clock) Advance(tStates int) {
	c.tState += uint64(tStates)
}

func (c *Clock) TState() uint64 {
	return c.tState
}

func (c *Clock) Reset() {
	c.tState = 0
}

// FramePhase returns the position of the clock within the current 69888
// T-state frame, for contention and video compositing.
func (c *Clock) FramePhase() uint64 {
	return phase(c.tState)
}
