// Package stepctrl coordinates the interactive command path with the
// background stepping loop. Exactly one of the two may touch the
// engine and the vehicle registry at any moment; stepctrl enforces the
// turn-taking, it does not know what either side does with its turn.
package stepctrl

import "sync"

// Coordinator is the two-signal handshake between the single command
// actor and the single background stepper. It is a strict turn-taking
// protocol, not a general lock: the protocol assumes at most one
// command executes at a time (the interactive loop is sequential by
// construction), and the stepper is the only other party.
//
// The observable states are: stepper-ready (proceed set, stepDone set),
// step-in-flight (stepDone cleared by the stepper), and exclusive-held
// (proceed cleared by the command actor). Both signals start open.
type Coordinator struct {
	mu   sync.Mutex
	cond *sync.Cond

	// proceed: the stepper may begin another step.
	proceed bool
	// stepDone: no step is currently in flight.
	stepDone bool
	// exiting: both actors stop requesting turns.
	exiting bool
}

// NewCoordinator returns a coordinator with both signals open: the
// stepper may run, and no step is in flight.
func NewCoordinator() *Coordinator {
	c := &Coordinator{proceed: true, stepDone: true}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// AcquireExclusive parks the stepper and waits out any in-flight step.
// On return no step is executing and none will start until the window
// is released. Callers must pair it with ReleaseExclusive.
func (c *Coordinator) AcquireExclusive() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.proceed = false
	for !c.stepDone {
		c.cond.Wait()
	}
}

// ReleaseExclusive ends the exclusive window. When paused is true the
// proceed signal stays cleared, so the stepper remains parked until a
// later release re-arms it.
func (c *Coordinator) ReleaseExclusive(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !paused {
		c.proceed = true
		c.cond.Broadcast()
	}
}

// BeginStep blocks until the stepper is granted a turn, then marks a
// step as in flight. It returns false when the coordinator is exiting
// and no turn will be granted.
func (c *Coordinator) BeginStep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.proceed && !c.exiting {
		c.cond.Wait()
	}
	if c.exiting {
		return false
	}
	c.stepDone = false
	return true
}

// FinishStep marks the in-flight step as complete, waking a command
// actor blocked in AcquireExclusive.
func (c *Coordinator) FinishStep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stepDone = true
	c.cond.Broadcast()
}

// Exit signals shutdown. The stepper stops requesting turns; a stepper
// parked waiting for proceed is woken so it can observe the exit.
func (c *Coordinator) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.exiting = true
	c.cond.Broadcast()
}

// Exiting reports whether shutdown has been signalled.
func (c *Coordinator) Exiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exiting
}
