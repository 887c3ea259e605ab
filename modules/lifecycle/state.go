// Package lifecycle holds the process-wide lifecycle state and the
// dependency monitor that reports degraded health.
package lifecycle

import (
	"sync"
	"time"
)

// Phase is the lifecycle phase of the process.
type Phase int32

const (
	Starting Phase = iota
	Ready
	Draining
	Stopped
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent read of the lifecycle state.
type Snapshot struct {
	Phase          Phase
	Degraded       bool
	DegradedReason string
	Since          time.Time
}

// AcceptingRooms reports whether new room operations may run.
func (s Snapshot) AcceptingRooms() bool {
	return s.Phase == Ready && !s.Degraded
}

// Observer is the read-only view handed to components.
type Observer interface {
	Snapshot() Snapshot
}

// Controller is the single writer of the lifecycle state.
type Controller struct {
	mu    sync.RWMutex
	state Snapshot
}

// NewController creates a controller in the Starting phase.
func NewController() *Controller {
	return &Controller{state: Snapshot{Phase: Starting, Since: time.Now()}}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Advance moves to phase p. Phases only move forward; it returns false
// when p is not after the current phase.
func (c *Controller) Advance(p Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p <= c.state.Phase {
		return false
	}
	c.state.Phase = p
	c.state.Since = time.Now()
	return true
}

// SetDegraded records the dependency health outcome. An empty reason clears
// the degraded flag. It returns true when the flag changed.
func (c *Controller) SetDegraded(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	degraded := reason != ""
	changed := degraded != c.state.Degraded
	c.state.Degraded = degraded
	c.state.DegradedReason = reason
	return changed
}
