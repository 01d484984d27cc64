//go:build (rp2040 || rp2350) && scheduler.cores

package critical

import (
	"runtime/interrupt"

	"go.uber.org/atomic"
)

// Section guards a small piece of state shared with completion handlers.
// Interrupts are masked on the entering core and a spinlock keeps the other
// core out. Sections do not nest with themselves; distinct Sections may nest.
type Section struct {
	held  atomic.Bool
	state interrupt.State
}

func (s *Section) Enter() {
	st := interrupt.Disable()
	for !s.held.CompareAndSwap(false, true) {
	}
	s.state = st // only written while held
}

func (s *Section) Exit() {
	st := s.state
	s.held.Store(false)
	interrupt.Restore(st)
}
