//go:build (rp2040 || rp2350) && !scheduler.cores

// Package critical provides a short mutual-exclusion region that is safe to
// enter from task code and from completion (interrupt) handlers alike.
//
// On MCU builds a Section masks interrupts for its duration. Masking only
// covers the local core, so this build assumes Go code runs on one core;
// builds with the multicore scheduler (scheduler.cores) add a spinlock.
package critical

import "runtime/interrupt"

// Section guards a small piece of state shared with completion handlers.
// Sections do not nest with themselves; distinct Sections may nest, each
// restoring the mask it found.
type Section struct {
	state interrupt.State
}

func (s *Section) Enter() {
	st := interrupt.Disable()
	s.state = st // only written with interrupts masked
}

func (s *Section) Exit() { interrupt.Restore(s.state) }
