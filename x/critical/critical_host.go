//go:build !(rp2040 || rp2350)

// Package critical provides a short mutual-exclusion region that is safe to
// enter from task code and from completion (interrupt) handlers alike.
//
// On host builds "interrupts" are goroutines, so a Section is a mutex.
package critical

import "sync"

// Section guards a small piece of state shared with completion handlers.
// Sections do not nest with themselves; distinct Sections may nest.
type Section struct {
	mu sync.Mutex
}

func (s *Section) Enter() { s.mu.Lock() }
func (s *Section) Exit()  { s.mu.Unlock() }
