package usart

import "go.uber.org/atomic"

// Stats holds per-instance counters since Init.
type Stats struct {
	TxWritten   uint32 // bytes handed to hardware (direct write or armed)
	TxQueued    uint32 // bytes parked in the TX queue
	TxBusy      uint32 // SendByte calls rejected because the TX queue was full
	RxQueued    uint32 // bytes moved from hardware into the RX queue
	RxDropped   uint32 // bytes discarded because the RX queue was full
	ChainStarts uint32 // idle -> sending transitions
	ChainStops  uint32 // sending -> idle transitions
}

type stats struct {
	txWritten   atomic.Uint32
	txQueued    atomic.Uint32
	txBusy      atomic.Uint32
	rxQueued    atomic.Uint32
	rxDropped   atomic.Uint32
	chainStarts atomic.Uint32
	chainStops  atomic.Uint32
}

func (s *stats) snapshot() Stats {
	return Stats{
		TxWritten:   s.txWritten.Load(),
		TxQueued:    s.txQueued.Load(),
		TxBusy:      s.txBusy.Load(),
		RxQueued:    s.rxQueued.Load(),
		RxDropped:   s.rxDropped.Load(),
		ChainStarts: s.chainStarts.Load(),
		ChainStops:  s.chainStops.Load(),
	}
}

// Stats returns a copy of instance i's counters.
func (e *Engine) Stats(i int) (Stats, error) {
	in, err := e.get(i)
	if err != nil {
		return Stats{}, err
	}
	return in.stats.snapshot(), nil
}

// UnknownCompletions counts completion events whose peripheral identity
// matched no instance. Such events are ignored.
func (e *Engine) UnknownCompletions() uint32 { return e.unknownCompletions.Load() }
