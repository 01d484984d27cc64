package usart

import "usart-go/services/usart/config"

// RxDrain moves every byte the hardware holds into the RX queues of the ready
// instances that receive in polled mode. It keeps reading until the receive
// flag clears, so one call empties a backlog. Bytes that find the RX queue
// full are discarded; the sender gets no backpressure.
//
// RxDrain must run more often than bytes arrive at the configured baud rate.
func (e *Engine) RxDrain() {
	for i := range e.insts {
		in := &e.insts[i]
		if !in.ready() || in.cfg.RxMode != config.ModePolled {
			continue
		}
		p := in.cfg.Peripheral
		in.rxPoll.Lock()
		for e.hw.IsReceiveReady(p) {
			b := e.hw.ReadData(p) // reading clears the flag for this byte
			e.deliver(in, b)
		}
		in.rxPoll.Unlock()
	}
}

// TxDrain writes queued bytes to hardware for the ready instances that
// transmit in polled mode, for as long as the hardware accepts them.
func (e *Engine) TxDrain() {
	for i := range e.insts {
		in := &e.insts[i]
		if !in.ready() || in.cfg.TxMode != config.ModePolled {
			continue
		}
		in.txPoll.Lock()
		e.flushPolled(in)
		in.txPoll.Unlock()
	}
}

// deliver pushes b into the RX queue or counts it as dropped.
func (e *Engine) deliver(in *instance, b byte) {
	if in.rxq.TryPush(b) {
		in.stats.rxQueued.Inc()
		return
	}
	in.stats.rxDropped.Inc()
}
