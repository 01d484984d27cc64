package usart

import (
	"usart-go/errcode"
	"usart-go/services/usart/config"
)

// SendByte hands b to instance i without blocking.
//
// It returns errcode.Busy when the TX queue is full; the byte was not taken
// and the caller may retry later. Once accepted, a byte is always sent.
func (e *Engine) SendByte(i int, b byte) error {
	in, err := e.ready(i)
	if err != nil {
		return err
	}
	if in.cfg.TxMode == config.ModeInterrupt {
		return e.sendChained(in, b)
	}
	return e.sendPolled(in, b)
}

// sendPolled first flushes whatever the hardware will take, then writes b
// straight to hardware when nothing is queued ahead of it, otherwise queues b.
func (e *Engine) sendPolled(in *instance, b byte) error {
	p := in.cfg.Peripheral

	in.txPoll.Lock()
	defer in.txPoll.Unlock()

	e.flushPolled(in)
	if in.txq.Len() == 0 && e.hw.IsTransmitReady(p) {
		e.hw.WriteData(p, b)
		in.stats.txWritten.Inc()
		return nil
	}
	if !in.txq.TryPush(b) {
		in.stats.txBusy.Inc()
		return errcode.Busy
	}
	in.stats.txQueued.Inc()
	return nil
}

// flushPolled moves queued bytes to hardware while it is ready.
// Caller holds in.txPoll.
func (e *Engine) flushPolled(in *instance) {
	p := in.cfg.Peripheral
	for in.txq.Len() > 0 && e.hw.IsTransmitReady(p) {
		v, ok := in.txq.TryPop()
		if !ok {
			break
		}
		e.hw.WriteData(p, v)
		in.stats.txWritten.Inc()
	}
}

// sendChained queues b and, when no transfer is in flight, starts the chain
// with the oldest queued byte. The push, the txActive test-and-set and the
// pop form one critical section shared with the completion handler; the
// hardware is armed after leaving it.
func (e *Engine) sendChained(in *instance, b byte) error {
	var (
		next  byte
		start bool
	)

	in.cs.Enter()
	if !in.txq.TryPush(b) {
		in.cs.Exit()
		in.stats.txBusy.Inc()
		return errcode.Busy
	}
	if !in.txActive {
		next, start = in.txq.TryPop()
		in.txActive = start
	}
	in.cs.Exit()

	if start {
		in.stats.chainStarts.Inc()
		in.stats.txWritten.Inc()
		e.hw.ArmAsyncTransmit(in.cfg.Peripheral, next)
	} else {
		in.stats.txQueued.Inc()
	}
	return nil
}

// ReceiveByte takes the oldest received byte of instance i without blocking.
// It returns errcode.NoData when nothing has arrived.
func (e *Engine) ReceiveByte(i int) (byte, error) {
	in, err := e.ready(i)
	if err != nil {
		return 0, err
	}
	b, ok := in.rxq.TryPop()
	if !ok {
		return 0, errcode.NoData
	}
	return b, nil
}
