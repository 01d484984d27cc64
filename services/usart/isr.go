package usart

import (
	"usart-go/errcode"
	"usart-go/services/usart/config"
)

// Completion handlers. They run in interrupt context on MCU builds: no
// blocking, no allocation, no logging, and nowhere to report an error, so a
// failure simply ends the chain.

// lookup maps a hardware identity back to its instance. Unmapped identities
// are counted and rejected; there is no default instance.
func (e *Engine) lookup(p config.Peripheral) (*instance, error) {
	i, ok := e.byPeriph[p]
	if !ok {
		e.unknownCompletions.Inc()
		return nil, errcode.UnknownPeripheral
	}
	return &e.insts[i], nil
}

// OnTransmitComplete continues the TX chain of the instance bound to p: the
// next queued byte is armed, or the chain goes idle when the queue is empty.
func (e *Engine) OnTransmitComplete(p config.Peripheral) error {
	in, err := e.lookup(p)
	if err != nil {
		return err
	}
	if !in.ready() || in.cfg.TxMode != config.ModeInterrupt {
		return errcode.NotInitialized
	}

	in.cs.Enter()
	next, more := in.txq.TryPop()
	if !more {
		in.txActive = false
	}
	in.cs.Exit()

	if !more {
		in.stats.chainStops.Inc()
		return nil
	}
	in.stats.txWritten.Inc()
	e.hw.ArmAsyncTransmit(p, next)
	return nil
}

// OnReceiveComplete queues the byte just received on p and immediately arms
// the next one-byte receive. A full RX queue drops b.
func (e *Engine) OnReceiveComplete(p config.Peripheral, b byte) error {
	in, err := e.lookup(p)
	if err != nil {
		return err
	}
	if !in.ready() || in.cfg.RxMode != config.ModeInterrupt {
		return errcode.NotInitialized
	}
	e.deliver(in, b)
	e.hw.ArmAsyncReceive(p)
	return nil
}

func (e *Engine) txComplete(p config.Peripheral)         { _ = e.OnTransmitComplete(p) }
func (e *Engine) rxComplete(p config.Peripheral, b byte) { _ = e.OnReceiveComplete(p, b) }

// Sending reports whether instance i has a transmit chain in flight.
func (e *Engine) Sending(i int) (bool, error) {
	in, err := e.ready(i)
	if err != nil {
		return false, err
	}
	in.cs.Enter()
	s := in.txActive
	in.cs.Exit()
	return s, nil
}
