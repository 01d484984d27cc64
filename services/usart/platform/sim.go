package platform

import (
	"context"
	"errors"
	"sync"
	"time"

	"usart-go/errcode"
	"usart-go/services/usart/config"
)

// Sim is an in-memory bank of UART peripherals for host builds and tests.
//
// Each unit has a receive backlog (the "wire" towards us), a transmit-ready
// flag, and a record of every byte written. One-byte async transfers are
// armed by the engine and completed either explicitly (CompleteTransmit,
// CompleteReceive) or by Run.
type Sim struct {
	mu    sync.Mutex
	units map[config.Peripheral]*simUnit
	onTx  func(config.Peripheral)
	onRx  func(config.Peripheral, byte)
}

type simUnit struct {
	clock      bool
	pins       config.PinConfig
	af         uint8 // pin mux selection applied with pins
	line       config.LineConfig
	configured bool
	lineErr    error

	rx       []byte // bytes waiting to be received
	txReady  bool
	written  []byte
	loopback bool

	txArmed bool
	txByte  byte
	rxArmed bool
}

// ErrSimLineFault is a ready-made cause for FailLine.
var ErrSimLineFault = errors.New("sim: line configuration fault")

// NewSim returns a bank with one unit per peripheral, all transmit-ready.
func NewSim(ps ...config.Peripheral) *Sim {
	s := &Sim{units: make(map[config.Peripheral]*simUnit, len(ps))}
	for _, p := range ps {
		s.units[p] = &simUnit{txReady: true}
	}
	return s
}

// NewSimFor returns a bank covering every peripheral named in t.
func NewSimFor(t config.Table) *Sim {
	ps := make([]config.Peripheral, 0, len(t))
	for _, e := range t {
		ps = append(ps, e.Peripheral)
	}
	return NewSim(ps...)
}

func (s *Sim) unit(p config.Peripheral) *simUnit {
	u, ok := s.units[p]
	if !ok {
		// Unknown units behave like an unclocked block: flags read low.
		return &simUnit{}
	}
	return u
}

// ---- usart.Adapter ----

func (s *Sim) EnableClock(p config.Peripheral) {
	s.mu.Lock()
	s.unit(p).clock = true
	s.mu.Unlock()
}

func (s *Sim) ConfigurePins(p config.Peripheral, pins config.PinConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[p]; !ok {
		return errcode.UnknownPeripheral
	}
	u := s.units[p]
	u.pins = pins
	if pins.Connected() {
		u.af = config.AlternateFunction(p)
	}
	return nil
}

func (s *Sim) ConfigureLine(p config.Peripheral, line config.LineConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[p]
	if !ok {
		return errcode.UnknownPeripheral
	}
	if !u.clock {
		return errors.New("sim: peripheral clock disabled")
	}
	if u.lineErr != nil {
		return u.lineErr
	}
	u.line = line
	u.configured = true
	return nil
}

func (s *Sim) IsReceiveReady(p config.Peripheral) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unit(p).rx) > 0
}

func (s *Sim) IsTransmitReady(p config.Peripheral) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit(p).txReady
}

func (s *Sim) ReadData(p config.Peripheral) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.unit(p)
	if len(u.rx) == 0 {
		return 0
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	return b
}

func (s *Sim) WriteData(p config.Peripheral, b byte) {
	s.mu.Lock()
	s.unit(p).emit(b)
	s.mu.Unlock()
}

func (u *simUnit) emit(b byte) {
	u.written = append(u.written, b)
	if u.loopback {
		u.rx = append(u.rx, b)
	}
}

func (s *Sim) ArmAsyncReceive(p config.Peripheral) {
	s.mu.Lock()
	s.unit(p).rxArmed = true
	s.mu.Unlock()
}

func (s *Sim) ArmAsyncTransmit(p config.Peripheral, b byte) {
	s.mu.Lock()
	u := s.unit(p)
	if u.txArmed {
		s.mu.Unlock()
		panic("sim: transmit armed while another byte is in flight on " + p.String())
	}
	u.txArmed, u.txByte = true, b
	s.mu.Unlock()
}

func (s *Sim) SetCompletionHandlers(onTx func(config.Peripheral), onRx func(config.Peripheral, byte)) {
	s.mu.Lock()
	s.onTx, s.onRx = onTx, onRx
	s.mu.Unlock()
}

// ---- test and demo controls ----

// Inject appends bytes to p's receive backlog.
func (s *Sim) Inject(p config.Peripheral, data ...byte) {
	s.mu.Lock()
	u := s.unit(p)
	u.rx = append(u.rx, data...)
	s.mu.Unlock()
}

// SetTransmitReady drives p's transmit-ready flag.
func (s *Sim) SetTransmitReady(p config.Peripheral, ready bool) {
	s.mu.Lock()
	s.unit(p).txReady = ready
	s.mu.Unlock()
}

// SetLoopback feeds every byte p transmits back into its own receive backlog.
func (s *Sim) SetLoopback(p config.Peripheral, on bool) {
	s.mu.Lock()
	s.unit(p).loopback = on
	s.mu.Unlock()
}

// FailLine makes the next ConfigureLine on p return err (nil clears it).
func (s *Sim) FailLine(p config.Peripheral, err error) {
	s.mu.Lock()
	s.unit(p).lineErr = err
	s.mu.Unlock()
}

// Written returns a copy of every byte p has put on the wire.
func (s *Sim) Written(p config.Peripheral) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.unit(p).written...)
}

// Backlog reports how many bytes wait in p's receive backlog.
func (s *Sim) Backlog(p config.Peripheral) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unit(p).rx)
}

// Pins returns the pin assignment programmed on p and the alternate
// function its pins were muxed to (0 when unconnected).
func (s *Sim) Pins(p config.Peripheral) (config.PinConfig, uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.unit(p)
	return u.pins, u.af
}

// Line returns the line parameters last programmed on p.
func (s *Sim) Line(p config.Peripheral) (config.LineConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.unit(p)
	return u.line, u.configured
}

// TxArmed reports the byte in flight on p, if any.
func (s *Sim) TxArmed(p config.Peripheral) (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.unit(p)
	return u.txByte, u.txArmed
}

// RxArmed reports whether a one-byte receive is armed on p.
func (s *Sim) RxArmed(p config.Peripheral) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit(p).rxArmed
}

// CompleteTransmit finishes the byte in flight on p and raises the transmit
// completion. It returns false when nothing was armed.
func (s *Sim) CompleteTransmit(p config.Peripheral) bool {
	s.mu.Lock()
	u := s.unit(p)
	if !u.txArmed {
		s.mu.Unlock()
		return false
	}
	u.txArmed = false
	u.emit(u.txByte)
	cb := s.onTx
	s.mu.Unlock()

	if cb != nil {
		cb(p) // ISR-style callback into the engine
	}
	return true
}

// CompleteReceive delivers the oldest backlog byte to an armed receive on p.
// It returns false when no receive is armed or the backlog is empty.
func (s *Sim) CompleteReceive(p config.Peripheral) bool {
	s.mu.Lock()
	u := s.unit(p)
	if !u.rxArmed || len(u.rx) == 0 {
		s.mu.Unlock()
		return false
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	u.rxArmed = false
	cb := s.onRx
	s.mu.Unlock()

	if cb != nil {
		cb(p, b)
	}
	return true
}

// Run completes armed transfers on every unit once per tick until ctx ends,
// standing in for the UART interrupt.
func (s *Sim) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = time.Millisecond
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			ps := make([]config.Peripheral, 0, len(s.units))
			for p := range s.units {
				ps = append(ps, p)
			}
			s.mu.Unlock()
			for _, p := range ps {
				s.CompleteTransmit(p)
				s.CompleteReceive(p)
			}
		}
	}
}
