// Package platform provides usart.Adapter implementations: an in-memory
// simulator for host builds and tests, and Stream, which drives byte-stream
// UARTs (TinyGo machine ports, uartx, OS serial devices) behind the same
// register-level contract.
package platform

import (
	"context"
	"sync"
	"time"

	"usart-go/errcode"
	"usart-go/services/usart/config"

	"tinygo.org/x/drivers"
)

// LineSetter is implemented by ports whose line parameters can be changed
// after opening.
type LineSetter interface {
	SetLine(line config.LineConfig) error
}

// readableNotifier is implemented by ports that signal arriving data
// (uartx.UART, SerialPort).
type readableNotifier interface {
	Readable() <-chan struct{}
}

// txWindow is implemented by ports with a software transmit buffer that
// can be filled without blocking (uartx.UART, SerialPort).
type txWindow interface {
	TxFree() int
	TryWrite(p []byte) int
}

// idlePoll bounds how long an armed receive sleeps between Buffered checks
// on ports with no readable notification.
const idlePoll = time.Millisecond

// Stream adapts byte-stream UARTs to usart.Adapter. Each port gets one
// transmit goroutine and one receive goroutine that stand in for the
// transfer-complete interrupts.
type Stream struct {
	ports map[config.Peripheral]*streamPort

	mu   sync.RWMutex
	onTx func(config.Peripheral)
	onRx func(config.Peripheral, byte)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type streamPort struct {
	id    config.Peripheral
	uart  drivers.UART
	wmu   sync.Mutex    // serialises direct writes with the TX goroutine
	txReq chan byte     // one armed byte at most
	rxArm chan struct{} // one armed receive at most
}

// NewStream starts the per-port workers. They run until ctx ends or Close
// is called.
func NewStream(ctx context.Context, ports map[config.Peripheral]drivers.UART) *Stream {
	cctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ports:  make(map[config.Peripheral]*streamPort, len(ports)),
		cancel: cancel,
	}
	for id, u := range ports {
		sp := &streamPort{
			id:    id,
			uart:  u,
			txReq: make(chan byte, 1),
			rxArm: make(chan struct{}, 1),
		}
		s.ports[id] = sp
		s.wg.Add(2)
		go s.txLoop(cctx, sp)
		go s.rxLoop(cctx, sp)
	}
	return s
}

// Close stops the workers and waits for them. Armed transfers are abandoned.
func (s *Stream) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Stream) port(p config.Peripheral) (*streamPort, bool) {
	sp, ok := s.ports[p]
	return sp, ok
}

// ---- usart.Adapter ----

// EnableClock is a no-op: stream ports are powered by whoever opened them.
func (s *Stream) EnableClock(config.Peripheral) {}

// ConfigurePins only checks that p is bound; pin muxing belongs to the port.
func (s *Stream) ConfigurePins(p config.Peripheral, _ config.PinConfig) error {
	if _, ok := s.port(p); !ok {
		return &errcode.E{C: errcode.UnknownPeripheral, Op: "stream.ConfigurePins", Msg: p.String() + " not bound"}
	}
	return nil
}

func (s *Stream) ConfigureLine(p config.Peripheral, line config.LineConfig) error {
	sp, ok := s.port(p)
	if !ok {
		return &errcode.E{C: errcode.UnknownPeripheral, Op: "stream.ConfigureLine", Msg: p.String() + " not bound"}
	}
	if ls, ok := sp.uart.(LineSetter); ok {
		return ls.SetLine(line)
	}
	return nil
}

func (s *Stream) IsReceiveReady(p config.Peripheral) bool {
	sp, ok := s.port(p)
	return ok && sp.uart.Buffered() > 0
}

// IsTransmitReady reports room in the port's transmit buffer. Ports without
// a txWindow always read ready and WriteData blocks inside the driver.
func (s *Stream) IsTransmitReady(p config.Peripheral) bool {
	sp, ok := s.port(p)
	if !ok {
		return false
	}
	if w, ok := sp.uart.(txWindow); ok {
		return w.TxFree() > 0
	}
	return true
}

func (s *Stream) ReadData(p config.Peripheral) byte {
	sp, ok := s.port(p)
	if !ok {
		return 0
	}
	var b [1]byte
	if n, _ := sp.uart.Read(b[:]); n != 1 {
		return 0
	}
	return b[0]
}

// WriteData hands b to the port. On a txWindow port it never blocks; a byte
// written without checking IsTransmitReady first is dropped when the
// buffer is full, like a write to a busy data register.
func (s *Stream) WriteData(p config.Peripheral, b byte) {
	sp, ok := s.port(p)
	if !ok {
		return
	}
	if w, ok := sp.uart.(txWindow); ok {
		sp.wmu.Lock()
		n := w.TryWrite([]byte{b})
		sp.wmu.Unlock()
		if n == 0 {
			println("Warn: [usart]", p.String(), "transmit buffer full, byte dropped")
		}
		return
	}
	sp.write(b)
}

func (sp *streamPort) write(b byte) {
	sp.wmu.Lock()
	_, _ = sp.uart.Write([]byte{b})
	sp.wmu.Unlock()
}

func (s *Stream) ArmAsyncReceive(p config.Peripheral) {
	sp, ok := s.port(p)
	if !ok {
		return
	}
	select {
	case sp.rxArm <- struct{}{}:
	default: // already armed
	}
}

func (s *Stream) ArmAsyncTransmit(p config.Peripheral, b byte) {
	sp, ok := s.port(p)
	if !ok {
		return
	}
	select {
	case sp.txReq <- b:
	default:
		// The engine never arms twice; dropping here would lose a byte.
		panic("platform: transmit armed while busy on " + p.String())
	}
}

func (s *Stream) SetCompletionHandlers(onTx func(config.Peripheral), onRx func(config.Peripheral, byte)) {
	s.mu.Lock()
	s.onTx, s.onRx = onTx, onRx
	s.mu.Unlock()
}

func (s *Stream) handlers() (func(config.Peripheral), func(config.Peripheral, byte)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onTx, s.onRx
}

// ---- workers ----

func (s *Stream) txLoop(ctx context.Context, sp *streamPort) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-sp.txReq:
			sp.write(b)
			if onTx, _ := s.handlers(); onTx != nil {
				onTx(sp.id)
			}
		}
	}
}

func (s *Stream) rxLoop(ctx context.Context, sp *streamPort) {
	defer s.wg.Done()

	var notify <-chan struct{}
	if rn, ok := sp.uart.(readableNotifier); ok {
		notify = rn.Readable()
	}
	tick := time.NewTicker(idlePoll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sp.rxArm:
		}

		// Armed: wait for one byte.
		for sp.uart.Buffered() == 0 {
			select {
			case <-ctx.Done():
				return
			case <-notify: // nil channel when the port has no notifier
			case <-tick.C:
			}
		}
		var b [1]byte
		if n, _ := sp.uart.Read(b[:]); n != 1 {
			// Lost the race with a reader outside the engine; stay armed.
			select {
			case sp.rxArm <- struct{}{}:
			default:
			}
			continue
		}
		if _, onRx := s.handlers(); onRx != nil {
			onRx(sp.id, b[0])
		}
	}
}
