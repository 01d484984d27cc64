//go:build !baremetal

package platform

import (
	"errors"
	"sync"
	"time"

	"usart-go/errcode"
	"usart-go/services/usart/config"

	"go.bug.st/serial"
)

// serialTxWindow is how many bytes TryWrite accepts ahead of the writer.
const serialTxWindow = 256

// serialPoll is the read timeout of the background reader; it bounds how
// long Close waits for the reader to notice.
const serialPoll = 20 * time.Millisecond

// SerialPort is an OS serial device presented as a TinyGo drivers.UART:
// a background reader keeps a local buffer so Buffered and Read never block,
// and a background writer drains what TryWrite accepted.
type SerialPort struct {
	name string
	port serial.Port

	mu     sync.Mutex
	buf    []byte
	err    error  // first read error; ends the reader
	tx     []byte // accepted by TryWrite, not yet handed to the device
	txBusy int    // bytes inside the current device write

	readable chan struct{}
	txKick   chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

var _ txWindow = (*SerialPort)(nil)

// OpenSerial opens device name with the given line parameters.
func OpenSerial(name string, line config.LineConfig) (*SerialPort, error) {
	if name == "" {
		return nil, &errcode.E{C: errcode.InvalidArgument, Op: "platform.OpenSerial", Msg: "device path is required"}
	}
	mode, err := modeFor(line)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "platform.OpenSerial", err)
	}
	if err := port.SetReadTimeout(serialPoll); err != nil {
		_ = port.Close()
		return nil, errcode.Wrap(errcode.InitFailed, "platform.OpenSerial", err)
	}
	sp := &SerialPort{
		name:     name,
		port:     port,
		readable: make(chan struct{}, 1),
		txKick:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	sp.wg.Add(2)
	go sp.readLoop()
	go sp.writeLoop()
	return sp, nil
}

func (sp *SerialPort) readLoop() {
	defer sp.wg.Done()
	chunk := make([]byte, 256)
	for {
		select {
		case <-sp.done:
			return
		default:
		}
		n, err := sp.port.Read(chunk)
		if n > 0 {
			sp.mu.Lock()
			wasEmpty := len(sp.buf) == 0
			sp.buf = append(sp.buf, chunk[:n]...)
			sp.mu.Unlock()
			if wasEmpty {
				select {
				case sp.readable <- struct{}{}:
				default:
				}
			}
		}
		if err != nil {
			sp.mu.Lock()
			if sp.err == nil {
				sp.err = err
			}
			sp.mu.Unlock()
			select {
			case <-sp.done:
			default:
				println("Warn: serial", sp.name, "reader stopped:", err.Error())
			}
			return
		}
	}
}

func (sp *SerialPort) writeLoop() {
	defer sp.wg.Done()
	for {
		select {
		case <-sp.done:
			return
		case <-sp.txKick:
		}
		for {
			sp.mu.Lock()
			out := sp.tx
			sp.tx, sp.txBusy = nil, len(out)
			sp.mu.Unlock()
			if len(out) == 0 {
				break
			}
			_, err := sp.port.Write(out)
			sp.mu.Lock()
			sp.txBusy = 0
			sp.mu.Unlock()
			if err != nil {
				select {
				case <-sp.done:
					return
				default:
					println("Warn: serial", sp.name, "write failed:", err.Error())
				}
			}
		}
	}
}

// Name returns the device path.
func (sp *SerialPort) Name() string { return sp.name }

// Buffered reports bytes received and not yet read.
func (sp *SerialPort) Buffered() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.buf)
}

// Read copies buffered bytes into p without waiting for more.
func (sp *SerialPort) Read(p []byte) (int, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.buf) == 0 {
		return 0, sp.err
	}
	n := copy(p, sp.buf)
	sp.buf = sp.buf[n:]
	return n, nil
}

// Write goes straight to the device and blocks until it is accepted.
func (sp *SerialPort) Write(p []byte) (int, error) { return sp.port.Write(p) }

// TxFree reports how many bytes TryWrite would accept now.
func (sp *SerialPort) TxFree() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.txFreeLocked()
}

func (sp *SerialPort) txFreeLocked() int {
	return max(serialTxWindow-len(sp.tx)-sp.txBusy, 0)
}

// TryWrite queues as much of p as the transmit window holds and returns the
// count taken. It never blocks.
func (sp *SerialPort) TryWrite(p []byte) int {
	sp.mu.Lock()
	n := min(len(p), sp.txFreeLocked())
	sp.tx = append(sp.tx, p[:n]...)
	sp.mu.Unlock()
	if n > 0 {
		select {
		case sp.txKick <- struct{}{}:
		default:
		}
	}
	return n
}

// Readable is signalled when the receive buffer goes from empty to non-empty.
func (sp *SerialPort) Readable() <-chan struct{} { return sp.readable }

// SetLine reprograms the device.
func (sp *SerialPort) SetLine(line config.LineConfig) error {
	mode, err := modeFor(line)
	if err != nil {
		return err
	}
	return sp.port.SetMode(mode)
}

// Close stops the workers and releases the device.
func (sp *SerialPort) Close() error {
	var err error
	sp.once.Do(func() {
		close(sp.done)
		err = sp.port.Close()
		sp.wg.Wait()
	})
	return err
}

var errNineBitRaw = errors.New("9-bit words without parity are not supported by OS serial drivers")

func modeFor(line config.LineConfig) (*serial.Mode, error) {
	m := &serial.Mode{
		BaudRate: int(line.BaudRate),
		DataBits: int(line.DataBits()),
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if m.DataBits > 8 {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "platform.modeFor", Err: errNineBitRaw}
	}
	switch line.Parity {
	case config.ParityEven:
		m.Parity = serial.EvenParity
	case config.ParityOdd:
		m.Parity = serial.OddParity
	}
	if line.StopBits == config.StopBits2 {
		m.StopBits = serial.TwoStopBits
	}
	return m, nil
}
