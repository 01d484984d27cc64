// Package usart is the buffered byte transport for the on-chip UARTs.
//
// Each logical instance owns a bounded TX queue and a bounded RX queue.
// Bytes move between those queues and the hardware either from periodic
// drain tasks (polled mode) or from one-byte asynchronous transfers chained
// off completion events (interrupt mode). The mode is chosen per instance
// and per direction by the configuration table.
//
// Every public operation except Init returns immediately with a status.
package usart

import (
	"sync"

	"usart-go/errcode"
	"usart-go/services/usart/config"
	"usart-go/x/byteq"
	"usart-go/x/critical"

	"go.uber.org/atomic"
)

// DefaultQueueCapacity is the number of byte slots in each queue.
const DefaultQueueCapacity = 200

// Adapter is the register-level side of a UART, addressed by peripheral
// identity. Implementations live in the platform package.
//
// ReadData is only valid while IsReceiveReady reports true and WriteData
// only while IsTransmitReady reports true. ArmAsyncReceive and
// ArmAsyncTransmit start a one-byte transfer whose completion is reported
// later through the handlers installed by SetCompletionHandlers, possibly
// from another goroutine or an interrupt.
type Adapter interface {
	EnableClock(p config.Peripheral)
	ConfigurePins(p config.Peripheral, pins config.PinConfig) error
	ConfigureLine(p config.Peripheral, line config.LineConfig) error

	IsReceiveReady(p config.Peripheral) bool
	IsTransmitReady(p config.Peripheral) bool
	ReadData(p config.Peripheral) byte
	WriteData(p config.Peripheral, b byte)

	ArmAsyncReceive(p config.Peripheral)
	ArmAsyncTransmit(p config.Peripheral, b byte)
	SetCompletionHandlers(onTx func(config.Peripheral), onRx func(config.Peripheral, byte))
}

// InitState is the lifecycle state of one instance.
type InitState uint32

const (
	NotInitialized InitState = iota
	InitFailed
	Ready
)

func (s InitState) String() string {
	switch s {
	case InitFailed:
		return "init_failed"
	case Ready:
		return "ready"
	default:
		return "not_initialized"
	}
}

// Options tunes queue allocation.
type Options struct {
	QueueCapacity int // slots per queue; 0 => DefaultQueueCapacity
	HeapBytes     int // total budget for all queues; 0 => unbounded
}

type instance struct {
	cfg   config.Entry
	state atomic.Uint32 // InitState; published after the queues

	// txActive and the txq pop that accompanies it are only touched inside cs.
	cs       critical.Section
	txActive bool

	txq, rxq *byteq.Queue

	// polled paths only (task context); keeps pop+write pairs in order
	txPoll, rxPoll sync.Mutex

	stats stats
}

func (in *instance) ready() bool { return InitState(in.state.Load()) == Ready }

// Engine is the instance table plus the hardware it drives.
type Engine struct {
	hw       Adapter
	insts    []instance
	byPeriph map[config.Peripheral]int // explicit bijection peripheral -> instance
	heap     *byteq.Heap
	qcap     int

	unknownCompletions atomic.Uint32
}

// New builds an engine over hw for the instances in table. The table is
// validated and copied; it is never read again after Init.
func New(hw Adapter, table config.Table, opts Options) (*Engine, error) {
	if hw == nil {
		return nil, &errcode.E{C: errcode.InvalidArgument, Op: "usart.New", Msg: "nil adapter"}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	e := &Engine{
		hw:       hw,
		insts:    make([]instance, len(table)),
		byPeriph: make(map[config.Peripheral]int, len(table)),
		heap:     byteq.NewHeap(opts.HeapBytes),
		qcap:     opts.QueueCapacity,
	}
	for i, ent := range table {
		e.insts[i].cfg = ent
		e.byPeriph[ent.Peripheral] = i
	}
	hw.SetCompletionHandlers(e.txComplete, e.rxComplete)
	return e, nil
}

// Instances returns the number of logical instances.
func (e *Engine) Instances() int { return len(e.insts) }

func (e *Engine) get(i int) (*instance, error) {
	if i < 0 || i >= len(e.insts) {
		return nil, errcode.InvalidArgument
	}
	return &e.insts[i], nil
}

// Init programs instance i and allocates its queues.
//
// Init is not transactional: if queue allocation fails after the hardware
// has been programmed, the hardware stays programmed and the instance stays
// unusable. Callers must not use an instance for which Init returned an
// error, and must not call Init twice on the same instance.
func (e *Engine) Init(i int) error {
	in, err := e.get(i)
	if err != nil {
		return err
	}
	p := in.cfg.Peripheral

	e.hw.EnableClock(p)
	if err := e.hw.ConfigurePins(p, in.cfg.Pins); err != nil {
		in.state.Store(uint32(InitFailed))
		return errcode.Wrap(errcode.InitFailed, "usart.Init", err)
	}
	if err := e.hw.ConfigureLine(p, in.cfg.Line); err != nil {
		in.state.Store(uint32(InitFailed))
		return errcode.Wrap(errcode.InitFailed, "usart.Init", err)
	}

	txq, terr := e.heap.New(e.qcap)
	rxq, rerr := e.heap.New(e.qcap)
	if terr != nil || rerr != nil {
		// Hardware stays programmed; see the Init doc comment.
		in.state.Store(uint32(InitFailed))
		if terr == nil {
			terr = rerr
		}
		return errcode.Wrap(errcode.CreateBufferFailed, "usart.Init", terr)
	}
	in.txq, in.rxq = txq, rxq
	in.state.Store(uint32(Ready))

	if in.cfg.RxMode == config.ModeInterrupt {
		e.hw.ArmAsyncReceive(p)
	}
	return nil
}

// State returns the lifecycle state of instance i.
func (e *Engine) State(i int) (InitState, error) {
	in, err := e.get(i)
	if err != nil {
		return NotInitialized, err
	}
	return InitState(in.state.Load()), nil
}

// Config returns the configuration entry of instance i.
func (e *Engine) Config(i int) (config.Entry, error) {
	in, err := e.get(i)
	if err != nil {
		return config.Entry{}, err
	}
	return in.cfg, nil
}

// Pending reports the number of bytes waiting in the TX and RX queues.
func (e *Engine) Pending(i int) (tx, rx int, err error) {
	in, err := e.ready(i)
	if err != nil {
		return 0, 0, err
	}
	return in.txq.Len(), in.rxq.Len(), nil
}

// Readable returns a coalesced notification sent when instance i's RX queue
// goes from empty to non-empty. Callers must re-check with ReceiveByte.
func (e *Engine) Readable(i int) (<-chan struct{}, error) {
	in, err := e.ready(i)
	if err != nil {
		return nil, err
	}
	return in.rxq.Readable(), nil
}

// ready validates i and requires a successfully initialised instance.
func (e *Engine) ready(i int) (*instance, error) {
	in, err := e.get(i)
	if err != nil {
		return nil, err
	}
	if !in.ready() {
		return nil, errcode.NotInitialized
	}
	return in, nil
}
