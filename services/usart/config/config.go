// Package config is the static configuration table for the USART engine:
// one entry per logical instance, read once at Init time.
package config

import (
	"encoding/json"
	"errors"
	"strings"

	"usart-go/errcode"
	"usart-go/x/mathx"
)

// MaxInstances is the number of logical instances in the reference build.
const MaxInstances = 6

// Peripheral identifies a physical UART block. The zero value is "none".
type Peripheral uint8

const (
	PeripheralNone Peripheral = iota
	USART1
	USART2
	USART3
	UART4
	UART5
	USART6
)

func (p Peripheral) String() string {
	switch p {
	case USART1:
		return "USART1"
	case USART2:
		return "USART2"
	case USART3:
		return "USART3"
	case UART4:
		return "UART4"
	case UART5:
		return "UART5"
	case USART6:
		return "USART6"
	default:
		return "none"
	}
}

// Known reports whether p names a real peripheral.
func (p Peripheral) Known() bool { return p >= USART1 && p <= USART6 }

// AlternateFunction returns the pin mux selection for p:
// AF7 for USART1..3, AF8 for UART4, UART5 and USART6.
func AlternateFunction(p Peripheral) uint8 {
	switch p {
	case USART1, USART2, USART3:
		return 7
	default:
		return 8
	}
}

// GPIOPort names a GPIO bank. The zero value means "not connected".
type GPIOPort uint8

const (
	PortNone GPIOPort = iota
	PortA
	PortB
	PortC
	PortD
	PortE
	PortF
	PortG
	PortH
)

func (g GPIOPort) String() string {
	if g == PortNone || g > PortH {
		return "-"
	}
	return string(rune('A' + int(g-PortA)))
}

// PinConfig is the TX/RX pin assignment of one instance.
type PinConfig struct {
	TxPort GPIOPort
	TxPin  uint8
	RxPort GPIOPort
	RxPin  uint8
}

// Connected reports whether both pins are assigned.
func (p PinConfig) Connected() bool { return p.TxPort != PortNone && p.RxPort != PortNone }

type WordLength uint8

const (
	WordLen8 WordLength = 8
	WordLen9 WordLength = 9
)

type StopBits uint8

const (
	StopBits1 StopBits = 1
	StopBits2 StopBits = 2
)

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

type Oversampling uint8

const (
	Oversampling8  Oversampling = 8
	Oversampling16 Oversampling = 16
)

// LineConfig holds the UART parameters programmed at Init.
type LineConfig struct {
	BaudRate     uint32
	WordLength   WordLength // includes the parity bit when parity is enabled
	StopBits     StopBits
	Parity       Parity
	Oversampling Oversampling
}

// DataBits returns the payload bits per character. The word length counts
// the parity bit, so 8-bit words with parity carry 7 data bits.
func (l LineConfig) DataBits() uint8 {
	w := uint8(l.WordLength)
	if l.Parity != ParityNone {
		w--
	}
	return w
}

// FrameBits returns the bits one character occupies on the wire.
func (l LineConfig) FrameBits() int {
	return 1 + int(l.WordLength) + int(l.StopBits)
}

// Mode selects how an instance moves bytes in one direction.
type Mode uint8

const (
	ModePolled    Mode = iota // periodic drain task polls hardware flags
	ModeInterrupt             // one-byte async transfers chained from completion events
)

func (m Mode) String() string {
	if m == ModeInterrupt {
		return "interrupt"
	}
	return "polled"
}

// Entry is the full configuration of one logical instance.
type Entry struct {
	Peripheral Peripheral
	Pins       PinConfig
	Line       LineConfig
	RxMode     Mode
	TxMode     Mode
}

// Table holds one entry per logical instance, indexed by instance number.
// Unused instances must still be present.
type Table []Entry

func line(baud uint32) LineConfig {
	return LineConfig{
		BaudRate:     baud,
		WordLength:   WordLen8,
		StopBits:     StopBits1,
		Parity:       ParityNone,
		Oversampling: Oversampling8,
	}
}

// Default returns the reference table: USART1 on PB6/PB7 and USART2 on
// PA2/PA3, the remaining instances present with no pins assigned.
// Receive is interrupt driven and transmit is polled.
func Default() Table {
	t := Table{
		{Peripheral: USART1, Pins: PinConfig{TxPort: PortB, TxPin: 6, RxPort: PortB, RxPin: 7}, Line: line(9600)},
		{Peripheral: USART2, Pins: PinConfig{TxPort: PortA, TxPin: 2, RxPort: PortA, RxPin: 3}, Line: line(115200)},
		{Peripheral: USART3, Line: line(9600)},
		{Peripheral: UART4, Line: line(9600)},
		{Peripheral: UART5, Line: line(9600)},
		{Peripheral: USART6, Line: line(9600)},
	}
	for i := range t {
		t[i].RxMode = ModeInterrupt
		t[i].TxMode = ModePolled
	}
	return t
}

// Validate checks that every entry names a distinct, known peripheral and
// carries usable line parameters.
func (t Table) Validate() error {
	if len(t) == 0 {
		return &errcode.E{C: errcode.InvalidArgument, Op: "config.Validate", Msg: "empty table"}
	}
	seen := make(map[Peripheral]int, len(t))
	for i, e := range t {
		if !e.Peripheral.Known() {
			return &errcode.E{C: errcode.UnknownPeripheral, Op: "config.Validate", Msg: "instance " + itoa(i)}
		}
		if j, dup := seen[e.Peripheral]; dup {
			return &errcode.E{C: errcode.InvalidArgument, Op: "config.Validate",
				Msg: e.Peripheral.String() + " used by instances " + itoa(j) + " and " + itoa(i)}
		}
		seen[e.Peripheral] = i
		if err := e.Line.validate(); err != nil {
			return &errcode.E{C: errcode.InvalidArgument, Op: "config.Validate", Msg: "instance " + itoa(i) + ": " + err.Error()}
		}
	}
	return nil
}

func (l LineConfig) validate() error {
	switch {
	case l.BaudRate == 0:
		return errors.New("baud rate is zero")
	case !mathx.Between(l.WordLength, WordLen8, WordLen9):
		return errors.New("word length must be 8 or 9")
	case !mathx.Between(l.StopBits, StopBits1, StopBits2):
		return errors.New("stop bits must be 1 or 2")
	case l.Parity > ParityOdd:
		return errors.New("unknown parity")
	case l.Oversampling != Oversampling8 && l.Oversampling != Oversampling16:
		return errors.New("oversampling must be 8 or 16")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Board overrides (JSON)
// -----------------------------------------------------------------------------

// Baud rates outside this range are clamped when loaded from JSON.
const (
	MinBaud uint32 = 300
	MaxBaud uint32 = 4_500_000
)

type pinJSON struct {
	Port string `json:"port"`
	Pin  int    `json:"pin"`
}

type entryJSON struct {
	Instance     int      `json:"instance"`
	Baud         uint32   `json:"baud,omitempty"`
	WordLength   int      `json:"word_length,omitempty"`
	StopBits     int      `json:"stop_bits,omitempty"`
	Parity       string   `json:"parity,omitempty"` // "none"|"even"|"odd"
	Oversampling int      `json:"oversampling,omitempty"`
	RxMode       string   `json:"rx_mode,omitempty"` // "polled"|"interrupt"
	TxMode       string   `json:"tx_mode,omitempty"`
	TX           *pinJSON `json:"tx,omitempty"`
	RX           *pinJSON `json:"rx,omitempty"`
}

type boardJSON struct {
	USART []entryJSON `json:"usart"`
}

// Load applies the JSON overrides in raw on top of a copy of base.
// Fields left out keep their base value.
func Load(raw []byte, base Table) (Table, error) {
	var doc boardJSON
	if err := decodeJSON(raw, &doc); err != nil {
		return nil, errcode.Wrap(errcode.InvalidArgument, "config.Load", err)
	}
	t := append(Table(nil), base...)
	for _, o := range doc.USART {
		if o.Instance < 0 || o.Instance >= len(t) {
			return nil, &errcode.E{C: errcode.InvalidArgument, Op: "config.Load", Msg: "instance " + itoa(o.Instance) + " out of range"}
		}
		e := &t[o.Instance]
		if o.Baud != 0 {
			e.Line.BaudRate = mathx.Clamp(o.Baud, MinBaud, MaxBaud)
		}
		if o.WordLength != 0 {
			e.Line.WordLength = WordLength(mathx.Clamp(o.WordLength, 8, 9))
		}
		if o.StopBits != 0 {
			e.Line.StopBits = StopBits(mathx.Clamp(o.StopBits, 1, 2))
		}
		if o.Oversampling != 0 {
			if o.Oversampling > 8 {
				e.Line.Oversampling = Oversampling16
			} else {
				e.Line.Oversampling = Oversampling8
			}
		}
		if o.Parity != "" {
			p, ok := parseParity(o.Parity)
			if !ok {
				return nil, badValue(o.Instance, "parity", o.Parity)
			}
			e.Line.Parity = p
		}
		if o.RxMode != "" {
			m, ok := parseMode(o.RxMode)
			if !ok {
				return nil, badValue(o.Instance, "rx_mode", o.RxMode)
			}
			e.RxMode = m
		}
		if o.TxMode != "" {
			m, ok := parseMode(o.TxMode)
			if !ok {
				return nil, badValue(o.Instance, "tx_mode", o.TxMode)
			}
			e.TxMode = m
		}
		if o.TX != nil {
			port, ok := parsePort(o.TX.Port)
			if !ok {
				return nil, badValue(o.Instance, "tx port", o.TX.Port)
			}
			e.Pins.TxPort, e.Pins.TxPin = port, uint8(mathx.Clamp(o.TX.Pin, 0, 15))
		}
		if o.RX != nil {
			port, ok := parsePort(o.RX.Port)
			if !ok {
				return nil, badValue(o.Instance, "rx port", o.RX.Port)
			}
			e.Pins.RxPort, e.Pins.RxPin = port, uint8(mathx.Clamp(o.RX.Pin, 0, 15))
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// EmbeddedConfigLookup allows overriding how board overrides are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// ForBoard returns Default() with the embedded overrides for board applied.
// An unknown board yields the default table.
func ForBoard(board string) (Table, error) {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return Default(), nil
	}
	return Load(raw, Default())
}

func parseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "polled", "poll":
		return ModePolled, true
	case "interrupt", "irq":
		return ModeInterrupt, true
	default:
		return ModePolled, false
	}
}

func badValue(instance int, field, v string) error {
	return &errcode.E{C: errcode.InvalidArgument, Op: "config.Load",
		Msg: "instance " + itoa(instance) + ": unknown " + field + " \"" + v + "\""}
}

func parseParity(s string) (Parity, bool) {
	switch strings.ToLower(s) {
	case "none":
		return ParityNone, true
	case "even":
		return ParityEven, true
	case "odd":
		return ParityOdd, true
	default:
		return ParityNone, false
	}
}

// parsePort accepts "A".."H" with an optional "GPIO" prefix, or "" / "none"
// for an unconnected pin.
func parsePort(s string) (GPIOPort, bool) {
	s = strings.TrimPrefix(strings.ToUpper(s), "GPIO")
	switch {
	case s == "" || s == "NONE":
		return PortNone, true
	case len(s) != 1 || s[0] < 'A' || s[0] > 'H':
		return PortNone, false
	}
	return PortA + GPIOPort(s[0]-'A'), true
}

func decodeJSON[T any](src []byte, dst *T) error {
	return json.Unmarshal(src, dst)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b [20]byte
	n := len(b)
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
