package config

import (
	"errors"
	"strings"
	"testing"

	"usart-go/errcode"
)

func TestDefaultMatchesReferenceBuild(t *testing.T) {
	tab := Default()
	if len(tab) != MaxInstances {
		t.Fatalf("len=%d want %d", len(tab), MaxInstances)
	}
	if err := tab.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	u2 := tab[1]
	if u2.Peripheral != USART2 || u2.Line.BaudRate != 115200 {
		t.Fatalf("instance 1 = %+v", u2)
	}
	if u2.Pins != (PinConfig{TxPort: PortA, TxPin: 2, RxPort: PortA, RxPin: 3}) {
		t.Fatalf("instance 1 pins = %+v", u2.Pins)
	}
	if u2.RxMode != ModeInterrupt || u2.TxMode != ModePolled {
		t.Fatalf("modes rx=%v tx=%v", u2.RxMode, u2.TxMode)
	}
	if tab[5].Pins.Connected() {
		t.Fatal("unused instance should have no pins")
	}
}

func TestValidateRejectsDuplicatePeripheral(t *testing.T) {
	tab := Default()
	tab[3].Peripheral = USART1
	err := tab.Validate()
	if !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("err=%v want invalid_argument", err)
	}
}

func TestValidateRejectsUnknownPeripheral(t *testing.T) {
	tab := Default()
	tab[2].Peripheral = PeripheralNone
	if err := tab.Validate(); !errors.Is(err, errcode.UnknownPeripheral) {
		t.Fatalf("err=%v want unknown_peripheral", err)
	}
}

func TestValidateRejectsBadLine(t *testing.T) {
	tab := Default()
	tab[0].Line.Oversampling = 4
	if err := tab.Validate(); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("err=%v", err)
	}
	tab = Default()
	tab[0].Line.BaudRate = 0
	if err := tab.Validate(); err == nil {
		t.Fatal("zero baud accepted")
	}
}

func TestLoadOverrides(t *testing.T) {
	raw := []byte(`{"usart":[{"instance":2,"baud":10,"parity":"even","word_length":9,
		"tx_mode":"interrupt","tx":{"port":"c","pin":10},"rx":{"port":"GPIOC","pin":99}}]}`)
	tab, err := Load(raw, Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e := tab[2]
	if e.Line.BaudRate != MinBaud {
		t.Errorf("baud=%d want clamped %d", e.Line.BaudRate, MinBaud)
	}
	if e.Line.Parity != ParityEven || e.Line.WordLength != WordLen9 {
		t.Errorf("line=%+v", e.Line)
	}
	if e.TxMode != ModeInterrupt || e.RxMode != ModeInterrupt {
		t.Errorf("modes rx=%v tx=%v", e.RxMode, e.TxMode)
	}
	if e.Pins != (PinConfig{TxPort: PortC, TxPin: 10, RxPort: PortC, RxPin: 15}) {
		t.Errorf("pins=%+v", e.Pins)
	}
	// base untouched
	if Default()[2].Line.BaudRate != 9600 {
		t.Error("Default mutated")
	}
}

func TestLoadRejectsOutOfRangeInstance(t *testing.T) {
	_, err := Load([]byte(`{"usart":[{"instance":6}]}`), Default())
	if !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("err=%v", err)
	}
	_, err = Load([]byte(`{"usart":`), Default())
	if !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("malformed json err=%v", err)
	}
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	cases := map[string]string{
		"parity":  `{"usart":[{"instance":1,"parity":"evn"}]}`,
		"rx_mode": `{"usart":[{"instance":1,"rx_mode":"dma"}]}`,
		"tx_mode": `{"usart":[{"instance":1,"tx_mode":"interupt"}]}`,
		"tx port": `{"usart":[{"instance":1,"tx":{"port":"Z","pin":2}}]}`,
		"rx port": `{"usart":[{"instance":1,"rx":{"port":"GPIOAB","pin":3}}]}`,
	}
	for field, raw := range cases {
		_, err := Load([]byte(raw), Default())
		if !errors.Is(err, errcode.InvalidArgument) {
			t.Fatalf("%s: err=%v want invalid_argument", field, err)
		}
		if !strings.Contains(err.Error(), field) {
			t.Errorf("%s: error %q does not name the field", field, err)
		}
	}
}

func TestLoadAcceptsExplicitNoneAndCase(t *testing.T) {
	raw := []byte(`{"usart":[{"instance":1,"parity":"NONE","rx_mode":"Polled",
		"tx":{"port":"none","pin":0},"rx":{"port":"","pin":0}}]}`)
	base := Default()
	base[1].Line.Parity = ParityOdd
	tab, err := Load(raw, base)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e := tab[1]
	if e.Line.Parity != ParityNone || e.RxMode != ModePolled {
		t.Errorf("parity=%v rx=%v", e.Line.Parity, e.RxMode)
	}
	if e.Pins.Connected() {
		t.Errorf("pins=%+v want unconnected", e.Pins)
	}
}

func TestForBoard(t *testing.T) {
	tab, err := ForBoard("pico")
	if err != nil {
		t.Fatalf("ForBoard: %v", err)
	}
	if tab[0].TxMode != ModeInterrupt || tab[1].RxMode != ModePolled {
		t.Fatalf("pico overrides not applied: %+v %+v", tab[0], tab[1])
	}

	old := EmbeddedConfigLookup
	defer func() { EmbeddedConfigLookup = old }()
	EmbeddedConfigLookup = func(string) ([]byte, bool) { return nil, false }
	tab, err = ForBoard("nope")
	if err != nil || tab[1].Line.BaudRate != 115200 {
		t.Fatalf("unknown board should give defaults: %v %+v", err, tab[1])
	}
}

func TestLineHelpers(t *testing.T) {
	l := LineConfig{BaudRate: 9600, WordLength: WordLen8, StopBits: StopBits1, Parity: ParityNone, Oversampling: Oversampling16}
	if l.DataBits() != 8 || l.FrameBits() != 10 {
		t.Fatalf("8N1 data=%d frame=%d", l.DataBits(), l.FrameBits())
	}
	l.Parity = ParityOdd
	if l.DataBits() != 7 {
		t.Fatalf("8-bit word with parity carries 7 data bits, got %d", l.DataBits())
	}
	l.WordLength, l.StopBits = WordLen9, StopBits2
	if l.FrameBits() != 12 {
		t.Fatalf("frame=%d want 12", l.FrameBits())
	}
	if AlternateFunction(USART3) != 7 || AlternateFunction(UART4) != 8 || AlternateFunction(USART6) != 8 {
		t.Fatal("alternate function mapping wrong")
	}
	if PortC.String() != "C" || PortNone.String() != "-" {
		t.Fatal("port names wrong")
	}
}
