//go:build rp2040 || rp2350

package platform

import (
	"machine"

	"usart-go/services/usart/config"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
)

// DefaultPorts configures uart0 as USART1 and uart1 as USART2 using the pins
// and baud rate of the matching table entries. Port A pin n maps to GPn;
// other banks do not exist on the RP2 family and fall back to board defaults.
func DefaultPorts(t config.Table) map[config.Peripheral]drivers.UART {
	ports := make(map[config.Peripheral]drivers.UART, 2)
	for _, e := range t {
		var hw *uartx.UART
		switch e.Peripheral {
		case config.USART1:
			hw = uartx.UART0
		case config.USART2:
			hw = uartx.UART1
		default:
			continue
		}
		cfg := uartx.UARTConfig{BaudRate: e.Line.BaudRate}
		if e.Pins.TxPort == config.PortA && e.Pins.RxPort == config.PortA {
			cfg.TX = machine.Pin(e.Pins.TxPin)
			cfg.RX = machine.Pin(e.Pins.RxPin)
		}
		// Defaults inside uartx apply to zero fields.
		_ = hw.Configure(cfg)
		ports[e.Peripheral] = &rp2Port{UART: hw}
	}
	return ports
}

// rp2Port adds LineSetter to a uartx port. TxFree and TryWrite come from
// uartx, so polled transmit never waits on the TX ring.
type rp2Port struct{ *uartx.UART }

var _ txWindow = (*rp2Port)(nil)

func (p *rp2Port) SetLine(line config.LineConfig) error {
	p.UART.SetBaudRate(line.BaudRate)
	var par uartx.UARTParity
	switch line.Parity {
	case config.ParityEven:
		par = uartx.ParityEven
	case config.ParityOdd:
		par = uartx.ParityOdd
	default:
		par = uartx.ParityNone
	}
	return p.UART.SetFormat(line.DataBits(), uint8(line.StopBits), par)
}
