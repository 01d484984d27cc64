//go:build !rp2040 && !rp2350

package platform

import (
	"usart-go/services/usart/config"

	"tinygo.org/x/drivers"
)

// DefaultPorts returns the UARTs wired on this board. Host builds have none;
// use OpenSerial or Sim instead.
func DefaultPorts(config.Table) map[config.Peripheral]drivers.UART {
	return map[config.Peripheral]drivers.UART{}
}
