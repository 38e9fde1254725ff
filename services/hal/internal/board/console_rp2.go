//go:build rp2040 || rp2350

package board

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// DefaultConsole drives UART0 on the board-default pins.
func DefaultConsole(baud uint32) *Console {
	c := NewConsole(baud)
	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: c.Baud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	// uartx derives its divisor from the current peripheral clock, so
	// reapplying the rate is enough.
	c.Apply = func(baud, _ uint32) error {
		u.SetBaudRate(baud)
		return nil
	}
	return c
}
