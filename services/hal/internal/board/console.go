package board

import (
	"fmt"
	"sync"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/x/mathx"
)

// DefaultConsoleBaud is the console UART rate.
const DefaultConsoleBaud = 115200

// ConsoleDivisor is the 16x oversampling baud divisor for sysHz, rounded
// to nearest. Zero means the baud rate is unreachable.
func ConsoleDivisor(sysHz, baud uint32) uint32 {
	if baud == 0 {
		return 0
	}
	return mathx.RoundDiv(sysHz, 16*baud)
}

// Console is the console UART as a clock dependent: its divisor is
// derived from the system clock and must follow it.
type Console struct {
	Baud uint32

	// Apply programs the UART; nil on hosts without one.
	Apply func(baud, div uint32) error

	mu  sync.Mutex
	div uint32
	hz  uint32
}

var _ halcore.ClockDependent = (*Console)(nil)

func NewConsole(baud uint32) *Console {
	if baud == 0 {
		baud = DefaultConsoleBaud
	}
	return &Console{Baud: baud}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Reinit(sysHz uint32) error {
	div := ConsoleDivisor(sysHz, c.Baud)
	if div == 0 {
		return errcode.New(errcode.ConfigError, "console.reinit",
			fmt.Sprintf("%d baud unreachable at %d Hz", c.Baud, sysHz))
	}
	if c.Apply != nil {
		if err := c.Apply(c.Baud, div); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.div, c.hz = div, sysHz
	c.mu.Unlock()
	return nil
}

// Divisor is the divisor in use, 0 before the first Reinit.
func (c *Console) Divisor() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.div
}

// ActualBaud is the rate the programmed divisor produces.
func (c *Console) ActualBaud() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.div == 0 {
		return 0
	}
	return c.hz / (16 * c.div)
}
