//go:build !rp2040 && !rp2350

package board

// DefaultConsole is a console with no UART behind it; stdout is already
// independent of the system clock on a host.
func DefaultConsole(baud uint32) *Console { return NewConsole(baud) }
