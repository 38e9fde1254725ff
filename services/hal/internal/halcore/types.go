// services/hal/internal/halcore/types.go
package halcore

// PeripheralID is an opaque peripheral instance identifier, e.g. "spi1".
type PeripheralID string

// ---- Interrupts ----

// Vector is an interrupt vector number. Zero means "no vector".
type Vector uint16

// Handler runs in interrupt context: it must not block.
type Handler func()

// Raiser is the hardware side of an interrupt controller. Peripheral models
// call Raise when their interrupt line fires.
type Raiser interface {
	Raise(v Vector) bool
}

// ---- Serial peripheral ----

type Role uint8

const (
	RoleController Role = iota
	RolePeripheral
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RolePeripheral:
		return "peripheral"
	default:
		return "unknown"
	}
}

type InterfaceMode uint8

const (
	InterfaceStandard InterfaceMode = iota // 4-wire full duplex
	Interface3Wire                         // half duplex, shared data line
	InterfaceDual
	InterfaceQuad
)

func (m InterfaceMode) String() string {
	switch m {
	case InterfaceStandard:
		return "standard"
	case Interface3Wire:
		return "3wire"
	case InterfaceDual:
		return "dual"
	case InterfaceQuad:
		return "quad"
	default:
		return "unknown"
	}
}

// ClockMode is the SPI mode 0..3.
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type ClockMode uint8

func (m ClockMode) CPOL() bool { return m&0b10 != 0 }
func (m ClockMode) CPHA() bool { return m&0b01 != 0 }

// PortConfig is what a port needs to program its registers.
type PortConfig struct {
	Role      Role
	Interface InterfaceMode
	Mode      ClockMode
	Width     uint8
	BitRate   uint32
	DMA       bool
}

// Xfer describes one transaction. TX/RX are frame storage (see frame
// package for the layout); they are nil for DMA-driven transfers.
type Xfer struct {
	TX, RX   []uint16
	Count    int
	Width    uint8
	Deassert bool // release chip-select when the last frame is clocked
}

// SPIPort is the register-level view of one serial peripheral instance.
type SPIPort interface {
	ID() PeripheralID
	MaxBitRate() uint32
	Configure(cfg PortConfig) error
	Shutdown() error

	// Begin arms a transfer; frames move on each Service call.
	Begin(x Xfer) error
	// Service moves what the FIFOs allow and reports the completion flag.
	Service() (done bool, err error)
	// Abort stops the current transfer without waiting for the wire.
	Abort()
}

// IRQPort is a port that raises its own vector while a transfer is active.
type IRQPort interface {
	SPIPort
	Vector() Vector
	EnableIRQ(on bool)
}

// DMAPort is a port whose data registers can be driven by DMA channels.
type DMAPort interface {
	SPIPort
	BeginDMA(x Xfer) error
	WriteData(v uint16) bool
	ReadData() (uint16, bool)
}

// ---- DMA ----

type Direction uint8

const (
	DirMemToPeriph Direction = iota // transmit
	DirPeriphToMem                  // receive
)

func (d Direction) String() string {
	if d == DirMemToPeriph {
		return "tx"
	}
	return "rx"
}

// DMARequest programs one channel for a peripheral transfer.
type DMARequest struct {
	Dir   Direction
	Mem   []uint16
	Count int
	Width uint8
	Port  DMAPort
}

// DMAController exposes raw channels. Channel ownership is handled by the
// dma package; the controller itself does not arbitrate.
type DMAController interface {
	Channels() int
	Vector(ch int) Vector
	// Start runs the request and raises Vector(ch) when it ends.
	Start(ch int, req DMARequest) error
	// Result is the outcome of the last run on ch.
	Result(ch int) error
	// Stop halts ch and returns once the channel no longer touches memory.
	Stop(ch int)
}

// ---- System clock ----

type ClockSource uint8

const (
	ClockInternal ClockSource = iota // primary internal oscillator (IPO)
	ClockLowPower                    // internal low-power oscillator (INRO)
	ClockExternal                    // external clock input (EXTCLK)
)

func (s ClockSource) String() string {
	switch s {
	case ClockInternal:
		return "internal"
	case ClockLowPower:
		return "lowpower"
	case ClockExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseClockSource maps a config/console name to a source.
func ParseClockSource(s string) (ClockSource, bool) {
	switch s {
	case "internal", "ipo":
		return ClockInternal, true
	case "lowpower", "inro":
		return ClockLowPower, true
	case "external", "extclk":
		return ClockExternal, true
	}
	return 0, false
}

// ClockHW is the system clock mux.
type ClockHW interface {
	Current() ClockSource
	Frequency(src ClockSource) uint32
	// Enable starts the source (oscillator or input buffer).
	Enable(src ClockSource) error
	// Enabled reports whether src is currently started.
	Enabled(src ClockSource) bool
	// Disable stops src. The active source is never stopped.
	Disable(src ClockSource)
	// Ready reports whether src is present and stable.
	Ready(src ClockSource) bool
	// Select switches the system clock. On error the previous source stays.
	Select(src ClockSource) error
}

// ClockDependent is a peripheral whose timing derives from the system clock
// and must be reprogrammed after a switch (console UART, timers).
type ClockDependent interface {
	Name() string
	Reinit(sysHz uint32) error
}
