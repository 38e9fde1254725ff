package spi

import (
	"fmt"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/spi/frame"
)

const (
	DefaultBitRate = 100000
	DefaultWidth   = 8
)

// Config is applied by Engine.Configure and is immutable afterwards.
type Config struct {
	Role      halcore.Role
	Interface halcore.InterfaceMode
	Mode      halcore.ClockMode
	Width     uint8
	BitRate   uint32
	UseDMATX  bool
	UseDMARX  bool
}

// DefaultConfig is a 4-wire controller in mode 0, 8-bit frames at 100 kHz.
func DefaultConfig() Config {
	return Config{
		Role:      halcore.RoleController,
		Interface: halcore.InterfaceStandard,
		Mode:      0,
		Width:     DefaultWidth,
		BitRate:   DefaultBitRate,
	}
}

// DMA reports whether both directions are routed through DMA.
func (c Config) DMA() bool { return c.UseDMATX && c.UseDMARX }

func (c Config) port() halcore.PortConfig {
	return halcore.PortConfig{
		Role:      c.Role,
		Interface: c.Interface,
		Mode:      c.Mode,
		Width:     c.Width,
		BitRate:   c.BitRate,
		DMA:       c.UseDMATX || c.UseDMARX,
	}
}

func (c Config) validate(maxRate uint32) error {
	switch {
	case !frame.ValidWidth(c.Width):
		return errcode.New(errcode.ConfigError, "spi.configure", fmt.Sprintf("width %d", c.Width))
	case c.BitRate == 0:
		return errcode.New(errcode.ConfigError, "spi.configure", "zero bit rate")
	case maxRate != 0 && c.BitRate > maxRate:
		return errcode.New(errcode.ConfigError, "spi.configure",
			fmt.Sprintf("bit rate %d above %d", c.BitRate, maxRate))
	case c.Mode > 3:
		return errcode.New(errcode.ConfigError, "spi.configure", fmt.Sprintf("mode %d", c.Mode))
	}
	return nil
}
