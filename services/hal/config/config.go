// Package config holds the demo and bring-up parameters: compiled-in
// defaults, optionally overridden from a TOML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/spi"
	"spiclk-go/services/hal/internal/spi/frame"
)

type Config struct {
	SPI     SPI
	Clock   Clock
	Console Console
	Demo    Demo
}

type SPI struct {
	Instance string
	BitRate  uint32
	Width    uint8
	Mode     uint8 // clock mode 0..3
	Strategy string
	DataLen  int
	Pattern  uint16
	SweepMin uint8
	SweepMax uint8
	Deassert bool
	Timeout  time.Duration
}

type Clock struct {
	Target           string
	InternalHz       uint32
	LowPowerHz       uint32
	ExternalHz       uint32
	ExternalPresent  bool
	StabilizeTimeout time.Duration
	Revert           bool
}

type Console struct {
	Baud        uint32
	Interactive bool
}

type Demo struct {
	Countdown int
	Count     int
	Interval  time.Duration
}

func Default() Config {
	return Config{
		SPI: SPI{
			Instance: "spi1",
			BitRate:  spi.DefaultBitRate,
			Width:    spi.DefaultWidth,
			Strategy: "dma",
			DataLen:  100,
			Pattern:  0xA5B7,
			SweepMin: frame.MinWidth,
			SweepMax: frame.MaxWidth,
			Deassert: true,
			Timeout:  time.Second,
		},
		Clock: Clock{
			Target:           "external",
			InternalHz:       100_000_000,
			LowPowerHz:       131_072,
			ExternalHz:       8_000_000,
			ExternalPresent:  true,
			StabilizeTimeout: 50 * time.Millisecond,
			Revert:           true,
		},
		Console: Console{Baud: 115200},
		Demo: Demo{
			Countdown: 3,
			Count:     10,
			Interval:  time.Second,
		},
	}
}

type fileConfig struct {
	SPI struct {
		Instance string `toml:"instance"`
		BitRate  uint32 `toml:"bit_rate"`
		Width    uint8  `toml:"width"`
		Mode     uint8  `toml:"mode"`
		Strategy string `toml:"strategy"`
		DataLen  int    `toml:"data_len"`
		Pattern  uint16 `toml:"pattern"`
		SweepMin uint8  `toml:"sweep_min"`
		SweepMax uint8  `toml:"sweep_max"`
		Deassert bool   `toml:"deassert"`
		Timeout  string `toml:"timeout"`
	} `toml:"spi"`
	Clock struct {
		Target           string `toml:"target"`
		InternalHz       uint32 `toml:"internal_hz"`
		LowPowerHz       uint32 `toml:"lowpower_hz"`
		ExternalHz       uint32 `toml:"external_hz"`
		ExternalPresent  bool   `toml:"external_present"`
		StabilizeTimeout string `toml:"stabilize_timeout"`
		Revert           bool   `toml:"revert"`
	} `toml:"clock"`
	Console struct {
		Baud        uint32 `toml:"baud"`
		Interactive bool   `toml:"interactive"`
	} `toml:"console"`
	Demo struct {
		Countdown int    `toml:"countdown"`
		Count     int    `toml:"count"`
		Interval  string `toml:"interval"`
	} `toml:"demo"`
}

// Load applies the keys present in the TOML file at path over Default and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undec[0].String())
	}

	if meta.IsDefined("spi", "instance") {
		cfg.SPI.Instance = strings.TrimSpace(raw.SPI.Instance)
	}
	if meta.IsDefined("spi", "bit_rate") {
		cfg.SPI.BitRate = raw.SPI.BitRate
	}
	if meta.IsDefined("spi", "width") {
		cfg.SPI.Width = raw.SPI.Width
	}
	if meta.IsDefined("spi", "mode") {
		cfg.SPI.Mode = raw.SPI.Mode
	}
	if meta.IsDefined("spi", "strategy") {
		cfg.SPI.Strategy = strings.ToLower(strings.TrimSpace(raw.SPI.Strategy))
	}
	if meta.IsDefined("spi", "data_len") {
		cfg.SPI.DataLen = raw.SPI.DataLen
	}
	if meta.IsDefined("spi", "pattern") {
		cfg.SPI.Pattern = raw.SPI.Pattern
	}
	if meta.IsDefined("spi", "sweep_min") {
		cfg.SPI.SweepMin = raw.SPI.SweepMin
	}
	if meta.IsDefined("spi", "sweep_max") {
		cfg.SPI.SweepMax = raw.SPI.SweepMax
	}
	if meta.IsDefined("spi", "deassert") {
		cfg.SPI.Deassert = raw.SPI.Deassert
	}
	if meta.IsDefined("spi", "timeout") {
		if cfg.SPI.Timeout, err = parseDuration("spi.timeout", raw.SPI.Timeout); err != nil {
			return Config{}, err
		}
	}

	if meta.IsDefined("clock", "target") {
		cfg.Clock.Target = strings.ToLower(strings.TrimSpace(raw.Clock.Target))
	}
	if meta.IsDefined("clock", "internal_hz") {
		cfg.Clock.InternalHz = raw.Clock.InternalHz
	}
	if meta.IsDefined("clock", "lowpower_hz") {
		cfg.Clock.LowPowerHz = raw.Clock.LowPowerHz
	}
	if meta.IsDefined("clock", "external_hz") {
		cfg.Clock.ExternalHz = raw.Clock.ExternalHz
	}
	if meta.IsDefined("clock", "external_present") {
		cfg.Clock.ExternalPresent = raw.Clock.ExternalPresent
	}
	if meta.IsDefined("clock", "stabilize_timeout") {
		if cfg.Clock.StabilizeTimeout, err = parseDuration("clock.stabilize_timeout", raw.Clock.StabilizeTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("clock", "revert") {
		cfg.Clock.Revert = raw.Clock.Revert
	}

	if meta.IsDefined("console", "baud") {
		cfg.Console.Baud = raw.Console.Baud
	}
	if meta.IsDefined("console", "interactive") {
		cfg.Console.Interactive = raw.Console.Interactive
	}

	if meta.IsDefined("demo", "countdown") {
		cfg.Demo.Countdown = raw.Demo.Countdown
	}
	if meta.IsDefined("demo", "count") {
		cfg.Demo.Count = raw.Demo.Count
	}
	if meta.IsDefined("demo", "interval") {
		if cfg.Demo.Interval, err = parseDuration("demo.interval", raw.Demo.Interval); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func (c Config) Validate() error {
	s := c.SPI
	switch {
	case s.Instance == "":
		return fmt.Errorf("spi.instance is empty")
	case s.BitRate == 0:
		return fmt.Errorf("spi.bit_rate must be positive")
	case !frame.ValidWidth(s.Width):
		return fmt.Errorf("spi.width %d outside %d..%d", s.Width, frame.MinWidth, frame.MaxWidth)
	case s.Mode > 3:
		return fmt.Errorf("spi.mode %d outside 0..3", s.Mode)
	case s.DataLen <= 0:
		return fmt.Errorf("spi.data_len must be positive")
	case !frame.ValidWidth(s.SweepMin) || !frame.ValidWidth(s.SweepMax) || s.SweepMin > s.SweepMax:
		return fmt.Errorf("spi sweep %d..%d invalid", s.SweepMin, s.SweepMax)
	case s.Timeout <= 0:
		return fmt.Errorf("spi.timeout must be positive")
	}
	if _, ok := spi.ParseMode(s.Strategy); !ok {
		return fmt.Errorf("spi.strategy %q unknown", s.Strategy)
	}
	if _, ok := halcore.ParseClockSource(c.Clock.Target); !ok {
		return fmt.Errorf("clock.target %q unknown", c.Clock.Target)
	}
	if c.Clock.InternalHz == 0 || c.Clock.LowPowerHz == 0 || c.Clock.ExternalHz == 0 {
		return fmt.Errorf("clock frequencies must be positive")
	}
	if c.Console.Baud == 0 {
		return fmt.Errorf("console.baud must be positive")
	}
	if c.Demo.Count < 0 || c.Demo.Countdown < 0 {
		return fmt.Errorf("demo counts must not be negative")
	}
	return nil
}

// SPIConfig is the engine configuration for width w.
func (c Config) SPIConfig(w uint8) spi.Config {
	cfg := spi.DefaultConfig()
	cfg.Width = w
	cfg.BitRate = c.SPI.BitRate
	cfg.Mode = halcore.ClockMode(c.SPI.Mode)
	if c.SPI.Strategy == "dma" {
		cfg.UseDMATX, cfg.UseDMARX = true, true
	}
	return cfg
}
