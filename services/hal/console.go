package hal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/spi"
	"spiclk-go/services/hal/internal/spi/frame"
)

var ErrQuit = errors.New("quit")

const consoleHelp = `commands:
  status                          engine and clock state
  spi sweep [mode] [instance]     loop-back sweep over the configured widths
  spi xfer <mode> [width] [n]     one loop-back transfer of n frames
  spi tx <byte>...                bytes through the drivers.SPI view
  spi abort [instance]            cancel the in-flight transfer
  clock switch <source>           internal | lowpower | external
  clock demo [source]             countdown, switch, count, revert
  clock state
  help | quit`

// Exec runs one console command line and returns its output.
func (s *System) Exec(ctx context.Context, line string) (string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return "", nil
	}
	switch args[0] {
	case "help", "?":
		return consoleHelp, nil
	case "quit", "exit":
		return "", ErrQuit
	case "status":
		return s.statusText(), nil
	case "spi":
		return s.execSPI(ctx, args[1:])
	case "clock":
		return s.execClock(ctx, args[1:])
	}
	return "", fmt.Errorf("unknown command %q (try help)", args[0])
}

func (s *System) execSPI(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("usage: spi sweep|xfer|tx|abort")
	}
	switch args[0] {
	case "sweep":
		var strategy spi.Strategy
		if len(args) > 1 {
			var ok bool
			if strategy, ok = spi.ParseMode(args[1]); !ok {
				return "", fmt.Errorf("unknown mode %q", args[1])
			}
		}
		instance := ""
		if len(args) > 2 {
			instance = args[2]
		}
		rs, err := s.Sweep(ctx, instance, strategy)
		var b strings.Builder
		for _, r := range rs {
			fmt.Fprintf(&b, "width %2d: %s\n", r.Width, r.Code)
		}
		if err != nil {
			return b.String(), err
		}
		if Passed(rs) {
			b.WriteString("PASS")
		} else {
			b.WriteString("FAIL")
		}
		return b.String(), nil

	case "xfer":
		if len(args) < 2 {
			return "", errors.New("usage: spi xfer <mode> [width] [n]")
		}
		strategy, ok := spi.ParseMode(args[1])
		if !ok {
			return "", fmt.Errorf("unknown mode %q", args[1])
		}
		w := s.cfg.SPI.Width
		if len(args) > 2 {
			v, err := strconv.ParseUint(args[2], 10, 8)
			if err != nil {
				return "", fmt.Errorf("width: %w", err)
			}
			w = uint8(v)
		}
		n := s.cfg.SPI.DataLen
		if len(args) > 3 {
			var err error
			if n, err = strconv.Atoi(args[3]); err != nil {
				return "", fmt.Errorf("count: %w", err)
			}
		}
		return s.xfer(ctx, strategy, w, n)

	case "tx":
		if len(args) < 2 {
			return "", errors.New("usage: spi tx <byte>...")
		}
		out := make([]byte, len(args)-1)
		for i, a := range args[1:] {
			v, err := strconv.ParseUint(a, 0, 8)
			if err != nil {
				return "", fmt.Errorf("byte %d: %w", i, err)
			}
			out[i] = byte(v)
		}
		return s.tx(out)

	case "abort":
		instance := ""
		if len(args) > 1 {
			instance = args[1]
		}
		e, err := s.Engine(instance)
		if err != nil {
			return "", err
		}
		return "ok", e.Abort()
	}
	return "", fmt.Errorf("unknown spi command %q", args[0])
}

func (s *System) xfer(ctx context.Context, strategy spi.Strategy, w uint8, n int) (string, error) {
	e, err := s.Engine("")
	if err != nil {
		return "", err
	}
	cfg := s.cfg.SPIConfig(w)
	cfg.UseDMATX = strategy.Mode() == spi.ModeDMA
	cfg.UseDMARX = cfg.UseDMATX
	if err := e.Configure(cfg); err != nil {
		return "", err
	}
	if n <= 0 {
		return "", errcode.New(errcode.ConfigError, "hal.xfer", "count must be positive")
	}
	p := s.cfg.SPI.Pattern
	req := &spi.Request{TX: frame.Fill(p, n), RX: make([]uint16, n), Count: n, SSDeassert: s.cfg.SPI.Deassert}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.SPI.Timeout)
	defer cancel()
	start := time.Now()
	if err := e.Transfer(tctx, req, strategy); err != nil {
		return "", err
	}
	if i := frame.Compare(req.RX, frame.Expected(p, w, n)); i >= 0 {
		return "", errcode.New(errcode.CommError, "hal.xfer", fmt.Sprintf("mismatch at unit %d", i))
	}
	return fmt.Sprintf("%d frames of %d bits ok in %s", n, w, time.Since(start).Round(time.Microsecond)), nil
}

// tx sends bytes through the engine's drivers.SPI view at the configured
// width, which must be 8 bits or narrower.
func (s *System) tx(w []byte) (string, error) {
	e, err := s.Engine("")
	if err != nil {
		return "", err
	}
	cfg := s.cfg.SPIConfig(s.cfg.SPI.Width)
	cfg.UseDMATX, cfg.UseDMARX = false, false
	if err := e.Configure(cfg); err != nil {
		return "", err
	}
	r := make([]byte, len(w))
	if err := s.DriversBus(e).Tx(w, r); err != nil {
		return "", err
	}
	var b strings.Builder
	for i, v := range r {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", v)
	}
	return b.String(), nil
}

func (s *System) execClock(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("usage: clock switch|demo|state")
	}
	switch args[0] {
	case "state":
		return s.clockText(), nil
	case "switch", "demo":
		target, ok := halcore.ClockSource(0), false
		if len(args) > 1 {
			target, ok = halcore.ParseClockSource(args[1])
		} else if args[0] == "demo" {
			target, ok = halcore.ParseClockSource(s.cfg.Clock.Target)
		}
		if !ok {
			return "", errors.New("usage: clock " + args[0] + " <internal|lowpower|external>")
		}
		var err error
		if args[0] == "switch" {
			err = s.clock.Switch(ctx, target)
		} else {
			err = s.ClockDemo(ctx, target)
		}
		return s.clockText(), err
	}
	return "", fmt.Errorf("unknown clock command %q", args[0])
}

func (s *System) clockText() string {
	st := s.clock.State()
	return fmt.Sprintf("clock %s %d Hz valid=%t console=%d baud",
		st.Source, st.FrequencyHz, st.DependentsValid, s.consoleBaud())
}

func (s *System) statusText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "platform %s\n", s.platName)
	for _, id := range s.Instances() {
		e := s.engines[halcore.PeripheralID(id)]
		st := e.Status()
		fmt.Fprintf(&b, "%s %s width=%d last=%s\n", id, st.State, st.Width, st.Last)
	}
	if a := s.plat.DMA; a != nil && a.Controller() != nil {
		n := a.Controller().Channels()
		fmt.Fprintf(&b, "dma %d/%d in use\n", a.InUse(), n)
		for ch := 0; ch < n; ch++ {
			if owner, ok := a.OwnerOf(ch); ok {
				fmt.Fprintf(&b, "dma ch%d %s\n", ch, owner)
			}
		}
	}
	b.WriteString(s.clockText())
	return b.String()
}

// Serve reads command lines from r until EOF, quit or ctx ends, writing
// output and errors to w.
func (s *System) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	fmt.Fprint(w, "> ")
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := s.Exec(ctx, sc.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
		fmt.Fprint(w, "> ")
	}
	return sc.Err()
}
