//go:build rp2040 || rp2350

// Command pico-spiclk runs the loop-back sweep and clock demo on a Pico
// and prints every status change it sees on the bus. Jumper SDO to SDI.
package main

import (
	"context"
	"runtime"
	"time"

	"spiclk-go/bus"
	"spiclk-go/services/hal"
	"spiclk-go/services/hal/config"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus …")
	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	uiConn := b.NewConnection("ui")

	for _, t := range []bus.Topic{
		bus.T("hal", "spi", bus.Wildcard, "status"),
		bus.T("hal", "clock", "state"),
		bus.T("hal", "cmd", "result"),
	} {
		mon := uiConn.Subscribe(t)
		go func() {
			for m := range mon.Channel() {
				println("[monitor] <-", m.Topic.String())
			}
		}()
	}

	cfg := config.Default()
	cfg.SPI.Instance = "spi0"
	cfg.SPI.Strategy = "blocking"
	cfg.SPI.SweepMax = 8
	cfg.Clock.Target = "internal"

	sys, err := hal.New(cfg, halConn, nil)
	if err != nil {
		println("[main] bring-up failed:", err.Error())
		return
	}
	go sys.Run(ctx, halConn)

	for {
		if err := sys.Demo(ctx); err != nil {
			println("[main] demo error:", err.Error())
		}
		uiConn.Publish(&bus.Message{Topic: hal.CmdTopic, Payload: "status"})
		printMem()
		time.Sleep(5 * time.Second)
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
// Uses builtin println to avoid fmt overhead/allocations.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
