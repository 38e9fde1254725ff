package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spiclk.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, uint32(100000), cfg.SPI.BitRate)
	require.Equal(t, uint8(8), cfg.SPI.Width)
	require.Equal(t, 100, cfg.SPI.DataLen)
	require.Equal(t, uint16(0xA5B7), cfg.SPI.Pattern)
	require.Equal(t, uint32(115200), cfg.Console.Baud)
	require.Equal(t, Demo{Countdown: 3, Count: 10, Interval: time.Second}, cfg.Demo)
}

func TestLoadOverridesOnlyPresentKeys(t *testing.T) {
	path := writeTOML(t, `
[spi]
width = 12
strategy = "Interrupt"
timeout = "250ms"

[clock]
external_present = false

[demo]
interval = "10ms"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.SPI.Width = 12
	want.SPI.Strategy = "interrupt"
	want.SPI.Timeout = 250 * time.Millisecond
	want.Clock.ExternalPresent = false
	want.Demo.Interval = 10 * time.Millisecond
	require.Equal(t, want, cfg)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"width":    "[spi]\nwidth = 17\n",
		"strategy": "[spi]\nstrategy = \"pio\"\n",
		"target":   "[clock]\ntarget = \"pll\"\n",
		"duration": "[spi]\ntimeout = \"soon\"\n",
		"unknown":  "[spi]\nspeed = 3\n",
		"overflow": "[spi]\nwidth = 300\n",
	}
	for name, body := range cases {
		_, err := Load(writeTOML(t, body))
		require.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestSPIConfig(t *testing.T) {
	cfg := Default()
	sc := cfg.SPIConfig(5)
	require.Equal(t, uint8(5), sc.Width)
	require.True(t, sc.DMA())

	cfg.SPI.Strategy = "blocking"
	require.False(t, cfg.SPIConfig(8).DMA())
}
