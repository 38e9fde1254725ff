package platform

import (
	"errors"
	"runtime"
	"sync"

	"spiclk-go/errcode"
	"spiclk-go/services/hal/internal/halcore"
	"spiclk-go/services/hal/internal/spi/frame"
)

var (
	ErrChannelRange = errors.New("channel_out_of_range")
	ErrChannelBusy  = errors.New("channel_running")
	ErrStopped      = errors.New("channel_stopped")
)

// HostDMA models a DMA controller: each started channel runs in its own
// goroutine, moving frames between memory and a port's data registers, and
// raises its vector when the block is done.
type HostDMA struct {
	base   halcore.Vector
	raiser halcore.Raiser

	mu    sync.Mutex
	chans []hostChan
}

type hostChan struct {
	run    *chanRun
	result error
	fail   error // injected outcome for the next run
	starts int
}

type chanRun struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ halcore.DMAController = (*HostDMA)(nil)

// NewHostDMA creates n channels raising base+ch on r.
func NewHostDMA(n int, base halcore.Vector, r halcore.Raiser) *HostDMA {
	return &HostDMA{base: base, raiser: r, chans: make([]hostChan, n)}
}

func (d *HostDMA) Channels() int { return len(d.chans) }

func (d *HostDMA) Vector(ch int) halcore.Vector { return d.base + halcore.Vector(ch) }

func (d *HostDMA) Start(ch int, req halcore.DMARequest) error {
	if ch < 0 || ch >= len(d.chans) {
		return ErrChannelRange
	}
	if req.Port == nil || req.Count <= 0 || len(req.Mem) < frame.Units(req.Width, req.Count) {
		return errcode.New(errcode.ConfigError, "dma.start", "bad request")
	}
	d.mu.Lock()
	c := &d.chans[ch]
	if c.run != nil {
		select {
		case <-c.run.done:
		default:
			d.mu.Unlock()
			return ErrChannelBusy
		}
	}
	run := &chanRun{stop: make(chan struct{}), done: make(chan struct{})}
	c.run = run
	c.result = nil
	c.starts++
	fail := c.fail
	c.fail = nil
	d.mu.Unlock()

	go d.move(ch, run, req, fail)
	return nil
}

func (d *HostDMA) move(ch int, run *chanRun, req halcore.DMARequest, fail error) {
	var result error
	for i := 0; i < req.Count && fail == nil; {
		select {
		case <-run.stop:
			d.setResult(ch, ErrStopped)
			close(run.done)
			return
		default:
		}
		var ok bool
		if req.Dir == halcore.DirMemToPeriph {
			ok = req.Port.WriteData(frame.At(req.Mem, req.Width, i))
		} else {
			var v uint16
			if v, ok = req.Port.ReadData(); ok {
				frame.Put(req.Mem, req.Width, i, v)
			}
		}
		if ok {
			i++
		} else {
			runtime.Gosched()
		}
	}
	if fail != nil {
		result = fail
	}
	d.setResult(ch, result)
	// Memory is settled before the interrupt, so Stop from a handler never
	// waits on this goroutine.
	close(run.done)
	if d.raiser != nil {
		d.raiser.Raise(d.Vector(ch))
	}
}

func (d *HostDMA) setResult(ch int, err error) {
	d.mu.Lock()
	d.chans[ch].result = err
	d.mu.Unlock()
}

func (d *HostDMA) Result(ch int) error {
	if ch < 0 || ch >= len(d.chans) {
		return ErrChannelRange
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chans[ch].result
}

// Stop halts ch and waits until its goroutine no longer touches memory.
func (d *HostDMA) Stop(ch int) {
	if ch < 0 || ch >= len(d.chans) {
		return
	}
	d.mu.Lock()
	run := d.chans[ch].run
	d.mu.Unlock()
	if run == nil {
		return
	}
	run.stopOnce.Do(func() { close(run.stop) })
	<-run.done
}

// FailNext makes the next run on ch end immediately with err.
func (d *HostDMA) FailNext(ch int, err error) {
	d.mu.Lock()
	d.chans[ch].fail = err
	d.mu.Unlock()
}

// Starts counts runs started on ch.
func (d *HostDMA) Starts(ch int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chans[ch].starts
}
