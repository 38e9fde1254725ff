package spi

import (
	"context"
	"errors"
	"runtime"

	"spiclk-go/errcode"
)

// Blocking runs the transaction in the caller's goroutine, polling the port
// until its completion flag is set.
type Blocking struct{}

func (Blocking) Mode() Mode { return ModeBlocking }

func (Blocking) Execute(ctx context.Context, t *Target, req *Request, done func(error)) (func(), error) {
	if err := t.Port.Begin(t.xfer(req)); err != nil {
		return nil, errcode.Wrap(errcode.CommError, "spi.blocking", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			t.Port.Abort()
			if errors.Is(err, context.DeadlineExceeded) {
				done(errcode.Wrap(errcode.Timeout, "spi.blocking", err))
			} else {
				done(errcode.Wrap(errcode.Canceled, "spi.blocking", err))
			}
			return nil, nil
		}
		fin, err := t.Port.Service()
		if err != nil {
			done(errcode.Wrap(errcode.CommError, "spi.blocking", err))
			return nil, nil
		}
		if fin {
			done(nil)
			return nil, nil
		}
		runtime.Gosched()
	}
}
