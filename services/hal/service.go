package hal

import (
	"context"

	"spiclk-go/bus"
	"spiclk-go/x/timex"
)

var (
	CmdTopic    = bus.T("hal", "cmd")
	ResultTopic = bus.T("hal", "cmd", "result")
	StateTopic  = bus.T("hal", "state")
)

// CmdResult is published on hal/cmd/result for every command received on
// hal/cmd.
type CmdResult struct {
	Cmd string `json:"cmd"`
	Out string `json:"out,omitempty"`
	Err string `json:"error,omitempty"`
}

// Run serves console commands arriving on the bus until ctx ends. Command
// payloads are command lines (string or []byte).
func (s *System) Run(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(CmdTopic)
	defer conn.Unsubscribe(sub)

	s.publishState(conn, "ready", nil)
	for {
		select {
		case <-ctx.Done():
			s.publishState(conn, "stopped", ctx.Err())
			return
		case msg := <-sub.Channel():
			var line string
			switch p := msg.Payload.(type) {
			case string:
				line = p
			case []byte:
				line = string(p)
			default:
				conn.Publish(&bus.Message{Topic: ResultTopic, Payload: CmdResult{Err: "payload must be a command line"}})
				continue
			}
			out, err := s.Exec(ctx, line)
			res := CmdResult{Cmd: line, Out: out}
			if err != nil {
				res.Err = err.Error()
			}
			conn.Publish(&bus.Message{Topic: ResultTopic, Payload: res})
		}
	}
}

func (s *System) publishState(conn *bus.Connection, level string, err error) {
	payload := map[string]any{"level": level, "ts_ms": timex.NowMs()}
	if err != nil {
		payload["error"] = err.Error()
	}
	conn.Retain(StateTopic, payload)
}
