package spi

import "spiclk-go/errcode"

type State uint8

const (
	StateIdle State = iota
	StateConfiguring
	StateReady
	StateTransferring
	StateComplete
	StateError
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateTransferring:
		return "transferring"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	case StateShutDown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Status is the per-engine state and the outcome of the last transaction.
// It is also the retained payload on hal/spi/<id>/status.
type Status struct {
	ID    string       `json:"id"`
	State State        `json:"state"`
	Last  errcode.Code `json:"last,omitempty"`
	Width uint8        `json:"width,omitempty"`
}
