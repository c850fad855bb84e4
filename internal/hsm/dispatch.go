package hsm

import (
	"github.com/paysimlabs/hsmsim/internal/command"
)

// HSM holds the process-lifetime state the handlers need: the LMK and the
// policy flags. Both are immutable after construction and safe to share
// across connections (§5).
type HSM struct {
	LMK    LMK
	Policy Policy
}

// New returns an HSM ready to dispatch requests.
func New(lmk LMK, policy Policy) *HSM {
	return &HSM{LMK: lmk, Policy: policy}
}

type handlerFunc func(h *HSM, req *command.Request) *Response

var handlers = map[string]handlerFunc{
	"NC": handleNC,
	"A0": handleA0,
	"BU": handleBU,
	"CA": handleCA,
	"CW": handleCW,
	"CY": handleCY,
	"DC": handleDC,
	"EC": handleEC,
	"FA": handleFA,
	"HC": handleHC,
}

// Handle dispatches a parsed request to its command handler. Callers are
// expected to have already turned an ErrUnknownCommand from command.Parse
// into Unknown() themselves — Handle panics (a BUG-class programmer error,
// in the teacher's idiom) if asked to dispatch a command with no registered
// handler, since command.Parse and this map are kept in lockstep.
func (h *HSM) Handle(req *command.Request) *Response {
	fn, ok := handlers[req.Command]
	if !ok {
		panic("hsm: BUG: no handler registered for command " + req.Command)
	}
	return fn(h, req)
}
