package hsm

import (
	"github.com/paysimlabs/hsmsim/internal/command"
	"github.com/paysimlabs/hsmsim/internal/framing"
)

// Response is a handler's output: the response code fixed by §4.2's
// command/response table (set before any error branch — a failed
// validation still carries the correct response code), the error code
// chosen by validation, and the ordered result fields that follow it on the
// wire.
type Response struct {
	Code   string
	Error  string
	Result *command.FieldMap
}

func newResponse(code, errCode string) *Response {
	return &Response{Code: code, Error: errCode, Result: command.NewFieldMap()}
}

// Frame assembles the response into a wire frame via the frame codec: code,
// then error, then each result field, in insertion order.
func (r *Response) Frame(header []byte) ([]byte, error) {
	fields := make([][]byte, 0, 1+len(r.Result.Names()))
	fields = append(fields, []byte(r.Error))
	fields = append(fields, r.Result.Values()...)
	return framing.Build(header, r.Code, fields)
}

// Unknown builds the ZZ/00 response for a command code with no registered
// grammar (§4.3 "Unknown command"). Unlike a grammar parse failure, this is
// still a valid, sendable response.
func Unknown() *Response {
	return newResponse("ZZ", ErrSuccess)
}
