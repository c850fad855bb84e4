// Package session implements the per-connection request/response loop (C6):
// read one frame, parse its command, dispatch it to the HSM, write the
// response frame, and repeat until the connection closes or a malformed
// frame is seen. Adapted from the teacher's Conn/accept-loop split in
// obfs4.go and obfs4-server.go, generalized from an obfuscated transport
// session to a plain request/response one.
package session

import (
	"errors"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/paysimlabs/hsmsim/internal/command"
	"github.com/paysimlabs/hsmsim/internal/framing"
	"github.com/paysimlabs/hsmsim/internal/hsm"
)

// maxFrameSize is the largest frame framing.Parse can ever accept: the
// 2-byte length prefix plus the largest header+body a 16-bit length field
// can express.
const maxFrameSize = framing.LengthFieldLength + framing.MaxBodyLength

// readFrame reads one frame off conn with a single bounded Read, per §4.5's
// "read one frame to end-of-buffer of one recv" — it does not trust the
// peer-declared length prefix to size its own read. Whatever bytes actually
// arrived in that one recv are handed to framing.Parse as-is, so a mismatch
// between the declared length and the bytes the peer actually sent surfaces
// as ErrMalformedFrame (per §4.1 step 2 and §8's boundary invariant) instead
// of being silently absorbed into a short read that then misframes the next
// request.
func readFrame(conn net.Conn, header []byte) (*framing.Frame, error) {
	buf := make([]byte, maxFrameSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	return framing.Parse(buf[:n], header)
}

// Serve runs the request/response loop for a single accepted connection. It
// returns when the peer closes the connection, a transport error occurs, or
// a frame fails to parse as a known command's grammar — a grammar failure
// closes the connection without a reply (§4.5), distinct from an unknown
// command code, which still gets the ZZ/00 response (§4.3).
func Serve(conn net.Conn, h *hsm.HSM, header []byte, log zerolog.Logger) {
	defer conn.Close()

	for {
		frame, err := readFrame(conn, header)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("session: frame read failed")
			}
			return
		}

		cmd := string(frame.Command)
		cmdLog := log.With().Str("command", cmd).Logger()

		req, err := command.Parse(cmd, frame.Payload)
		var resp *hsm.Response
		if err != nil {
			var unknown command.ErrUnknownCommand
			if errors.As(err, &unknown) {
				cmdLog.Debug().Msg("session: unknown command")
				resp = hsm.Unknown()
			} else {
				cmdLog.Debug().Err(err).Msg("session: malformed command payload, closing connection")
				return
			}
		} else {
			resp = h.Handle(req)
		}

		out, err := resp.Frame(header)
		if err != nil {
			cmdLog.Debug().Err(err).Msg("session: failed to build response frame")
			return
		}

		if _, err := conn.Write(out); err != nil {
			cmdLog.Debug().Err(err).Msg("session: write failed")
			return
		}
	}
}
