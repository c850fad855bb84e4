package command

import "bytes"

// cursor is a forward-only reader over a payload buffer. Every field parser
// in grammar.go reads from one, so that boundary discovery (fixed width,
// sentinel envelope, delimiter scan) is expressed as small composable steps
// instead of index arithmetic scattered through each handler.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

// peek returns the next byte without consuming it, and whether one exists.
func (c *cursor) peek() (byte, bool) {
	if c.remaining() < 1 {
		return 0, false
	}
	return c.buf[c.pos], true
}

// take consumes exactly n bytes, or fails with ErrShortField.
func (c *cursor) take(n int) ([]byte, error) {
	if c.remaining() < n {
		return nil, ErrShortField
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// takeUntil scans for delim and returns the bytes before it, consuming
// through (and including) the delimiter. Returns ErrMalformedCommand if
// delim is not found.
func (c *cursor) takeUntil(delim byte) ([]byte, error) {
	idx := bytes.IndexByte(c.buf[c.pos:], delim)
	if idx < 0 {
		return nil, ErrMalformedCommand
	}
	v := c.buf[c.pos : c.pos+idx]
	c.pos += idx + 1
	return v, nil
}

// takeEnvelopeOrPlain implements the sentinel-prefixed envelope grammar of
// §4.2 rule 2: if the next byte is one of sentinels, the field is a full
// envelopeLen-byte envelope (sentinel included); otherwise the field is
// plainLen bytes of unprefixed key material and the peeked byte is not
// treated specially — it is simply the first byte of that field.
func (c *cursor) takeEnvelopeOrPlain(sentinels []byte, envelopeLen, plainLen int) ([]byte, error) {
	b, ok := c.peek()
	if ok {
		for _, s := range sentinels {
			if b == s {
				return c.take(envelopeLen)
			}
		}
	}
	return c.take(plainLen)
}

// expect consumes exactly one byte and requires it to equal delim, or fails
// with ErrMalformedCommand. Used where the grammar requires an immediate
// delimiter rather than a scan (e.g. HC's "skip ';'" after a fixed-width
// key field).
func (c *cursor) expect(delim byte) error {
	b, err := c.take(1)
	if err != nil {
		return ErrMalformedCommand
	}
	if b[0] != delim {
		return ErrMalformedCommand
	}
	return nil
}

// rest returns all remaining unread bytes without consuming them. The
// protocol tolerates trailing unread bytes (mirrors observed device
// behaviour), so callers never need to assert the cursor is fully drained.
func (c *cursor) rest() []byte {
	return c.buf[c.pos:]
}
