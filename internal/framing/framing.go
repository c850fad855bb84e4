/*
 * Copyright (c) 2014, Yawning Angel <yawning at torproject dot org>
 * All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions are met:
 *
 *  * Redistributions of source code must retain the above copyright notice,
 *    this list of conditions and the following disclaimer.
 *
 *  * Redistributions in binary form must reproduce the above copyright notice,
 *    this list of conditions and the following disclaimer in the documentation
 *    and/or other materials provided with the distribution.
 *
 * THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
 * AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
 * IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
 * ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
 * LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
 * CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
 * SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
 * INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
 * CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
 * ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
 * POSSIBILITY OF SUCH DAMAGE.
 */

//
// Package framing implements the HSM simulator's wire framing.
//
// The frame format is:
//   uint16_t length (big endian)
//   uint8_t[] header (fixed, configured per deployment, may be empty)
//   uint8_t[] body (2-byte command/response code followed by fields)
//
// length is the byte count of header+body; it does not include itself.
// Unlike a transport-obfuscation framing layer, nothing here is encrypted or
// obfuscated: payment switches talking to a real HSM expect to read the
// command code and length off the wire in the clear.
//
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// LengthFieldLength is the size, in bytes, of the frame's length prefix.
	LengthFieldLength = 2

	// CommandCodeLength is the size, in bytes, of a request/response code.
	CommandCodeLength = 2

	// MaxBodyLength is the largest header+body the 16-bit length field can
	// express.
	MaxBodyLength = 1<<16 - 1
)

// ErrShortFrame is returned when fewer bytes are available than the frame
// needs to be parsed.
var ErrShortFrame = errors.New("framing: frame too short to parse")

// ErrBadHeader is returned when the configured header does not match the
// bytes on the wire.
var ErrBadHeader = errors.New("framing: header mismatch")

// ErrMalformedFrame is returned when the declared length does not match the
// number of bytes actually supplied.
var ErrMalformedFrame = errors.New("framing: declared length does not match frame size")

// InvalidBodyLengthError is returned by Build when the assembled body would
// not fit in the 16-bit length field.
type InvalidBodyLengthError int

func (e InvalidBodyLengthError) Error() string {
	return fmt.Sprintf("framing: body length %d exceeds maximum %d", int(e), MaxBodyLength)
}

// Frame is a single parsed request: the 2-letter command code and its raw
// payload, with the configured header already stripped and verified.
type Frame struct {
	Command []byte
	Payload []byte
}

// Parse unframes a single request read to end-of-buffer by one transport
// read, per §4.1 of the protocol design:
//
//  1. raw must be at least LengthFieldLength bytes; length is read from the
//     big-endian uint16 at offset 0.
//  2. length must equal len(raw)-2, or parsing fails with ErrMalformedFrame.
//  3. If header is non-empty, the next len(header) bytes must match it
//     byte-for-byte, or parsing fails with ErrBadHeader / ErrShortFrame.
//  4. The next 2 bytes are the command code.
//  5. The remainder is the payload (which may be empty).
func Parse(raw []byte, header []byte) (*Frame, error) {
	if len(raw) < LengthFieldLength {
		return nil, ErrShortFrame
	}

	length := binary.BigEndian.Uint16(raw[:LengthFieldLength])
	rest := raw[LengthFieldLength:]
	if int(length) != len(rest) {
		return nil, ErrMalformedFrame
	}

	if len(header) > 0 {
		if len(rest) < len(header) {
			return nil, ErrShortFrame
		}
		for i := range header {
			if rest[i] != header[i] {
				return nil, ErrBadHeader
			}
		}
		rest = rest[len(header):]
	}

	if len(rest) < CommandCodeLength {
		return nil, ErrShortFrame
	}

	return &Frame{
		Command: rest[:CommandCodeLength],
		Payload: rest[CommandCodeLength:],
	}, nil
}

// Build assembles a response frame: responseCode followed by each field in
// fields, in order, prefixed by header (which may be empty) and the 2-byte
// big-endian length of header+body.
func Build(header []byte, responseCode string, fields [][]byte) ([]byte, error) {
	body := make([]byte, 0, CommandCodeLength+64)
	body = append(body, []byte(responseCode)...)
	for _, f := range fields {
		body = append(body, f...)
	}

	total := len(header) + len(body)
	if total > MaxBodyLength {
		return nil, InvalidBodyLengthError(total)
	}

	out := make([]byte, 0, LengthFieldLength+total)
	var lenBuf [LengthFieldLength]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(total))
	out = append(out, lenBuf[:]...)
	out = append(out, header...)
	out = append(out, body...)

	return out, nil
}

/* vim :set ts=4 sw=4 sts=4 noet : */
