package session

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/paysimlabs/hsmsim/internal/hsm"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func writeFrame(t *testing.T, conn net.Conn, header, cmd, payload []byte) {
	t.Helper()
	body := append(append([]byte{}, header...), cmd...)
	body = append(body, payload...)

	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out[:2], uint16(len(body)))
	copy(out[2:], body)

	_, err := conn.Write(out)
	require.NoError(t, err)
}

func readFrameRaw(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	var lenBuf [2]byte
	_, err := io.ReadFull(conn, lenBuf[:])
	require.NoError(t, err)
	length := binary.BigEndian.Uint16(lenBuf[:])
	body := make([]byte, length)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)
	return body
}

func newTestHSM(t *testing.T) *hsm.HSM {
	t.Helper()
	lmk, err := hsm.NewLMK("deafbeedeafbeedeafbeedeafbeedeaf")
	require.NoError(t, err)
	return hsm.New(lmk, hsm.Policy{})
}

func TestServeRespondsToNC(t *testing.T) {
	server, client := net.Pipe()
	h := newTestHSM(t)

	go Serve(server, h, nil, testLogger())

	client.SetDeadline(time.Now().Add(5 * time.Second))
	writeFrame(t, client, nil, []byte("NC"), []byte("00"))

	body := readFrameRaw(t, client)
	require.Equal(t, "ND", string(body[0:2]))
	require.Equal(t, "00", string(body[2:4]))

	client.Close()
}

func TestServeRespondsZZToUnknownCommand(t *testing.T) {
	server, client := net.Pipe()
	h := newTestHSM(t)

	go Serve(server, h, nil, testLogger())

	client.SetDeadline(time.Now().Add(5 * time.Second))
	writeFrame(t, client, nil, []byte("ZX"), nil)

	body := readFrameRaw(t, client)
	require.Equal(t, "ZZ", string(body[0:2]))
	require.Equal(t, "00", string(body[2:4]))
	require.Len(t, body, 4)

	client.Close()
}

func TestServeClosesConnectionOnMalformedCommand(t *testing.T) {
	server, client := net.Pipe()
	h := newTestHSM(t)

	go Serve(server, h, nil, testLogger())

	client.SetDeadline(time.Now().Add(5 * time.Second))
	// CW requires a ';' delimiter before expiry/service-code; omit it
	// entirely so the PAN scan runs off the end of the payload.
	writeFrame(t, client, nil, []byte("CW"), []byte("plainkeyplainkeyplainkeyplainkey"+"4111111111111111"))

	var lenBuf [2]byte
	_, err := io.ReadFull(client, lenBuf[:])
	require.Error(t, err, "connection should be closed without a response")

	client.Close()
}

func TestServeClosesConnectionWhenDeclaredLengthUndersizesActualBody(t *testing.T) {
	server, client := net.Pipe()
	h := newTestHSM(t)

	go Serve(server, h, nil, testLogger())

	client.SetDeadline(time.Now().Add(5 * time.Second))

	// Declare a length of 4 (just the "NC00" command+payload) but actually
	// write more bytes after it in the same write, as a peer desynced from
	// the wire format might. readFrame must hand every byte it actually
	// received in its one recv to framing.Parse, so the declared-vs-actual
	// mismatch is caught (§4.1 step 2 / §8) and the connection is closed
	// without a reply, rather than the extra bytes being silently treated
	// as the start of the next frame.
	var out []byte
	out = append(out, 0x00, 0x04)
	out = append(out, []byte("NC00")...)
	out = append(out, []byte("EXTRA-UNEXPECTED-BYTES")...)
	_, err := client.Write(out)
	require.NoError(t, err)

	var lenBuf [2]byte
	_, err = io.ReadFull(client, lenBuf[:])
	require.Error(t, err, "connection should be closed without a response")

	client.Close()
}

func TestServeHonoursConfiguredHeader(t *testing.T) {
	server, client := net.Pipe()
	h := newTestHSM(t)
	header := []byte("SSSS")

	go Serve(server, h, header, testLogger())

	client.SetDeadline(time.Now().Add(5 * time.Second))
	writeFrame(t, client, header, []byte("NC"), []byte("00"))

	body := readFrameRaw(t, client)
	require.Equal(t, "SSSS", string(body[0:4]))
	require.Equal(t, "ND", string(body[4:6]))

	client.Close()
}
