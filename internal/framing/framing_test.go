package framing

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildRaw(header, cmd, payload []byte) []byte {
	body := append(append([]byte{}, header...), cmd...)
	body = append(body, payload...)

	raw := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(raw[:2], uint16(len(body)))
	copy(raw[2:], body)
	return raw
}

func TestParseWithEmptyHeader(t *testing.T) {
	raw := buildRaw(nil, []byte("NC"), []byte("00"))

	frame, err := Parse(raw, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("NC"), frame.Command)
	require.Equal(t, []byte("00"), frame.Payload)
}

func TestParseWithHeaderMatch(t *testing.T) {
	raw := buildRaw([]byte("SSSS"), []byte("NC"), []byte{0x00, 0x00})

	frame, err := Parse(raw, []byte("SSSS"))
	require.NoError(t, err)
	require.Equal(t, []byte("NC"), frame.Command)
	require.Equal(t, []byte{0x00, 0x00}, frame.Payload)
}

func TestParseHeaderMismatch(t *testing.T) {
	raw := buildRaw([]byte("SSSS"), []byte("NC"), nil)

	_, err := Parse(raw, []byte("ZZZZ"))
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestParseShortFrame(t *testing.T) {
	_, err := Parse([]byte{0x00}, nil)
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestParseMalformedLength(t *testing.T) {
	raw := []byte{0x00, 0x05, 'N', 'C'} // declares 5 bytes, only 2 follow
	_, err := Parse(raw, nil)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestParseShortCommandCode(t *testing.T) {
	raw := buildRaw(nil, []byte("N"), nil)
	_, err := Parse(raw, nil)
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestBuildRoundTripsThroughParse(t *testing.T) {
	header := []byte("HDR1")
	out, err := Build(header, "ND", [][]byte{[]byte("00"), []byte("field-one")})
	require.NoError(t, err)

	frame, err := Parse(out, header)
	require.NoError(t, err)
	require.Equal(t, []byte("ND"), frame.Command)
	require.Equal(t, []byte("00field-one"), frame.Payload)
}

func TestBuildRejectsOversizedBody(t *testing.T) {
	huge := make([]byte, MaxBodyLength+1)
	_, err := Build(nil, "ND", [][]byte{huge})
	require.Error(t, err)
	var tooBig InvalidBodyLengthError
	require.ErrorAs(t, err, &tooBig)
}
