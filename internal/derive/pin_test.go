package derive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// pinBlock builds an 8-byte ISO-0 PIN block: nibble 0 is the length, the
// next `length` nibbles are the PIN digits, and the rest are filler nibbles
// (0xF), matching the fixtures used throughout §8 of the protocol design.
func pinBlock(length int, pin string, filler byte) []byte {
	nibbles := make([]byte, 0, 16)
	nibbles = append(nibbles, byte(length))
	for _, c := range pin {
		nibbles = append(nibbles, byte(c-'0'))
	}
	for len(nibbles) < 16 {
		nibbles = append(nibbles, filler)
	}

	block := make([]byte, 8)
	for i := 0; i < 8; i++ {
		block[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return block
}

func TestClearPINExtractsDigits(t *testing.T) {
	block := pinBlock(4, "1234", 0xF)
	pin, err := ClearPIN(block)
	require.NoError(t, err)
	require.Equal(t, "1234", pin)
}

func TestClearPINExtractsLongerPIN(t *testing.T) {
	block := pinBlock(12, "123456789012", 0x0)
	pin, err := ClearPIN(block)
	require.NoError(t, err)
	require.Equal(t, "123456789012", pin)
}

func TestClearPINRejectsLengthOutOfRange(t *testing.T) {
	for _, length := range []int{3, 13, 15} {
		block := pinBlock(length, "123", 0xF)
		_, err := ClearPIN(block)
		require.Error(t, err)
		require.IsType(t, ErrInvalidPIN{}, err)
	}
}

func TestClearPINRejectsNonDigitInPINField(t *testing.T) {
	block := pinBlock(4, "1234", 0xF)
	block[1] = 0xA3 // nibble for the 2nd PIN digit becomes 0xA, not a decimal digit
	_, err := ClearPIN(block)
	require.Error(t, err)
}

func TestClearPINRejectsWrongBlockSize(t *testing.T) {
	_, err := ClearPIN([]byte{0x04, 0x12})
	require.Error(t, err)
}
