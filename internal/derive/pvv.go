package derive

import (
	"encoding/hex"
	"fmt"

	"github.com/paysimlabs/hsmsim/internal/cryptoprim"
)

// padOrTruncateHexNibbles forces s to exactly n hex-nibble characters: short
// strings are right-padded with '0', long strings are truncated to the
// leading n characters.
func padOrTruncateHexNibbles(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	out := s
	for len(out) < n {
		out += "0"
	}
	return out
}

// firstDecimalDigits scans s left-to-right, keeping only '0'-'9' characters,
// and returns the first want of them. If fewer exist, the result is
// right-padded with '0' to want characters.
func firstDecimalDigits(s string, want int) string {
	out := make([]byte, 0, want)
	for i := 0; i < len(s) && len(out) < want; i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	for len(out) < want {
		out = append(out, '0')
	}
	return string(out)
}

// PVV computes the simplified PIN Verification Value for account/pvki/pin
// under pvkPair (the first 16 bytes of which form the 2-key 3DES key). The
// PAN, PVKI and PIN digit strings are treated directly as hex nibbles, since
// each is composed of the decimal digits '0'-'9' which are valid hex digits.
func PVV(account, pvki, pin string, pvkPair []byte) (string, error) {
	if len(pvkPair) < 16 {
		return "", fmt.Errorf("derive: PVK pair must be at least 16 bytes, got %d", len(pvkPair))
	}

	assembled := account + pvki + pin
	nibbles := padOrTruncateHexNibbles(assembled, 16)

	block, err := hex.DecodeString(nibbles)
	if err != nil {
		return "", fmt.Errorf("derive: PVV assembly %q is not valid hex: %w", nibbles, err)
	}

	ct, err := cryptoprim.EncryptECB(pvkPair[:16], block)
	if err != nil {
		return "", err
	}

	return firstDecimalDigits(hex.EncodeToString(ct), 4), nil
}
