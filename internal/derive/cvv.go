package derive

import (
	"encoding/hex"
	"fmt"

	"github.com/paysimlabs/hsmsim/internal/cryptoprim"
)

// CVV computes the simplified card verification value for pan/expiry/
// serviceCode under cvk (16 bytes, 2-key 3DES). As with PVV, the digit
// strings double as hex nibbles directly.
func CVV(pan, expiry, serviceCode string, cvk []byte) (string, error) {
	if len(cvk) < 16 {
		return "", fmt.Errorf("derive: CVK must be at least 16 bytes, got %d", len(cvk))
	}

	assembled := pan + expiry + serviceCode
	nibbles := padOrTruncateHexNibbles(assembled, 16)

	block, err := hex.DecodeString(nibbles)
	if err != nil {
		return "", fmt.Errorf("derive: CVV assembly %q is not valid hex: %w", nibbles, err)
	}

	ct, err := cryptoprim.EncryptECB(cvk[:16], block)
	if err != nil {
		return "", err
	}

	return firstDecimalDigits(hex.EncodeToString(ct), 3), nil
}
