// Package hsm implements the per-command state machines (C5): validation,
// cryptographic transformation, and response/error-code assembly. It is the
// only package that knows about policy flags and the LMK; crypto primitives
// and derivations live one layer down in cryptoprim/derive.
package hsm

import (
	"encoding/hex"
	"fmt"

	"github.com/paysimlabs/hsmsim/internal/cryptoprim"
)

// LMK is the process-wide Local Master Key: exactly 16 bytes, fixed at
// startup, read-only thereafter. There is no multi-LMK storage and no
// persistence across restarts (§1 Non-goals).
type LMK [cryptoprim.LMKSize]byte

// NewLMK parses a 32-hex-character string into an LMK. A wrong-length input
// is a startup-fatal configuration error, per the invariant in §3.
func NewLMK(hexStr string) (LMK, error) {
	var lmk LMK

	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return lmk, fmt.Errorf("hsm: LMK is not valid hex: %w", err)
	}
	if len(raw) != cryptoprim.LMKSize {
		return lmk, fmt.Errorf("hsm: LMK must decode to %d bytes, got %d", cryptoprim.LMKSize, len(raw))
	}

	copy(lmk[:], raw)
	return lmk, nil
}

// Bytes returns the LMK's 16 raw bytes.
func (l LMK) Bytes() []byte {
	return l[:]
}
