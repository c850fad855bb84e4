// Package command implements the per-command wire grammar (C4): turning a
// frame's raw payload into an ordered, named field map. Boundaries are
// discovered only by fixed width, sentinel-prefixed envelope lookahead, or
// delimiter scan — the parser never interprets field semantics, it only
// partitions bytes (§4.2 of the protocol design).
package command

// Field name constants. Handlers look fields up by these names; the wire
// order is whatever grammar below produces, which matches §4.2's table.
const (
	FieldMode        = "Mode"
	FieldKeyType     = "KeyType"
	FieldKeyScheme   = "KeyScheme"
	FieldZmkTmkFlag  = "ZmkTmkFlag"
	FieldZmkTmk      = "ZmkTmk"
	FieldKeyTypeCode = "KeyTypeCode"
	FieldKeyLenFlag  = "KeyLengthFlag"
	FieldKey         = "Key"
	FieldTPK         = "TPK"
	FieldDestKey     = "DestKey"
	FieldMaxPINLen   = "MaxPINLen"
	FieldSrcPINBlock = "SrcPINBlock"
	FieldSrcFmt      = "SrcFmt"
	FieldDstFmt      = "DstFmt"
	FieldAccount     = "Account"
	FieldCVK         = "CVK"
	FieldPAN         = "PAN"
	FieldExpiry      = "Expiry"
	FieldServiceCode = "ServiceCode"
	FieldCVV         = "CVV"
	FieldPVKPair     = "PVKPair"
	FieldPINBlock    = "PINBlock"
	FieldFmt         = "Fmt"
	FieldPVKI        = "PVKI"
	FieldPVV         = "PVV"
	FieldZPK         = "ZPK"
	FieldToken       = "Token"
	FieldZMK         = "ZMK"
	FieldCurrentKey  = "CurrentKey"
	FieldTMKScheme   = "TMKScheme"
	FieldLMKScheme   = "LMKScheme"
)

// Scheme tag bytes an encrypted key envelope may be prefixed with (§3).
const (
	SchemeU byte = 'U'
	SchemeT byte = 'T'
	SchemeS byte = 'S'
	SchemeX byte = 'X'
)

var allSchemes = []byte{SchemeU, SchemeT, SchemeS, SchemeX}

const envelopeLen = 33 // 1 scheme byte + 32 ASCII hex chars.

// descriptions is used only for trace/log output, never for dispatch.
var descriptions = map[string]string{
	"NC": "diagnostics",
	"A0": "generate key",
	"BU": "key check value",
	"CA": "translate PIN block",
	"CW": "generate CVV",
	"CY": "verify CVV",
	"DC": "verify PIN (TPK)",
	"EC": "verify PIN (ZPK)",
	"FA": "translate key from ZMK to ZPK",
	"HC": "diagnose key under current LMK",
}

// Parse dispatches payload to the grammar registered for cmd and returns the
// resulting Request. ErrUnknownCommand is returned for a command code with
// no registered grammar — callers translate that into the ZZ/00 response,
// not a connection-closing failure (only a grammar error closes the
// connection, per §4.2/§4.5).
func Parse(cmd string, payload []byte) (*Request, error) {
	parser, ok := parsers[cmd]
	if !ok {
		return nil, ErrUnknownCommand(cmd)
	}

	fields, err := parser(newCursor(payload))
	if err != nil {
		return nil, err
	}

	return &Request{Command: cmd, Description: descriptions[cmd], Fields: fields}, nil
}

type parseFunc func(*cursor) (*FieldMap, error)

var parsers = map[string]parseFunc{
	"NC": parseNC,
	"A0": parseA0,
	"BU": parseBU,
	"CA": parseCA,
	"CW": parseCW,
	"CY": parseCY,
	"DC": parseDC,
	"EC": parseEC,
	"FA": parseFA,
	"HC": parseHC,
}

func parseNC(_ *cursor) (*FieldMap, error) {
	return newFieldMap(), nil
}

func parseA0(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	mode, err := c.take(1)
	if err != nil {
		return nil, err
	}
	f.set(FieldMode, mode)

	keyType, err := c.take(3)
	if err != nil {
		return nil, err
	}
	f.set(FieldKeyType, keyType)

	keyScheme, err := c.take(1)
	if err != nil {
		return nil, err
	}
	f.set(FieldKeyScheme, keyScheme)

	if mode[0] == '1' {
		if b, ok := c.peek(); ok && b == ';' {
			_, _ = c.take(1) // skip ';'

			flag, err := c.take(1)
			if err != nil {
				return nil, err
			}
			f.set(FieldZmkTmkFlag, flag)

			if b, ok := c.peek(); ok && b == SchemeU {
				env, err := c.take(envelopeLen)
				if err != nil {
					return nil, err
				}
				f.set(FieldZmkTmk, env)
			}
		}
	}

	return f, nil
}

func parseBU(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	code, err := c.take(2)
	if err != nil {
		return nil, err
	}
	f.set(FieldKeyTypeCode, code)

	flag, err := c.take(1)
	if err != nil {
		return nil, err
	}
	f.set(FieldKeyLenFlag, flag)

	if b, ok := c.peek(); ok && b == SchemeU {
		key, err := c.take(envelopeLen)
		if err != nil {
			return nil, err
		}
		f.set(FieldKey, key)
	}

	return f, nil
}

func parseCA(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	tpk, err := c.takeEnvelopeOrPlain(allSchemes, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldTPK, tpk)

	destKey, err := c.takeEnvelopeOrPlain(allSchemes, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldDestKey, destKey)

	maxLen, err := c.take(2)
	if err != nil {
		return nil, err
	}
	f.set(FieldMaxPINLen, maxLen)

	srcBlock, err := c.take(16)
	if err != nil {
		return nil, err
	}
	f.set(FieldSrcPINBlock, srcBlock)

	srcFmt, err := c.take(2)
	if err != nil {
		return nil, err
	}
	f.set(FieldSrcFmt, srcFmt)

	dstFmt, err := c.take(2)
	if err != nil {
		return nil, err
	}
	f.set(FieldDstFmt, dstFmt)

	account, err := c.take(12)
	if err != nil {
		return nil, err
	}
	f.set(FieldAccount, account)

	return f, nil
}

func parseCW(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	cvk, err := c.takeEnvelopeOrPlain(allSchemes, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldCVK, cvk)

	pan, err := c.takeUntil(';')
	if err != nil {
		return nil, err
	}
	f.set(FieldPAN, pan)

	expiry, err := c.take(4)
	if err != nil {
		return nil, err
	}
	f.set(FieldExpiry, expiry)

	svc, err := c.take(3)
	if err != nil {
		return nil, err
	}
	f.set(FieldServiceCode, svc)

	return f, nil
}

func parseCY(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	cvk, err := c.takeEnvelopeOrPlain(allSchemes, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldCVK, cvk)

	cvv, err := c.take(3)
	if err != nil {
		return nil, err
	}
	f.set(FieldCVV, cvv)

	pan, err := c.takeUntil(';')
	if err != nil {
		return nil, err
	}
	f.set(FieldPAN, pan)

	expiry, err := c.take(4)
	if err != nil {
		return nil, err
	}
	f.set(FieldExpiry, expiry)

	svc, err := c.take(3)
	if err != nil {
		return nil, err
	}
	f.set(FieldServiceCode, svc)

	return f, nil
}

func parseDC(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	tpk, err := c.takeEnvelopeOrPlain(allSchemes, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldTPK, tpk)

	pvk, err := c.takeEnvelopeOrPlain([]byte{SchemeU}, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldPVKPair, pvk)

	pinBlock, err := c.take(16)
	if err != nil {
		return nil, err
	}
	f.set(FieldPINBlock, pinBlock)

	format, err := c.take(2)
	if err != nil {
		return nil, err
	}
	f.set(FieldFmt, format)

	account, err := c.take(12)
	if err != nil {
		return nil, err
	}
	f.set(FieldAccount, account)

	pvki, err := c.take(1)
	if err != nil {
		return nil, err
	}
	f.set(FieldPVKI, pvki)

	pvv, err := c.take(4)
	if err != nil {
		return nil, err
	}
	f.set(FieldPVV, pvv)

	return f, nil
}

func parseEC(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	zpk, err := c.takeEnvelopeOrPlain([]byte{SchemeU}, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldZPK, zpk)

	pvk, err := c.takeEnvelopeOrPlain([]byte{SchemeU}, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldPVKPair, pvk)

	pinBlock, err := c.take(16)
	if err != nil {
		return nil, err
	}
	f.set(FieldPINBlock, pinBlock)

	format, err := c.take(2)
	if err != nil {
		return nil, err
	}
	f.set(FieldFmt, format)

	if string(format) != "04" {
		account, err := c.take(12)
		if err != nil {
			return nil, err
		}
		f.set(FieldAccount, account)
	} else {
		token, err := c.take(18)
		if err != nil {
			return nil, err
		}
		f.set(FieldToken, token)
	}

	pvki, err := c.take(1)
	if err != nil {
		return nil, err
	}
	f.set(FieldPVKI, pvki)

	pvv, err := c.take(4)
	if err != nil {
		return nil, err
	}
	f.set(FieldPVV, pvv)

	return f, nil
}

func parseFA(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	zmk, err := c.takeEnvelopeOrPlain([]byte{SchemeU, SchemeT}, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldZMK, zmk)

	zpk, err := c.takeEnvelopeOrPlain([]byte{SchemeU, SchemeT, SchemeX}, envelopeLen, 32)
	if err != nil {
		return nil, err
	}
	f.set(FieldZPK, zpk)

	return f, nil
}

func parseHC(c *cursor) (*FieldMap, error) {
	f := newFieldMap()

	key, err := c.takeEnvelopeOrPlain([]byte{SchemeU}, envelopeLen, 16)
	if err != nil {
		return nil, err
	}
	f.set(FieldCurrentKey, key)

	if err := c.expect(';'); err != nil {
		return nil, err
	}

	tmkScheme, err := c.take(1)
	if err != nil {
		return nil, err
	}
	f.set(FieldTMKScheme, tmkScheme)

	lmkScheme, err := c.take(1)
	if err != nil {
		return nil, err
	}
	f.set(FieldLMKScheme, lmkScheme)

	return f, nil
}
