package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func envelope(scheme byte, hex32 string) string {
	return string(scheme) + hex32
}

const hex32 = "0123456789ABCDEF0123456789ABCDEF"
const hex16 = "0123456789ABCDEF"

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse("ZZ", nil)
	var unknown ErrUnknownCommand
	require.ErrorAs(t, err, &unknown)
}

func TestParseNC(t *testing.T) {
	req, err := Parse("NC", []byte("00"))
	require.NoError(t, err)
	require.Equal(t, "NC", req.Command)
	require.Empty(t, req.Fields.Names())
}

func TestParseA0WithoutZMK(t *testing.T) {
	req, err := Parse("A0", []byte("0000U"))
	require.NoError(t, err)

	mode, ok := req.Fields.Get(FieldMode)
	require.True(t, ok)
	require.Equal(t, "0", string(mode))

	_, hasZMK := req.Fields.Get(FieldZmkTmk)
	require.False(t, hasZMK)
}

func TestParseA0WithZMK(t *testing.T) {
	payload := "1000U;U" + envelope(SchemeU, hex32)
	req, err := Parse("A0", []byte(payload))
	require.NoError(t, err)

	flag, ok := req.Fields.Get(FieldZmkTmkFlag)
	require.True(t, ok)
	require.Equal(t, "U", string(flag))

	zmk, ok := req.Fields.Get(FieldZmkTmk)
	require.True(t, ok)
	require.Equal(t, envelope(SchemeU, hex32), string(zmk))
}

func TestParseBUWithKey(t *testing.T) {
	payload := "001" + envelope(SchemeU, hex32)
	req, err := Parse("BU", []byte(payload))
	require.NoError(t, err)

	code, ok := req.Fields.Get(FieldKeyTypeCode)
	require.True(t, ok)
	require.Equal(t, "00", string(code))

	key, ok := req.Fields.Get(FieldKey)
	require.True(t, ok)
	require.Equal(t, envelope(SchemeU, hex32), string(key))
}

func TestParseBUWithoutKey(t *testing.T) {
	req, err := Parse("BU", []byte("001"))
	require.NoError(t, err)
	_, ok := req.Fields.Get(FieldKey)
	require.False(t, ok)
}

func TestParseCWExtractsPANUpToDelimiter(t *testing.T) {
	payload := envelope(SchemeU, hex32) + "4111111111111111;" + "2601" + "101"
	req, err := Parse("CW", []byte(payload))
	require.NoError(t, err)

	pan, ok := req.Fields.Get(FieldPAN)
	require.True(t, ok)
	require.Equal(t, "4111111111111111", string(pan))

	expiry, ok := req.Fields.Get(FieldExpiry)
	require.True(t, ok)
	require.Equal(t, "2601", string(expiry))
}

func TestParseDCFixedWidthFields(t *testing.T) {
	payload := envelope(SchemeU, hex32) + envelope(SchemeU, hex32) +
		hex16 + "01" + "123456789012" + "1" + "1234"
	req, err := Parse("DC", []byte(payload))
	require.NoError(t, err)

	require.Equal(t, "1234", string(req.Fields.MustGet(FieldPVV)))
	require.Equal(t, "1", string(req.Fields.MustGet(FieldPVKI)))
	require.Equal(t, "123456789012", string(req.Fields.MustGet(FieldAccount)))
}

func TestParseECTokenPath(t *testing.T) {
	payload := envelope(SchemeU, hex32) + envelope(SchemeU, hex32) +
		hex16 + "04" + strings.Repeat("9", 18) + "1" + "1234"
	req, err := Parse("EC", []byte(payload))
	require.NoError(t, err)

	token, ok := req.Fields.Get(FieldToken)
	require.True(t, ok)
	require.Equal(t, strings.Repeat("9", 18), string(token))

	_, hasAccount := req.Fields.Get(FieldAccount)
	require.False(t, hasAccount)
}

func TestParseECAccountPath(t *testing.T) {
	payload := envelope(SchemeU, hex32) + envelope(SchemeU, hex32) +
		hex16 + "01" + "123456789012" + "1" + "1234"
	req, err := Parse("EC", []byte(payload))
	require.NoError(t, err)

	account, ok := req.Fields.Get(FieldAccount)
	require.True(t, ok)
	require.Equal(t, "123456789012", string(account))
}

func TestParseHCEnvelopeForm(t *testing.T) {
	payload := envelope(SchemeU, hex32) + ";" + "U" + "0"
	req, err := Parse("HC", []byte(payload))
	require.NoError(t, err)

	key, ok := req.Fields.Get(FieldCurrentKey)
	require.True(t, ok)
	require.Equal(t, envelope(SchemeU, hex32), string(key))
}

func TestParseHCPlainForm(t *testing.T) {
	plain := strings.Repeat("\x00", 16)
	payload := plain + ";" + "U" + "0"
	req, err := Parse("HC", []byte(payload))
	require.NoError(t, err)

	key, ok := req.Fields.Get(FieldCurrentKey)
	require.True(t, ok)
	require.Equal(t, plain, string(key))
}

func TestParseHCMissingDelimiterFails(t *testing.T) {
	payload := envelope(SchemeU, hex32) + "XU0" // ';' missing
	_, err := Parse("HC", []byte(payload))
	require.ErrorIs(t, err, ErrMalformedCommand)
}

func TestParseFAAllowsMultipleSchemes(t *testing.T) {
	payload := envelope(SchemeT, hex32) + envelope(SchemeX, hex32)
	req, err := Parse("FA", []byte(payload))
	require.NoError(t, err)

	zmk, ok := req.Fields.Get(FieldZMK)
	require.True(t, ok)
	require.Equal(t, envelope(SchemeT, hex32), string(zmk))

	zpk, ok := req.Fields.Get(FieldZPK)
	require.True(t, ok)
	require.Equal(t, envelope(SchemeX, hex32), string(zpk))
}

func TestParseShortPayloadFails(t *testing.T) {
	_, err := Parse("BU", []byte("0"))
	require.ErrorIs(t, err, ErrShortField)
}
