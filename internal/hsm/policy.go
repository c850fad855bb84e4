package hsm

// Policy holds the immutable-for-process-lifetime flags that mutate only
// error-code selection (§3). They never change which response code is
// emitted for a given command.
type Policy struct {
	// SkipParity disables the odd-parity checks on terminal keys and PVK
	// pairs (step 1/2 of §4.3's universal validation order).
	SkipParity bool

	// ApproveAll overrides certain failure error codes to success ("00").
	// The override set is asymmetric by design: it always covers PIN
	// verification's terminal-key and PVK parity failures (10, 11) and the
	// PVV mismatch (01), but it never overrides a CVK parity failure (10)
	// in the CVV-generation/verification path. See design note (b) in
	// §9 — this asymmetry is preserved from the device this simulates, not
	// tidied up.
	ApproveAll bool
}

// overridePIN applies the PIN-verification override rule: errors 01, 10 and
// 11 all become "00" when ApproveAll is set.
func (p Policy) overridePIN(errCode string) string {
	if p.ApproveAll {
		switch errCode {
		case "01", "10", "11":
			return "00"
		}
	}
	return errCode
}

// overrideCVV applies the CVV-path override rule: only a "01" mismatch is
// overridden; a "10" CVK parity failure is never overridden.
func (p Policy) overrideCVV(errCode string) string {
	if p.ApproveAll && errCode == "01" {
		return "00"
	}
	return errCode
}

// overrideGeneral applies §7's baseline rule ({01,10} overridden) to
// commands that are neither on the PIN-verification nor the CVV path (A0,
// BU, and CA, FA, HC's generic key-validation handlers).
func (p Policy) overrideGeneral(errCode string) string {
	if p.ApproveAll {
		switch errCode {
		case "01", "10":
			return "00"
		}
	}
	return errCode
}
