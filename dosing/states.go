package dosing

import "strings"

// Session states
const (
	// StateIdle means no active order has a pending material.
	StateIdle = "idle"
	// StateAwaitingScan means a material is loaded but scanning has not
	// been started for it.
	StateAwaitingScan = "awaiting_scan"
	// StateListening means the scanner is armed and scan events for the
	// current material are accepted.
	StateListening = "listening"
	// StateMismatch means the last scan did not match; the session returns
	// to listening after the mismatch display delay.
	StateMismatch = "mismatch"
	// StateAwaitingWeight means the barcode matched and the session is
	// polling weigh-and-update until the set point is reached.
	StateAwaitingWeight = "awaiting_weight"
	// StateOverweight means the observed weight exceeds the set point
	// beyond tolerance; polling continues with recurring operator alerts.
	StateOverweight = "overweight"
	// StateAdvancing means a dose was recorded and the session is
	// resolving the next pending material.
	StateAdvancing = "advancing"
)

// acceptsScan reports whether scan events are acted upon in the given
// state. A scan received in any other state is discarded outright.
func acceptsScan(state string) bool {
	return state == StateListening
}

// polling reports whether the given state owns the weigh poll loop.
func polling(state string) bool {
	return state == StateAwaitingWeight || state == StateOverweight
}

// NormalizeBarcode canonicalizes a scanned or expected barcode value:
// surrounding whitespace is trimmed and non-printable characters are
// stripped, so wedge-scanner artifacts (CR, LF, NUL padding) never cause
// a false mismatch.
func NormalizeBarcode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
