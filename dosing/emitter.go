package dosing

import "doseedge/backend"

// EventEmitter is the interface the dosing package uses to emit events.
// The engine package implements this via an adapter to avoid import cycles.
type EventEmitter interface {
	EmitStateChanged(oldState, newState string, material *backend.ActiveMaterial)
	EmitScanMatched(material *backend.ActiveMaterial, barcode string)
	EmitScanMismatch(expected, scanned string)
	EmitMaterialDosed(material *backend.ActiveMaterial, data *backend.DosedMaterial, resetDone bool, remaining int)
	EmitBatchComplete(material *backend.ActiveMaterial, data *backend.DosedMaterial)
	EmitOverweight(material *backend.ActiveMaterial, data *backend.DosedMaterial)
	EmitNotice(level, message string)
}

// Notice levels for EmitNotice.
const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeError   = "error"
)
