package engine

import (
	"time"

	"doseedge/backend"
)

// EventType identifies the kind of event emitted by the Engine.
type EventType int

const (
	// Dosing session events
	EventStateChanged EventType = iota + 1
	EventScanMatched
	EventScanMismatch
	EventMaterialDosed
	EventBatchComplete
	EventOverweight
	EventNotice

	// Backend push-channel events
	EventBackendConnected
	EventBackendDisconnected
	EventOrderCreated
	EventOrderDeleted

	// Scale stream events
	EventWeightReading
	EventScaleConnected
	EventScaleDisconnected
)

// Event is the envelope emitted by the Engine's EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// StateChangedEvent is emitted on every session state transition.
type StateChangedEvent struct {
	OldState string                  `json:"old_state"`
	NewState string                  `json:"new_state"`
	Material *backend.ActiveMaterial `json:"material"`
}

// ScanMatchedEvent is emitted when a scan matches the expected barcode.
type ScanMatchedEvent struct {
	Barcode  string                  `json:"barcode"`
	Material *backend.ActiveMaterial `json:"material"`
}

// ScanMismatchEvent is emitted when a scan does not match.
type ScanMismatchEvent struct {
	Expected string `json:"expected"`
	Scanned  string `json:"scanned"`
}

// MaterialDosedEvent is emitted when a dose is confirmed recorded.
type MaterialDosedEvent struct {
	Material       *backend.ActiveMaterial `json:"material"`
	Data           *backend.DosedMaterial  `json:"data"`
	ResetDone      bool                    `json:"reset_done"`
	TotalRemaining int                     `json:"total_remaining"`
}

// BatchCompleteEvent is emitted when the last material of a batch is dosed.
type BatchCompleteEvent struct {
	Material *backend.ActiveMaterial `json:"material"`
	Data     *backend.DosedMaterial  `json:"data"`
}

// OverweightEvent is emitted when the weigh endpoint reports overweight, and
// repeats at the alert interval while the condition persists.
type OverweightEvent struct {
	Material *backend.ActiveMaterial `json:"material"`
	Data     *backend.DosedMaterial  `json:"data"`
}

// NoticeEvent is an operator-facing message.
type NoticeEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// BackendConnEvent is emitted when the push channel goes up or down.
type BackendConnEvent struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// OrderEvent is emitted for production order create/delete pushes.
type OrderEvent struct {
	RecipeID    int64  `json:"recipe_id"`
	OrderNumber string `json:"order_number"`
}

// WeightReadingEvent is one live-weight sample for the operator display.
type WeightReadingEvent struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Raw   string  `json:"raw"`
}

// ScaleConnEvent is emitted when the weight stream goes up or down.
type ScaleConnEvent struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}
