package engine

import (
	"doseedge/backend"
)

// dosingEmitter adapts the engine's EventBus to the dosing.EventEmitter interface.
type dosingEmitter struct {
	bus *EventBus
}

func (e *dosingEmitter) EmitStateChanged(oldState, newState string, material *backend.ActiveMaterial) {
	e.bus.Emit(Event{Type: EventStateChanged, Payload: StateChangedEvent{
		OldState: oldState, NewState: newState, Material: material,
	}})
}

func (e *dosingEmitter) EmitScanMatched(material *backend.ActiveMaterial, barcode string) {
	e.bus.Emit(Event{Type: EventScanMatched, Payload: ScanMatchedEvent{
		Barcode: barcode, Material: material,
	}})
}

func (e *dosingEmitter) EmitScanMismatch(expected, scanned string) {
	e.bus.Emit(Event{Type: EventScanMismatch, Payload: ScanMismatchEvent{
		Expected: expected, Scanned: scanned,
	}})
}

func (e *dosingEmitter) EmitMaterialDosed(material *backend.ActiveMaterial, data *backend.DosedMaterial, resetDone bool, remaining int) {
	e.bus.Emit(Event{Type: EventMaterialDosed, Payload: MaterialDosedEvent{
		Material: material, Data: data, ResetDone: resetDone, TotalRemaining: remaining,
	}})
}

func (e *dosingEmitter) EmitBatchComplete(material *backend.ActiveMaterial, data *backend.DosedMaterial) {
	e.bus.Emit(Event{Type: EventBatchComplete, Payload: BatchCompleteEvent{
		Material: material, Data: data,
	}})
}

func (e *dosingEmitter) EmitOverweight(material *backend.ActiveMaterial, data *backend.DosedMaterial) {
	e.bus.Emit(Event{Type: EventOverweight, Payload: OverweightEvent{
		Material: material, Data: data,
	}})
}

func (e *dosingEmitter) EmitNotice(level, message string) {
	e.bus.Emit(Event{Type: EventNotice, Payload: NoticeEvent{Level: level, Message: message}})
}

// scaleEmitter adapts the engine's EventBus to the scale.EventEmitter interface.
type scaleEmitter struct {
	bus *EventBus
}

func (e *scaleEmitter) EmitWeightReading(value float64, unit, raw string) {
	e.bus.Emit(Event{Type: EventWeightReading, Payload: WeightReadingEvent{
		Value: value, Unit: unit, Raw: raw,
	}})
}

func (e *scaleEmitter) EmitScaleFault(message string) {
	e.bus.Emit(Event{Type: EventNotice, Payload: NoticeEvent{Level: "warning", Message: message}})
}

func (e *scaleEmitter) EmitScaleConnected() {
	e.bus.Emit(Event{Type: EventScaleConnected, Payload: ScaleConnEvent{Connected: true}})
}

func (e *scaleEmitter) EmitScaleDisconnected(err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	e.bus.Emit(Event{Type: EventScaleDisconnected, Payload: ScaleConnEvent{Connected: false, Error: errStr}})
}

// streamHandler adapts backend push events to the session and the EventBus.
type streamHandler struct {
	engine *Engine
}

func (h *streamHandler) HandleBarcodeScanned(barcode string) {
	h.engine.Session().HandleBarcode(barcode)
}

func (h *streamHandler) HandleOrderCreated(recipeID int64, orderNumber string) {
	h.engine.Events.Emit(Event{Type: EventOrderCreated, Payload: OrderEvent{
		RecipeID: recipeID, OrderNumber: orderNumber,
	}})
	h.engine.Session().HandleOrderCreated()
}

func (h *streamHandler) HandleOrderDeleted(recipeID int64, orderNumber string) {
	h.engine.Events.Emit(Event{Type: EventOrderDeleted, Payload: OrderEvent{
		RecipeID: recipeID, OrderNumber: orderNumber,
	}})
	h.engine.Session().HandleOrderDeleted(recipeID)
}

func (h *streamHandler) HandleStreamConnected() {
	h.engine.Events.Emit(Event{Type: EventBackendConnected, Payload: BackendConnEvent{Connected: true}})
	// Pushes may have been missed while down; refresh keeps in-flight work
	// when the backend still resolves the same material.
	h.engine.Session().HandleOrderCreated()
}

func (h *streamHandler) HandleStreamDisconnected(err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	h.engine.Events.Emit(Event{Type: EventBackendDisconnected, Payload: BackendConnEvent{Connected: false, Error: errStr}})
}
