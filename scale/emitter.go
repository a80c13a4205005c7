package scale

// EventEmitter is the interface the scale package uses to emit events.
// The engine package implements this via an adapter.
type EventEmitter interface {
	EmitWeightReading(value float64, unit, raw string)
	EmitScaleFault(message string)
	EmitScaleConnected()
	EmitScaleDisconnected(err error)
}
