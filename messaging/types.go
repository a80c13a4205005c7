package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message types carried in the envelope.
const (
	MsgDoseReport    = "dose.report"
	MsgBatchReport   = "batch.report"
	MsgDoseSummary   = "dose.summary"
	MsgEdgeRegister  = "edge.register"
	MsgEdgeHeartbeat = "edge.heartbeat"
)

// Envelope wraps every outbound plant message.
type Envelope struct {
	MsgID     string      `json:"msg_id"`
	Type      string      `json:"type"`
	Station   string      `json:"station"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEnvelope builds an envelope stamped with a fresh message ID and
// the current time.
func NewEnvelope(msgType, station string, data interface{}) Envelope {
	return Envelope{
		MsgID:     uuid.New().String(),
		Type:      msgType,
		Station:   station,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// Encode serializes the envelope for publishing.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DoseReport is one completed dose, published per material.
type DoseReport struct {
	RecipeMaterialID int64   `json:"recipe_material_id"`
	MaterialID       int64   `json:"material_id"`
	MaterialName     string  `json:"material_name"`
	RecipeID         int64   `json:"recipe_id"`
	RecipeName       string  `json:"recipe_name"`
	SetPoint         float64 `json:"set_point"`
	Actual           float64 `json:"actual"`
	MarginG          float64 `json:"margin_g"`
	BatchComplete    bool    `json:"batch_complete"`
}

// DoseSummaryEntry is one material's aggregate within a summary report.
type DoseSummaryEntry struct {
	MaterialID   int64   `json:"material_id"`
	MaterialName string  `json:"material_name"`
	Count        int64   `json:"count"`
	TotalActual  float64 `json:"total_actual"`
}

// DoseSummary is the periodic aggregate published by the reporter.
type DoseSummary struct {
	Station string             `json:"station"`
	Entries []DoseSummaryEntry `json:"entries"`
}

// EdgeRegister announces this workstation on startup.
type EdgeRegister struct {
	Station  string `json:"station"`
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Line     string `json:"line"`
}

// EdgeHeartbeat is the periodic liveness message.
type EdgeHeartbeat struct {
	Station string `json:"station"`
	Uptime  int64  `json:"uptime"`
}
