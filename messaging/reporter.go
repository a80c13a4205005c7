package messaging

import (
	"log"
	"sync"
	"time"
)

// DoseReporter accumulates completed doses by material and periodically
// publishes aggregate summaries. Individual dose reports go through the
// outbox; the summary is a lossy convenience feed for dashboards.
type DoseReporter struct {
	client    *Client
	stationID string
	topic     string
	interval  time.Duration

	mu          sync.Mutex
	accumulator map[int64]*DoseSummaryEntry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewDoseReporter creates a reporter for the given workstation identity.
func NewDoseReporter(client *Client, stationID, topic string) *DoseReporter {
	return &DoseReporter{
		client:      client,
		stationID:   stationID,
		topic:       topic,
		interval:    60 * time.Second,
		accumulator: make(map[int64]*DoseSummaryEntry),
		stopCh:      make(chan struct{}),
	}
}

// RecordDose adds one completed dose to the pending summary.
func (r *DoseReporter) RecordDose(materialID int64, materialName string, actual float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.accumulator[materialID]
	if !ok {
		entry = &DoseSummaryEntry{MaterialID: materialID, MaterialName: materialName}
		r.accumulator[materialID] = entry
	}
	entry.Count++
	entry.TotalActual += actual
}

// Start begins the periodic flush loop.
func (r *DoseReporter) Start() {
	go r.loop()
}

// Stop flushes any remaining entries and halts the loop.
func (r *DoseReporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.flush()
	})
}

func (r *DoseReporter) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.flush()
		}
	}
}

func (r *DoseReporter) flush() {
	r.mu.Lock()
	if len(r.accumulator) == 0 {
		r.mu.Unlock()
		return
	}
	snapshot := r.accumulator
	r.accumulator = make(map[int64]*DoseSummaryEntry)
	r.mu.Unlock()

	entries := make([]DoseSummaryEntry, 0, len(snapshot))
	for _, entry := range snapshot {
		entries = append(entries, *entry)
	}

	env := NewEnvelope(MsgDoseSummary, r.stationID, DoseSummary{
		Station: r.stationID,
		Entries: entries,
	})
	if err := r.client.PublishEnvelope(r.topic, env); err != nil {
		log.Printf("dose_reporter: send summary: %v", err)
	} else {
		log.Printf("dose_reporter: sent %d material entries", len(entries))
	}
}
