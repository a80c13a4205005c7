package scale

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordingEmitter struct {
	mu           sync.Mutex
	readings     []Reading
	faults       []string
	connected    int
	disconnected int
}

func (e *recordingEmitter) EmitWeightReading(value float64, unit, raw string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readings = append(e.readings, Reading{Value: value, Unit: unit, Raw: raw})
}

func (e *recordingEmitter) EmitScaleFault(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults = append(e.faults, message)
}

func (e *recordingEmitter) EmitScaleConnected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected++
}

func (e *recordingEmitter) EmitScaleDisconnected(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnected++
}

func (e *recordingEmitter) readingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.readings)
}

func TestMonitorReceivesReadings(t *testing.T) {
	frames := make(chan string, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	em := &recordingEmitter{}
	mon := NewMonitor(srv.URL, em)
	mon.Start()
	defer mon.Stop()

	frames <- "1.500 kg"
	frames <- "1.750 kg"

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if em.readingCount() >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(frames)

	if n := em.readingCount(); n < 2 {
		t.Fatalf("received %d readings, want 2", n)
	}

	last, ok := mon.LastReading()
	if !ok {
		t.Fatal("no cached reading")
	}
	if last.Value != 1.75 || last.Unit != "kg" {
		t.Errorf("last = %v %s, want 1.75 kg", last.Value, last.Unit)
	}

	em.mu.Lock()
	defer em.mu.Unlock()
	if em.connected != 1 {
		t.Errorf("connected events = %d, want 1", em.connected)
	}
}

func TestMonitorStopDuringBackoff(t *testing.T) {
	// No server listening: the monitor fails to connect and backs off.
	em := &recordingEmitter{}
	mon := NewMonitor("http://127.0.0.1:1", em)
	mon.Start()

	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		mon.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while backing off")
	}
}

func TestMonitorSkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: garbage\n\n")
		fmt.Fprint(w, "data: 2.0 kg\n\n")
		flusher.Flush()
		// Hold the stream open briefly so the client reads both frames.
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	em := &recordingEmitter{}
	mon := NewMonitor(srv.URL, em)
	mon.Start()
	defer mon.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if em.readingCount() >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if n := em.readingCount(); n != 1 {
		t.Fatalf("readings = %d, want 1 (malformed frame skipped)", n)
	}
	last, _ := mon.LastReading()
	if last.Value != 2.0 {
		t.Errorf("last value = %v, want 2.0", last.Value)
	}
}

func TestMonitorSurfacesErrorFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: Error - scale not responding\n\n")
		fmt.Fprint(w, "data: 3.25 kg\n\n")
		flusher.Flush()
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	em := &recordingEmitter{}
	mon := NewMonitor(srv.URL, em)
	mon.Start()
	defer mon.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if em.readingCount() >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	em.mu.Lock()
	defer em.mu.Unlock()
	if len(em.faults) != 1 || em.faults[0] != "Error - scale not responding" {
		t.Errorf("faults = %v, want the error frame surfaced once", em.faults)
	}
	if len(em.readings) != 1 || em.readings[0].Value != 3.25 {
		t.Errorf("readings = %v, want one 3.25 kg reading", em.readings)
	}
}
