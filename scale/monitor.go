package scale

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Reading is one decoded weight sample from the live stream.
type Reading struct {
	Value float64   `json:"value"`
	Unit  string    `json:"unit"`
	Raw   string    `json:"raw"`
	At    time.Time `json:"at"`
}

// ParseWeight decodes a live-weight frame like "12.345 kg". The unit suffix
// is optional; anything after the numeric token is treated as the unit.
func ParseWeight(s string) (float64, string, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0, "", fmt.Errorf("empty weight frame")
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, "", fmt.Errorf("weight frame %q: %w", s, err)
	}
	unit := strings.Join(fields[1:], " ")
	return value, unit, nil
}

// Monitor consumes the backend's live-weight stream and caches the latest
// reading for the operator display. The stream is advisory; dose decisions
// always go through the weigh endpoint, never through this cache.
type Monitor struct {
	url     string
	emitter EventEmitter
	client  *http.Client

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	stopChan  chan struct{}
	running   bool
	wg        sync.WaitGroup

	lastMu  sync.RWMutex
	last    Reading
	hasRead bool
}

// NewMonitor creates a monitor for the given stream URL.
func NewMonitor(url string, emitter EventEmitter) *Monitor {
	return &Monitor{
		url:     url,
		emitter: emitter,
		// No overall timeout: the stream is long-lived by design.
		client: &http.Client{},
	}
}

// Start launches the connect/read loop.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.stopChan = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop()
}

// Stop shuts down the monitor and waits for the read loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopChan)
	m.running = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// IsConnected reports whether the stream is currently up.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// LastReading returns the most recent sample, if any has arrived.
func (m *Monitor) LastReading() (Reading, bool) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	return m.last, m.hasRead
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	attempt := 0
	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		err := m.connect()
		if err == nil {
			// Clean shutdown via cancellation
			return
		}

		m.mu.Lock()
		wasConnected := m.connected
		m.connected = false
		m.mu.Unlock()
		if wasConnected {
			log.Printf("weight stream disconnected: %v", err)
			m.emitter.EmitScaleDisconnected(err)
		}

		attempt++
		if !m.backoff(attempt) {
			return
		}
	}
}

// connect opens a single stream connection and processes frames until the
// stream ends or Stop is called. Returns nil on clean shutdown.
func (m *Monitor) connect() error {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", m.url, nil)
	if err != nil {
		return fmt.Errorf("weight stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("weight stream connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weight stream status %d", resp.StatusCode)
	}

	m.mu.Lock()
	wasDisconnected := !m.connected
	m.connected = true
	m.mu.Unlock()
	if wasDisconnected {
		log.Printf("weight stream connected: %s", m.url)
		m.emitter.EmitScaleConnected()
	}

	reader := NewReader(resp.Body)
	for {
		frame, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == io.EOF {
				return fmt.Errorf("weight stream EOF")
			}
			return fmt.Errorf("weight stream read: %w", err)
		}
		m.handleFrame(frame)
	}
}

func (m *Monitor) handleFrame(frame string) {
	// The scale service reports hardware trouble in-band as "Error - ..."
	// frames on the same stream.
	if strings.HasPrefix(frame, "Error") {
		log.Printf("weight stream fault: %s", frame)
		m.emitter.EmitScaleFault(frame)
		return
	}

	value, unit, err := ParseWeight(frame)
	if err != nil {
		log.Printf("weight frame decode: %v", err)
		return
	}

	m.lastMu.Lock()
	m.last = Reading{Value: value, Unit: unit, Raw: frame, At: time.Now()}
	m.hasRead = true
	m.lastMu.Unlock()

	m.emitter.EmitWeightReading(value, unit, frame)
}

// backoff waits with capped exponential backoff + jitter.
// Returns false if a stop signal was received during the wait.
func (m *Monitor) backoff(attempt int) bool {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(float64(base) * (0.8 + 0.4*rand.Float64()))

	log.Printf("weight stream reconnecting in %v (attempt %d)", jitter.Round(time.Millisecond), attempt)

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-m.stopChan:
		return false
	case <-timer.C:
		return true
	}
}
