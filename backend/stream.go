package backend

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamHandler receives decoded push events from the backend channel.
// Handlers must validate applicability themselves; the stream does not filter.
type StreamHandler interface {
	HandleBarcodeScanned(barcode string)
	HandleOrderCreated(recipeID int64, orderNumber string)
	HandleOrderDeleted(recipeID int64, orderNumber string)
	HandleStreamConnected()
	HandleStreamDisconnected(err error)
}

// streamFrame is the wire envelope on the push-event channel.
type streamFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type barcodePayload struct {
	Barcode string `json:"barcode"`
}

type orderPayload struct {
	OrderID     int64  `json:"order_id"`
	RecipeID    int64  `json:"recipe_id"`
	OrderNumber string `json:"order_number"`
}

// Stream maintains the long-lived push-event connection to the backend,
// reconnecting on disconnect with capped exponential backoff.
type Stream struct {
	url     string
	handler StreamHandler
	dialer  *websocket.Dialer

	stateMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	stopChan  chan struct{}
	running   bool
	wg        sync.WaitGroup
}

// NewStream creates a stream client for the given websocket URL.
func NewStream(url string, handler StreamHandler) *Stream {
	return &Stream{
		url:     url,
		handler: handler,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Start launches the connect/read loop.
func (s *Stream) Start() {
	s.stateMu.Lock()
	if s.running {
		s.stateMu.Unlock()
		return
	}
	s.stopChan = make(chan struct{})
	s.running = true
	s.stateMu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

// Stop shuts down the stream and waits for the read loop to exit.
func (s *Stream) Stop() {
	s.stateMu.Lock()
	if !s.running {
		s.stateMu.Unlock()
		return
	}
	close(s.stopChan)
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stateMu.Unlock()

	s.wg.Wait()
}

// IsConnected reports whether the channel is currently up.
func (s *Stream) IsConnected() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.connected
}

func (s *Stream) loop() {
	defer s.wg.Done()

	attempt := 0
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		err := s.connect()
		if err == nil {
			// Clean shutdown via cancellation
			return
		}

		s.stateMu.Lock()
		wasConnected := s.connected
		s.connected = false
		s.stateMu.Unlock()
		if wasConnected {
			log.Printf("event stream disconnected: %v", err)
			s.handler.HandleStreamDisconnected(err)
		}

		attempt++
		if !s.backoff(attempt) {
			return
		}
	}
}

// connect opens a single connection and dispatches frames until the stream
// ends or Stop is called. Returns nil on clean shutdown.
func (s *Stream) connect() error {
	ctx, cancel := context.WithCancel(context.Background())

	s.stateMu.Lock()
	s.cancel = cancel
	s.stateMu.Unlock()

	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer conn.Close()

	// Close the socket when cancelled so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	s.stateMu.Lock()
	s.connected = true
	s.stateMu.Unlock()
	log.Printf("event stream connected: %s", s.url)
	s.handler.HandleStreamConnected()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.dispatch(data)
	}
}

func (s *Stream) dispatch(data []byte) {
	var frame streamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("event stream decode: %v", err)
		return
	}

	switch frame.Event {
	case "barcode_scanned":
		var p barcodePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			log.Printf("barcode_scanned decode: %v", err)
			return
		}
		s.handler.HandleBarcodeScanned(p.Barcode)
	case "order_created":
		var p orderPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			log.Printf("order_created decode: %v", err)
			return
		}
		s.handler.HandleOrderCreated(p.RecipeID, p.OrderNumber)
	case "order_deleted":
		var p orderPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			log.Printf("order_deleted decode: %v", err)
			return
		}
		s.handler.HandleOrderDeleted(p.RecipeID, p.OrderNumber)
	case "recipe_material_updated":
		// Reserved; the session re-resolves through the active endpoint instead.
	default:
		// Ignore unknown event types
	}
}

// backoff waits with capped exponential backoff + jitter.
// Returns false if a stop signal was received during the wait.
func (s *Stream) backoff(attempt int) bool {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(float64(base) * (0.8 + 0.4*rand.Float64()))

	log.Printf("event stream reconnecting in %v (attempt %d)", jitter.Round(time.Millisecond), attempt)

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-s.stopChan:
		return false
	case <-timer.C:
		return true
	}
}
