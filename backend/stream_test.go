package backend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingHandler struct {
	mu           sync.Mutex
	barcodes     []string
	created      []int64
	deleted      []int64
	connected    int
	disconnected int
}

func (h *recordingHandler) HandleBarcodeScanned(barcode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.barcodes = append(h.barcodes, barcode)
}

func (h *recordingHandler) HandleOrderCreated(recipeID int64, orderNumber string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, recipeID)
}

func (h *recordingHandler) HandleOrderDeleted(recipeID int64, orderNumber string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, recipeID)
}

func (h *recordingHandler) HandleStreamConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected++
}

func (h *recordingHandler) HandleStreamDisconnected(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected++
}

func (h *recordingHandler) counts() (barcodes, created, deleted, connected int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.barcodes), len(h.created), len(h.deleted), h.connected
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamDispatchesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"event": "barcode_scanned", "data": {"barcode": "CA-042"}}`,
			`{"event": "order_created", "data": {"recipe_id": 7, "order_number": "WO-100"}}`,
			`{"event": "order_deleted", "data": {"order_id": 3, "recipe_id": 7, "order_number": "WO-100"}}`,
			`{"event": "recipe_material_updated", "data": {}}`,
			`{"event": "some_future_event", "data": {"x": 1}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client walks away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	h := &recordingHandler{}
	s := NewStream(wsURL(srv), h)
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b, c, d, _ := h.counts()
		if b == 1 && c == 1 && d == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	b, c, d, conn := h.counts()
	if b != 1 || c != 1 || d != 1 {
		t.Errorf("barcodes=%d created=%d deleted=%d, want 1 each", b, c, d)
	}
	if conn != 1 {
		t.Errorf("connected events = %d, want 1", conn)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.barcodes[0] != "CA-042" {
		t.Errorf("barcode = %q", h.barcodes[0])
	}
	if h.created[0] != 7 || h.deleted[0] != 7 {
		t.Errorf("created=%v deleted=%v", h.created, h.deleted)
	}
}

func TestStreamReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	accepts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		accepts++
		n := accepts
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection immediately to force a reconnect.
			conn.Close()
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event": "barcode_scanned", "data": {"barcode": "B2"}}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	h := &recordingHandler{}
	s := NewStream(wsURL(srv), h)
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b, _, _, _ := h.counts()
		if b >= 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("stream did not reconnect and deliver the second connection's event")
}

func TestStreamStopDuringBackoff(t *testing.T) {
	// Nothing listening: the stream fails to connect and backs off.
	h := &recordingHandler{}
	s := NewStream("ws://127.0.0.1:1/events", h)
	s.Start()

	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while backing off")
	}
}
