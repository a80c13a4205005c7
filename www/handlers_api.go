package www

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"doseedge/scale"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// historyLimit parses the ?limit= query parameter, defaulting to 50.
func historyLimit(r *http.Request) int {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

// --- Session and status ---

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.AppConfig()
	snap := h.engine.Session().Snapshot()

	var reading *scale.Reading
	scaleConnected := false
	if mon := h.engine.Scale(); mon != nil {
		scaleConnected = mon.IsConnected()
		if last, ok := mon.LastReading(); ok {
			reading = &last
		}
	}

	writeJSON(w, map[string]interface{}{
		"station":           cfg.StationID(),
		"backend_url":       cfg.Backend.URL,
		"backend_connected": h.engine.StreamConnected(),
		"scale_connected":   scaleConnected,
		"weight":            reading,
		"session":           snap,
	})
}

func (h *Handlers) apiActiveMaterial(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Session().Snapshot())
}

func (h *Handlers) apiWeight(w http.ResponseWriter, r *http.Request) {
	mon := h.engine.Scale()
	if mon == nil {
		writeError(w, http.StatusServiceUnavailable, "weight stream disabled")
		return
	}
	reading, ok := mon.LastReading()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no weight reading yet")
		return
	}
	writeJSON(w, reading)
}

// --- Workflow actions ---

func (h *Handlers) apiScanStart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Session().StartScan(r.Context()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiScanStop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Session().StopScan(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Session().Resolve(); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, h.engine.Session().Snapshot())
}

func (h *Handlers) apiBypass(w http.ResponseWriter, r *http.Request) {
	msg, err := h.engine.Session().Bypass(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "message": msg})
}

// apiPushBarcode injects a scan as if the scanner had fired. Intended for
// commissioning a station without a physical scanner attached.
func (h *Handlers) apiPushBarcode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode string `json:"barcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Barcode == "" {
		writeError(w, http.StatusBadRequest, "barcode is required")
		return
	}
	// The scan path calls the backend; don't hold the request on it.
	go h.engine.Session().HandleBarcode(req.Barcode)
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- History ---

func (h *Handlers) apiListDoses(w http.ResponseWriter, r *http.Request) {
	doses, err := h.engine.DB().ListDoses(historyLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, doses)
}

func (h *Handlers) apiListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.engine.DB().ListScans(historyLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, scans)
}

func (h *Handlers) apiListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.engine.DB().ListNotices(historyLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, notices)
}

func (h *Handlers) apiDoseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.DB().GetDoseStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, stats)
}

// --- Config ---

func (h *Handlers) apiUpdateBackend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		EventsURL string `json:"events_url"`
		Token     string `json:"token"`
		Timeout   string `json:"timeout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	if req.URL != "" {
		cfg.Backend.URL = req.URL
	}
	if req.EventsURL != "" {
		cfg.Backend.EventsURL = req.EventsURL
	}
	if req.Token != "" {
		cfg.Backend.Token = req.Token
	}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			cfg.Unlock()
			writeError(w, http.StatusBadRequest, "invalid timeout: "+err.Error())
			return
		}
		cfg.Backend.Timeout = d
	}
	cfg.Unlock()

	if err := cfg.Save(h.engine.ConfigPath()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.engine.ApplyBackendConfig()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiUpdateScale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StreamURL string `json:"stream_url"`
		Enabled   bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	if req.StreamURL != "" {
		cfg.Scale.StreamURL = req.StreamURL
	}
	cfg.Scale.Enabled = req.Enabled
	cfg.Unlock()

	if err := cfg.Save(h.engine.ConfigPath()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.engine.ApplyScaleConfig()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiUpdateMessaging(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Backend      string   `json:"backend"`
		MQTTBroker   string   `json:"mqtt_broker"`
		MQTTPort     int      `json:"mqtt_port"`
		MQTTClientID string   `json:"mqtt_client_id"`
		KafkaBrokers []string `json:"kafka_brokers"`
		ReportsTopic string   `json:"reports_topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := h.engine.AppConfig()
	cfg.Lock()
	cfg.Messaging.Backend = req.Backend
	cfg.Messaging.MQTT.Broker = req.MQTTBroker
	cfg.Messaging.MQTT.Port = req.MQTTPort
	cfg.Messaging.MQTT.ClientID = req.MQTTClientID
	cfg.Messaging.Kafka.Brokers = req.KafkaBrokers
	cfg.Messaging.ReportsTopic = req.ReportsTopic
	cfg.Unlock()

	if err := cfg.Save(h.engine.ConfigPath()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Messaging reconnect requires restart; the saved config applies then.
	writeJSON(w, map[string]string{"status": "ok"})
}
