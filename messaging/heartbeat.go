package messaging

import (
	"log"
	"os"
	"sync"
	"time"
)

// Heartbeater sends edge.register on startup and edge.heartbeat periodically.
type Heartbeater struct {
	client    *Client
	stationID string
	version   string
	line      string
	topic     string
	interval  time.Duration
	startTime time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHeartbeater creates a heartbeater for the given workstation identity.
func NewHeartbeater(client *Client, stationID, version, line, topic string) *Heartbeater {
	return &Heartbeater{
		client:    client,
		stationID: stationID,
		version:   version,
		line:      line,
		topic:     topic,
		interval:  60 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Start sends an initial registration and begins the heartbeat loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.sendRegister()
	go h.loop()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Heartbeater) sendRegister() {
	hostname, _ := os.Hostname()
	env := NewEnvelope(MsgEdgeRegister, h.stationID, EdgeRegister{
		Station:  h.stationID,
		Hostname: hostname,
		Version:  h.version,
		Line:     h.line,
	})
	if err := h.client.PublishEnvelope(h.topic, env); err != nil {
		log.Printf("heartbeater: send register: %v", err)
	} else {
		log.Printf("heartbeater: sent edge.register (station=%s)", h.stationID)
	}
}

func (h *Heartbeater) sendHeartbeat() {
	uptime := int64(time.Since(h.startTime).Seconds())
	env := NewEnvelope(MsgEdgeHeartbeat, h.stationID, EdgeHeartbeat{
		Station: h.stationID,
		Uptime:  uptime,
	})
	if err := h.client.PublishEnvelope(h.topic, env); err != nil {
		log.Printf("heartbeater: send heartbeat: %v", err)
	}
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}
