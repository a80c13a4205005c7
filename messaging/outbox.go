package messaging

import (
	"log"
	"sync"
	"time"

	"doseedge/config"
	"doseedge/store"
)

// OutboxDrainer periodically sends pending outbox messages. Reports survive
// broker outages in the local queue and are retried in order.
type OutboxDrainer struct {
	db       *store.DB
	client   *Client
	cfg      *config.MessagingConfig
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewOutboxDrainer creates a new outbox drainer.
func NewOutboxDrainer(db *store.DB, client *Client, cfg *config.MessagingConfig) *OutboxDrainer {
	return &OutboxDrainer{
		db:       db,
		client:   client,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start begins the outbox drain loop.
func (d *OutboxDrainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the outbox drain loop.
func (d *OutboxDrainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *OutboxDrainer) drainLoop() {
	defer d.wg.Done()

	interval := d.cfg.OutboxDrainInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

func (d *OutboxDrainer) drain() {
	if !d.client.IsConnected() {
		return
	}

	reports, err := d.db.PendingReports(50)
	if err != nil {
		log.Printf("list pending reports: %v", err)
		return
	}

	for _, rep := range reports {
		topic := rep.Topic
		if topic == "" {
			topic = d.cfg.ReportsTopic
		}
		if err := d.client.Publish(topic, rep.Payload); err != nil {
			log.Printf("publish report %d: %v", rep.ID, err)
			d.db.BumpReportRetries(rep.ID)
			continue
		}
		if err := d.db.MarkReportSent(rep.ID); err != nil {
			log.Printf("mark report %d sent: %v", rep.ID, err)
		}
	}
}
