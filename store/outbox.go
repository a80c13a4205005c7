package store

// ReportKind tags a queued plant report.
type ReportKind string

const (
	// ReportDose is one confirmed material dose.
	ReportDose ReportKind = "dose"
	// ReportBatch is the dose that completed a full batch round.
	ReportBatch ReportKind = "batch"
)

// QueuedReport is a plant report waiting for a broker connection. Every
// dose enqueues unconditionally; the drainer delivers once messaging is
// up, so a broker outage never loses a dose report.
type QueuedReport struct {
	ID        int64      `json:"id"`
	Topic     string     `json:"topic"`
	Payload   []byte     `json:"payload"`
	Kind      ReportKind `json:"kind"`
	Retries   int        `json:"retries"`
	CreatedAt string     `json:"created_at"`
	SentAt    *string    `json:"sent_at"`
}

// EnqueueReport queues an encoded report for delivery.
func (db *DB) EnqueueReport(topic string, payload []byte, kind ReportKind) (int64, error) {
	res, err := db.Exec(`INSERT INTO outbox (topic, payload, kind) VALUES (?, ?, ?)`,
		topic, payload, string(kind))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// PendingReports returns undelivered reports, oldest first.
func (db *DB) PendingReports(limit int) ([]QueuedReport, error) {
	rows, err := db.Query(`
		SELECT id, topic, payload, kind, retries, created_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []QueuedReport
	for rows.Next() {
		var r QueuedReport
		if err := rows.Scan(&r.ID, &r.Topic, &r.Payload, &r.Kind, &r.Retries, &r.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// MarkReportSent records a successful publish.
func (db *DB) MarkReportSent(id int64) error {
	_, err := db.Exec(`UPDATE outbox SET sent_at = datetime('now','localtime') WHERE id = ?`, id)
	return err
}

// BumpReportRetries counts a failed publish attempt.
func (db *DB) BumpReportRetries(id int64) error {
	_, err := db.Exec(`UPDATE outbox SET retries = retries + 1 WHERE id = ?`, id)
	return err
}
