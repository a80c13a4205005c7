package store

// DoseRecord is one completed dose as journaled locally. The backend remains
// the system of record; this log exists for the operator history views and
// for building outbound plant reports.
type DoseRecord struct {
	ID               int64   `json:"id"`
	RecipeMaterialID int64   `json:"recipe_material_id"`
	MaterialID       int64   `json:"material_id"`
	MaterialName     string  `json:"material_name"`
	RecipeID         int64   `json:"recipe_id"`
	RecipeName       string  `json:"recipe_name"`
	SetPoint         float64 `json:"set_point"`
	Actual           float64 `json:"actual"`
	MarginG          float64 `json:"margin_g"`
	BatchComplete    bool    `json:"batch_complete"`
	RecordedAt       string  `json:"recorded_at"`
}

// ScanRecord is one scan event, matched or not.
type ScanRecord struct {
	ID         int64  `json:"id"`
	Barcode    string `json:"barcode"`
	Expected   string `json:"expected"`
	Matched    bool   `json:"matched"`
	MaterialID *int64 `json:"material_id"`
	RecordedAt string `json:"recorded_at"`
}

// Notice is an operator-facing message kept for the history view.
type Notice struct {
	ID         int64  `json:"id"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	RecordedAt string `json:"recorded_at"`
}

func (db *DB) InsertDose(d DoseRecord) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO dose_log (recipe_material_id, material_id, material_name, recipe_id, recipe_name, set_point, actual, margin_g, batch_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RecipeMaterialID, d.MaterialID, d.MaterialName, d.RecipeID, d.RecipeName,
		d.SetPoint, d.Actual, d.MarginG, d.BatchComplete)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) ListDoses(limit int) ([]DoseRecord, error) {
	rows, err := db.Query(`
		SELECT id, recipe_material_id, material_id, material_name, recipe_id, recipe_name, set_point, actual, margin_g, batch_complete, recorded_at
		FROM dose_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var doses []DoseRecord
	for rows.Next() {
		var d DoseRecord
		if err := rows.Scan(&d.ID, &d.RecipeMaterialID, &d.MaterialID, &d.MaterialName,
			&d.RecipeID, &d.RecipeName, &d.SetPoint, &d.Actual, &d.MarginG,
			&d.BatchComplete, &d.RecordedAt); err != nil {
			return nil, err
		}
		doses = append(doses, d)
	}
	return doses, rows.Err()
}

func (db *DB) InsertScan(barcode, expected string, matched bool, materialID *int64) (int64, error) {
	res, err := db.Exec(`INSERT INTO scan_log (barcode, expected, matched, material_id) VALUES (?, ?, ?, ?)`,
		barcode, expected, matched, materialID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) ListScans(limit int) ([]ScanRecord, error) {
	rows, err := db.Query(`
		SELECT id, barcode, expected, matched, material_id, recorded_at
		FROM scan_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scans []ScanRecord
	for rows.Next() {
		var s ScanRecord
		if err := rows.Scan(&s.ID, &s.Barcode, &s.Expected, &s.Matched, &s.MaterialID, &s.RecordedAt); err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

func (db *DB) InsertNotice(level, message string) (int64, error) {
	res, err := db.Exec(`INSERT INTO notices (level, message) VALUES (?, ?)`, level, message)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) ListNotices(limit int) ([]Notice, error) {
	rows, err := db.Query(`SELECT id, level, message, recorded_at FROM notices ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notices []Notice
	for rows.Next() {
		var n Notice
		if err := rows.Scan(&n.ID, &n.Level, &n.Message, &n.RecordedAt); err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

// DoseStats summarizes the local dose journal.
type DoseStats struct {
	Count          int     `json:"count"`
	BatchesDone    int     `json:"batches_done"`
	AvgMarginG     float64 `json:"avg_margin_g"`
	MaxAbsMarginG  float64 `json:"max_abs_margin_g"`
	LastRecordedAt string  `json:"last_recorded_at"`
}

func (db *DB) GetDoseStats() (DoseStats, error) {
	var s DoseStats
	err := db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(batch_complete), 0),
		       COALESCE(AVG(margin_g), 0),
		       COALESCE(MAX(ABS(margin_g)), 0),
		       COALESCE(MAX(recorded_at), '')
		FROM dose_log`).
		Scan(&s.Count, &s.BatchesDone, &s.AvgMarginG, &s.MaxAbsMarginG, &s.LastRecordedAt)
	return s, err
}
