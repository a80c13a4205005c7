package store

const schema = `
CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS dose_log (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    recipe_material_id INTEGER NOT NULL,
    material_id        INTEGER NOT NULL,
    material_name      TEXT NOT NULL DEFAULT '',
    recipe_id          INTEGER NOT NULL DEFAULT 0,
    recipe_name        TEXT NOT NULL DEFAULT '',
    set_point          REAL NOT NULL,
    actual             REAL NOT NULL,
    margin_g           REAL NOT NULL,
    batch_complete     INTEGER NOT NULL DEFAULT 0,
    recorded_at        TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_dose_log_recorded ON dose_log(recorded_at);

CREATE TABLE IF NOT EXISTS scan_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    barcode     TEXT NOT NULL,
    expected    TEXT NOT NULL DEFAULT '',
    matched     INTEGER NOT NULL,
    material_id INTEGER,
    recorded_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_scan_log_recorded ON scan_log(recorded_at);

CREATE TABLE IF NOT EXISTS notices (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    level       TEXT NOT NULL,
    message     TEXT NOT NULL,
    recorded_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_notices_recorded ON notices(recorded_at);

CREATE TABLE IF NOT EXISTS outbox (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    topic      TEXT NOT NULL,
    payload    BLOB NOT NULL,
    kind       TEXT NOT NULL DEFAULT '',
    retries    INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;
`

func (db *DB) migrate() error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// Graceful migrations for existing DBs
	db.Exec("ALTER TABLE dose_log ADD COLUMN recipe_id INTEGER NOT NULL DEFAULT 0")
	db.Exec("ALTER TABLE dose_log ADD COLUMN recipe_name TEXT NOT NULL DEFAULT ''")
	db.Exec("ALTER TABLE scan_log ADD COLUMN expected TEXT NOT NULL DEFAULT ''")
	db.Exec("ALTER TABLE outbox ADD COLUMN kind TEXT NOT NULL DEFAULT ''")
	return nil
}
