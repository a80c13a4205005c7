package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB is the workstation's local journal: dose and scan history, operator
// notices, queued plant reports, and the admin account. The dosing backend
// remains the system of record for recipes and orders; nothing journaled
// here is ever pushed back to it.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the journal database and brings the schema up
// to date. The journal is single-writer: one workstation process owns the
// file, so the pool is capped at a single connection.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("journal setup: %w", err)
		}
	}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}
