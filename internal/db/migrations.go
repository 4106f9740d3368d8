package db

import (
	"database/sql"
	_ "embed"

	"github.com/rotisserie/eris"
)

//go:embed schema.sql
var schemaSQL string

// ApplyMigrations applies the embedded schema SQL to the database and
// performs lightweight post-creation migrations (adding new columns when needed).
func ApplyMigrations(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return eris.Wrap(err, "apply migrations")
	}
	// Ensure new columns exist on upgrades
	return ensureRunColumns(db)
}

// ensureRunColumns checks for optional columns and adds them when missing.
func ensureRunColumns(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(runs)")
	if err != nil {
		return eris.Wrap(err, "inspect runs table")
	}
	defer func() { _ = rows.Close() }()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dflt interface{}
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return eris.Wrap(err, "scan table info")
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "inspect runs table")
	}
	_ = rows.Close()

	if !cols["error"] {
		if _, err := db.Exec("ALTER TABLE runs ADD COLUMN error TEXT"); err != nil {
			return eris.Wrap(err, "add runs.error")
		}
	}
	return nil
}
