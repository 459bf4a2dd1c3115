package database

import (
	"database/sql"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle. Every operation is a single statement; the
// chat handlers and the evaluation scheduler share one Store concurrently.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	createAlertsTable := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		coin TEXT NOT NULL,
		condition TEXT NOT NULL,
		price REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(createAlertsTable); err != nil {
		return nil, errors.Wrap(err, "failed to create alerts table")
	}

	createFavoritesTable := `
	CREATE TABLE IF NOT EXISTS favorites (
		owner TEXT NOT NULL,
		coin TEXT NOT NULL,
		UNIQUE (owner, coin)
	);`
	if _, err := db.Exec(createFavoritesTable); err != nil {
		return nil, errors.Wrap(err, "failed to create favorites table")
	}

	log.Debug("database initialized")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
