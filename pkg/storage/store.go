package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/swrmeter/pkg/logging"
)

// Store is the SQLite database behind the options memory and the
// transmission history
type Store struct {
	db         *sql.DB
	dbPath     string
	maxHistory int
}

// NewStore opens (creating if needed) the database at dbPath
func NewStore(dbPath string, maxHistory int) (*Store, error) {
	store := &Store{
		dbPath:     dbPath,
		maxHistory: maxHistory,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return store, nil
}

// initialize sets up the database connection and creates tables
func (s *Store) initialize() error {
	if s.dbPath == "" {
		s.dbPath = "./swrmeter.db"
	}

	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := s.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := s.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logging.For("storage").Infof("store initialized: %s (max %d transmissions)", s.dbPath, s.maxHistory)
	return nil
}

// createTables creates the database schema
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS eeprom (
		address INTEGER PRIMARY KEY CHECK (address >= 0),
		value INTEGER NOT NULL CHECK (value BETWEEN 0 AND 255),
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transmissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		band TEXT NOT NULL DEFAULT '',
		frequency INTEGER NOT NULL DEFAULT 0,
		peak_watts REAL NOT NULL DEFAULT 0.0,
		pep_watts REAL NOT NULL DEFAULT 0.0,
		avg_watts REAL NOT NULL DEFAULT 0.0,
		vswr REAL NOT NULL DEFAULT -1.0,
		max_vswr REAL NOT NULL DEFAULT -1.0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transmission_stats (
		id INTEGER PRIMARY KEY,
		total_transmissions INTEGER NOT NULL DEFAULT 0,
		total_seconds REAL NOT NULL DEFAULT 0.0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO transmission_stats (id, total_transmissions, total_seconds)
	VALUES (1, 0, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// createIndexes creates database indexes for performance
func (s *Store) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_transmissions_started_at ON transmissions(started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_transmissions_band ON transmissions(band)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// Size returns the bytes on disk, including the write-ahead log
func (s *Store) Size() (int64, error) {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if wal, err := os.Stat(s.dbPath + "-wal"); err == nil {
		size += wal.Size()
	}
	return size, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
