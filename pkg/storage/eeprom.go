package storage

import (
	"database/sql"
	"fmt"
	"io"
)

// EEPROMSize is the emulated memory size in bytes
const EEPROMSize = 1080

const blank = 0xFF

// EEPROM emulates byte-addressed persistent memory on top of the
// eeprom table. Addresses that were never written read as erased (0xFF).
type EEPROM struct {
	store *Store
	size  int64
}

// EEPROM returns the byte store view of the database
func (s *Store) EEPROM() *EEPROM {
	return &EEPROM{store: s, size: EEPROMSize}
}

// ReadAt implements io.ReaderAt
func (e *EEPROM) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative address %d", off)
	}
	if off >= e.size {
		return 0, io.EOF
	}

	n := len(p)
	if off+int64(n) > e.size {
		n = int(e.size - off)
	}
	for i := 0; i < n; i++ {
		p[i] = blank
	}

	rows, err := e.store.db.Query(
		"SELECT address, value FROM eeprom WHERE address >= ? AND address < ?",
		off, off+int64(n),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to query eeprom: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr int64
		var value int
		if err := rows.Scan(&addr, &value); err != nil {
			return 0, fmt.Errorf("failed to scan eeprom: %w", err)
		}
		p[addr-off] = byte(value)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. The bytes are written in one transaction.
func (e *EEPROM) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > e.size {
		return 0, fmt.Errorf("write of %d bytes at %d outside eeprom of %d bytes", len(p), off, e.size)
	}

	tx, err := e.store.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO eeprom (address, value) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare eeprom write: %w", err)
	}
	defer stmt.Close()

	for i, b := range p {
		if _, err := stmt.Exec(off+int64(i), int(b)); err != nil {
			return 0, fmt.Errorf("failed to write eeprom address %d: %w", off+int64(i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit eeprom write: %w", err)
	}
	return len(p), nil
}

// Erase resets every address to the erased state
func (e *EEPROM) Erase() error {
	_, err := e.store.db.Exec("DELETE FROM eeprom")
	return err
}

// Written returns how many addresses hold a programmed value
func (e *EEPROM) Written() (int, error) {
	var count int
	err := e.store.db.QueryRow("SELECT COUNT(*) FROM eeprom").Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}
