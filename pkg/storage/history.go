package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dougsko/swrmeter/pkg/logging"
)

// Transmission summarises one keyed period
type Transmission struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Band        string    `json:"band"`
	FrequencyHz int64     `json:"frequency_hz"`
	PeakWatts   float64   `json:"peak_watts"`
	PEPWatts    float64   `json:"pep_watts"`
	AvgWatts    float64   `json:"avg_watts"`
	VSWR        float64   `json:"vswr"`     // at the end of the transmission
	MaxVSWR     float64   `json:"max_vswr"` // worst seen
}

// Duration returns how long the transmission lasted
func (t Transmission) Duration() time.Duration {
	return t.EndedAt.Sub(t.StartedAt)
}

// TransmissionQuery represents query parameters for retrieving history
type TransmissionQuery struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	Band   string
}

// HistoryStats represents history statistics
type HistoryStats struct {
	TotalTransmissions int       `json:"total_transmissions"`
	TotalSeconds       float64   `json:"total_seconds"`
	LastCleanup        time.Time `json:"last_cleanup"`
}

// RecordTransmission stores one completed transmission
func (s *Store) RecordTransmission(t Transmission) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO transmissions (
			started_at, ended_at, band, frequency,
			peak_watts, pep_watts, avg_watts, vswr, max_vswr
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		t.StartedAt, t.EndedAt, t.Band, t.FrequencyHz,
		t.PeakWatts, t.PEPWatts, t.AvgWatts, t.VSWR, t.MaxVSWR,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transmission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transmission ID: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE transmission_stats SET
			total_transmissions = total_transmissions + 1,
			total_seconds = total_seconds + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, t.Duration().Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to update stats: %w", err)
	}

	if err := s.cleanupOldTransmissions(tx); err != nil {
		logging.For("storage").Warnf("failed to cleanup old transmissions: %v", err)
	}

	return id, tx.Commit()
}

// cleanupOldTransmissions removes rows beyond the history limit
func (s *Store) cleanupOldTransmissions(tx *sql.Tx) error {
	if s.maxHistory <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM transmissions").Scan(&count); err != nil {
		return err
	}
	if count <= s.maxHistory {
		return nil
	}

	query := `
		DELETE FROM transmissions
		WHERE id IN (
			SELECT id FROM transmissions
			ORDER BY started_at ASC, id ASC
			LIMIT ?
		)
	`
	if _, err := tx.Exec(query, count-s.maxHistory); err != nil {
		return err
	}

	_, err := tx.Exec("UPDATE transmission_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// GetTransmissions retrieves history rows, newest first
func (s *Store) GetTransmissions(query TransmissionQuery) ([]Transmission, error) {
	var args []interface{}

	sqlQuery := `
		SELECT id, started_at, ended_at, band, frequency,
			   peak_watts, pep_watts, avg_watts, vswr, max_vswr
		FROM transmissions
		WHERE 1=1
	`

	if query.Since != nil {
		sqlQuery += " AND started_at >= ?"
		args = append(args, *query.Since)
	}
	if query.Until != nil {
		sqlQuery += " AND started_at <= ?"
		args = append(args, *query.Until)
	}
	if query.Band != "" {
		sqlQuery += " AND band = ?"
		args = append(args, query.Band)
	}

	sqlQuery += " ORDER BY started_at DESC, id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transmissions: %w", err)
	}
	defer rows.Close()

	var out []Transmission
	for rows.Next() {
		var t Transmission
		err := rows.Scan(
			&t.ID,
			&t.StartedAt,
			&t.EndedAt,
			&t.Band,
			&t.FrequencyHz,
			&t.PeakWatts,
			&t.PEPWatts,
			&t.AvgWatts,
			&t.VSWR,
			&t.MaxVSWR,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transmission: %w", err)
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

// GetRecentTransmissions returns the newest limit rows
func (s *Store) GetRecentTransmissions(limit int) ([]Transmission, error) {
	return s.GetTransmissions(TransmissionQuery{Limit: limit})
}

// GetHistoryStats returns the running totals
func (s *Store) GetHistoryStats() (*HistoryStats, error) {
	var stats HistoryStats
	var lastCleanup sql.NullTime

	err := s.db.QueryRow(`
		SELECT total_transmissions, total_seconds, last_cleanup
		FROM transmission_stats WHERE id = 1
	`).Scan(&stats.TotalTransmissions, &stats.TotalSeconds, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}

	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}
	return &stats, nil
}

// GetTransmissionCount returns the number of stored rows
func (s *Store) GetTransmissionCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM transmissions").Scan(&count)
	return count, err
}
