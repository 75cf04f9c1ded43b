package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run describes one annotation run recorded in the store.
type Run struct {
	ID        string
	Inputs    []FileFingerprint
	StartedAt time.Time
}

// BeginRun registers a new run over inputs, in the order they were read, and
// returns its id. A zero ModTime (stdin) is stored as NULL.
func (s *Store) BeginRun(inputs ...FileFingerprint) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`, id, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	for i, in := range inputs {
		var mtime sql.NullTime
		if !in.ModTime.IsZero() {
			mtime = sql.NullTime{Time: in.ModTime.UTC(), Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO run_inputs (run_id, seq, input_path, input_size, input_mtime)
			VALUES (?, ?, ?, ?, ?)`,
			id, i, in.Path, in.Size, mtime); err != nil {
			return "", fmt.Errorf("insert run input: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// Runs lists recorded runs, oldest first, each with its inputs.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT r.run_id, r.started_at, i.input_path, i.input_size, i.input_mtime
		FROM runs r LEFT JOIN run_inputs i ON i.run_id = r.run_id
		ORDER BY r.started_at, r.run_id, i.seq`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id      string
			started time.Time
			path    sql.NullString
			size    sql.NullInt64
			mtime   sql.NullTime
		)
		if err := rows.Scan(&id, &started, &path, &size, &mtime); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if len(runs) == 0 || runs[len(runs)-1].ID != id {
			runs = append(runs, Run{ID: id, StartedAt: started})
		}
		if path.Valid {
			r := &runs[len(runs)-1]
			r.Inputs = append(r.Inputs, FileFingerprint{Path: path.String, Size: size.Int64, ModTime: mtime.Time})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
