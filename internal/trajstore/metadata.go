package trajstore

import (
	"database/sql"
	"fmt"
	"time"
)

// TrialSummary is the run-level metadata row appended after each trial
// finalizes.
type TrialSummary struct {
	RunID         string
	TrialIndex    int
	BaseSeed      uint64
	Frames        int
	TrialTimeout  bool
	TrialComplete bool
	StimulusName  string
	OutputPath    string
	CreatedAt     int64
}

// MetadataStore aggregates one summary per trial across a whole run. Unlike
// trial containers it lives at its final path from the start; rows are only
// appended after the corresponding trial file has been renamed into place,
// so it never references a trial that does not exist.
type MetadataStore struct {
	db *sql.DB
}

// OpenMetadata opens (or creates) the run-level metadata database.
func OpenMetadata(path string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trials (
			run_id         TEXT NOT NULL,
			trial_index    INTEGER NOT NULL,
			base_seed      INTEGER NOT NULL,
			frames         INTEGER NOT NULL,
			trial_timeout  INTEGER NOT NULL,
			trial_complete INTEGER NOT NULL,
			stimulus_name  TEXT NOT NULL,
			output_path    TEXT NOT NULL,
			created_at     INTEGER NOT NULL,
			PRIMARY KEY (run_id, trial_index)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}
	return &MetadataStore{db: db}, nil
}

// Append records one finalized trial.
func (m *MetadataStore) Append(s TrialSummary) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().UnixNano()
	}
	_, err := m.db.Exec(`
		INSERT INTO trials (
			run_id, trial_index, base_seed, frames,
			trial_timeout, trial_complete, stimulus_name, output_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.TrialIndex, s.BaseSeed, s.Frames,
		s.TrialTimeout, s.TrialComplete, s.StimulusName, s.OutputPath, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append trial summary %d: %w", s.TrialIndex, err)
	}
	return nil
}

// List returns every recorded summary ordered by trial index.
func (m *MetadataStore) List() ([]TrialSummary, error) {
	rows, err := m.db.Query(`
		SELECT run_id, trial_index, base_seed, frames,
		       trial_timeout, trial_complete, stimulus_name, output_path, created_at
		FROM trials ORDER BY trial_index`)
	if err != nil {
		return nil, fmt.Errorf("list trial summaries: %w", err)
	}
	defer rows.Close()
	var out []TrialSummary
	for rows.Next() {
		var s TrialSummary
		if err := rows.Scan(
			&s.RunID, &s.TrialIndex, &s.BaseSeed, &s.Frames,
			&s.TrialTimeout, &s.TrialComplete, &s.StimulusName, &s.OutputPath, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trial summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the metadata database.
func (m *MetadataStore) Close() error { return m.db.Close() }
