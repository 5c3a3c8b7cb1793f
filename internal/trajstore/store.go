// Package trajstore persists trial trajectories. Each trial is one SQLite
// container written incrementally at a temporary path and atomically renamed
// into place on finalization, so a file with its final name is always a
// complete trial.
package trajstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/simdata/trajgen/internal/engine"
)

var (
	// ErrStaticAlreadyWritten is returned by a second WriteStatic call.
	ErrStaticAlreadyWritten = errors.New("trajstore: static section already written")

	// ErrStaticNotWritten is returned when a frame is written before the
	// static section.
	ErrStaticNotWritten = errors.New("trajstore: static section must be written before frames")

	// ErrFrameOrder is returned when frame indices are not strictly
	// increasing from zero.
	ErrFrameOrder = errors.New("trajstore: frames must be written in order")

	// ErrTargetExists is returned by Finalize when the final path is already
	// occupied. This is a configuration error, never a silent overwrite.
	ErrTargetExists = errors.New("trajstore: finalize target already exists")
)

// ObjectLabel is a body's colour-coded segmentation label, written once to
// the static section.
type ObjectLabel struct {
	ObjectID int64
	R, G, B  uint8
}

// StaticRecord holds the trial's time-invariant attributes.
type StaticRecord struct {
	Provenance   string
	StimulusName string
	ObjectIDs    []int64
	ModelNames   []string
	Labels       []ObjectLabel
}

// FrameLabels are the per-frame trial-outcome booleans. trial_timeout and
// trial_complete are mutually exclusive by construction; trial_end is set
// in both cases.
type FrameLabels struct {
	TrialEnd      bool
	TrialTimeout  bool
	TrialComplete bool
}

// FrameRecord is one step's data: the full physics state of every tracked
// body, the outcome labels, and any opaque sensor payloads.
type FrameRecord struct {
	Objects []engine.ObjectPhysicsState
	Labels  FrameLabels
	Sensors []engine.SensorPayload
}

// Store writes one trial's trajectory. Contract: WriteStatic exactly once,
// before any WriteFrame; WriteFrame in strictly increasing order from 0;
// then either Finalize or Discard, exactly once.
type Store struct {
	db            *sql.DB
	tmpPath       string
	staticWritten bool
	nextFrame     int
	closed        bool
}

const schema = `
CREATE TABLE static (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE objects (
	object_id INTEGER PRIMARY KEY,
	model     TEXT,
	label_r   INTEGER NOT NULL,
	label_g   INTEGER NOT NULL,
	label_b   INTEGER NOT NULL
);
CREATE TABLE frames (
	frame_idx      INTEGER PRIMARY KEY,
	trial_end      INTEGER NOT NULL,
	trial_timeout  INTEGER NOT NULL,
	trial_complete INTEGER NOT NULL
);
CREATE TABLE transforms (
	frame_idx INTEGER NOT NULL,
	object_id INTEGER NOT NULL,
	pos_x REAL NOT NULL, pos_y REAL NOT NULL, pos_z REAL NOT NULL,
	rot_x REAL NOT NULL, rot_y REAL NOT NULL, rot_z REAL NOT NULL,
	vel_x REAL NOT NULL, vel_y REAL NOT NULL, vel_z REAL NOT NULL,
	ang_x REAL NOT NULL, ang_y REAL NOT NULL, ang_z REAL NOT NULL,
	mass REAL NOT NULL,
	dynamic_friction REAL NOT NULL,
	static_friction  REAL NOT NULL,
	bounciness       REAL NOT NULL,
	PRIMARY KEY (frame_idx, object_id)
);
CREATE TABLE blobs (
	frame_idx INTEGER NOT NULL,
	name      TEXT NOT NULL,
	payload   BLOB NOT NULL,
	PRIMARY KEY (frame_idx, name)
);
`

// Open creates a writable trial container at tmpPath. A stale file from an
// aborted earlier run is removed first.
func Open(tmpPath string) (*Store, error) {
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale temp file: %w", err)
	}
	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open trial container: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=OFF; PRAGMA synchronous=OFF"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure trial container: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trial schema: %w", err)
	}
	return &Store{db: db, tmpPath: tmpPath}, nil
}

// WriteStatic writes the write-once static section. It must be called before
// any frame.
func (s *Store) WriteStatic(rec StaticRecord) error {
	if s.staticWritten {
		return ErrStaticAlreadyWritten
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("write static: %w", err)
	}
	defer tx.Rollback()

	ids, err := json.Marshal(rec.ObjectIDs)
	if err != nil {
		return fmt.Errorf("write static: %w", err)
	}
	models, err := json.Marshal(rec.ModelNames)
	if err != nil {
		return fmt.Errorf("write static: %w", err)
	}
	kv := [][2]string{
		{"provenance", rec.Provenance},
		{"stimulus_name", rec.StimulusName},
		{"object_ids", string(ids)},
		{"model_names", string(models)},
	}
	for _, pair := range kv {
		if _, err := tx.Exec(`INSERT INTO static (key, value) VALUES (?, ?)`, pair[0], pair[1]); err != nil {
			return fmt.Errorf("write static %q: %w", pair[0], err)
		}
	}
	for i, lbl := range rec.Labels {
		var model string
		if i < len(rec.ModelNames) {
			model = rec.ModelNames[i]
		}
		if _, err := tx.Exec(
			`INSERT INTO objects (object_id, model, label_r, label_g, label_b) VALUES (?, ?, ?, ?, ?)`,
			lbl.ObjectID, model, lbl.R, lbl.G, lbl.B,
		); err != nil {
			return fmt.Errorf("write object label %d: %w", lbl.ObjectID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write static: %w", err)
	}
	s.staticWritten = true
	return nil
}

// WriteFrame appends one frame record. index must equal the number of frames
// already written.
func (s *Store) WriteFrame(index int, rec FrameRecord) error {
	if !s.staticWritten {
		return ErrStaticNotWritten
	}
	if index != s.nextFrame {
		return fmt.Errorf("%w: got index %d, want %d", ErrFrameOrder, index, s.nextFrame)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("write frame %d: %w", index, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO frames (frame_idx, trial_end, trial_timeout, trial_complete) VALUES (?, ?, ?, ?)`,
		index, rec.Labels.TrialEnd, rec.Labels.TrialTimeout, rec.Labels.TrialComplete,
	); err != nil {
		return fmt.Errorf("write frame %d labels: %w", index, err)
	}
	for _, st := range rec.Objects {
		if _, err := tx.Exec(
			`INSERT INTO transforms (
				frame_idx, object_id,
				pos_x, pos_y, pos_z, rot_x, rot_y, rot_z,
				vel_x, vel_y, vel_z, ang_x, ang_y, ang_z,
				mass, dynamic_friction, static_friction, bounciness
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			index, st.ID,
			st.Position.X, st.Position.Y, st.Position.Z,
			st.Rotation.X, st.Rotation.Y, st.Rotation.Z,
			st.Velocity.X, st.Velocity.Y, st.Velocity.Z,
			st.AngularVelocity.X, st.AngularVelocity.Y, st.AngularVelocity.Z,
			st.Mass, st.DynamicFriction, st.StaticFriction, st.Bounciness,
		); err != nil {
			return fmt.Errorf("write frame %d object %d: %w", index, st.ID, err)
		}
	}
	for _, blob := range rec.Sensors {
		if _, err := tx.Exec(
			`INSERT INTO blobs (frame_idx, name, payload) VALUES (?, ?, ?)`,
			index, blob.Name, blob.Data,
		); err != nil {
			return fmt.Errorf("write frame %d blob %q: %w", index, blob.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write frame %d: %w", index, err)
	}
	s.nextFrame++
	return nil
}

// FrameCount reports the number of frames written so far.
func (s *Store) FrameCount() int { return s.nextFrame }

// Finalize closes the container and atomically moves it to finalPath. If the
// target already exists the temp file is left in place and ErrTargetExists
// is returned.
func (s *Store) Finalize(finalPath string) error {
	if _, err := os.Stat(finalPath); err == nil {
		return fmt.Errorf("%w: %s", ErrTargetExists, finalPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat finalize target: %w", err)
	}
	if err := s.close(); err != nil {
		return err
	}
	if err := os.Rename(s.tmpPath, finalPath); err != nil {
		return fmt.Errorf("finalize trial: %w", err)
	}
	return nil
}

// Discard closes the container and deletes the temp file. The trial leaves
// no trace and will be re-attempted on the next run.
func (s *Store) Discard() error {
	if err := s.close(); err != nil {
		return err
	}
	if err := os.Remove(s.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("discard trial: %w", err)
	}
	return nil
}

func (s *Store) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close trial container: %w", err)
	}
	return nil
}
