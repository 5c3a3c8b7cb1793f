package trajstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/simdata/trajgen/internal/engine"
)

// Reader gives read access to a finalized trial container.
type Reader struct {
	db *sql.DB
}

// OpenReader opens a trial container for reading.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trial container: %w", err)
	}
	return &Reader{db: db}, nil
}

// Static reads back the static section.
func (r *Reader) Static() (StaticRecord, error) {
	var rec StaticRecord
	rows, err := r.db.Query(`SELECT key, value FROM static`)
	if err != nil {
		return rec, fmt.Errorf("read static: %w", err)
	}
	defer rows.Close()
	kv := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return rec, fmt.Errorf("read static: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("read static: %w", err)
	}
	rec.Provenance = kv["provenance"]
	rec.StimulusName = kv["stimulus_name"]
	if v, ok := kv["object_ids"]; ok {
		if err := json.Unmarshal([]byte(v), &rec.ObjectIDs); err != nil {
			return rec, fmt.Errorf("read static object_ids: %w", err)
		}
	}
	if v, ok := kv["model_names"]; ok {
		if err := json.Unmarshal([]byte(v), &rec.ModelNames); err != nil {
			return rec, fmt.Errorf("read static model_names: %w", err)
		}
	}

	lrows, err := r.db.Query(`SELECT object_id, label_r, label_g, label_b FROM objects ORDER BY rowid`)
	if err != nil {
		return rec, fmt.Errorf("read object labels: %w", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var lbl ObjectLabel
		if err := lrows.Scan(&lbl.ObjectID, &lbl.R, &lbl.G, &lbl.B); err != nil {
			return rec, fmt.Errorf("read object labels: %w", err)
		}
		rec.Labels = append(rec.Labels, lbl)
	}
	return rec, lrows.Err()
}

// FrameCount returns the number of frame records in the container.
func (r *Reader) FrameCount() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// FrameLabels reads the outcome labels of one frame.
func (r *Reader) FrameLabels(index int) (FrameLabels, error) {
	var l FrameLabels
	err := r.db.QueryRow(
		`SELECT trial_end, trial_timeout, trial_complete FROM frames WHERE frame_idx = ?`, index,
	).Scan(&l.TrialEnd, &l.TrialTimeout, &l.TrialComplete)
	if err != nil {
		return l, fmt.Errorf("read frame %d labels: %w", index, err)
	}
	return l, nil
}

// FrameObjects reads the per-body physics states of one frame.
func (r *Reader) FrameObjects(index int) ([]engine.ObjectPhysicsState, error) {
	rows, err := r.db.Query(
		`SELECT object_id,
			pos_x, pos_y, pos_z, rot_x, rot_y, rot_z,
			vel_x, vel_y, vel_z, ang_x, ang_y, ang_z,
			mass, dynamic_friction, static_friction, bounciness
		FROM transforms WHERE frame_idx = ? ORDER BY object_id`, index)
	if err != nil {
		return nil, fmt.Errorf("read frame %d objects: %w", index, err)
	}
	defer rows.Close()
	var out []engine.ObjectPhysicsState
	for rows.Next() {
		var st engine.ObjectPhysicsState
		if err := rows.Scan(&st.ID,
			&st.Position.X, &st.Position.Y, &st.Position.Z,
			&st.Rotation.X, &st.Rotation.Y, &st.Rotation.Z,
			&st.Velocity.X, &st.Velocity.Y, &st.Velocity.Z,
			&st.AngularVelocity.X, &st.AngularVelocity.Y, &st.AngularVelocity.Z,
			&st.Mass, &st.DynamicFriction, &st.StaticFriction, &st.Bounciness,
		); err != nil {
			return nil, fmt.Errorf("read frame %d objects: %w", index, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Close releases the container.
func (r *Reader) Close() error { return r.db.Close() }
