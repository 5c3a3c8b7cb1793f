package engine

import (
	"encoding/json"
	"fmt"
)

// CollisionState is the lifecycle phase of a contact pair.
type CollisionState string

const (
	CollisionEnter CollisionState = "enter"
	CollisionStay  CollisionState = "stay"
	CollisionExit  CollisionState = "exit"
)

// Transform is a body's pose as reported by the engine for one step.
// Rotation is Euler angles in degrees, matching the engine's rotation
// commands.
type Transform struct {
	ID       int64 `json:"id"`
	Position Vec3  `json:"position"`
	Rotation Vec3  `json:"rotation"`
	Forward  Vec3  `json:"forward"`
}

// Rigidbody is a body's dynamic state for one step.
type Rigidbody struct {
	ID              int64 `json:"id"`
	Velocity        Vec3  `json:"velocity"`
	AngularVelocity Vec3  `json:"angular_velocity"`
	Sleeping        bool  `json:"sleeping"`
}

// StaticRigidbody carries a body's physics-material parameters.
type StaticRigidbody struct {
	ID              int64   `json:"id"`
	Mass            float64 `json:"mass"`
	DynamicFriction float64 `json:"dynamic_friction"`
	StaticFriction  float64 `json:"static_friction"`
	Bounciness      float64 `json:"bounciness"`
}

// CollisionEvent is one contact pair reported for one step. The agent is the
// collider, the patient the collidee.
type CollisionEvent struct {
	AgentID          int64          `json:"agent_id"`
	PatientID        int64          `json:"patient_id"`
	RelativeVelocity Vec3           `json:"relative_velocity"`
	Impulse          Vec3           `json:"impulse"`
	ContactPoints    []Vec3         `json:"contact_points"`
	ContactNormals   []Vec3         `json:"contact_normals"`
	NumContacts      int            `json:"num_contacts"`
	State            CollisionState `json:"state"`
}

// ObjectColor maps a body to its segmentation label colour.
type ObjectColor struct {
	ID    int64    `json:"id"`
	Color [3]uint8 `json:"color"`
}

// SensorPayload is an opaque rendered blob (image pass, depth map, ...).
// The core persists it without interpreting the contents.
type SensorPayload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Response groups the typed records the engine returned for one command
// batch. Record kinds the core does not recognise are dropped during
// parsing.
type Response struct {
	Transforms        []Transform
	Rigidbodies       []Rigidbody
	StaticRigidbodies []StaticRigidbody
	Collisions        []CollisionEvent
	Colors            []ObjectColor
	Sensors           []SensorPayload
}

// ObjectPhysicsState is the merged per-body view assembled from transform,
// rigidbody and static-rigidbody records. The orchestrator keeps one per
// tracked object and refreshes it from every response.
type ObjectPhysicsState struct {
	ID              int64
	Position        Vec3
	Rotation        Vec3 // Euler angles, degrees
	Velocity        Vec3
	AngularVelocity Vec3
	Mass            float64
	DynamicFriction float64
	StaticFriction  float64
	Bounciness      float64
}

// ApplyTo folds the response's per-body records into the state cache,
// creating entries for bodies seen for the first time.
func (r *Response) ApplyTo(states map[int64]ObjectPhysicsState) {
	get := func(id int64) ObjectPhysicsState {
		if st, ok := states[id]; ok {
			return st
		}
		return ObjectPhysicsState{ID: id}
	}
	for _, tr := range r.Transforms {
		st := get(tr.ID)
		st.Position = tr.Position
		st.Rotation = tr.Rotation
		states[tr.ID] = st
	}
	for _, rb := range r.Rigidbodies {
		st := get(rb.ID)
		st.Velocity = rb.Velocity
		st.AngularVelocity = rb.AngularVelocity
		states[rb.ID] = st
	}
	for _, srb := range r.StaticRigidbodies {
		st := get(srb.ID)
		st.Mass = srb.Mass
		st.DynamicFriction = srb.DynamicFriction
		st.StaticFriction = srb.StaticFriction
		st.Bounciness = srb.Bounciness
		states[srb.ID] = st
	}
}

// ParseResponse decodes a JSON batch of tagged records. A batch that is not
// a JSON array, or a record that fails to decode as its tagged kind, is a
// malformed response.
func ParseResponse(data []byte) (*Response, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("response is not a record batch: %w", err)
	}
	resp := &Response{}
	for i, msg := range raw {
		var probe struct {
			Type string `json:"$type"`
		}
		if err := json.Unmarshal(msg, &probe); err != nil {
			return nil, fmt.Errorf("record %d: missing type tag: %w", i, err)
		}
		var err error
		switch probe.Type {
		case "transform":
			var rec Transform
			err = json.Unmarshal(msg, &rec)
			resp.Transforms = append(resp.Transforms, rec)
		case "rigidbody":
			var rec Rigidbody
			err = json.Unmarshal(msg, &rec)
			resp.Rigidbodies = append(resp.Rigidbodies, rec)
		case "static_rigidbody":
			var rec StaticRigidbody
			err = json.Unmarshal(msg, &rec)
			resp.StaticRigidbodies = append(resp.StaticRigidbodies, rec)
		case "collision":
			var rec CollisionEvent
			err = json.Unmarshal(msg, &rec)
			resp.Collisions = append(resp.Collisions, rec)
		case "segmentation_color":
			var rec ObjectColor
			err = json.Unmarshal(msg, &rec)
			resp.Colors = append(resp.Colors, rec)
		case "sensor":
			var rec SensorPayload
			err = json.Unmarshal(msg, &rec)
			resp.Sensors = append(resp.Sensors, rec)
		default:
			// Unknown record kinds are engine-internal; skip them.
		}
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, probe.Type, err)
		}
	}
	return resp, nil
}
