// Package engine provides the synchronous request/response channel to the
// external physics simulation engine. The core sends ordered batches of
// tagged commands and receives ordered batches of typed output records; the
// engine's command language is otherwise treated as opaque.
package engine

import (
	"encoding/json"
	"fmt"
	"math"
)

// Command is one tagged operation in a batch sent to the engine. Concrete
// command types below cover the operations the core itself emits; scenario
// content arrives as Raw commands and passes through untouched.
type Command interface {
	CommandType() string
}

// Vec3 is a three-component vector in engine world units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Neg returns -v.
func (v Vec3) Neg() Vec3 { return Vec3{-v.X, -v.Y, -v.Z} }

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 { return v.X*w.X + v.Y*w.Y + v.Z*w.Z }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// TeleportObject moves a body to an absolute position.
type TeleportObject struct {
	ID       int64 `json:"id"`
	Position Vec3  `json:"position"`
}

func (TeleportObject) CommandType() string { return "teleport_object" }

// RotateObjectToEulerAngles sets a body's orientation from Euler angles in
// degrees.
type RotateObjectToEulerAngles struct {
	ID          int64 `json:"id"`
	EulerAngles Vec3  `json:"euler_angles"`
}

func (RotateObjectToEulerAngles) CommandType() string { return "rotate_object_to_euler_angles" }

// SetMass overrides a body's mass.
type SetMass struct {
	ID   int64   `json:"id"`
	Mass float64 `json:"mass"`
}

func (SetMass) CommandType() string { return "set_mass" }

// SetPhysicMaterial overrides a body's friction and bounciness.
type SetPhysicMaterial struct {
	ID              int64   `json:"id"`
	DynamicFriction float64 `json:"dynamic_friction"`
	StaticFriction  float64 `json:"static_friction"`
	Bounciness      float64 `json:"bounciness"`
}

func (SetPhysicMaterial) CommandType() string { return "set_physic_material" }

// ApplyForceAtPosition applies a force to a body at a world-space point.
type ApplyForceAtPosition struct {
	ID       int64 `json:"id"`
	Force    Vec3  `json:"force"`
	Position Vec3  `json:"position"`
}

func (ApplyForceAtPosition) CommandType() string { return "apply_force_at_position" }

// DestroyObject removes a body from the scene.
type DestroyObject struct {
	ID int64 `json:"id"`
}

func (DestroyObject) CommandType() string { return "destroy_object" }

// UnloadAssetBundles asks the engine to release cached asset memory. Sent
// periodically between trials to stop the engine process from growing.
type UnloadAssetBundles struct{}

func (UnloadAssetBundles) CommandType() string { return "unload_asset_bundles" }

// Raw is an arbitrary scenario-supplied command. Fields are forwarded
// verbatim alongside the type tag.
type Raw struct {
	Type   string
	Fields map[string]any
}

func (r Raw) CommandType() string { return r.Type }

// typeTag is the key the engine uses to dispatch commands and records.
const typeTag = "$type"

// MarshalCommands encodes a batch as a JSON array of tagged objects. The tag
// is injected here so command structs stay plain Go values everywhere else.
func MarshalCommands(cmds []Command) ([]byte, error) {
	batch := make([]map[string]any, 0, len(cmds))
	for i, cmd := range cmds {
		var fields map[string]any
		if raw, ok := cmd.(Raw); ok {
			fields = make(map[string]any, len(raw.Fields)+1)
			for k, v := range raw.Fields {
				fields[k] = v
			}
		} else {
			b, err := json.Marshal(cmd)
			if err != nil {
				return nil, fmt.Errorf("marshal command %d (%s): %w", i, cmd.CommandType(), err)
			}
			if err := json.Unmarshal(b, &fields); err != nil {
				return nil, fmt.Errorf("marshal command %d (%s): %w", i, cmd.CommandType(), err)
			}
			if fields == nil {
				fields = map[string]any{}
			}
		}
		fields[typeTag] = cmd.CommandType()
		batch = append(batch, fields)
	}
	return json.Marshal(batch)
}
