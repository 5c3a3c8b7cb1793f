package noise

import (
	"encoding/json"
	"fmt"
	"os"
)

// Params is the noise configuration for a run. Every field is optional: nil
// means "apply no noise to this quantity", so the zero Params value is the
// identity configuration. Position and friction spreads are Gaussian sigmas;
// rotation and direction fields are von Mises concentrations (higher is
// tighter around the true value).
//
// The struct round-trips through flat JSON so a run's perturbation settings
// can be audited and replayed. Unknown keys in a saved file are ignored.
type Params struct {
	PositionX *float64 `json:"position_x,omitempty"`
	PositionY *float64 `json:"position_y,omitempty"`
	PositionZ *float64 `json:"position_z,omitempty"`

	RotationX *float64 `json:"rotation_x,omitempty"`
	RotationY *float64 `json:"rotation_y,omitempty"`
	RotationZ *float64 `json:"rotation_z,omitempty"`

	VelocityDir *float64 `json:"velocity_dir,omitempty"`
	VelocityMag *float64 `json:"velocity_mag,omitempty"`

	Mass            *float64 `json:"mass,omitempty"`
	StaticFriction  *float64 `json:"static_friction,omitempty"`
	DynamicFriction *float64 `json:"dynamic_friction,omitempty"`
	Bounciness      *float64 `json:"bounciness,omitempty"`

	CollisionDir       *float64 `json:"collision_dir,omitempty"`
	CollisionMag       *float64 `json:"collision_mag,omitempty"`
	CollisionThreshold *float64 `json:"collision_threshold,omitempty"`

	// StartFrame is the step at which perturbation begins. The default of 0
	// perturbs the initial placement; a later start delays both placement
	// and collision noise to that step.
	StartFrame *int `json:"start_frame,omitempty"`
}

// Float returns a pointer to v, for building Params literals.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Params literals.
func Int(v int) *int { return &v }

// IsZero reports whether p is the identity configuration: nil or all fields
// unset.
func (p *Params) IsZero() bool {
	if p == nil {
		return true
	}
	return p.PositionX == nil && p.PositionY == nil && p.PositionZ == nil &&
		p.RotationX == nil && p.RotationY == nil && p.RotationZ == nil &&
		p.VelocityDir == nil && p.VelocityMag == nil &&
		p.Mass == nil && p.StaticFriction == nil && p.DynamicFriction == nil &&
		p.Bounciness == nil &&
		p.CollisionDir == nil && p.CollisionMag == nil && p.CollisionThreshold == nil &&
		p.StartFrame == nil
}

// PlacementEnabled reports whether any placement quantity is configured.
func (p *Params) PlacementEnabled() bool {
	if p == nil {
		return false
	}
	return p.PositionX != nil || p.PositionY != nil || p.PositionZ != nil ||
		p.RotationX != nil || p.RotationY != nil || p.RotationZ != nil ||
		p.Mass != nil || p.StaticFriction != nil || p.DynamicFriction != nil ||
		p.Bounciness != nil
}

// CollisionEnabled reports whether collision impulses are perturbed at all.
func (p *Params) CollisionEnabled() bool {
	if p == nil {
		return false
	}
	return p.CollisionDir != nil || p.CollisionMag != nil
}

// GetStartFrame returns the configured start frame, defaulting to 0.
func (p *Params) GetStartFrame() int {
	if p == nil || p.StartFrame == nil {
		return 0
	}
	return *p.StartFrame
}

// GetCollisionThreshold returns the impulse-magnitude gate, defaulting to 0
// (every collision qualifies).
func (p *Params) GetCollisionThreshold() float64 {
	if p == nil || p.CollisionThreshold == nil {
		return 0
	}
	return *p.CollisionThreshold
}

// Validate checks that configured values are usable: spreads non-negative,
// concentrations strictly positive, start frame non-negative.
func (p *Params) Validate() error {
	if p == nil {
		return nil
	}
	spreads := map[string]*float64{
		"position_x": p.PositionX, "position_y": p.PositionY, "position_z": p.PositionZ,
		"velocity_mag": p.VelocityMag, "mass": p.Mass,
		"static_friction": p.StaticFriction, "dynamic_friction": p.DynamicFriction,
		"bounciness": p.Bounciness, "collision_mag": p.CollisionMag,
		"collision_threshold": p.CollisionThreshold,
	}
	for name, v := range spreads {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, *v)
		}
	}
	concentrations := map[string]*float64{
		"rotation_x": p.RotationX, "rotation_y": p.RotationY, "rotation_z": p.RotationZ,
		"velocity_dir": p.VelocityDir, "collision_dir": p.CollisionDir,
	}
	for name, v := range concentrations {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s concentration must be positive, got %v", name, *v)
		}
	}
	if p.StartFrame != nil && *p.StartFrame < 0 {
		return fmt.Errorf("start_frame must be non-negative, got %d", *p.StartFrame)
	}
	return nil
}

// Save writes the configuration as flat JSON.
func (p *Params) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal noise params: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write noise params: %w", err)
	}
	return nil
}

// LoadParams restores a configuration saved by Save. Fields absent from the
// file stay unset; unknown fields are ignored, never treated as zero.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read noise params: %w", err)
	}
	p := &Params{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse noise params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid noise params: %w", err)
	}
	return p, nil
}
