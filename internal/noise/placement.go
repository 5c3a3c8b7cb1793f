package noise

import (
	"github.com/simdata/trajgen/internal/engine"
)

// PerturbPlacement returns a copy of st with each configured placement
// quantity redrawn around its true value. Positions take per-axis Gaussian
// noise; Euler angles take von Mises noise (applied in radians, stored back
// in degrees); mass, frictions and bounciness take Gaussian noise clamped at
// zero. Bounciness has no upper clamp. With an identity configuration the
// input is returned unchanged.
//
// Draw order is fixed (per axis: position then rotation; then mass,
// dynamic friction, static friction, bounciness) so the sequence of counter
// values consumed is reproducible.
func PerturbPlacement(seq *Sequence, p *Params, st engine.ObjectPhysicsState) engine.ObjectPhysicsState {
	if !p.PlacementEnabled() {
		return st
	}
	out := st

	axes := []struct {
		pos    *float64
		rot    *float64
		getPos func(*engine.Vec3) *float64
		getRot func(*engine.Vec3) *float64
	}{
		{p.PositionX, p.RotationX, func(v *engine.Vec3) *float64 { return &v.X }, func(v *engine.Vec3) *float64 { return &v.X }},
		{p.PositionY, p.RotationY, func(v *engine.Vec3) *float64 { return &v.Y }, func(v *engine.Vec3) *float64 { return &v.Y }},
		{p.PositionZ, p.RotationZ, func(v *engine.Vec3) *float64 { return &v.Z }, func(v *engine.Vec3) *float64 { return &v.Z }},
	}
	for _, ax := range axes {
		if ax.pos != nil {
			dst := ax.getPos(&out.Position)
			*dst = seq.normal(*dst, *ax.pos)
		}
		if ax.rot != nil {
			dst := ax.getRot(&out.Rotation)
			*dst = rad2deg(vonMises(seq.source(), deg2rad(*dst), *ax.rot))
		}
	}

	if p.Mass != nil {
		out.Mass = seq.normalClamped(st.Mass, *p.Mass)
	}
	if p.DynamicFriction != nil {
		out.DynamicFriction = seq.normalClamped(st.DynamicFriction, *p.DynamicFriction)
	}
	if p.StaticFriction != nil {
		out.StaticFriction = seq.normalClamped(st.StaticFriction, *p.StaticFriction)
	}
	if p.Bounciness != nil {
		out.Bounciness = seq.normalClamped(st.Bounciness, *p.Bounciness)
	}
	return out
}

// PerturbInitialVelocity redraws a launch velocity: magnitude from a
// Gaussian around the true speed (clamped at zero), direction from a von
// Mises-Fisher distribution around the true direction. A zero vector passes
// through unchanged since it has no direction to perturb. Scenario
// initializers call this when pushing objects.
func PerturbInitialVelocity(seq *Sequence, p *Params, v engine.Vec3) engine.Vec3 {
	if p == nil || (p.VelocityDir == nil && p.VelocityMag == nil) {
		return v
	}
	mag := v.Norm()
	if mag == 0 {
		return v
	}
	dir := v.Scale(1 / mag)
	if p.VelocityMag != nil {
		mag = seq.normalClamped(mag, *p.VelocityMag)
	}
	if p.VelocityDir != nil {
		dir = vonMisesFisher(seq.source(), dir, *p.VelocityDir)
	}
	return dir.Scale(mag)
}

// PlacementCommands expresses a perturbed body state as the engine commands
// that impose it: teleport, rotate, set mass, set physic material.
func PlacementCommands(st engine.ObjectPhysicsState) []engine.Command {
	return []engine.Command{
		engine.TeleportObject{ID: st.ID, Position: st.Position},
		engine.RotateObjectToEulerAngles{ID: st.ID, EulerAngles: st.Rotation},
		engine.SetMass{ID: st.ID, Mass: st.Mass},
		engine.SetPhysicMaterial{
			ID:              st.ID,
			DynamicFriction: st.DynamicFriction,
			StaticFriction:  st.StaticFriction,
			Bounciness:      st.Bounciness,
		},
	}
}
