package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdata/trajgen/internal/engine"
)

func testState() engine.ObjectPhysicsState {
	return engine.ObjectPhysicsState{
		ID:              1,
		Position:        engine.Vec3{X: 0.5, Y: 1.0, Z: -0.25},
		Rotation:        engine.Vec3{X: 10, Y: 45, Z: 0},
		Mass:            2.0,
		DynamicFriction: 0.4,
		StaticFriction:  0.5,
		Bounciness:      0.6,
	}
}

func TestPerturbPlacement_IdentityWhenUnconfigured(t *testing.T) {
	seq := NewSequence(1, 0)
	st := testState()
	out := PerturbPlacement(seq, &Params{}, st)
	assert.Equal(t, st, out)
	assert.Equal(t, uint64(0), seq.Counter(), "identity params must consume no draws")
}

func TestPerturbPlacement_Deterministic(t *testing.T) {
	p := &Params{
		PositionX: Float(0.1), PositionY: Float(0.1), PositionZ: Float(0.1),
		RotationX: Float(20), RotationY: Float(20), RotationZ: Float(20),
		Mass: Float(0.5), DynamicFriction: Float(0.1), StaticFriction: Float(0.1), Bounciness: Float(0.1),
	}
	a := PerturbPlacement(NewSequence(42, 5), p, testState())
	b := PerturbPlacement(NewSequence(42, 5), p, testState())
	assert.Equal(t, a, b, "same seed and trial index must give bit-identical output")

	c := PerturbPlacement(NewSequence(42, 6), p, testState())
	assert.NotEqual(t, a, c, "different trial index must give a different draw")
}

func TestPerturbPlacement_ClampsNonNegative(t *testing.T) {
	// Spreads large enough that unclamped draws would frequently go
	// negative.
	p := &Params{
		Mass:            Float(50),
		DynamicFriction: Float(50),
		StaticFriction:  Float(50),
		Bounciness:      Float(50),
	}
	for i := 0; i < 200; i++ {
		out := PerturbPlacement(NewSequence(3, i), p, testState())
		require.GreaterOrEqual(t, out.Mass, 0.0)
		require.GreaterOrEqual(t, out.DynamicFriction, 0.0)
		require.GreaterOrEqual(t, out.StaticFriction, 0.0)
		require.GreaterOrEqual(t, out.Bounciness, 0.0)
	}
}

func TestPerturbPlacement_OnlyConfiguredFieldsChange(t *testing.T) {
	p := &Params{PositionX: Float(0.5)}
	st := testState()
	out := PerturbPlacement(NewSequence(11, 0), p, st)

	assert.NotEqual(t, st.Position.X, out.Position.X)
	assert.Equal(t, st.Position.Y, out.Position.Y)
	assert.Equal(t, st.Position.Z, out.Position.Z)
	assert.Equal(t, st.Rotation, out.Rotation)
	assert.Equal(t, st.Mass, out.Mass)
}

func TestPerturbInitialVelocity(t *testing.T) {
	t.Run("zero vector passes through", func(t *testing.T) {
		p := &Params{VelocityMag: Float(1), VelocityDir: Float(10)}
		out := PerturbInitialVelocity(NewSequence(1, 0), p, engine.Vec3{})
		assert.Equal(t, engine.Vec3{}, out)
	})

	t.Run("unconfigured passes through", func(t *testing.T) {
		v := engine.Vec3{X: 1, Y: 2, Z: 3}
		out := PerturbInitialVelocity(NewSequence(1, 0), &Params{}, v)
		assert.Equal(t, v, out)
	})

	t.Run("magnitude stays non-negative", func(t *testing.T) {
		p := &Params{VelocityMag: Float(100)}
		for i := 0; i < 100; i++ {
			out := PerturbInitialVelocity(NewSequence(4, i), p, engine.Vec3{X: 0.1})
			require.GreaterOrEqual(t, out.Norm(), 0.0)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		p := &Params{VelocityMag: Float(0.5), VelocityDir: Float(5)}
		v := engine.Vec3{X: 1, Y: 0, Z: 2}
		a := PerturbInitialVelocity(NewSequence(8, 2), p, v)
		b := PerturbInitialVelocity(NewSequence(8, 2), p, v)
		assert.Equal(t, a, b)
	})
}

func TestPlacementCommands(t *testing.T) {
	st := testState()
	cmds := PlacementCommands(st)
	require.Len(t, cmds, 4)

	tp, ok := cmds[0].(engine.TeleportObject)
	require.True(t, ok)
	assert.Equal(t, st.Position, tp.Position)

	rot, ok := cmds[1].(engine.RotateObjectToEulerAngles)
	require.True(t, ok)
	assert.Equal(t, st.Rotation, rot.EulerAngles)

	mass, ok := cmds[2].(engine.SetMass)
	require.True(t, ok)
	assert.Equal(t, st.Mass, mass.Mass)

	mat, ok := cmds[3].(engine.SetPhysicMaterial)
	require.True(t, ok)
	assert.Equal(t, st.Bounciness, mat.Bounciness)
}
