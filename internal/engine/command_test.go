package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCommands_InjectsTypeTag(t *testing.T) {
	cmds := []Command{
		TeleportObject{ID: 3, Position: Vec3{X: 1, Y: 2, Z: 3}},
		SetMass{ID: 3, Mass: 4.5},
		Raw{Type: "step_physics", Fields: map[string]any{"frames": float64(1)}},
	}
	data, err := MarshalCommands(cmds)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)

	assert.Equal(t, "teleport_object", decoded[0]["$type"])
	assert.Equal(t, float64(3), decoded[0]["id"])

	assert.Equal(t, "set_mass", decoded[1]["$type"])
	assert.Equal(t, 4.5, decoded[1]["mass"])

	assert.Equal(t, "step_physics", decoded[2]["$type"])
	assert.Equal(t, float64(1), decoded[2]["frames"])
}

func TestMarshalCommands_EmptyBatch(t *testing.T) {
	data, err := MarshalCommands(nil)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestVec3_Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: -1, Y: 0, Z: 2}

	assert.Equal(t, Vec3{X: 0, Y: 2, Z: 5}, a.Add(b))
	assert.Equal(t, Vec3{X: 2, Y: 2, Z: 1}, a.Sub(b))
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 6}, a.Scale(2))
	assert.Equal(t, Vec3{X: 1, Y: 0, Z: -2}, b.Neg())
	assert.Equal(t, 5.0, a.Dot(b))
	assert.Equal(t, 5.0, Vec3{X: 3, Y: 4}.Norm())
}
