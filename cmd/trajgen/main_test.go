package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdata/trajgen/internal/engine"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScript(t *testing.T) {
	path := writeScript(t, `{
		"scene": [{"$type": "create_exterior_walls", "walls": []}],
		"trial": [
			{"$type": "add_object", "name": "cube", "id": 1, "position": {"x": 0, "y": 2, "z": 0}},
			{"$type": "add_object", "name": "ramp", "id": 2}
		],
		"per_frame": [{"$type": "step_physics", "frames": 1}]
	}`)

	s, err := loadScript(path)
	require.NoError(t, err)

	sc, err := newScriptedScenario(s)
	require.NoError(t, err)

	assert.Len(t, sc.SceneInitCommands(), 1)
	assert.Len(t, sc.TrialInitCommands(0, nil), 2)
	assert.Len(t, sc.PerFrameCommands(nil, 1), 1)
	assert.Equal(t, []string{"cube", "ramp"}, sc.ModelNames())

	// No explicit requests: the defaults must cover every record kind the
	// recorder consumes.
	reqs := sc.FrameDataRequestCommands()
	require.NotEmpty(t, reqs)
	types := make(map[string]bool)
	for _, c := range reqs {
		types[c.CommandType()] = true
	}
	assert.True(t, types["send_transforms"])
	assert.True(t, types["send_rigidbodies"])
	assert.True(t, types["send_collisions"])
}

func TestNewScriptedScenario_Errors(t *testing.T) {
	t.Run("empty trial", func(t *testing.T) {
		_, err := newScriptedScenario(&script{})
		assert.Error(t, err)
	})

	t.Run("command without type tag", func(t *testing.T) {
		path := writeScript(t, `{"trial": [{"name": "cube"}]}`)
		s, err := loadScript(path)
		require.NoError(t, err)
		_, err = newScriptedScenario(s)
		assert.Error(t, err)
	})
}

func TestScriptedScenario_CommandsRoundTrip(t *testing.T) {
	path := writeScript(t, `{"trial": [{"$type": "add_object", "name": "cube", "id": 1}]}`)
	s, err := loadScript(path)
	require.NoError(t, err)
	sc, err := newScriptedScenario(s)
	require.NoError(t, err)

	data, err := engine.MarshalCommands(sc.TrialInitCommands(0, nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"$type":"add_object"`)
	assert.Contains(t, string(data), `"name":"cube"`)
}
