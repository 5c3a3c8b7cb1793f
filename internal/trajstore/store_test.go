package trajstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdata/trajgen/internal/engine"
)

func testStatic() StaticRecord {
	return StaticRecord{
		Provenance:   "trajgen-test",
		StimulusName: "stim_0001",
		ObjectIDs:    []int64{1, 2},
		ModelNames:   []string{"cube", "sphere"},
		Labels: []ObjectLabel{
			{ObjectID: 1, R: 255, G: 0, B: 0},
			{ObjectID: 2, R: 0, G: 255, B: 0},
		},
	}
}

func testFrame(y float64, labels FrameLabels) FrameRecord {
	return FrameRecord{
		Objects: []engine.ObjectPhysicsState{
			{ID: 1, Position: engine.Vec3{Y: y}, Mass: 2, Bounciness: 0.5},
			{ID: 2, Position: engine.Vec3{X: 1, Y: y}, Mass: 1},
		},
		Labels: labels,
		Sensors: []engine.SensorPayload{
			{Name: "_img", Data: []byte{0xde, 0xad, 0xbe, 0xef}},
		},
	}
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "0000.trial.tmp")
	final := filepath.Join(dir, "0000.trial")

	st, err := Open(tmp)
	require.NoError(t, err)

	require.NoError(t, st.WriteStatic(testStatic()))
	require.NoError(t, st.WriteFrame(0, testFrame(1.0, FrameLabels{})))
	require.NoError(t, st.WriteFrame(1, testFrame(0.5, FrameLabels{})))
	require.NoError(t, st.WriteFrame(2, testFrame(0.0, FrameLabels{TrialEnd: true, TrialTimeout: true})))
	assert.Equal(t, 3, st.FrameCount())

	require.NoError(t, st.Finalize(final))

	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err), "temp file must be gone after finalize")

	r, err := OpenReader(final)
	require.NoError(t, err)
	defer r.Close()

	static, err := r.Static()
	require.NoError(t, err)
	assert.Equal(t, testStatic(), static)

	n, err := r.FrameCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	labels, err := r.FrameLabels(2)
	require.NoError(t, err)
	assert.True(t, labels.TrialEnd)
	assert.True(t, labels.TrialTimeout)
	assert.False(t, labels.TrialComplete)

	labels, err = r.FrameLabels(0)
	require.NoError(t, err)
	assert.False(t, labels.TrialEnd)

	objs, err := r.FrameObjects(1)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, int64(1), objs[0].ID)
	assert.Equal(t, 0.5, objs[0].Position.Y)
	assert.Equal(t, 0.5, objs[0].Bounciness)
}

func TestStore_StaticContract(t *testing.T) {
	t.Run("frames before static", func(t *testing.T) {
		st, err := Open(filepath.Join(t.TempDir(), "x.tmp"))
		require.NoError(t, err)
		defer st.Discard()

		err = st.WriteFrame(0, testFrame(1, FrameLabels{}))
		assert.ErrorIs(t, err, ErrStaticNotWritten)
	})

	t.Run("static twice", func(t *testing.T) {
		st, err := Open(filepath.Join(t.TempDir(), "x.tmp"))
		require.NoError(t, err)
		defer st.Discard()

		require.NoError(t, st.WriteStatic(testStatic()))
		err = st.WriteStatic(testStatic())
		assert.ErrorIs(t, err, ErrStaticAlreadyWritten)
	})
}

func TestStore_FrameOrder(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "x.tmp"))
	require.NoError(t, err)
	defer st.Discard()

	require.NoError(t, st.WriteStatic(testStatic()))
	require.NoError(t, st.WriteFrame(0, testFrame(1, FrameLabels{})))

	assert.ErrorIs(t, st.WriteFrame(2, testFrame(1, FrameLabels{})), ErrFrameOrder)
	assert.ErrorIs(t, st.WriteFrame(0, testFrame(1, FrameLabels{})), ErrFrameOrder)
	require.NoError(t, st.WriteFrame(1, testFrame(1, FrameLabels{})))
}

func TestStore_FinalizeTargetExists(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "0000.trial")
	require.NoError(t, os.WriteFile(final, []byte("already here"), 0o644))

	st, err := Open(filepath.Join(dir, "0000.trial.tmp"))
	require.NoError(t, err)
	require.NoError(t, st.WriteStatic(testStatic()))

	err = st.Finalize(final)
	assert.ErrorIs(t, err, ErrTargetExists)

	// The pre-existing file must be untouched.
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data))
}

func TestStore_Discard(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "x.tmp")
	st, err := Open(tmp)
	require.NoError(t, err)
	require.NoError(t, st.WriteStatic(testStatic()))

	require.NoError(t, st.Discard())
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_RemovesStaleTemp(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "x.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("stale partial write"), 0o644))

	st, err := Open(tmp)
	require.NoError(t, err)
	defer st.Discard()

	require.NoError(t, st.WriteStatic(testStatic()))
	require.NoError(t, st.WriteFrame(0, testFrame(1, FrameLabels{})))
}
