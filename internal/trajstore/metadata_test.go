package trajstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataStore_AppendList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")
	m, err := OpenMetadata(path)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Append(TrialSummary{
		RunID: "run-a", TrialIndex: 1, BaseSeed: 42, Frames: 120,
		TrialTimeout: true, StimulusName: "stim_0001", OutputPath: "/out/0001.trial",
	}))
	require.NoError(t, m.Append(TrialSummary{
		RunID: "run-a", TrialIndex: 0, BaseSeed: 42, Frames: 80,
		TrialComplete: true, StimulusName: "stim_0000", OutputPath: "/out/0000.trial",
	}))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, 0, list[0].TrialIndex)
	assert.Equal(t, 1, list[1].TrialIndex)
	assert.True(t, list[0].TrialComplete)
	assert.True(t, list[1].TrialTimeout)
	assert.NotZero(t, list[0].CreatedAt, "append must stamp a creation time")
}

func TestMetadataStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")

	m, err := OpenMetadata(path)
	require.NoError(t, err)
	require.NoError(t, m.Append(TrialSummary{RunID: "run-a", TrialIndex: 0, Frames: 10}))
	require.NoError(t, m.Close())

	// A resumed run appends to the same file under a new run ID.
	m, err = OpenMetadata(path)
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Append(TrialSummary{RunID: "run-b", TrialIndex: 1, Frames: 20}))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-a", list[0].RunID)
	assert.Equal(t, "run-b", list[1].RunID)
}
