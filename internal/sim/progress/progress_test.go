package progress

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWhenUnset(t *testing.T) {
	s := NewMemory()
	id := uuid.New()
	p := Load(s, id)
	require.Equal(t, Progress{}, p)
	require.False(t, p.Unlocked())
}

func TestTypedRoundTrip(t *testing.T) {
	s := NewMemory()
	id := uuid.New()
	require.NoError(t, Set(s, id, HasPlayed, true))
	require.NoError(t, Set(s, id, DefeatTimestamp, int64(1_700_000_000_123)))
	require.NoError(t, Set(s, id, SpawnCount, int32(3)))

	p := Load(s, id)
	require.True(t, p.HasPlayed)
	require.EqualValues(t, 1_700_000_000_123, p.DefeatTimestampMillis)
	require.EqualValues(t, 3, p.SpawnCount)
	require.Equal(t, []uuid.UUID{id}, s.Players())
}

func TestUndecodableFallsBackToDefault(t *testing.T) {
	s := NewMemory()
	id := uuid.New()
	require.NoError(t, s.SetRaw(id, SpawnCount.Name, []byte(`"x"`)))
	require.EqualValues(t, 0, Get(s, id, SpawnCount))
}
