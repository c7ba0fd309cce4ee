package repository

import (
	"poseidon/internal/dto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStateRepository_RoundTrip(t *testing.T) {
	repo, err := NewTrackerStateRepository("")
	require.NoError(t, err)
	defer repo.Close()

	missing, err := repo.Load("XBTUSDTM")
	require.NoError(t, err)
	assert.Nil(t, missing)

	margin := 200.0
	require.NoError(t, repo.Save(&dto.PositionTrackState{Symbol: "XBTUSDTM", Side: dto.SideLong, Size: 5.625, FiredSteps: 2, InitialMargin: &margin}))
	require.NoError(t, repo.Save(&dto.PositionTrackState{Symbol: "ETHUSDTM", Side: dto.SideShort, Size: 1}))

	got, err := repo.Load("XBTUSDTM")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.FiredSteps)
	assert.Equal(t, 200.0, *got.InitialMargin)

	all, err := repo.LoadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.Delete("XBTUSDTM"))
	all, err = repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ETHUSDTM", all[0].Symbol)
}

func TestTrackerStateRepository_OnDisk(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewTrackerStateRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(&dto.PositionTrackState{Symbol: "SOLUSDTM", Size: 3}))
	require.NoError(t, repo.Close())

	reopened, err := NewTrackerStateRepository(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Load("SOLUSDTM")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3.0, got.Size)
}
