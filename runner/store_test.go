package runner

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/metronome/errors"
	qt "github.com/teranos/metronome/internal/testing"
)

func TestDefinitionStoreRoundTrip(t *testing.T) {
	store := NewDefinitionStore(qt.CreateTestDB(t))

	def := &Definition{
		Kind:           "test.roundtrip",
		Name:           "Round trip",
		Enabled:        true,
		Interval:       45 * time.Minute,
		LastExecutedAt: NeverRan,
	}
	require.NoError(t, store.Insert(def))
	require.NotZero(t, def.ID)

	got, err := store.GetByKind("test.roundtrip")
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID)
	assert.Equal(t, "Round trip", got.Name)
	assert.True(t, got.Enabled)
	assert.Equal(t, 45*time.Minute, got.Interval)
	assert.True(t, got.LastExecutedAt.Equal(NeverRan))
	assert.False(t, got.LastSuccess)
}

func TestDefinitionStoreGetByKindNotFound(t *testing.T) {
	store := NewDefinitionStore(qt.CreateTestDB(t))

	_, err := store.GetByKind("test.ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDefinitionStoreUpdate(t *testing.T) {
	store := NewDefinitionStore(qt.CreateTestDB(t))

	def := &Definition{
		Kind:           "test.update",
		Name:           "Update test",
		Enabled:        true,
		Interval:       time.Hour,
		LastExecutedAt: NeverRan,
	}
	require.NoError(t, store.Insert(def))

	ranAt := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	def.Enabled = false
	def.Interval = 15 * time.Minute
	def.LastExecutedAt = ranAt
	def.LastSuccess = true
	require.NoError(t, store.Update(def))

	got, err := store.GetByKind("test.update")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, 15*time.Minute, got.Interval)
	assert.True(t, got.LastExecutedAt.Equal(ranAt))
	assert.True(t, got.LastSuccess)
}

func TestDefinitionStoreUpdateMissingRow(t *testing.T) {
	store := NewDefinitionStore(qt.CreateTestDB(t))

	def := &Definition{ID: 999, Kind: "test.missing", LastExecutedAt: NeverRan}
	err := store.Update(def)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDefinitionStoreLoadAllOrdersByKind(t *testing.T) {
	store := NewDefinitionStore(qt.CreateTestDB(t))

	for _, kind := range []string{"zeta.job", "alpha.job", "mid.job"} {
		require.NoError(t, store.Insert(&Definition{
			Kind:           kind,
			Name:           kind,
			Interval:       time.Minute,
			LastExecutedAt: NeverRan,
		}))
	}

	defs, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha.job", defs[0].Kind)
	assert.Equal(t, "mid.job", defs[1].Kind)
	assert.Equal(t, "zeta.job", defs[2].Kind)
}

func TestDefinitionStoreUpdateWrapsDriverError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("UPDATE job_definitions").
		WillReturnError(errors.New("database is locked"))

	store := NewDefinitionStore(mockDB)
	def := &Definition{ID: 1, Kind: "test.locked", LastExecutedAt: NeverRan}

	err = store.Update(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update job definition")
	assert.Contains(t, err.Error(), "database is locked")

	require.NoError(t, mock.ExpectationsWereMet())
}
