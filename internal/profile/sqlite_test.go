package profile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "companion.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found, "fresh database holds no profile")

	p := NewProfile()
	p.AdjustTrust(0.2)
	p.Bump(TraitRespondedToShake)
	p.Bump(TraitRespondedToShake)
	require.NoError(t, store.Save(ctx, p))

	loaded, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.DeviceID, loaded.DeviceID)
	assert.InDelta(t, 0.7, loaded.TrustScore, 1e-9)
	assert.Equal(t, uint64(2), loaded.TraitCounters[TraitRespondedToShake])
	assert.Equal(t, SchemaVersion, loaded.SchemaVersion)
	assert.False(t, loaded.LastSavedAt.IsZero())
}

func TestSQLiteStoreUpsertKeepsSingleRecord(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "companion.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	p := NewProfile()

	require.NoError(t, store.Save(ctx, p))
	p.AdjustTrust(0.3)
	require.NoError(t, store.Save(ctx, p))

	loaded, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.8, loaded.TrustScore, 1e-9)
}

func TestSQLiteStoreReset(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "companion.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, NewProfile()))
	require.NoError(t, store.Reset(ctx))

	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVolatileStoreFallback(t *testing.T) {
	store := NewVolatileStore()
	ctx := context.Background()

	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	p := NewProfile()
	p.Bump(TraitChantCelebrations)
	require.NoError(t, store.Save(ctx, p))

	// Mutating the live profile must not leak into the stored snapshot.
	p.Bump(TraitChantCelebrations)

	loaded, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(1), loaded.TraitCounters[TraitChantCelebrations])
}

func TestTrustClampBounds(t *testing.T) {
	p := NewProfile()
	for range 100 {
		p.AdjustTrust(0.05)
	}
	assert.Equal(t, 1.0, p.TrustScore)

	for range 1000 {
		p.AdjustTrust(-0.01)
	}
	assert.Equal(t, 0.0, p.TrustScore)
}
