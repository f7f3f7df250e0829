package token

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "sub", "token.json"))

	assert.False(t, store.Exists())

	rec := &Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TokenType:    "bearer",
		AccountID:    "dbid:abc",
	}
	require.NoError(t, store.Save(rec))
	assert.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, rec.AccessToken, loaded.AccessToken)
	assert.Equal(t, rec.RefreshToken, loaded.RefreshToken)
	assert.True(t, rec.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.Equal(t, "dbid:abc", loaded.AccountID)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStoreSaveNormalizesToUTC(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))

	loc := time.FixedZone("CET", 3600)
	rec := &Record{
		AccessToken: "a",
		ExpiresAt:   time.Date(2026, 3, 1, 13, 0, 0, 0, loc),
	}
	require.NoError(t, store.Save(rec))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loaded.ExpiresAt.Location())
	assert.True(t, loaded.ExpiresAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestStoreSaveIsWholesale(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "token.json"))

	require.NoError(t, store.Save(&Record{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, store.Save(&Record{AccessToken: "a2", RefreshToken: "r2"}))

	// No temp files left behind after the rename.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "token.json", entries[0].Name())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "a2", raw["access_token"])
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "token.json"))

	// Deleting a missing record is not an error.
	assert.NoError(t, store.Delete())

	require.NoError(t, store.Save(&Record{AccessToken: "a"}))
	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
}

func TestRecordExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &Record{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, rec.Expired(now))

	rec = &Record{ExpiresAt: now.Add(-time.Second)}
	assert.True(t, rec.Expired(now))
}
