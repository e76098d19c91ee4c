package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/arcana-duel/internal/store"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "saves.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	saved, err := s.Put(ctx, store.Save{Kind: store.KindGame, ID: "g1", Name: " Duel ", Data: json.RawMessage(`{"round":3}`)})
	require.NoError(t, err)
	assert.Equal(t, "Duel", saved.Name)
	assert.Equal(t, now, saved.UpdatedAt)

	got, err := s.Get(ctx, store.KindGame, "g1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
	assert.JSONEq(t, `{"round":3}`, string(got.Data))
}

func TestPutReplaces(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	_, err := s.Put(ctx, store.Save{Kind: store.KindDeck, ID: "d", Name: "old", Data: json.RawMessage(`[]`)})
	require.NoError(t, err)
	_, err = s.Put(ctx, store.Save{Kind: store.KindDeck, ID: "d", Name: "new", Data: json.RawMessage(`["slash"]`)})
	require.NoError(t, err)

	all, err := s.List(ctx, store.KindDeck)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].Name)
}

func TestPutRejectsInvalid(t *testing.T) {
	s := openTempStore(t)
	_, err := s.Put(context.Background(), store.Save{Kind: store.KindGame, ID: "x", Data: json.RawMessage(`{nope`)})
	assert.Error(t, err)
	_, err = s.Put(context.Background(), store.Save{Kind: store.KindGame, Data: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestNotFound(t *testing.T) {
	s := openTempStore(t)
	_, err := s.Get(context.Background(), store.KindGame, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), store.KindGame, "missing"), store.ErrNotFound)
}

func TestSearchAndOrder(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Fire deck", "Ice deck", "50% fire"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		_, err := s.Put(ctx, store.Save{Kind: store.KindDeck, ID: name, Name: name, Data: json.RawMessage(`{}`)})
		require.NoError(t, err)
	}

	fire, err := s.Search(ctx, store.KindDeck, "FIRE")
	require.NoError(t, err)
	require.Len(t, fire, 2)
	assert.Equal(t, "50% fire", fire[0].ID)

	pct, err := s.Search(ctx, store.KindDeck, "%")
	require.NoError(t, err)
	require.Len(t, pct, 1)

	none, err := s.List(ctx, store.KindGame)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.Delete(ctx, store.KindDeck, "Ice deck"))
	all, err := s.List(ctx, store.KindDeck)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nA\n", upSection("-- +migrate Up\nA\n-- +migrate Down\nB"))
	assert.Equal(t, "plain", upSection("plain"))
}
