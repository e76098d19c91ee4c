package store_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/arcana-duel/internal/api"
	"github.com/pefman/arcana-duel/internal/objectapi"
	"github.com/pefman/arcana-duel/internal/store"
	"github.com/pefman/arcana-duel/internal/store/sqlite"
)

func newRemote(t *testing.T) *store.RemoteStore {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	ts := httptest.NewServer(objectapi.New(objectapi.Options{Objects: db}).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = db.Close()
	})
	return store.NewRemoteStore(api.NewClient(ts.URL))
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rs := newRemote(t)

	saved, err := rs.Put(ctx, store.Save{Kind: store.KindGame, ID: "g1", Name: " first ", Data: json.RawMessage(`{"round":3}`)})
	require.NoError(t, err)
	assert.Equal(t, "first", saved.Name)
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := rs.Get(ctx, store.KindGame, "g1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"round":3}`, string(got.Data))

	list, err := rs.List(ctx, store.KindGame)
	require.NoError(t, err)
	require.Len(t, list, 1)

	decks, err := rs.List(ctx, store.KindDeck)
	require.NoError(t, err)
	assert.Empty(t, decks)

	require.NoError(t, rs.Delete(ctx, store.KindGame, "g1"))
	_, err = rs.Get(ctx, store.KindGame, "g1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, rs.Delete(ctx, store.KindGame, "g1"), store.ErrNotFound)
}

func TestRemoteStoreRejectsInvalid(t *testing.T) {
	rs := newRemote(t)
	_, err := rs.Put(context.Background(), store.Save{Kind: store.KindGame, ID: "g1", Data: json.RawMessage(`nope`)})
	assert.Error(t, err)
}

func TestSaveValidate(t *testing.T) {
	ok := store.Save{Kind: store.KindDeck, ID: "d", Data: json.RawMessage(`[]`)}
	assert.NoError(t, ok.Validate())

	for name, s := range map[string]store.Save{
		"no kind": {ID: "d", Data: json.RawMessage(`{}`)},
		"no id":   {Kind: store.KindDeck, Data: json.RawMessage(`{}`)},
		"no data": {Kind: store.KindDeck, ID: "d"},
		"bad":     {Kind: store.KindDeck, ID: "d", Data: json.RawMessage(`{`)},
	} {
		assert.Error(t, s.Validate(), name)
	}
}
