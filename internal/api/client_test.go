package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/sess-1/messages", r.URL.Path)
		var msg ChatMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "user", msg.Role)
		_ = json.NewEncoder(w).Encode(ChatMessage{Role: "assistant", Content: "echo: " + msg.Content})
	}))
	defer srv.Close()

	reply, err := NewClient(srv.URL + "/").SendChat(context.Background(), "sess-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", reply)
}

func TestChatWaitsForSlowModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]ChatMessage{})
			return
		}
		_ = json.NewEncoder(w).Encode(ChatMessage{Role: "assistant", Content: "slow"})
	}))
	defer srv.Close()
	c := NewClientWithConfig(Config{BaseURL: srv.URL, HTTPClient: &http.Client{Timeout: 20 * time.Millisecond}})

	reply, err := c.SendChat(context.Background(), "s", "hi")
	require.NoError(t, err)
	assert.Equal(t, "slow", reply)

	_, err = c.ChatHistory(context.Background(), "s")
	assert.Error(t, err, "plain API calls keep the short timeout")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.SendChat(ctx, "s", "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatusErrorBodyIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 10000)))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GenerateImage(context.Background(), "a castle", "")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Len(t, se.Body, maxErrorBody)
}

func TestObjectNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient(srv.URL).GetObject(context.Background(), "game", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchObjectsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/objects/deck", r.URL.Path)
		assert.Equal(t, "fire bolt", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode([]Object{{Kind: "deck", ID: "1", Name: "fire bolt deck"}})
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).SearchObjects(context.Background(), "deck", "fire bolt")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)
}

func TestFetchDecksCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode([]string{"bard", "knight"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	for i := 0; i < 3; i++ {
		decks, err := c.FetchDecks(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"bard", "knight"}, decks)
	}
	assert.EqualValues(t, 1, hits.Load())
}
