package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/arcana-duel/internal/objectapi"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestSimulate(t *testing.T) {
	out := execute(t, "simulate", "--seed", "42", "-n", "3", "--player", "bard", "--opponent", "knight")
	assert.Contains(t, out, "seed 42:")
	assert.Contains(t, out, "seed 44:")

	i := strings.Index(out, "{")
	require.GreaterOrEqual(t, i, 0)
	var sum simSummary
	require.NoError(t, json.Unmarshal([]byte(out[i:]), &sum))
	assert.Equal(t, 3, sum.Games)
	total := sum.Abandoned
	for _, n := range sum.Wins {
		total += n
	}
	assert.Equal(t, 3, total)

	again := execute(t, "simulate", "--seed", "42", "-n", "3", "--player", "bard", "--opponent", "knight")
	first := func(s string) string { return s[:strings.Index(s, "\n")] }
	assert.Equal(t, first(out), first(again))
}

func TestDecksFromDataAPI(t *testing.T) {
	ts := httptest.NewServer(objectapi.New(objectapi.Options{}).Handler())
	defer ts.Close()
	t.Setenv("DATA_API_BASE", ts.URL)

	out := execute(t, "decks")
	assert.Equal(t, "bard\nknight\nwitch\n", out)
}

func TestDirectorOnce(t *testing.T) {
	ts := httptest.NewServer(objectapi.New(objectapi.Options{}).Handler())
	defer ts.Close()
	t.Setenv("DATA_API_BASE", ts.URL)

	out := execute(t, "director", "--session", "cli", "--once",
		"--snapshot", `{"game":{"winner":"player","phase":"GAME_OVER"}}`)
	assert.Contains(t, out, `"mood":"triumphant"`)
}
