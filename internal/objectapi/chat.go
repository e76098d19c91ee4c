package objectapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pefman/arcana-duel/internal/api"
	"github.com/pefman/arcana-duel/internal/store"
)

const (
	kindChat        = "chat"
	maxChatMessages = 200
)

// Responder produces the assistant reply for a session given its history,
// the newest user message last.
type Responder func(history []api.ChatMessage) string

// ChatLog keeps chat sessions in memory and, when objects is set, mirrors
// each session into the object store so they survive restarts.
type ChatLog struct {
	mu       sync.Mutex
	sessions map[string][]api.ChatMessage
	objects  Objects
	now      func() time.Time
}

func newChatLog(objects Objects) *ChatLog {
	return &ChatLog{sessions: map[string][]api.ChatMessage{}, objects: objects, now: time.Now}
}

// history returns a copy of the session, loading it from the object store on first use.
func (c *ChatLog) history(ctx context.Context, session string) ([]api.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, err := c.loadLocked(ctx, session)
	if err != nil {
		return nil, err
	}
	return append([]api.ChatMessage{}, msgs...), nil
}

func (c *ChatLog) loadLocked(ctx context.Context, session string) ([]api.ChatMessage, error) {
	if msgs, ok := c.sessions[session]; ok || c.objects == nil {
		return msgs, nil
	}
	sv, err := c.objects.Get(ctx, kindChat, session)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []api.ChatMessage
	if err := json.Unmarshal(sv.Data, &msgs); err != nil {
		return nil, err
	}
	c.sessions[session] = msgs
	return msgs, nil
}

// exchange appends the user message, asks respond for a reply and appends it
// too. The session only changes once the object store has accepted it.
func (c *ChatLog) exchange(ctx context.Context, session, content string, respond Responder) (api.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, err := c.loadLocked(ctx, session)
	if err != nil {
		return api.ChatMessage{}, err
	}
	msgs := append(append(make([]api.ChatMessage, 0, len(prev)+2), prev...),
		api.ChatMessage{Role: "user", Content: content, CreatedAt: c.now().UTC()})
	reply := api.ChatMessage{Role: "assistant", Content: respond(msgs), CreatedAt: c.now().UTC()}
	msgs = append(msgs, reply)
	if n := len(msgs); n > maxChatMessages {
		msgs = append([]api.ChatMessage(nil), msgs[n-maxChatMessages:]...)
	}

	if c.objects != nil {
		data, err := json.Marshal(msgs)
		if err != nil {
			return api.ChatMessage{}, err
		}
		if _, err := c.objects.Put(ctx, store.Save{Kind: kindChat, ID: session, Name: session, Data: data}); err != nil {
			return api.ChatMessage{}, err
		}
	}
	c.sessions[session] = msgs
	return reply, nil
}

// OfflineDirector answers director prompts without a model. It reads the game
// summary embedded in the newest message and picks a mood from it.
func OfflineDirector(history []api.ChatMessage) string {
	if len(history) == 0 {
		return `{"mood":"neutral"}`
	}
	content := history[len(history)-1].Content
	if i := strings.IndexByte(content, '{'); i >= 0 {
		content = content[i:]
	}
	snap := gjson.Parse(content)
	g := snap.Get("game")

	mood := "calm"
	switch {
	case !g.Exists():
		mood = "neutral"
	case g.Get("winner").String() == "player":
		mood = "triumphant"
	case g.Get("winner").Exists():
		mood = "somber"
	case ratio(g.Get("player")) < 0.3:
		mood = "tense"
	case g.Get("phase").String() == "RESOLUTION":
		mood = "excited"
	}

	out := map[string]any{"mood": mood}
	if phase := g.Get("phase").String(); phase != "" {
		out["labels"] = []string{"round " + g.Get("round").String(), strings.ToLower(phase)}
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func ratio(actor gjson.Result) float64 {
	maxHP := actor.Get("max_hp").Float()
	if maxHP <= 0 {
		return 1
	}
	return actor.Get("hp").Float() / maxHP
}
