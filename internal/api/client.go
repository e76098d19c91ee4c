// Package api is the client for the backend REST API: chat sessions, image
// generation, the object store and the card catalog.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxErrorBody = 4096

var httpClient = &http.Client{Timeout: 8 * time.Second}

// modelClient has no timeout of its own: chat and image calls wait on a model
// and are bounded by the caller's context instead.
var modelClient = &http.Client{}

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("api %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Config holds API configuration
type Config struct {
	BaseURL string
	// HTTPClient overrides the shared client, mostly for tests.
	HTTPClient *http.Client
	// ModelClient serves chat and image generation. It defaults to a client
	// without a timeout so the context deadline decides how long to wait.
	ModelClient *http.Client
	// DeckTTL is how long the deck list is cached.
	DeckTTL time.Duration
}

type Client struct {
	config Config

	deckMu    sync.RWMutex
	decks     []string
	decksTime time.Time
}

func NewClient(baseURL string) *Client {
	return NewClientWithConfig(Config{BaseURL: baseURL})
}

func NewClientWithConfig(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpClient
	}
	if cfg.ModelClient == nil {
		cfg.ModelClient = modelClient
	}
	if cfg.DeckTTL == 0 {
		cfg.DeckTTL = 5 * time.Minute
	}
	return &Client{config: cfg}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.doWith(ctx, c.config.HTTPClient, method, path, in, out)
}

func (c *Client) doWith(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	base := strings.TrimRight(c.config.BaseURL, "/")
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) apiGet(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// ChatMessage is one message in a chat session.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func chatPath(session string) string {
	return "/api/chat/" + url.PathEscape(session) + "/messages"
}

// SendChat posts a user message to a chat session and returns the assistant's reply text.
func (c *Client) SendChat(ctx context.Context, session, content string) (string, error) {
	if session == "" {
		return "", errors.New("send chat: empty session id")
	}
	var reply ChatMessage
	if err := c.doWith(ctx, c.config.ModelClient, http.MethodPost, chatPath(session), ChatMessage{Role: "user", Content: content}, &reply); err != nil {
		return "", err
	}
	return reply.Content, nil
}

// Send adapts SendChat to the director's chat interface.
func (c *Client) Send(ctx context.Context, session, message string) (string, error) {
	return c.SendChat(ctx, session, message)
}

// ChatHistory lists the messages of a chat session, oldest first.
func (c *Client) ChatHistory(ctx context.Context, session string) ([]ChatMessage, error) {
	var out []ChatMessage
	if err := c.apiGet(ctx, chatPath(session), &out); err != nil {
		return nil, err
	}
	return out, nil
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
}

type imageResponse struct {
	URL string `json:"url"`
}

// GenerateImage requests an image and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt, style string) (string, error) {
	var res imageResponse
	if err := c.doWith(ctx, c.config.ModelClient, http.MethodPost, "/api/images", imageRequest{Prompt: prompt, Style: style}, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", errors.New("generate image: empty url in response")
	}
	return res.URL, nil
}

// Object is a generic JSON document in the backend object store.
type Object struct {
	Kind      string          `json:"kind"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func objectPath(kind, id string) string {
	p := "/api/objects/" + url.PathEscape(kind)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// PutObject creates or replaces an object and returns the stored version.
func (c *Client) PutObject(ctx context.Context, o Object) (Object, error) {
	var out Object
	if err := c.do(ctx, http.MethodPut, objectPath(o.Kind, o.ID), o, &out); err != nil {
		return Object{}, err
	}
	return out, nil
}

func (c *Client) GetObject(ctx context.Context, kind, id string) (Object, error) {
	var out Object
	if err := c.apiGet(ctx, objectPath(kind, id), &out); err != nil {
		return Object{}, err
	}
	return out, nil
}

func (c *Client) DeleteObject(ctx context.Context, kind, id string) error {
	return c.do(ctx, http.MethodDelete, objectPath(kind, id), nil, nil)
}

// SearchObjects lists objects of kind whose name contains query. An empty query lists all.
func (c *Client) SearchObjects(ctx context.Context, kind, query string) ([]Object, error) {
	p := objectPath(kind, "")
	if query != "" {
		p += "?q=" + url.QueryEscape(query)
	}
	var out []Object
	if err := c.apiGet(ctx, p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDecks lists deck names served by the data API. The list is cached for DeckTTL.
func (c *Client) FetchDecks(ctx context.Context) ([]string, error) {
	c.deckMu.RLock()
	if time.Since(c.decksTime) < c.config.DeckTTL && len(c.decks) > 0 {
		out := append([]string(nil), c.decks...)
		c.deckMu.RUnlock()
		return out, nil
	}
	c.deckMu.RUnlock()

	var res []string
	if err := c.apiGet(ctx, "/api/decks", &res); err != nil {
		return nil, err
	}

	c.deckMu.Lock()
	c.decks = append([]string(nil), res...)
	c.decksTime = time.Now()
	c.deckMu.Unlock()
	return res, nil
}
