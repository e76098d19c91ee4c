// Package director polls a state snapshot into an LLM chat session and turns
// the replies into validated presentation directives.
package director

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	ErrNotJSON        = errors.New("reply is not a JSON object")
	ErrEmptyDirective = errors.New("reply has no usable directive fields")
)

const (
	maxTrack   = 64
	maxScene   = 64
	maxStyle   = 64
	maxLabels  = 8
	maxLabel   = 48
	maxPrompt  = 500
	defaultVol = 1.0
)

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Mood string

const (
	MoodCalm       Mood = "calm"
	MoodTense      Mood = "tense"
	MoodExcited    Mood = "excited"
	MoodSomber     Mood = "somber"
	MoodTriumphant Mood = "triumphant"
	MoodNeutral    Mood = "neutral"
)

var moods = map[Mood]bool{
	MoodCalm: true, MoodTense: true, MoodExcited: true,
	MoodSomber: true, MoodTriumphant: true, MoodNeutral: true,
}

type Audio struct {
	Track  string  `json:"track,omitempty"`
	Action string  `json:"action"` // play, stop or fade
	Volume float64 `json:"volume"`
}

type Visuals struct {
	Scene     string  `json:"scene,omitempty"`
	Color     string  `json:"color,omitempty"`
	Intensity float64 `json:"intensity"`
}

type ImageGen struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Directive is the whitelisted content of one reply.
type Directive struct {
	Audio      *Audio    `json:"audio,omitempty"`
	Visuals    *Visuals  `json:"visuals,omitempty"`
	Labels     []string  `json:"labels,omitempty"`
	ImageGen   *ImageGen `json:"image_gen,omitempty"`
	Mood       Mood      `json:"mood,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

func (d Directive) empty() bool {
	return d.Audio == nil && d.Visuals == nil && len(d.Labels) == 0 && d.ImageGen == nil && d.Mood == ""
}

// extractObject strips markdown fences and returns the first complete JSON
// object in the reply, so prose before or after it is ignored.
func extractObject(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	for start := strings.IndexByte(s, '{'); start >= 0; {
		for end := start + 1; end < len(s); {
			i := strings.IndexByte(s[end:], '}')
			if i < 0 {
				break
			}
			end += i + 1
			if gjson.Valid(s[start:end]) {
				return s[start:end], true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// Parse validates a chat reply into a Directive. Invalid fields are dropped
// and reported in Warnings; unknown keys are ignored.
func Parse(reply string) (Directive, error) {
	js, ok := extractObject(reply)
	if !ok || !gjson.Valid(js) {
		return Directive{}, ErrNotJSON
	}
	root := gjson.Parse(js)
	if !root.IsObject() {
		return Directive{}, ErrNotJSON
	}
	p := &parser{}
	d := Directive{
		Audio:    p.audio(root.Get("audio")),
		Visuals:  p.visuals(root.Get("visuals")),
		Labels:   p.labels(root.Get("labels")),
		ImageGen: p.imageGen(root.Get("image_gen")),
		Mood:     p.mood(root.Get("mood")),
	}
	d.Warnings = p.warnings
	if d.empty() {
		return d, ErrEmptyDirective
	}
	return d, nil
}

type parser struct {
	warnings []string
}

func (p *parser) warn(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// str returns a trimmed string field, "" when absent, and false when it is
// present but not a string or longer than limit runes.
func (p *parser) str(r gjson.Result, field string, limit int) (string, bool) {
	if !r.Exists() || r.Type == gjson.Null {
		return "", true
	}
	if r.Type != gjson.String {
		p.warn("%s: not a string", field)
		return "", false
	}
	s := strings.TrimSpace(r.String())
	if utf8.RuneCountInString(s) > limit {
		p.warn("%s: longer than %d characters", field, limit)
		return "", false
	}
	return s, true
}

// unit returns a number in [0,1], def when absent.
func (p *parser) unit(r gjson.Result, field string, def float64) float64 {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	if r.Type != gjson.Number || r.Float() < 0 || r.Float() > 1 {
		p.warn("%s: want a number between 0 and 1, got %s", field, r.Raw)
		return def
	}
	return r.Float()
}

func (p *parser) audio(r gjson.Result) *Audio {
	if !r.Exists() {
		return nil
	}
	if !r.IsObject() {
		p.warn("audio: not an object")
		return nil
	}
	a := &Audio{Action: strings.ToLower(strings.TrimSpace(r.Get("action").String()))}
	switch a.Action {
	case "play", "stop", "fade":
	default:
		p.warn("audio.action: %q is not play, stop or fade", a.Action)
		return nil
	}
	track, ok := p.str(r.Get("track"), "audio.track", maxTrack)
	if !ok {
		return nil
	}
	if track == "" && a.Action != "stop" {
		p.warn("audio.track: required for %s", a.Action)
		return nil
	}
	a.Track = track
	a.Volume = p.unit(r.Get("volume"), "audio.volume", defaultVol)
	return a
}

func (p *parser) visuals(r gjson.Result) *Visuals {
	if !r.Exists() {
		return nil
	}
	if !r.IsObject() {
		p.warn("visuals: not an object")
		return nil
	}
	v := &Visuals{}
	v.Scene, _ = p.str(r.Get("scene"), "visuals.scene", maxScene)
	if c, ok := p.str(r.Get("color"), "visuals.color", 7); ok && c != "" {
		if colorRe.MatchString(c) {
			v.Color = strings.ToLower(c)
		} else {
			p.warn("visuals.color: %q is not #rrggbb", c)
		}
	}
	v.Intensity = p.unit(r.Get("intensity"), "visuals.intensity", 1)
	if v.Scene == "" && v.Color == "" {
		p.warn("visuals: neither scene nor color is usable")
		return nil
	}
	return v
}

func (p *parser) labels(r gjson.Result) []string {
	if !r.Exists() {
		return nil
	}
	if !r.IsArray() {
		p.warn("labels: not an array")
		return nil
	}
	var out []string
	for i, item := range r.Array() {
		s, ok := p.str(item, fmt.Sprintf("labels[%d]", i), maxLabel)
		if !ok || s == "" {
			continue
		}
		if len(out) == maxLabels {
			p.warn("labels: more than %d, extra labels dropped", maxLabels)
			break
		}
		out = append(out, s)
	}
	return out
}

func (p *parser) imageGen(r gjson.Result) *ImageGen {
	if !r.Exists() {
		return nil
	}
	if !r.IsObject() {
		p.warn("image_gen: not an object")
		return nil
	}
	prompt, ok := p.str(r.Get("prompt"), "image_gen.prompt", maxPrompt)
	if !ok {
		return nil
	}
	if prompt == "" {
		p.warn("image_gen.prompt: empty")
		return nil
	}
	style, _ := p.str(r.Get("style"), "image_gen.style", maxStyle)
	return &ImageGen{Prompt: prompt, Style: style}
}

func (p *parser) mood(r gjson.Result) Mood {
	if !r.Exists() {
		return ""
	}
	m := Mood(strings.ToLower(strings.TrimSpace(r.String())))
	if r.Type != gjson.String || !moods[m] {
		p.warn("mood: %s is not a known mood", r.Raw)
		return ""
	}
	return m
}
