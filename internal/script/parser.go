package script

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/storyreel/storyreel/internal/domain"
)

// Script is a parsed scene script: an optional title and the ordered
// scenes it describes.
type Script struct {
	Title  string
	Scenes []domain.SceneJob
}

var (
	titleRegex = regexp.MustCompile(`^#\s+(.+)$`)
	sceneRegex = regexp.MustCompile(`(?i)^##\s+scene:(.*)$`)
	shotRegex  = regexp.MustCompile(`(?i)^###\s+shot:(.*)$`)
)

// Parse reads a scene script from r. Directive typos, malformed values,
// and structure problems (a shot outside a scene, a duplicate scene ID)
// are reported with their line number. The returned jobs are not yet
// validated against generation requirements; domain validation runs when
// the render request is built.
func Parse(r io.Reader) (*Script, error) {
	p := &parser{
		script: &Script{},
		seen:   make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := p.consume(line, scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	p.flush()

	if len(p.script.Scenes) == 0 {
		return nil, domain.ErrNoScenes
	}
	return p.script, nil
}

// ParseString parses a scene script held in memory.
func ParseString(s string) (*Script, error) {
	return Parse(strings.NewReader(s))
}

type parser struct {
	script *Script
	seen   map[string]int

	scene *domain.SceneJob
	shot  *domain.SubShot
	// shotText accumulates the current shot's prompt lines.
	shotText []string
}

func (p *parser) consume(line int, raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	if m := shotRegex.FindStringSubmatch(text); m != nil {
		return p.openShot(line, strings.TrimSpace(m[1]))
	}
	if m := sceneRegex.FindStringSubmatch(text); m != nil {
		return p.openScene(line, strings.TrimSpace(m[1]))
	}
	if m := titleRegex.FindStringSubmatch(text); m != nil {
		if p.scene != nil || p.script.Title != "" {
			return fmt.Errorf("line %d: script title must appear once, before any scene", line)
		}
		p.script.Title = strings.TrimSpace(m[1])
		return nil
	}

	if p.shot != nil {
		p.shotText = append(p.shotText, text)
		return nil
	}
	if p.scene == nil {
		return fmt.Errorf("line %d: content outside a scene: %q", line, text)
	}
	if after, ok := strings.CutPrefix(text, "- "); ok {
		p.scene.Meta.DialogueLines = append(p.scene.Meta.DialogueLines, unquote(after))
		return nil
	}
	return p.directive(line, text)
}

func (p *parser) openScene(line int, id string) error {
	if id == "" {
		return fmt.Errorf("line %d: scene heading has no ID", line)
	}
	if prev, dup := p.seen[id]; dup {
		return fmt.Errorf("line %d: duplicate scene ID %q (first used at line %d)", line, id, prev)
	}
	p.flush()
	p.seen[id] = line
	p.scene = &domain.SceneJob{
		SceneID: id,
		Meta:    domain.SceneMeta{SceneID: id},
	}
	return nil
}

func (p *parser) openShot(line int, label string) error {
	if p.scene == nil {
		return fmt.Errorf("line %d: shot heading outside a scene", line)
	}
	if label == "" {
		return fmt.Errorf("line %d: shot heading has no label", line)
	}
	p.flushShot()
	p.shot = &domain.SubShot{Label: label}
	return nil
}

// directive applies one "key: value" line to the current scene.
func (p *parser) directive(line int, text string) error {
	key, value, found := strings.Cut(text, ":")
	if !found {
		return fmt.Errorf("line %d: expected a \"key: value\" directive, got %q", line, text)
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	switch key {
	case "title":
		p.scene.Meta.Title = value
	case "location":
		p.scene.Meta.Location = value
	case "time", "time_of_day":
		p.scene.Meta.TimeOfDay = value
	case "mood":
		p.scene.Meta.Mood = value
	case "characters":
		p.scene.Meta.Characters = splitList(value)
	case "image":
		p.scene.ImagePath = value
	case "duration":
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("line %d: duration must be a whole number of seconds, got %q", line, value)
		}
		p.scene.Params.DurationSeconds = seconds
	case "aspect", "aspect_ratio":
		p.scene.Params.AspectRatio = value
	case "motion":
		p.scene.Params.Motion = value
	case "style":
		p.scene.Params.Style = value
	case "negative", "negative_prompt":
		p.scene.Params.NegativePrompt = value
	default:
		return fmt.Errorf("line %d: unknown directive %q", line, key)
	}
	return nil
}

// flushShot closes the current sub-shot, if any, attaching its accumulated
// prompt text to the scene.
func (p *parser) flushShot() {
	if p.shot == nil {
		return
	}
	p.shot.Prompt = strings.Join(p.shotText, " ")
	p.scene.SubShots = append(p.scene.SubShots, *p.shot)
	p.shot = nil
	p.shotText = nil
}

// flush closes the current scene (and its open sub-shot) into the script.
func (p *parser) flush() {
	p.flushShot()
	if p.scene != nil {
		p.scene.Position = len(p.script.Scenes)
		p.script.Scenes = append(p.script.Scenes, *p.scene)
		p.scene = nil
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// unquote strips one optional layer of surrounding quotes from a dialogue
// line.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
