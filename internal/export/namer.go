// Package export writes one PDF per segment with generated file names and
// document properties.
package export

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DefaultTemplate = "{title}_{part}"

// Metadata describes the score as entered by the reviewer.
type Metadata struct {
	Title    string   `json:"title"`
	Composer string   `json:"composer"`
	Arranger string   `json:"arranger"`
	Year     string   `json:"year"`
	Subject  string   `json:"subject"`
	Keywords []string `json:"keywords"`
}

var (
	invalidChars = regexp.MustCompile(`[\\/*?:"<>|\x00-\x1f]`)
	underscores  = regexp.MustCompile(`_+`)
)

// Namer turns a template such as "{title}_{part}" into unique file names.
// A Namer remembers the names it produced; use a fresh one per export.
type Namer struct {
	Template string
	Now      func() time.Time

	used map[string]int
}

func NewNamer(template string) *Namer {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return &Namer{Template: template, Now: time.Now, used: make(map[string]int)}
}

// Name returns the file name for the index-th part (1-based).
func (n *Namer) Name(meta Metadata, part string, index int) string {
	pairs := []string{
		"{title}", meta.Title,
		"{composer}", meta.Composer,
		"{arranger}", meta.Arranger,
		"{year}", meta.Year,
		"{subject}", meta.Subject,
		"{part}", part,
		"{index}", strconv.Itoa(index),
	}
	if strings.Contains(n.Template, "{timestamp}") {
		now := time.Now
		if n.Now != nil {
			now = n.Now
		}
		pairs = append(pairs, "{timestamp}", now().Format("20060102_150405"))
	}

	// One pass: substituted values are never scanned for placeholders.
	name := strings.NewReplacer(pairs...).Replace(n.Template)

	name = Sanitize(name)
	if name == "" {
		name = Sanitize(part)
	}
	if name == "" {
		name = fmt.Sprintf("part_%d", index)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return n.unique(name)
}

func (n *Namer) unique(name string) string {
	if n.used == nil {
		n.used = make(map[string]int)
	}
	key := strings.ToLower(name)
	count, seen := n.used[key]
	if !seen {
		n.used[key] = 0
		return name
	}
	for {
		count++
		ext := filepath.Ext(name)
		candidate := fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), count, ext)
		if _, taken := n.used[strings.ToLower(candidate)]; !taken {
			n.used[key] = count
			n.used[strings.ToLower(candidate)] = 0
			return candidate
		}
	}
}

// Sanitize replaces characters that are invalid in file names on common
// systems with "_", collapses runs of "_" and trims them from both ends.
func Sanitize(s string) string {
	s = invalidChars.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	return strings.Trim(strings.TrimSpace(s), "_")
}
