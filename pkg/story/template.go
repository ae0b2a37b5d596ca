// Package story defines the loader contract for story templates: named
// bundles of initial background, profile and outline text that define
// one playable scenario. Templates are plain text files with bracketed
// section headers:
//
//	[[World Background]]
//	The empire has fallen...
package story

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// Section header names recognized in template files.
const (
	SectionBackground      = "World Background"
	SectionHiddenFramework = "Hidden Story Framework"
	SectionInitialHistory  = "Initial History"
	SectionStartTime       = "Start Time"
	SectionProfile         = "Character Profile"
	SectionHiddenProfile   = "Hidden Profile"
	SectionInitialThoughts = "Initial Thoughts"
)

// DefaultStartTime is used when a template omits [[Start Time]].
var DefaultStartTime = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

const defaultThoughts = "Newly arrived in this world, full of curiosity and anticipation."

// Template is one playable scenario definition.
type Template struct {
	Name            string
	Background      string
	HiddenOutline   string
	InitialHistory  []string
	StartTime       time.Time
	Profile         string
	HiddenProfile   string
	InitialThoughts string
}

// Parse reads a [[Section]] template file. Background and profile are
// required; everything else has a sensible zero state.
func Parse(name string, r io.Reader) (*Template, error) {
	sections, err := ParseSections(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read story %q: %w", name, err)
	}

	t := &Template{
		Name:            name,
		Background:      sections[SectionBackground],
		HiddenOutline:   sections[SectionHiddenFramework],
		Profile:         sections[SectionProfile],
		HiddenProfile:   sections[SectionHiddenProfile],
		InitialThoughts: sections[SectionInitialThoughts],
		StartTime:       DefaultStartTime,
	}

	if t.Background == "" {
		return nil, fmt.Errorf("story %q: missing [[%s]] section", name, SectionBackground)
	}
	if t.Profile == "" {
		return nil, fmt.Errorf("story %q: missing [[%s]] section", name, SectionProfile)
	}
	if t.InitialThoughts == "" {
		t.InitialThoughts = defaultThoughts
	}

	if raw := sections[SectionInitialHistory]; raw != "" {
		for _, line := range strings.Split(raw, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				t.InitialHistory = append(t.InitialHistory, line)
			}
		}
	}

	if raw := strings.TrimSpace(sections[SectionStartTime]); raw != "" {
		ts, err := parseStartTime(raw)
		if err != nil {
			return nil, fmt.Errorf("story %q: %w", name, err)
		}
		t.StartTime = ts
	}

	return t, nil
}

// ParseSections splits a template file into its [[Section]] blocks.
// Text before the first header is discarded.
func ParseSections(r io.Reader) (map[string]string, error) {
	sections := make(map[string]string)
	current := ""

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[[") && strings.HasSuffix(trimmed, "]]") {
			current = strings.TrimSpace(trimmed[2 : len(trimmed)-2])
			continue
		}
		if current == "" {
			continue
		}
		if sections[current] != "" {
			sections[current] += "\n"
		}
		sections[current] += strings.TrimRight(line, " \t")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for k, v := range sections {
		sections[k] = strings.TrimSpace(v)
	}
	return sections, nil
}

func parseStartTime(raw string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable [[%s]] value %q", SectionStartTime, raw)
}
