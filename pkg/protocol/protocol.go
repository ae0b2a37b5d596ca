// Package protocol parses the labeled-line text format the engine expects
// from LLM completions. The canonical form is one section per label:
//
//	[Label]: value
//
// with continuation lines folded into the preceding section. Completions
// are unreliable in format, so parsing never fails; callers check for
// missing sections and fall back explicitly.
package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

var labelPattern = regexp.MustCompile(`^\s*\[([^\[\]]+)\]\s*[:：]\s*(.*)$`)

// Result holds the labeled sections of one completion, in order of
// first appearance. A Result with no sections means the completion did
// not follow the protocol at all.
type Result struct {
	sections map[string]string
	order    []string
}

// Parse scans a completion line by line and collects labeled sections.
// Lines before the first label are ignored. Repeated labels keep the
// first occurrence.
func Parse(text string) Result {
	r := Result{sections: make(map[string]string)}
	current := ""

	for _, line := range strings.Split(text, "\n") {
		if m := labelPattern.FindStringSubmatch(line); m != nil {
			label := strings.TrimSpace(m[1])
			if _, seen := r.sections[label]; seen {
				current = ""
				continue
			}
			r.sections[label] = strings.TrimSpace(m[2])
			r.order = append(r.order, label)
			current = label
			continue
		}
		if current == "" {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if r.sections[current] != "" {
			r.sections[current] += "\n"
		}
		r.sections[current] += trimmed
	}
	return r
}

// Section returns the value for a label and whether it was present.
func (r Result) Section(label string) (string, bool) {
	v, ok := r.sections[label]
	return v, ok
}

// Labels returns the labels in order of first appearance.
func (r Result) Labels() []string {
	return append([]string(nil), r.order...)
}

// Malformed reports whether no labeled section was found at all.
func (r Result) Malformed() bool {
	return len(r.order) == 0
}

// ParseNumbered extracts sections labeled "<prefix> 1" through
// "<prefix> n". It returns ok only when every numbered section is
// present and non-empty; callers use their documented fallback
// otherwise.
func ParseNumbered(text string, prefix string, n int) ([]string, bool) {
	r := Parse(text)
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		v, ok := r.Section(prefix + " " + strconv.Itoa(i))
		if !ok || v == "" {
			return nil, false
		}
		// Numbered sections are single entries; keep the first line
		// if the model wrapped one onto multiple lines.
		if idx := strings.IndexByte(v, '\n'); idx >= 0 {
			v = v[:idx]
		}
		out = append(out, v)
	}
	return out, true
}

var markupTrim = regexp.MustCompile("(?m)^\\s*(```[a-z]*|#{1,6}\\s*|\\*{1,2}|>)\\s*")

// StripMarkup removes stray markdown the model may emit around a
// whole-document rewrite: code fences, heading markers, blockquote
// prefixes and leading bold markers. Inline content is left alone.
func StripMarkup(s string) string {
	s = markupTrim.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Flatten normalizes text into a single line for history entries.
func Flatten(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
