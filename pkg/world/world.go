// Package world models the simulated environment and timeline: the
// background document, a hidden story outline, an append-only history
// log and the game clock.
package world

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storyweave/gamemaster/pkg/llm"
	"github.com/storyweave/gamemaster/pkg/protocol"
	"github.com/storyweave/gamemaster/pkg/story"
)

// TimeLayout is the display format for the game clock.
const TimeLayout = "2006-01-02 15:04"

// ChangeListener is notified after a world change has been applied.
// It is passed at construction time; the world never holds a reference
// back into the character.
type ChangeListener func(ctx context.Context, description string)

// World is the environment state independent of the protagonist.
// History grows monotonically within a story session; only a full
// restore replaces it.
type World struct {
	Background    string    `json:"background"`
	HiddenOutline string    `json:"hidden_outline"`
	History       []string  `json:"history"`
	CurrentTime   time.Time `json:"current_time"`

	gen      llm.Generator
	logger   *slog.Logger
	onChange ChangeListener
}

// WorldSave is the lossless persisted form of a world.
type WorldSave struct {
	Background    string    `json:"background"`
	HiddenOutline string    `json:"hidden_outline"`
	History       []string  `json:"history"`
	CurrentTime   time.Time `json:"current_time"`
}

// NewWorld builds the environment from a story template.
func NewWorld(tpl *story.Template, gen llm.Generator, logger *slog.Logger) *World {
	return &World{
		Background:    tpl.Background,
		HiddenOutline: tpl.HiddenOutline,
		History:       append([]string(nil), tpl.InitialHistory...),
		CurrentTime:   tpl.StartTime,
		gen:           gen,
		logger:        logger,
	}
}

// RestoreWorld rebuilds a world from persisted save data.
func RestoreWorld(save WorldSave, gen llm.Generator, logger *slog.Logger) *World {
	return &World{
		Background:    save.Background,
		HiddenOutline: save.HiddenOutline,
		History:       append([]string(nil), save.History...),
		CurrentTime:   save.CurrentTime,
		gen:           gen,
		logger:        logger,
	}
}

// SetChangeListener registers the notification callback.
func (w *World) SetChangeListener(fn ChangeListener) {
	w.onChange = fn
}

// ApplyChange rewrites the background to incorporate a described change
// and appends the change to history. The background follows the same
// whole-document-replace contract as the character profile. No state
// mutates if the rewrite fails.
func (w *World) ApplyChange(ctx context.Context, description string) (string, error) {
	var sb strings.Builder
	sb.WriteString("[Current World Background]\n")
	sb.WriteString(w.Background)
	sb.WriteString("\n\n[Requested Change]\n")
	sb.WriteString(description)
	sb.WriteString("\n\nRewrite the complete world background with this change applied. ")
	sb.WriteString("Keep the existing structure and wording wherever the change does not touch it. ")
	sb.WriteString("Return only the full updated background, with no commentary.")

	updated, err := w.gen.Generate(ctx, sb.String(), llm.VariantPrimary)
	if err != nil {
		return "", fmt.Errorf("world change failed: %w", err)
	}
	updated = protocol.StripMarkup(updated)
	if updated == "" {
		return "", fmt.Errorf("world change returned empty background")
	}

	w.Background = updated
	w.appendHistory("world change", description)

	if w.onChange != nil {
		w.onChange(ctx, description)
	}
	return "The world has been updated: " + description, nil
}

// AdvanceTime moves the clock forward by a compact token such as "3d"
// or "2h". Free-form input is translated into a token by one LLM call,
// then applied with exactly one recursion. The clock never moves
// backward.
func (w *World) AdvanceTime(ctx context.Context, span string) (time.Time, error) {
	return w.advanceTime(ctx, span, false)
}

func (w *World) advanceTime(ctx context.Context, span string, translated bool) (time.Time, error) {
	span = strings.TrimSpace(span)

	amount, unit, ok := parseTimeSpan(span)
	if !ok {
		if translated {
			return time.Time{}, fmt.Errorf("%w: translated span %q is not a compact token", ErrBadTimeSpan, span)
		}
		token, err := w.translateTimeSpan(ctx, span)
		if err != nil {
			return time.Time{}, err
		}
		return w.advanceTime(ctx, token, true)
	}

	next, err := addSpan(w.CurrentTime, amount, unit)
	if err != nil {
		return time.Time{}, err
	}
	if !next.After(w.CurrentTime) {
		return time.Time{}, fmt.Errorf("%w: span %q does not move time forward", ErrBadTimeSpan, span)
	}

	w.CurrentTime = next
	return w.CurrentTime, nil
}

func (w *World) translateTimeSpan(ctx context.Context, span string) (string, error) {
	prompt := "Translate this description of elapsed time into a compact token: " +
		"an integer followed by one unit letter from s (seconds), m (minutes), h (hours), " +
		"d (days), w (weeks), M (months), y (years). Examples: \"three days later\" -> 3d, " +
		"\"half a year\" -> 6M.\n\nDescription: " + span + "\n\nReturn only the token."

	resp, err := w.gen.Generate(ctx, prompt, llm.VariantFast)
	if err != nil {
		return "", fmt.Errorf("time span translation failed: %w", err)
	}
	token := strings.TrimSpace(protocol.StripMarkup(resp))
	w.logger.Debug("translated time span", "input", span, "token", token)
	return token, nil
}

// CurrentContext formats the canonical world view every narrative
// prompt is built from: the clock, the background, the last `length`
// history entries in chronological order and, only when showHidden is
// set, the hidden story framework.
func (w *World) CurrentContext(length int, showHidden bool) string {
	var sb strings.Builder
	sb.WriteString("[[Current Time]]\n")
	sb.WriteString(w.CurrentTime.Format(TimeLayout))
	sb.WriteString("\n\n[[World Background]]\n")
	sb.WriteString(w.Background)

	recent := w.History
	if length > 0 && len(recent) > length {
		recent = recent[len(recent)-length:]
	}
	if len(recent) > 0 {
		sb.WriteString("\n\n[[Recent Events]]\n")
		for _, e := range recent {
			sb.WriteString("- " + e + "\n")
		}
	}

	if showHidden && w.HiddenOutline != "" {
		sb.WriteString("\n\n[[Hidden Story Framework]]\n")
		sb.WriteString(w.HiddenOutline)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// LogHistory appends a narrative event to the history log.
func (w *World) LogHistory(text string) {
	w.appendHistory("event", text)
}

// SaveQueryResult records a world-state query and its answer as a
// history entry so later narration stays consistent with it.
func (w *World) SaveQueryResult(query, result string) {
	w.appendHistory("query", query+" -> "+result)
}

func (w *World) appendHistory(kind, text string) {
	entry := fmt.Sprintf("[%s] (%s) %s", w.CurrentTime.Format(TimeLayout), kind, protocol.Flatten(text))
	w.History = append(w.History, entry)
}

// SaveData captures the world for persistence.
func (w *World) SaveData() WorldSave {
	return WorldSave{
		Background:    w.Background,
		HiddenOutline: w.HiddenOutline,
		History:       append([]string(nil), w.History...),
		CurrentTime:   w.CurrentTime,
	}
}
