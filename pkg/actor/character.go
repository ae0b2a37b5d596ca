// Package actor holds the protagonist agent and the task entity. The
// character keeps a free-form narrative profile that the LLM reads and
// rewrites wholesale; partial patches are never applied because models
// do not reliably emit diffs.
package actor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/storyweave/gamemaster/pkg/llm"
	"github.com/storyweave/gamemaster/pkg/protocol"
	"github.com/storyweave/gamemaster/pkg/story"
)

const (
	// DefaultAction is the fallback when action generation cannot be
	// parsed. Story progression must never block on a malformed
	// completion.
	DefaultAction = "Act freely."

	actionCount = 3

	// thoughtsMaxLen bounds the psychology text defensively; the prompt
	// asks for a short passage but the model is not trusted to comply.
	thoughtsMaxLen = 600
)

// Character is the LLM-portrayed protagonist.
type Character struct {
	Profile       string  `json:"profile"`
	HiddenProfile string  `json:"hidden_profile"`
	Thoughts      string  `json:"thoughts"`
	PendingTasks  []*Task `json:"pending_tasks"`

	gen    llm.Generator
	logger *slog.Logger
}

// CharacterSave is the lossless persisted form of a character.
type CharacterSave struct {
	Profile       string  `json:"profile"`
	HiddenProfile string  `json:"hidden_profile"`
	Thoughts      string  `json:"thoughts"`
	PendingTasks  []*Task `json:"pending_tasks"`
}

// NewCharacter builds the protagonist from a story template.
func NewCharacter(tpl *story.Template, gen llm.Generator, logger *slog.Logger) *Character {
	return &Character{
		Profile:       tpl.Profile,
		HiddenProfile: tpl.HiddenProfile,
		Thoughts:      tpl.InitialThoughts,
		gen:           gen,
		logger:        logger,
	}
}

// RestoreCharacter rebuilds a character from persisted save data.
func RestoreCharacter(save CharacterSave, gen llm.Generator, logger *slog.Logger) *Character {
	return &Character{
		Profile:       save.Profile,
		HiddenProfile: save.HiddenProfile,
		Thoughts:      save.Thoughts,
		PendingTasks:  save.PendingTasks,
		gen:           gen,
		logger:        logger,
	}
}

// GenerateActions produces three candidate actions for the coming time
// span. In-flight tasks bias the candidates but never force them. The
// result always has exactly three non-empty entries; on any backend or
// parse failure the default action fills in.
func (c *Character) GenerateActions(ctx context.Context, timeSpan string) []string {
	prompt := c.actionsPrompt(timeSpan)

	resp, err := c.gen.Generate(ctx, prompt, llm.VariantPrimary)
	if err != nil {
		c.logger.Warn("action generation failed, using default actions", "error", err)
		return defaultActions()
	}

	actions, ok := protocol.ParseNumbered(resp, "Action", actionCount)
	if !ok {
		c.logger.Warn("malformed action response, using default actions")
		return defaultActions()
	}
	return actions
}

func defaultActions() []string {
	return []string{DefaultAction, DefaultAction, DefaultAction}
}

func (c *Character) actionsPrompt(timeSpan string) string {
	var sb strings.Builder
	sb.WriteString("[Character Profile]\n")
	sb.WriteString(c.Profile)
	sb.WriteString("\n\n[Current Thoughts]\n")
	sb.WriteString(c.Thoughts)

	actx := c.ActiveTaskContext()
	if len(actx.ActiveTasks) > 0 {
		sb.WriteString("\n\n[Active Tasks]\n")
		for _, t := range actx.ActiveTasks {
			sb.WriteString(fmt.Sprintf("- %s (reward: %s, influence: %s)\n",
				t.Description, t.Reward, strconv.FormatFloat(t.Influence, 'f', -1, 64)))
		}
	}

	sb.WriteString("\n\nGenerate three candidate actions for the protagonist. ")
	sb.WriteString("Consider the active tasks as influences, not obligations. ")
	sb.WriteString("Each action is a single line describing the action and its expected outcome.\n")
	sb.WriteString("The actions cover this span of time: " + timeSpan + "\n\n")
	sb.WriteString("Respond in exactly this format:\n")
	sb.WriteString("[Action 1]: ...\n[Action 2]: ...\n[Action 3]: ...")
	return sb.String()
}

// UpdateAttributes rewrites the profile to incorporate a change. The
// whole document is replaced; the prompt constrains the model to change
// only what the description requires. The thoughts refresh afterward is
// best-effort.
func (c *Character) UpdateAttributes(ctx context.Context, change string) error {
	var sb strings.Builder
	sb.WriteString("[Current Character Profile]\n")
	sb.WriteString(c.Profile)
	sb.WriteString("\n\n[Requested Change]\n")
	sb.WriteString(change)
	sb.WriteString("\n\nRewrite the complete character profile with this change applied. ")
	sb.WriteString("Keep the existing structure and wording wherever the change does not touch it. ")
	sb.WriteString("Return only the full updated profile, with no commentary.")

	updated, err := c.gen.Generate(ctx, sb.String(), llm.VariantPrimary)
	if err != nil {
		return fmt.Errorf("profile update failed: %w", err)
	}
	updated = protocol.StripMarkup(updated)
	if updated == "" {
		return fmt.Errorf("profile update returned empty document")
	}

	c.Profile = updated
	c.UpdateThoughts(ctx, "Something about you changed: "+change)
	return nil
}

// UpdateThoughts regenerates the psychology text from a trigger event.
// Failures keep the previous thoughts; psychology drift is not worth
// failing a player command over.
func (c *Character) UpdateThoughts(ctx context.Context, trigger string) {
	var sb strings.Builder
	sb.WriteString("[What Just Happened]\n")
	sb.WriteString(trigger)
	sb.WriteString("\n\n[Character Profile]\n")
	sb.WriteString(c.Profile)
	sb.WriteString("\n\n[Current Thoughts]\n")
	sb.WriteString(c.Thoughts)
	sb.WriteString("\n\nWrite the character's new inner monologue in under 100 words. ")
	sb.WriteString("Return only the monologue text.")

	thoughts, err := c.gen.Generate(ctx, sb.String(), llm.VariantFast)
	if err != nil {
		c.logger.Warn("thoughts update failed, keeping previous thoughts", "error", err)
		return
	}
	thoughts = protocol.StripMarkup(thoughts)
	if thoughts == "" {
		return
	}
	if runes := []rune(thoughts); len(runes) > thoughtsMaxLen {
		thoughts = string(runes[:thoughtsMaxLen])
	}
	c.Thoughts = thoughts
}

// Update reacts to a world change notification.
func (c *Character) Update(ctx context.Context, event string) {
	c.UpdateThoughts(ctx, "The world changed around you: "+event)
}

// ReceiveTask appends a task to the pending queue.
func (c *Character) ReceiveTask(t *Task) {
	c.PendingTasks = append(c.PendingTasks, t)
}

// ActiveTaskContext folds all in-flight tasks into an action context.
func (c *Character) ActiveTaskContext() *ActionContext {
	actx := &ActionContext{}
	for _, t := range c.PendingTasks {
		t.ApplyInfluence(actx)
	}
	return actx
}

// Info formats the character sheet deterministically. The hidden
// profile is included only for internal narrative prompts, never for
// player-facing output.
func (c *Character) Info(showHidden bool) string {
	var sb strings.Builder
	sb.WriteString("[[Character Profile]]\n")
	sb.WriteString(c.Profile)
	if showHidden && c.HiddenProfile != "" {
		sb.WriteString("\n\n[[Hidden Profile]]\n")
		sb.WriteString(c.HiddenProfile)
	}
	sb.WriteString("\n\n[[Current Thoughts]]\n")
	sb.WriteString(c.Thoughts)
	return sb.String()
}

// SaveData captures the character for persistence.
func (c *Character) SaveData() CharacterSave {
	tasks := make([]*Task, len(c.PendingTasks))
	for i, t := range c.PendingTasks {
		copied := *t
		tasks[i] = &copied
	}
	return CharacterSave{
		Profile:       c.Profile,
		HiddenProfile: c.HiddenProfile,
		Thoughts:      c.Thoughts,
		PendingTasks:  tasks,
	}
}
