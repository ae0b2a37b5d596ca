// Package engine contains the System orchestrator: the single owner of
// one Character and one World, the energy budget, the dialogue and
// query logs, and every player-facing operation. All mutation flows
// through System methods; components never reach back into each other
// except through the explicit change-notification callback wired at
// construction.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/storyweave/gamemaster/pkg/actor"
	"github.com/storyweave/gamemaster/pkg/llm"
	"github.com/storyweave/gamemaster/pkg/protocol"
	"github.com/storyweave/gamemaster/pkg/storage"
	"github.com/storyweave/gamemaster/pkg/story"
	"github.com/storyweave/gamemaster/pkg/world"
)

// Phase is the explicit session state machine. A session is either
// waiting for /start or running; reset and story switches return it to
// PhaseNotStarted.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
)

const (
	// StartingEnergy is the per-session budget for direct state edits.
	StartingEnergy = 10000.0

	// DefaultSaveSlot is the quick-save slot; it is always overwritable.
	DefaultSaveSlot = "default"

	dialogueTail     = 5   // dialogue turns quoted verbatim in prompts
	summaryTail      = 3   // rolling summaries included in prompts
	summaryThreshold = 20  // dialogue turns before auto-folding into a summary
	historyWindow    = 100 // world history entries included in prompts

	minEnergyCost      = 1.0
	maxEnergyCost      = 100.0
	fallbackEnergyCost = 10.0
)

var (
	// ErrNotStarted is returned by story operations before /start.
	ErrNotStarted = errors.New("story not started")

	// ErrAlreadyStarted is returned by Start on a running session.
	ErrAlreadyStarted = errors.New("story already started")

	// ErrSaveExists is returned when saving over an occupied named slot
	// without force.
	ErrSaveExists = errors.New("save already exists")

	// ErrNoSuchTask is returned for an out-of-range task index.
	ErrNoSuchTask = errors.New("no such task")
)

const (
	targetWorld     = "world"
	targetCharacter = "character"
)

// System is the top-level orchestrator for one game session. It is not
// safe for concurrent use; the session owner serializes commands.
type System struct {
	gen    llm.Generator
	store  storage.Store
	logger *slog.Logger

	phase             Phase
	energy            float64
	currentStory      string
	character         *actor.Character
	world             *world.World
	dialogueHistory   []DialogueTurn
	dialogueSummaries []string
	queryHistory      []QueryRecord
}

// NewSystem creates a session for the named story.
func NewSystem(ctx context.Context, storyName string, gen llm.Generator, store storage.Store, logger *slog.Logger) (*System, error) {
	s := &System{
		gen:    gen,
		store:  store,
		logger: logger,
	}
	tpl, err := store.LoadStory(ctx, storyName)
	if err != nil {
		return nil, err
	}
	s.install(tpl)
	return s, nil
}

// install rebuilds World, Character, energy and all logs together.
// A partial rebuild is an invariant violation, so this is the only
// place session state is replaced wholesale.
func (s *System) install(tpl *story.Template) {
	s.character = actor.NewCharacter(tpl, s.gen, s.logger)
	w := world.NewWorld(tpl, s.gen, s.logger)
	w.SetChangeListener(s.notifyCharacter)
	s.world = w

	s.energy = StartingEnergy
	s.currentStory = tpl.Name
	s.phase = PhaseNotStarted
	s.dialogueHistory = nil
	s.dialogueSummaries = nil
	s.queryHistory = nil
}

func (s *System) notifyCharacter(ctx context.Context, description string) {
	s.character.Update(ctx, description)
}

// Status is a read-only view of the session for the routing layer.
type Status struct {
	Story        string        `json:"story"`
	Phase        Phase         `json:"phase"`
	Energy       float64       `json:"energy"`
	Time         time.Time     `json:"time"`
	PendingTasks []*actor.Task `json:"pending_tasks,omitempty"`
}

func (s *System) Status() Status {
	return Status{
		Story:        s.currentStory,
		Phase:        s.phase,
		Energy:       s.energy,
		Time:         s.world.CurrentTime,
		PendingTasks: append([]*actor.Task(nil), s.character.PendingTasks...),
	}
}

// Energy returns the remaining energy budget.
func (s *System) Energy() float64 { return s.energy }

// Phase returns the session state.
func (s *System) Phase() Phase { return s.phase }

// StoryName returns the active story identifier.
func (s *System) StoryName() string { return s.currentStory }

// HelpInfo returns the player command reference.
func (s *System) HelpInfo() string { return helpText }

// Start transitions the session to running and narrates the opening
// scene. The phase flips only after the scene is produced.
func (s *System) Start(ctx context.Context) (string, error) {
	if s.phase == PhaseRunning {
		return "", ErrAlreadyStarted
	}
	scene, err := s.GenerateSceneDescription(ctx)
	if err != nil {
		return "", err
	}
	s.phase = PhaseRunning
	s.world.LogHistory(scene)
	return scene, nil
}

// GenerateSceneDescription narrates the current scene without mutating
// session state.
func (s *System) GenerateSceneDescription(ctx context.Context) (string, error) {
	prompt := scenePrompt(s.character.Info(true), s.world.CurrentContext(historyWindow, true))
	raw, err := s.gen.Generate(ctx, prompt, llm.VariantPrimary)
	if err != nil {
		return "", fmt.Errorf("scene description: %w", err)
	}
	return protocol.StripMarkup(raw), nil
}

// Communicate sends a message to the protagonist and returns the
// in-character reply. The completion carries a [Reply] and a
// [Thought change] section; a missing thought section leaves the
// psychology unchanged, and a missing reply section falls back to the
// whole completion rather than blanking the exchange.
func (s *System) Communicate(ctx context.Context, message string) (string, error) {
	if s.phase != PhaseRunning {
		return "", ErrNotStarted
	}

	var tasks []string
	for _, t := range s.character.PendingTasks {
		if t.Status == actor.TaskPending || t.Status == actor.TaskAccepted {
			tasks = append(tasks, t.String())
		}
	}

	prompt := communicatePrompt(
		tailStrings(s.dialogueSummaries, summaryTail),
		s.character.Info(false),
		tasks,
		s.formatRecentDialogue(dialogueTail),
		message,
	)
	raw, err := s.gen.Generate(ctx, prompt, llm.VariantPrimary)
	if err != nil {
		return "", fmt.Errorf("communicate: %w", err)
	}

	res := protocol.Parse(raw)
	reply, ok := res.Section(labelReply)
	if !ok || reply == "" {
		reply = strings.TrimSpace(raw)
	}
	if change, ok := res.Section(labelThoughtChange); ok && change != "" {
		s.character.Thoughts = change
	}

	s.dialogueHistory = append(s.dialogueHistory, DialogueTurn{System: message, Character: reply})
	if len(s.dialogueHistory) >= summaryThreshold {
		s.foldDialogue(ctx)
	}
	return reply, nil
}

// ModifyState spends energy to edit the world or the protagonist. The
// change is classified, costed, and checked against the budget before
// anything mutates; the debit lands only after the effect succeeds, so
// a failure partway leaves both the budget and the documents untouched.
func (s *System) ModifyState(ctx context.Context, modification string) (string, error) {
	if s.phase != PhaseRunning {
		return "", ErrNotStarted
	}

	target, err := s.classifyModification(ctx, modification)
	if err != nil {
		return "", err
	}
	cost, err := s.estimateEnergyCost(ctx, modification)
	if err != nil {
		return "", err
	}
	if s.energy < cost {
		return fmt.Sprintf("Not enough energy: this change costs %.0f, %.0f remaining.", cost, s.energy), nil
	}

	var ack string
	switch target {
	case targetCharacter:
		if err := s.character.UpdateAttributes(ctx, modification); err != nil {
			return "", err
		}
		ack = "The protagonist has been updated: " + modification
	default:
		ack, err = s.world.ApplyChange(ctx, modification)
		if err != nil {
			return "", err
		}
	}
	s.energy -= cost

	result := fmt.Sprintf("%s\nSpent %.0f energy, %.0f remaining.", ack, cost, s.energy)
	reply, err := s.Communicate(ctx, "Reality shifted: "+modification)
	if err != nil {
		// The edit landed and was paid for; the reaction is a bonus.
		s.logger.Warn("in-character reaction failed", "error", err)
		return result, nil
	}
	return result + "\n" + reply, nil
}

func (s *System) classifyModification(ctx context.Context, modification string) (string, error) {
	raw, err := s.gen.Generate(ctx, classifyModificationPrompt(modification), llm.VariantFast)
	if err != nil {
		return "", fmt.Errorf("classify modification: %w", err)
	}
	if strings.Contains(strings.ToLower(raw), targetCharacter) {
		return targetCharacter, nil
	}
	// An unrecognized answer falls back to a world edit, the broader
	// target.
	return targetWorld, nil
}

func (s *System) estimateEnergyCost(ctx context.Context, modification string) (float64, error) {
	raw, err := s.gen.Generate(ctx, energyCostPrompt(modification, s.energy), llm.VariantFast)
	if err != nil {
		return 0, fmt.Errorf("energy estimate: %w", err)
	}
	cost, perr := strconv.ParseFloat(strings.TrimSpace(protocol.StripMarkup(raw)), 64)
	if perr != nil {
		s.logger.Warn("unparseable energy estimate, using fallback cost", "estimate", raw)
		return fallbackEnergyCost, nil
	}
	return math.Min(math.Max(cost, minEnergyCost), maxEnergyCost), nil
}

// ConfirmWorldState answers a read-only query about the world and logs
// the answer so later narration stays consistent with it.
func (s *System) ConfirmWorldState(ctx context.Context, query string) (string, error) {
	if s.phase != PhaseRunning {
		return "", ErrNotStarted
	}
	raw, err := s.gen.Generate(ctx, queryPrompt(query, s.world.CurrentContext(historyWindow, false)), llm.VariantPrimary)
	if err != nil {
		return "", fmt.Errorf("world query: %w", err)
	}
	response := strings.TrimSpace(raw)
	s.queryHistory = append(s.queryHistory, QueryRecord{Query: query, Response: response})
	s.world.SaveQueryResult(query, response)
	return response, nil
}

// AdvanceStory moves the clock forward and narrates one beat of
// autonomous story progress. The chain is: clock, candidate actions,
// narrative, history append, profile update, task completion check,
// in-character reaction. History is appended only once a narrative
// exists; a later failure returns the narrative alongside the error so
// the caller can still show what happened.
func (s *System) AdvanceStory(ctx context.Context, timeSpan string) (string, error) {
	if s.phase != PhaseRunning {
		return "", ErrNotStarted
	}

	if _, err := s.world.AdvanceTime(ctx, timeSpan); err != nil {
		return "", err
	}

	actions := s.character.GenerateActions(ctx, timeSpan)

	prompt := advanceStoryPrompt(s.character.Info(true), s.world.CurrentContext(historyWindow, true), actions, timeSpan)
	raw, err := s.gen.Generate(ctx, prompt, llm.VariantPrimary)
	if err != nil {
		return "", fmt.Errorf("story progression: %w", err)
	}

	narrative := raw
	suggestions := ""
	if idx := strings.Index(raw, "["+labelSuggestions+"]"); idx >= 0 {
		narrative = raw[:idx]
		if sug, ok := protocol.Parse(raw).Section(labelSuggestions); ok {
			suggestions = sug
		}
	}
	narrative = protocol.StripMarkup(narrative)

	s.world.LogHistory(narrative)

	if err := s.character.UpdateAttributes(ctx, "The story moved on: "+narrative); err != nil {
		return narrative, fmt.Errorf("narrative logged but character update failed: %w", err)
	}

	notes := s.CheckTaskCompletion(ctx, narrative)

	reply, err := s.Communicate(ctx, "The story just progressed: "+narrative)
	if err != nil {
		return narrative, fmt.Errorf("narrative logged but reaction failed: %w", err)
	}

	out := narrative
	for _, note := range notes {
		out += "\n\n" + note
	}
	if reply != "" {
		out += "\n\n" + reply
	}
	if suggestions != "" {
		out += "\n\n[" + labelSuggestions + "]: " + suggestions
	}
	return out, nil
}

// CheckTaskCompletion classifies each accepted task against recent
// narrative context. A completed task has its reward applied exactly
// once, and the result surfaces as an explicit grant-the-reward note;
// rewards are narrative text, so reconciliation stays with the player.
func (s *System) CheckTaskCompletion(ctx context.Context, narrative string) []string {
	var notes []string
	for _, t := range s.character.PendingTasks {
		if t.Status != actor.TaskAccepted {
			continue
		}
		raw, err := s.gen.Generate(ctx, taskCompletionPrompt(t.Description, narrative), llm.VariantFast)
		if err != nil {
			s.logger.Warn("task completion check failed", "task", t.Description, "error", err)
			continue
		}
		answer := strings.ToLower(raw)
		if !strings.Contains(answer, "completed") || strings.Contains(answer, "not completed") {
			continue
		}
		if err := t.Complete(); err != nil {
			continue
		}
		if reward, ok := t.ApplyReward(); ok {
			notes = append(notes, fmt.Sprintf("Task completed: %s. Please grant the promised reward: %s", t.Description, reward))
			s.world.LogHistory("Task completed: " + t.Description)
		}
	}
	return notes
}

// IssueTask formats a raw task description, generates a fitting reward
// and queues the task for the protagonist.
func (s *System) IssueTask(ctx context.Context, description string) (*actor.Task, error) {
	if s.phase != PhaseRunning {
		return nil, ErrNotStarted
	}
	raw, err := s.gen.Generate(ctx, formatTaskPrompt(description), llm.VariantFast)
	if err != nil {
		return nil, fmt.Errorf("task formatting: %w", err)
	}
	res := protocol.Parse(raw)
	desc, _ := res.Section(labelTask)
	reward, _ := res.Section(labelReward)
	if desc == "" {
		desc = strings.TrimSpace(description)
	}
	if reward == "" {
		reward = "System points, granted on completion."
	}
	t := actor.NewTask(desc, reward)
	s.character.ReceiveTask(t)
	return t, nil
}

// DetectTask checks whether a player message assigns a task. It returns
// nil without error when no task is found.
func (s *System) DetectTask(ctx context.Context, message string) (*actor.Task, error) {
	raw, err := s.gen.Generate(ctx, detectTaskPrompt(message), llm.VariantFast)
	if err != nil {
		return nil, fmt.Errorf("task detection: %w", err)
	}
	res := protocol.Parse(raw)
	desc, ok := res.Section(labelTask)
	if !ok || desc == "" {
		return nil, nil
	}
	reward, _ := res.Section(labelReward)
	t := actor.NewTask(desc, reward)
	s.character.ReceiveTask(t)
	return t, nil
}

// AcceptTask marks pending task n (1-based) as accepted.
func (s *System) AcceptTask(index int) error {
	t, err := s.taskAt(index)
	if err != nil {
		return err
	}
	return t.Accept()
}

// RejectTask marks pending task n (1-based) as rejected.
func (s *System) RejectTask(index int) error {
	t, err := s.taskAt(index)
	if err != nil {
		return err
	}
	return t.Reject()
}

func (s *System) taskAt(index int) (*actor.Task, error) {
	if index < 1 || index > len(s.character.PendingTasks) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchTask, index)
	}
	return s.character.PendingTasks[index-1], nil
}

// SummarizeCurrentDialogue compresses the dialogue transcript into a
// short rolling summary.
func (s *System) SummarizeCurrentDialogue(ctx context.Context) (string, error) {
	if len(s.dialogueHistory) == 0 {
		return "No dialogue to summarize.", nil
	}
	raw, err := s.gen.Generate(ctx, summaryPrompt(s.formatRecentDialogue(len(s.dialogueHistory))), llm.VariantFast)
	if err != nil {
		return "", fmt.Errorf("dialogue summary: %w", err)
	}
	summary := strings.TrimSpace(raw)
	s.dialogueSummaries = append(s.dialogueSummaries, summary)
	return summary, nil
}

// ClearDialogueHistory summarizes the transcript, then clears it. This
// bounds prompt size over long sessions, trading full recall for the
// rolling summaries plus a short tail window.
func (s *System) ClearDialogueHistory(ctx context.Context) error {
	if len(s.dialogueHistory) == 0 {
		return nil
	}
	if _, err := s.SummarizeCurrentDialogue(ctx); err != nil {
		return err
	}
	s.dialogueHistory = nil
	return nil
}

func (s *System) foldDialogue(ctx context.Context) {
	if err := s.ClearDialogueHistory(ctx); err != nil {
		s.logger.Warn("dialogue fold failed, keeping full transcript", "error", err)
	}
}

// Snapshot captures the full session for persistence.
func (s *System) Snapshot() *Snapshot {
	return &Snapshot{
		Energy:            s.energy,
		Phase:             s.phase,
		CurrentStory:      s.currentStory,
		DialogueHistory:   append([]DialogueTurn(nil), s.dialogueHistory...),
		DialogueSummaries: append([]string(nil), s.dialogueSummaries...),
		QueryHistory:      append([]QueryRecord(nil), s.queryHistory...),
		World:             s.world.SaveData(),
		Character:         s.character.SaveData(),
		SavedAt:           time.Now().UTC(),
	}
}

// SaveGame writes the session snapshot to a named slot. Occupied named
// slots are refused without force; the default slot always overwrites.
func (s *System) SaveGame(ctx context.Context, name string, force bool) (string, error) {
	if name == "" {
		name = DefaultSaveSlot
	}
	if name != DefaultSaveSlot && !force {
		exists, err := s.store.SaveExists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("save check failed: %w", err)
		}
		if exists {
			return "", fmt.Errorf("%w: %q", ErrSaveExists, name)
		}
	}
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return "", fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := s.store.WriteSave(ctx, name, data); err != nil {
		return "", fmt.Errorf("failed to write save: %w", err)
	}
	return fmt.Sprintf("Saved session to slot %q.", name), nil
}

// LoadGame restores a session from a save slot. No field is applied
// until the whole payload parses and validates; a corrupted save
// leaves the in-memory session untouched.
func (s *System) LoadGame(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = DefaultSaveSlot
	}
	data, err := s.store.ReadSave(ctx, name)
	if err != nil {
		return "", err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return "", fmt.Errorf("corrupted save %q: %w", name, err)
	}
	if err := snap.Validate(); err != nil {
		return "", fmt.Errorf("corrupted save %q: %w", name, err)
	}
	s.apply(&snap)
	return fmt.Sprintf("Loaded session from slot %q.", name), nil
}

func (s *System) apply(snap *Snapshot) {
	s.character = actor.RestoreCharacter(snap.Character, s.gen, s.logger)
	w := world.RestoreWorld(snap.World, s.gen, s.logger)
	w.SetChangeListener(s.notifyCharacter)
	s.world = w

	s.energy = snap.Energy
	s.phase = snap.Phase
	s.currentStory = snap.CurrentStory
	s.dialogueHistory = append([]DialogueTurn(nil), snap.DialogueHistory...)
	s.dialogueSummaries = append([]string(nil), snap.DialogueSummaries...)
	s.queryHistory = append([]QueryRecord(nil), snap.QueryHistory...)
}

// ListSaves returns the occupied save slots.
func (s *System) ListSaves(ctx context.Context) ([]string, error) {
	return s.store.ListSaves(ctx)
}

// AvailableStories returns the story template names.
func (s *System) AvailableStories(ctx context.Context) ([]string, error) {
	return s.store.ListStories(ctx)
}

// SwitchStory rebuilds the session around another story template.
func (s *System) SwitchStory(ctx context.Context, name string) (string, error) {
	tpl, err := s.store.LoadStory(ctx, name)
	if err != nil {
		return "", err
	}
	s.install(tpl)
	return fmt.Sprintf("Switched to story %q. Use /start to begin.", name), nil
}

// Reset restarts the current story from its template.
func (s *System) Reset(ctx context.Context) (string, error) {
	tpl, err := s.store.LoadStory(ctx, s.currentStory)
	if err != nil {
		return "", err
	}
	s.install(tpl)
	return fmt.Sprintf("Story %q has been reset. Use /start to begin.", s.currentStory), nil
}

// Execute dispatches one parsed player command. Meta commands work in
// any phase; story commands require a running session and answer with
// guidance instead of an error when it is not.
func (s *System) Execute(ctx context.Context, cmd Command) (string, error) {
	switch cmd.Type {
	case CmdHelp:
		return s.HelpInfo(), nil
	case CmdStories:
		stories, err := s.AvailableStories(ctx)
		if err != nil {
			return "", err
		}
		return "Available stories:\n- " + strings.Join(stories, "\n- "), nil
	case CmdSaves:
		saves, err := s.ListSaves(ctx)
		if err != nil {
			return "", err
		}
		if len(saves) == 0 {
			return "No saved sessions.", nil
		}
		return "Saved sessions:\n- " + strings.Join(saves, "\n- "), nil
	case CmdSwitch:
		if cmd.Arg == "" {
			return "Usage: /switch <story>", nil
		}
		return s.SwitchStory(ctx, cmd.Arg)
	case CmdReset:
		return s.Reset(ctx)
	case CmdSave:
		return s.SaveGame(ctx, cmd.Arg, cmd.Force)
	case CmdLoad:
		return s.LoadGame(ctx, cmd.Arg)
	case CmdStart:
		scene, err := s.Start(ctx)
		if errors.Is(err, ErrAlreadyStarted) {
			return "The story is already underway.", nil
		}
		return scene, err
	}

	if s.phase != PhaseRunning {
		return "The story has not started yet. Use /start to begin.", nil
	}

	switch cmd.Type {
	case CmdSay:
		return s.Communicate(ctx, cmd.Arg)
	case CmdModify:
		if cmd.Arg == "" {
			return "Usage: /modify <change>", nil
		}
		return s.ModifyState(ctx, cmd.Arg)
	case CmdQuery:
		if cmd.Arg == "" {
			return "Usage: /query <question>", nil
		}
		return s.ConfirmWorldState(ctx, cmd.Arg)
	case CmdAdvance:
		if cmd.Arg == "" {
			return "Usage: /advance <time span>", nil
		}
		return s.AdvanceStory(ctx, cmd.Arg)
	case CmdTask:
		if cmd.Arg == "" {
			return "Usage: /task <goal>", nil
		}
		t, err := s.IssueTask(ctx, cmd.Arg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("New task issued: %s (reward: %s)", t.Description, t.Reward), nil
	case CmdAcceptTask:
		if err := s.AcceptTask(cmd.Index); err != nil {
			return err.Error(), nil
		}
		return "Task accepted.", nil
	case CmdRejectTask:
		if err := s.RejectTask(cmd.Index); err != nil {
			return err.Error(), nil
		}
		return "Task rejected.", nil
	case CmdSummarize:
		return s.SummarizeCurrentDialogue(ctx)
	default:
		return "", fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func (s *System) formatRecentDialogue(n int) string {
	if len(s.dialogueHistory) == 0 {
		return ""
	}
	recent := s.dialogueHistory
	if n > 0 && len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	var sb strings.Builder
	for i, turn := range recent {
		sb.WriteString(fmt.Sprintf("Turn %d:\nSystem: %s\nCharacter: %s\n", i+1, turn.System, turn.Character))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func tailStrings(values []string, n int) []string {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
