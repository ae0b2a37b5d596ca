package engine

import (
	"fmt"
	"time"

	"github.com/storyweave/gamemaster/pkg/actor"
	"github.com/storyweave/gamemaster/pkg/world"
)

// DialogueTurn is one exchange between the system voice and the
// protagonist.
type DialogueTurn struct {
	System    string `json:"system"`
	Character string `json:"character"`
}

// QueryRecord is one world-state query and its answer.
type QueryRecord struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Snapshot is the full serialized session: everything needed to restore
// a System field-by-field. Saves are written and loaded atomically; a
// snapshot that fails validation is never partially applied.
type Snapshot struct {
	Energy            float64             `json:"energy"`
	Phase             Phase               `json:"phase"`
	CurrentStory      string              `json:"current_story"`
	DialogueHistory   []DialogueTurn      `json:"dialogue_history"`
	DialogueSummaries []string            `json:"dialogue_summaries"`
	QueryHistory      []QueryRecord       `json:"query_history"`
	World             world.WorldSave     `json:"world"`
	Character         actor.CharacterSave `json:"character"`
	SavedAt           time.Time           `json:"saved_at"`
}

// Validate checks the whole payload before any field is applied to a
// live session.
func (s *Snapshot) Validate() error {
	if s.CurrentStory == "" {
		return fmt.Errorf("snapshot missing story identifier")
	}
	if s.Energy < 0 {
		return fmt.Errorf("snapshot has negative energy %f", s.Energy)
	}
	if s.Phase != PhaseNotStarted && s.Phase != PhaseRunning {
		return fmt.Errorf("snapshot has unknown phase %q", s.Phase)
	}
	if s.World.Background == "" {
		return fmt.Errorf("snapshot missing world background")
	}
	if s.World.CurrentTime.IsZero() {
		return fmt.Errorf("snapshot missing world clock")
	}
	if s.Character.Profile == "" {
		return fmt.Errorf("snapshot missing character profile")
	}
	for i, t := range s.Character.PendingTasks {
		switch t.Status {
		case actor.TaskPending, actor.TaskAccepted, actor.TaskRejected, actor.TaskCompleted:
		default:
			return fmt.Errorf("snapshot task %d has unknown status %q", i, t.Status)
		}
		if t.RewardApplied && t.Status != actor.TaskCompleted {
			return fmt.Errorf("snapshot task %d has reward applied before completion", i)
		}
	}
	return nil
}
