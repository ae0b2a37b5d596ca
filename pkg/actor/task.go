package actor

import (
	"fmt"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskAccepted  TaskStatus = "accepted"
	TaskRejected  TaskStatus = "rejected"
	TaskCompleted TaskStatus = "completed"
)

// Task is a player- or story-issued objective. Tasks influence the
// protagonist's autonomous choices but never dictate them.
type Task struct {
	Description   string     `json:"description"`
	Reward        string     `json:"reward"`
	Influence     float64    `json:"influence"`
	Status        TaskStatus `json:"status"`
	RewardApplied bool       `json:"reward_applied"`
}

// NewTask creates a pending task with the default influence weight.
func NewTask(description, reward string) *Task {
	return &Task{
		Description: description,
		Reward:      reward,
		Influence:   1.0,
		Status:      TaskPending,
	}
}

// Accept marks a pending task as accepted by the protagonist.
func (t *Task) Accept() error {
	if t.Status != TaskPending {
		return fmt.Errorf("cannot accept task in status %q", t.Status)
	}
	t.Status = TaskAccepted
	return nil
}

// Reject marks a pending task as rejected.
func (t *Task) Reject() error {
	if t.Status != TaskPending {
		return fmt.Errorf("cannot reject task in status %q", t.Status)
	}
	t.Status = TaskRejected
	return nil
}

// Complete marks an accepted task as completed.
func (t *Task) Complete() error {
	if t.Status != TaskAccepted {
		return fmt.Errorf("cannot complete task in status %q", t.Status)
	}
	t.Status = TaskCompleted
	return nil
}

// ApplyReward returns the reward descriptor exactly once, after the
// task is completed. Subsequent calls return an empty descriptor.
func (t *Task) ApplyReward() (string, bool) {
	if t.Status != TaskCompleted || t.RewardApplied {
		return "", false
	}
	t.RewardApplied = true
	return t.Reward, true
}

// TaskInfluence is one in-flight task as seen by the action generator.
type TaskInfluence struct {
	Description string
	Reward      string
	Influence   float64
}

// ActionContext carries the inputs to action generation.
type ActionContext struct {
	ActiveTasks []TaskInfluence
}

// ApplyInfluence folds the task into the action context. Only pending
// and accepted tasks bias the protagonist's choices.
func (t *Task) ApplyInfluence(ctx *ActionContext) {
	if t.Status != TaskPending && t.Status != TaskAccepted {
		return
	}
	ctx.ActiveTasks = append(ctx.ActiveTasks, TaskInfluence{
		Description: t.Description,
		Reward:      t.Reward,
		Influence:   t.Influence,
	})
}

func (t *Task) String() string {
	return fmt.Sprintf("Task(description=%q, status=%s, reward=%q)", t.Description, t.Status, t.Reward)
}
