package actor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyweave/gamemaster/pkg/llm"
	"github.com/storyweave/gamemaster/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTemplate() *story.Template {
	return &story.Template{
		Name:            "demo",
		Background:      "A quiet mountain village.",
		Profile:         "Ren, a young herbalist with a sharp memory.",
		HiddenProfile:   "Ren is the last heir of the mountain shrine.",
		InitialThoughts: "Another ordinary morning, probably.",
	}
}

func TestNewCharacter(t *testing.T) {
	c := NewCharacter(testTemplate(), llm.NewMockGenerator(), testLogger())
	assert.Equal(t, "Ren, a young herbalist with a sharp memory.", c.Profile)
	assert.Equal(t, "Ren is the last heir of the mountain shrine.", c.HiddenProfile)
	assert.Equal(t, "Another ordinary morning, probably.", c.Thoughts)
	assert.Empty(t, c.PendingTasks)
}

func TestGenerateActions(t *testing.T) {
	t.Run("parses three actions", func(t *testing.T) {
		gen := llm.NewMockGenerator("[Action 1]: gather herbs\n[Action 2]: visit the market\n[Action 3]: rest at home")
		c := NewCharacter(testTemplate(), gen, testLogger())

		actions := c.GenerateActions(context.Background(), "1d")
		assert.Equal(t, []string{"gather herbs", "visit the market", "rest at home"}, actions)
		assert.Equal(t, llm.VariantPrimary, gen.LastCall().Variant)
	})

	t.Run("backend failure falls back to defaults", func(t *testing.T) {
		gen := &llm.MockGenerator{Err: errors.New("backend down")}
		c := NewCharacter(testTemplate(), gen, testLogger())

		actions := c.GenerateActions(context.Background(), "1d")
		assert.Equal(t, []string{DefaultAction, DefaultAction, DefaultAction}, actions)
	})

	t.Run("malformed response falls back to defaults", func(t *testing.T) {
		gen := llm.NewMockGenerator("Here are some ideas:\n1. gather herbs\n2. rest")
		c := NewCharacter(testTemplate(), gen, testLogger())

		actions := c.GenerateActions(context.Background(), "1d")
		require.Len(t, actions, 3)
		assert.Equal(t, DefaultAction, actions[0])
	})

	t.Run("active tasks appear in prompt", func(t *testing.T) {
		gen := llm.NewMockGenerator("[Action 1]: a\n[Action 2]: b\n[Action 3]: c")
		c := NewCharacter(testTemplate(), gen, testLogger())
		c.ReceiveTask(NewTask("find the blue lotus", "a rare recipe"))

		c.GenerateActions(context.Background(), "1d")
		assert.Contains(t, gen.LastCall().Prompt, "find the blue lotus")
	})
}

func TestUpdateAttributes(t *testing.T) {
	t.Run("replaces whole profile", func(t *testing.T) {
		gen := llm.NewMockGenerator(
			"Ren, a young herbalist with a sharp memory, now carrying an iron sword.",
			"The weight of the sword is strange and thrilling.",
		)
		c := NewCharacter(testTemplate(), gen, testLogger())

		err := c.UpdateAttributes(context.Background(), "Ren receives an iron sword.")
		require.NoError(t, err)
		assert.Equal(t, "Ren, a young herbalist with a sharp memory, now carrying an iron sword.", c.Profile)
		assert.Equal(t, "The weight of the sword is strange and thrilling.", c.Thoughts)
	})

	t.Run("backend failure leaves profile untouched", func(t *testing.T) {
		gen := &llm.MockGenerator{Err: errors.New("backend down")}
		c := NewCharacter(testTemplate(), gen, testLogger())
		before := c.Profile

		err := c.UpdateAttributes(context.Background(), "anything")
		require.Error(t, err)
		assert.Equal(t, before, c.Profile)
	})

	t.Run("empty rewrite is an error", func(t *testing.T) {
		gen := llm.NewMockGenerator("   ")
		c := NewCharacter(testTemplate(), gen, testLogger())
		before := c.Profile

		err := c.UpdateAttributes(context.Background(), "anything")
		require.Error(t, err)
		assert.Equal(t, before, c.Profile)
	})
}

func TestUpdateThoughts(t *testing.T) {
	t.Run("uses fast variant", func(t *testing.T) {
		gen := llm.NewMockGenerator("A new thought.")
		c := NewCharacter(testTemplate(), gen, testLogger())

		c.UpdateThoughts(context.Background(), "something happened")
		assert.Equal(t, "A new thought.", c.Thoughts)
		assert.Equal(t, llm.VariantFast, gen.LastCall().Variant)
	})

	t.Run("failure keeps previous thoughts", func(t *testing.T) {
		gen := &llm.MockGenerator{Err: errors.New("backend down")}
		c := NewCharacter(testTemplate(), gen, testLogger())

		c.UpdateThoughts(context.Background(), "something happened")
		assert.Equal(t, "Another ordinary morning, probably.", c.Thoughts)
	})

	t.Run("overlong thoughts are truncated", func(t *testing.T) {
		gen := llm.NewMockGenerator(strings.Repeat("思", thoughtsMaxLen+50))
		c := NewCharacter(testTemplate(), gen, testLogger())

		c.UpdateThoughts(context.Background(), "something happened")
		assert.Len(t, []rune(c.Thoughts), thoughtsMaxLen)
	})
}

func TestInfo(t *testing.T) {
	c := NewCharacter(testTemplate(), llm.NewMockGenerator(), testLogger())

	visible := c.Info(false)
	assert.Contains(t, visible, "[[Character Profile]]")
	assert.Contains(t, visible, "[[Current Thoughts]]")
	assert.NotContains(t, visible, "[[Hidden Profile]]")
	assert.NotContains(t, visible, "last heir")

	hidden := c.Info(true)
	assert.Contains(t, hidden, "[[Hidden Profile]]")
	assert.Contains(t, hidden, "last heir")
}

func TestSaveData(t *testing.T) {
	c := NewCharacter(testTemplate(), llm.NewMockGenerator(), testLogger())
	task := NewTask("find the herb", "a coin")
	c.ReceiveTask(task)

	save := c.SaveData()
	require.Len(t, save.PendingTasks, 1)

	// The save holds copies; mutating the live task must not leak in.
	require.NoError(t, task.Accept())
	assert.Equal(t, TaskPending, save.PendingTasks[0].Status)

	restored := RestoreCharacter(save, llm.NewMockGenerator(), testLogger())
	assert.Equal(t, c.Profile, restored.Profile)
	assert.Equal(t, c.HiddenProfile, restored.HiddenProfile)
	assert.Equal(t, c.Thoughts, restored.Thoughts)
	require.Len(t, restored.PendingTasks, 1)
	assert.Equal(t, "find the herb", restored.PendingTasks[0].Description)
}
