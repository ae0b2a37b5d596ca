package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	t.Run("accept then complete", func(t *testing.T) {
		task := NewTask("find the herb", "a silver coin")
		assert.Equal(t, TaskPending, task.Status)

		require.NoError(t, task.Accept())
		assert.Equal(t, TaskAccepted, task.Status)

		require.NoError(t, task.Complete())
		assert.Equal(t, TaskCompleted, task.Status)
	})

	t.Run("reject is terminal", func(t *testing.T) {
		task := NewTask("find the herb", "a silver coin")
		require.NoError(t, task.Reject())
		assert.Error(t, task.Accept())
		assert.Error(t, task.Complete())
		assert.Equal(t, TaskRejected, task.Status)
	})

	t.Run("cannot complete before accepting", func(t *testing.T) {
		task := NewTask("find the herb", "a silver coin")
		assert.Error(t, task.Complete())
		assert.Equal(t, TaskPending, task.Status)
	})

	t.Run("cannot accept twice", func(t *testing.T) {
		task := NewTask("find the herb", "a silver coin")
		require.NoError(t, task.Accept())
		assert.Error(t, task.Accept())
	})
}

func TestTaskApplyReward(t *testing.T) {
	task := NewTask("find the herb", "a silver coin")

	// No reward before completion.
	_, ok := task.ApplyReward()
	assert.False(t, ok)

	require.NoError(t, task.Accept())
	require.NoError(t, task.Complete())

	reward, ok := task.ApplyReward()
	require.True(t, ok)
	assert.Equal(t, "a silver coin", reward)
	assert.True(t, task.RewardApplied)

	// Second application yields nothing.
	reward, ok = task.ApplyReward()
	assert.False(t, ok)
	assert.Empty(t, reward)
}

func TestTaskApplyInfluence(t *testing.T) {
	pending := NewTask("pending task", "r1")
	accepted := NewTask("accepted task", "r2")
	require.NoError(t, accepted.Accept())
	rejected := NewTask("rejected task", "r3")
	require.NoError(t, rejected.Reject())
	completed := NewTask("completed task", "r4")
	require.NoError(t, completed.Accept())
	require.NoError(t, completed.Complete())

	actx := &ActionContext{}
	for _, task := range []*Task{pending, accepted, rejected, completed} {
		task.ApplyInfluence(actx)
	}

	require.Len(t, actx.ActiveTasks, 2)
	assert.Equal(t, "pending task", actx.ActiveTasks[0].Description)
	assert.Equal(t, "accepted task", actx.ActiveTasks[1].Description)
	assert.Equal(t, 1.0, actx.ActiveTasks[0].Influence)
}
