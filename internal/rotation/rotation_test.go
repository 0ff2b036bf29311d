package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alienxp03/agora/internal/core"
)

func aiTurn(participantID string) *core.Turn {
	return &core.Turn{Kind: core.KindAI, ParticipantID: participantID}
}

func TestFilledCount(t *testing.T) {
	turns := []*core.Turn{
		aiTurn("a"),
		aiTurn(""), // moderator
		{Kind: core.KindUser, Content: "hi"},
		{Kind: core.KindSystem, Content: "error"},
		aiTurn("b"),
	}
	assert.Equal(t, 2, FilledCount(turns))
	assert.Equal(t, 0, FilledCount(nil))
}

func TestConsumeCopiesPlan(t *testing.T) {
	plan := core.RotationPlan{"a", "b"}

	next := Consume(plan, 0)

	assert.Equal(t, core.RotationPlan{core.ConsumedSlot, "b"}, next)
	assert.Equal(t, core.RotationPlan{"a", "b"}, plan, "caller's plan must not change")
}

func TestConsumeOutOfRange(t *testing.T) {
	plan := core.RotationPlan{"a"}

	assert.Equal(t, core.RotationPlan{"a"}, Consume(plan, 1))
	assert.Equal(t, core.RotationPlan{"a"}, Consume(plan, -1))
	assert.Equal(t, core.RotationPlan{}, Consume(nil, 0))
}

func TestSequentialSlotsIncrease(t *testing.T) {
	plan := core.RotationPlan{"a", "b"}
	var turns []*core.Turn

	first := CurrentSlot(plan, FilledCount(turns))
	plan = Consume(plan, first)
	turns = append(turns, aiTurn("a"))

	second := CurrentSlot(plan, FilledCount(turns))
	plan = Consume(plan, second)

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, core.RotationPlan{core.ConsumedSlot, core.ConsumedSlot}, plan)
}

func TestIsCompleteAndStatus(t *testing.T) {
	plan := core.RotationPlan{"a", "b"}

	assert.False(t, IsComplete(plan, 1))
	assert.True(t, IsComplete(plan, 2))
	assert.True(t, IsComplete(plan, 3))
	assert.Equal(t, core.StatusWIP, Status(plan, 1))
	assert.Equal(t, core.StatusComplete, Status(plan, 2))
	assert.Equal(t, core.StatusComplete, Status(core.RotationPlan{}, 0))
}

func TestNext(t *testing.T) {
	plan := core.RotationPlan{core.ConsumedSlot, "b"}

	id, ok := Next(plan, 1)
	assert.True(t, ok)
	assert.Equal(t, "b", id)

	_, ok = Next(plan, 0)
	assert.False(t, ok, "consumed slot has no speaker")

	_, ok = Next(plan, 2)
	assert.False(t, ok, "exhausted plan has no speaker")
}
