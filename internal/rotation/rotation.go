// Package rotation tracks which rotation slot a debate is on.
//
// Slots are consumed strictly by the count of completed AI turns that
// reference a participant, never by searching the plan for an id. A manual
// reorder therefore changes future assignment without touching history.
package rotation

import "github.com/alienxp03/agora/internal/core"

// FilledCount returns the number of AI turns that reference a participant.
// Moderator and system turns do not count.
func FilledCount(turns []*core.Turn) int {
	n := 0
	for _, t := range turns {
		if t.Kind == core.KindAI && t.HasParticipant() {
			n++
		}
	}
	return n
}

// CurrentSlot returns the index of the slot the next participant turn
// consumes. It is the filled count itself, and may be past the end of the
// plan once the debate is complete.
func CurrentSlot(plan core.RotationPlan, filled int) int {
	return filled
}

// Consume returns a copy of plan with the entry at index replaced by the
// consumed sentinel. The caller's plan is never modified. An index outside
// the plan yields an unchanged copy.
func Consume(plan core.RotationPlan, index int) core.RotationPlan {
	next := plan.Clone()
	if next == nil {
		next = core.RotationPlan{}
	}
	if index >= 0 && index < len(next) {
		next[index] = core.ConsumedSlot
	}
	return next
}

// IsComplete reports whether filledAfter participant turns cover the plan.
func IsComplete(plan core.RotationPlan, filledAfter int) bool {
	return filledAfter >= len(plan)
}

// Status derives the debate status from the plan and filled count.
func Status(plan core.RotationPlan, filled int) core.DebateStatus {
	if IsComplete(plan, filled) {
		return core.StatusComplete
	}
	return core.StatusWIP
}

// Next returns the participant expected at the current slot. It returns
// false when the plan is exhausted or the current slot is already consumed.
func Next(plan core.RotationPlan, filled int) (string, bool) {
	idx := CurrentSlot(plan, filled)
	if idx < 0 || idx >= len(plan) {
		return "", false
	}
	id := plan[idx]
	return id, id != core.ConsumedSlot
}
