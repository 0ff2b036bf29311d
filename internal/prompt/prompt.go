// Package prompt renders the generation context and system instruction for
// a turn. Everything here is pure: no I/O, and the same inputs always give
// the same output.
package prompt

import (
	"strings"

	"github.com/alienxp03/agora/internal/core"
)

// Speaker labels for turns without a participant.
const (
	UserSpeaker   = "User"
	SystemSpeaker = "System"
)

// ModeratorInstruction is the system instruction for turns without a participant.
const ModeratorInstruction = `System
Moderator
You are "System", a professional debate moderator. Respond to interjections from the user neutrally and politely, and keep the discussion moving. Keep every reply concise and grounded in the context of the discussion so far.`

// ConstraintClause closes every participant instruction.
const ConstraintClause = `Do not address or question the other participants by name; state only your own position. Do not include your own name in the reply; return only what you say.`

// SystemInstruction assembles the system instruction for p. A nil
// participant yields the moderator instruction.
func SystemInstruction(p *core.Participant) string {
	if p == nil {
		return ModeratorInstruction
	}
	var b strings.Builder
	b.WriteString(`You are "` + p.Name + `", a participant in a debate.` + "\n")
	b.WriteString("[Role] " + p.Role + "\n")
	b.WriteString("[Instructions]\n")
	b.WriteString(p.Instruction + "\n\n")
	b.WriteString(ConstraintClause)
	return b.String()
}

// SpeakerName resolves the label a turn is rendered under. names maps
// participant ids to their current names; a participant that no longer
// exists falls back to the name snapshotted on the turn.
func SpeakerName(t *core.Turn, names map[string]string) string {
	if t.HasParticipant() {
		if name := names[t.ParticipantID]; name != "" {
			return name
		}
		if t.Speaker != "" {
			return t.Speaker
		}
	}
	if t.Kind == core.KindUser {
		return UserSpeaker
	}
	return SystemSpeaker
}

// BuildContext renders the topic, the full transcript in creation order and
// a trailing cue naming the acting participant. A nil acting participant
// (moderator turn) gets no cue.
func BuildContext(topic string, turns []*core.Turn, names map[string]string, acting *core.Participant) string {
	var sb strings.Builder
	sb.WriteString(topic)
	sb.WriteString("\n\n")

	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(SpeakerName(t, names))
		sb.WriteString(": ")
		sb.WriteString(t.Content)
	}

	if acting != nil {
		sb.WriteString("\n")
		sb.WriteString(acting.Name)
		sb.WriteString(": ")
	}
	return sb.String()
}
