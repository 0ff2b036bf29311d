package main

import (
	"fmt"
	"strings"

	"github.com/alienxp03/agora/internal/core"
	"github.com/alienxp03/agora/internal/engine"
	"github.com/alienxp03/agora/internal/prompt"
	"github.com/alienxp03/agora/internal/style"
)

// findDebateByPrefix resolves a full or abbreviated debate id.
func findDebateByPrefix(eng *engine.Engine, prefix string) (string, error) {
	var matches []string
	for offset := 0; ; offset += 100 {
		debates, err := eng.ListDebates(100, offset)
		if err != nil {
			return "", err
		}
		for _, d := range debates {
			if d.ID == prefix {
				return d.ID, nil
			}
			if strings.HasPrefix(d.ID, prefix) {
				matches = append(matches, d.ID)
			}
		}
		if len(debates) < 100 {
			break
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("debate not found: %s", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous debate id %s matches %d debates", prefix, len(matches))
	}
}

// findParticipant resolves a participant by full id, id prefix or name.
func findParticipant(eng *engine.Engine, ref string) (*core.Participant, error) {
	participants, err := eng.ListParticipants()
	if err != nil {
		return nil, err
	}

	var matches []*core.Participant
	for _, p := range participants {
		if p.ID == ref || strings.EqualFold(p.Name, ref) {
			return p, nil
		}
		if strings.HasPrefix(p.ID, ref) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("participant not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous participant %s matches %d participants", ref, len(matches))
	}
}

// resolvePlan resolves every non-consumed entry of a plan.
func resolvePlan(eng *engine.Engine, plan core.RotationPlan) (core.RotationPlan, error) {
	out := make(core.RotationPlan, len(plan))
	for i, ref := range plan {
		if ref == core.ConsumedSlot {
			continue
		}
		p, err := findParticipant(eng, ref)
		if err != nil {
			return nil, err
		}
		out[i] = p.ID
	}
	return out, nil
}

func printTurn(turn *core.Turn, names map[string]string) {
	header := fmt.Sprintf("Turn %d - %s", turn.Number, prompt.SpeakerName(turn, names))
	switch turn.Kind {
	case core.KindUser:
		header += " (interjection)"
	case core.KindSystem:
		header += " (error)"
	}
	fmt.Println()
	fmt.Println(style.HeaderStyle(turn).Render(header) + "  " + style.Muted.Render(turn.CreatedAt.Format("15:04:05")))
	fmt.Println(style.Rule)
	fmt.Println(style.Body.Render(turn.Content))
}

func printDebateHeader(d *core.Debate, names map[string]string) {
	fmt.Println()
	fmt.Println(style.Title.Render(d.Topic))
	fmt.Printf("%s %s\n", style.Label.Render("ID:      "), d.ID)
	fmt.Printf("%s %s\n", style.Label.Render("Status:  "), style.Status(d.Status))
	fmt.Printf("%s %d\n", style.Label.Render("Rounds:  "), d.Rounds)
	fmt.Printf("%s %s\n", style.Label.Render("Rotation:"), core.FormatPlan(d.Plan, names))
	if len(d.Config) > 0 {
		fmt.Printf("%s %v\n", style.Label.Render("Config:  "), d.Config)
	}
	fmt.Printf("%s %s\n", style.Label.Render("Created: "), d.CreatedAt.Format("2006-01-02 15:04"))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
