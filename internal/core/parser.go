package core

import (
	"fmt"
	"strings"
)

// ConsumedMarker is the textual form of a consumed slot in plan specs.
const ConsumedMarker = "-"

// ParsePlanSpec parses a comma-separated list of participant ids into a
// rotation plan.
//
// Examples:
//   - "a1,b2,c3" -> [a1 b2 c3]
//   - "-,b2"     -> [<consumed> b2]
func ParsePlanSpec(spec string) (RotationPlan, error) {
	if strings.TrimSpace(spec) == "" {
		return RotationPlan{}, nil
	}
	return ParsePlanArgs(strings.Split(spec, ","))
}

// ParsePlanArgs parses individual plan entries, as given on a command line.
func ParsePlanArgs(args []string) (RotationPlan, error) {
	plan := make(RotationPlan, 0, len(args))
	for _, arg := range args {
		entry := strings.TrimSpace(arg)
		switch entry {
		case "":
			return nil, fmt.Errorf("empty entry in plan spec %q", strings.Join(args, ","))
		case ConsumedMarker, "null":
			plan = append(plan, ConsumedSlot)
		default:
			plan = append(plan, entry)
		}
	}
	return plan, nil
}

// FormatPlan renders a plan using ConsumedMarker for consumed slots.
func FormatPlan(plan RotationPlan, names map[string]string) string {
	parts := make([]string, len(plan))
	for i, id := range plan {
		switch {
		case id == ConsumedSlot:
			parts[i] = ConsumedMarker
		case names[id] != "":
			parts[i] = names[id]
		default:
			parts[i] = id
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// DefaultModelForProvider returns the default model for a backend kind.
var DefaultModelForProvider = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"gemini":    "gemini-flash-latest",
	"mock":      "mock-v1",
}

// DefaultTemperature applies when neither the debate nor the participant
// sets one.
const DefaultTemperature = 0.7
