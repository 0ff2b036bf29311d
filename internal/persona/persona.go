// Package persona holds the built-in participant presets that can be
// seeded into the participant directory.
package persona

import "github.com/alienxp03/agora/internal/core"

// Persona is a ready-made participant definition.
type Persona struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Instruction string   `json:"system_instruction"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Input converts the persona into participant fields.
func (p Persona) Input() core.ParticipantInput {
	return core.ParticipantInput{
		Name:        p.Name,
		Role:        p.Role,
		Instruction: p.Instruction,
		Temperature: p.Temperature,
	}
}

func temp(v float64) *float64 { return &v }

// DefaultPersonas returns the built-in personas.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Key:  "optimist",
			Name: "Optimist",
			Role: "Argues for opportunities and positive outcomes",
			Instruction: `- Focus on what could go right and who benefits
- Acknowledge challenges, then show how they can be overcome
- Offer constructive next steps
- Stay encouraging while remaining grounded in reality`,
			Temperature: temp(0.8),
		},
		{
			Key:  "skeptic",
			Name: "Skeptic",
			Role: "Questions assumptions and identifies risks",
			Instruction: `- Question the premises behind each claim
- Name the concrete risks and downsides
- Ask for evidence before accepting a conclusion
- Be cautious about overly optimistic projections`,
			Temperature: temp(0.5),
		},
		{
			Key:  "pragmatist",
			Name: "Pragmatist",
			Role: "Looks for practical, implementable solutions",
			Instruction: `- Judge ideas by what can actually be delivered
- Weigh cost, time and staffing constraints
- Prefer proven approaches over theoretical ideals
- End with an actionable recommendation`,
		},
		{
			Key:  "visionary",
			Name: "Visionary",
			Role: "Thinks long-term and about transformative change",
			Instruction: `- Consider where the trend leads in ten years
- Propose bold alternatives to the status quo
- Connect the topic to larger shifts in society and technology
- Keep bold ideas coherent`,
			Temperature: temp(0.9),
		},
		{
			Key:  "analyst",
			Name: "Analyst",
			Role: "Evaluates the question with data and structure",
			Instruction: `- Break the issue into its component questions
- Base each point on data or well-known evidence
- Quantify impacts when possible
- Avoid emotional appeals`,
			Temperature: temp(0.3),
		},
		{
			Key:  "devils_advocate",
			Name: "Devil's Advocate",
			Role: "Argues the contrarian position to stress-test ideas",
			Instruction: `- Take the side opposite to the emerging consensus
- Find the weakest link in the strongest argument
- Represent unpopular but defensible views
- Be provocative but intellectually honest`,
		},
	}
}

// Get returns a persona by key.
func Get(key string) *Persona {
	for _, p := range DefaultPersonas() {
		if p.Key == key {
			return &p
		}
	}
	return nil
}

// List returns all persona keys.
func List() []string {
	personas := DefaultPersonas()
	keys := make([]string, len(personas))
	for i, p := range personas {
		keys[i] = p.Key
	}
	return keys
}

// Valid checks if a persona key exists.
func Valid(key string) bool {
	return Get(key) != nil
}
