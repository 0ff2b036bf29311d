package persona

import "testing"

func TestDefaultPersonas(t *testing.T) {
	personas := DefaultPersonas()

	if len(personas) != 6 {
		t.Errorf("wrong count: got %d, want 6", len(personas))
	}

	names := make(map[string]bool)
	for _, p := range personas {
		if p.Name == "" || p.Role == "" || p.Instruction == "" {
			t.Errorf("persona %s is incomplete", p.Key)
		}
		if names[p.Name] {
			t.Errorf("duplicate persona name %s", p.Name)
		}
		names[p.Name] = true
	}
}

func TestGet(t *testing.T) {
	t.Run("ExistingPersona", func(t *testing.T) {
		p := Get("skeptic")
		if p == nil {
			t.Fatal("persona not found")
		}
		if p.Name != "Skeptic" {
			t.Errorf("wrong Name: got %s, want Skeptic", p.Name)
		}
		if p.Temperature == nil || *p.Temperature != 0.5 {
			t.Errorf("wrong Temperature: got %v", p.Temperature)
		}
	})

	t.Run("NonexistentPersona", func(t *testing.T) {
		if p := Get("nonexistent"); p != nil {
			t.Error("expected nil for nonexistent persona")
		}
	})
}

func TestInput(t *testing.T) {
	p := Get("pragmatist")
	in := p.Input()
	if in.Name != p.Name || in.Role != p.Role || in.Instruction != p.Instruction {
		t.Errorf("input mismatch: %+v", in)
	}
	if in.Temperature != nil {
		t.Error("pragmatist should inherit the debate temperature")
	}
}

func TestListAndValid(t *testing.T) {
	if len(List()) != 6 {
		t.Errorf("wrong count: got %d, want 6", len(List()))
	}
	if !Valid("analyst") {
		t.Error("analyst should be valid")
	}
	if Valid("nonexistent") {
		t.Error("nonexistent should be invalid")
	}
}
