package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRotationPlanJSON(t *testing.T) {
	plan := RotationPlan{ConsumedSlot, "b2"}

	data, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `[null,"b2"]` {
		t.Errorf("consumed slot should encode as null, got %s", data)
	}

	var decoded RotationPlan
	if err := json.Unmarshal([]byte(`[null,"x",null]`), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded) != 3 || decoded[0] != ConsumedSlot || decoded[1] != "x" || decoded[2] != ConsumedSlot {
		t.Errorf("unexpected plan: %#v", decoded)
	}
}

func TestRotationPlanClone(t *testing.T) {
	plan := RotationPlan{"a", "b"}
	clone := plan.Clone()
	clone[0] = ConsumedSlot

	if plan[0] != "a" {
		t.Error("clone shares memory with the original plan")
	}
}

func TestParsePlanSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    RotationPlan
		wantErr bool
	}{
		{"a1,b2,c3", RotationPlan{"a1", "b2", "c3"}, false},
		{"-, b2", RotationPlan{ConsumedSlot, "b2"}, false},
		{"null,b2", RotationPlan{ConsumedSlot, "b2"}, false},
		{"", RotationPlan{}, false},
		{"a1,,b2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParsePlanSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlanSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatPlan(t *testing.T) {
	got := FormatPlan(RotationPlan{ConsumedSlot, "b2", "zz"}, map[string]string{"b2": "Bob"})
	if got != "[-, Bob, zz]" {
		t.Errorf("unexpected format: %s", got)
	}
}

func TestErrors(t *testing.T) {
	err := NewNotFoundError("debate", "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if err.Error() != "debate not found: abc" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	cause := errors.New("disk full")
	perr := NewPersistenceError("save debate", cause)
	if !errors.Is(perr, ErrPersistence) || !errors.Is(perr, cause) {
		t.Error("PersistenceError should match ErrPersistence and its cause")
	}
	if NewPersistenceError("noop", nil) != nil {
		t.Error("nil cause should produce nil error")
	}

	if !errors.Is(Invalidf("bad %s", "plan"), ErrInvalid) {
		t.Error("Invalidf should wrap ErrInvalid")
	}
}
