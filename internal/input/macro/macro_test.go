package macro

import (
	"errors"
	"testing"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
)

func TestParseStep(t *testing.T) {
	tests := []struct {
		spec string
		want Step
	}{
		{"A", Step{Code: key.CodeA}},
		{"enter", Step{Code: key.CodeEnter}},
		{"WM(C, LCtrl)", Step{Code: key.CodeC, Mods: key.ModLCtrl}},
		{"WM(Tab, LAlt|LShift)", Step{Code: key.CodeTab, Mods: key.ModLAlt | key.ModLShift}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseStep(tt.spec)
			if err != nil {
				t.Fatalf("ParseStep(%q) error: %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("ParseStep(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParseStepRejectsNonKeys(t *testing.T) {
	for _, spec := range []string{"MO(1)", "TRNS", "MACRO(0)", "Nope"} {
		if _, err := ParseStep(spec); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("ParseStep(%q) error = %v, want ErrInvalidStep", spec, err)
		}
	}
}

func TestStepAction(t *testing.T) {
	if got := (Step{Code: key.CodeA}).Action(); got != action.Key(key.CodeA) {
		t.Errorf("Action() = %v", got)
	}
	s := Step{Code: key.CodeA, Mods: key.ModRShift}
	if got := s.Action(); got != action.KeyWithModifier(key.CodeA, key.ModRShift) {
		t.Errorf("Action() = %v", got)
	}
}

func TestTableDefineAndGet(t *testing.T) {
	table := NewTable()
	steps, err := ParseSteps([]string{"H", "I", "Enter"})
	if err != nil {
		t.Fatal(err)
	}

	if err := table.Define(3, steps); err != nil {
		t.Fatalf("Define: %v", err)
	}
	// The table keeps its own copy.
	steps[0] = Step{Code: key.CodeZ}

	m, ok := table.Get(3)
	if !ok {
		t.Fatal("macro 3 missing")
	}
	if m.Steps[0].Code != key.CodeH {
		t.Errorf("first step = %v, want H", m.Steps[0])
	}
	if m.String() != "MACRO(3): H I Enter" {
		t.Errorf("String() = %q", m.String())
	}
	if !table.Has(3) || table.Has(4) {
		t.Error("Has mismatch")
	}

	_ = table.Define(1, []Step{{Code: key.CodeA}})
	ids := table.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("IDs() = %v", ids)
	}

	table.Remove(3)
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestTableDefineErrors(t *testing.T) {
	table := NewTable()

	if err := table.Define(0, nil); !errors.Is(err, ErrEmptyMacro) {
		t.Errorf("empty: %v", err)
	}

	long := make([]Step, MaxSteps+1)
	for i := range long {
		long[i] = Step{Code: key.CodeA}
	}
	if err := table.Define(0, long); !errors.Is(err, ErrMacroTooLong) {
		t.Errorf("long: %v", err)
	}

	if err := table.Define(0, []Step{{Code: key.CodeNone}}); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("none code: %v", err)
	}
}

func TestTextSteps(t *testing.T) {
	steps, err := TextSteps("Hi 1!")
	if err != nil {
		t.Fatal(err)
	}
	want := []Step{
		{Code: key.CodeH, Mods: key.ModLShift},
		{Code: key.CodeI},
		{Code: key.CodeSpace},
		{Code: key.Code1},
		{Code: key.Code1, Mods: key.ModLShift},
	}
	if len(steps) != len(want) {
		t.Fatalf("len = %d, want %d", len(steps), len(want))
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d = %+v, want %+v", i, steps[i], want[i])
		}
	}

	if _, err := TextSteps("é"); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("TextSteps(é) error = %v", err)
	}
}
