package macro

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
)

// MaxSteps bounds the length of a single macro.
const MaxSteps = 256

// Errors returned by macro definition.
var (
	ErrEmptyMacro   = errors.New("macro has no steps")
	ErrMacroTooLong = errors.New("macro exceeds maximum length")
	ErrInvalidStep  = errors.New("invalid macro step")
)

// Step is one key tapped by a macro, with the modifiers held around it.
type Step struct {
	Code key.Code
	Mods key.Modifier
}

// Action returns the step as a layout action.
func (s Step) Action() action.Action {
	if s.Mods.IsEmpty() {
		return action.Key(s.Code)
	}
	return action.KeyWithModifier(s.Code, s.Mods)
}

// String returns the step in layout notation.
func (s Step) String() string {
	return s.Action().String()
}

// ParseStep parses a step string. Only Key and KeyWithModifier notation is
// accepted.
func ParseStep(spec string) (Step, error) {
	a, err := action.Parse(spec)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}
	switch a.Kind {
	case action.KindKey:
		return Step{Code: a.Code}, nil
	case action.KindKeyWithModifier:
		return Step{Code: a.Code, Mods: a.Mods}, nil
	default:
		return Step{}, fmt.Errorf("%w: %q is a %s action", ErrInvalidStep, spec, a.Kind)
	}
}

// ParseSteps parses a list of step strings.
func ParseSteps(specs []string) ([]Step, error) {
	steps := make([]Step, 0, len(specs))
	for i, spec := range specs {
		s, err := ParseStep(spec)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// Macro is a numbered step sequence.
type Macro struct {
	ID    uint8
	Steps []Step
}

// String returns e.g. "MACRO(2): H I Enter".
func (m Macro) String() string {
	parts := make([]string, len(m.Steps))
	for i, s := range m.Steps {
		parts[i] = s.String()
	}
	return fmt.Sprintf("MACRO(%d): %s", m.ID, strings.Join(parts, " "))
}

// Table maps macro ids to their steps.
type Table struct {
	mu     sync.RWMutex
	macros map[uint8]Macro
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{macros: make(map[uint8]Macro)}
}

// Define stores steps under id, replacing any previous definition.
func (t *Table) Define(id uint8, steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("macro %d: %w", id, ErrEmptyMacro)
	}
	if len(steps) > MaxSteps {
		return fmt.Errorf("macro %d: %w (%d > %d)", id, ErrMacroTooLong, len(steps), MaxSteps)
	}
	for i, s := range steps {
		if !s.Code.IsValid() {
			return fmt.Errorf("macro %d step %d: %w: code %s", id, i, ErrInvalidStep, s.Code)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.macros[id] = Macro{ID: id, Steps: slices.Clone(steps)}
	return nil
}

// Remove deletes the macro with the given id.
func (t *Table) Remove(id uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.macros, id)
}

// Get returns the macro with the given id.
func (t *Table) Get(id uint8) (Macro, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.macros[id]
	return m, ok
}

// Has reports whether id is defined. Its signature matches
// keymap.MacroChecker.
func (t *Table) Has(id uint8) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.macros[id]
	return ok
}

// IDs returns the defined ids in ascending order.
func (t *Table) IDs() []uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint8, 0, len(t.macros))
	for id := range t.macros {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of defined macros.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.macros)
}
