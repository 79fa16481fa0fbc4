package key

import (
	"fmt"
	"strings"
)

// Modifier is the HID boot keyboard modifier byte. Each bit is one side of
// one modifier key, so combinations are plain bitwise unions.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	ModLCtrl Modifier = 1 << (iota - 1)
	ModLShift
	ModLAlt
	ModLGui
	ModRCtrl
	ModRShift
	ModRAlt
	ModRGui
)

// Side-agnostic masks.
const (
	ModCtrl  = ModLCtrl | ModRCtrl
	ModShift = ModLShift | ModRShift
	ModAlt   = ModLAlt | ModRAlt
	ModGui   = ModLGui | ModRGui
)

// NewModifier builds a combination the way layout files describe it: a set
// of modifier kinds plus a single side flag.
func NewModifier(right, gui, alt, shift, ctrl bool) Modifier {
	var m Modifier
	if ctrl {
		m |= ModLCtrl
	}
	if shift {
		m |= ModLShift
	}
	if alt {
		m |= ModLAlt
	}
	if gui {
		m |= ModLGui
	}
	if right {
		m <<= 4
	}
	return m
}

// Has returns true if m contains every bit of mod.
func (m Modifier) Has(mod Modifier) bool {
	return mod != ModNone && m&mod == mod
}

// HasAny returns true if m shares at least one bit with mod.
func (m Modifier) HasAny(mod Modifier) bool {
	return m&mod != 0
}

// With returns a new Modifier with the specified bits added.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Without returns a new Modifier with the specified bits removed.
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// IsEmpty returns true if no modifiers are set.
func (m Modifier) IsEmpty() bool {
	return m == ModNone
}

// Codes returns the modifier key codes for each set bit, LCtrl first.
func (m Modifier) Codes() []Code {
	var codes []Code
	for i := 0; i < 8; i++ {
		if m&(1<<i) != 0 {
			codes = append(codes, CodeLCtrl+Code(i))
		}
	}
	return codes
}

// String returns a representation like "LCtrl|RShift".
func (m Modifier) String() string {
	if m == ModNone {
		return ""
	}
	codes := m.Codes()
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.String()
	}
	return strings.Join(parts, "|")
}

// ParseModifiers parses a combination like "LShift|RCtrl".
// Whitespace around names is ignored. An empty or unknown name is an error,
// as is a combination that sets no bits.
func ParseModifiers(s string) (Modifier, error) {
	var result Modifier
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		c, ok := codeByName[strings.ToLower(part)]
		if !ok || !c.IsModifier() {
			return ModNone, fmt.Errorf("%w: %q", ErrInvalidModifier, part)
		}
		result = result.With(c.Modifier())
	}
	if result == ModNone {
		return ModNone, fmt.Errorf("%w: %q", ErrInvalidModifier, s)
	}
	return result, nil
}
