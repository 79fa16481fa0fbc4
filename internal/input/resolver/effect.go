package resolver

import (
	"fmt"
	"time"

	"github.com/dshills/keyfirm/internal/input/key"
)

// EffectKind identifies what a resolved effect changes.
type EffectKind uint8

const (
	// EffectKeyDown adds Code to the report state.
	EffectKeyDown EffectKind = iota
	// EffectKeyUp removes Code from the report state.
	EffectKeyUp
	// EffectModsDown adds one holder to every bit of Mods.
	EffectModsDown
	// EffectModsUp removes one holder from every bit of Mods.
	EffectModsUp
	// EffectLayers reports a new active layer set.
	EffectLayers
)

// String returns the kind name.
func (k EffectKind) String() string {
	switch k {
	case EffectKeyDown:
		return "key-down"
	case EffectKeyUp:
		return "key-up"
	case EffectModsDown:
		return "mods-down"
	case EffectModsUp:
		return "mods-up"
	case EffectLayers:
		return "layers"
	default:
		return fmt.Sprintf("EffectKind(%d)", k)
	}
}

// Effect is one change to the report state produced by the resolver.
type Effect struct {
	Kind EffectKind

	// Code is set for key effects.
	Code key.Code

	// Mods is set for modifier effects.
	Mods key.Modifier

	// Layers is the active layer set (bottom to top) for layer effects.
	Layers []uint8

	// Position is the matrix position that caused the effect.
	Position key.Position

	// At is the time of the edge or timer that produced the effect.
	At time.Time
}

// String returns e.g. "key-down A (0,1)".
func (e Effect) String() string {
	switch e.Kind {
	case EffectKeyDown, EffectKeyUp:
		return fmt.Sprintf("%s %s %s", e.Kind, e.Code, e.Position)
	case EffectModsDown, EffectModsUp:
		return fmt.Sprintf("%s %s %s", e.Kind, e.Mods, e.Position)
	default:
		return fmt.Sprintf("%s %v", e.Kind, e.Layers)
	}
}
