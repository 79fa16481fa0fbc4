// Package action defines the semantic actions a key position can be bound to
// and their text notation in layout files.
package action

import (
	"fmt"

	"github.com/dshills/keyfirm/internal/input/key"
)

// Kind tags an Action variant.
type Kind uint8

const (
	KindNo Kind = iota
	KindTransparent
	KindKey
	KindKeyWithModifier
	KindMomentaryLayer
	KindToggleLayer
	KindOneShotLayer
	KindLayerWithModifier
	KindTapHoldLayer
	KindTapToggle
	KindMacro
)

var kindNames = [...]string{
	KindNo:                "No",
	KindTransparent:       "Transparent",
	KindKey:               "Key",
	KindKeyWithModifier:   "KeyWithModifier",
	KindMomentaryLayer:    "MomentaryLayer",
	KindToggleLayer:       "ToggleLayer",
	KindOneShotLayer:      "OneShotLayer",
	KindLayerWithModifier: "LayerWithModifier",
	KindTapHoldLayer:      "TapHoldLayer",
	KindTapToggle:         "TapToggle",
	KindMacro:             "Macro",
}

// String returns the variant name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Action is a tagged variant. Only the fields meaningful for Kind are set;
// the zero value is No.
type Action struct {
	Kind  Kind
	Code  key.Code
	Mods  key.Modifier
	Layer uint8
	Macro uint8
}

// No does nothing.
func No() Action { return Action{Kind: KindNo} }

// Transparent defers to the next active layer down.
func Transparent() Action { return Action{Kind: KindTransparent} }

// Key reports a single code.
func Key(c key.Code) Action { return Action{Kind: KindKey, Code: c} }

// KeyWithModifier reports a code together with modifier bits.
func KeyWithModifier(c key.Code, m key.Modifier) Action {
	return Action{Kind: KindKeyWithModifier, Code: c, Mods: m}
}

// MomentaryLayer activates layer n while held.
func MomentaryLayer(n uint8) Action { return Action{Kind: KindMomentaryLayer, Layer: n} }

// ToggleLayer flips layer n on press.
func ToggleLayer(n uint8) Action { return Action{Kind: KindToggleLayer, Layer: n} }

// OneShotLayer activates layer n for the next key.
func OneShotLayer(n uint8) Action { return Action{Kind: KindOneShotLayer, Layer: n} }

// LayerWithModifier activates layer n and holds modifier bits while held.
func LayerWithModifier(n uint8, m key.Modifier) Action {
	return Action{Kind: KindLayerWithModifier, Layer: n, Mods: m}
}

// TapHoldLayer taps c when tapped and activates layer n when held.
func TapHoldLayer(n uint8, c key.Code) Action {
	return Action{Kind: KindTapHoldLayer, Layer: n, Code: c}
}

// TapToggle toggles layer n when tapped.
func TapToggle(n uint8) Action { return Action{Kind: KindTapToggle, Layer: n} }

// Macro plays the macro with the given id on press.
func Macro(id uint8) Action { return Action{Kind: KindMacro, Macro: id} }

// IsTransparent returns true for Transparent.
func (a Action) IsTransparent() bool {
	return a.Kind == KindTransparent
}

// IsLayer returns true if the action manipulates the layer stack.
func (a Action) IsLayer() bool {
	switch a.Kind {
	case KindMomentaryLayer, KindToggleLayer, KindOneShotLayer,
		KindLayerWithModifier, KindTapHoldLayer, KindTapToggle:
		return true
	}
	return false
}

// IsDeferred returns true if the action's meaning is only known after the
// press is held or released.
func (a Action) IsDeferred() bool {
	return a.Kind == KindTapHoldLayer || a.Kind == KindTapToggle
}

// TargetLayer returns the layer referenced by a layer action.
func (a Action) TargetLayer() (uint8, bool) {
	if !a.IsLayer() {
		return 0, false
	}
	return a.Layer, true
}

// String returns the layout notation of the action, e.g. "MO(1)" or
// "LT(2, Space)". Parse(a.String()) returns a.
func (a Action) String() string {
	switch a.Kind {
	case KindNo:
		return "_"
	case KindTransparent:
		return "TRNS"
	case KindKey:
		return a.Code.String()
	case KindKeyWithModifier:
		return fmt.Sprintf("WM(%s, %s)", a.Code, a.Mods)
	case KindMomentaryLayer:
		return fmt.Sprintf("MO(%d)", a.Layer)
	case KindToggleLayer:
		return fmt.Sprintf("TG(%d)", a.Layer)
	case KindOneShotLayer:
		return fmt.Sprintf("OSL(%d)", a.Layer)
	case KindLayerWithModifier:
		return fmt.Sprintf("LM(%d, %s)", a.Layer, a.Mods)
	case KindTapHoldLayer:
		return fmt.Sprintf("LT(%d, %s)", a.Layer, a.Code)
	case KindTapToggle:
		return fmt.Sprintf("TT(%d)", a.Layer)
	case KindMacro:
		return fmt.Sprintf("MACRO(%d)", a.Macro)
	default:
		return a.Kind.String()
	}
}
