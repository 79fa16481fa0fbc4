package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/keyfirm/internal/input/key"
)

// ErrInvalidAction is wrapped by every Parse error.
var ErrInvalidAction = errors.New("invalid action")

// Parse parses the layout notation of a single position.
//
//	_ or ___         No
//	TRNS             Transparent
//	A, Enter, ...    Key
//	WM(A, LShift)    KeyWithModifier
//	MO(n)            MomentaryLayer
//	TG(n)            ToggleLayer
//	OSL(n)           OneShotLayer
//	LM(n, LCtrl|LAlt) LayerWithModifier
//	LT(n, Space)     TapHoldLayer
//	TT(n)            TapToggle
//	MACRO(id)        Macro
func Parse(s string) (Action, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return No(), fmt.Errorf("%w: empty binding", ErrInvalidAction)
	}
	if strings.Trim(s, "_") == "" {
		return No(), nil
	}
	if strings.EqualFold(s, "TRNS") || strings.EqualFold(s, "TRANSPARENT") {
		return Transparent(), nil
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		c, err := key.ParseCode(s)
		if err != nil {
			return No(), fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		if c == key.CodeNone {
			return No(), nil
		}
		return Key(c), nil
	}
	if !strings.HasSuffix(s, ")") {
		return No(), fmt.Errorf("%w: %q: missing closing parenthesis", ErrInvalidAction, s)
	}

	fn := strings.ToUpper(strings.TrimSpace(s[:open]))
	args := splitArgs(s[open+1 : len(s)-1])

	switch fn {
	case "MO", "TG", "OSL", "TT":
		if len(args) != 1 {
			return No(), fmt.Errorf("%w: %s(layer) takes one argument", ErrInvalidAction, fn)
		}
		n, err := parseLayer(args[0])
		if err != nil {
			return No(), err
		}
		switch fn {
		case "MO":
			return MomentaryLayer(n), nil
		case "TG":
			return ToggleLayer(n), nil
		case "OSL":
			return OneShotLayer(n), nil
		default:
			return TapToggle(n), nil
		}

	case "LM":
		if len(args) != 2 {
			return No(), fmt.Errorf("%w: LM(layer, modifier) takes two arguments", ErrInvalidAction)
		}
		n, err := parseLayer(args[0])
		if err != nil {
			return No(), err
		}
		m, err := key.ParseModifiers(args[1])
		if err != nil {
			return No(), fmt.Errorf("%w: LM: %w", ErrInvalidAction, err)
		}
		return LayerWithModifier(n, m), nil

	case "LT":
		if len(args) != 2 {
			return No(), fmt.Errorf("%w: LT(layer, key) takes two arguments", ErrInvalidAction)
		}
		n, err := parseLayer(args[0])
		if err != nil {
			return No(), err
		}
		c, err := key.ParseCode(args[1])
		if err != nil {
			return No(), fmt.Errorf("%w: LT: %w", ErrInvalidAction, err)
		}
		return TapHoldLayer(n, c), nil

	case "WM":
		if len(args) != 2 {
			return No(), fmt.Errorf("%w: WM(key, modifier) takes two arguments", ErrInvalidAction)
		}
		c, err := key.ParseCode(args[0])
		if err != nil {
			return No(), fmt.Errorf("%w: WM: %w", ErrInvalidAction, err)
		}
		m, err := key.ParseModifiers(args[1])
		if err != nil {
			return No(), fmt.Errorf("%w: WM: %w", ErrInvalidAction, err)
		}
		return KeyWithModifier(c, m), nil

	case "MACRO":
		if len(args) != 1 {
			return No(), fmt.Errorf("%w: MACRO(id) takes one argument", ErrInvalidAction)
		}
		id, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return No(), fmt.Errorf("%w: MACRO id %q", ErrInvalidAction, args[0])
		}
		return Macro(uint8(id)), nil
	}

	return No(), fmt.Errorf("%w: unknown function %q", ErrInvalidAction, fn)
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Action {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func splitArgs(inner string) []string {
	var args []string
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			args = append(args, part)
		}
	}
	return args
}

func parseLayer(s string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: layer %q is not a number in 0-255", ErrInvalidAction, s)
	}
	return uint8(n), nil
}
