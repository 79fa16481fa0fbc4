package key

import (
	"errors"
	"fmt"
	"strings"
)

// Parse errors
var (
	ErrEmptySpec       = errors.New("empty key specification")
	ErrUnknownKey      = errors.New("unknown key name")
	ErrInvalidModifier = errors.New("invalid modifier")
)

// ParseCode parses a key name like "A", "Kc1", "Enter" or "AudioVolUp".
// Lookup is case-insensitive.
func ParseCode(spec string) (Code, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return CodeNone, ErrEmptySpec
	}
	c, ok := codeByName[strings.ToLower(spec)]
	if !ok {
		return CodeNone, fmt.Errorf("%w: %q", ErrUnknownKey, spec)
	}
	return c, nil
}

// MustParseCode is like ParseCode but panics on error.
// Intended for tests and static tables.
func MustParseCode(spec string) Code {
	c, err := ParseCode(spec)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCodes parses a list of key names.
func ParseCodes(specs []string) ([]Code, error) {
	codes := make([]Code, 0, len(specs))
	for i, s := range specs {
		c, err := ParseCode(s)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		codes = append(codes, c)
	}
	return codes, nil
}
