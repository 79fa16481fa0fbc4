package macro

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keyfirm/internal/input/key"
)

// DefaultCompileTimeout bounds the run time of a macro script.
const DefaultCompileTimeout = time.Second

// ErrScript is wrapped by every script compilation error.
var ErrScript = errors.New("macro script")

// unsafeGlobals are removed from the base library before a script runs.
var unsafeGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "module",
	"collectgarbage", "print",
}

// Compiler turns Lua macro scripts into step lists.
type Compiler struct {
	timeout time.Duration
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithCompileTimeout sets the per-script timeout.
func WithCompileTimeout(d time.Duration) CompilerOption {
	return func(c *Compiler) {
		c.timeout = d
	}
}

// NewCompiler creates a compiler.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{timeout: DefaultCompileTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile runs src in a fresh sandboxed state and returns the steps it
// produced. Each script gets its own state, so scripts cannot see each
// other's globals.
func (c *Compiler) Compile(ctx context.Context, src string) (steps []Step, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibraries(L)
	L.SetContext(ctx)

	b := &builder{}
	L.SetGlobal("tap", L.NewFunction(b.tap))
	L.SetGlobal("text", L.NewFunction(b.text))

	defer func() {
		if r := recover(); r != nil {
			steps = nil
			err = fmt.Errorf("%w: panic: %v", ErrScript, r)
		}
	}()

	top := L.GetTop()
	if err := L.DoString(src); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrScript, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", ErrScript, err)
	}

	// The library openers leave their tables on the stack; the script's
	// first return value sits above them.
	if L.GetTop() > top {
		if err := b.appendReturned(L.Get(top + 1)); err != nil {
			return nil, err
		}
	}
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrScript, ErrEmptyMacro)
	}
	return b.steps, nil
}

// openSafeLibraries opens base, table, string and math only.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// builder collects steps from the tap and text callbacks.
type builder struct {
	steps []Step
}

func (b *builder) push(L *lua.LState, s Step) {
	if len(b.steps) >= MaxSteps {
		L.RaiseError("%s (%d)", ErrMacroTooLong, MaxSteps)
		return
	}
	b.steps = append(b.steps, s)
}

// tap(step) appends one step in layout notation.
func (b *builder) tap(L *lua.LState) int {
	spec := L.CheckString(1)
	s, err := ParseStep(spec)
	if err != nil {
		L.RaiseError("tap: %s", err)
		return 0
	}
	b.push(L, s)
	return 0
}

// text(s) appends the steps that type s on a US layout.
func (b *builder) text(L *lua.LState) int {
	str := L.CheckString(1)
	steps, err := TextSteps(str)
	if err != nil {
		L.RaiseError("text: %s", err)
		return 0
	}
	for _, s := range steps {
		b.push(L, s)
	}
	return 0
}

func (b *builder) appendReturned(v lua.LValue) error {
	if v == lua.LNil {
		return nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return fmt.Errorf("%w: script returned %s, want a table of steps", ErrScript, v.Type())
	}
	for i := 1; i <= tbl.Len(); i++ {
		item := tbl.RawGetInt(i)
		str, ok := item.(lua.LString)
		if !ok {
			return fmt.Errorf("%w: returned step %d is %s, want a string", ErrScript, i, item.Type())
		}
		s, err := ParseStep(string(str))
		if err != nil {
			return fmt.Errorf("%w: returned step %d: %w", ErrScript, i, err)
		}
		if len(b.steps) >= MaxSteps {
			return fmt.Errorf("%w: %w", ErrScript, ErrMacroTooLong)
		}
		b.steps = append(b.steps, s)
	}
	return nil
}

// shifted maps characters typed with Shift on a US layout to their base key.
var shifted = map[rune]key.Code{
	'!': key.Code1, '@': key.Code2, '#': key.Code3, '$': key.Code4,
	'%': key.Code5, '^': key.Code6, '&': key.Code7, '*': key.Code8,
	'(': key.Code9, ')': key.Code0,
	'_': key.CodeMinus, '+': key.CodeEqual, '{': key.CodeLeftBracket,
	'}': key.CodeRightBracket, '|': key.CodeBackslash, ':': key.CodeSemicolon,
	'"': key.CodeQuote, '~': key.CodeGrave, '<': key.CodeComma,
	'>': key.CodeDot, '?': key.CodeSlash,
}

// unshifted maps the remaining printable characters.
var unshifted = map[rune]key.Code{
	' ': key.CodeSpace, '\n': key.CodeEnter, '\t': key.CodeTab,
	'-': key.CodeMinus, '=': key.CodeEqual, '[': key.CodeLeftBracket,
	']': key.CodeRightBracket, '\\': key.CodeBackslash, ';': key.CodeSemicolon,
	'\'': key.CodeQuote, '`': key.CodeGrave, ',': key.CodeComma,
	'.': key.CodeDot, '/': key.CodeSlash,
}

// TextSteps returns the steps that type s on a US layout.
func TextSteps(s string) ([]Step, error) {
	steps := make([]Step, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			steps = append(steps, Step{Code: key.CodeA + key.Code(r-'a')})
		case r >= 'A' && r <= 'Z':
			steps = append(steps, Step{Code: key.CodeA + key.Code(r-'A'), Mods: key.ModLShift})
		case r == '0':
			steps = append(steps, Step{Code: key.Code0})
		case r >= '1' && r <= '9':
			steps = append(steps, Step{Code: key.Code1 + key.Code(r-'1')})
		default:
			if c, ok := unshifted[r]; ok {
				steps = append(steps, Step{Code: c})
			} else if c, ok := shifted[r]; ok {
				steps = append(steps, Step{Code: c, Mods: key.ModLShift})
			} else {
				return nil, fmt.Errorf("%w: no key types %q", ErrInvalidStep, r)
			}
		}
	}
	return steps, nil
}
