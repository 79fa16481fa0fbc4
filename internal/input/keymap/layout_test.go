package keymap

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
)

func twoByTwo(t *testing.T) *Layout {
	t.Helper()
	l, err := FromNotation(Dimensions{Layers: 2, Rows: 2, Cols: 2}, [][][]string{
		{{"A", "MO(1)"}, {"C", "D"}},
		{{"B", "TRNS"}, {"TRNS", "_"}},
	})
	require.NoError(t, err)
	return l
}

func TestFromNotation(t *testing.T) {
	l := twoByTwo(t)

	assert.Equal(t, action.Key(key.CodeA), l.At(0, key.Pos(0, 0)))
	assert.Equal(t, action.MomentaryLayer(1), l.At(0, key.Pos(0, 1)))
	assert.Equal(t, action.Key(key.CodeB), l.At(1, key.Pos(0, 0)))
	assert.Equal(t, action.Transparent(), l.At(1, key.Pos(1, 0)))
	assert.Equal(t, action.No(), l.At(1, key.Pos(1, 1)))
	assert.Equal(t, action.No(), l.At(5, key.Pos(0, 0)), "out of range layer")
	assert.Equal(t, action.No(), l.At(0, key.Pos(9, 0)), "out of range row")
}

func TestFromNotationShapeErrors(t *testing.T) {
	dims := Dimensions{Layers: 2, Rows: 2, Cols: 2}
	tests := []struct {
		name   string
		layers [][][]string
	}{
		{"too few layers", [][][]string{{{"A", "B"}, {"C", "D"}}}},
		{"short row count", [][][]string{
			{{"A", "B"}},
			{{"A", "B"}, {"C", "D"}},
		}},
		{"short col count", [][][]string{
			{{"A", "B"}, {"C"}},
			{{"A", "B"}, {"C", "D"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromNotation(dims, tt.layers)
			assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)
		})
	}

	_, err := FromNotation(Dimensions{Layers: 0, Rows: 1, Cols: 1}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNewValidation(t *testing.T) {
	dims := Dimensions{Layers: 2, Rows: 1, Cols: 2}

	_, err := FromNotation(dims, [][][]string{{{"A", "TRNS"}}, {{"B", "C"}}})
	assert.ErrorIs(t, err, ErrTransparentBase)

	_, err = FromNotation(dims, [][][]string{{{"A", "MO(2)"}}, {{"B", "C"}}})
	assert.ErrorIs(t, err, ErrLayerOutOfRange)

	_, err = FromNotation(dims, [][][]string{{{"A", "LT(7, A)"}}, {{"B", "C"}}})
	assert.ErrorIs(t, err, ErrLayerOutOfRange)

	_, err = FromNotation(dims, [][][]string{{{"A", "Hyper"}}, {{"B", "C"}}})
	assert.ErrorIs(t, err, action.ErrInvalidAction)
}

func TestValidateMacros(t *testing.T) {
	l, err := FromNotation(Dimensions{Layers: 1, Rows: 1, Cols: 2}, [][][]string{{{"A", "MACRO(3)"}}})
	require.NoError(t, err)

	assert.NoError(t, l.Validate(func(id uint8) bool { return id == 3 }))
	assert.ErrorIs(t, l.Validate(func(id uint8) bool { return false }), action.ErrInvalidAction)

	l.SetMacroChecker(func(id uint8) bool { return id < 2 })
	assert.Error(t, l.Validate(nil))
	assert.Error(t, l.Set(Binding{Layer: 0, Position: key.Pos(0, 0), Action: action.Macro(5)}))
	assert.NoError(t, l.Set(Binding{Layer: 0, Position: key.Pos(0, 0), Action: action.Macro(1)}))
}

func TestResolveTopDown(t *testing.T) {
	l := twoByTwo(t)

	a, layer := l.Resolve(key.Pos(0, 0), []uint8{0})
	assert.Equal(t, action.Key(key.CodeA), a)
	assert.Equal(t, uint8(0), layer)

	a, layer = l.Resolve(key.Pos(0, 0), []uint8{0, 1})
	assert.Equal(t, action.Key(key.CodeB), a)
	assert.Equal(t, uint8(1), layer)

	// Transparent on layer 1 falls through to the base.
	a, layer = l.Resolve(key.Pos(1, 0), []uint8{0, 1})
	assert.Equal(t, action.Key(key.CodeC), a)
	assert.Equal(t, uint8(0), layer)

	// No is a concrete binding and stops the scan.
	a, layer = l.Resolve(key.Pos(1, 1), []uint8{0, 1})
	assert.Equal(t, action.No(), a)
	assert.Equal(t, uint8(1), layer)
}

// For any stack, Resolve returns the first non-Transparent binding scanning
// from the top, and never returns Transparent.
func TestResolvePropertyFirstNonTransparent(t *testing.T) {
	dims := Dimensions{Layers: 5, Rows: 3, Cols: 3}
	rng := rand.New(rand.NewSource(42))

	table := make([][][]action.Action, dims.Layers)
	for li := range table {
		table[li] = make([][]action.Action, dims.Rows)
		for r := range table[li] {
			table[li][r] = make([]action.Action, dims.Cols)
			for c := range table[li][r] {
				if li > 0 && rng.Intn(2) == 0 {
					table[li][r][c] = action.Transparent()
				} else {
					table[li][r][c] = action.Key(key.CodeA + key.Code(rng.Intn(26)))
				}
			}
		}
	}
	l, err := New(dims, table)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		stack := []uint8{0}
		for n := rng.Intn(5); n > 0; n-- {
			stack = append(stack, uint8(1+rng.Intn(int(dims.Layers)-1)))
		}
		pos := key.Pos(uint8(rng.Intn(int(dims.Rows))), uint8(rng.Intn(int(dims.Cols))))

		want := table[0][pos.Row][pos.Col]
		for j := len(stack) - 1; j >= 0; j-- {
			if a := table[stack[j]][pos.Row][pos.Col]; !a.IsTransparent() {
				want = a
				break
			}
		}

		got, _ := l.Resolve(pos, stack)
		require.Equal(t, want, got, "stack %v pos %s", stack, pos)
		require.False(t, got.IsTransparent())
	}
}

func TestSetAndApply(t *testing.T) {
	l := twoByTwo(t)

	require.NoError(t, l.Set(Binding{Layer: 1, Position: key.Pos(1, 0), Action: action.Key(key.CodeEnter)}))
	assert.Equal(t, action.Key(key.CodeEnter), l.At(1, key.Pos(1, 0)))

	err := l.Set(Binding{Layer: 0, Position: key.Pos(0, 0), Action: action.Transparent()})
	assert.ErrorIs(t, err, ErrTransparentBase)
	assert.Equal(t, action.Key(key.CodeA), l.At(0, key.Pos(0, 0)), "failed set must not change layout")

	assert.ErrorIs(t, l.Set(Binding{Layer: 2, Position: key.Pos(0, 0), Action: action.No()}), ErrLayerOutOfRange)
	assert.ErrorIs(t, l.Set(Binding{Layer: 0, Position: key.Pos(2, 0), Action: action.No()}), ErrOutOfRange)

	n, err := l.Apply([]Binding{
		{Layer: 0, Position: key.Pos(1, 1), Action: action.Key(key.CodeZ)},
		{Layer: 0, Position: key.Pos(1, 0), Action: action.MomentaryLayer(9)},
		{Layer: 0, Position: key.Pos(0, 0), Action: action.Key(key.CodeY)},
	})
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, ErrLayerOutOfRange)
	assert.Equal(t, action.Key(key.CodeZ), l.At(0, key.Pos(1, 1)))
	assert.Equal(t, action.Key(key.CodeA), l.At(0, key.Pos(0, 0)))
}

func TestSnapshotIsCopy(t *testing.T) {
	l := twoByTwo(t)
	snap := l.Snapshot()
	snap[0][0][0] = action.Key(key.CodeZ)
	assert.Equal(t, action.Key(key.CodeA), l.At(0, key.Pos(0, 0)))
}

func TestNotationRoundTrip(t *testing.T) {
	l := twoByTwo(t)
	again, err := FromNotation(l.Dimensions(), l.ToNotation())
	require.NoError(t, err)
	if diff := cmp.Diff(l.Snapshot(), again.Snapshot()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff(t *testing.T) {
	a := twoByTwo(t)
	b := twoByTwo(t)

	diff, err := a.Diff(b)
	require.NoError(t, err)
	assert.Empty(t, diff)

	require.NoError(t, b.Set(Binding{Layer: 1, Position: key.Pos(0, 1), Action: action.Key(key.CodeQ)}))
	diff, err = a.Diff(b)
	require.NoError(t, err)
	want := []Binding{{Layer: 1, Position: key.Pos(0, 1), Action: action.Key(key.CodeQ)}}
	if d := cmp.Diff(want, diff); d != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", d)
	}

	other, err := FromNotation(Dimensions{Layers: 1, Rows: 1, Cols: 1}, [][][]string{{{"A"}}})
	require.NoError(t, err)
	_, err = a.Diff(other)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
