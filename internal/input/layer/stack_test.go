package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackBaseOnly(t *testing.T) {
	s := NewStack(4)
	assert.Equal(t, []uint8{0}, s.Active())
	assert.Equal(t, uint8(0), s.Top())
	assert.True(t, s.Contains(0))
	assert.False(t, s.Contains(1))
	assert.Equal(t, 0, s.Depth())
}

func TestStackPushPop(t *testing.T) {
	s := NewStack(4)

	h1, err := s.Push(1)
	require.NoError(t, err)
	h2, err := s.Push(2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 2}, s.Active())
	assert.Equal(t, uint8(2), s.Top())

	assert.True(t, s.Pop(h1))
	assert.Equal(t, []uint8{0, 2}, s.Active())
	assert.False(t, s.Pop(h1), "double pop")
	assert.True(t, s.Pop(h2))
	assert.Equal(t, []uint8{0}, s.Active())

	_, err = s.Push(4)
	assert.Error(t, err)
}

// Two holders of the same layer: releasing one keeps the other active.
func TestStackReentrantPop(t *testing.T) {
	s := NewStack(3)

	a, _ := s.Push(1)
	b, _ := s.Push(1)
	assert.Equal(t, []uint8{0, 1, 1}, s.Active())

	require.True(t, s.Pop(a))
	assert.True(t, s.Contains(1))
	require.True(t, s.Pop(b))
	assert.False(t, s.Contains(1))
}

func TestStackTogglePairIsIdempotent(t *testing.T) {
	s := NewStack(4)
	h, _ := s.Push(2)
	before := s.Active()

	on, err := s.Toggle(3)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, s.IsToggled(3))

	on, err = s.Toggle(3)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, before, s.Active())

	// Toggling does not disturb a momentary instance of the same layer.
	_, _ = s.Toggle(2)
	_, _ = s.Toggle(2)
	assert.True(t, s.Contains(2))
	assert.True(t, s.Pop(h))

	_, err = s.Toggle(9)
	assert.Error(t, err)
}

func TestStackPopIgnoresToggled(t *testing.T) {
	s := NewStack(3)
	_, _ = s.Toggle(1)
	// Handle 1 belongs to the toggled entry; Pop must not remove it.
	assert.False(t, s.Pop(Handle(1)))
	assert.True(t, s.IsToggled(1))
}

func TestStackReleaseMomentary(t *testing.T) {
	s := NewStack(4)
	_, _ = s.Push(1)
	_, _ = s.Toggle(2)
	_, _ = s.Push(3)

	assert.True(t, s.ReleaseMomentary())
	assert.Equal(t, []uint8{0, 2}, s.Active())
	assert.False(t, s.ReleaseMomentary())

	s.Reset()
	assert.Equal(t, []uint8{0}, s.Active())
}

func TestStackOnChange(t *testing.T) {
	s := NewStack(3)

	var seen [][]uint8
	unregister := s.OnChange(func(active []uint8) {
		seen = append(seen, active)
	})

	h, _ := s.Push(1)
	s.Pop(h)
	_, _ = s.Toggle(2)

	assert.Equal(t, [][]uint8{{0, 1}, {0}, {0, 2}}, seen)

	unregister()
	s.Reset()
	assert.Len(t, seen, 3)
}
