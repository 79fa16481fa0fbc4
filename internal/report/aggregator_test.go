package report

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/input/resolver"
	"github.com/dshills/keyfirm/internal/metrics"
)

func down(c key.Code) resolver.Effect {
	return resolver.Effect{Kind: resolver.EffectKeyDown, Code: c}
}

func up(c key.Code) resolver.Effect {
	return resolver.Effect{Kind: resolver.EffectKeyUp, Code: c}
}

func downAt(c key.Code, pos key.Position) resolver.Effect {
	return resolver.Effect{Kind: resolver.EffectKeyDown, Code: c, Position: pos}
}

func upAt(c key.Code, pos key.Position) resolver.Effect {
	return resolver.Effect{Kind: resolver.EffectKeyUp, Code: c, Position: pos}
}

func mods(kind resolver.EffectKind, m key.Modifier) resolver.Effect {
	return resolver.Effect{Kind: kind, Mods: m}
}

func TestRolloverKeepsFirstSix(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	a := NewAggregator(WithMetrics(m))

	codes := []key.Code{key.CodeA, key.CodeB, key.CodeC, key.CodeD, key.CodeE, key.CodeF, key.CodeG}
	for _, c := range codes[:6] {
		require.Len(t, a.Apply(down(c)), 1)
	}
	assert.Empty(t, a.Apply(down(key.CodeG)), "7th key is dropped")
	assert.Equal(t, codes[:6], a.Keyboard().Pressed())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RolloverDrops))

	// Releasing the dropped key changes nothing.
	assert.Empty(t, a.Apply(up(key.CodeG)))

	// A freed slot is taken by the next press.
	msgs := a.Apply(up(key.CodeC))
	require.Len(t, msgs, 1)
	assert.Equal(t, ChangeKeyRemove, msgs[0].Change)
	msgs = a.Apply(down(key.CodeG))
	require.Len(t, msgs, 1)
	assert.Equal(t, [Slots]key.Code{key.CodeA, key.CodeB, key.CodeG, key.CodeD, key.CodeE, key.CodeF}, msgs[0].Report.Keyboard.Keycodes)
}

func TestDroppedKeyReleaseAfterRepress(t *testing.T) {
	a := NewAggregator()
	for c := key.CodeA; c < key.CodeA+6; c++ {
		a.Apply(down(c))
	}
	a.Apply(down(key.CodeZ))
	a.Apply(up(key.CodeA))

	// Z was dropped, so its first release only clears the drop.
	assert.Empty(t, a.Apply(up(key.CodeZ)))
	assert.NotContains(t, a.Keyboard().Pressed(), key.CodeZ)
}

// A drop belongs to the position that pressed it; the same code held from
// another position still releases normally.
func TestDroppedCodeFromAnotherPosition(t *testing.T) {
	a := NewAggregator()
	for i, c := range []key.Code{key.CodeA, key.CodeB, key.CodeC, key.CodeD, key.CodeE, key.CodeF} {
		require.Len(t, a.Apply(downAt(c, key.Pos(0, uint8(i)))), 1)
	}
	first, second := key.Pos(1, 0), key.Pos(1, 1)
	assert.Empty(t, a.Apply(downAt(key.CodeZ, first)), "dropped")

	require.Len(t, a.Apply(upAt(key.CodeA, key.Pos(0, 0))), 1)
	require.Len(t, a.Apply(downAt(key.CodeZ, second)), 1)
	assert.Contains(t, a.Keyboard().Pressed(), key.CodeZ)

	msgs := a.Apply(upAt(key.CodeZ, second))
	require.Len(t, msgs, 1)
	assert.Equal(t, ChangeKeyRemove, msgs[0].Change)
	assert.NotContains(t, a.Keyboard().Pressed(), key.CodeZ)

	assert.Empty(t, a.Apply(upAt(key.CodeZ, first)), "the dropped press's release is swallowed")
}

func TestModifierHolderCounts(t *testing.T) {
	a := NewAggregator()

	msgs := a.Apply(mods(resolver.EffectModsDown, key.ModLShift))
	require.Len(t, msgs, 1)
	assert.Equal(t, ChangeModifiers, msgs[0].Change)
	assert.Equal(t, key.ModLShift, msgs[0].Report.Keyboard.Modifier)

	// A second holder of the same bit is not observable.
	assert.Empty(t, a.Apply(down(key.CodeLShift)))
	assert.Empty(t, a.Apply(mods(resolver.EffectModsUp, key.ModLShift)))
	assert.Equal(t, key.ModLShift, a.Keyboard().Modifier)

	msgs = a.Apply(up(key.CodeLShift))
	require.Len(t, msgs, 1)
	assert.Equal(t, key.ModNone, msgs[0].Report.Keyboard.Modifier)
}

func TestSameCodeFromTwoPositions(t *testing.T) {
	a := NewAggregator()
	require.Len(t, a.Apply(down(key.CodeA)), 1)
	assert.Empty(t, a.Apply(down(key.CodeA)))
	assert.Empty(t, a.Apply(up(key.CodeA)))
	require.Len(t, a.Apply(up(key.CodeA)), 1)
	assert.True(t, a.Empty())
}

func TestMessagesAreSequenced(t *testing.T) {
	a := NewAggregator()
	at := time.Unix(100, 0)

	var all []Message
	all = append(all, a.Apply(resolver.Effect{Kind: resolver.EffectModsDown, Mods: key.ModLCtrl, At: at})...)
	all = append(all, a.Apply(resolver.Effect{Kind: resolver.EffectKeyDown, Code: key.CodeC, At: at})...)
	all = append(all, a.Apply(resolver.Effect{Kind: resolver.EffectLayers, Layers: []uint8{0, 1}, At: at})...)
	all = append(all, a.Apply(resolver.Effect{Kind: resolver.EffectKeyUp, Code: key.CodeC, At: at})...)
	all = append(all, a.Apply(resolver.Effect{Kind: resolver.EffectModsUp, Mods: key.ModLCtrl, At: at})...)

	require.Len(t, all, 5)
	want := []Change{ChangeModifiers, ChangeKeyAdd, ChangeLayers, ChangeKeyRemove, ChangeModifiers}
	for i, m := range all {
		assert.Equal(t, uint64(i+1), m.Seq)
		assert.Equal(t, want[i], m.Change)
		assert.Equal(t, at, m.At)
	}
	assert.False(t, all[2].HasReport())
	assert.Equal(t, []byte{0x01, 0, byte(key.CodeC), 0, 0, 0, 0, 0}, all[1].Report.Bytes())
}

func TestConsumerAndSystem(t *testing.T) {
	a := NewAggregator()

	msgs := a.Apply(down(key.CodeAudioVolUp))
	require.Len(t, msgs, 1)
	assert.Equal(t, KindConsumer, msgs[0].Report.Kind)
	assert.Equal(t, []byte{0xE9, 0x00}, msgs[0].Report.Bytes())

	msgs = a.Apply(up(key.CodeAudioVolUp))
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x00, 0x00}, msgs[0].Report.Bytes())

	msgs = a.Apply(down(key.CodeSystemSleep))
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x82}, msgs[0].Report.Bytes())
	assert.Empty(t, a.Apply(up(key.CodeSystemPower)), "release of a code not held")
}

func TestMouseKeys(t *testing.T) {
	a := NewAggregator(WithMouseStep(4))

	msgs := a.Apply(down(key.CodeMouseRight))
	require.Len(t, msgs, 1)
	assert.Equal(t, MouseReport{X: 4}, msgs[0].Report.Mouse)

	msgs = a.Apply(down(key.CodeMouseBtn2))
	require.Len(t, msgs, 1)
	assert.Equal(t, MouseReport{Buttons: 0x02, X: 4}, msgs[0].Report.Mouse)
	assert.Equal(t, []byte{0x02, 4, 0, 0, 0}, msgs[0].Report.Bytes())

	a.Apply(up(key.CodeMouseRight))
	msgs = a.Apply(up(key.CodeMouseBtn2))
	require.Len(t, msgs, 1)
	assert.Equal(t, MouseReport{}, msgs[0].Report.Mouse)
}

func TestResetEmitsAllClear(t *testing.T) {
	a := NewAggregator()
	assert.Empty(t, a.Reset(time.Time{}))

	a.Apply(down(key.CodeA))
	a.Apply(mods(resolver.EffectModsDown, key.ModRAlt))
	a.Apply(down(key.CodeMediaPlayPause))

	msgs := a.Reset(time.Time{})
	require.Len(t, msgs, 2)
	assert.Equal(t, KeyboardReport{}, msgs[0].Report.Keyboard)
	assert.Equal(t, ConsumerReport{}, msgs[1].Report.Consumer)
	assert.True(t, a.Empty())

	// Releases from before the reset are ignored.
	assert.Empty(t, a.Apply(up(key.CodeA)))
	assert.Empty(t, a.Apply(mods(resolver.EffectModsUp, key.ModRAlt)))
}
