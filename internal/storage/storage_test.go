package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/metrics"
)

func remap(layer, row, col uint8, notation string) Remap {
	return Remap{Layer: layer, Position: key.Pos(row, col), Action: action.MustParse(notation)}
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, remap(0, 0, 0, "A")))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// Every backend must round-trip remaps and report later saves last.
func TestBackends(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"flash": func(t *testing.T) Store { return NewFlash(NewMemFlash(256)) },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), ":memory:")
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			saved := []Remap{
				remap(0, 0, 0, "B"),
				remap(1, 1, 2, "LT(2, Space)"),
				remap(0, 1, 1, "WM(C, LCtrl|RShift)"),
				remap(2, 0, 1, "MACRO(4)"),
			}
			for _, r := range saved {
				require.NoError(t, s.Save(ctx, r))
			}

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, saved, got)
		})
	}
}

func TestSQLiteKeepsLatestPerBinding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remaps.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, remap(0, 0, 0, "A")))
	require.NoError(t, s.Save(ctx, remap(0, 0, 1, "B")))
	require.NoError(t, s.Save(ctx, remap(0, 0, 0, "C")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Remap{remap(0, 0, 1, "B"), remap(0, 0, 0, "C")}, got)
}

func TestFlashCompaction(t *testing.T) {
	// Room for exactly three records.
	dev := NewMemFlash(3 * recordSize)
	f := NewFlash(dev)
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, remap(0, 0, 0, "A")))
	require.NoError(t, f.Save(ctx, remap(0, 0, 0, "B")))
	require.NoError(t, f.Save(ctx, remap(0, 0, 1, "C")))

	// Full: the two (0,0) records compact into one.
	require.NoError(t, f.Save(ctx, remap(0, 1, 0, "D")))

	got, err := NewFlash(dev).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Remap{
		remap(0, 0, 0, "B"),
		remap(0, 0, 1, "C"),
		remap(0, 1, 0, "D"),
	}, got)

	// Three distinct bindings fill the region for good.
	assert.ErrorIs(t, f.Save(ctx, remap(0, 1, 1, "E")), ErrFlashFull)
}

func TestFlashCorruptRecord(t *testing.T) {
	dev := NewMemFlash(64)
	require.NoError(t, dev.Write(0, []byte{recordMagic, 0, 0, 0, 2, 4, 0, 0, 0, 0x00}))

	_, err := NewFlash(dev).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestMemFlashNORRules(t *testing.T) {
	dev := NewMemFlash(16)
	require.NoError(t, dev.Write(0, []byte{1, 2}))
	assert.ErrorIs(t, dev.Write(1, []byte{3}), ErrNotErased)
	assert.ErrorIs(t, dev.Write(15, []byte{1, 2}), ErrOutOfRange)
	require.NoError(t, dev.Erase())
	require.NoError(t, dev.Write(1, []byte{3}))
}

func TestFileFlashPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendFlash, Path: path, FlashSize: 128})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, remap(1, 0, 0, "TG(0)")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Backend: BackendFlash, Path: path, FlashSize: 128})
	require.NoError(t, err)
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Remap{remap(1, 0, 0, "TG(0)")}, got)

	_, err = OpenFileFlash(path, 256)
	assert.Error(t, err, "size mismatch")
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "eeprom"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, s)
}

func TestPersistentDegradesOnFault(t *testing.T) {
	dev := NewMemFlash(128)
	m := metrics.New(prometheus.NewRegistry())
	p := NewPersistent(NewFlash(dev), zaptest.NewLogger(t), m)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, remap(0, 0, 0, "A")))
	assert.False(t, p.Degraded())

	dev.Fail(errors.New("bus error"))
	require.NoError(t, p.Save(ctx, remap(0, 0, 1, "B")), "faults are absorbed")
	assert.True(t, p.Degraded())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageDegraded))

	// Once degraded, the backend is never touched again.
	dev.Fail(nil)
	require.NoError(t, p.Save(ctx, remap(0, 0, 1, "C")))
	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	direct, err := NewFlash(dev).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, direct, 1)
}

func TestPersistentLoadFault(t *testing.T) {
	dev := NewMemFlash(64)
	dev.Fail(errors.New("no device"))
	p := NewPersistent(NewFlash(dev), nil, nil)

	got, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, p.Degraded())
}
