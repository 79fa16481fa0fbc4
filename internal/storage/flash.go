package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
)

// DefaultFlashSize is the size of the remap region when none is configured.
const DefaultFlashSize = 4096

// Flash errors.
var (
	ErrNotErased  = errors.New("flash: write to non-erased byte")
	ErrOutOfRange = errors.New("flash: access out of range")
	ErrFlashFull  = errors.New("flash: region full")
	ErrCorrupt    = errors.New("flash: corrupt record")
)

// NorFlash is a NOR flash region. Erased bytes read as 0xFF; writes may
// only program erased bytes; Erase resets the whole region.
type NorFlash interface {
	Size() int
	Read(off int, p []byte) error
	Write(off int, p []byte) error
	Erase() error
}

// Record layout:
//
//	0  magic (0x5A)
//	1  layer
//	2  row
//	3  col
//	4  action kind
//	5  code
//	6  modifiers
//	7  target layer
//	8  macro id
//	9  checksum (sum of bytes 0-8)
const (
	recordSize  = 10
	recordMagic = 0x5A
	erasedByte  = 0xFF
)

func encodeRecord(r Remap) []byte {
	b := make([]byte, recordSize)
	b[0] = recordMagic
	b[1] = r.Layer
	b[2] = r.Position.Row
	b[3] = r.Position.Col
	b[4] = byte(r.Action.Kind)
	b[5] = byte(r.Action.Code)
	b[6] = byte(r.Action.Mods)
	b[7] = r.Action.Layer
	b[8] = r.Action.Macro
	b[9] = checksum(b[:9])
	return b
}

func decodeRecord(b []byte) (Remap, error) {
	if b[0] != recordMagic || checksum(b[:9]) != b[9] {
		return Remap{}, ErrCorrupt
	}
	return Remap{
		Layer:    b[1],
		Position: key.Pos(b[2], b[3]),
		Action: action.Action{
			Kind:  action.Kind(b[4]),
			Code:  key.Code(b[5]),
			Mods:  key.Modifier(b[6]),
			Layer: b[7],
			Macro: b[8],
		},
	}, nil
}

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// Flash stores remaps as an append-only record log. When the region fills
// up, the log is compacted to the latest record per binding.
type Flash struct {
	mu    sync.Mutex
	dev   NorFlash
	next  int
	ready bool
}

// NewFlash creates a store over dev.
func NewFlash(dev NorFlash) *Flash {
	return &Flash{dev: dev}
}

type bindingKey struct {
	layer uint8
	pos   key.Position
}

// Load implements Store.
func (f *Flash) Load(ctx context.Context) ([]Remap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load(ctx)
}

func (f *Flash) load(ctx context.Context) ([]Remap, error) {
	var out []Remap
	buf := make([]byte, recordSize)
	off := 0
	for ; off+recordSize <= f.dev.Size(); off += recordSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.dev.Read(off, buf); err != nil {
			return nil, fmt.Errorf("read record at %d: %w", off, err)
		}
		if buf[0] == erasedByte {
			break
		}
		r, err := decodeRecord(buf)
		if err != nil {
			return nil, fmt.Errorf("record at %d: %w", off, err)
		}
		out = append(out, r)
	}
	f.next = off
	f.ready = true
	return out, nil
}

// Save implements Store.
func (f *Flash) Save(ctx context.Context, r Remap) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.ready {
		if _, err := f.load(ctx); err != nil {
			return err
		}
	}
	if f.next+recordSize > f.dev.Size() {
		if err := f.compact(ctx); err != nil {
			return err
		}
		if f.next+recordSize > f.dev.Size() {
			return ErrFlashFull
		}
	}
	if err := f.dev.Write(f.next, encodeRecord(r)); err != nil {
		return fmt.Errorf("write record at %d: %w", f.next, err)
	}
	f.next += recordSize
	return nil
}

// compact rewrites the region with only the latest record per binding.
func (f *Flash) compact(ctx context.Context) error {
	all, err := f.load(ctx)
	if err != nil {
		return err
	}

	latest := make(map[bindingKey]int, len(all))
	var order []bindingKey
	for i, r := range all {
		k := bindingKey{layer: r.Layer, pos: r.Position}
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		}
		latest[k] = i
	}

	if err := f.dev.Erase(); err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	f.next = 0
	for _, k := range order {
		if err := f.dev.Write(f.next, encodeRecord(all[latest[k]])); err != nil {
			return fmt.Errorf("rewrite record: %w", err)
		}
		f.next += recordSize
	}
	return nil
}

// Close implements Store.
func (f *Flash) Close() error {
	if c, ok := f.dev.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// MemFlash is an in-memory NorFlash with NOR write rules.
type MemFlash struct {
	mu   sync.Mutex
	data []byte

	// failWith, if set, is returned by every operation.
	failWith error
}

// NewMemFlash creates an erased region. A size below one record selects
// DefaultFlashSize.
func NewMemFlash(size int) *MemFlash {
	if size < recordSize {
		size = DefaultFlashSize
	}
	m := &MemFlash{data: make([]byte, size)}
	for i := range m.data {
		m.data[i] = erasedByte
	}
	return m
}

// Fail makes every later operation return err; nil clears it.
func (m *MemFlash) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Size implements NorFlash.
func (m *MemFlash) Size() int {
	return len(m.data)
}

// Read implements NorFlash.
func (m *MemFlash) Read(off int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if off < 0 || off+len(p) > len(m.data) {
		return ErrOutOfRange
	}
	copy(p, m.data[off:])
	return nil
}

// Write implements NorFlash.
func (m *MemFlash) Write(off int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if off < 0 || off+len(p) > len(m.data) {
		return ErrOutOfRange
	}
	for i := range p {
		if m.data[off+i] != erasedByte {
			return ErrNotErased
		}
	}
	copy(m.data[off:], p)
	return nil
}

// Erase implements NorFlash.
func (m *MemFlash) Erase() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for i := range m.data {
		m.data[i] = erasedByte
	}
	return nil
}

// Bytes returns a copy of the region.
func (m *MemFlash) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// FileFlash is a MemFlash mirrored to a file, standing in for the flash
// chip in host builds.
type FileFlash struct {
	*MemFlash
	path string
}

// OpenFileFlash loads the region from path, creating an erased one if the
// file does not exist.
func OpenFileFlash(path string, size int) (*FileFlash, error) {
	mem := NewMemFlash(size)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) != mem.Size() {
			return nil, fmt.Errorf("flash image %s is %d bytes, want %d", path, len(data), mem.Size())
		}
		copy(mem.data, data)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read flash image: %w", err)
	}
	return &FileFlash{MemFlash: mem, path: path}, nil
}

// Write implements NorFlash and syncs the image to disk.
func (f *FileFlash) Write(off int, p []byte) error {
	if err := f.MemFlash.Write(off, p); err != nil {
		return err
	}
	return f.sync()
}

// Erase implements NorFlash and syncs the image to disk.
func (f *FileFlash) Erase() error {
	if err := f.MemFlash.Erase(); err != nil {
		return err
	}
	return f.sync()
}

func (f *FileFlash) sync() error {
	return os.WriteFile(f.path, f.MemFlash.Bytes(), 0o644)
}
