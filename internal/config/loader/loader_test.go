package loader

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(data), nil
}

func (m memFS) Stat(path string) (fs.FileInfo, error) {
	return nil, errors.New("not implemented")
}

func getByPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	v, ok := current[parts[len(parts)-1]]
	return v, ok
}

func TestTOMLLoader_Load(t *testing.T) {
	fsys := memFS{"/kb.toml": `
[matrix]
rows = 2
cols = 2

[layout]
keymap = [[["A", "MO(1)"], ["_", "TRNS"]]]
`}
	config, err := NewTOMLLoaderWithFS(fsys, "/kb.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, ok := getByPath(config, "matrix.rows"); !ok || v != int64(2) {
		t.Errorf("matrix.rows = %v (%T), want 2", v, v)
	}
	if _, ok := getByPath(config, "layout.keymap"); !ok {
		t.Error("layout.keymap missing")
	}
}

func TestTOMLLoader_Missing(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(memFS{}, "/none.toml").Load()
	if err != nil || config != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", config, err)
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	fsys := memFS{"/bad.toml": "[matrix\nrows = 2\n"}
	_, err := NewTOMLLoaderWithFS(fsys, "/bad.toml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if perr.Path != "/bad.toml" || perr.Line < 1 {
		t.Errorf("ParseError = %+v, want path /bad.toml with a line", perr)
	}
}

func TestYAMLLoader_Load(t *testing.T) {
	fsys := memFS{"/kb.yaml": `
matrix:
  rows: 2
  direction: col2row
macros:
  - id: 1
    keys: [H, I]
`}
	config, err := NewYAMLLoaderWithFS(fsys, "/kb.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, ok := getByPath(config, "matrix.direction"); !ok || v != "col2row" {
		t.Errorf("matrix.direction = %v, want col2row", v)
	}
	macros, ok := config["macros"].([]any)
	if !ok || len(macros) != 1 {
		t.Fatalf("macros = %#v", config["macros"])
	}
	if _, ok := macros[0].(map[string]any); !ok {
		t.Errorf("macro entry is %T, want map[string]any", macros[0])
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"kb.toml":      FormatTOML,
		"kb.yaml":      FormatYAML,
		"dir/KB.YML":   FormatYAML,
		"keyboard.cfg": FormatTOML,
	}
	for path, want := range tests {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestEnvLoader_Load(t *testing.T) {
	l := NewEnvLoader("KEYFIRM_")
	l.environ = func() []string {
		return []string{
			"KEYFIRM_LOG_LEVEL=debug",
			"KEYFIRM_MATRIX_DEBOUNCE_TICKS=5",
			"KEYFIRM_BEHAVIOR_TAP_HOLD_TIMEOUT=150ms",
			"KEYFIRM_METRICS_LISTEN=",
			"KEYFIRM_ALONE=1",
			"HOME=/root",
		}
	}

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		path string
		want any
	}{
		{"log.level", "debug"},
		{"matrix.debounce_ticks", int64(5)},
		{"behavior.tap_hold_timeout", "150ms"},
		{"metrics.listen", ""},
	}
	for _, tt := range tests {
		if got, ok := getByPath(config, tt.path); !ok || got != tt.want {
			t.Errorf("%s = %v (%T), want %v", tt.path, got, got, tt.want)
		}
	}
	if _, ok := config["alone"]; ok {
		t.Error("variable without a section should be ignored")
	}
	if _, ok := config["home"]; ok {
		t.Error("unprefixed variable should be ignored")
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader("KEYFIRM_")
	tests := []struct {
		env  string
		want string
	}{
		{"KEYFIRM_MATRIX_ROWS", "matrix.rows"},
		{"KEYFIRM_STORAGE_FLASH_SIZE", "storage.flash_size"},
		{"KEYFIRM_SIMPLE", ""},
	}
	for _, tt := range tests {
		if got := l.envToPath(tt.env); got != tt.want {
			t.Errorf("envToPath(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"matrix": map[string]any{"rows": int64(2), "cols": int64(2)},
		"log":    map[string]any{"level": "info"},
	}
	src := map[string]any{
		"matrix": map[string]any{"rows": int64(4)},
		"log":    "flat",
	}
	got := DeepMerge(dst, src)

	if v, _ := getByPath(got, "matrix.rows"); v != int64(4) {
		t.Errorf("matrix.rows = %v, want 4", v)
	}
	if v, _ := getByPath(got, "matrix.cols"); v != int64(2) {
		t.Errorf("matrix.cols = %v, want 2", v)
	}
	if got["log"] != "flat" {
		t.Errorf("log = %v, want replaced by scalar", got["log"])
	}
}
