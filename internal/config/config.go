package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/keyfirm/internal/config/loader"
	"github.com/dshills/keyfirm/internal/input/keymap"
)

// Duration is a time.Duration written as a string such as "200ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete keyboard configuration.
type Config struct {
	Keyboard  Keyboard  `toml:"keyboard"`
	Matrix    Matrix    `toml:"matrix"`
	Behavior  Behavior  `toml:"behavior"`
	Layout    Layout    `toml:"layout"`
	Macros    []Macro   `toml:"macros"`
	Storage   Storage   `toml:"storage"`
	Transport Transport `toml:"transport"`
	Log       Log       `toml:"log"`
	Metrics   Metrics   `toml:"metrics"`
}

// Keyboard identifies the device to the host.
type Keyboard struct {
	Name      string `toml:"name"`
	VendorID  uint16 `toml:"vendor_id"`
	ProductID uint16 `toml:"product_id"`
}

// Matrix describes the scanned key matrix.
type Matrix struct {
	Rows   uint8 `toml:"rows"`
	Cols   uint8 `toml:"cols"`
	Layers uint8 `toml:"layers"`

	// Direction is col2row (rows are inputs) or row2col.
	Direction  string   `toml:"direction"`
	InputPins  []string `toml:"input_pins"`
	OutputPins []string `toml:"output_pins"`

	ScanInterval  Duration `toml:"scan_interval"`
	DebounceTicks int      `toml:"debounce_ticks"`

	// IdleTicks is the number of quiet scans before the scanner waits for
	// an edge instead of polling. Zero keeps polling.
	IdleTicks int `toml:"idle_ticks"`
}

// Behavior tunes the resolver and pipeline.
type Behavior struct {
	TapHoldTimeout  Duration `toml:"tap_hold_timeout"`
	OneShotTimeout  Duration `toml:"one_shot_timeout"`
	ChannelCapacity int      `toml:"channel_capacity"`
}

// Layout holds the keymap as [layer][row][col] action strings.
type Layout struct {
	Keymap [][][]string `toml:"keymap"`
}

// Macro defines a macro by key list or Lua script.
type Macro struct {
	ID   uint8    `toml:"id"`
	Keys []string `toml:"keys"`
	Lua  string   `toml:"lua"`
}

// Storage selects the remap store.
type Storage struct {
	Backend   string `toml:"backend"`
	Path      string `toml:"path"`
	FlashSize int    `toml:"flash_size"`
}

// Transport selects the host link.
type Transport struct {
	Mode string `toml:"mode"`
}

// Log configures logging.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Listen is the address to serve /metrics on. Empty disables it.
	Listen string `toml:"listen"`
}

// Default returns the configuration used for every unset field.
func Default() *Config {
	return &Config{
		Keyboard: Keyboard{Name: "keyfirm", VendorID: 0x4c4b, ProductID: 0x4643},
		Matrix: Matrix{
			Direction:     "col2row",
			ScanInterval:  Duration(time.Millisecond),
			DebounceTicks: 3,
			IdleTicks:     1000,
		},
		Behavior: Behavior{
			TapHoldTimeout:  Duration(200 * time.Millisecond),
			OneShotTimeout:  Duration(time.Second),
			ChannelCapacity: 8,
		},
		Storage:   Storage{Backend: "none", FlashSize: 4096},
		Transport: Transport{Mode: "usb"},
		Log:       Log{Level: "info", Format: "console"},
	}
}

// Dimensions returns the layout dimensions.
func (c *Config) Dimensions() keymap.Dimensions {
	return keymap.Dimensions{Layers: c.Matrix.Layers, Rows: c.Matrix.Rows, Cols: c.Matrix.Cols}
}

// Load reads path, applies KEYFIRM_ environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	return LoadWith(loader.DefaultFS(), path, loader.NewEnvLoader(loader.DefaultEnvPrefix))
}

// LoadWith is Load with an explicit file system and override source. env
// may be nil.
func LoadWith(fsys loader.FileSystem, path string, env loader.Loader) (*Config, error) {
	doc, err := loader.ForFile(fsys, path).Load()
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if env != nil {
		overrides, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("environment overrides: %w", err)
		}
		doc = loader.DeepMerge(doc, overrides)
	}
	return decode(doc)
}

// Parse decodes and validates a document without environment overrides.
func Parse(data []byte, format loader.Format) (*Config, error) {
	doc, err := loader.ForFormat(format).LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

// decode re-encodes the merged document as TOML and decodes it strictly
// onto the defaults.
func decode(doc map[string]any) (*Config, error) {
	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}

	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) && len(strict.Errors) > 0 {
			return nil, fieldError(strings.Join(strict.Errors[0].Key(), "."), "unknown setting")
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, &Error{Field: strings.Join(derr.Key(), "."), Err: err}
		}
		return nil, &Error{Field: "config", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
