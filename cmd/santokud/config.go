package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the santokud daemon.
//
// The file is YAML unless its extension is .toml. Defaults and validation are
// centralized here so the rest of the code can assume a well-formed config.
type Config struct {
	// Input devices (keyboard, pointing stick, scroll encoder)
	Input InputConfig `yaml:"input" toml:"input"`

	// Physical key -> logical action tables
	Keymap KeymapConfig `yaml:"keymap" toml:"keymap"`

	// Startup values for the live tunables (re-applied on config reload)
	Tuning Params `yaml:"tuning" toml:"tuning"`

	// Encoder scroll smoothing
	Encoder EncoderFileConfig `yaml:"encoder" toml:"encoder"`

	// OLED display model
	Display DisplayConfig `yaml:"display" toml:"display"`

	// Daemon loop
	Daemon DaemonConfig `yaml:"daemon" toml:"daemon"`

	// IPC configuration (used by santoku-ctl)
	IPC IPCConfig `yaml:"ipc" toml:"ipc"`

	// HTTP server for the display page and state websocket
	HTTP HTTPConfig `yaml:"http" toml:"http"`

	// Virtual uinput device
	Output OutputConfig `yaml:"output" toml:"output"`

	// Logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// Device roles
const (
	RoleKeyboard = "keyboard"
	RolePointer  = "pointer"
	RoleEncoder  = "encoder"
)

type InputDeviceConfig struct {
	Path string `yaml:"path" toml:"path"`
	Role string `yaml:"role" toml:"role"` // keyboard, pointer or encoder
	Grab bool   `yaml:"grab" toml:"grab"` // exclusive access (EVIOCGRAB)
}

type InputConfig struct {
	Devices []InputDeviceConfig `yaml:"devices" toml:"devices"`

	// While held on the pointer device, motion becomes scroll
	DragScrollButton string `yaml:"drag_scroll_button" toml:"drag_scroll_button"`
}

type KeymapConfig struct {
	Base     map[string]string `yaml:"base" toml:"base"`
	Settings map[string]string `yaml:"settings" toml:"settings"`
}

type EncoderFileConfig struct {
	DebounceMS  int `yaml:"debounce_ms" toml:"debounce_ms"`
	HardDelayMS int `yaml:"hard_delay_ms" toml:"hard_delay_ms"`
}

type DisplayConfig struct {
	VisibleRows int `yaml:"visible_rows" toml:"visible_rows"`
	SplashMS    int `yaml:"splash_ms" toml:"splash_ms"`
}

type DaemonConfig struct {
	TickHz int `yaml:"tick_hz" toml:"tick_hz"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path" toml:"socket_path"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"`
}

type OutputConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Name    string `yaml:"name" toml:"name"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Devices:          nil,
			DragScrollButton: "BTN_MIDDLE",
		},
		Keymap: defaultKeymapConfig(),
		Tuning: DefaultParams(),
		Encoder: EncoderFileConfig{
			DebounceMS:  defaultEncoderDebounceMS,
			HardDelayMS: defaultEncoderHardDelayMS,
		},
		Display: DisplayConfig{
			VisibleRows: defaultVisibleRow,
			SplashMS:    defaultSplashMS,
		},
		Daemon: DaemonConfig{
			TickHz: defaultTickHz,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Listen:  defaultHTTPListen,
		},
		Output: OutputConfig{
			Enabled: true,
			Name:    defaultOutputName,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a config file on top of DefaultConfig().
//
// Notes:
//   - Files ending in .toml are decoded as TOML; everything else as YAML.
//   - Unknown fields are rejected in both formats (helps catch typos).
//   - Keymap tables in the file replace the default tables as a whole.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	path = ExpandPath(path)
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return decodeConfigTOML(b)
	}
	return decodeConfigYAML(b)
}

func decodeConfigYAML(b []byte) (Config, error) {
	cfg := DefaultConfig()
	// yaml.v3 merges into existing maps; keymap tables must be replaced instead
	cfg.Keymap = KeymapConfig{}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	fillDefaultKeymap(&cfg.Keymap)
	return cfg, nil
}

func decodeConfigTOML(b []byte) (Config, error) {
	cfg := DefaultConfig()
	cfg.Keymap = KeymapConfig{}

	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode config toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("decode config toml: unknown keys: %s", strings.Join(keys, ", "))
	}

	fillDefaultKeymap(&cfg.Keymap)
	return cfg, nil
}

// fillDefaultKeymap restores a default table that the file left out entirely.
func fillDefaultKeymap(k *KeymapConfig) {
	def := defaultKeymapConfig()
	if k.Base == nil {
		k.Base = def.Base
	}
	if k.Settings == nil {
		k.Settings = def.Settings
	}
}

// FlagOverrides applies overrides from flags on top of a loaded config.
//
// Flags should pass pointers; each override is only applied if the pointer is non-nil.
type FlagOverrides struct {
	InputDevices *[]InputDeviceConfig

	TickHz *int

	IPCSocketPath *string

	HTTPEnabled *bool
	HTTPListen  *string

	OutputEnabled *bool

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a “zero value”).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevices != nil {
		cfg.Input.Devices = *o.InputDevices
	}
	if o.TickHz != nil {
		cfg.Daemon.TickHz = *o.TickHz
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPEnabled != nil {
		cfg.HTTP.Enabled = *o.HTTPEnabled
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.OutputEnabled != nil {
		cfg.Output.Enabled = *o.OutputEnabled
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// parseDeviceFlag parses "path[:role[:grab]]" as accepted by -device.
func parseDeviceFlag(s string) (InputDeviceConfig, error) {
	parts := strings.Split(s, ":")
	d := InputDeviceConfig{Path: parts[0], Role: RoleKeyboard, Grab: true}
	if d.Path == "" {
		return d, errors.New("device path is empty")
	}
	if len(parts) > 1 && parts[1] != "" {
		d.Role = parts[1]
	}
	if len(parts) > 2 {
		switch parts[2] {
		case "grab":
			d.Grab = true
		case "nograb":
			d.Grab = false
		default:
			return d, fmt.Errorf("device %s: expected grab or nograb, got %q", d.Path, parts[2])
		}
	}
	if len(parts) > 3 {
		return d, fmt.Errorf("device %s: too many fields", d.Path)
	}
	return d, nil
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Input
	if len(c.Input.Devices) == 0 {
		return errors.New("input.devices must not be empty")
	}
	seen := make(map[string]bool, len(c.Input.Devices))
	for i, dev := range c.Input.Devices {
		if dev.Path == "" {
			return fmt.Errorf("input.devices[%d].path is empty", i)
		}
		switch dev.Role {
		case RoleKeyboard, RolePointer, RoleEncoder:
		default:
			return fmt.Errorf("input.devices[%d].role must be %q, %q or %q (got %q)", i, RoleKeyboard, RolePointer, RoleEncoder, dev.Role)
		}
		if seen[dev.Path] {
			return fmt.Errorf("input.devices[%d]: %s listed more than once", i, dev.Path)
		}
		seen[dev.Path] = true
	}
	if c.Input.DragScrollButton != "" {
		if _, err := parseKeyName(c.Input.DragScrollButton); err != nil {
			return fmt.Errorf("input.drag_scroll_button: %w", err)
		}
	}

	// Keymap
	if _, err := buildKeymap(c.Keymap); err != nil {
		return err
	}

	// Tuning
	if err := c.Tuning.Validate(); err != nil {
		return err
	}

	// Encoder
	if c.Encoder.DebounceMS < 0 {
		return errors.New("encoder.debounce_ms must be >= 0")
	}
	if c.Encoder.HardDelayMS < 0 || c.Encoder.HardDelayMS > 500 {
		return errors.New("encoder.hard_delay_ms must be between 0 and 500")
	}

	// Display
	if c.Display.VisibleRows <= 0 || c.Display.VisibleRows > displayLines-2 {
		return fmt.Errorf("display.visible_rows must be between 1 and %d", displayLines-2)
	}
	if c.Display.SplashMS < 0 {
		return errors.New("display.splash_ms must be >= 0")
	}

	// Daemon
	if c.Daemon.TickHz <= 0 || c.Daemon.TickHz > 1000 {
		return errors.New("daemon.tick_hz must be between 1 and 1000")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// HTTP
	if c.HTTP.Enabled && c.HTTP.Listen == "" {
		return errors.New("http.enabled is true but http.listen is empty")
	}

	// Output
	if c.Output.Enabled && c.Output.Name == "" {
		return errors.New("output.enabled is true but output.name is empty")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToReducerConfig converts file config into the reducer's policy config.
// Call only after Validate() has succeeded.
func (c *Config) ToReducerConfig() ReducerConfig {
	keymap, _ := buildKeymap(c.Keymap)

	var dragButton uint16
	if c.Input.DragScrollButton != "" {
		dragButton, _ = parseKeyName(c.Input.DragScrollButton)
	}

	return ReducerConfig{
		Registry:         defaultRegistry,
		VisibleRows:      c.Display.VisibleRows,
		Curves:           DefaultPointerCurves(),
		Keymap:           keymap,
		DragScrollButton: dragButton,
		Encoder: EncoderConfig{
			Debounce:  time.Duration(c.Encoder.DebounceMS) * time.Millisecond,
			HardDelay: time.Duration(c.Encoder.HardDelayMS) * time.Millisecond,
		},
		Splash: time.Duration(c.Display.SplashMS) * time.Millisecond,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
// This is handy for config values like ipc.socket_path.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
