// Package config loads the application's settings: built-in defaults,
// optionally overlaid by a TOML file, then by command-line flags.
package config

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

const MaxFramesInFlight = 8

type Size struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type Config struct {
	Window         Window `toml:"window"`
	FramesInFlight int    `toml:"frames_in_flight"`
	// Offscreen is the initial offscreen target size, used until the UI
	// reports the viewport panel's real size.
	Offscreen  Size   `toml:"offscreen"`
	Validation bool   `toml:"validation"`
	ShaderDir  string `toml:"shader_dir"`
	LogLevel   string `toml:"log_level"`
}

func Default() Config {
	return Config{
		Window: Window{
			Title:  "Vulkan MVP (Spinning Cube)",
			Width:  1600,
			Height: 900,
		},
		FramesInFlight: 2,
		Offscreen:      Size{Width: 1280, Height: 720},
		Validation:     true,
		ShaderDir:      "shaders",
		LogLevel:       "info",
	}
}

// Decode overlays TOML from r onto c. Keys absent from the document keep
// their current values.
func (c *Config) Decode(r io.Reader) error {
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(c)
	if err != nil {
		return errors.Wrap(err, "decode config")
	}
	return nil
}

func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	err = cfg.Decode(f)
	if err != nil {
		return cfg, errors.Wrapf(err, "load %s", path)
	}
	return cfg, cfg.Validate()
}

// Parse builds the configuration from command-line arguments. A -config
// file is applied first; any other flag given explicitly overrides it.
func Parse(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	var path string
	flags := Default()
	fs.StringVar(&path, "config", "", "path to a TOML configuration file")
	fs.StringVar(&flags.Window.Title, "title", flags.Window.Title, "window title")
	fs.IntVar(&flags.Window.Width, "width", flags.Window.Width, "initial window width")
	fs.IntVar(&flags.Window.Height, "height", flags.Window.Height, "initial window height")
	fs.IntVar(&flags.FramesInFlight, "frames", flags.FramesInFlight, "frames in flight")
	fs.IntVar(&flags.Offscreen.Width, "offscreen-width", flags.Offscreen.Width, "initial offscreen width")
	fs.IntVar(&flags.Offscreen.Height, "offscreen-height", flags.Offscreen.Height, "initial offscreen height")
	fs.BoolVar(&flags.Validation, "validation", flags.Validation, "enable the Khronos validation layer")
	fs.StringVar(&flags.ShaderDir, "shaders", flags.ShaderDir, "directory holding compiled SPIR-V shaders")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "debug, info, warn or error")

	err := fs.Parse(args)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "open config %s", path)
		}
		defer f.Close()

		err = cfg.Decode(f)
		if err != nil {
			return Config{}, errors.Wrapf(err, "load %s", path)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			cfg.Window.Title = flags.Window.Title
		case "width":
			cfg.Window.Width = flags.Window.Width
		case "height":
			cfg.Window.Height = flags.Window.Height
		case "frames":
			cfg.FramesInFlight = flags.FramesInFlight
		case "offscreen-width":
			cfg.Offscreen.Width = flags.Offscreen.Width
		case "offscreen-height":
			cfg.Offscreen.Height = flags.Offscreen.Height
		case "validation":
			cfg.Validation = flags.Validation
		case "shaders":
			cfg.ShaderDir = flags.ShaderDir
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Errorf("config: window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Offscreen.Width <= 0 || c.Offscreen.Height <= 0 {
		return errors.Errorf("config: offscreen size must be positive, got %dx%d", c.Offscreen.Width, c.Offscreen.Height)
	}
	if c.FramesInFlight < 1 || c.FramesInFlight > MaxFramesInFlight {
		return errors.Errorf("config: frames in flight must be in [1,%d], got %d", MaxFramesInFlight, c.FramesInFlight)
	}
	if c.ShaderDir == "" {
		return errors.New("config: shader directory is empty")
	}
	_, err := c.Level()
	return err
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	if err != nil {
		return level, errors.Wrapf(err, "config: log level %q", c.LogLevel)
	}
	return level, nil
}
