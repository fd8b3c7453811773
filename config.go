package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	UI struct {
		Color     string `mapstructure:"color"`
		ColorMode string `mapstructure:"color_mode"`
		MaxWidth  int    `mapstructure:"max_width"`
	} `mapstructure:"ui"`
	Artwork struct {
		Enabled      bool `mapstructure:"enabled"`
		Padding      int  `mapstructure:"padding"`
		WidthPixels  int  `mapstructure:"width_pixels"`
		WidthColumns int  `mapstructure:"width_columns"`
	} `mapstructure:"artwork"`
	Text struct {
		MaxLengthWithArt int `mapstructure:"max_length_with_art"`
		MaxLengthNoArt   int `mapstructure:"max_length_no_art"`
	} `mapstructure:"text"`
	Timing struct {
		UIRefreshMs int `mapstructure:"ui_refresh_ms"`
	} `mapstructure:"timing"`
	Player struct {
		Volume          float64 `mapstructure:"volume"`
		VolumeStep      float64 `mapstructure:"volume_step"`
		SeekStepSeconds float64 `mapstructure:"seek_step_seconds"`
		ResumeDelayMs   int     `mapstructure:"resume_delay_ms"`
	} `mapstructure:"player"`
	Fallback struct {
		FrequencyHz float64 `mapstructure:"frequency_hz"`
		DurationMs  int     `mapstructure:"duration_ms"`
		Gain        float64 `mapstructure:"gain"`
	} `mapstructure:"fallback"`
	Media struct {
		BaseDir    string `mapstructure:"base_dir"`
		SampleRate int    `mapstructure:"sample_rate"`
	} `mapstructure:"media"`
	Catalog struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"catalog"`
	Log struct {
		File  string `mapstructure:"file"`
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// defaultConfig returns the built-in settings used for missing or invalid values
func defaultConfig() Config {
	var cfg Config
	cfg.UI.Color = "2"
	cfg.UI.ColorMode = "auto"
	cfg.UI.MaxWidth = 50
	cfg.Artwork.Enabled = true
	cfg.Artwork.Padding = 16
	cfg.Artwork.WidthPixels = 300
	cfg.Artwork.WidthColumns = 13
	cfg.Text.MaxLengthWithArt = 22
	cfg.Text.MaxLengthNoArt = 36
	cfg.Timing.UIRefreshMs = 100
	cfg.Player.Volume = 0.7
	cfg.Player.VolumeStep = 0.05
	cfg.Player.SeekStepSeconds = 5
	cfg.Player.ResumeDelayMs = 100
	cfg.Fallback.FrequencyHz = 440
	cfg.Fallback.DurationMs = 2000
	cfg.Fallback.Gain = 0.1
	cfg.Media.SampleRate = 44100
	cfg.Log.Level = "info"
	return cfg
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

var config = &SafeConfig{cfg: defaultConfig()}

// Config file changed notification
type configReloadMsg struct{}

var configChangeChan = make(chan struct{}, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		<-configChangeChan
		return configReloadMsg{}
	}
}

// configError describes one invalid config field
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

var hexColorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// isValidColor accepts ANSI codes 0-255 and #RGB / #RRGGBB hex colors
func isValidColor(color string) bool {
	if strings.HasPrefix(color, "#") {
		return hexColorPattern.MatchString(color)
	}
	if color == "" || len(color) > 3 {
		return false
	}
	for _, c := range color {
		if c < '0' || c > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(color)
	return err == nil && n <= 255
}

// validateConfig checks every field and returns one error per invalid field
func validateConfig(cfg *Config) []error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if !isValidColor(cfg.UI.Color) {
		fail("ui.color", "invalid color format '%s'", cfg.UI.Color)
	}
	if cfg.UI.ColorMode != "manual" && cfg.UI.ColorMode != "auto" {
		fail("ui.color_mode", "must be 'manual' or 'auto' (got '%s')", cfg.UI.ColorMode)
	}
	if cfg.UI.MaxWidth < 20 || cfg.UI.MaxWidth > 200 {
		fail("ui.max_width", "must be between 20 and 200 (got %d)", cfg.UI.MaxWidth)
	}
	if cfg.Artwork.Padding < 0 {
		fail("artwork.padding", "must not be negative (got %d)", cfg.Artwork.Padding)
	} else if cfg.Artwork.Padding >= cfg.UI.MaxWidth {
		fail("artwork.padding", "must be less than ui.max_width (got %d)", cfg.Artwork.Padding)
	}
	if cfg.Artwork.WidthPixels < 1 || cfg.Artwork.WidthPixels > 2000 {
		fail("artwork.width_pixels", "must be between 1 and 2000 (got %d)", cfg.Artwork.WidthPixels)
	}
	if cfg.Artwork.WidthColumns < 1 || cfg.Artwork.WidthColumns > 100 {
		fail("artwork.width_columns", "must be between 1 and 100 (got %d)", cfg.Artwork.WidthColumns)
	}
	if cfg.Text.MaxLengthWithArt < 1 || cfg.Text.MaxLengthWithArt > 200 {
		fail("text.max_length_with_art", "must be between 1 and 200 (got %d)", cfg.Text.MaxLengthWithArt)
	}
	if cfg.Text.MaxLengthNoArt < 1 || cfg.Text.MaxLengthNoArt > 200 {
		fail("text.max_length_no_art", "must be between 1 and 200 (got %d)", cfg.Text.MaxLengthNoArt)
	}
	if cfg.Timing.UIRefreshMs < 10 || cfg.Timing.UIRefreshMs > 1000 {
		fail("timing.ui_refresh_ms", "must be between 10 and 1000 (got %d)", cfg.Timing.UIRefreshMs)
	}
	if cfg.Player.Volume < 0 || cfg.Player.Volume > 1 {
		fail("player.volume", "must be between 0 and 1 (got %g)", cfg.Player.Volume)
	}
	if cfg.Player.VolumeStep <= 0 || cfg.Player.VolumeStep > 1 {
		fail("player.volume_step", "must be in (0, 1] (got %g)", cfg.Player.VolumeStep)
	}
	if cfg.Player.SeekStepSeconds <= 0 || cfg.Player.SeekStepSeconds > 600 {
		fail("player.seek_step_seconds", "must be in (0, 600] (got %g)", cfg.Player.SeekStepSeconds)
	}
	if cfg.Player.ResumeDelayMs < 0 || cfg.Player.ResumeDelayMs > 5000 {
		fail("player.resume_delay_ms", "must be between 0 and 5000 (got %d)", cfg.Player.ResumeDelayMs)
	}
	if cfg.Fallback.FrequencyHz < 20 || cfg.Fallback.FrequencyHz > 20000 {
		fail("fallback.frequency_hz", "must be between 20 and 20000 (got %g)", cfg.Fallback.FrequencyHz)
	}
	if cfg.Fallback.DurationMs < 1 || cfg.Fallback.DurationMs > 10000 {
		fail("fallback.duration_ms", "must be between 1 and 10000 (got %d)", cfg.Fallback.DurationMs)
	}
	if cfg.Fallback.Gain < 0 || cfg.Fallback.Gain > 1 {
		fail("fallback.gain", "must be between 0 and 1 (got %g)", cfg.Fallback.Gain)
	}
	if cfg.Media.SampleRate < 8000 || cfg.Media.SampleRate > 192000 {
		fail("media.sample_rate", "must be between 8000 and 192000 (got %d)", cfg.Media.SampleRate)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		fail("log.level", "must be one of debug, info, warn, error (got '%s')", cfg.Log.Level)
	}

	return errs
}

// applyDefaultsForInvalidFields resets every field named in errs to its default
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	def := defaultConfig()
	for _, err := range errs {
		ce, ok := err.(configError)
		if !ok {
			continue
		}
		switch ce.field {
		case "ui.color":
			cfg.UI.Color = def.UI.Color
		case "ui.color_mode":
			cfg.UI.ColorMode = def.UI.ColorMode
		case "ui.max_width":
			cfg.UI.MaxWidth = def.UI.MaxWidth
		case "artwork.padding":
			cfg.Artwork.Padding = def.Artwork.Padding
		case "artwork.width_pixels":
			cfg.Artwork.WidthPixels = def.Artwork.WidthPixels
		case "artwork.width_columns":
			cfg.Artwork.WidthColumns = def.Artwork.WidthColumns
		case "text.max_length_with_art":
			cfg.Text.MaxLengthWithArt = def.Text.MaxLengthWithArt
		case "text.max_length_no_art":
			cfg.Text.MaxLengthNoArt = def.Text.MaxLengthNoArt
		case "timing.ui_refresh_ms":
			cfg.Timing.UIRefreshMs = def.Timing.UIRefreshMs
		case "player.volume":
			cfg.Player.Volume = def.Player.Volume
		case "player.volume_step":
			cfg.Player.VolumeStep = def.Player.VolumeStep
		case "player.seek_step_seconds":
			cfg.Player.SeekStepSeconds = def.Player.SeekStepSeconds
		case "player.resume_delay_ms":
			cfg.Player.ResumeDelayMs = def.Player.ResumeDelayMs
		case "fallback.frequency_hz":
			cfg.Fallback.FrequencyHz = def.Fallback.FrequencyHz
		case "fallback.duration_ms":
			cfg.Fallback.DurationMs = def.Fallback.DurationMs
		case "fallback.gain":
			cfg.Fallback.Gain = def.Fallback.Gain
		case "media.sample_rate":
			cfg.Media.SampleRate = def.Media.SampleRate
		case "log.level":
			cfg.Log.Level = def.Log.Level
		}
	}

	// Padding is checked against max_width, which may just have been reset
	if cfg.Artwork.Padding >= cfg.UI.MaxWidth {
		cfg.Artwork.Padding = def.Artwork.Padding
	}
}

// printConfigWarnings reports invalid fields on stderr
func printConfigWarnings(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: invalid config values, using defaults for:\n")
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %v\n", err)
	}
}

// loadValidatedConfig unmarshals viper's current state and repairs invalid fields
func loadValidatedConfig() (Config, []error) {
	cfg := defaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return defaultConfig(), []error{fmt.Errorf("failed to parse config: %w", err)}
	}
	errs := validateConfig(&cfg)
	applyDefaultsForInvalidFields(&cfg, errs)
	return cfg, errs
}

func initConfig() {
	def := defaultConfig()
	viper.SetDefault("ui.color", def.UI.Color)
	viper.SetDefault("ui.color_mode", def.UI.ColorMode)
	viper.SetDefault("ui.max_width", def.UI.MaxWidth)
	viper.SetDefault("artwork.enabled", def.Artwork.Enabled)
	viper.SetDefault("artwork.padding", def.Artwork.Padding)
	viper.SetDefault("artwork.width_pixels", def.Artwork.WidthPixels)
	viper.SetDefault("artwork.width_columns", def.Artwork.WidthColumns)
	viper.SetDefault("text.max_length_with_art", def.Text.MaxLengthWithArt)
	viper.SetDefault("text.max_length_no_art", def.Text.MaxLengthNoArt)
	viper.SetDefault("timing.ui_refresh_ms", def.Timing.UIRefreshMs)
	viper.SetDefault("player.volume", def.Player.Volume)
	viper.SetDefault("player.volume_step", def.Player.VolumeStep)
	viper.SetDefault("player.seek_step_seconds", def.Player.SeekStepSeconds)
	viper.SetDefault("player.resume_delay_ms", def.Player.ResumeDelayMs)
	viper.SetDefault("fallback.frequency_hz", def.Fallback.FrequencyHz)
	viper.SetDefault("fallback.duration_ms", def.Fallback.DurationMs)
	viper.SetDefault("fallback.gain", def.Fallback.Gain)
	viper.SetDefault("media.base_dir", def.Media.BaseDir)
	viper.SetDefault("media.sample_rate", def.Media.SampleRate)
	viper.SetDefault("catalog.path", def.Catalog.Path)
	viper.SetDefault("log.file", def.Log.File)
	viper.SetDefault("log.level", def.Log.Level)

	// Set config file location following XDG standard
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configHome := xdgDir("XDG_CONFIG_HOME", ".config"); configHome != "" {
		viper.AddConfigPath(filepath.Join(configHome, "melscale"))
	}

	// Environment variable support with MELSCALE_ prefix
	viper.SetEnvPrefix("MELSCALE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore error if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	cfg, errs := loadValidatedConfig()
	printConfigWarnings(errs)
	config.Set(cfg)

	// Watch for config file changes and live reload
	viper.OnConfigChange(func(e fsnotify.Event) {
		newCfg, errs := loadValidatedConfig()
		if len(errs) > 0 {
			// stderr belongs to the TUI at this point
			slog.Warn("reloaded config has invalid values", "file", e.Name, "errors", errs)
		}
		config.Set(newCfg)
		select {
		case configChangeChan <- struct{}{}:
		default:
			// Channel full, skip notification
		}
	})
	viper.WatchConfig()
}

// xdgDir returns $env, falling back to ~/fallback
func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback)
}
