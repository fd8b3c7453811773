package main

import (
	"errors"
	"sync"
	"testing"

	"github.com/spf13/viper"
)

// TestSafeConfigConcurrency tests that SafeConfig can be safely accessed from multiple goroutines
func TestSafeConfigConcurrency(t *testing.T) {
	sc := &SafeConfig{cfg: defaultConfig()}

	var wg sync.WaitGroup

	// Start 10 writers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cfg := defaultConfig()
				cfg.UI.Color = string(rune('0' + (id % 10)))
				cfg.Player.Volume = float64(j) / 100
				cfg.Artwork.Enabled = (j % 2) == 0
				sc.Set(cfg)
			}
		}(i)
	}

	// Start 10 readers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cfg := sc.Get()
				_ = cfg.UI.Color
				_ = cfg.Player.Volume
				_ = cfg.Artwork.Enabled
			}
		}()
	}

	wg.Wait()
}

// TestSafeConfigGetReturnsCopy tests that Get() returns a copy, not a reference
func TestSafeConfigGetReturnsCopy(t *testing.T) {
	sc := &SafeConfig{}

	cfg := defaultConfig()
	cfg.UI.Color = "1"
	cfg.Player.Volume = 0.4
	sc.Set(cfg)

	retrieved := sc.Get()
	retrieved.UI.Color = "9"
	retrieved.Player.Volume = 1

	again := sc.Get()
	assertEqual(t, again.UI.Color, "1", "color")
	assertEqual(t, again.Player.Volume, 0.4, "volume")
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if errs := validateConfig(&cfg); len(errs) > 0 {
		t.Errorf("Expected default config to be valid, got %v", errs)
	}
	assertEqual(t, cfg.Player.Volume, 0.7, "volume")
	assertEqual(t, cfg.Fallback.FrequencyHz, 440.0, "tone frequency")
	assertEqual(t, cfg.Fallback.DurationMs, 2000, "tone duration")
	assertEqual(t, cfg.Fallback.Gain, 0.1, "tone gain")
}

// TestIsValidColor tests the color validation function
func TestIsValidColor(t *testing.T) {
	tests := []struct {
		name  string
		color string
		valid bool
	}{
		// ANSI codes
		{"ansi single digit", "1", true},
		{"ansi double digit", "15", true},
		{"ansi triple digit", "255", true},
		{"ansi zero", "0", true},
		{"ansi out of range", "256", false},
		{"ansi with letter", "1a", false},
		{"ansi too long", "0001", false},

		// Hex colors
		{"hex 6 digits", "#FF5733", true},
		{"hex lowercase", "#ff5733", true},
		{"hex 3 digits", "#F00", true},
		{"hex mixed case", "#Ff5733", true},
		{"hex no hash", "FF5733", false},
		{"hex invalid char", "#GG5733", false},
		{"hex wrong length", "#FF57", false},

		// Edge cases
		{"empty", "", false},
		{"just hash", "#", false},
		{"spaces", " 1 ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isValidColor(tt.color)
			if result != tt.valid {
				t.Errorf("isValidColor(%q) = %v; want %v", tt.color, result, tt.valid)
			}
		})
	}
}

// TestValidateConfig checks that each invalid field is reported by name
func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		field  string
	}{
		{"invalid color", func(cfg *Config) { cfg.UI.Color = "invalid" }, "ui.color"},
		{"invalid color_mode", func(cfg *Config) { cfg.UI.ColorMode = "invalid" }, "ui.color_mode"},
		{"max_width too small", func(cfg *Config) { cfg.UI.MaxWidth = 10; cfg.Artwork.Padding = 5 }, "ui.max_width"},
		{"negative padding", func(cfg *Config) { cfg.Artwork.Padding = -5 }, "artwork.padding"},
		{"padding exceeds max_width", func(cfg *Config) { cfg.Artwork.Padding = 50 }, "artwork.padding"},
		{"width_pixels zero", func(cfg *Config) { cfg.Artwork.WidthPixels = 0 }, "artwork.width_pixels"},
		{"width_columns zero", func(cfg *Config) { cfg.Artwork.WidthColumns = 0 }, "artwork.width_columns"},
		{"max_length_with_art zero", func(cfg *Config) { cfg.Text.MaxLengthWithArt = 0 }, "text.max_length_with_art"},
		{"max_length_no_art too long", func(cfg *Config) { cfg.Text.MaxLengthNoArt = 300 }, "text.max_length_no_art"},
		{"ui_refresh_ms too fast", func(cfg *Config) { cfg.Timing.UIRefreshMs = 5 }, "timing.ui_refresh_ms"},
		{"volume above one", func(cfg *Config) { cfg.Player.Volume = 1.5 }, "player.volume"},
		{"volume_step zero", func(cfg *Config) { cfg.Player.VolumeStep = 0 }, "player.volume_step"},
		{"seek step negative", func(cfg *Config) { cfg.Player.SeekStepSeconds = -1 }, "player.seek_step_seconds"},
		{"resume delay negative", func(cfg *Config) { cfg.Player.ResumeDelayMs = -1 }, "player.resume_delay_ms"},
		{"tone frequency inaudible", func(cfg *Config) { cfg.Fallback.FrequencyHz = 5 }, "fallback.frequency_hz"},
		{"tone duration zero", func(cfg *Config) { cfg.Fallback.DurationMs = 0 }, "fallback.duration_ms"},
		{"tone gain above one", func(cfg *Config) { cfg.Fallback.Gain = 2 }, "fallback.gain"},
		{"sample rate too low", func(cfg *Config) { cfg.Media.SampleRate = 100 }, "media.sample_rate"},
		{"unknown log level", func(cfg *Config) { cfg.Log.Level = "verbose" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)

			errs := validateConfig(&cfg)
			if len(errs) != 1 {
				t.Fatalf("Expected exactly one error, got %d: %v", len(errs), errs)
			}
			var ce configError
			if !errors.As(errs[0], &ce) {
				t.Fatalf("Expected configError, got %T", errs[0])
			}
			assertEqual(t, ce.field, tt.field, "field")
		})
	}
}

func TestValidateConfigLogLevelIgnoresCase(t *testing.T) {
	cfg := defaultConfig()
	cfg.Log.Level = "DEBUG"
	if errs := validateConfig(&cfg); len(errs) > 0 {
		t.Errorf("Expected upper-case level to be accepted, got %v", errs)
	}
}

// TestApplyDefaultsForInvalidFields runs the full repair flow: validate, apply defaults, re-validate
func TestApplyDefaultsForInvalidFields(t *testing.T) {
	cfg := defaultConfig()
	cfg.UI.Color = "999"
	cfg.UI.ColorMode = "invalid"
	cfg.UI.MaxWidth = 10
	cfg.Artwork.Padding = -5
	cfg.Artwork.WidthPixels = 0
	cfg.Text.MaxLengthWithArt = 0
	cfg.Text.MaxLengthNoArt = 300
	cfg.Timing.UIRefreshMs = 5
	cfg.Player.Volume = -1
	cfg.Fallback.Gain = 3
	cfg.Log.Level = "loud"

	// Valid values must survive the repair
	cfg.Player.SeekStepSeconds = 10
	cfg.Catalog.Path = "/srv/catalog.yaml"

	errs := validateConfig(&cfg)
	if len(errs) < 11 {
		t.Errorf("Expected at least 11 errors, got %d: %v", len(errs), errs)
	}

	applyDefaultsForInvalidFields(&cfg, errs)

	if newErrs := validateConfig(&cfg); len(newErrs) > 0 {
		t.Errorf("Expected no errors after applying defaults, got %d: %v", len(newErrs), newErrs)
	}

	def := defaultConfig()
	assertEqual(t, cfg.UI.Color, def.UI.Color, "color")
	assertEqual(t, cfg.UI.ColorMode, def.UI.ColorMode, "color_mode")
	assertEqual(t, cfg.UI.MaxWidth, def.UI.MaxWidth, "max_width")
	assertEqual(t, cfg.Artwork.Padding, def.Artwork.Padding, "padding")
	assertEqual(t, cfg.Artwork.WidthPixels, def.Artwork.WidthPixels, "width_pixels")
	assertEqual(t, cfg.Text.MaxLengthWithArt, def.Text.MaxLengthWithArt, "max_length_with_art")
	assertEqual(t, cfg.Text.MaxLengthNoArt, def.Text.MaxLengthNoArt, "max_length_no_art")
	assertEqual(t, cfg.Timing.UIRefreshMs, def.Timing.UIRefreshMs, "ui_refresh_ms")
	assertEqual(t, cfg.Player.Volume, def.Player.Volume, "volume")
	assertEqual(t, cfg.Fallback.Gain, def.Fallback.Gain, "gain")
	assertEqual(t, cfg.Log.Level, def.Log.Level, "log level")

	assertEqual(t, cfg.Player.SeekStepSeconds, 10.0, "seek step")
	assertEqual(t, cfg.Catalog.Path, "/srv/catalog.yaml", "catalog path")
}

func TestApplyDefaultsRepairsPaddingAfterWidthReset(t *testing.T) {
	cfg := defaultConfig()
	cfg.UI.MaxWidth = 500
	cfg.Artwork.Padding = 100

	errs := validateConfig(&cfg)
	applyDefaultsForInvalidFields(&cfg, errs)

	assertEqual(t, cfg.UI.MaxWidth, 50, "max_width")
	assertEqual(t, cfg.Artwork.Padding, 16, "padding")
	if newErrs := validateConfig(&cfg); len(newErrs) > 0 {
		t.Errorf("Expected no errors after repair, got %v", newErrs)
	}
}

func TestPrintConfigWarnings(t *testing.T) {
	errs := []error{
		configError{field: "ui.max_width", message: "must be between 20 and 200 (got 5)"},
		configError{field: "ui.color", message: "invalid color format 'notacolor'"},
	}

	// Output goes to stderr; just verify it doesn't panic
	printConfigWarnings(errs)
	printConfigWarnings(nil)
}

func TestConfigErrorMessage(t *testing.T) {
	err := configError{field: "player.volume", message: "must be between 0 and 1 (got 2)"}
	assertEqual(t, err.Error(), "player.volume: must be between 0 and 1 (got 2)", "message")
}

func TestLoadValidatedConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("ui.color", "#abc")
	viper.Set("player.volume", 0.25)
	viper.Set("fallback.frequency_hz", 1)
	viper.Set("catalog.path", "/tmp/catalog.yaml")

	cfg, errs := loadValidatedConfig()

	if len(errs) != 1 {
		t.Fatalf("Expected one error, got %v", errs)
	}
	assertEqual(t, cfg.UI.Color, "#abc", "color")
	assertEqual(t, cfg.Player.Volume, 0.25, "volume")
	assertEqual(t, cfg.Fallback.FrequencyHz, 440.0, "frequency repaired")
	assertEqual(t, cfg.Catalog.Path, "/tmp/catalog.yaml", "catalog path")
	assertEqual(t, cfg.Timing.UIRefreshMs, 100, "unset field keeps default")
}

func TestXDGDir(t *testing.T) {
	t.Setenv("MELSCALE_TEST_DIR", "/custom/dir")
	assertEqual(t, xdgDir("MELSCALE_TEST_DIR", ".config"), "/custom/dir", "explicit env")

	t.Setenv("MELSCALE_TEST_DIR", "")
	t.Setenv("HOME", "/home/tester")
	assertEqual(t, xdgDir("MELSCALE_TEST_DIR", ".config"), "/home/tester/.config", "home fallback")
}
