package main

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/charmbracelet/bubbletea"
)

// generateTestImage creates a simple test image with specified dimensions and colors
func generateTestImage(width, height int, fillColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// generateGradientImage creates a vertical gradient test image for color extraction testing
func generateGradientImage(width, height int, startColor, endColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		ratio := float64(y) / float64(height)
		c := color.RGBA{
			R: uint8(float64(startColor.R)*(1-ratio) + float64(endColor.R)*ratio),
			G: uint8(float64(startColor.G)*(1-ratio) + float64(endColor.G)*ratio),
			B: uint8(float64(startColor.B)*(1-ratio) + float64(endColor.B)*ratio),
			A: 255,
		}
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// assertNoError is a test helper that fails the test if an error occurred
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// assertEqual is a generic test helper for comparing values
func assertEqual[T comparable](t *testing.T, got, want T, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

// isValidHexColor checks if a string is a valid hex color (e.g., "#RRGGBB")
func isValidHexColor(color string) bool {
	return len(color) == 7 && hexColorPattern.MatchString(color)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testTracks is a three track catalog with distinct URLs
func testTracks() []Track {
	return []Track{
		{Name: "One", Artist: "A", Album: "X", DurationLabel: "1:00", MediaURL: "one.mp3", CoverURL: "one.png", Lyrics: "[Verse 1]\nfirst\n\nline"},
		{Name: "Two", Artist: "B", Album: "X", DurationLabel: "2:00", MediaURL: "two.mp3", CoverURL: "two.png"},
		{Name: "Three", Artist: "C", Album: "Y", DurationLabel: "3:00", MediaURL: "three.mp3", CoverURL: "three.png"},
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog(testTracks())
	assertNoError(t, err)
	return catalog
}

type mediaLoad struct {
	gen uint64
	url string
}

// mockMedia records every command and lets tests fire events by hand
type mockMedia struct {
	events  chan MediaEvent
	loads   []mediaLoad
	plays   []string // URL loaded at the time of each Play
	pauses  int
	seeks   []float64
	volumes []float64
	playErr error
	closed  bool
}

func newMockMedia() *mockMedia {
	return &mockMedia{events: make(chan MediaEvent, 16)}
}

func (m *mockMedia) Load(gen uint64, url string) {
	m.loads = append(m.loads, mediaLoad{gen: gen, url: url})
}

func (m *mockMedia) Play() error {
	if m.playErr != nil {
		return m.playErr
	}
	m.plays = append(m.plays, m.currentURL())
	return nil
}

func (m *mockMedia) Pause()                    { m.pauses++ }
func (m *mockMedia) Seek(seconds float64)      { m.seeks = append(m.seeks, seconds) }
func (m *mockMedia) SetVolume(v float64)       { m.volumes = append(m.volumes, v) }
func (m *mockMedia) Events() <-chan MediaEvent { return m.events }

func (m *mockMedia) Close() error {
	m.closed = true
	return nil
}

func (m *mockMedia) currentURL() string {
	if len(m.loads) == 0 {
		return ""
	}
	return m.loads[len(m.loads)-1].url
}

func (m *mockMedia) lastGen() uint64 {
	if len(m.loads) == 0 {
		return 0
	}
	return m.loads[len(m.loads)-1].gen
}

type toneCall struct {
	frequency float64
	duration  time.Duration
	gain      float64
}

type fakeTone struct {
	calls []toneCall
	err   error
}

func (f *fakeTone) Play(frequency float64, duration time.Duration, gain float64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, toneCall{frequency: frequency, duration: duration, gain: gain})
	return nil
}

func testControllerOptions() ControllerOptions {
	return ControllerOptions{
		InitialVolume: 0.7,
		ResumeDelay:   0,
		ToneFrequency: 440,
		ToneDuration:  5 * time.Millisecond,
		ToneGain:      0.1,
	}
}

// newTestController returns an initialised controller over the test catalog
func newTestController(t *testing.T) (*Controller, *mockMedia, *fakeTone) {
	t.Helper()
	media := newMockMedia()
	tone := &fakeTone{}
	c := NewController(testCatalog(t), media, tone, discardLogger(), testControllerOptions())
	c.Init()
	return c, media, tone
}

// runCmd executes cmd and returns its message, failing when there is none
func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("Expected a command, got nil")
	}
	return cmd()
}

// ready fires the ready event for the controller's latest load
func ready(c *Controller, media *mockMedia) tea.Cmd {
	return c.HandleMediaEvent(MediaEvent{Gen: media.lastGen(), Kind: EventReady})
}
