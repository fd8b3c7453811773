package main

import (
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
)

// Overlay is the modal shown on top of the player, at most one at a time
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLyrics
	OverlayPlaylist
)

func (o Overlay) String() string {
	switch o {
	case OverlayLyrics:
		return "lyrics"
	case OverlayPlaylist:
		return "playlist"
	}
	return "none"
}

// PlaybackState is the whole playback session as seen by the presentation layer
type PlaybackState struct {
	CurrentTrackIndex      int
	IsPlaying              bool // Intent; may lead the media resource while it loads
	CurrentPositionSeconds float64
	DurationSeconds        float64
	Volume                 float64
	IsShuffled             bool
	IsRepeating            bool
	Liked                  map[int]bool
	IsLoading              bool
	HasError               bool
	Overlay                Overlay
}

// ControllerOptions tunes timing and the fallback tone
type ControllerOptions struct {
	InitialVolume float64
	ResumeDelay   time.Duration // Grace period between "ready" and play after a track change
	ToneFrequency float64
	ToneDuration  time.Duration
	ToneGain      float64
}

func controllerOptionsFromConfig(cfg Config) ControllerOptions {
	return ControllerOptions{
		InitialVolume: cfg.Player.Volume,
		ResumeDelay:   time.Duration(cfg.Player.ResumeDelayMs) * time.Millisecond,
		ToneFrequency: cfg.Fallback.FrequencyHz,
		ToneDuration:  time.Duration(cfg.Fallback.DurationMs) * time.Millisecond,
		ToneGain:      cfg.Fallback.Gain,
	}
}

// mediaEventMsg carries a MediaEvent into the bubbletea loop
type mediaEventMsg MediaEvent

// resumeMsg fires after the grace delay following a track change
type resumeMsg struct {
	gen uint64
}

// toneDoneMsg fires when the fallback tone has finished
type toneDoneMsg struct {
	id uint64
}

// Controller owns the playback session and the media resource.
// It is not safe for concurrent use: every call must come from the bubbletea Update loop.
type Controller struct {
	catalog *Catalog
	media   MediaResource
	tone    Tone
	logger  *slog.Logger
	opts    ControllerOptions

	state PlaybackState

	gen           uint64 // Load generation, bumped on every track change
	resumePending bool   // Play once the current generation reports ready
	toneID        uint64
	toneActive    bool
}

// NewController creates the session at track 0, paused
func NewController(catalog *Catalog, media MediaResource, tone Tone, logger *slog.Logger, opts ControllerOptions) *Controller {
	return &Controller{
		catalog: catalog,
		media:   media,
		tone:    tone,
		logger:  logger,
		opts:    opts,
		state: PlaybackState{
			Volume: clampVolume(opts.InitialVolume),
			Liked:  make(map[int]bool),
		},
	}
}

// Init points the media resource at the first track
func (c *Controller) Init() {
	c.loadCurrent()
}

// SetOptions replaces timing and tone settings; the current volume is kept
func (c *Controller) SetOptions(opts ControllerOptions) {
	c.opts = opts
}

// Snapshot returns a copy of the state that callers may keep
func (c *Controller) Snapshot() PlaybackState {
	s := c.state
	s.Liked = maps.Clone(c.state.Liked)
	return s
}

func (c *Controller) Catalog() *Catalog {
	return c.catalog
}

// CurrentTrack returns the selected track
func (c *Controller) CurrentTrack() Track {
	return c.catalog.Get(c.state.CurrentTrackIndex)
}

// SelectTrack jumps to index (modulo the catalog length) and rewinds to 0
func (c *Controller) SelectTrack(index int) {
	c.changeTrack(c.catalog.normalize(index))
}

// PickFromPlaylist selects a track and closes the playlist
func (c *Controller) PickFromPlaylist(index int) {
	c.SelectTrack(index)
	c.CloseOverlay()
}

// TogglePlayPause pauses when playing; otherwise tries to start playback and
// falls back to an audible tone when the media resource refuses
func (c *Controller) TogglePlayPause() tea.Cmd {
	if c.state.IsPlaying {
		c.media.Pause()
		c.state.IsPlaying = false
		c.resumePending = false
		c.toneActive = false
		return nil
	}

	c.state.IsLoading = true
	if err := c.media.Play(); err != nil {
		c.logger.Error("playback failed", "track", c.CurrentTrack().Name, "error", err)
		c.state.HasError = true
		c.state.IsLoading = false
		return c.playFallbackTone()
	}

	c.state.IsPlaying = true
	c.state.IsLoading = false
	c.state.HasError = false
	return nil
}

// Next advances one track with wraparound, or to a random other track when shuffled
func (c *Controller) Next() {
	c.changeTrack(c.step(1))
}

// Previous goes back one track with wraparound, or to a random other track when shuffled
func (c *Controller) Previous() {
	c.changeTrack(c.step(-1))
}

// SeekTo moves to seconds, clamped into the known duration.
// The position is updated immediately without waiting for the media resource.
func (c *Controller) SeekTo(seconds float64) {
	if c.state.DurationSeconds <= 0 || math.IsNaN(seconds) {
		return
	}
	target := lo.Clamp(seconds, 0, c.state.DurationSeconds)
	c.media.Seek(target)
	c.state.CurrentPositionSeconds = target
}

// SeekFraction seeks to a fraction of the duration, e.g. from a click on a progress bar
func (c *Controller) SeekFraction(fraction float64) {
	c.SeekTo(fraction * c.state.DurationSeconds)
}

// SeekBy seeks relative to the current position
func (c *Controller) SeekBy(delta float64) {
	c.SeekTo(c.state.CurrentPositionSeconds + delta)
}

// SetVolume stores v clamped into [0,1] and applies it to the media resource
func (c *Controller) SetVolume(v float64) {
	c.state.Volume = clampVolume(v)
	c.media.SetVolume(c.state.Volume)
}

func (c *Controller) AdjustVolume(delta float64) {
	c.SetVolume(c.state.Volume + delta)
}

func (c *Controller) ToggleShuffle() {
	c.state.IsShuffled = !c.state.IsShuffled
}

func (c *Controller) ToggleRepeat() {
	c.state.IsRepeating = !c.state.IsRepeating
}

// ToggleLike flips the liked flag of the track at index (modulo the catalog length)
func (c *Controller) ToggleLike(index int) {
	i := c.catalog.normalize(index)
	c.state.Liked[i] = !c.state.Liked[i]
}

func (c *Controller) ToggleLikeCurrent() {
	c.ToggleLike(c.state.CurrentTrackIndex)
}

// OpenOverlay shows kind, replacing any other overlay
func (c *Controller) OpenOverlay(kind Overlay) {
	c.state.Overlay = kind
}

func (c *Controller) CloseOverlay() {
	c.state.Overlay = OverlayNone
}

// ToggleOverlay opens kind, or closes it when it is already showing
func (c *Controller) ToggleOverlay(kind Overlay) {
	if c.state.Overlay == kind {
		c.CloseOverlay()
		return
	}
	c.OpenOverlay(kind)
}

// Update handles the controller's own messages. handled is false for anything else.
func (c *Controller) Update(msg tea.Msg) (cmd tea.Cmd, handled bool) {
	switch msg := msg.(type) {
	case mediaEventMsg:
		return c.HandleMediaEvent(MediaEvent(msg)), true
	case resumeMsg:
		c.resume(msg.gen)
		return nil, true
	case toneDoneMsg:
		if msg.id == c.toneID && c.toneActive {
			c.toneActive = false
			c.state.IsPlaying = false
		}
		return nil, true
	}
	return nil, false
}

// HandleMediaEvent applies feedback from the media resource.
// Events from a superseded load are dropped.
func (c *Controller) HandleMediaEvent(ev MediaEvent) tea.Cmd {
	if ev.Gen != c.gen {
		c.logger.Debug("dropping stale media event", "event", ev.Kind, "gen", ev.Gen, "current", c.gen)
		return nil
	}

	switch ev.Kind {
	case EventTimeAdvanced:
		c.state.CurrentPositionSeconds = ev.Value
	case EventDurationKnown:
		c.state.DurationSeconds = ev.Value
	case EventLoadStarted:
		c.state.IsLoading = true
	case EventReady:
		c.state.IsLoading = false
		c.state.HasError = false
		if c.resumePending {
			c.resumePending = false
			gen := c.gen
			return tea.Tick(c.opts.ResumeDelay, func(time.Time) tea.Msg {
				return resumeMsg{gen: gen}
			})
		}
	case EventError:
		c.logger.Error("media error", "track", c.CurrentTrack().Name, "error", ev.Err)
		c.state.IsLoading = false
		c.state.HasError = true
		c.resumePending = false
	case EventEnded:
		c.onPlaybackEnded()
	}
	return nil
}

// onPlaybackEnded repeats, advances or stops. Running off the last track only
// continues when shuffled; unlike Next it never wraps to the first track.
func (c *Controller) onPlaybackEnded() {
	switch {
	case c.state.IsRepeating:
		c.state.CurrentPositionSeconds = 0
		c.media.Seek(0)
		c.playNow()
	case c.state.CurrentTrackIndex < c.catalog.Len()-1:
		c.changeTrack(c.state.CurrentTrackIndex + 1)
	case c.state.IsShuffled:
		c.changeTrack(c.randomOther())
	default:
		c.state.IsPlaying = false
		c.state.CurrentPositionSeconds = 0
		c.media.Seek(0)
	}
}

func (c *Controller) changeTrack(index int) {
	c.state.CurrentPositionSeconds = 0
	if index == c.state.CurrentTrackIndex {
		c.media.Seek(0)
		if c.state.IsPlaying && !c.toneActive {
			c.playNow()
		}
		return
	}

	c.state.CurrentTrackIndex = index
	c.state.DurationSeconds = 0
	c.loadCurrent()
}

// loadCurrent points the media resource at the current track under a new generation
func (c *Controller) loadCurrent() {
	c.gen++
	c.resumePending = c.state.IsPlaying && !c.toneActive
	c.media.Load(c.gen, c.CurrentTrack().MediaURL)
	c.media.SetVolume(c.state.Volume)
}

func (c *Controller) resume(gen uint64) {
	if gen != c.gen || !c.state.IsPlaying {
		return
	}
	c.playNow()
}

func (c *Controller) playNow() {
	if err := c.media.Play(); err != nil {
		c.logger.Error("playback failed", "track", c.CurrentTrack().Name, "error", err)
		c.state.HasError = true
		c.state.IsPlaying = false
	}
}

func (c *Controller) playFallbackTone() tea.Cmd {
	if err := c.tone.Play(c.opts.ToneFrequency, c.opts.ToneDuration, c.opts.ToneGain); err != nil {
		c.logger.Warn("fallback tone failed", "error", err)
		return nil
	}

	c.toneID++
	c.toneActive = true
	c.state.IsPlaying = true
	id := c.toneID
	return tea.Tick(c.opts.ToneDuration, func(time.Time) tea.Msg {
		return toneDoneMsg{id: id}
	})
}

func (c *Controller) step(delta int) int {
	if c.state.IsShuffled {
		return c.randomOther()
	}
	return c.catalog.normalize(c.state.CurrentTrackIndex + delta)
}

// randomOther picks uniformly among the other tracks; with one track it stays put
func (c *Controller) randomOther() int {
	n := c.catalog.Len()
	if n == 1 {
		return c.state.CurrentTrackIndex
	}
	return lo.Sample(lo.Without(lo.Range(n), c.state.CurrentTrackIndex))
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return lo.Clamp(v, 0, 1)
}
