package main

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbletea"
)

// model is the Bubble Tea model for the TUI application
type model struct {
	player *Controller
	media  MediaResource

	color  string
	width  int
	height int

	// Album artwork support
	supportsKitty  bool
	artworkEncoded string              // Kitty-encoded cover of the current track
	covers         map[string]coverMsg // Loaded covers by URL, failures included

	// Text scrolling state
	trackIndex   int // Track the scroll state belongs to
	scrollOffset int // Current scroll position for text animation
	scrollPause  int // Pause counter at start/end of scroll
	scrollTick   int // Tick counter for slowing scroll speed

	// UI state
	playlistCursor int
	showHelp       bool
}

// UI refresh tick - drives text scrolling
type tickMsg time.Time

func newModel(player *Controller, media MediaResource, supportsKitty bool) model {
	cfg := config.Get()
	return model{
		player:        player,
		media:         media,
		color:         cfg.UI.Color,
		supportsKitty: supportsKitty,
		covers:        make(map[string]coverMsg),
		trackIndex:    player.Snapshot().CurrentTrackIndex,
		scrollPause:   30,
	}
}

// Schedule next UI refresh tick
func tickCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.UIRefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForMediaEvent turns the next media event into a message
func waitForMediaEvent(events <-chan MediaEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return mediaEventMsg(ev)
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForMediaEvent(m.media.Events()),
		watchConfigCmd(),
		m.coverCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.player.Update(msg); ok {
		if _, isEvent := msg.(mediaEventMsg); isEvent {
			// Keep listening
			cmd = tea.Batch(cmd, waitForMediaEvent(m.media.Events()))
		}
		return m.afterPlayerChange(cmd)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case configReloadMsg:
		cfg := config.Get()
		slog.Info("config reloaded")
		m.player.SetOptions(controllerOptionsFromConfig(cfg))
		if cfg.UI.ColorMode == "manual" {
			m.color = cfg.UI.Color
		}
		cmd := m.showCover()
		return m, tea.Batch(watchConfigCmd(), cmd)

	case tickMsg:
		m.advanceScroll()
		return m, tickCmd()

	case coverMsg:
		if msg.err != nil {
			slog.Debug("cover unavailable", "url", msg.url, "error", msg.err)
		}
		m.covers[msg.url] = msg
		if msg.url == m.player.CurrentTrack().CoverURL {
			m.applyCover(msg)
		}
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cfg := config.Get()
	state := m.player.Snapshot()

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if state.Overlay == OverlayPlaylist {
		n := m.player.Catalog().Len()
		switch msg.String() {
		case "up", "k":
			m.playlistCursor = (m.playlistCursor - 1 + n) % n
		case "down", "j":
			m.playlistCursor = (m.playlistCursor + 1) % n
		case "enter":
			m.player.PickFromPlaylist(m.playlistCursor)
		case "x":
			m.player.ToggleLike(m.playlistCursor)
		case "esc", "o":
			m.player.CloseOverlay()
		case "q":
			return m, tea.Quit
		}
		return m.afterPlayerChange(nil)
	}

	var cmd tea.Cmd
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case " ", "p":
		cmd = m.player.TogglePlayPause()
	case "n":
		m.player.Next()
	case "b":
		m.player.Previous()
	case "left", "h":
		m.player.SeekBy(-cfg.Player.SeekStepSeconds)
	case "right":
		m.player.SeekBy(cfg.Player.SeekStepSeconds)
	case "+", "=":
		m.player.AdjustVolume(cfg.Player.VolumeStep)
	case "-", "_":
		m.player.AdjustVolume(-cfg.Player.VolumeStep)
	case "s":
		m.player.ToggleShuffle()
	case "r":
		m.player.ToggleRepeat()
	case "l":
		m.player.ToggleLikeCurrent()
	case "y":
		m.player.ToggleOverlay(OverlayLyrics)
	case "o":
		m.playlistCursor = state.CurrentTrackIndex
		m.player.OpenOverlay(OverlayPlaylist)
	case "esc":
		m.player.CloseOverlay()
	case "a":
		// Toggle artwork on/off
		cfg.Artwork.Enabled = !cfg.Artwork.Enabled
		config.Set(cfg)
		cmd = m.showCover()
	case "?":
		m.showHelp = !m.showHelp
	}
	return m.afterPlayerChange(cmd)
}

// afterPlayerChange resets per-track UI state when the controller moved to another track
func (m model) afterPlayerChange(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	index := m.player.Snapshot().CurrentTrackIndex
	if index == m.trackIndex {
		return m, cmd
	}

	m.trackIndex = index
	m.scrollOffset = 0
	m.scrollPause = 30 // Pause at start for 3 seconds
	m.scrollTick = 0
	loadCover := m.showCover()
	return m, tea.Batch(cmd, loadCover)
}

// showCover displays the current track's cover from cache, or starts loading it
func (m *model) showCover() tea.Cmd {
	cfg := config.Get()
	if !m.supportsKitty || !cfg.Artwork.Enabled {
		m.artworkEncoded = ""
		return nil
	}

	url := m.player.CurrentTrack().CoverURL
	if cached, ok := m.covers[url]; ok {
		m.applyCover(cached)
		return nil
	}
	m.artworkEncoded = ""
	return m.coverCmd()
}

func (m model) coverCmd() tea.Cmd {
	cfg := config.Get()
	url := m.player.CurrentTrack().CoverURL
	if !m.supportsKitty || !cfg.Artwork.Enabled || url == "" {
		return nil
	}
	return loadCoverCmd(url, cfg.UI.ColorMode == "auto")
}

func (m *model) applyCover(cover coverMsg) {
	cfg := config.Get()
	m.artworkEncoded = cover.encoded
	if cfg.UI.ColorMode == "auto" && cover.color != "" {
		m.color = cover.color
	} else {
		m.color = cfg.UI.Color
	}
}

// advanceScroll moves the title/artist/album marquee one step every third tick
func (m *model) advanceScroll() {
	m.scrollTick++
	if m.scrollPause > 0 {
		m.scrollPause--
		return
	}
	if m.scrollTick%3 != 0 {
		return
	}
	m.scrollOffset++

	track := m.player.CurrentTrack()
	longest := 0
	for _, s := range []string{track.Name, track.Artist, track.Album} {
		longest = max(longest, len([]rune(s)))
	}
	if longest > m.maxTextLen() && m.scrollOffset >= longest+len([]rune(scrollSeparator)) {
		m.scrollOffset = 0
		m.scrollPause = 30 // Pause for 3 seconds when looping back
	}
}

func (m model) maxTextLen() int {
	cfg := config.Get()
	if m.showingArtwork() {
		return cfg.Text.MaxLengthWithArt
	}
	return cfg.Text.MaxLengthNoArt
}

func (m model) showingArtwork() bool {
	return m.supportsKitty && config.Get().Artwork.Enabled && m.artworkEncoded != ""
}
