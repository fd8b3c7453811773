package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles bundles the lipgloss styles derived from the accent color
type styles struct {
	highlight lipgloss.Style
	white     lipgloss.Style
	label     lipgloss.Style
	muted     lipgloss.Style
	dim       lipgloss.Style
	errorText lipgloss.Style
	border    lipgloss.Style
}

func newStyles(accent string, width int) styles {
	color := lipgloss.Color(accent)
	return styles{
		highlight: lipgloss.NewStyle().Foreground(color),
		white:     lipgloss.NewStyle().Foreground(lipgloss.Color("15")), // ANSI white
		label:     lipgloss.NewStyle().Foreground(color).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		errorText: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(1, 2).
			Width(width),
	}
}

func (m model) View() string {
	cfg := config.Get()
	st := newStyles(m.color, cfg.UI.MaxWidth)
	state := m.player.Snapshot()

	var card string
	switch state.Overlay {
	case OverlayLyrics:
		card = m.lyricsView(st)
	case OverlayPlaylist:
		card = m.playlistView(st, state)
	default:
		card = m.playerView(st, state)
	}

	// Overlays hide the cover, so any placed image has to go
	if m.supportsKitty && (state.Overlay != OverlayNone || !m.showingArtwork()) {
		card = kittyDeleteAll + card
	}

	fullUI := lipgloss.JoinVertical(lipgloss.Center, card, "\n"+m.helpView(st, state))
	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		fullUI,
	)
}

func (m model) playerView(st styles, state PlaybackState) string {
	cfg := config.Get()
	track := m.player.CurrentTrack()
	maxLen := m.maxTextLen()

	var text strings.Builder
	text.WriteString(st.highlight.Render("󰓃 Now Playing") + "  " + statusDot(st, state) + "\n\n")

	addLine := func(label, value string) {
		if value != "" {
			text.WriteString(fmt.Sprintf("%s %s\n", st.label.Render(label), value))
		}
	}
	addLine("󰎈 ", scrollText(track.Name, maxLen, m.scrollOffset))
	addLine("󰠃 ", scrollText(track.Artist, maxLen, m.scrollOffset))
	addLine("󰀥 ", scrollText(track.Album, maxLen, m.scrollOffset))
	addLine(statusIcon(state), statusText(state))

	var top string
	if m.showingArtwork() {
		padded := lipgloss.NewStyle().
			PaddingLeft(cfg.Artwork.Padding).
			Render(text.String())
		top = m.artworkEncoded + padded
	} else {
		top = text.String()
	}

	barWidth := max(cfg.UI.MaxWidth-19, 10)
	var bottom strings.Builder
	bottom.WriteString("\n" + progressLine(st, state, track, barWidth))
	bottom.WriteString("\n" + volumeLine(st, state.Volume, barWidth))
	bottom.WriteString("\n" + flagsLine(st, state))
	if state.HasError {
		bottom.WriteString("\n\n" + st.errorText.Render("Audio playback failed. Press p to retry."))
	}

	return st.border.Render(top + bottom.String())
}

func statusDot(st styles, state PlaybackState) string {
	switch {
	case state.HasError:
		return st.errorText.Render("●")
	case state.IsLoading:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("●")
	case state.IsPlaying:
		return st.highlight.Render("●")
	}
	return st.muted.Render("●")
}

func statusIcon(state PlaybackState) string {
	switch {
	case state.IsLoading:
		return "󰦖 "
	case state.IsPlaying:
		return "󰐊 "
	}
	return "󰏤 "
}

func statusText(state PlaybackState) string {
	switch {
	case state.IsLoading:
		return "Loading"
	case state.IsPlaying:
		return "Playing"
	}
	return "Paused"
}

// progressLine draws the position bar; until the media reports a duration the catalog label is shown
func progressLine(st styles, state PlaybackState, track Track, width int) string {
	var progress float64
	total := track.DurationLabel
	if state.DurationSeconds > 0 {
		progress = min(max(state.CurrentPositionSeconds/state.DurationSeconds, 0), 1)
		total = formatSeconds(state.DurationSeconds)
	}

	filled := int(float64(width) * progress)
	bar := st.highlight.Render(strings.Repeat("█", filled)) +
		st.white.Render(strings.Repeat("─", width-filled))

	return fmt.Sprintf("%s %s/%s",
		bar,
		st.highlight.Render(formatSeconds(state.CurrentPositionSeconds)),
		st.highlight.Render(total),
	)
}

func volumeLine(st styles, volume float64, width int) string {
	filled := int(float64(width) * volume)
	bar := st.highlight.Render(strings.Repeat("▮", filled)) +
		st.muted.Render(strings.Repeat("▯", width-filled))
	return fmt.Sprintf("%s %s", bar, st.dim.Render(fmt.Sprintf("󰕾 %3.0f%%", volume*100)))
}

func flagsLine(st styles, state PlaybackState) string {
	flag := func(on bool, label string) string {
		if on {
			return st.label.Render(label)
		}
		return st.muted.Render(label)
	}
	return strings.Join([]string{
		flag(state.IsShuffled, "󰒟 Shuffle"),
		flag(state.IsRepeating, "󰑖 Repeat"),
		flag(state.Liked[state.CurrentTrackIndex], "󰋑 Liked"),
	}, "   ")
}

func (m model) lyricsView(st styles) string {
	track := m.player.CurrentTrack()

	var b strings.Builder
	b.WriteString(st.label.Render("Lyrics") + " " + st.dim.Render(track.Name) + "\n\n")
	lines := track.LyricLines()
	if len(lines) == 0 {
		b.WriteString(st.muted.Render("No lyrics for this track"))
	}
	for _, line := range lines {
		// Section markers like [Verse 1]
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			b.WriteString(st.highlight.Render(line) + "\n")
			continue
		}
		b.WriteString(line + "\n")
	}
	return st.border.Render(strings.TrimRight(b.String(), "\n"))
}

func (m model) playlistView(st styles, state PlaybackState) string {
	var b strings.Builder
	b.WriteString(st.label.Render("Playlist") + "\n\n")

	for i, track := range m.player.Catalog().Tracks() {
		cursor := "  "
		if i == m.playlistCursor {
			cursor = st.highlight.Render("> ")
		}
		name := track.Name
		if i == state.CurrentTrackIndex {
			name = st.label.Render("♪ " + name)
		}
		heart := st.muted.Render("󰋕")
		if state.Liked[i] {
			heart = st.errorText.Render("󰋑")
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n    %s  %s\n",
			cursor, heart, name,
			st.dim.Render(track.Artist+" • "+track.Album),
			st.muted.Render(track.DurationLabel),
		))
	}
	return st.border.Render(strings.TrimRight(b.String(), "\n"))
}

func (m model) helpView(st styles, state PlaybackState) string {
	cfg := config.Get()
	if !m.showHelp {
		return st.muted.Render("Press ? for help")
	}

	key := func(label, k string) string {
		return label + ": " + st.highlight.Render(k)
	}
	var entries []string
	if state.Overlay == OverlayPlaylist {
		entries = []string{
			key("Move", "↑/↓"), key("Play", "enter"), key("Like", "x"), key("Close", "esc"),
		}
	} else {
		entries = []string{
			key("Play/Pause", "p"), key("Next", "n"), key("Previous", "b"),
			key("Seek", "←/→"), key("Volume", "+/-"), key("Shuffle", "s"),
			key("Repeat", "r"), key("Like", "l"), key("Lyrics", "y"),
			key("Playlist", "o"), key("Toggle Art", "a"), key("Quit", "q"),
		}
	}
	return lipgloss.NewStyle().
		Width(cfg.UI.MaxWidth).
		Align(lipgloss.Center).
		Render(strings.Join(entries, "  "))
}
