//go:build (linux && cgo) || windows || darwin

package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/samber/lo"
)

// How often TimeAdvanced is reported while playing
const positionInterval = 250 * time.Millisecond

var (
	speakerOnce sync.Once
	speakerErr  error
)

// playChain is the effect chain feeding one pass over a track to the speaker.
// A resampler stays drained once its source ran out, so every restart or seek
// builds a new chain over the decoder.
type playChain struct {
	ctrl   *beep.Ctrl
	volume *effects.Volume
	output beep.Streamer // What the speaker mixes: ctrl followed by the end callback
}

// loadedTrack is the decoder of one loaded track and its current chain
type loadedTrack struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	chain    *playChain
	ended    bool
}

// speakerMedia plays tracks through the system speaker with beep
type speakerMedia struct {
	mu sync.Mutex

	sampleRate beep.SampleRate
	client     *http.Client
	logger     *slog.Logger
	queue      *eventQueue
	done       chan struct{}

	gen           uint64
	track         *loadedTrack
	loading       bool
	loadErr       error
	playWhenReady bool
	volume        float64
}

func initSpeaker(sampleRate beep.SampleRate) error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	return speakerErr
}

func newSpeakerMedia(rate int, logger *slog.Logger) (MediaResource, Tone, error) {
	sampleRate := beep.SampleRate(rate)
	if err := initSpeaker(sampleRate); err != nil {
		return nil, nil, fmt.Errorf("failed to init speaker: %w", err)
	}

	return openSpeakerMedia(sampleRate, logger), speakerTone{sampleRate: sampleRate}, nil
}

// openSpeakerMedia builds the media resource over an initialised speaker
func openSpeakerMedia(sampleRate beep.SampleRate, logger *slog.Logger) *speakerMedia {
	m := &speakerMedia{
		sampleRate: sampleRate,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		queue:      newEventQueue(),
		done:       make(chan struct{}),
		volume:     1,
	}
	go m.reportPosition()
	return m
}

func (m *speakerMedia) Events() <-chan MediaEvent {
	return m.queue.out
}

// Load drops the current track and decodes url in the background
func (m *speakerMedia) Load(gen uint64, url string) {
	m.mu.Lock()
	m.closeTrackLocked()
	m.gen = gen
	m.loading = true
	m.loadErr = nil
	m.playWhenReady = false
	m.mu.Unlock()

	m.emit(MediaEvent{Gen: gen, Kind: EventLoadStarted})
	go m.decode(gen, url)
}

func (m *speakerMedia) decode(gen uint64, url string) {
	streamer, format, err := m.open(url)
	if err != nil {
		m.mu.Lock()
		stale := gen != m.gen
		if !stale {
			m.loading = false
			m.loadErr = err
		}
		m.mu.Unlock()
		if !stale {
			m.emit(MediaEvent{Gen: gen, Kind: EventError, Err: err})
		}
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		streamer.Close()
		return
	}

	track := &loadedTrack{streamer: streamer, format: format}
	m.track = track
	m.loading = false
	m.startLocked(gen, track, !m.playWhenReady)
	m.playWhenReady = false
	duration := format.SampleRate.D(streamer.Len()).Seconds()
	m.mu.Unlock()

	m.emit(MediaEvent{Gen: gen, Kind: EventDurationKnown, Value: duration})
	m.emit(MediaEvent{Gen: gen, Kind: EventReady})
}

// open fetches and decodes url. Remote tracks are buffered in memory so they stay seekable.
func (m *speakerMedia) open(rawURL string) (beep.StreamSeekCloser, beep.Format, error) {
	var rc io.ReadCloser
	switch {
	case strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://"):
		resp, err := m.client.Get(rawURL)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("download %s: %w", rawURL, ErrMediaUnavailable)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, beep.Format{}, fmt.Errorf("download %s: status %d: %w", rawURL, resp.StatusCode, ErrMediaUnavailable)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("read %s: %w", rawURL, ErrMediaUnavailable)
		}
		rc = nopCloser{bytes.NewReader(data)}
	default:
		f, err := os.Open(strings.TrimPrefix(rawURL, "file://"))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("open %s: %w", rawURL, ErrMediaUnavailable)
		}
		rc = f
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch mediaExt(rawURL) {
	case ".wav":
		streamer, format, err = wav.Decode(rc)
	default:
		streamer, format, err = mp3.Decode(rc)
	}
	if err != nil {
		rc.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %v: %w", rawURL, err, ErrMediaUnavailable)
	}
	return streamer, format, nil
}

func (m *speakerMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return m.loadErr
	}
	if m.loading {
		m.playWhenReady = true
		return nil
	}
	if m.track == nil {
		return fmt.Errorf("play: nothing loaded: %w", ErrMediaUnavailable)
	}

	if m.track.ended {
		// Playing a finished track starts it over
		m.restartLocked(0, false)
		return nil
	}

	speaker.Lock()
	m.track.chain.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (m *speakerMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playWhenReady = false
	if m.track == nil {
		return
	}
	speaker.Lock()
	m.track.chain.ctrl.Paused = true
	speaker.Unlock()
}

func (m *speakerMedia) Seek(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.track == nil {
		return
	}

	// A finished track stays paused at the new position until Play
	speaker.Lock()
	paused := m.track.ended || m.track.chain.ctrl.Paused
	speaker.Unlock()

	n := seekSample(m.track.format.SampleRate, seconds, m.track.streamer.Len())
	m.restartLocked(n, paused)
}

// seekSample converts seconds to a sample index within [0, length]
func seekSample(rate beep.SampleRate, seconds float64, length int) int {
	return lo.Clamp(rate.N(time.Duration(seconds*float64(time.Second))), 0, length)
}

func (m *speakerMedia) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volume = v
	if m.track == nil {
		return
	}
	speaker.Lock()
	applyVolume(m.track.chain.volume, v)
	speaker.Unlock()
}

func (m *speakerMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	default:
		close(m.done)
	}
	m.queue.close()
	m.closeTrackLocked()
	return nil
}

// startLocked builds a fresh chain from the decoder's current position and
// hands it to the speaker; must be called with m.mu held
func (m *speakerMedia) startLocked(gen uint64, track *loadedTrack, paused bool) {
	resampled := beep.Resample(4, track.format.SampleRate, m.sampleRate, track.streamer)
	volume := &effects.Volume{Streamer: resampled, Base: 2}
	applyVolume(volume, m.volume)

	chain := &playChain{
		ctrl:   &beep.Ctrl{Streamer: volume, Paused: paused},
		volume: volume,
	}
	chain.output = beep.Seq(chain.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine with the speaker lock held
		go m.finished(gen, track, chain)
	}))

	track.chain = chain
	track.ended = false
	speaker.Play(chain.output)
}

// restartLocked drops the current chain, moves the decoder to sample n and
// starts a new chain; must be called with m.mu held and a track loaded
func (m *speakerMedia) restartLocked(n int, paused bool) {
	speaker.Clear()
	if err := m.track.streamer.Seek(n); err != nil {
		m.logger.Warn("seek failed", "sample", n, "error", err)
	}
	m.startLocked(m.gen, m.track, paused)
}

// finished marks the track ended unless the chain was replaced in the meantime
func (m *speakerMedia) finished(gen uint64, track *loadedTrack, chain *playChain) {
	m.mu.Lock()
	if gen != m.gen || m.track != track || track.chain != chain {
		m.mu.Unlock()
		return
	}
	track.ended = true
	m.mu.Unlock()

	m.emit(MediaEvent{Gen: gen, Kind: EventEnded})
}

// closeTrackLocked stops and releases the current track; must be called with m.mu held
func (m *speakerMedia) closeTrackLocked() {
	if m.track == nil {
		return
	}
	speaker.Clear()
	if err := m.track.streamer.Close(); err != nil {
		m.logger.Debug("closing track", "error", err)
	}
	m.track = nil
}

func (m *speakerMedia) reportPosition() {
	ticker := time.NewTicker(positionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		track, gen := m.track, m.gen
		if track == nil || track.ended {
			m.mu.Unlock()
			continue
		}
		speaker.Lock()
		paused := track.chain.ctrl.Paused
		position := track.format.SampleRate.D(track.streamer.Position()).Seconds()
		speaker.Unlock()
		m.mu.Unlock()

		if !paused {
			m.emit(MediaEvent{Gen: gen, Kind: EventTimeAdvanced, Value: position})
		}
	}
}

func (m *speakerMedia) emit(ev MediaEvent) {
	m.queue.push(ev)
}

// applyVolume maps a linear [0,1] level onto the exponential beep volume effect
func applyVolume(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}

func mediaExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

// speakerTone plays the fallback tone on the shared speaker
type speakerTone struct {
	sampleRate beep.SampleRate
}

func (t speakerTone) Play(frequency float64, duration time.Duration, gain float64) error {
	if err := initSpeaker(t.sampleRate); err != nil {
		return fmt.Errorf("failed to init speaker: %w", err)
	}
	tone, err := newFallbackTone(t.sampleRate, frequency, duration, gain)
	if err != nil {
		return err
	}
	speaker.Play(tone)
	return nil
}
