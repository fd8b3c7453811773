package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrMediaUnavailable is reported when the media resource cannot load or start a track
var ErrMediaUnavailable = errors.New("media unavailable")

// MediaResource is the single playable media handle owned by the Controller.
// Load is fire-and-forget: progress comes back on Events, tagged with the
// generation passed to Load so callers can drop events for superseded loads.
type MediaResource interface {
	Load(gen uint64, url string)
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64)
	Events() <-chan MediaEvent
	Close() error
}

// Tone plays a short synthesized cue. Play must not block for the tone's duration.
type Tone interface {
	Play(frequency float64, duration time.Duration, gain float64) error
}

// MediaEventKind identifies a media resource transition
type MediaEventKind int

const (
	EventLoadStarted MediaEventKind = iota
	EventDurationKnown
	EventReady
	EventTimeAdvanced
	EventEnded
	EventError
)

func (k MediaEventKind) String() string {
	switch k {
	case EventLoadStarted:
		return "load-started"
	case EventDurationKnown:
		return "duration-known"
	case EventReady:
		return "ready"
	case EventTimeAdvanced:
		return "time-advanced"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MediaEvent is feedback from the media resource
type MediaEvent struct {
	Gen   uint64
	Kind  MediaEventKind
	Value float64 // Seconds, for EventTimeAdvanced and EventDurationKnown
	Err   error   // Set for EventError
}

// newMediaResource opens the audio backend, degrading to silentMedia when no
// audio output is available so the rest of the player keeps working
func newMediaResource(cfg Config, logger *slog.Logger) (MediaResource, Tone) {
	media, tone, err := newSpeakerMedia(cfg.Media.SampleRate, logger)
	if err != nil {
		logger.Warn("audio output unavailable, playback will fall back to silence", "error", err)
		return newSilentMedia(), silentTone{}
	}
	return media, tone
}

// eventQueue hands media events to the consumer in order without ever blocking
// the sender. Consecutive position updates of one load collapse into the latest.
type eventQueue struct {
	mu      sync.Mutex
	pending []MediaEvent
	wake    chan struct{}
	out     chan MediaEvent
	done    chan struct{}
	once    sync.Once
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan MediaEvent),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *eventQueue) push(ev MediaEvent) {
	q.mu.Lock()
	n := len(q.pending)
	if n > 0 && ev.Kind == EventTimeAdvanced &&
		q.pending[n-1].Kind == EventTimeAdvanced && q.pending[n-1].Gen == ev.Gen {
		q.pending[n-1] = ev
	} else {
		q.pending = append(q.pending, ev)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}
		ev := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.done:
			return
		}
	}
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}

// silentMedia accepts every command but can never play
type silentMedia struct {
	queue *eventQueue
}

func newSilentMedia() *silentMedia {
	return &silentMedia{queue: newEventQueue()}
}

func (s *silentMedia) Load(gen uint64, url string) {
	s.queue.push(MediaEvent{Gen: gen, Kind: EventLoadStarted})
	s.queue.push(MediaEvent{Gen: gen, Kind: EventError, Err: fmt.Errorf("load %s: %w", url, ErrMediaUnavailable)})
}

func (s *silentMedia) Play() error {
	return fmt.Errorf("play: %w", ErrMediaUnavailable)
}

func (s *silentMedia) Pause()                    {}
func (s *silentMedia) Seek(float64)              {}
func (s *silentMedia) SetVolume(float64)         {}
func (s *silentMedia) Events() <-chan MediaEvent { return s.queue.out }

func (s *silentMedia) Close() error {
	s.queue.close()
	return nil
}

type silentTone struct{}

func (silentTone) Play(float64, time.Duration, float64) error {
	return errAudioUnsupported
}

var errAudioUnsupported = errors.New("audio output not supported in this build")
