package main

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
)

// Shortest fade applied at each end of the tone to avoid clicks
const minToneFade = 10

// newFallbackTone builds a sine wave of the given duration scaled to gain,
// fading in and out over 5% of its length
func newFallbackTone(sr beep.SampleRate, frequency float64, duration time.Duration, gain float64) (beep.Streamer, error) {
	sine, err := generators.SineTone(sr, frequency)
	if err != nil {
		return nil, fmt.Errorf("fallback tone: %w", err)
	}

	total := sr.N(duration)
	if total < 2 {
		return nil, fmt.Errorf("fallback tone: duration %v too short", duration)
	}
	fade := max(total/20, minToneFade)
	if 2*fade > total {
		fade = total / 2
	}

	// The three parts pull from the same oscillator, so the phase is continuous
	tone := beep.Seq(
		effects.Transition(beep.Take(fade, sine), fade, 0, 1, effects.TransitionLinear),
		beep.Take(total-2*fade, sine),
		effects.Transition(beep.Take(fade, sine), fade, 1, 0, effects.TransitionLinear),
	)

	// effects.Gain scales by 1+Gain
	return &effects.Gain{Streamer: tone, Gain: gain - 1}, nil
}
