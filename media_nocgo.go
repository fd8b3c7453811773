//go:build !((linux && cgo) || windows || darwin)

package main

import "log/slog"

// newSpeakerMedia has no speaker backend to offer: audio needs cgo on this platform
func newSpeakerMedia(rate int, logger *slog.Logger) (MediaResource, Tone, error) {
	return nil, nil, errAudioUnsupported
}
