package playback

import "errors"

var (
	// ErrInvalidInput means the blob was missing, empty, or not audio.
	ErrInvalidInput = errors.New("invalid audio input")

	// ErrDecode means the blob looked like audio but could not be decoded.
	ErrDecode = errors.New("failed to decode audio")

	// ErrPlaybackDenied means the audio output refused to start.
	ErrPlaybackDenied = errors.New("playback denied")

	// ErrClosed means Play was called after Close.
	ErrClosed = errors.New("engine is closed")
)
