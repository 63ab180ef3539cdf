package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"soundboard/playback"
	"soundboard/sound"
)

// ErrUnknownSound means no sound in the library matches the reference.
var ErrUnknownSound = errors.New("unknown sound")

// Library is a sound store that can resolve user input to a sound.
type Library interface {
	sound.Store
	Lookup(ctx context.Context, ref string) (sound.Sound, bool, error)
}

// Board ties the library, the user's settings and the playback engine
// together. Every front end triggers sounds through it.
type Board struct {
	engine   *playback.Engine
	library  Library
	settings sound.Settings
	logger   *slog.Logger
}

// New creates a board.
func New(engine *playback.Engine, library Library, settings sound.Settings) *Board {
	return &Board{
		engine:   engine,
		library:  library,
		settings: settings,
		logger:   slog.With("component", "board"),
	}
}

// Engine returns the playback engine behind the board.
func (b *Board) Engine() *playback.Engine { return b.engine }

// Settings returns the settings applied to every trigger.
func (b *Board) Settings() sound.Settings { return b.settings }

// Sounds lists the library.
func (b *Board) Sounds(ctx context.Context) ([]sound.Sound, error) {
	return b.library.Sounds(ctx)
}

// Play triggers the sound matching ref. The board settings apply first and
// opts override them. A nil handle with a nil error means a later trigger
// or a stop superseded this one before it started.
func (b *Board) Play(ctx context.Context, ref string, opts ...playback.PlayOption) (sound.Sound, *playback.Handle, error) {
	snd, found, err := b.library.Lookup(ctx, ref)
	if err != nil {
		return sound.Sound{}, nil, err
	}
	if !found {
		return sound.Sound{}, nil, fmt.Errorf("%w: %s", ErrUnknownSound, ref)
	}

	// A missing blob goes through to the engine, which reports it as
	// invalid input.
	blob, err := b.library.AudioBlob(ctx, snd.AudioKey)
	if err != nil {
		return snd, nil, err
	}

	all := make([]playback.PlayOption, 0, len(opts)+2)
	all = append(all, playback.WithSettings(b.settings), playback.WithSoundID(snd.ID))
	all = append(all, opts...)

	h, err := b.engine.Play(ctx, blob, all...)
	if err != nil {
		b.logger.Warn("Failed to play sound",
			slog.String("sound", snd.ID),
			slog.Any("error", err))
		return snd, nil, err
	}

	if h != nil {
		b.logger.Info("Playing sound",
			slog.String("sound", snd.ID),
			slog.String("instance", h.ID()))
	}
	return snd, h, nil
}

// Stop silences everything.
func (b *Board) Stop() {
	b.engine.StopAll()
}

// NowPlaying returns the sound the engine reports as playing.
func (b *Board) NowPlaying(ctx context.Context) (sound.Sound, bool, error) {
	return b.Resolve(ctx, b.engine.PlayingID())
}

// Resolve maps a playing id back onto its sound. An empty id resolves to
// nothing.
func (b *Board) Resolve(ctx context.Context, id string) (sound.Sound, bool, error) {
	if id == "" {
		return sound.Sound{}, false, nil
	}

	snd, found, err := b.library.Lookup(ctx, id)
	if err != nil || !found {
		return sound.Sound{}, false, err
	}
	return snd, true, nil
}
