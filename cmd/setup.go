package cmd

import (
	"fmt"

	ffaudio "github.com/disgoorg/ffmpeg-audio"
	"github.com/gopxl/beep/v2"

	"soundboard/board"
	"soundboard/codec"
	"soundboard/config"
	"soundboard/ffmpeg"
	"soundboard/logger"
	"soundboard/playback"
	"soundboard/sound"
)

// loadConfig loads and validates the configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return cfg, nil
}

// newLocalOutput returns the output for the configured local backend.
func newLocalOutput(cfg *config.Config) (playback.Output, error) {
	switch cfg.Playback.Backend {
	case config.BackendSpeaker:
		return playback.NewSpeaker(cfg.Playback.Latency), nil
	case config.BackendFFmpeg:
		return ffmpeg.NewOutput(
			ffmpeg.WithExec(cfg.Playback.FFmpeg),
			ffmpeg.WithDevice(cfg.Playback.DeviceFormat, cfg.Playback.Device),
		), nil
	case config.BackendDiscord:
		return nil, fmt.Errorf("the discord backend is only available through the serve command")
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Playback.Backend)
	}
}

// newBoard opens the sound library and builds an engine playing through out.
func newBoard(cfg *config.Config, out playback.Output, sampleRate int) (*board.Board, error) {
	library, err := sound.NewDirStore(cfg.Library.Dir)
	if err != nil {
		return nil, err
	}

	decoder := codec.NewDefault(
		ffaudio.WithExec(cfg.Playback.FFmpeg),
		ffaudio.WithSampleRate(sampleRate),
	)
	engine := playback.New(out,
		playback.WithDecoder(decoder),
		playback.WithSampleRate(beep.SampleRate(sampleRate)),
	)

	return board.New(engine, library, cfg.Settings()), nil
}
