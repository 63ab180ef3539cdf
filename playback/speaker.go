package playback

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Speaker plays through the default system audio device.
type Speaker struct {
	latency time.Duration
	logger  *slog.Logger
	started bool
}

var _ Output = (*Speaker)(nil)

// NewSpeaker creates a speaker output with the given device buffer length.
func NewSpeaker(latency time.Duration) *Speaker {
	if latency <= 0 {
		latency = 100 * time.Millisecond
	}
	return &Speaker{
		latency: latency,
		logger:  slog.With("component", "speaker"),
	}
}

func (s *Speaker) Init(sampleRate beep.SampleRate, bus beep.Streamer) error {
	if err := speaker.Init(sampleRate, sampleRate.N(s.latency)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	speaker.Play(bus)
	s.started = true

	s.logger.Info("Speaker initialized",
		slog.Int("sample_rate", int(sampleRate)),
		slog.Duration("latency", s.latency))
	return nil
}

func (s *Speaker) Lock() {
	speaker.Lock()
}

func (s *Speaker) Unlock() {
	speaker.Unlock()
}

// Close releases the audio device.
func (s *Speaker) Close() error {
	if s.started {
		speaker.Clear()
		speaker.Close()
		s.started = false
	}
	return nil
}
