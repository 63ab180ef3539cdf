package playback

import "soundboard/sound"

// PlayOption configures a single Play call.
type PlayOption func(*playConfig)

type playConfig struct {
	volume       int
	loop         bool
	allowOverlap bool
	soundID      string
}

func newPlayConfig(opts []PlayOption) playConfig {
	cfg := playConfig{volume: 100}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.volume = clampVolume(cfg.volume)
	return cfg
}

// WithVolume sets the playback volume, 0 to 100. Values outside the range
// are clamped.
func WithVolume(volume int) PlayOption {
	return func(c *playConfig) { c.volume = volume }
}

// WithLoop repeats the sound until it is stopped.
func WithLoop(loop bool) PlayOption {
	return func(c *playConfig) { c.loop = loop }
}

// WithOverlap lets the sound play alongside whatever is already playing.
// Without it, starting the sound stops every other one.
func WithOverlap(allow bool) PlayOption {
	return func(c *playConfig) { c.allowOverlap = allow }
}

// WithSoundID tags the instance with the logical sound it plays. The id
// becomes the engine's playing id when the instance starts.
func WithSoundID(id string) PlayOption {
	return func(c *playConfig) { c.soundID = id }
}

// WithSettings applies the user's playback settings.
func WithSettings(s sound.Settings) PlayOption {
	return func(c *playConfig) {
		c.volume = s.MasterVolume
		c.loop = s.LoopDefault
		c.allowOverlap = s.AllowOverlap
	}
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}

// gain maps a 0-100 volume onto a linear multiplier.
func gain(volume int) float64 {
	return float64(clampVolume(volume)) / 100
}
