package sound

import (
	"context"
	"time"
)

// Sound is the metadata for one card on the board.
type Sound struct {
	ID       string
	Name     string
	AudioKey string
	File     string
	Type     string
	Size     int64
	ModTime  time.Time
}

// Store gives read access to the sound library.
type Store interface {
	// Sounds lists the library in display order.
	Sounds(ctx context.Context) ([]Sound, error)

	// AudioBlob fetches the encoded audio for a key. A nil blob with a nil
	// error means the audio is missing.
	AudioBlob(ctx context.Context, audioKey string) (*Blob, error)
}

// Settings holds the user playback preferences that feed every trigger.
type Settings struct {
	MasterVolume int  `mapstructure:"master_volume"`
	LoopDefault  bool `mapstructure:"loop_default"`
	AllowOverlap bool `mapstructure:"allow_overlap"`
}

// DefaultSettings returns the settings a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		MasterVolume: 80,
		LoopDefault:  false,
		AllowOverlap: false,
	}
}
