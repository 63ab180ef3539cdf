package bot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"soundboard/board"
	"soundboard/codec"
	"soundboard/config"
	"soundboard/playback"
	"soundboard/sound"
)

type nullOutput struct {
	mu sync.Mutex
}

func (o *nullOutput) Init(beep.SampleRate, beep.Streamer) error { return nil }
func (o *nullOutput) Lock()                                      { o.mu.Lock() }
func (o *nullOutput) Unlock()                                    { o.mu.Unlock() }

func writeTone(t *testing.T, dir, name string) {
	t.Helper()

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames := SampleRate / 2
	pos := 0
	tone := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= frames {
			return 0, false
		}
		n := min(len(samples), frames-pos)
		for i := range samples[:n] {
			samples[i] = [2]float64{0.25, 0.25}
		}
		pos += n
		return n, true
	})

	format := beep.Format{SampleRate: SampleRate, NumChannels: Channels, Precision: 2}
	if err := wav.Encode(f, tone, format); err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}
}

// newTestBoard builds a board with two sounds playing through out.
func newTestBoard(t *testing.T, out playback.Output) *board.Board {
	t.Helper()

	dir := t.TempDir()
	writeTone(t, dir, "Air Horn.wav")
	writeTone(t, dir, "Sad Trombone.wav")

	library, err := sound.NewDirStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	engine := playback.New(out, playback.WithDecoder(codec.NewRegistry(nil)))
	t.Cleanup(func() { engine.Close() })

	return board.New(engine, library, sound.DefaultSettings())
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()

	return New(&config.DiscordConfig{}, newTestBoard(t, &nullOutput{}), NewVoiceOutput())
}
