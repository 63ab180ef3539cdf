package playback

import (
	"github.com/gopxl/beep/v2"
)

// Output is the process-wide audio device the engine mixes into.
//
// Init attaches the engine's mix bus to the device. It is called until it
// first succeeds and never again after that. Lock and Unlock guard the
// device's streaming goroutine: while the lock is held, nothing is pulled
// from the bus.
type Output interface {
	Init(sampleRate beep.SampleRate, bus beep.Streamer) error
	Lock()
	Unlock()
}

// bus is the engine's mix point. It never drains: when no instance is
// sounding it fills the request with silence so the device keeps running.
type bus struct {
	mixer beep.Mixer
}

var _ beep.Streamer = (*bus)(nil)

func (b *bus) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = b.mixer.Stream(samples)
	if !ok {
		n = 0
	}
	clear(samples[n:])
	return len(samples), true
}

func (b *bus) Err() error {
	return nil
}
