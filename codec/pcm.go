package codec

import "github.com/gopxl/beep/v2"

// pcmStreamer streams interleaved signed 16-bit samples.
type pcmStreamer struct {
	pcm      []int16
	channels int
	pos      int
}

var _ beep.Streamer = (*pcmStreamer)(nil)

func newPCMStreamer(pcm []int16, channels int) *pcmStreamer {
	return &pcmStreamer{pcm: pcm, channels: channels}
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for ; n < len(samples) && s.pos+s.channels <= len(s.pcm); n++ {
		left := float64(s.pcm[s.pos]) / 32767
		right := left
		if s.channels > 1 {
			right = float64(s.pcm[s.pos+1]) / 32767
		}
		samples[n][0] = left
		samples[n][1] = right
		s.pos += s.channels
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error {
	return nil
}
