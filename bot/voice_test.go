package bot

import (
	"errors"
	"io"
	"testing"

	"github.com/gopxl/beep/v2"
)

func TestVoiceOutputRefusesWithoutConnection(t *testing.T) {
	v := NewVoiceOutput()

	if v.Connected() {
		t.Error("new output reports connected")
	}
	if err := v.Init(SampleRate, beep.Silence(-1)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Init() error = %v, want ErrNotConnected", err)
	}
}

func TestVoiceOutputRejectsSampleRate(t *testing.T) {
	v := NewVoiceOutput()

	err := v.Init(44100, beep.Silence(-1))
	if err == nil || errors.Is(err, ErrNotConnected) {
		t.Errorf("Init() error = %v, want a sample rate error", err)
	}
}

func TestVoiceOutputSilenceBeforeInit(t *testing.T) {
	v := NewVoiceOutput()

	frame, err := v.ProvidePCMFrame()
	if err != nil {
		t.Fatalf("ProvidePCMFrame() error = %v", err)
	}
	if len(frame) != FrameSize*Channels {
		t.Fatalf("frame has %d samples, want %d", len(frame), FrameSize*Channels)
	}
	for i, s := range frame {
		if s != 0 {
			t.Fatalf("sample %d = %d, want silence", i, s)
		}
	}
}

func TestVoiceOutputPullsFromBus(t *testing.T) {
	v := NewVoiceOutput()
	pulled := 0
	v.bus = beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		pulled += len(samples)
		for i := range samples {
			samples[i] = [2]float64{0.5, -2}
		}
		return len(samples), true
	})

	frame, err := v.ProvidePCMFrame()
	if err != nil {
		t.Fatalf("ProvidePCMFrame() error = %v", err)
	}
	if pulled != FrameSize {
		t.Errorf("pulled %d frames from the bus, want %d", pulled, FrameSize)
	}
	if frame[0] != 16384 || frame[1] != -32767 {
		t.Errorf("first frame = %d/%d, want 16384/-32767", frame[0], frame[1])
	}
}

func TestVoiceOutputClosed(t *testing.T) {
	v := NewVoiceOutput()
	v.Close()

	if _, err := v.ProvidePCMFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("ProvidePCMFrame() error = %v, want io.EOF", err)
	}
}
