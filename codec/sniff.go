package codec

import (
	"bytes"
	"errors"
	"strings"
)

// Container identifies an encoded audio format.
type Container string

const (
	WAV    Container = "wav"
	MP3    Container = "mp3"
	FLAC   Container = "flac"
	Vorbis Container = "vorbis"
	Opus   Container = "opus"
	WebM   Container = "webm"
	MP4    Container = "mp4"
	AAC    Container = "aac"
)

var (
	ErrUnrecognized = errors.New("not a recognizable audio container")
	ErrCorrupt      = errors.New("corrupt audio data")
	ErrUnsupported  = errors.New("unsupported audio container")
)

var mimeContainers = map[string]Container{
	"audio/wav":       WAV,
	"audio/wave":      WAV,
	"audio/x-wav":     WAV,
	"audio/vnd.wave":  WAV,
	"audio/mpeg":      MP3,
	"audio/mp3":       MP3,
	"audio/flac":      FLAC,
	"audio/x-flac":    FLAC,
	"audio/ogg":       Vorbis,
	"audio/vorbis":    Vorbis,
	"audio/opus":      Opus,
	"audio/webm":      WebM,
	"video/webm":      WebM,
	"audio/mp4":       MP4,
	"audio/x-m4a":     MP4,
	"audio/aac":       AAC,
	"audio/aacp":      AAC,
	"audio/x-aac":     AAC,
	"application/ogg": Vorbis,
}

// Sniff identifies the container of an encoded payload. The magic bytes
// win; the type tag is only consulted when the bytes say nothing.
func Sniff(data []byte, mimeType string) (Container, error) {
	if c, ok := sniffMagic(data); ok {
		return c, nil
	}
	if c, ok := fromMIME(mimeType); ok {
		return c, nil
	}
	return "", ErrUnrecognized
}

func sniffMagic(data []byte) (Container, bool) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return WAV, true
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FLAC, true
	case bytes.HasPrefix(data, []byte("OggS")):
		// The first page carries the codec identification header.
		head := data[:min(len(data), 128)]
		if bytes.Contains(head, []byte("OpusHead")) {
			return Opus, true
		}
		if bytes.Contains(head, []byte("\x01vorbis")) {
			return Vorbis, true
		}
		if bytes.Contains(head, []byte("\x7fFLAC")) {
			return FLAC, true
		}
		return "", false
	case bytes.HasPrefix(data, []byte{0x1a, 0x45, 0xdf, 0xa3}):
		return WebM, true
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return MP4, true
	case bytes.HasPrefix(data, []byte("ID3")):
		return MP3, true
	case len(data) >= 2 && data[0] == 0xff && data[1]&0xe0 == 0xe0:
		// MPEG audio frame sync; layer bits of zero mean ADTS AAC.
		if data[1]&0x06 == 0 {
			return AAC, true
		}
		return MP3, true
	}
	return "", false
}

func fromMIME(mimeType string) (Container, bool) {
	base, params, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	base = strings.TrimSpace(base)
	if strings.Contains(params, "opus") && (base == "audio/ogg" || base == "application/ogg") {
		return Opus, true
	}
	c, ok := mimeContainers[base]
	return c, ok
}
