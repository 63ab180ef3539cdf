package sound

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ Store = (*DirStore)(nil)

// AudioKeyPrefix prefixes every key handed out by a Store.
const AudioKeyPrefix = "audio_"

var extensionTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg; codecs=opus",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".aac":  "audio/aac",
}

// TypeForPath returns the audio type tag for a file name, or "" when the
// extension is not an audio format the library knows about.
func TypeForPath(path string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(path))]
}

// DirStore is a read-only Store over a directory of audio files. Each file
// is one sound; its id is the slug of the file name.
//
// DirStore hands out the same *Blob for a key until the file on disk
// changes, so identity-keyed caches downstream keep hitting. Lookups reuse
// the last listing until the directory itself changes.
type DirStore struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	blobs    map[string]*dirBlob
	index    []Sound
	indexMod time.Time
	scans    int
}

type dirBlob struct {
	blob    *Blob
	size    int64
	modTime time.Time
}

// NewDirStore returns a store rooted at dir. The directory must exist.
func NewDirStore(dir string) (*DirStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound library: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sound library %s is not a directory", dir)
	}

	return &DirStore{
		dir:    dir,
		logger: slog.With("component", "library"),
		blobs:  make(map[string]*dirBlob),
	}, nil
}

// Dir returns the library root.
func (s *DirStore) Dir() string { return s.dir }

// Sounds lists every audio file in the library, sorted by name.
func (s *DirStore) Sounds(ctx context.Context) ([]Sound, error) {
	dirInfo, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sound library: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sound library: %w", err)
	}

	seen := make(map[string]string)
	var sounds []Sound
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}

		typ := TypeForPath(entry.Name())
		if typ == "" {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		id, err := Slug(name)
		if err != nil {
			s.logger.Warn("Skipping sound with unusable name", slog.String("file", entry.Name()))
			continue
		}
		if other, dup := seen[id]; dup {
			s.logger.Warn("Skipping sound with duplicate id",
				slog.String("file", entry.Name()),
				slog.String("conflicts_with", other))
			continue
		}
		seen[id] = entry.Name()

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		sounds = append(sounds, Sound{
			ID:       id,
			Name:     name,
			AudioKey: AudioKeyPrefix + id,
			File:     entry.Name(),
			Type:     typ,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.Slice(sounds, func(i, j int) bool {
		return strings.ToLower(sounds[i].Name) < strings.ToLower(sounds[j].Name)
	})

	s.mu.Lock()
	s.index = sounds
	s.indexMod = dirInfo.ModTime()
	s.scans++
	s.mu.Unlock()

	return sounds, nil
}

// Lookup finds a sound by id, audio key or display name. The directory is
// only listed again when it changed since the last listing or when ref
// matches nothing. Size and ModTime of the result may lag behind the file.
func (s *DirStore) Lookup(ctx context.Context, ref string) (Sound, bool, error) {
	if snd, ok := s.lookupIndexed(ref); ok {
		return snd, true, nil
	}

	sounds, err := s.Sounds(ctx)
	if err != nil {
		return Sound{}, false, err
	}
	snd, ok := match(sounds, ref)
	return snd, ok, nil
}

func (s *DirStore) lookupIndexed(ref string) (Sound, bool) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return Sound{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scans == 0 || !info.ModTime().Equal(s.indexMod) {
		return Sound{}, false
	}
	return match(s.index, ref)
}

func match(sounds []Sound, ref string) (Sound, bool) {
	slug, _ := Slug(ref)
	for _, snd := range sounds {
		if snd.ID == ref || snd.AudioKey == ref || snd.ID == slug || strings.EqualFold(snd.Name, ref) {
			return snd, true
		}
	}
	return Sound{}, false
}

// AudioBlob loads the audio for a key. It returns nil, nil when no file
// backs the key.
func (s *DirStore) AudioBlob(ctx context.Context, audioKey string) (*Blob, error) {
	id, ok := strings.CutPrefix(audioKey, AudioKeyPrefix)
	if !ok {
		return nil, nil
	}

	snd, found, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found || snd.ID != id {
		return nil, nil
	}

	path := filepath.Join(s.dir, snd.File)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.blobs[audioKey]; ok && cached.size == info.Size() && cached.modTime.Equal(info.ModTime()) {
		return cached.blob, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	blob := NewBlob(data, snd.Type)
	s.blobs[audioKey] = &dirBlob{blob: blob, size: info.Size(), modTime: info.ModTime()}

	s.logger.Debug("Loaded audio blob",
		slog.String("key", audioKey),
		slog.Int("bytes", len(data)))

	return blob, nil
}
