package playback

import (
	"context"
	"runtime"
	"sync"
	"weak"

	"soundboard/codec"
	"soundboard/sound"

	"golang.org/x/sync/singleflight"
)

// cache holds decoded audio keyed by blob identity. An entry lives as long
// as its blob is reachable from somewhere else and is dropped by a runtime
// cleanup once the blob is collected. Entries are never replaced.
type cache struct {
	mu      sync.RWMutex
	entries map[weak.Pointer[sound.Blob]]*codec.Decoded
	flight  singleflight.Group
}

func newCache() *cache {
	return &cache{
		entries: make(map[weak.Pointer[sound.Blob]]*codec.Decoded),
	}
}

// get returns the decoded resource for blob if one is cached.
func (c *cache) get(blob *sound.Blob) (*codec.Decoded, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	decoded, ok := c.entries[weak.Make(blob)]
	return decoded, ok
}

// load returns the cached resource for blob, decoding it on a miss.
// Concurrent misses for the same blob share one decode. The decode keeps
// running if ctx is cancelled, and its result is still cached.
func (c *cache) load(ctx context.Context, blob *sound.Blob, container codec.Container, dec codec.Decoder) (*codec.Decoded, error) {
	if decoded, ok := c.get(blob); ok {
		return decoded, nil
	}

	ch := c.flight.DoChan(blob.ID(), func() (any, error) {
		if decoded, ok := c.get(blob); ok {
			return decoded, nil
		}

		decoded, err := dec.Decode(context.WithoutCancel(ctx), container, blob.Bytes())
		if err != nil {
			return nil, err
		}
		c.put(blob, decoded)
		return decoded, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*codec.Decoded), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *cache) put(blob *sound.Blob, decoded *codec.Decoded) {
	key := weak.Make(blob)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}
	c.entries[key] = decoded

	runtime.AddCleanup(blob, c.drop, key)
}

func (c *cache) drop(key weak.Pointer[sound.Blob]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
