package sound

import (
	"bytes"

	"github.com/google/uuid"
)

// Blob is an encoded audio payload plus its MIME-like type tag.
//
// A Blob is immutable once created. Two blobs holding identical bytes are
// still distinct values: consumers that cache work derived from a blob key
// it by the *Blob pointer, not by content.
type Blob struct {
	id       string
	data     []byte
	mimeType string
}

// NewBlob wraps data in a new Blob. The slice is owned by the blob afterwards.
func NewBlob(data []byte, mimeType string) *Blob {
	return &Blob{
		id:       uuid.NewString(),
		data:     data,
		mimeType: mimeType,
	}
}

// ID returns a process-unique identifier for this blob instance.
func (b *Blob) ID() string { return b.id }

// Type returns the type tag the blob was created with, e.g. "audio/webm".
func (b *Blob) Type() string { return b.mimeType }

// Size returns the number of encoded bytes.
func (b *Blob) Size() int { return len(b.data) }

// Bytes returns the encoded bytes. Callers must not modify them.
func (b *Blob) Bytes() []byte { return b.data }

// Reader returns a fresh reader over the encoded bytes.
func (b *Blob) Reader() *bytes.Reader { return bytes.NewReader(b.data) }
