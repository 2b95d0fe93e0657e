package storage

import (
	"io"
	"time"
)

// Blob is a readable, seekable media object. Seeking is required so the
// proxy can honor HTTP Range requests from the playback element.
type Blob interface {
	io.ReadSeekCloser
	ModTime() time.Time
}

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Open(key string) (Blob, error)
}
