package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Open(key string) (Blob, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fsBlob{File: f, mod: fi.ModTime()}, nil
}

func (s *FSStore) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", errors.New("invalid key")
	}
	return filepath.Join(s.base, clean), nil
}

type fsBlob struct {
	*os.File
	mod time.Time
}

func (b *fsBlob) ModTime() time.Time { return b.mod }
