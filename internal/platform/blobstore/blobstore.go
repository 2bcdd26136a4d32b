// Package blobstore stores imaging result files. It defines the Store
// interface with an in-memory backend for development and tests and an S3
// backend for deployments.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (50 MB).
const MaxFileSize = 50 * 1024 * 1024

// AllowedContentTypes lists the imaging formats accepted for results.
var AllowedContentTypes = map[string]bool{
	"image/png":         true,
	"image/jpeg":        true,
	"image/dicom":       true,
	"application/dicom": true,
	"application/pdf":   true,
}

// Object describes a file to store.
type Object struct {
	// Prefix groups related files, e.g. "imaging/<indication id>".
	Prefix      string
	FileName    string
	ContentType string
	CreatedBy   string
}

// Metadata describes a stored blob. Key is what results reference.
type Metadata struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, obj Object, content io.Reader) (*Metadata, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Metadata, error)
	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// prepare validates obj, reads content up to MaxFileSize and assigns a key.
func prepare(obj Object, content io.Reader) (*Metadata, []byte, error) {
	if strings.TrimSpace(obj.FileName) == "" {
		return nil, nil, ErrMissingFileName
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(obj.ContentType, ";", 2)[0]))
	if !AllowedContentTypes[ct] {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidContentType, obj.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, nil, ErrFileTooLarge
	}

	sum := sha256.Sum256(data)
	name := path.Base(strings.ReplaceAll(obj.FileName, "\\", "/"))
	return &Metadata{
		Key:         path.Join(obj.Prefix, uuid.NewString()+"-"+name),
		FileName:    name,
		ContentType: ct,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", sum),
		CreatedBy:   obj.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}, data, nil
}

type storedBlob struct {
	meta    Metadata
	content []byte
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]*storedBlob)}
}

func (s *MemoryStore) Put(_ context.Context, obj Object, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(obj, content)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blobs[meta.Key] = &storedBlob{meta: *meta, content: data}
	s.mu.Unlock()
	return meta, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Metadata, error) {
	s.mu.RLock()
	b, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := b.meta
	return io.NopCloser(bytes.NewReader(b.content)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

// Keys lists stored keys under prefix.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}
