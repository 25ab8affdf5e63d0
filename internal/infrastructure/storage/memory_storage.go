package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryObjectStorage keeps archives in process memory. It is used when no
// S3 backend is configured so the archive endpoint still works locally.
type MemoryObjectStorage struct {
	// BaseURL is the base URL for generated download links
	BaseURL string
	prefix  string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryObjectStorage creates a new MemoryObjectStorage
func NewMemoryObjectStorage(prefix string) *MemoryObjectStorage {
	return &MemoryObjectStorage{
		BaseURL: "memory://archives",
		prefix:  prefix,
		objects: make(map[string]memoryObject),
	}
}

// Upload stores a copy of data under storageKey
func (s *MemoryObjectStorage) Upload(_ context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// DownloadURL returns a pseudo URL for storageKey
func (s *MemoryObjectStorage) DownloadURL(_ context.Context, storageKey string) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, ErrEmptyKey
	}
	return s.BaseURL + "/" + storageKey, time.Time{}, nil
}

// Object returns the stored bytes and content type
func (s *MemoryObjectStorage) Object(storageKey string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[storageKey]
	return obj.data, obj.contentType, ok
}

// Keys lists stored keys in lexical order
func (s *MemoryObjectStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bucket returns a fixed name for the in-memory store
func (s *MemoryObjectStorage) Bucket() string {
	return "memory"
}

// Prefix returns the key prefix archives are written under
func (s *MemoryObjectStorage) Prefix() string {
	return s.prefix
}
