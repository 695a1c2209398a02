package audio

import (
	"sync"

	"github.com/capitalize-ai/agent-configurator/internal/model"
)

// MediaPrefix is the URL path under which stored blobs are served.
const MediaPrefix = "/api/v1/media/"

// Blob is a stored media payload.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Store keeps audio payloads in memory for the lifetime of a preview session
// and hands out playable references to them.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewStore creates an empty media store.
func NewStore() *Store {
	return &Store{blobs: make(map[string]Blob)}
}

// Put stores a payload and returns its reference.
func (s *Store) Put(data []byte, mimeType string) string {
	id := model.NewID()

	s.mu.Lock()
	s.blobs[id] = Blob{Data: data, MIMEType: mimeType}
	s.mu.Unlock()

	return MediaPrefix + id
}

// Get returns the payload stored under id.
func (s *Store) Get(id string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[id]
	return b, ok
}

// Clear drops every stored payload.
func (s *Store) Clear() {
	s.mu.Lock()
	s.blobs = make(map[string]Blob)
	s.mu.Unlock()
}

// Len returns the number of stored payloads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
