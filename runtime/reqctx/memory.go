package reqctx

import (
	"context"
	"sync"

	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// MemoryState is the in-memory state backend used by the local runner.
// Values are stored encoded so reads decode exactly what the loopback HTTP
// path would deliver.
type MemoryState struct {
	mu    sync.RWMutex
	items map[string]*serializer.Payload
}

// NewMemoryState constructs an empty in-memory state store.
func NewMemoryState() *MemoryState {
	return &MemoryState{items: make(map[string]*serializer.Payload)}
}

// Set encodes value with the binary codec and stores it under key.
func (s *MemoryState) Set(_ context.Context, key string, value any) error {
	p, err := serializer.EncodePayload(serializer.NameBinary, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = p
	return nil
}

// Get decodes the value stored under key.
func (s *MemoryState) Get(_ context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	v, err := p.Decode()
	if err != nil {
		return nil, true, err
	}
	return v, true, nil
}

// payload returns the stored encoded form. The loopback server serves this
// directly so the wire carries the same bytes the local path stores.
func (s *MemoryState) payload(key string) (*serializer.Payload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[key]
	return p, ok
}

// setPayload stores an already encoded value, as received over the wire.
func (s *MemoryState) setPayload(key string, p *serializer.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = p
}
