// Package memory provides an in-memory couch.Store for development and
// tests, with the same revision-token conflict semantics as the real
// document store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/clipvault/clipvault/internal/couch"
)

// Store keeps documents in maps guarded by one mutex. A PUT whose _rev
// does not match the stored revision fails with couch.ErrConflict, same
// as the HTTP store.
type Store struct {
	mu      sync.Mutex
	leaves  map[string]couch.LeafDoc
	parents map[string]couch.ParentDoc
	revs    map[string]int

	// OnPutLeaf and OnPutParent, when set, run before the write is
	// applied; returning an error aborts the write. Tests use them to
	// inject crashes and interleavings.
	OnPutLeaf   func(couch.LeafDoc) error
	OnPutParent func(couch.ParentDoc) error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		leaves:  make(map[string]couch.LeafDoc),
		parents: make(map[string]couch.ParentDoc),
		revs:    make(map[string]int),
	}
}

// GetParent returns the stored parent document, if any.
func (s *Store) GetParent(_ context.Context, id string) (couch.ParentDoc, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.parents[id]
	if !ok {
		return couch.ParentDoc{}, false, nil
	}
	cp := doc
	cp.Children = append([]string(nil), doc.Children...)
	return cp, true, nil
}

// PutLeaf stores a leaf document.
func (s *Store) PutLeaf(_ context.Context, doc couch.LeafDoc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OnPutLeaf != nil {
		if err := s.OnPutLeaf(doc); err != nil {
			return "", err
		}
	}
	rev, err := s.nextRev(doc.ID, doc.Rev)
	if err != nil {
		return "", err
	}
	doc.Rev = rev
	s.leaves[doc.ID] = doc
	return rev, nil
}

// PutParent stores a parent document, enforcing revision-token matching.
func (s *Store) PutParent(_ context.Context, doc couch.ParentDoc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OnPutParent != nil {
		if err := s.OnPutParent(doc); err != nil {
			return "", err
		}
	}
	rev, err := s.nextRev(doc.ID, doc.Rev)
	if err != nil {
		return "", err
	}
	doc.Rev = rev
	doc.Children = append([]string(nil), doc.Children...)
	s.parents[doc.ID] = doc
	return rev, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Leaf returns a stored leaf document for assertions.
func (s *Store) Leaf(id string) (couch.LeafDoc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.leaves[id]
	return doc, ok
}

// LeafCount reports how many leaf documents exist.
func (s *Store) LeafCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leaves)
}

func (s *Store) nextRev(id, given string) (string, error) {
	current := s.revs[id]
	expected := ""
	if current > 0 {
		expected = fmt.Sprintf("%d-mem", current)
	}
	if given != expected {
		return "", fmt.Errorf("put %s: %w", id, couch.ErrConflict)
	}
	s.revs[id] = current + 1
	return fmt.Sprintf("%d-mem", current+1), nil
}
