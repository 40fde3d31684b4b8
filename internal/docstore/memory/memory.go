// Package memory is an in-process docstore.Store. It backs the server's
// "memory" mode and most unit tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
)

type key struct {
	collection string
	id         string
}

// Store keeps deep copies of documents in a map guarded by an RWMutex.
type Store struct {
	mu   sync.RWMutex
	docs map[key]docstore.Document
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{docs: make(map[key]docstore.Document)}
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key{collection, id}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, common.ErrorNotFound)
	}
	return doc.Clone(), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Document) error {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		doc = docstore.Document{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key{collection, id}] = doc.Clone()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len reports how many documents are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
