package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/store"
)

// Store is an in-memory implementation of store.Archive for tests and
// dry runs.
type Store struct {
	mu      sync.RWMutex
	corpora map[string]*document.Corpus
	runs    []store.Run
}

// New creates an empty in-memory archive.
func New() *Store {
	return &Store{corpora: make(map[string]*document.Corpus)}
}

// Close implements store.Archive.
func (s *Store) Close() error { return nil }

// SaveCorpus stores a deep copy of c.
func (s *Store) SaveCorpus(ctx context.Context, c *document.Corpus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpora[c.Name] = c.Clone()
	return nil
}

// LoadCorpus returns a deep copy of the stored corpus.
func (s *Store) LoadCorpus(ctx context.Context, name string) (*document.Corpus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.corpora[name]
	if !ok {
		return nil, fmt.Errorf("load corpus %q: %w", name, internalerr.ErrNotFound)
	}
	return c.Clone(), nil
}

// Corpora implements store.Archive.
func (s *Store) Corpora(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.corpora))
	for name := range s.corpora {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RecordRun implements store.Archive. A run id may be recorded once.
func (s *Store) RecordRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.runs {
		if existing.ID == r.ID {
			return fmt.Errorf("record run %s: %w", r.ID, internalerr.ErrDuplicate)
		}
	}
	r.Stages = append([]string(nil), r.Stages...)
	s.runs = append(s.runs, r)
	return nil
}

// Runs implements store.Archive.
func (s *Store) Runs(ctx context.Context, corpus string) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Run
	for _, r := range s.runs {
		if r.Corpus == corpus {
			r.Stages = append([]string(nil), r.Stages...)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out, nil
}
