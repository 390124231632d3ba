// Package store defines the archive that keeps prepared corpora and the log
// of pipeline runs beyond a single snapshot file.
package store

import (
	"context"
	"time"

	"github.com/cognicore/korpus/pkg/korpus/document"
)

// Archive persists named corpora and pipeline runs.
type Archive interface {
	Close() error

	// SaveCorpus replaces everything stored under c.Name with c.
	SaveCorpus(ctx context.Context, c *document.Corpus) error
	// LoadCorpus returns the corpus stored under name, or an error wrapping
	// internalerr.ErrNotFound.
	LoadCorpus(ctx context.Context, name string) (*document.Corpus, error)
	// Corpora lists stored corpus names in lexical order.
	Corpora(ctx context.Context) ([]string, error)

	RecordRun(ctx context.Context, r Run) error
	// Runs returns the runs recorded for corpus, oldest first.
	Runs(ctx context.Context, corpus string) ([]Run, error)
}

// Run is one pipeline execution.
type Run struct {
	ID        string
	Corpus    string
	Documents int
	Tokens    int
	Started   time.Time
	Finished  time.Time
	Stages    []string // completed stages in order
	Err       string   // empty on success
}
