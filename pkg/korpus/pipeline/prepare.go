package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/store"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Report summarises a Prepare run.
type Report struct {
	RunID     ulid.ULID
	Corpus    string
	Documents int
	Started   time.Time
	Finished  time.Time
	Stages    []StageTiming
	// Chunked lists the documents lemmatized in chunks, in corpus order.
	Chunked []string

	FusedPairs       int
	CleanedTokens    int
	RareRemoved      int
	StopwordsRemoved int
	Tokens           int
}

// Prepare runs the full pipeline: sentence repair, lemmatization, lowercasing
// and tokenization, then multiword fusion when enabled and cleaning with the
// configured post-steps.
//
// On error the returned report covers the stages that completed.
func (p *Pipeline) Prepare(ctx context.Context, c *document.Corpus) (*Report, error) {
	started := time.Now()
	rep := &Report{
		RunID:     p.newRunID(started),
		Corpus:    c.Name,
		Documents: c.Len(),
		Started:   started,
	}
	logger := p.logger.With("run", rep.RunID.String(), "corpus", c.Name)
	logger.Info("pipeline started", "documents", c.Len())

	run := func(stage string, fn func() error) error {
		t0 := time.Now()
		if err := fn(); err != nil {
			logger.Error("stage failed", "stage", stage, "error", err)
			return fmt.Errorf("prepare %s: %w", c.Name, err)
		}
		d := time.Since(t0)
		rep.Stages = append(rep.Stages, StageTiming{Stage: stage, Duration: d})
		logger.Info("stage finished", "stage", stage, "duration", d)
		return nil
	}

	type step struct {
		stage string
		fn    func() error
	}
	steps := []step{
		{StagePreClean, func() error { return p.PreClean(ctx, c) }},
		{StageLemmatize, func() error {
			chunked, err := p.lemmatize(ctx, c)
			rep.Chunked = chunked
			return err
		}},
		{StageNormalize, func() error { return p.Normalize(ctx, c) }},
		{StageTokenize, func() error { return p.Tokenize(ctx, c) }},
	}
	if p.opts.FuseMultiwords {
		steps = append(steps, step{StageFuse, func() error {
			n, err := p.fuse(ctx, c)
			rep.FusedPairs = n
			return err
		}})
	}
	steps = append(steps, step{StageClean, func() error {
		counts, err := p.clean(ctx, c, CleanOptions{
			RareTermThreshold: p.opts.RareTermThreshold,
			CustomStopwords:   p.opts.CustomStopwords,
		})
		rep.CleanedTokens = counts.cleaned
		rep.RareRemoved = counts.rare
		rep.StopwordsRemoved = counts.stopwords
		return err
	}})

	for _, s := range steps {
		if err := run(s.stage, s.fn); err != nil {
			rep.Finished = time.Now()
			return rep, err
		}
	}

	c.Each(func(_ string, d *document.Doc) error {
		if toks, ok := d.ProcessedText.(document.Tokens); ok {
			rep.Tokens += len(toks)
		}
		return nil
	})
	rep.Finished = time.Now()
	if len(rep.Chunked) > 0 {
		logger.Warn("documents lemmatized in chunks", "count", len(rep.Chunked), "keys", rep.Chunked)
	}
	logger.Info("pipeline finished", "tokens", rep.Tokens, "duration", rep.Finished.Sub(started))
	return rep, nil
}

// Run converts the report into an archive entry. runErr is the error Prepare
// returned, if any.
func (r *Report) Run(runErr error) store.Run {
	out := store.Run{
		ID:        r.RunID.String(),
		Corpus:    r.Corpus,
		Documents: r.Documents,
		Tokens:    r.Tokens,
		Started:   r.Started,
		Finished:  r.Finished,
	}
	for _, st := range r.Stages {
		out.Stages = append(out.Stages, st.Stage)
	}
	if runErr != nil {
		out.Err = runErr.Error()
	}
	return out
}
