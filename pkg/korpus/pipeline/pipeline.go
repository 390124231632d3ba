// Package pipeline turns the full text of every document in a corpus into a
// cleaned token sequence ready for statistical modelling.
//
// Stages run in a fixed order and mutate the corpus in place:
//
//	PreClean -> Lemmatize -> Normalize -> Tokenize -> FuseMultiwords -> Clean
//
// The first three stages work on free text, the rest on tokens. Each stage
// checks the representation of every document before changing any of them,
// so a stage that fails leaves the corpus as it found it.
package pipeline

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/korpus/pkg/korpus/annotate"
	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/lexicon"
)

// Stage names used in errors, logs and reports.
const (
	StagePreClean   = "pre_clean"
	StageLemmatize  = "lemmatize"
	StageNormalize  = "normalize"
	StageTokenize   = "tokenize"
	StageFuse       = "n_gram_inclusion"
	StageClean      = "clean"
	StageRareTerms  = "remove_rare_terms"
	StageStopwords  = "remove_custom_stopwords"
	defaultLanguage = "de"
)

// Options configures a Pipeline.
type Options struct {
	Lexicon   *lexicon.Lexicon
	Annotator annotate.Annotator

	// RemoveStopwords drops lemmas whose source token is a language stopword.
	RemoveStopwords bool
	// ChunkWords is the chunk size for the resource-exhaustion retry.
	ChunkWords int
	// AnnotateTimeout bounds a single annotator call when positive.
	AnnotateTimeout time.Duration
	// Workers is the number of documents processed concurrently within a
	// stage. Values below 2 run sequentially.
	Workers int

	// Language selects the lowercasing rules, as a BCP 47 tag.
	Language string
	// UnicodeNFC composes characters before lowercasing.
	UnicodeNFC bool

	// Settings used by Prepare.
	FuseMultiwords    bool
	RareTermThreshold int
	CustomStopwords   bool

	Logger *slog.Logger
}

// CleanOptions enables the post-steps of Clean.
type CleanOptions struct {
	// RareTermThreshold removes tokens whose corpus frequency is at most this
	// value. Zero disables pruning.
	RareTermThreshold int
	// CustomStopwords removes tokens listed in the custom stopword list.
	CustomStopwords bool
}

// Pipeline applies normalization stages to a corpus.
type Pipeline struct {
	opts   Options
	lang   language.Tag
	logger *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Lexicon == nil {
		opts.Lexicon = &lexicon.Lexicon{}
	}
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = DefaultChunkWords
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.RareTermThreshold < 0 {
		return nil, fmt.Errorf("rare term threshold %d: %w", opts.RareTermThreshold, internalerr.ErrInvalidConfig)
	}
	tag, err := language.Parse(opts.Language)
	if err != nil {
		return nil, fmt.Errorf("language %q: %w: %w", opts.Language, internalerr.ErrInvalidConfig, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:    opts,
		lang:    tag,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// PreClean repairs missing spaces after sentence punctuation.
func (p *Pipeline) PreClean(ctx context.Context, c *document.Corpus) error {
	return p.mapText(ctx, c, StagePreClean, func(_ context.Context, _ string, text string) (string, error) {
		return RepairSentences(text), nil
	})
}

// Lemmatize replaces each text with the space-joined lemmas returned by the
// annotator. Documents that exhaust the annotator are retried in chunks of
// ChunkWords words; any other annotator error aborts the stage.
func (p *Pipeline) Lemmatize(ctx context.Context, c *document.Corpus) error {
	_, err := p.lemmatize(ctx, c)
	return err
}

func (p *Pipeline) lemmatize(ctx context.Context, c *document.Corpus) ([]string, error) {
	if p.opts.Annotator == nil {
		return nil, fmt.Errorf("%s: no annotator configured: %w", StageLemmatize, internalerr.ErrInvalidConfig)
	}
	var (
		mu      sync.Mutex
		chunked []string
	)
	err := p.mapText(ctx, c, StageLemmatize, func(ctx context.Context, key, text string) (string, error) {
		out, usedChunks, err := p.lemmatizeText(ctx, key, text)
		if usedChunks {
			mu.Lock()
			chunked = append(chunked, key)
			mu.Unlock()
		}
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return orderLike(c.Keys(), chunked), nil
}

func (p *Pipeline) lemmatizeText(ctx context.Context, key, text string) (string, bool, error) {
	tokens, err := p.annotate(ctx, text)
	if err == nil {
		return strings.Join(p.lemmas(tokens), " "), false, nil
	}
	if !errors.Is(err, internalerr.ErrResourceExhausted) {
		return "", false, fmt.Errorf("%s: document %q: %w", StageLemmatize, key, err)
	}

	chunks := Chunk(text, p.opts.ChunkWords)
	p.logger.Warn("annotator exhausted, processing document in chunks",
		"key", key, "chunks", len(chunks), "chunk_words", p.opts.ChunkWords, "error", err)

	var lemmas []string
	for i, chunk := range chunks {
		tokens, err := p.annotate(ctx, chunk)
		if err != nil {
			return "", true, fmt.Errorf("%s: document %q chunk %d/%d: %w", StageLemmatize, key, i+1, len(chunks), err)
		}
		lemmas = append(lemmas, p.lemmas(tokens)...)
	}
	return strings.Join(lemmas, " "), true, nil
}

func (p *Pipeline) annotate(ctx context.Context, text string) ([]annotate.Token, error) {
	if p.opts.AnnotateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AnnotateTimeout)
		defer cancel()
	}
	return p.opts.Annotator.Annotate(ctx, text)
}

func (p *Pipeline) lemmas(tokens []annotate.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if p.opts.RemoveStopwords && p.opts.Lexicon.Stopwords.Contains(strings.ToLower(t.Text)) {
			continue
		}
		out = append(out, t.Lemma)
	}
	return out
}

// Normalize lowercases the text using the rules of the configured language.
func (p *Pipeline) Normalize(ctx context.Context, c *document.Corpus) error {
	return p.mapText(ctx, c, StageNormalize, func(_ context.Context, _ string, text string) (string, error) {
		if p.opts.UnicodeNFC {
			text = norm.NFC.String(text)
		}
		// A Caser holds state and is not shared between workers.
		return cases.Lower(p.lang).String(text), nil
	})
}

// Tokenize splits each text on single spaces. Afterwards processed_text
// holds tokens.
func (p *Pipeline) Tokenize(ctx context.Context, c *document.Corpus) error {
	keys, texts, err := rawTexts(StageTokenize, c)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, key := range keys {
		d, _ := c.Get(key)
		d.ProcessedText = document.Tokens(SplitTokens(texts[i]))
	}
	p.logger.Debug("stage finished", "stage", StageTokenize, "documents", len(keys))
	return nil
}

// FuseMultiwords fuses known multiword pairs. Without a dictionary the
// tokens are left unchanged.
func (p *Pipeline) FuseMultiwords(ctx context.Context, c *document.Corpus) error {
	_, err := p.fuse(ctx, c)
	return err
}

// fuse returns the number of pairs fused.
func (p *Pipeline) fuse(ctx context.Context, c *document.Corpus) (int, error) {
	return p.mapTokens(ctx, c, StageFuse, func(tokens []string) ([]string, int) {
		out := FuseTokens(tokens, p.opts.Lexicon.MWE)
		return out, len(tokens) - len(out)
	})
}

// Clean drops tokens rejected by KeepToken, then runs the enabled post-steps
// in order: rare-term pruning, custom stopword removal.
func (p *Pipeline) Clean(ctx context.Context, c *document.Corpus, opts CleanOptions) error {
	_, err := p.clean(ctx, c, opts)
	return err
}

type cleanCounts struct {
	cleaned, rare, stopwords int
}

func (p *Pipeline) clean(ctx context.Context, c *document.Corpus, opts CleanOptions) (cleanCounts, error) {
	var counts cleanCounts
	if opts.RareTermThreshold < 0 {
		return counts, fmt.Errorf("%s: rare term threshold %d: %w", StageClean, opts.RareTermThreshold, internalerr.ErrInvalidInput)
	}
	if opts.CustomStopwords && p.opts.Lexicon.Custom == nil {
		return counts, fmt.Errorf("%s: custom stopwords requested but not loaded: %w", StageClean, internalerr.ErrMissingResource)
	}

	var err error
	counts.cleaned, err = p.mapTokens(ctx, c, StageClean, func(tokens []string) ([]string, int) {
		return filterTokens(tokens, KeepToken)
	})
	if err != nil {
		return counts, err
	}
	if opts.RareTermThreshold > 0 {
		if counts.rare, err = p.removeRareTerms(ctx, c, opts.RareTermThreshold); err != nil {
			return counts, err
		}
	}
	if opts.CustomStopwords {
		if counts.stopwords, err = p.removeCustomStopwords(ctx, c); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

// RemoveRareTerms removes every occurrence of tokens whose total frequency
// across the corpus is at most n.
func (p *Pipeline) RemoveRareTerms(ctx context.Context, c *document.Corpus, n int) error {
	_, err := p.removeRareTerms(ctx, c, n)
	return err
}

func (p *Pipeline) removeRareTerms(ctx context.Context, c *document.Corpus, n int) (int, error) {
	keys, lists, err := tokenLists(StageRareTerms, c)
	if err != nil {
		return 0, err
	}
	counts := make(map[string]int)
	for _, tokens := range lists {
		for _, t := range tokens {
			counts[t]++
		}
	}
	rare := make(map[string]struct{})
	for t, freq := range counts {
		if freq <= n {
			rare[t] = struct{}{}
		}
	}
	p.logger.Debug("rare terms collected", "threshold", n, "terms", len(rare))
	if len(rare) == 0 {
		return 0, nil
	}
	return p.commitTokens(ctx, c, StageRareTerms, keys, lists, func(tokens []string) ([]string, int) {
		return filterTokens(tokens, func(t string) bool {
			_, drop := rare[t]
			return !drop
		})
	})
}

// RemoveCustomStopwords drops tokens listed in the custom stopword list.
func (p *Pipeline) RemoveCustomStopwords(ctx context.Context, c *document.Corpus) error {
	_, err := p.removeCustomStopwords(ctx, c)
	return err
}

func (p *Pipeline) removeCustomStopwords(ctx context.Context, c *document.Corpus) (int, error) {
	custom := p.opts.Lexicon.Custom
	if custom == nil {
		return 0, fmt.Errorf("%s: custom stopwords not loaded: %w", StageStopwords, internalerr.ErrMissingResource)
	}
	return p.mapTokens(ctx, c, StageStopwords, func(tokens []string) ([]string, int) {
		return filterTokens(tokens, func(t string) bool { return !custom.Contains(t) })
	})
}

// mapText validates that every document holds free text, computes fn for
// all of them and only then stores the results.
func (p *Pipeline) mapText(ctx context.Context, c *document.Corpus, stage string, fn func(ctx context.Context, key, text string) (string, error)) error {
	keys, texts, err := rawTexts(stage, c)
	if err != nil {
		return err
	}
	out := make([]string, len(keys))
	err = p.forEach(ctx, len(keys), func(ctx context.Context, i int) error {
		s, err := fn(ctx, keys[i], texts[i])
		if err != nil {
			return err
		}
		out[i] = s
		return nil
	})
	if err != nil {
		return err
	}
	for i, key := range keys {
		d, _ := c.Get(key)
		d.ProcessedText = document.RawText(out[i])
	}
	p.logger.Debug("stage finished", "stage", stage, "documents", len(keys))
	return nil
}

// mapTokens validates that every document holds tokens and replaces them
// with fn's result. It returns the total number of tokens fn removed.
func (p *Pipeline) mapTokens(ctx context.Context, c *document.Corpus, stage string, fn func([]string) ([]string, int)) (int, error) {
	keys, lists, err := tokenLists(stage, c)
	if err != nil {
		return 0, err
	}
	return p.commitTokens(ctx, c, stage, keys, lists, fn)
}

func (p *Pipeline) commitTokens(ctx context.Context, c *document.Corpus, stage string, keys []string, lists [][]string, fn func([]string) ([]string, int)) (int, error) {
	out := make([][]string, len(keys))
	removed := make([]int, len(keys))
	err := p.forEach(ctx, len(keys), func(_ context.Context, i int) error {
		out[i], removed[i] = fn(lists[i])
		return nil
	})
	if err != nil {
		return 0, err
	}
	total := 0
	for i, key := range keys {
		d, _ := c.Get(key)
		d.ProcessedText = document.Tokens(out[i])
		total += removed[i]
	}
	p.logger.Debug("stage finished", "stage", stage, "documents", len(keys), "removed", total)
	return total, nil
}

// forEach runs fn for indices 0..n-1, concurrently when Workers > 1. Each
// index is handled by exactly one goroutine.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if p.opts.Workers < 2 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Indices skipped after cancellation have no result.
	return ctx.Err()
}

func rawTexts(stage string, c *document.Corpus) ([]string, []string, error) {
	keys := c.Keys()
	texts := make([]string, len(keys))
	for i, key := range keys {
		d, _ := c.Get(key)
		s, err := document.AsRaw(stage, key, d.ProcessedText)
		if err != nil {
			return nil, nil, err
		}
		texts[i] = s
	}
	return keys, texts, nil
}

func tokenLists(stage string, c *document.Corpus) ([]string, [][]string, error) {
	keys := c.Keys()
	lists := make([][]string, len(keys))
	for i, key := range keys {
		d, _ := c.Get(key)
		toks, err := document.AsTokens(stage, key, d.ProcessedText)
		if err != nil {
			return nil, nil, err
		}
		lists[i] = toks
	}
	return keys, lists, nil
}

// orderLike returns the members of subset in the order they appear in keys.
func orderLike(keys, subset []string) []string {
	if len(subset) == 0 {
		return nil
	}
	in := make(map[string]struct{}, len(subset))
	for _, k := range subset {
		in[k] = struct{}{}
	}
	out := make([]string, 0, len(subset))
	for _, k := range keys {
		if _, ok := in[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (p *Pipeline) newRunID(t time.Time) ulid.ULID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), p.entropy)
}
