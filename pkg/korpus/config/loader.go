package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cognicore/korpus/pkg/korpus/annotate"
	"github.com/cognicore/korpus/pkg/korpus/lexicon"
	"github.com/cognicore/korpus/pkg/korpus/pipeline"
	"github.com/cognicore/korpus/pkg/korpus/store"
	"github.com/cognicore/korpus/pkg/korpus/store/memstore"
	"github.com/cognicore/korpus/pkg/korpus/store/sqlite"
)

// Loader constructs the components of a run from a Config.
type Loader struct {
	Config *Config
	Logger *slog.Logger
	// HTTPClient is used by the HTTP annotator when set.
	HTTPClient *http.Client
}

// Components holds everything a run needs.
type Components struct {
	Lexicon   *lexicon.Lexicon
	Annotator annotate.Annotator
	Pipeline  *pipeline.Pipeline
	// Archive is nil unless an archive is configured.
	Archive store.Archive
}

// Close releases the archive.
func (c *Components) Close() error {
	if c.Archive == nil {
		return nil
	}
	return c.Archive.Close()
}

// Load reads the lexical resources, builds the annotator and pipeline and
// opens the archive.
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	cfg := l.Config
	if cfg == nil {
		cfg = Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lex, err := lexicon.Load(lexicon.Paths{
		Language:        cfg.Language,
		Stopwords:       cfg.Lexicon.Stopwords,
		MWEDictionary:   cfg.Lexicon.MWEDictionary,
		MWEReversed:     cfg.Lexicon.MWEReversed,
		CustomStopwords: cfg.Lexicon.CustomStopwords,
	})
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	comp := &Components{Lexicon: lex}

	if comp.Annotator, err = l.annotator(cfg, lex); err != nil {
		return nil, fmt.Errorf("build annotator: %w", err)
	}

	annotateTimeout, _ := cfg.AnnotateTimeout()
	comp.Pipeline, err = pipeline.New(pipeline.Options{
		Lexicon:           lex,
		Annotator:         comp.Annotator,
		RemoveStopwords:   cfg.Pipeline.RemoveStopwords,
		ChunkWords:        cfg.Pipeline.ChunkWords,
		AnnotateTimeout:   annotateTimeout,
		Workers:           cfg.Pipeline.Workers,
		Language:          cfg.Language,
		UnicodeNFC:        cfg.Pipeline.UnicodeNFC,
		FuseMultiwords:    cfg.Pipeline.FuseMultiwords,
		RareTermThreshold: cfg.Pipeline.RareTermThreshold,
		CustomStopwords:   cfg.Pipeline.CustomStopwords,
		Logger:            l.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	switch {
	case cfg.Archive.SQLitePath != "":
		if comp.Archive, err = sqlite.OpenSQLite(ctx, cfg.Archive.SQLitePath); err != nil {
			return nil, fmt.Errorf("open archive %s: %w", cfg.Archive.SQLitePath, err)
		}
	case cfg.Archive.Memory:
		comp.Archive = memstore.New()
	}
	return comp, nil
}

func (l *Loader) annotator(cfg *Config, lex *lexicon.Lexicon) (annotate.Annotator, error) {
	ac := cfg.Annotator
	switch ac.Kind {
	case AnnotatorStemmer:
		st, err := annotate.NewStemmer(cfg.Language, ac.CacheSize)
		if err != nil {
			return nil, err
		}
		st.MaxLength = ac.MaxLength
		st.Stopwords = lex.Stopwords
		return st, nil
	default:
		httpClient := l.HTTPClient
		if httpClient == nil {
			timeout, _ := cfg.AnnotatorTimeout()
			httpClient = &http.Client{Timeout: timeout}
		}
		return &annotate.Client{
			BaseURL:    ac.BaseURL,
			APIKey:     ac.APIKey,
			Model:      ac.Model,
			MaxLength:  ac.MaxLength,
			HTTPClient: httpClient,
			Limiter:    annotate.NewRateLimiter(ac.RateLimit, ac.Burst),
		}, nil
	}
}
