package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/korpus/pkg/korpus/annotate"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/store/memstore"
)

func TestLoaderHTTPAnnotator(t *testing.T) {
	dir := t.TempDir()
	cfg := Defaults()
	cfg.Annotator.BaseURL = "http://localhost:9000"
	cfg.Annotator.RateLimit = 1
	cfg.Lexicon.CustomStopwords = writeFile(t, dir, "custom.txt", "bundestag\n")

	comp, err := (&Loader{Config: cfg}).Load(context.Background())
	require.NoError(t, err)
	defer comp.Close()

	client, ok := comp.Annotator.(*annotate.Client)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9000", client.BaseURL)
	assert.Equal(t, 9_131_400, client.MaxLength)
	assert.NotNil(t, client.Limiter)
	assert.NotNil(t, client.HTTPClient)

	assert.True(t, comp.Lexicon.Stopwords.Contains("und"))
	assert.True(t, comp.Lexicon.Custom.Contains("bundestag"))
	assert.Nil(t, comp.Lexicon.MWE)
	assert.NotNil(t, comp.Pipeline)
	assert.Nil(t, comp.Archive)
}

func TestLoaderStemmerAndArchive(t *testing.T) {
	dir := t.TempDir()
	cfg := Defaults()
	cfg.Language = "en"
	cfg.Annotator.Kind = AnnotatorStemmer
	cfg.Pipeline.CustomStopwords = false
	cfg.Lexicon.Stopwords = writeFile(t, dir, "stop.txt", "the\nand\n")
	cfg.Archive.SQLitePath = filepath.Join(dir, "archive.db")

	comp, err := (&Loader{Config: cfg}).Load(context.Background())
	require.NoError(t, err)
	defer comp.Close()

	st, ok := comp.Annotator.(*annotate.Stemmer)
	require.True(t, ok)
	assert.Same(t, comp.Lexicon.Stopwords, st.Stopwords)
	require.NotNil(t, comp.Archive)

	names, err := comp.Archive.Corpora(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoaderMissingResource(t *testing.T) {
	cfg := Defaults()
	cfg.Annotator.BaseURL = "http://x"
	cfg.Lexicon.CustomStopwords = "/nonexistent/custom.txt"

	_, err := (&Loader{Config: cfg}).Load(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrMissingResource)
}

func TestLoaderInvalidConfig(t *testing.T) {
	_, err := (&Loader{}).Load(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestLoaderMemoryArchive(t *testing.T) {
	cfg := Defaults()
	cfg.Annotator.Kind = AnnotatorStemmer
	cfg.Language = "en"
	cfg.Pipeline.CustomStopwords = false
	cfg.Lexicon.Stopwords = writeFile(t, t.TempDir(), "stop.txt", "the\n")
	cfg.Archive.Memory = true

	comp, err := (&Loader{Config: cfg}).Load(context.Background())
	require.NoError(t, err)
	defer comp.Close()

	_, ok := comp.Archive.(*memstore.Store)
	assert.True(t, ok)

	cfg.Archive.SQLitePath = filepath.Join(t.TempDir(), "archive.db")
	_, err = (&Loader{Config: cfg}).Load(context.Background())
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}
