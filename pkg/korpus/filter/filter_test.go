package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

func corpusWithKeys(t *testing.T, keys ...string) *document.Corpus {
	t.Helper()
	c := document.NewCorpus("test")
	for _, k := range keys {
		require.NoError(t, c.Add(k, &document.Doc{Title: k}))
	}
	return c
}

func TestByTitle(t *testing.T) {
	tests := []struct {
		name          string
		keys          []string
		keywords      []string
		caseSensitive bool
		wantKeys      []string
		wantRemoved   int
	}{
		{
			name:        "substring match",
			keys:        []string{"Foo", "Foobar", "Bar"},
			keywords:    []string{"Foo"},
			wantKeys:    []string{"Foo", "Foobar"},
			wantRemoved: 1,
		},
		{
			name:        "case insensitive by default",
			keys:        []string{"Antrag Dateninstitut", "DATENINSTITUT", "Sonstiges"},
			keywords:    []string{"dateninstitut"},
			wantKeys:    []string{"Antrag Dateninstitut", "DATENINSTITUT"},
			wantRemoved: 1,
		},
		{
			name:          "case sensitive",
			keys:          []string{"Antrag Dateninstitut", "DATENINSTITUT"},
			keywords:      []string{"Dateninstitut"},
			caseSensitive: true,
			wantKeys:      []string{"Antrag Dateninstitut"},
			wantRemoved:   1,
		},
		{
			name:        "any keyword",
			keys:        []string{"Daten", "Institut", "Bericht"},
			keywords:    []string{"daten", "institut"},
			wantKeys:    []string{"Daten", "Institut"},
			wantRemoved: 1,
		},
		{
			name:        "matches disambiguated keys",
			keys:        []string{"Bericht", "Bericht_2"},
			keywords:    []string{"_2"},
			wantKeys:    []string{"Bericht_2"},
			wantRemoved: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := corpusWithKeys(t, tt.keys...)
			removed, err := ByTitle(c, tt.keywords, tt.caseSensitive)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.Equal(t, tt.wantKeys, c.Keys())
		})
	}
}

func TestByTitleRejectsEmptyKeywords(t *testing.T) {
	c := corpusWithKeys(t, "Foo")
	_, err := ByTitle(c, nil, false)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	_, err = ByTitle(c, []string{"Foo", ""}, false)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	assert.Equal(t, 1, c.Len())
}

func TestByRelevance(t *testing.T) {
	c := document.NewCorpus("test")
	for key, score := range map[string]float64{"low": 0.1, "edge": 0.5, "high": 0.9, "nan": math.NaN()} {
		d := &document.Doc{Title: key}
		d.SetRelevance("dateninstitut", score)
		require.NoError(t, c.Add(key, d))
	}

	removed, err := ByRelevance(c, 0.5, "dateninstitut")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{"edge", "high"}, c.Keys())
}

func TestByRelevanceMissingScore(t *testing.T) {
	c := document.NewCorpus("test")
	scored := &document.Doc{}
	scored.SetRelevance("x", 0.1)
	require.NoError(t, c.Add("scored", scored))
	require.NoError(t, c.Add("unscored", &document.Doc{}))

	removed, err := ByRelevance(c, 0.5, "x")
	require.ErrorIs(t, err, internalerr.ErrMissingRelevance)
	var merr *internalerr.MissingRelevanceError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "unscored", merr.Key)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 2, c.Len(), "nothing removed on error")
}

func TestByLength(t *testing.T) {
	c := document.NewCorpus("test")
	require.NoError(t, c.Add("two", &document.Doc{ProcessedText: document.Tokens{"a", "b"}}))
	require.NoError(t, c.Add("three", &document.Doc{ProcessedText: document.Tokens{"a", "b", "c"}}))
	require.NoError(t, c.Add("four", &document.Doc{ProcessedText: document.Tokens{"a", "b", "c", "d"}}))

	removed, err := ByLength(c, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"three", "four"}, c.Keys())

	kept, _ := c.Get("three")
	assert.Equal(t, document.Tokens{"a", "b", "c"}, kept.ProcessedText)
}

func TestByLengthRequiresTokens(t *testing.T) {
	c := document.NewCorpus("test")
	require.NoError(t, c.Add("short", &document.Doc{ProcessedText: document.Tokens{"a"}}))
	require.NoError(t, c.Add("raw", &document.Doc{ProcessedText: document.RawText("a b c")}))

	_, err := ByLength(c, 2)
	require.ErrorIs(t, err, internalerr.ErrRepresentation)
	assert.Equal(t, 2, c.Len())
}
