package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/korpus/pkg/korpus/annotate"
	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/lexicon"
)

var fakeTokens = regexp.MustCompile(`[\p{L}\p{N}]+|[^\s\p{L}\p{N}]`)

// fakeAnnotator splits words from punctuation and maps lemmas through a
// table. Inputs with more than maxWords words exhaust it.
type fakeAnnotator struct {
	lemmas   map[string]string
	maxWords int
	calls    atomic.Int32
}

func (f *fakeAnnotator) Annotate(ctx context.Context, text string) ([]annotate.Token, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.maxWords > 0 && len(strings.Fields(text)) > f.maxWords {
		return nil, &internalerr.ResourceExhaustionError{Size: len(text)}
	}
	var out []annotate.Token
	for _, m := range fakeTokens.FindAllString(text, -1) {
		lemma := m
		if l, ok := f.lemmas[m]; ok {
			lemma = l
		}
		out = append(out, annotate.Token{Text: m, Lemma: lemma})
	}
	return out, nil
}

func rawCorpus(t *testing.T, texts ...string) *document.Corpus {
	t.Helper()
	c := document.NewCorpus("test")
	for i, text := range texts {
		key := string(rune('A' + i))
		require.NoError(t, c.Add(key, &document.Doc{Title: key, Fulltext: text, ProcessedText: document.RawText(text)}))
	}
	return c
}

func tokenCorpus(t *testing.T, lists ...[]string) *document.Corpus {
	t.Helper()
	c := document.NewCorpus("test")
	for i, toks := range lists {
		key := string(rune('A' + i))
		require.NoError(t, c.Add(key, &document.Doc{Title: key, ProcessedText: document.Tokens(toks)}))
	}
	return c
}

func processed(c *document.Corpus, key string) document.Text {
	d, _ := c.Get(key)
	return d.ProcessedText
}

func germanLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	sw, err := lexicon.DefaultStopwords("de")
	require.NoError(t, err)
	return &lexicon.Lexicon{Stopwords: sw}
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestPreClean(t *testing.T) {
	c := rawCorpus(t, "Satz eins.Satz zwei!Satz drei")
	p := newPipeline(t, Options{})
	require.NoError(t, p.PreClean(context.Background(), c))
	assert.Equal(t, document.RawText("Satz eins. Satz zwei! Satz drei"), processed(c, "A"))
}

func TestLemmatizeRemovesStopwords(t *testing.T) {
	ann := &fakeAnnotator{lemmas: map[string]string{"Anträge": "Antrag", "wurden": "werden"}}
	c := rawCorpus(t, "Die Anträge wurden Gestellt")

	p := newPipeline(t, Options{Lexicon: germanLexicon(t), Annotator: ann, RemoveStopwords: true})
	require.NoError(t, p.Lemmatize(context.Background(), c))
	// "Die" matches the stopword list after case folding; "wurden" is not listed.
	assert.Equal(t, document.RawText("Antrag werden Gestellt"), processed(c, "A"))
}

func TestLemmatizeKeepsStopwordsWhenDisabled(t *testing.T) {
	ann := &fakeAnnotator{lemmas: map[string]string{"Anträge": "Antrag"}}
	c := rawCorpus(t, "Die Anträge")

	p := newPipeline(t, Options{Lexicon: germanLexicon(t), Annotator: ann})
	require.NoError(t, p.Lemmatize(context.Background(), c))
	assert.Equal(t, document.RawText("Die Antrag"), processed(c, "A"))
}

func TestLemmatizeChunkedRetry(t *testing.T) {
	ann := &fakeAnnotator{maxWords: 2}
	c := rawCorpus(t, "eins zwei drei vier fünf", "kurz")

	p := newPipeline(t, Options{Annotator: ann, ChunkWords: 2})
	chunked, err := p.lemmatize(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, chunked)
	assert.Equal(t, document.RawText("eins zwei drei vier fünf"), processed(c, "A"))
	assert.Equal(t, document.RawText("kurz"), processed(c, "B"))
	// one failed full call plus three chunks for A, one call for B
	assert.Equal(t, int32(5), ann.calls.Load())
}

func TestLemmatizeFatalErrorLeavesCorpusUntouched(t *testing.T) {
	boom := errors.New("service down")
	ann := annotate.Func(func(_ context.Context, text string) ([]annotate.Token, error) {
		if text == "zwei" {
			return nil, boom
		}
		return []annotate.Token{{Text: text, Lemma: "x"}}, nil
	})
	c := rawCorpus(t, "eins", "zwei")

	p := newPipeline(t, Options{Annotator: ann})
	err := p.Lemmatize(context.Background(), c)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"B"`)
	assert.Equal(t, document.RawText("eins"), processed(c, "A"))
}

func TestLemmatizeInputTooLongIsFatal(t *testing.T) {
	stem, err := annotate.NewStemmer("en", 0)
	require.NoError(t, err)
	stem.MaxLength = 4
	c := rawCorpus(t, "far too long")

	p := newPipeline(t, Options{Annotator: stem})
	err = p.Lemmatize(context.Background(), c)
	assert.ErrorIs(t, err, internalerr.ErrInputTooLong)
	assert.Equal(t, document.RawText("far too long"), processed(c, "A"))
}

func TestLemmatizeRequiresAnnotator(t *testing.T) {
	p := newPipeline(t, Options{})
	err := p.Lemmatize(context.Background(), rawCorpus(t, "x"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestNormalize(t *testing.T) {
	c := rawCorpus(t, "ÄRGER Über GROSSE Straße", "Café")
	p := newPipeline(t, Options{UnicodeNFC: true})
	require.NoError(t, p.Normalize(context.Background(), c))
	assert.Equal(t, document.RawText("ärger über grosse straße"), processed(c, "A"))
	assert.Equal(t, document.RawText("café"), processed(c, "B"))
}

func TestTokenize(t *testing.T) {
	c := rawCorpus(t, "a b  c", "")
	p := newPipeline(t, Options{})
	require.NoError(t, p.Tokenize(context.Background(), c))
	assert.Equal(t, document.Tokens{"a", "b", "", "c"}, processed(c, "A"))
	assert.Equal(t, document.Tokens{""}, processed(c, "B"))
}

func TestStagesRejectWrongRepresentation(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, Options{Annotator: &fakeAnnotator{}, Lexicon: &lexicon.Lexicon{Custom: lexicon.NewStopwords([]string{"x"})}})

	textStages := map[string]func(*document.Corpus) error{
		StagePreClean:  func(c *document.Corpus) error { return p.PreClean(ctx, c) },
		StageLemmatize: func(c *document.Corpus) error { return p.Lemmatize(ctx, c) },
		StageNormalize: func(c *document.Corpus) error { return p.Normalize(ctx, c) },
		StageTokenize:  func(c *document.Corpus) error { return p.Tokenize(ctx, c) },
	}
	for name, run := range textStages {
		t.Run(name, func(t *testing.T) {
			c := rawCorpus(t, "Erster.Text")
			require.NoError(t, c.Add("Z", &document.Doc{ProcessedText: document.Tokens{"x"}}))

			err := run(c)
			var rerr *internalerr.RepresentationError
			require.True(t, errors.As(err, &rerr), "got %v", err)
			assert.Equal(t, name, rerr.Stage)
			assert.Equal(t, "Z", rerr.Key)
			assert.Equal(t, "text", rerr.Want)
			assert.Equal(t, "tokens", rerr.Got)
			assert.Equal(t, document.RawText("Erster.Text"), processed(c, "A"), "no document may change")
		})
	}

	tokenStages := map[string]func(*document.Corpus) error{
		StageFuse:      func(c *document.Corpus) error { return p.FuseMultiwords(ctx, c) },
		StageClean:     func(c *document.Corpus) error { return p.Clean(ctx, c, CleanOptions{}) },
		StageRareTerms: func(c *document.Corpus) error { return p.RemoveRareTerms(ctx, c, 1) },
		StageStopwords: func(c *document.Corpus) error { return p.RemoveCustomStopwords(ctx, c) },
	}
	for name, run := range tokenStages {
		t.Run(name, func(t *testing.T) {
			c := tokenCorpus(t, []string{"x", "1"})
			require.NoError(t, c.Add("Z", &document.Doc{}))

			err := run(c)
			var rerr *internalerr.RepresentationError
			require.True(t, errors.As(err, &rerr), "got %v", err)
			assert.Equal(t, "missing", rerr.Got)
			assert.Equal(t, document.Tokens{"x", "1"}, processed(c, "A"), "no document may change")
		})
	}
}

func TestRemoveRareTermsCorpusWide(t *testing.T) {
	c := tokenCorpus(t,
		[]string{"y", "x", "y"},
		[]string{"y", "z", "z"},
	)
	p := newPipeline(t, Options{})
	removed, err := p.removeRareTerms(context.Background(), c, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.Equal(t, document.Tokens{"y", "y"}, processed(c, "A"))
	assert.Equal(t, document.Tokens{"y", "z", "z"}, processed(c, "B"))

	require.NoError(t, p.RemoveRareTerms(context.Background(), c, 2))
	assert.Equal(t, document.Tokens{"y", "y"}, processed(c, "A"))
	assert.Equal(t, document.Tokens{"y"}, processed(c, "B"))
}

func TestCleanPostSteps(t *testing.T) {
	lex := &lexicon.Lexicon{Custom: lexicon.NewStopwords([]string{"drucksache"})}
	c := tokenCorpus(t,
		[]string{"antrag", "3.14", "drucksache", "selten", "x@y.de", "antrag"},
		[]string{"antrag", "!!!", "drucksache", "+4930"},
	)
	p := newPipeline(t, Options{Lexicon: lex})

	counts, err := p.clean(context.Background(), c, CleanOptions{RareTermThreshold: 1, CustomStopwords: true})
	require.NoError(t, err)
	assert.Equal(t, cleanCounts{cleaned: 4, rare: 1, stopwords: 2}, counts)
	assert.Equal(t, document.Tokens{"antrag", "antrag"}, processed(c, "A"))
	assert.Equal(t, document.Tokens{"antrag"}, processed(c, "B"))
}

func TestCleanCustomStopwordsRequireList(t *testing.T) {
	c := tokenCorpus(t, []string{"a", "1"})
	p := newPipeline(t, Options{})
	err := p.Clean(context.Background(), c, CleanOptions{CustomStopwords: true})
	assert.ErrorIs(t, err, internalerr.ErrMissingResource)
	assert.Equal(t, document.Tokens{"a", "1"}, processed(c, "A"))
}

func TestFuseMultiwordsStage(t *testing.T) {
	m := lexicon.NewMWE()
	m.Add("open", "data", "open_data")
	c := tokenCorpus(t, []string{"open", "data", "portal", "open"})
	p := newPipeline(t, Options{Lexicon: &lexicon.Lexicon{MWE: m}})

	n, err := p.fuse(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, document.Tokens{"open_data", "portal", "open"}, processed(c, "A"))
}

func prepareCorpus(t *testing.T) *document.Corpus {
	return rawCorpus(t,
		"Die Daten.Open Data ist gut!",
		"Open Data und Daten: 2021",
		"Daten gut",
	)
}

func prepareOptions(t *testing.T) Options {
	lex := germanLexicon(t)
	lex.MWE = lexicon.NewMWE()
	lex.MWE.Add("open", "data", "open_data")
	lex.Custom = lexicon.NewStopwords([]string{"gut"})
	return Options{
		Lexicon:           lex,
		Annotator:         &fakeAnnotator{},
		RemoveStopwords:   true,
		FuseMultiwords:    true,
		RareTermThreshold: 1,
		CustomStopwords:   true,
	}
}

func TestPrepare(t *testing.T) {
	c := prepareCorpus(t)
	p := newPipeline(t, prepareOptions(t))

	rep, err := p.Prepare(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, document.Tokens{"daten", "open_data"}, processed(c, "A"))
	assert.Equal(t, document.Tokens{"open_data", "daten"}, processed(c, "B"))
	assert.Equal(t, document.Tokens{"daten"}, processed(c, "C"))

	assert.NotEqual(t, [16]byte{}, [16]byte(rep.RunID))
	assert.Equal(t, "test", rep.Corpus)
	assert.Equal(t, 3, rep.Documents)
	assert.Equal(t, 2, rep.FusedPairs)
	assert.Equal(t, 4, rep.CleanedTokens)
	assert.Equal(t, 0, rep.RareRemoved)
	assert.Equal(t, 2, rep.StopwordsRemoved)
	assert.Equal(t, 5, rep.Tokens)
	assert.Empty(t, rep.Chunked)

	stages := make([]string, len(rep.Stages))
	for i, s := range rep.Stages {
		stages[i] = s.Stage
	}
	assert.Equal(t, []string{StagePreClean, StageLemmatize, StageNormalize, StageTokenize, StageFuse, StageClean}, stages)

	run := rep.Run(nil)
	assert.Equal(t, rep.RunID.String(), run.ID)
	assert.Equal(t, stages, run.Stages)
	assert.Equal(t, 5, run.Tokens)
	assert.Empty(t, run.Err)
	assert.Equal(t, "boom", rep.Run(errors.New("boom")).Err)

	d, _ := c.Get("A")
	assert.Equal(t, "Die Daten.Open Data ist gut!", d.Fulltext, "fulltext is never modified")
}

func TestPrepareParallelMatchesSequential(t *testing.T) {
	seq := prepareCorpus(t)
	_, err := newPipeline(t, prepareOptions(t)).Prepare(context.Background(), seq)
	require.NoError(t, err)

	opts := prepareOptions(t)
	opts.Workers = 4
	par := prepareCorpus(t)
	_, err = newPipeline(t, opts).Prepare(context.Background(), par)
	require.NoError(t, err)

	for _, key := range seq.Keys() {
		assert.Equal(t, processed(seq, key), processed(par, key), key)
	}
}

func TestPrepareRunIDsAreDistinct(t *testing.T) {
	p := newPipeline(t, prepareOptions(t))
	r1, err := p.Prepare(context.Background(), prepareCorpus(t))
	require.NoError(t, err)
	r2, err := p.Prepare(context.Background(), prepareCorpus(t))
	require.NoError(t, err)
	assert.Equal(t, -1, r1.RunID.Compare(r2.RunID))
}

func TestPrepareStopsOnFailure(t *testing.T) {
	c := prepareCorpus(t)
	opts := prepareOptions(t)
	opts.Lexicon.Custom = nil
	p := newPipeline(t, opts)

	rep, err := p.Prepare(context.Background(), c)
	require.ErrorIs(t, err, internalerr.ErrMissingResource)
	require.NotNil(t, rep)
	assert.Len(t, rep.Stages, 5)
	assert.Equal(t, document.Tokens{"daten", ".", "open_data", "gut", "!"}, processed(c, "A"), "clean never started")
}

func TestPrepareCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPipeline(t, prepareOptions(t)).Prepare(ctx, prepareCorpus(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelStagesCancelledLeaveCorpusUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPipeline(t, Options{Workers: 4})

	c := rawCorpus(t, "Satz eins.Satz zwei", "Noch ein Satz")
	require.ErrorIs(t, p.PreClean(ctx, c), context.Canceled)
	require.ErrorIs(t, p.Normalize(ctx, c), context.Canceled)
	assert.Equal(t, document.RawText("Satz eins.Satz zwei"), processed(c, "A"))
	assert.Equal(t, document.RawText("Noch ein Satz"), processed(c, "B"))

	tc := tokenCorpus(t, []string{"a", "1"}, []string{"b", "@"})
	require.ErrorIs(t, p.Clean(ctx, tc, CleanOptions{}), context.Canceled)
	assert.Equal(t, document.Tokens{"a", "1"}, processed(tc, "A"))
	assert.Equal(t, document.Tokens{"b", "@"}, processed(tc, "B"))

	opts := prepareOptions(t)
	opts.Workers = 4
	pc := prepareCorpus(t)
	want := pc.Clone()
	_, err := newPipeline(t, opts).Prepare(ctx, pc)
	require.ErrorIs(t, err, context.Canceled)
	for _, key := range want.Keys() {
		assert.Equal(t, processed(want, key), processed(pc, key), key)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Language: "not a tag!"})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	_, err = New(Options{RareTermThreshold: -1})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}
