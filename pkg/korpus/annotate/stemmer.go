package annotate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kljensen/snowball"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/lexicon"
)

// DefaultCacheSize is the number of stems kept by a Stemmer.
const DefaultCacheSize = 50_000

// tokenPattern matches words (letters and digits joined by inner hyphens,
// apostrophes, dots or commas) and single punctuation marks.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:[-'.,][\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`)

var snowballLanguages = map[string]string{
	"de": "german",
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"hu": "hungarian",
}

// Stemmer is an offline Annotator that uses the stem of a word as its base
// form.
type Stemmer struct {
	// MaxLength is the input ceiling in characters.
	MaxLength int
	// Stopwords marks tokens whose lowercased text it contains.
	Stopwords *lexicon.Stopwords

	language string
	cache    *lru.Cache[string, string]
}

// NewStemmer returns a stemmer for language, given as an ISO code or a
// snowball language name.
func NewStemmer(language string, cacheSize int) (*Stemmer, error) {
	lang := strings.ToLower(language)
	if name, ok := snowballLanguages[lang]; ok {
		lang = name
	}
	if _, err := snowball.Stem("test", lang, true); err != nil {
		return nil, fmt.Errorf("stemmer for %q: %w: %w", language, internalerr.ErrMissingResource, err)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Stemmer{language: lang, cache: cache}, nil
}

// Annotate splits text into word and punctuation tokens and stems the words.
func (s *Stemmer) Annotate(ctx context.Context, text string) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkLength(text, s.MaxLength); err != nil {
		return nil, fmt.Errorf("stemmer: %w", err)
	}

	matches := tokenPattern.FindAllString(text, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		lower := strings.ToLower(m)
		tokens = append(tokens, Token{
			Text:   m,
			Lemma:  s.lemma(m, lower),
			IsStop: s.Stopwords.Contains(lower),
		})
	}
	return tokens, nil
}

func (s *Stemmer) lemma(text, lower string) string {
	if !hasLetter(lower) {
		return text
	}
	if stem, ok := s.cache.Get(lower); ok {
		return stem
	}
	stem, err := snowball.Stem(lower, s.language, true)
	if err != nil || stem == "" {
		stem = lower
	}
	s.cache.Add(lower, stem)
	return stem
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
