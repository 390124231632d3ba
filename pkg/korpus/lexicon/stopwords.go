package lexicon

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

//go:embed data/german.txt
var germanStopwords []byte

// Stopwords is a read-only set of terms.
type Stopwords struct {
	set map[string]struct{}
}

// NewStopwords builds a set from terms. Blank entries are skipped and
// surrounding whitespace is trimmed; case is kept.
func NewStopwords(terms []string) *Stopwords {
	s := &Stopwords{set: make(map[string]struct{}, len(terms))}
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		s.set[t] = struct{}{}
	}
	return s
}

// Contains reports whether term is in the set. A nil set contains nothing.
func (s *Stopwords) Contains(term string) bool {
	if s == nil {
		return false
	}
	_, ok := s.set[term]
	return ok
}

// Len returns the number of terms.
func (s *Stopwords) Len() int {
	if s == nil {
		return 0
	}
	return len(s.set)
}

// Terms returns the terms sorted.
func (s *Stopwords) Terms() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.set))
	for t := range s.set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultStopwords returns the built-in stopword list for lang.
func DefaultStopwords(lang string) (*Stopwords, error) {
	switch strings.ToLower(lang) {
	case "de", "deu", "ger", "german":
		return NewStopwords(splitLines(germanStopwords)), nil
	}
	return nil, fmt.Errorf("no built-in stopwords for language %q: %w", lang, internalerr.ErrMissingResource)
}

// LoadStopwords reads a stopword list. Files ending in .yaml or .yml use the
// `terms:` layout of the stoplist config; anything else is read as plain
// text with one term per line. Lines starting with # are comments.
func LoadStopwords(path string) (*Stopwords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stopwords %s: %w: %w", path, internalerr.ErrMissingResource, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc struct {
			Terms []string `yaml:"terms"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse stopwords %s: %w", path, err)
		}
		return NewStopwords(doc.Terms), nil
	}
	return NewStopwords(splitLines(data)), nil
}

func splitLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
