// Package lexicon holds the read-only lexical resources of a pipeline run:
// the language stopword set, the multiword-expression dictionary and an
// optional custom stopword list.
//
// Resources are loaded once from explicit paths. A configured file that is
// missing fails loading with ErrMissingResource; nothing is downloaded.
package lexicon

import (
	"fmt"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Lexicon bundles the resources used by the normalization pipeline.
type Lexicon struct {
	Stopwords *Stopwords
	MWE       *MWE
	Custom    *Stopwords
}

// Paths names the resource files. Empty paths select the built-in stopword
// list for Language and leave the optional resources unset.
type Paths struct {
	Language        string
	Stopwords       string
	MWEDictionary   string
	MWEReversed     string
	CustomStopwords string
}

// Load reads every configured resource.
func Load(p Paths) (*Lexicon, error) {
	lex := &Lexicon{}

	var err error
	if p.Stopwords != "" {
		lex.Stopwords, err = LoadStopwords(p.Stopwords)
	} else {
		lex.Stopwords, err = DefaultStopwords(p.Language)
	}
	if err != nil {
		return nil, fmt.Errorf("load stopwords: %w", err)
	}

	switch {
	case p.MWEDictionary != "" && p.MWEReversed != "":
		if lex.MWE, err = LoadMWE(p.MWEDictionary, p.MWEReversed); err != nil {
			return nil, err
		}
	case p.MWEDictionary != "" || p.MWEReversed != "":
		return nil, fmt.Errorf("mwe dictionary and reverse map must be configured together: %w", internalerr.ErrInvalidConfig)
	}

	if p.CustomStopwords != "" {
		if lex.Custom, err = LoadStopwords(p.CustomStopwords); err != nil {
			return nil, fmt.Errorf("load custom stopwords: %w", err)
		}
	}
	return lex, nil
}
