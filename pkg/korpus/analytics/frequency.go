// Package analytics computes corpus statistics over finished token
// sequences: term frequencies, TF-IDF relevance scores, quarterly term
// occurrence, co-occurrence pairs and the bag-of-words export consumed by
// topic-model tooling.
package analytics

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/cognicore/korpus/pkg/korpus/document"
)

// TermCount is a term and its total number of occurrences.
type TermCount struct {
	Term  string
	Count int
}

// TermFrequency counts every token across the corpus, most frequent first.
// Terms with equal counts keep the order in which they were first seen.
func TermFrequency(c *document.Corpus) ([]TermCount, error) {
	index := make(map[string]int)
	var out []TermCount
	err := eachTokens(c, "term_frequency", func(_ string, _ *document.Doc, toks []string) {
		for _, t := range toks {
			i, ok := index[t]
			if !ok {
				i = len(out)
				index[t] = i
				out = append(out, TermCount{Term: t})
			}
			out[i].Count++
		}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// WriteTermFrequencyCSV writes counts with a Term,Frequency header.
func WriteTermFrequencyCSV(w io.Writer, counts []TermCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Term", "Frequency"}); err != nil {
		return err
	}
	for _, tc := range counts {
		if err := cw.Write([]string{tc.Term, strconv.Itoa(tc.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ComputeRelevance scores term in every document with TF-IDF and stores the
// score as the document's relevance for term. Term frequency is the share of
// the document's tokens equal to term; inverse document frequency is
// ln(N/df). Documents without the term, and every document when no document
// contains it, get an explicit score of 0.
func ComputeRelevance(c *document.Corpus, term string) error {
	keys := c.Keys()
	tf := make([]float64, len(keys))
	df := 0
	i := 0
	err := eachTokens(c, "relevance", func(_ string, _ *document.Doc, toks []string) {
		n := 0
		for _, t := range toks {
			if t == term {
				n++
			}
		}
		if n > 0 {
			df++
			tf[i] = float64(n) / float64(len(toks))
		}
		i++
	})
	if err != nil {
		return err
	}

	idf := 0.0
	if df > 0 {
		idf = math.Log(float64(len(keys)) / float64(df))
	}
	for i, key := range keys {
		d, _ := c.Get(key)
		d.SetRelevance(term, tf[i]*idf)
	}
	return nil
}

// eachTokens checks that every document is tokenized and then calls fn for
// each in corpus order.
func eachTokens(c *document.Corpus, stage string, fn func(key string, d *document.Doc, toks []string)) error {
	keys := c.Keys()
	lists := make([][]string, len(keys))
	for i, key := range keys {
		d, _ := c.Get(key)
		toks, err := document.AsTokens(stage, key, d.ProcessedText)
		if err != nil {
			return err
		}
		lists[i] = toks
	}
	for i, key := range keys {
		d, _ := c.Get(key)
		fn(key, d, lists[i])
	}
	return nil
}
