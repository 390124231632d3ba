package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/cognicore/korpus/pkg/korpus/document"
)

// CoOccurrence aggregates document frequencies, document-level pair counts
// and adjacent-pair counts over token sequences.
type CoOccurrence struct {
	totalDocs    int64
	tokenDF      map[string]int64
	pairCounts   map[pair]int64 // unordered, once per document
	bigramCounts map[pair]int64 // ordered, every adjacency
}

// NewCoOccurrence returns an empty aggregator.
func NewCoOccurrence() *CoOccurrence {
	return &CoOccurrence{
		tokenDF:      make(map[string]int64),
		pairCounts:   make(map[pair]int64),
		bigramCounts: make(map[pair]int64),
	}
}

// CoOccurrenceOf aggregates every document of c.
func CoOccurrenceOf(c *document.Corpus) (*CoOccurrence, error) {
	co := NewCoOccurrence()
	err := eachTokens(c, "cooccurrence", func(_ string, _ *document.Doc, toks []string) {
		co.Process(toks)
	})
	if err != nil {
		return nil, err
	}
	return co, nil
}

// Process consumes one document's tokens.
func (a *CoOccurrence) Process(tokens []string) {
	a.totalDocs++

	seen := make(map[string]struct{})
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		a.tokenDF[tok]++
	}

	unique := make([]string, 0, len(seen))
	for tok := range seen {
		unique = append(unique, tok)
	}
	sort.Strings(unique)
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			a.pairCounts[pair{A: unique[i], B: unique[j]}]++
		}
	}

	for i := 0; i < len(tokens)-1; i++ {
		if tokens[i] == "" || tokens[i+1] == "" {
			continue
		}
		a.bigramCounts[pair{A: tokens[i], B: tokens[i+1]}]++
	}
}

// Docs returns the number of processed documents.
func (a *CoOccurrence) Docs() int64 { return a.totalDocs }

// DocFreq returns the number of documents containing tok.
func (a *CoOccurrence) DocFreq(tok string) int64 { return a.tokenDF[tok] }

// PairCount returns the number of documents containing both tokens.
func (a *CoOccurrence) PairCount(x, y string) int64 { return a.pairCounts[newPair(x, y)] }

// PairStat describes an adjacent token pair.
type PairStat struct {
	A, B        string
	PMI         float64 // document-level association
	BigramFreq  int64   // adjacency count
	Support     int64   // documents containing both
	PhraseScore float64 // BigramFreq * PMI
}

// TopPairs ranks adjacent pairs as multiword candidates by adjacency count
// weighted with document PMI. Pairs below minPMI are dropped. A limit of
// zero returns every pair.
func (a *CoOccurrence) TopPairs(limit int, minPMI float64) []PairStat {
	if a.totalDocs == 0 {
		return nil
	}
	var stats []PairStat
	for p, bigramCount := range a.bigramCounts {
		if p.A == p.B {
			continue
		}
		dfA, dfB := a.tokenDF[p.A], a.tokenDF[p.B]
		docPairCount := a.pairCounts[newPair(p.A, p.B)]
		if dfA == 0 || dfB == 0 || docPairCount == 0 {
			continue
		}
		pmi := computePMI(docPairCount, dfA, dfB, a.totalDocs)
		if pmi < minPMI {
			continue
		}
		stats = append(stats, PairStat{
			A:           p.A,
			B:           p.B,
			PMI:         pmi,
			BigramFreq:  bigramCount,
			Support:     docPairCount,
			PhraseScore: float64(bigramCount) * pmi,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		switch {
		case stats[i].PhraseScore != stats[j].PhraseScore:
			return stats[i].PhraseScore > stats[j].PhraseScore
		case stats[i].BigramFreq != stats[j].BigramFreq:
			return stats[i].BigramFreq > stats[j].BigramFreq
		case stats[i].A != stats[j].A:
			return stats[i].A < stats[j].A
		}
		return stats[i].B < stats[j].B
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// MWEFiles converts pairs into the two multiword-expression files read by
// lexicon.LoadMWE: an id to pair dictionary and a reverse map keyed by the
// pair's list literal. Fused tokens join both parts with sep.
func MWEFiles(pairs []PairStat, sep string) (map[string][]string, map[string]string) {
	dict := make(map[string][]string, len(pairs))
	reversed := make(map[string]string, len(pairs))
	for i, p := range pairs {
		dict[strconv.Itoa(i)] = []string{p.A, p.B}
		reversed[fmt.Sprintf("[%s, %s]", quoteLiteral(p.A), quoteLiteral(p.B))] = p.A + sep + p.B
	}
	return dict, reversed
}

// quoteLiteral quotes s with single quotes, or double quotes when s holds a
// single quote.
func quoteLiteral(s string) string {
	q := byte('\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			q = '"'
			break
		}
	}
	out := make([]byte, 0, len(s)+2)
	out = append(out, q)
	for i := 0; i < len(s); i++ {
		if s[i] == q || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(append(out, q))
}

// computePMI is add-one smoothed pointwise mutual information over document
// counts.
func computePMI(pairCount, dfA, dfB, totalDocs int64) float64 {
	if dfA == 0 || dfB == 0 || totalDocs == 0 {
		return 0
	}
	smooth := 1.0
	numerator := (float64(pairCount) + smooth) / float64(totalDocs)
	denominator := ((float64(dfA) + smooth) / float64(totalDocs)) * ((float64(dfB) + smooth) / float64(totalDocs))
	return math.Log(numerator / denominator)
}

type pair struct {
	A string
	B string
}

func newPair(a, b string) pair {
	if a > b {
		a, b = b, a
	}
	return pair{A: a, B: b}
}
