package analytics

import (
	"math"
	"sort"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/lexicon"
)

// StopwordThresholds define when a token is proposed as a custom stopword.
type StopwordThresholds struct {
	// DFPercent is the minimum share of documents containing the token.
	DFPercent float64
	// PMIMax is the ceiling on the token's strongest association.
	PMIMax float64
	// TypeEntropy is the minimum normalized entropy of the token across
	// document types. It is ignored when the corpus has a single type.
	TypeEntropy float64
}

// DefaultStopwordThresholds returns thresholds for corpora of a few hundred
// documents.
func DefaultStopwordThresholds() StopwordThresholds {
	return StopwordThresholds{DFPercent: 60, PMIMax: 0.15, TypeEntropy: 0.8}
}

// StopwordCandidate is a token that occurs nearly everywhere without
// associating with anything in particular.
type StopwordCandidate struct {
	Token       string
	DF          int64
	DFPercent   float64
	PMIMax      float64
	TypeEntropy float64
	Score       float64
}

// StopwordCandidates ranks custom stopword candidates, best first. Tokens in
// known are skipped.
func StopwordCandidates(c *document.Corpus, known *lexicon.Stopwords, th StopwordThresholds) ([]StopwordCandidate, error) {
	co := NewCoOccurrence()
	typeCounts := make(map[string]map[string]int64)
	types := make(map[string]struct{})
	err := eachTokens(c, "stopword_candidates", func(_ string, d *document.Doc, toks []string) {
		co.Process(toks)
		types[d.Type] = struct{}{}
		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			if _, ok := seen[t]; ok || t == "" {
				continue
			}
			seen[t] = struct{}{}
			byType := typeCounts[t]
			if byType == nil {
				byType = make(map[string]int64)
				typeCounts[t] = byType
			}
			byType[d.Type]++
		}
	})
	if err != nil {
		return nil, err
	}
	if co.totalDocs == 0 {
		return nil, nil
	}

	pmiMax := make(map[string]float64)
	for p, count := range co.pairCounts {
		pmi := computePMI(count, co.tokenDF[p.A], co.tokenDF[p.B], co.totalDocs)
		for _, tok := range []string{p.A, p.B} {
			if cur, ok := pmiMax[tok]; !ok || pmi > cur {
				pmiMax[tok] = pmi
			}
		}
	}

	var out []StopwordCandidate
	for tok, df := range co.tokenDF {
		if known.Contains(tok) {
			continue
		}
		cand := StopwordCandidate{
			Token:       tok,
			DF:          df,
			DFPercent:   100 * float64(df) / float64(co.totalDocs),
			PMIMax:      pmiMax[tok],
			TypeEntropy: normalizedEntropy(typeCounts[tok], len(types)),
		}
		if cand.DFPercent < th.DFPercent || cand.PMIMax >= th.PMIMax {
			continue
		}
		if len(types) > 1 && cand.TypeEntropy < th.TypeEntropy {
			continue
		}
		entropy := cand.TypeEntropy
		if len(types) <= 1 {
			entropy = 1
		}
		cand.Score = (cand.DFPercent/100 + (1 - cand.PMIMax) + entropy) / 3
		out = append(out, cand)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

// normalizedEntropy is the Shannon entropy of counts divided by the maximum
// for n categories, in [0, 1].
func normalizedEntropy(counts map[string]int64, n int) float64 {
	if n <= 1 {
		return 0
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	return h / math.Log(float64(n))
}
