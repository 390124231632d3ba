package analytics

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cognicore/korpus/pkg/korpus/document"
)

// Quarter returns the calendar quarter of d as "YYYY-Qn". Documents without
// a parsed date have no quarter.
func Quarter(d document.Date) (string, bool) {
	t, ok := d.Time()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1), true
}

// Temporal holds term occurrences bucketed by quarter.
type Temporal struct {
	// Quarters maps a quarter to term counts.
	Quarters map[string]map[string]int `json:"quarters"`
	// Undated counts documents skipped for lack of a date.
	Undated int `json:"undated"`
}

// TemporalOccurrence counts, per quarter, how often each of terms occurs.
// An empty terms list counts every token.
func TemporalOccurrence(c *document.Corpus, terms []string) (*Temporal, error) {
	var want map[string]struct{}
	if len(terms) > 0 {
		want = make(map[string]struct{}, len(terms))
		for _, t := range terms {
			want[t] = struct{}{}
		}
	}

	out := &Temporal{Quarters: make(map[string]map[string]int)}
	err := eachTokens(c, "temporal_occurrence", func(_ string, d *document.Doc, toks []string) {
		q, ok := Quarter(d.DocumentDate)
		if !ok {
			out.Undated++
			return
		}
		bucket := out.Quarters[q]
		if bucket == nil {
			bucket = make(map[string]int)
			out.Quarters[q] = bucket
		}
		for _, t := range toks {
			if want != nil {
				if _, ok := want[t]; !ok {
					continue
				}
			}
			bucket[t]++
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteTemporalJSON writes t as indented JSON with quarters in order.
func WriteTemporalJSON(w io.Writer, t *Temporal) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(t)
}
