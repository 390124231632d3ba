package document

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// RelevancePrefix prefixes relevance score fields in the serialized form.
const RelevancePrefix = "relevance_"

// Doc represents one source record of the corpus.
type Doc struct {
	SourceLevel    string
	SourceName     string
	SourceFullname string
	DocumentNumber string
	DocumentDate   Date
	Initiator      string
	Type           string
	Title          string
	URLPolx        string
	URL            string
	Fulltext       string

	// ProcessedText starts as a copy of Fulltext and is rewritten by pipeline stages.
	ProcessedText Text

	// Relevance holds per-term scores attached by an analyzer.
	Relevance map[string]float64
}

// RelevanceFor returns the score for term and whether it is present.
func (d *Doc) RelevanceFor(term string) (float64, bool) {
	if d.Relevance == nil {
		return 0, false
	}
	v, ok := d.Relevance[term]
	return v, ok
}

// SetRelevance attaches a score for term.
func (d *Doc) SetRelevance(term string, score float64) {
	if d.Relevance == nil {
		d.Relevance = make(map[string]float64)
	}
	d.Relevance[term] = score
}

// Clone returns a deep copy of d.
func (d *Doc) Clone() *Doc {
	out := *d
	if toks, ok := d.ProcessedText.(Tokens); ok {
		cp := make(Tokens, len(toks))
		copy(cp, toks)
		out.ProcessedText = cp
	}
	if d.Relevance != nil {
		out.Relevance = make(map[string]float64, len(d.Relevance))
		for k, v := range d.Relevance {
			out.Relevance[k] = v
		}
	}
	return &out
}

// stringFields lists the pass-through string attributes by serialized name.
func (d *Doc) stringFields() map[string]*string {
	return map[string]*string{
		"source_level":    &d.SourceLevel,
		"source_name":     &d.SourceName,
		"source_fullname": &d.SourceFullname,
		"document_number": &d.DocumentNumber,
		"initiator":       &d.Initiator,
		"type":            &d.Type,
		"title":           &d.Title,
		"url_polx":        &d.URLPolx,
		"url":             &d.URL,
		"fulltext":        &d.Fulltext,
	}
}

// MarshalJSON writes the flat snapshot mapping. Keys are sorted; relevance
// scores appear as relevance_<term>.
func (d *Doc) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 16)
	for name, ptr := range d.stringFields() {
		m[name] = *ptr
	}
	m["document_date"] = d.DocumentDate.String()

	switch t := d.ProcessedText.(type) {
	case nil:
	case RawText:
		m["processed_text"] = string(t)
	case Tokens:
		if t == nil {
			t = Tokens{}
		}
		m["processed_text"] = []string(t)
	default:
		return nil, &internalerr.SerializationError{Field: "processed_text", Err: fmt.Errorf("unsupported type %T", t)}
	}

	terms := make([]string, 0, len(d.Relevance))
	for term := range d.Relevance {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		score := d.Relevance[term]
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, &internalerr.SerializationError{Field: RelevancePrefix + term, Err: fmt.Errorf("value %v is not representable", score)}
		}
		m[RelevancePrefix+term] = score
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat snapshot mapping. document_date is parsed
// leniently: values that are not YYYY-MM-DD stay raw strings. Unknown keys
// are ignored.
func (d *Doc) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = Doc{}
	fields := d.stringFields()
	for name, raw := range m {
		if ptr, ok := fields[name]; ok {
			var s *string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			if s != nil {
				*ptr = *s
			}
			continue
		}
		switch {
		case name == "document_date":
			var s *string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("field document_date: %w", err)
			}
			if s != nil {
				d.DocumentDate = ParseSnapshotDate(*s)
			}
		case name == "processed_text":
			t, err := decodeText(raw)
			if err != nil {
				return fmt.Errorf("field processed_text: %w", err)
			}
			d.ProcessedText = t
		case strings.HasPrefix(name, RelevancePrefix):
			var score float64
			if err := json.Unmarshal(raw, &score); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			d.SetRelevance(strings.TrimPrefix(name, RelevancePrefix), score)
		}
	}
	return nil
}

func decodeText(raw json.RawMessage) (Text, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "null":
		return nil, nil
	case strings.HasPrefix(trimmed, "["):
		var toks []string
		if err := json.Unmarshal(raw, &toks); err != nil {
			return nil, err
		}
		if toks == nil {
			toks = []string{}
		}
		return Tokens(toks), nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return RawText(s), nil
	}
}
