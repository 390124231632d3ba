// Package filter prunes documents from a corpus.
//
// Every filter checks its precondition on all documents before removing any,
// so on error the corpus is unchanged. Kept documents are never modified.
package filter

import (
	"fmt"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// ByTitle keeps documents whose key contains at least one keyword. Matching
// ignores case unless caseSensitive is set. It returns the number of
// documents removed.
func ByTitle(c *document.Corpus, keywords []string, caseSensitive bool) (int, error) {
	if len(keywords) == 0 {
		return 0, fmt.Errorf("filter by title: no keywords: %w", internalerr.ErrInvalidInput)
	}
	needles := make([]string, len(keywords))
	for i, k := range keywords {
		if k == "" {
			return 0, fmt.Errorf("filter by title: empty keyword: %w", internalerr.ErrInvalidInput)
		}
		if !caseSensitive {
			k = strings.ToLower(k)
		}
		needles[i] = k
	}

	var drop []string
	for _, key := range c.Keys() {
		hay := key
		if !caseSensitive {
			hay = strings.ToLower(key)
		}
		if !containsAny(hay, needles) {
			drop = append(drop, key)
		}
	}
	return c.Remove(drop...), nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// ByRelevance keeps documents whose relevance score for term is at least
// threshold. Every document must carry a score for term.
func ByRelevance(c *document.Corpus, threshold float64, term string) (int, error) {
	var drop []string
	for _, key := range c.Keys() {
		d, _ := c.Get(key)
		score, ok := d.RelevanceFor(term)
		if !ok {
			return 0, &internalerr.MissingRelevanceError{Key: key, Term: term}
		}
		if !(score >= threshold) {
			drop = append(drop, key)
		}
	}
	return c.Remove(drop...), nil
}

// ByLength keeps documents with at least threshold tokens. Every document
// must already be tokenized.
func ByLength(c *document.Corpus, threshold int) (int, error) {
	var drop []string
	for _, key := range c.Keys() {
		d, _ := c.Get(key)
		toks, err := document.AsTokens("filter_by_length", key, d.ProcessedText)
		if err != nil {
			return 0, err
		}
		if len(toks) < threshold {
			drop = append(drop, key)
		}
	}
	return c.Remove(drop...), nil
}
