// Package annotate provides linguistic annotators that split text into tokens
// and attach a base form to each one.
//
// Two implementations exist: Client talks to an external lemmatization
// service over HTTP, and Stemmer runs offline using snowball stemming.
// Both refuse inputs longer than their configured ceiling with
// ErrInputTooLong. A ResourceExhaustionError signals that the input might
// succeed when split into smaller pieces.
package annotate

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// DefaultMaxLength is the input ceiling used when none is configured.
const DefaultMaxLength = 1_000_000

// Token is one annotated token.
type Token struct {
	Text   string `json:"text"`
	Lemma  string `json:"lemma"`
	IsStop bool   `json:"is_stop"`
}

// Annotator lemmatizes free text.
type Annotator interface {
	Annotate(ctx context.Context, text string) ([]Token, error)
}

// Func adapts a function to the Annotator interface.
type Func func(ctx context.Context, text string) ([]Token, error)

// Annotate calls f.
func (f Func) Annotate(ctx context.Context, text string) ([]Token, error) { return f(ctx, text) }

func checkLength(text string, max int) error {
	if max <= 0 {
		max = DefaultMaxLength
	}
	if n := utf8.RuneCountInString(text); n > max {
		return fmt.Errorf("%d characters, max %d: %w", n, max, internalerr.ErrInputTooLong)
	}
	return nil
}
