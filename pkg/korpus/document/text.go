package document

import "github.com/cognicore/korpus/pkg/korpus/internalerr"

// Text is the working representation of processed_text: either RawText
// (before tokenization) or Tokens (after). A nil Text means the field is missing.
type Text interface {
	kind() string
}

// RawText is free text.
type RawText string

// Tokens is an ordered token sequence.
type Tokens []string

func (RawText) kind() string { return "text" }
func (Tokens) kind() string  { return "tokens" }

// KindOf names the representation of t for diagnostics.
func KindOf(t Text) string {
	if t == nil {
		return "missing"
	}
	return t.kind()
}

// AsRaw returns the free text of t, or a RepresentationError naming stage and key.
func AsRaw(stage, key string, t Text) (string, error) {
	if raw, ok := t.(RawText); ok {
		return string(raw), nil
	}
	return "", &internalerr.RepresentationError{Stage: stage, Key: key, Want: "text", Got: KindOf(t)}
}

// AsTokens returns the tokens of t, or a RepresentationError naming stage and key.
func AsTokens(stage, key string, t Text) ([]string, error) {
	if toks, ok := t.(Tokens); ok {
		return toks, nil
	}
	return nil, &internalerr.RepresentationError{Stage: stage, Key: key, Want: "tokens", Got: KindOf(t)}
}
