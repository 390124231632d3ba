package pipeline

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cognicore/korpus/pkg/korpus/lexicon"
)

// DefaultChunkWords is the chunk size used when the annotator runs out of
// resources on a whole document.
const DefaultChunkWords = 1000

var sentenceGap = regexp.MustCompile(`([.:?!])([^\s\p{Z}])`)

// RepairSentences inserts a space between sentence punctuation and a
// directly following non-space character.
func RepairSentences(text string) string {
	return sentenceGap.ReplaceAllString(text, "$1 $2")
}

// SplitTokens splits text on single spaces. Consecutive spaces yield empty
// tokens, which cleaning drops later.
func SplitTokens(text string) []string {
	return strings.Split(text, " ")
}

// Chunk groups the whitespace-separated words of text into pieces of at most
// size words.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkWords
	}
	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// FuseTokens replaces known multiword pairs with their fused token in a
// single greedy left-to-right pass. A token consumed by a fusion is never
// tested as the start of another pair.
func FuseTokens(tokens []string, mwe *lexicon.MWE) []string {
	if mwe.Len() == 0 {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) {
			if fused, ok := mwe.Fuse(tokens[i], tokens[i+1]); ok {
				out = append(out, fused)
				i++
				continue
			}
		}
		out = append(out, tokens[i])
	}
	return out
}

// KeepToken reports whether a token survives cleaning. Tokens without a
// letter are dropped, which covers punctuation and numbers. Tokens containing
// @ or + look like e-mail addresses or phone numbers and are dropped too.
func KeepToken(tok string) bool {
	if strings.ContainsAny(tok, "@+") {
		return false
	}
	for _, r := range tok {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func filterTokens(tokens []string, keep func(string) bool) ([]string, int) {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, len(tokens) - len(out)
}
