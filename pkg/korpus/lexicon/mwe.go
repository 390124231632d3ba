package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Pair is an ordered two-token multiword expression.
type Pair [2]string

func (p Pair) String() string { return p[0] + " " + p[1] }

// MWE holds the known multiword expressions and their fused replacements.
type MWE struct {
	pairs []Pair
	fused map[Pair]string
}

// NewMWE returns an empty dictionary.
func NewMWE() *MWE {
	return &MWE{fused: make(map[Pair]string)}
}

// Add registers the pair (a, b) with its fused token. Adding a pair twice
// replaces the fused token.
func (m *MWE) Add(a, b, fused string) {
	p := Pair{a, b}
	if _, ok := m.fused[p]; !ok {
		m.pairs = append(m.pairs, p)
	}
	m.fused[p] = fused
}

// Fuse returns the replacement token for the pair (a, b).
func (m *MWE) Fuse(a, b string) (string, bool) {
	if m == nil {
		return "", false
	}
	f, ok := m.fused[Pair{a, b}]
	return f, ok
}

// Len returns the number of known pairs.
func (m *MWE) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns the known pairs in load order.
func (m *MWE) Pairs() []Pair {
	if m == nil {
		return nil
	}
	return append([]Pair(nil), m.pairs...)
}

// LoadMWE reads a multiword-expression dictionary and its reverse map.
//
// The dictionary maps an arbitrary id to a two-token list:
//
//	{"0": ["künstlich", "intelligenz"], ...}
//
// The reverse map goes from a pair key to the fused token. Keys may be written
// as a list literal ("['künstlich', 'intelligenz']" or a JSON array string) or
// as the two tokens separated by whitespace. Both files are JSON unless their
// extension is .yaml or .yml.
//
// Every dictionary pair must have a fused token in the reverse map.
func LoadMWE(dictPath, reversedPath string) (*MWE, error) {
	var dict map[string][]string
	if err := decodeFile(dictPath, &dict); err != nil {
		return nil, fmt.Errorf("load mwe dictionary: %w", err)
	}
	var reversed map[string]string
	if err := decodeFile(reversedPath, &reversed); err != nil {
		return nil, fmt.Errorf("load mwe reverse map: %w", err)
	}

	fused := make(map[Pair]string, len(reversed))
	for k, v := range reversed {
		p, err := ParsePairKey(k)
		if err != nil {
			return nil, fmt.Errorf("mwe reverse map %s: %w", reversedPath, err)
		}
		fused[p] = v
	}

	ids := make([]string, 0, len(dict))
	for id := range dict {
		ids = append(ids, id)
	}
	sortIDs(ids)

	m := NewMWE()
	for _, id := range ids {
		tokens := dict[id]
		if len(tokens) != 2 {
			return nil, fmt.Errorf("mwe dictionary %s: entry %q has %d tokens, want 2: %w",
				dictPath, id, len(tokens), internalerr.ErrInvalidInput)
		}
		p := Pair{tokens[0], tokens[1]}
		f, ok := fused[p]
		if !ok {
			return nil, fmt.Errorf("mwe pair %q has no fused token in %s: %w",
				p.String(), reversedPath, internalerr.ErrMissingResource)
		}
		m.Add(p[0], p[1], f)
	}
	return m, nil
}

// ParsePairKey parses a reverse-map key into a pair.
func ParsePairKey(key string) (Pair, error) {
	key = strings.TrimSpace(key)
	var parts []string
	if strings.HasPrefix(key, "[") && strings.HasSuffix(key, "]") {
		var err error
		parts, err = parseListLiteral(key[1 : len(key)-1])
		if err != nil {
			return Pair{}, fmt.Errorf("pair key %q: %w", key, err)
		}
	} else {
		parts = strings.Fields(key)
	}
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("pair key %q has %d tokens, want 2: %w", key, len(parts), internalerr.ErrInvalidInput)
	}
	return Pair{parts[0], parts[1]}, nil
}

// parseListLiteral splits the body of a list literal with single- or
// double-quoted string elements.
func parseListLiteral(s string) ([]string, error) {
	var out []string
	i := 0
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', ',':
			i++
			continue
		case '\'', '"':
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d: %w", s[i], i, internalerr.ErrInvalidInput)
		}
		quote := s[i]
		i++
		var b strings.Builder
		closed := false
		for i < len(s) {
			c := s[i]
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			i++
			if c == quote {
				closed = true
				break
			}
			b.WriteByte(c)
		}
		if !closed {
			return nil, fmt.Errorf("unterminated string: %w", internalerr.ErrInvalidInput)
		}
		out = append(out, b.String())
	}
	return out, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w: %w", path, internalerr.ErrMissingResource, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// sortIDs orders numeric ids numerically and everything else lexically after
// them.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		an, bn := isDigits(a), isDigits(b)
		switch {
		case an && bn:
			if len(a) != len(b) {
				return len(a) < len(b)
			}
			return a < b
		case an != bn:
			return an
		}
		return a < b
	})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
