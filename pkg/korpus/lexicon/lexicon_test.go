package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultStopwordsGerman(t *testing.T) {
	sw, err := DefaultStopwords("de")
	require.NoError(t, err)
	assert.Greater(t, sw.Len(), 200)
	for _, w := range []string{"und", "der", "über", "daß"} {
		assert.True(t, sw.Contains(w), w)
	}
	assert.False(t, sw.Contains("dateninstitut"))

	_, err = DefaultStopwords("tlh")
	assert.ErrorIs(t, err, internalerr.ErrMissingResource)
}

func TestLoadStopwordsFormats(t *testing.T) {
	dir := t.TempDir()

	plain := writeFile(t, dir, "custom.txt", "bundestag\n\n# kommentar\n drucksache \n")
	sw, err := LoadStopwords(plain)
	require.NoError(t, err)
	assert.Equal(t, []string{"bundestag", "drucksache"}, sw.Terms())

	yml := writeFile(t, dir, "stop.yaml", "terms:\n  - antrag\n  - fraktion\n")
	sw, err = LoadStopwords(yml)
	require.NoError(t, err)
	assert.True(t, sw.Contains("antrag"))
	assert.Equal(t, 2, sw.Len())

	_, err = LoadStopwords(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, internalerr.ErrMissingResource)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNilStopwords(t *testing.T) {
	var sw *Stopwords
	assert.False(t, sw.Contains("x"))
	assert.Equal(t, 0, sw.Len())
	assert.Nil(t, sw.Terms())
}

func TestParsePairKey(t *testing.T) {
	tests := []struct {
		key  string
		want Pair
	}{
		{"['künstlich', 'intelligenz']", Pair{"künstlich", "intelligenz"}},
		{`["open", "data"]`, Pair{"open", "data"}},
		{`["d'accord", 'x']`, Pair{"d'accord", "x"}},
		{"open  data", Pair{"open", "data"}},
	}
	for _, tt := range tests {
		got, err := ParsePairKey(tt.key)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"['a']", "['a', 'b', 'c']", "['a, 'b'", "[a, b]", "single"} {
		_, err := ParsePairKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadMWE(t *testing.T) {
	dir := t.TempDir()
	dict := writeFile(t, dir, "MWE.json", `{"1": ["open", "data"], "0": ["künstlich", "intelligenz"]}`)
	rev := writeFile(t, dir, "MWE_reversed.json", `{
  "['künstlich', 'intelligenz']": "künstliche_intelligenz",
  "['open', 'data']": "open_data",
  "['unused', 'pair']": "unused_pair"
}`)

	m, err := LoadMWE(dict, rev)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []Pair{{"künstlich", "intelligenz"}, {"open", "data"}}, m.Pairs())

	f, ok := m.Fuse("open", "data")
	assert.True(t, ok)
	assert.Equal(t, "open_data", f)

	_, ok = m.Fuse("unused", "pair")
	assert.False(t, ok, "only dictionary pairs are fused")
	_, ok = m.Fuse("data", "open")
	assert.False(t, ok)
}

func TestLoadMWEYAML(t *testing.T) {
	dir := t.TempDir()
	dict := writeFile(t, dir, "mwe.yaml", "a1:\n  - open\n  - data\n")
	rev := writeFile(t, dir, "mwe_reversed.yml", "\"open data\": open_data\n")

	m, err := LoadMWE(dict, rev)
	require.NoError(t, err)
	f, ok := m.Fuse("open", "data")
	require.True(t, ok)
	assert.Equal(t, "open_data", f)
}

func TestLoadMWEMissingFusion(t *testing.T) {
	dir := t.TempDir()
	dict := writeFile(t, dir, "MWE.json", `{"0": ["open", "data"]}`)
	rev := writeFile(t, dir, "MWE_reversed.json", `{}`)

	_, err := LoadMWE(dict, rev)
	assert.ErrorIs(t, err, internalerr.ErrMissingResource)
}

func TestLoadMWEBadEntry(t *testing.T) {
	dir := t.TempDir()
	dict := writeFile(t, dir, "MWE.json", `{"0": ["eins", "zwei", "drei"]}`)
	rev := writeFile(t, dir, "MWE_reversed.json", `{}`)

	_, err := LoadMWE(dict, rev)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestMWEAddReplaces(t *testing.T) {
	m := NewMWE()
	m.Add("a", "b", "ab")
	m.Add("a", "b", "a_b")
	assert.Equal(t, 1, m.Len())
	f, _ := m.Fuse("a", "b")
	assert.Equal(t, "a_b", f)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	custom := writeFile(t, dir, "custom.txt", "drucksache\n")
	dict := writeFile(t, dir, "MWE.json", `{"0": ["open", "data"]}`)
	rev := writeFile(t, dir, "MWE_reversed.json", `{"['open', 'data']": "open_data"}`)

	lex, err := Load(Paths{Language: "de", MWEDictionary: dict, MWEReversed: rev, CustomStopwords: custom})
	require.NoError(t, err)
	assert.True(t, lex.Stopwords.Contains("und"))
	assert.Equal(t, 1, lex.MWE.Len())
	assert.True(t, lex.Custom.Contains("drucksache"))

	lex, err = Load(Paths{Language: "de"})
	require.NoError(t, err)
	assert.Nil(t, lex.MWE)
	assert.Nil(t, lex.Custom)

	_, err = Load(Paths{Language: "de", MWEDictionary: dict})
	assert.Error(t, err)

	_, err = Load(Paths{Language: "de", CustomStopwords: filepath.Join(dir, "nope.txt")})
	assert.ErrorIs(t, err, internalerr.ErrMissingResource)
}
