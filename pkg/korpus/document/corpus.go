package document

import (
	"fmt"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Corpus is the document store: unique keys mapped to documents, kept in
// insertion order so that processing and serialization are deterministic.
type Corpus struct {
	Name string

	docs map[string]*Doc
	keys []string
}

// NewCorpus creates an empty corpus.
func NewCorpus(name string) *Corpus {
	return &Corpus{
		Name: name,
		docs: make(map[string]*Doc),
	}
}

// Len returns the number of documents.
func (c *Corpus) Len() int { return len(c.keys) }

// Get returns the document stored under key.
func (c *Corpus) Get(key string) (*Doc, bool) {
	d, ok := c.docs[key]
	return d, ok
}

// Keys returns a copy of all keys in insertion order.
func (c *Corpus) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Add stores d under key. It never overwrites an existing entry.
func (c *Corpus) Add(key string, d *Doc) error {
	if d == nil {
		return fmt.Errorf("add %q: %w", key, internalerr.ErrInvalidInput)
	}
	if _, exists := c.docs[key]; exists {
		return fmt.Errorf("add %q: %w", key, internalerr.ErrDuplicate)
	}
	c.docs[key] = d
	c.keys = append(c.keys, key)
	return nil
}

// Insert stores d under a key derived from title. When title is taken the
// lowest free suffix is appended, trying title_2, title_3, ... in order.
// It returns the key used and whether it differs from title.
func (c *Corpus) Insert(title string, d *Doc) (string, bool) {
	key := c.FreeKey(title)
	c.docs[key] = d
	c.keys = append(c.keys, key)
	return key, key != title
}

// FreeKey returns title if unused, otherwise the first unused title_N for N >= 2.
func (c *Corpus) FreeKey(title string) string {
	if _, exists := c.docs[title]; !exists {
		return title
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", title, n)
		if _, exists := c.docs[candidate]; !exists {
			return candidate
		}
	}
}

// Remove deletes the given keys and returns how many were present.
func (c *Corpus) Remove(keys ...string) int {
	if len(keys) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := c.docs[k]; ok {
			drop[k] = struct{}{}
			delete(c.docs, k)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := c.keys[:0]
	for _, k := range c.keys {
		if _, gone := drop[k]; !gone {
			kept = append(kept, k)
		}
	}
	c.keys = kept
	return len(drop)
}

// Each calls fn for every document in insertion order and stops at the first error.
func (c *Corpus) Each(fn func(key string, d *Doc) error) error {
	for _, k := range c.keys {
		if err := fn(k, c.docs[k]); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the corpus.
func (c *Corpus) Clone() *Corpus {
	out := NewCorpus(c.Name)
	for _, k := range c.keys {
		out.docs[k] = c.docs[k].Clone()
		out.keys = append(out.keys, k)
	}
	return out
}
