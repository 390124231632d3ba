package analytics

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/cognicore/korpus/pkg/korpus/document"
)

// Entry is one non-zero cell of a bag-of-words vector.
type Entry struct {
	ID    int
	Count int
}

// BOW is a term dictionary plus one sparse count vector per document.
type BOW struct {
	Terms   []string
	DocFreq []int
	// Keys names the document of each vector, in corpus order.
	Keys    []string
	Vectors [][]Entry

	ids map[string]int
}

// ID returns the dictionary id of term.
func (b *BOW) ID(term string) (int, bool) {
	id, ok := b.ids[term]
	return id, ok
}

// NonZero returns the number of stored cells.
func (b *BOW) NonZero() int {
	n := 0
	for _, v := range b.Vectors {
		n += len(v)
	}
	return n
}

// BagOfWords builds the dictionary and count vectors. Ids are assigned in
// corpus order; the new terms of one document are numbered in lexical order.
// Empty tokens are ignored. Each vector is sorted by id.
func BagOfWords(c *document.Corpus) (*BOW, error) {
	b := &BOW{ids: make(map[string]int)}
	err := eachTokens(c, "bag_of_words", func(key string, _ *document.Doc, toks []string) {
		counts := make(map[string]int)
		for _, t := range toks {
			if t != "" {
				counts[t]++
			}
		}
		var missing []string
		for t := range counts {
			if _, ok := b.ids[t]; !ok {
				missing = append(missing, t)
			}
		}
		sort.Strings(missing)
		for _, t := range missing {
			b.ids[t] = len(b.Terms)
			b.Terms = append(b.Terms, t)
			b.DocFreq = append(b.DocFreq, 0)
		}

		vec := make([]Entry, 0, len(counts))
		for t, n := range counts {
			id := b.ids[t]
			b.DocFreq[id]++
			vec = append(vec, Entry{ID: id, Count: n})
		}
		sort.Slice(vec, func(i, j int) bool { return vec[i].ID < vec[j].ID })
		b.Keys = append(b.Keys, key)
		b.Vectors = append(b.Vectors, vec)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// WriteMatrixMarket writes the vectors as a coordinate MatrixMarket file with
// documents as rows and terms as columns, both 1-based.
func (b *BOW) WriteMatrixMarket(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("%%MatrixMarket matrix coordinate real general\n")
	fmt.Fprintf(bw, "%d %d %d\n", len(b.Vectors), len(b.Terms), b.NonZero())
	for doc, vec := range b.Vectors {
		for _, e := range vec {
			fmt.Fprintf(bw, "%d %d %d\n", doc+1, e.ID+1, e.Count)
		}
	}
	return bw.Flush()
}

// WriteDictionary writes the dictionary as text: the document count on the
// first line, then one id, term and document frequency per line separated by
// tabs.
func (b *BOW) WriteDictionary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(b.Vectors))
	for id, term := range b.Terms {
		fmt.Fprintf(bw, "%d\t%s\t%d\n", id, term, b.DocFreq[id])
	}
	return bw.Flush()
}
