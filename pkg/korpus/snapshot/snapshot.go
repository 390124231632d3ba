// Package snapshot persists a corpus as a single JSON object mapping document
// keys to their attribute mappings, and restores it again.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Save writes c to path. The file is written to a temporary sibling first and
// renamed into place, so a failed save leaves any previous snapshot intact.
func Save(c *document.Corpus, path string) error {
	// Encode fully before touching the filesystem.
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := buf.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot %s: %w", path, err)
	}
	return nil
}

// Encode writes c as one JSON object with keys in corpus order.
func Encode(w io.Writer, c *document.Corpus) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("{")
	first := true
	err := c.Each(func(key string, d *document.Doc) error {
		k, err := json.Marshal(key)
		if err != nil {
			return &internalerr.SerializationError{Key: key, Field: "key", Err: err}
		}
		v, err := json.Marshal(d)
		if err != nil {
			var serr *internalerr.SerializationError
			if errors.As(err, &serr) {
				serr.Key = key
				return serr
			}
			return &internalerr.SerializationError{Key: key, Field: "document", Err: err}
		}
		if !first {
			bw.WriteString(",")
		}
		first = false
		bw.WriteString("\n  ")
		bw.Write(k)
		bw.WriteString(": ")
		bw.Write(v)
		return nil
	})
	if err != nil {
		return err
	}
	if !first {
		bw.WriteString("\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

// Load restores the corpus stored at path.
func Load(name, path string) (*document.Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()
	c, err := Decode(name, f)
	if err != nil {
		return c, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return c, nil
}

// Decode reads a snapshot keeping the key order of the input. Dates are
// re-parsed leniently; documents without processed_text get a copy of their
// full text. Structural errors are reported as MalformedSourceError together
// with the documents decoded so far.
func Decode(name string, r io.Reader) (*document.Corpus, error) {
	c := document.NewCorpus(name)
	dec := json.NewDecoder(r)

	malformed := func(err error) error {
		return &internalerr.MalformedSourceError{Source: name, Parsed: c.Len(), Err: err}
	}

	tok, err := dec.Token()
	if err != nil {
		return c, malformed(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return c, malformed(fmt.Errorf("expected object, got %v", tok))
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return c, malformed(err)
		}
		key, ok := tok.(string)
		if !ok {
			return c, malformed(fmt.Errorf("expected key, got %v", tok))
		}
		d := &document.Doc{}
		if err := dec.Decode(d); err != nil {
			return c, malformed(fmt.Errorf("document %q: %w", key, err))
		}
		if d.ProcessedText == nil {
			d.ProcessedText = document.RawText(d.Fulltext)
		}
		if err := c.Add(key, d); err != nil {
			return c, malformed(err)
		}
	}

	if _, err := dec.Token(); err != nil {
		return c, malformed(err)
	}
	return c, nil
}
