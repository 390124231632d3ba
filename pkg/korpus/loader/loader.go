// Package loader builds a corpus from an XML export or restores one from a
// JSON snapshot.
package loader

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/net/html/charset"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/snapshot"
)

// Options configures XML ingestion.
type Options struct {
	// StripMarkup extracts plain text from HTML fragments in fulltext.
	StripMarkup bool
	Logger      *slog.Logger
}

// record mirrors one <document> element of the export.
type record struct {
	SourceLevel    string `xml:"source_ebene"`
	SourceName     string `xml:"source_name"`
	SourceFullname string `xml:"source_fullname"`
	DocumentNumber string `xml:"document_number"`
	DocumentDate   string `xml:"document_date"`
	Initiator      string `xml:"initiator"`
	Type           string `xml:"type"`
	Title          string `xml:"title"`
	URLPolx        string `xml:"document_url_polx"`
	URL            string `xml:"document_url"`
	Fulltext       string `xml:"fulltext"`
}

// FromXMLFile opens path and calls FromXML.
func FromXMLFile(name, path string, opts Options) (*document.Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return document.NewCorpus(name), fmt.Errorf("open source %s: %w", path, err)
	}
	defer f.Close()
	return FromXML(name, f, opts)
}

// FromXML reads every <document> element, at any depth, from r.
//
// The returned corpus is never nil. If the input is not well-formed XML the
// records decoded before the failure are returned together with a
// MalformedSourceError. A present but malformed document_date stops ingestion
// with a DateParseError; documents loaded up to that point are kept.
func FromXML(name string, r io.Reader, opts Options) (*document.Corpus, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := document.NewCorpus(name)
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	malformed := func(err error) error {
		logger.Error("xml parsing error", "corpus", name, "parsed", c.Len(), "error", err)
		return &internalerr.MalformedSourceError{Source: name, Parsed: c.Len(), Err: err}
	}

	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c, malformed(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if se.Name.Local != "document" {
			continue
		}

		var rec record
		if err := dec.DecodeElement(&rec, &se); err != nil {
			return c, malformed(err)
		}
		doc, err := rec.toDoc(opts)
		if err != nil {
			return c, err
		}
		key, renamed := c.Insert(rec.Title, doc)
		if renamed {
			logger.Warn("duplicate title, stored under disambiguated key", "title", rec.Title, "key", key)
		}
	}

	if !sawRoot {
		return c, malformed(errors.New("no root element"))
	}
	logger.Debug("loaded xml source", "corpus", name, "documents", c.Len())
	return c, nil
}

func (rec record) toDoc(opts Options) (*document.Doc, error) {
	date, err := document.ParseDate(rec.DocumentDate)
	if err != nil {
		return nil, &internalerr.DateParseError{Title: rec.Title, Value: rec.DocumentDate, Err: err}
	}
	fulltext := rec.Fulltext
	if opts.StripMarkup {
		fulltext = StripMarkup(fulltext)
	}
	return &document.Doc{
		SourceLevel:    rec.SourceLevel,
		SourceName:     rec.SourceName,
		SourceFullname: rec.SourceFullname,
		DocumentNumber: rec.DocumentNumber,
		DocumentDate:   date,
		Initiator:      rec.Initiator,
		Type:           rec.Type,
		Title:          rec.Title,
		URLPolx:        rec.URLPolx,
		URL:            rec.URL,
		Fulltext:       fulltext,
		ProcessedText:  document.RawText(fulltext),
	}, nil
}

// FromSnapshot restores a corpus saved with snapshot.Save.
func FromSnapshot(name, path string) (*document.Corpus, error) {
	return snapshot.Load(name, path)
}
