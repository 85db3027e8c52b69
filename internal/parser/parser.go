// Package parser validates uploaded PDF bytes and extracts their text and
// document information.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxFileSize is the largest PDF accepted for parsing.
const MaxFileSize = 10 << 20

// magicWindow is how many leading bytes, after whitespace, may hold the header.
const magicWindow = 10

var pdfMagic = []byte("%PDF")

// Document is the result of a successful parse.
type Document struct {
	Text     string
	Pages    int
	Metadata map[string]string
}

// ParseError reports why bytes could not be accepted as a PDF. Msg is safe to
// show to the uploader.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string { return e.Msg }

func (e *ParseError) Unwrap() error { return e.Err }

// Parser extracts documents from PDF bytes. It holds no mutable state and is
// safe for concurrent use.
type Parser struct {
	log *slog.Logger
}

// New returns a Parser that reports skipped pages and empty documents to log.
func New(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log.With("component", "parser")}
}

// Parse validates data with the default logger.
func Parse(data []byte) (Document, error) {
	return New(nil).Parse(data)
}

// Parse validates data and extracts page text and metadata. Checks run in a
// fixed order and the first violation is returned as a *ParseError.
func (p *Parser) Parse(data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, &ParseError{Msg: "Empty file provided"}
	}
	if len(data) > MaxFileSize {
		return Document{}, &ParseError{Msg: fmt.Sprintf(
			"File size (%.1fMB) exceeds maximum allowed (%dMB)",
			float64(len(data))/(1<<20), MaxFileSize>>20)}
	}
	if !hasMagic(data) {
		return Document{}, &ParseError{Msg: "Invalid PDF: file does not start with PDF header"}
	}

	r, pages, err := open(data)
	if err != nil {
		return Document{}, &ParseError{Msg: "Corrupt or invalid PDF: " + err.Error(), Err: err}
	}
	if pages == 0 {
		return Document{}, &ParseError{Msg: "PDF contains no pages"}
	}

	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		text, err := pageText(r, i)
		if err != nil {
			p.log.Warn("skipping unreadable page", "page", i, "err", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		texts = append(texts, text)
	}

	doc := Document{
		Text:     strings.Join(texts, "\n\n"),
		Pages:    pages,
		Metadata: extractMetadata(r),
	}
	if strings.TrimSpace(doc.Text) == "" {
		p.log.Warn("no extractable text in pdf", "pages", pages)
	}
	return doc, nil
}

const leadingSpace = " \t\n\r\v\f"

func hasMagic(data []byte) bool {
	head := bytes.TrimLeft(data, leadingSpace)
	if len(head) > magicWindow {
		head = head[:magicWindow]
	}
	return bytes.HasPrefix(head, pdfMagic)
}

// open builds a reader and counts pages. The PDF library panics on some
// malformed inputs, so panics are turned into errors. The library expects the
// header at offset zero, so whitespace accepted by hasMagic is skipped and
// the reader sees the document from its header on.
func open(data []byte) (r *pdf.Reader, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, pages, err = nil, 0, fmt.Errorf("%v", rec)
		}
	}()
	off := int64(len(data) - len(bytes.TrimLeft(data, leadingSpace)))
	size := int64(len(data)) - off
	r, err = pdf.NewReader(io.NewSectionReader(bytes.NewReader(data), off, size), size)
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("page %d: %v", num, rec)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: not found in page tree", num)
	}
	if page.V.Key("Contents").Kind() == pdf.Null {
		return "", nil
	}
	return page.GetPlainText(nil)
}
