// Package pdftest builds small, well-formed PDF files for tests.
//
// The output uses a classic cross-reference table with exact byte offsets
// and stream lengths, one Helvetica text object per page, and an optional
// document information dictionary.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// UnreadablePage, used as a page text, makes Build emit a page whose content
// stream declares a filter no reader implements, so extracting its text fails.
const UnreadablePage = "\x00unreadable"

// Build returns a PDF with one page per entry of pages. Each entry is the
// text shown on that page; newlines start a new text line and an empty entry
// yields a page with no text. info holds document information entries keyed
// by their PDF names (Title, Author, CreationDate, ...).
func Build(pages []string, info map[string]string) []byte {
	w := &writer{}
	w.buf.WriteString("%PDF-1.4\n")

	const (
		catalogID = 1
		pagesID   = 2
		fontID    = 3
		firstPage = 4
	)
	infoID := 0
	if len(info) > 0 {
		infoID = firstPage + 2*len(pages)
	}

	w.object(catalogID, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesID))

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+2*i)
	}
	w.object(pagesID, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	w.object(fontID, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		pageID := firstPage + 2*i
		contentID := pageID + 1
		w.object(pageID, fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesID, fontID, contentID))
		if text == UnreadablePage {
			w.stream(contentID, "/Filter /NoSuchDecode", "garbage")
			continue
		}
		w.stream(contentID, "", pageContent(text))
	}

	if infoID != 0 {
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var d strings.Builder
		d.WriteString("<<")
		for _, k := range keys {
			fmt.Fprintf(&d, " /%s (%s)", k, escape(info[k]))
		}
		d.WriteString(" >>")
		w.object(infoID, d.String())
	}

	return w.finish(catalogID, infoID)
}

// Pages returns n page texts where page i (1-based) reads "Page i" unless
// overridden by extra.
func Pages(n int, extra map[int]string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Page %d", i+1)
		if s, ok := extra[i+1]; ok {
			out[i] = s
		}
	}
	return out
}

func pageContent(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("BT /F1 12 Tf 72 720 Td")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString(" 0 -14 Td")
		}
		fmt.Fprintf(&b, " (%s) Tj", escape(line))
	}
	b.WriteString(" ET")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

type writer struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (w *writer) object(id int, body string) {
	w.mark(id)
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", id, body)
}

func (w *writer) stream(id int, extra, data string) {
	w.mark(id)
	if extra != "" {
		extra = " " + extra
	}
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< /Length %d%s >>\nstream\n%s\nendstream\nendobj\n", id, len(data), extra, data)
}

func (w *writer) mark(id int) {
	if w.offsets == nil {
		w.offsets = make(map[int]int)
	}
	w.offsets[id] = w.buf.Len()
}

func (w *writer) finish(rootID, infoID int) []byte {
	size := 0
	for id := range w.offsets {
		if id > size {
			size = id
		}
	}
	size++

	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", size)
	w.buf.WriteString("0000000000 65535 f \n")
	for id := 1; id < size; id++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[id])
	}

	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %d 0 R", size, rootID)
	if infoID != 0 {
		fmt.Fprintf(&w.buf, " /Info %d 0 R", infoID)
	}
	fmt.Fprintf(&w.buf, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return w.buf.Bytes()
}
