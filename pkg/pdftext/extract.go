// Package pdftext pulls plain text out of PDF files.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"rsc.io/pdf"
)

var (
	// ErrUnreadable is returned when the bytes cannot be parsed as a PDF.
	ErrUnreadable = errors.New("pdf is unreadable")
	// ErrNoText is returned when the PDF parses but carries no text layer
	// (e.g. scanned images).
	ErrNoText = errors.New("pdf contains no extractable text")
)

// Extractor implements core.TextExtractor on top of rsc.io/pdf.
type Extractor struct {
	// MaxPages stops extraction after this many pages. Zero means no limit.
	MaxPages int
}

// Extract returns the text of every non-blank page joined by newlines and the
// number of pages in the document.
func (e Extractor) Extract(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	pages = r.NumPage()
	limit := pages
	if e.MaxPages > 0 && e.MaxPages < limit {
		limit = e.MaxPages
	}

	var parts []string
	for i := 1; i <= limit; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if t := strings.TrimSpace(pageText(page.Content().Text)); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", pages, ErrNoText
	}
	return strings.Join(parts, "\n"), pages, nil
}

// Extract uses an Extractor without a page limit.
func Extract(data []byte) (string, int, error) {
	return Extractor{}.Extract(data)
}

// pageText reassembles positioned glyph runs into lines. A jump in the
// baseline starts a new line; a horizontal gap wider than a fraction of the
// font size becomes a space.
func pageText(runs []pdf.Text) string {
	var b strings.Builder
	var prev *pdf.Text
	for i := range runs {
		t := &runs[i]
		if prev != nil {
			size := math.Max(prev.FontSize, 1)
			switch {
			case math.Abs(t.Y-prev.Y) > size/2:
				b.WriteByte('\n')
			case t.X-(prev.X+prev.W) > size*0.15:
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		prev = t
	}
	return b.String()
}
