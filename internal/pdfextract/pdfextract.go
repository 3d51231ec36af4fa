// Package pdfextract implements the PDFExtractor contract: given a file
// handle, produce one chunker.Page per page that has text or tables
// (empty pages are skipped), with any table-like content on
// that page pulled out separately so the chunker can index tables as
// standalone chunks.
package pdfextract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"turag/internal/rag/chunker"
)

// Extractor reads tourism brochure/offer PDFs.
type Extractor interface {
	Extract(path string) ([]chunker.Page, error)
}

// LedongthucExtractor is the default Extractor, backed by
// github.com/ledongthuc/pdf.
type LedongthucExtractor struct{}

// New returns the default extractor.
func New() Extractor { return LedongthucExtractor{} }

// Extract opens path and returns its pages in order.
func (LedongthucExtractor) Extract(path string) ([]chunker.Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdfextract: open %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]chunker.Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		prose, tables := splitTables(text)
		prose = strings.TrimSpace(prose)
		if prose == "" && len(tables) == 0 {
			continue
		}
		pages = append(pages, chunker.Page{Number: i, Text: prose, Tables: tables})
	}
	return pages, nil
}

// splitTables pulls contiguous runs of table-formatted lines (tab or pipe
// delimited, the common shape of rendered price/itinerary tables) out of
// a page's plain text, returning the remaining prose and the extracted
// tables separately.
func splitTables(text string) (prose string, tables []string) {
	lines := strings.Split(text, "\n")
	var proseBuf, tableBuf strings.Builder
	flushTable := func() {
		if t := strings.TrimSpace(tableBuf.String()); t != "" {
			tables = append(tables, t)
		}
		tableBuf.Reset()
	}
	for _, ln := range lines {
		if isTableLine(ln) {
			if proseBuf.Len() > 0 {
				proseBuf.WriteString("\n")
			}
			tableBuf.WriteString(ln)
			tableBuf.WriteString("\n")
			continue
		}
		flushTable()
		proseBuf.WriteString(ln)
		proseBuf.WriteString("\n")
	}
	flushTable()
	return proseBuf.String(), tables
}

func isTableLine(line string) bool {
	return strings.Count(line, "\t") >= 2 || strings.Count(line, "|") >= 2
}
