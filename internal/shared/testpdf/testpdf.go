// Package testpdf renders small uncompressed PDFs for tests and local smoke runs.
package testpdf

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Build returns a PDF with one page per entry, each entry written as lines of
// Helvetica text. Newlines in an entry start a new line on the same page.
func Build(pages ...string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 11)
	for _, text := range pages {
		doc.AddPage()
		for _, line := range splitLines(text) {
			doc.Cell(0, 6, line)
			doc.Ln(6)
		}
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	return append(lines, text[start:])
}
