package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const mimePDF = "application/pdf"

var pdfMagic = []byte("%PDF-")

// ErrUnsupportedType is returned for payloads that are not PDFs.
var ErrUnsupportedType = errors.New("unsupported document type")

// ExtractionError reports that a PDF could not be turned into text.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("pdf extraction failed on page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("pdf extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExtractTextFromBytes extracts text from an in-memory payload after
// checking that it is a PDF.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if normalized := normalizeMimeType(mimeType, fileName, data); normalized != mimePDF {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, normalized)
	}
	return ExtractPDFText(ctx, data)
}

// ExtractPDFText returns the text of every page in order. Text items within
// a page are joined by single spaces, pages by newlines, and the result is
// trimmed. Any failure yields an *ExtractionError and no text.
func ExtractPDFText(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", &ExtractionError{Err: errors.New("empty payload")}
	}

	page := 0
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = &ExtractionError{Page: page, Err: fmt.Errorf("pdf reader panic: %v", rec)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Err: err}
	}

	total := reader.NumPage()
	if total == 0 {
		return "", &ExtractionError{Err: errors.New("document has no pages")}
	}

	pages := make([]string, 0, total)
	for page = 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := reader.Page(page)
		if p.V.IsNull() {
			return "", &ExtractionError{Page: page, Err: errors.New("page object missing")}
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Page: page, Err: err}
		}
		pages = append(pages, strings.Join(strings.Fields(content), " "))
	}

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	if bytes.HasPrefix(data, pdfMagic) {
		return mimePDF
	}
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == mimePDF {
		return mimePDF
	}
	if clean == "" || clean == "application/octet-stream" {
		if strings.EqualFold(filepath.Ext(fileName), ".pdf") {
			return mimePDF
		}
	}
	if clean == "" {
		return "unknown"
	}
	return clean
}
