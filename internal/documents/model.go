package documents

import (
	"errors"
	"strings"

	"research-portal/internal/earnings"
	"research-portal/internal/financial"
)

// ToolType selects the analysis run over a document.
type ToolType string

const (
	ToolFinancial ToolType = "financial"
	ToolEarnings  ToolType = "earnings"
)

var (
	ErrInvalidToolType    = errors.New(`Invalid tool type. Must be "financial" or "earnings"`)
	ErrEmptyDocument      = errors.New("PDF appears to be empty or unreadable")
	ErrStorageUnavailable = errors.New("document storage is not configured")
)

// ParseToolType accepts exactly "financial" or "earnings".
func ParseToolType(s string) (ToolType, error) {
	switch t := ToolType(strings.TrimSpace(s)); t {
	case ToolFinancial, ToolEarnings:
		return t, nil
	default:
		return "", ErrInvalidToolType
	}
}

// Document is an uploaded file awaiting processing.
type Document struct {
	FileName string
	MimeType string
	Data     []byte
}

// Outcome is the result of processing one document. Exactly one of
// Financial and Earnings is set, matching ToolType.
type Outcome struct {
	ToolType  ToolType
	FileName  string
	TextChars int
	Financial *financial.Result
	Earnings  *earnings.Result
}

// Result returns whichever tool result is set.
func (o Outcome) Result() any {
	switch {
	case o.Financial != nil:
		return o.Financial
	case o.Earnings != nil:
		return o.Earnings
	default:
		return nil
	}
}

// Warnings returns the warnings of the tool result.
func (o Outcome) Warnings() []string {
	switch {
	case o.Financial != nil:
		return o.Financial.Warnings
	case o.Earnings != nil:
		return o.Earnings.Warnings
	default:
		return nil
	}
}

// ProcessResponse is the body returned by the processing endpoints.
type ProcessResponse struct {
	Success  bool     `json:"success"`
	Filename string   `json:"filename"`
	ToolType ToolType `json:"toolType"`
	Result   any      `json:"result"`
}

func toResponse(o Outcome) ProcessResponse {
	return ProcessResponse{
		Success:  true,
		Filename: o.FileName,
		ToolType: o.ToolType,
		Result:   o.Result(),
	}
}
