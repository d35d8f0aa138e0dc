package documents

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"research-portal/internal/earnings"
	"research-portal/internal/extract"
	"research-portal/internal/financial"
	"research-portal/internal/llm"
	"research-portal/internal/shared/metrics"
	"research-portal/internal/shared/storage/object"
	"research-portal/internal/shared/telemetry"
)

// Service turns a PDF into a tool result.
type Service struct {
	Store     object.ObjectStore
	LLM       llm.Client
	Financial *financial.Extractor
	Earnings  *earnings.Analyzer
	MaxBytes  int64
}

// Process checks the completion client, extracts the PDF text and runs
// exactly one tool over it. Tool-level problems are reported inside the
// result; the returned error covers configuration, extraction and input
// failures only.
func (s *Service) Process(ctx context.Context, doc Document, tool ToolType) (out Outcome, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{}
			err = fmt.Errorf("processing panic: %v", rec)
		}
	}()

	if _, err := ParseToolType(string(tool)); err != nil {
		return Outcome{}, err
	}
	if err := llm.CheckConfigured(s.LLM); err != nil {
		return Outcome{}, err
	}

	text, err := extract.ExtractTextFromBytes(ctx, doc.Data, doc.MimeType, doc.FileName)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{}, ErrEmptyDocument
	}

	out = Outcome{
		ToolType:  tool,
		FileName:  doc.FileName,
		TextChars: utf8.RuneCountInString(text),
	}
	switch tool {
	case ToolFinancial:
		res := s.financialExtractor().Extract(ctx, text)
		out.Financial = &res
	case ToolEarnings:
		res := s.earningsAnalyzer().Analyze(ctx, text)
		out.Earnings = &res
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	metrics.IncDocumentProcessed(string(tool))
	metrics.ObserveProcessDurationMs(durationMs)
	telemetry.Info("document.processed", map[string]any{
		"tool_type":   string(tool),
		"file_name":   doc.FileName,
		"size_bytes":  len(doc.Data),
		"text_chars":  out.TextChars,
		"warnings":    len(out.Warnings()),
		"duration_ms": durationMs,
	})
	return out, nil
}

// ProcessStored reads the PDF at key from the object store and processes it.
func (s *Service) ProcessStored(ctx context.Context, key string, tool ToolType) (Outcome, error) {
	if _, err := ParseToolType(string(tool)); err != nil {
		return Outcome{}, err
	}
	if s.Store == nil {
		return Outcome{}, ErrStorageUnavailable
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return Outcome{}, err
	}
	data, err := object.ReadAll(ctx, s.Store, clean, s.MaxBytes)
	if err != nil {
		return Outcome{}, err
	}
	return s.Process(ctx, Document{
		FileName: path.Base(clean),
		Data:     data,
	}, tool)
}

func (s *Service) financialExtractor() *financial.Extractor {
	if s.Financial != nil {
		return s.Financial
	}
	return &financial.Extractor{LLM: s.LLM}
}

func (s *Service) earningsAnalyzer() *earnings.Analyzer {
	if s.Earnings != nil {
		return s.Earnings
	}
	return &earnings.Analyzer{LLM: s.LLM}
}
