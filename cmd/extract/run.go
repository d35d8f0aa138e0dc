package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"research-portal/internal/documents"
	"research-portal/internal/earnings"
	"research-portal/internal/export"
	"research-portal/internal/financial"
	"research-portal/internal/llm"
)

func newRunCmd(v *viper.Viper, newClient clientFactory) *cobra.Command {
	var (
		tool     string
		file     string
		outPath  string
		xlsxPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a tool over a local PDF",
		Example: `  extract run --tool financial --file report.pdf --xlsx report.xlsx
  extract run --tool earnings --file call.pdf --provider anthropic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			toolType, err := documents.ParseToolType(tool)
			if err != nil {
				return err
			}
			if strings.TrimSpace(file) == "" {
				return fmt.Errorf("--file is required")
			}
			if xlsxPath != "" && toolType != documents.ToolFinancial {
				return fmt.Errorf("--xlsx is only supported with --tool financial")
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			cfg := resolveConfig(v)
			client := llm.Instrument(llm.WithTimeout(newClient(cfg), cfg.LLMTimeout), cfg.LLMProvider, cfg.LLMModel)
			svc := &documents.Service{
				LLM:       client,
				Financial: &financial.Extractor{LLM: client, DisableRepair: !cfg.LLMRepairJSON},
				Earnings:  &earnings.Analyzer{LLM: client, DisableRepair: !cfg.LLMRepairJSON},
			}

			out, err := svc.Process(cmd.Context(), documents.Document{
				FileName: filepath.Base(file),
				Data:     data,
			}, toolType)
			if err != nil {
				return err
			}

			pretty, err := prettyJSON(out.Result())
			if err != nil {
				return fmt.Errorf("format json: %w", err)
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, pretty, 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}
			if xlsxPath != "" {
				book, err := export.FinancialXLSX(out.Financial.LineItems)
				if err != nil {
					return fmt.Errorf("export xlsx: %w", err)
				}
				if err := os.WriteFile(xlsxPath, book, 0o644); err != nil {
					return fmt.Errorf("write xlsx: %w", err)
				}
			}

			_, err = cmd.OutOrStdout().Write(pretty)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&tool, "tool", "", "Tool to run: financial, earnings")
	f.StringVar(&file, "file", "", "Path to the PDF")
	f.StringVar(&outPath, "out", "", "Write the result JSON to this path")
	f.StringVar(&xlsxPath, "xlsx", "", "Write financial line items to this workbook")
	_ = cmd.MarkFlagRequired("tool")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func prettyJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
