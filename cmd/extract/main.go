package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"research-portal/internal/bootstrap"
	"research-portal/internal/extract"
	"research-portal/internal/llm"
)

func main() {
	if err := newRootCmd(bootstrap.NewLLM).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", llm.SanitizeError(err))
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for configuration and extraction errors, 1 otherwise.
func exitCode(err error) int {
	var extractErr *extract.ExtractionError
	switch {
	case llm.IsConfigurationError(err), errors.As(err, &extractErr), errors.Is(err, extract.ErrUnsupportedType):
		return 2
	default:
		return 1
	}
}
