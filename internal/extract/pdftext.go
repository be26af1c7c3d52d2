package extract

import (
	"context"
	"fmt"
)

// TextExtractor pulls the text layer out of a PDF with pdftotext.
type TextExtractor struct {
	runner CommandRunner
	bin    string
}

func NewTextExtractor(runner CommandRunner, bin string) *TextExtractor {
	if bin == "" {
		bin = "pdftotext"
	}
	return &TextExtractor{runner: runner, bin: bin}
}

// Extract returns the raw, uncleaned text of the PDF at path.
func (e *TextExtractor) Extract(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, Command{
		Name: e.bin,
		Args: []string{"-layout", "-enc", "UTF-8", "-eol", "unix", path, "-"},
	})
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	return string(out), nil
}
