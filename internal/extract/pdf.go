// Package extract turns uploaded binary documents into ordered page text
// for the ingestion pipeline.
package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/harshkolte01/tutor-bot/internal/rag"
)

// PageExtractor yields one entry per page, 1-based, in document order. An
// unparseable document is an error; pages without text come back blank.
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte) ([]rag.Page, error)
}

// IsPDF reports whether an upload should go through page extraction.
func IsPDF(mimeType, filename string) bool {
	if strings.Contains(strings.ToLower(mimeType), "pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// PDFToText extracts page text by invoking the poppler pdftotext binary.
// Pages arrive on stdout separated by form feeds.
type PDFToText struct {
	Binary string
}

func NewPDFToText() *PDFToText {
	return &PDFToText{Binary: "pdftotext"}
}

func (p *PDFToText) ExtractPages(ctx context.Context, data []byte) ([]rag.Page, error) {
	tmp, err := os.CreateTemp("", "ingest-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("pdf extraction failed: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("pdf extraction failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("pdf extraction failed: %w", err)
	}

	binary := p.Binary
	if binary == "" {
		binary = "pdftotext"
	}
	cmd := exec.CommandContext(ctx, binary, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("pdf extraction failed: %s: %s", filepath.Base(binary), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("pdf extraction failed: %w", err)
	}

	return splitPages(string(out)), nil
}

func splitPages(out string) []rag.Page {
	parts := strings.Split(out, "\f")
	// pdftotext terminates every page with a form feed, so the split
	// leaves one empty trailing element.
	if n := len(parts); n > 1 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	pages := make([]rag.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, rag.Page{Number: i + 1, Text: part})
	}
	return pages
}
