// Package extract pulls plain text out of uploaded supporting documents so the
// advisory oracle has something to read.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for content types with no extraction rule.
var ErrUnsupportedType = errors.New("unsupported content type for text extraction")

// Extractor implements ports.TextExtractor.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the readable text of content.
// text/plain is returned as is, PDFs yield the text of every page, and
// images yield no text.
func (e *Extractor) Extract(ctx context.Context, contentType string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case contentType == "text/plain":
		if !utf8.Valid(content) {
			return strings.ToValidUTF8(string(content), ""), nil
		}
		return string(content), nil
	case contentType == "application/pdf":
		return extractPDF(content)
	case strings.HasPrefix(contentType, "image/"):
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
}

func extractPDF(content []byte) (text string, err error) {
	// The reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(data), "")), nil
}
