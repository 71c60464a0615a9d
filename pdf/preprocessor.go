// Package pdf converts PDF input into HTML so the extraction strategies
// can run unchanged against it.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/fwojciec/tidepool"
	"github.com/ledongthuc/pdf"
)

// Ensure Preprocessor implements tidepool.Preprocessor at compile time.
var _ tidepool.Preprocessor = (*Preprocessor)(nil)

var pdfMagic = []byte("%PDF-")

// Preprocessor detects PDF payloads and converts them to minimal HTML.
type Preprocessor struct{}

// NewPreprocessor creates a PDF preprocessor.
func NewPreprocessor() *Preprocessor { return &Preprocessor{} }

// Applies reports whether the content is a PDF document.
func (p *Preprocessor) Applies(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}

// Process extracts the PDF's plain text and wraps it in a minimal HTML
// document, one paragraph per text block.
func (p *Preprocessor) Process(ctx context.Context, content []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINVALID, "reading pdf: %v", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINVALID, "extracting pdf text: %v", err)
	}

	raw, err := io.ReadAll(textReader)
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "reading pdf text: %v", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "pdf contains no extractable text")
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><body><article>\n")
	for _, block := range strings.Split(text, "\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		fmt.Fprintf(&buf, "<p>%s</p>\n", html.EscapeString(block))
	}
	buf.WriteString("</article></body></html>\n")

	return buf.Bytes(), nil
}
