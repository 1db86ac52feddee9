package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText shells out to poppler's pdftotext.
//
// The disclosure parsers depend on -layout. Without it pdftotext reflows by
// column, so a compact record's name, title and salary cells land on
// separate lines and the campus token no longer anchors the row. With it,
// each compact record stays on its campus-token line and each line-block
// field keeps its own line. Page breaks arrive as form feeds, which Clean
// folds into newlines.
type PdfToText struct {
	binPath string
}

// NewPdfToText returns an extractor that runs binPath, or "pdftotext" from
// PATH when binPath is empty.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

func (p *PdfToText) args(pdfPath string) []string {
	return []string{"-layout", "-enc", "UTF-8", pdfPath, "-"}
}

// ExtractText converts pdfPath and returns the cleaned text. A document with
// no text layer (a bare scan) is an error rather than an empty result.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, p.args(pdfPath)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s",
			pdfPath, strings.TrimSpace(stderr.String()))
	}

	out := Clean(stdout.String())
	if strings.TrimSpace(out) == "" {
		return "", eris.Errorf("ocr: no extractable text in %s", pdfPath)
	}
	return out, nil
}
