package ocr

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Native extracts text in-process, without an external binary. Layout is
// not preserved as faithfully as pdftotext -layout, but the text stream keeps
// the line order the record parsers need.
type Native struct{}

// NewNative creates a Native extractor.
func NewNative() *Native {
	return &Native{}
}

// ExtractText reads every page's plain text. Pages that fail to decode are
// logged and skipped; a document with no extractable text is an error.
func (n *Native) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: open pdf %s", pdfPath)
	}
	defer f.Close() //nolint:errcheck

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", eris.Wrap(err, "ocr: native extract")
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			zap.L().Warn("ocr: skipping unreadable page",
				zap.String("path", pdfPath),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	out := Clean(sb.String())
	if strings.TrimSpace(out) == "" {
		return "", eris.Errorf("ocr: no extractable text in %s", pdfPath)
	}
	return out, nil
}
