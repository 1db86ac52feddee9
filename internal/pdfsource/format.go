// Package pdfsource turns the text of the published salary report into
// SalaryRecords. The report has shipped in two layouts over the years; each
// has its own Parser and Classify picks between them.
package pdfsource

import (
	"fmt"
	"strings"

	"github.com/sells-group/salary-cli/internal/config"
)

// Format identifies a report layout.
type Format string

// Known layouts.
const (
	FormatAuto      Format = "auto"
	FormatCompact   Format = "compact"
	FormatLineBlock Format = "line-block"
)

// ParseFormat validates a --format flag value. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCompact, FormatLineBlock:
		return f, nil
	case "lineblock", "line_block":
		return FormatLineBlock, nil
	default:
		return "", config.NewConfigError("format", fmt.Sprintf("unknown format %q (valid: auto, compact, line-block)", s))
	}
}

// ParseError describes one chunk or block that did not have the expected shape.
// It is a data-quality signal: counted and reported, never retried.
type ParseError struct {
	Format  Format
	Index   int // ordinal of the chunk/block within the document
	Campus  string
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pdfsource: %s record %d (%s): %s: %q", e.Format, e.Index, e.Campus, e.Reason, e.Snippet)
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return s
}
