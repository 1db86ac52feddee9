package pdfsource

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salary-cli/internal/model"
	"github.com/sells-group/salary-cli/internal/normalize"
)

// Result is the outcome of parsing one document.
type Result struct {
	Records  []model.SalaryRecord
	Failures []*ParseError
}

// Parser converts extracted report text into records.
type Parser interface {
	Format() Format
	Parse(text string) Result
}

// New returns the parser for a concrete format. rules may be nil.
func New(f Format, rules *normalize.RuleSet) (Parser, error) {
	if rules == nil {
		rules = normalize.DefaultRules()
	}
	switch f {
	case FormatCompact:
		return &Compact{rules: rules}, nil
	case FormatLineBlock:
		return &LineBlock{rules: rules}, nil
	default:
		return nil, eris.Errorf("pdfsource: no parser for format %q", f)
	}
}

// ParseDocument classifies text (unless override is concrete) and parses it.
func ParseDocument(text string, override Format, rules *normalize.RuleSet) (Format, Result, error) {
	f := Classify(text, override)
	p, err := New(f, rules)
	if err != nil {
		return f, Result{}, err
	}
	return f, p.Parse(text), nil
}

// segment is the text between one campus token and the next.
type segment struct {
	campus model.Campus
	body   string
}

// segments splits text at campus tokens. Text before the first token is dropped.
func segments(text string) []segment {
	locs := model.CampusTokenRe.FindAllStringIndex(text, -1)
	out := make([]segment, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		campus, _ := model.CampusByToken(text[loc[0]:loc[1]])
		out = append(out, segment{campus: campus, body: text[loc[1]:end]})
	}
	return out
}

// furniture matches report lines that are not part of any record.
var furniture = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page\s+\d+(?:\s+of\s+\d+)?$`),
	regexp.MustCompile(`(?i)^(?:campus\s+)?name\s+.*\b(?:appointment\s+title|ftr|full[- ]time)\b`),
	regexp.MustCompile(`(?i)^university of michigan\b.*\b(?:salary|staff|faculty)\b`),
	regexp.MustCompile(`(?i)^(?:salary record|fiscal year)\b.*\d{4}`),
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$`),
}

func isFurniture(line string) bool {
	for _, re := range furniture {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// contentLines returns the trimmed, non-empty, non-furniture lines of s.
func contentLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isFurniture(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// splitName splits "Last, First Middle" on the first comma.
func splitName(s string) (last, rest string) {
	last, rest, _ = strings.Cut(s, ",")
	return strings.TrimSpace(last), strings.TrimSpace(rest)
}

// parseAmount reads "62,232.00".
func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

func periodFTE(basis, fraction string) string {
	return basis + "Month" + fraction
}

func newRecord(campus model.Campus) model.SalaryRecord {
	return model.SalaryRecord{Campus: campus.Label, CampusID: campus.ID}
}
