package pdfsource

import (
	"regexp"
	"strings"

	"github.com/sells-group/salary-cli/internal/normalize"
)

// compactTail is "<ftr> <8|9|12>-Month<fraction> <gf>" at the end of a chunk.
var compactTail = regexp.MustCompile(`([\d,]+\.\d{2})\s+(8|9|12)-Month\s*(\d*\.?\d+)\s+([\d,]+\.\d{2})\s*$`)

// Compact parses the layout where each record runs on from its campus token:
//
//	UM_ANN-ARBOR Doe, Jane Analyst LSA History 62,232.00 12-Month1.00 0.00
type Compact struct {
	rules *normalize.RuleSet
}

// Format implements Parser.
func (c *Compact) Format() Format { return FormatCompact }

// Parse implements Parser.
func (c *Compact) Parse(text string) Result {
	var res Result
	for i, seg := range segments(text) {
		body := strings.Join(contentLines(seg.body), " ")
		body = strings.Join(strings.Fields(body), " ")

		fail := func(reason string) {
			res.Failures = append(res.Failures, &ParseError{
				Format:  FormatCompact,
				Index:   i,
				Campus:  seg.campus.Token,
				Reason:  reason,
				Snippet: snippet(body),
			})
		}

		m := compactTail.FindStringSubmatchIndex(body)
		if m == nil {
			fail("numeric tail not found")
			continue
		}
		ftr, err := parseAmount(body[m[2]:m[3]])
		if err != nil {
			fail("bad ftr amount")
			continue
		}
		gf, err := parseAmount(body[m[8]:m[9]])
		if err != nil {
			fail("bad gf amount")
			continue
		}

		last, rest := splitName(strings.TrimSpace(body[:m[0]]))
		if last == "" {
			fail("missing last name")
			continue
		}

		rec := newRecord(seg.campus)
		rec.LastName = last
		rec.FTR = ftr
		rec.GF = gf
		rec.PeriodFTE = periodFTE(body[m[4]:m[5]], body[m[6]:m[7]])
		rec.FirstName, rec.Title, rec.Department = c.splitRest(rest)
		rec.Title, rec.Department, _ = c.rules.SplitEmbeddedDepartment(rec.Title, rec.Department)
		res.Records = append(res.Records, rec)
	}
	return res
}

// splitRest splits "Jane Analyst LSA History" into first name, title and
// department. The department starts at the earliest known prefix after the
// first name.
func (c *Compact) splitRest(rest string) (first, title, dept string) {
	first, tail, _ := strings.Cut(rest, " ")
	tail = strings.TrimSpace(tail)
	idx := c.rules.FindDepartmentPrefix(tail)
	if idx < 0 {
		return first, tail, ""
	}
	return first, strings.TrimSpace(tail[:idx]), strings.TrimSpace(tail[idx:])
}
