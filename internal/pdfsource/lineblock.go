package pdfsource

import (
	"regexp"

	"github.com/sells-group/salary-cli/internal/normalize"
)

var (
	amountLine      = regexp.MustCompile(`^[\d,]+\.\d{2}$`)
	amountBasisLine = regexp.MustCompile(`^([\d,]+\.\d{2})\s+(8|9|12)-Month$`)
	basisLine       = regexp.MustCompile(`^(8|9|12)-Month$`)
	fractionLine    = regexp.MustCompile(`^\d*\.?\d+$`)
)

// minBlockLines is name, title, department and at least three numeric lines.
const minBlockLines = 6

// LineBlock parses the layout where every field sits on its own line:
//
//	UM_DEARBORN
//	Doe, Jane
//	Lecturer
//	CoE Mechanical Engineering
//	55,000.00 9-Month
//	0.50
//	0.00
//
// The amount and basis may also be split over two lines.
type LineBlock struct {
	rules *normalize.RuleSet
}

// Format implements Parser.
func (l *LineBlock) Format() Format { return FormatLineBlock }

// Parse implements Parser.
func (l *LineBlock) Parse(text string) Result {
	var res Result
	for i, seg := range segments(text) {
		lines := contentLines(seg.body)

		fail := func(reason string) {
			res.Failures = append(res.Failures, &ParseError{
				Format:  FormatLineBlock,
				Index:   i,
				Campus:  seg.campus.Token,
				Reason:  reason,
				Snippet: snippet(seg.body),
			})
		}

		if len(lines) < minBlockLines {
			fail("too few lines")
			continue
		}

		ftrText, basis, fraction, gfText, ok := numericFields(lines[3:])
		if !ok {
			fail("unrecognized numeric layout")
			continue
		}
		ftr, err := parseAmount(ftrText)
		if err != nil {
			fail("bad ftr amount")
			continue
		}
		gf, err := parseAmount(gfText)
		if err != nil {
			fail("bad gf amount")
			continue
		}

		last, first := splitName(lines[0])
		if last == "" {
			fail("missing last name")
			continue
		}

		rec := newRecord(seg.campus)
		rec.LastName = last
		rec.FirstName = first
		rec.FTR = ftr
		rec.GF = gf
		rec.PeriodFTE = periodFTE(basis, fraction)
		rec.Title, rec.Department, _ = l.rules.SplitEmbeddedDepartment(lines[1], lines[2])
		res.Records = append(res.Records, rec)
	}
	return res
}

// numericFields matches either sub-layout at the head of lines:
//
//	"<ftr> <basis>-Month", fraction, gf
//	ftr, "<basis>-Month", fraction, gf
func numericFields(lines []string) (ftr, basis, fraction, gf string, ok bool) {
	if len(lines) >= 3 {
		if m := amountBasisLine.FindStringSubmatch(lines[0]); m != nil &&
			fractionLine.MatchString(lines[1]) && amountLine.MatchString(lines[2]) {
			return m[1], m[2], lines[1], lines[2], true
		}
	}
	if len(lines) >= 4 && amountLine.MatchString(lines[0]) {
		if m := basisLine.FindStringSubmatch(lines[1]); m != nil &&
			fractionLine.MatchString(lines[2]) && amountLine.MatchString(lines[3]) {
			return lines[0], m[1], lines[2], lines[3], true
		}
	}
	return "", "", "", "", false
}
