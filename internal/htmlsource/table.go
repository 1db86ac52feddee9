package htmlsource

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/salary-cli/internal/model"
)

var pageMarker = regexp.MustCompile(`Page\s+\d+\s+of\s+(\d+)`)

// plainAmount is what a salary cell holds once "$" and "," are stripped.
// ParseFloat alone would also take "NaN", "Inf", "1e3" and hex literals.
var plainAmount = regexp.MustCompile(`^(?:\d+(?:\.\d*)?|\.\d+)$`)

// Page is one parsed result page.
type Page struct {
	Records    []model.SalaryRecord
	TotalPages int
}

// ParsePage reads the salary rows and the "Page X of N" marker from a
// department result page. TotalPages is 1 when the marker is absent.
func ParsePage(html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, eris.Wrap(err, "htmlsource: parse page")
	}
	return Page{
		Records:    salaryRows(doc),
		TotalPages: pageCount(doc.Text()),
	}, nil
}

// ParsePageCount returns N from the first "Page X of N" marker in text, or 1.
func ParsePageCount(text string) int {
	return pageCount(text)
}

func pageCount(text string) int {
	m := pageMarker.FindStringSubmatch(text)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// salaryRows parses the first table whose header row mentions both FTR and GF.
func salaryRows(doc *goquery.Document) []model.SalaryRecord {
	var records []model.SalaryRecord
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		header := strings.ToUpper(rows.First().Text())
		if !strings.Contains(header, "FTR") || !strings.Contains(header, "GF") {
			return true
		}
		rows.Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				cells = append(cells, strings.Join(strings.Fields(td.Text()), " "))
			})
			if rec, ok := ParseRow(cells); ok {
				records = append(records, rec)
			}
		})
		return false
	})
	return records
}

// ParseRow converts the five cells name, title, department, ftr and gf into a
// record. Rows with fewer cells or no last name are rejected.
func ParseRow(cells []string) (model.SalaryRecord, bool) {
	if len(cells) < 5 {
		return model.SalaryRecord{}, false
	}
	last, first := SplitName(cells[0])
	if last == "" {
		return model.SalaryRecord{}, false
	}
	return model.SalaryRecord{
		LastName:   last,
		FirstName:  first,
		Title:      strings.TrimSpace(cells[1]),
		Department: strings.TrimSpace(cells[2]),
		FTR:        ParseCurrency(cells[3]),
		GF:         ParseCurrency(cells[4]),
	}, true
}

// SplitName splits "Last, First" on the first comma.
func SplitName(s string) (last, first string) {
	last, first, _ = strings.Cut(s, ",")
	return strings.TrimSpace(last), strings.TrimSpace(first)
}

// ParseCurrency reads "$100,000.00". Anything that is not a plain
// non-negative decimal amount is 0.
func ParseCurrency(s string) float64 {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	if !plainAmount.MatchString(s) {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
