// Package htmlsource scrapes the third-party salary site: a roster page that
// lists department links, and per-department paginated result tables.
package htmlsource

import (
	"encoding/base64"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/salary-cli/internal/model"
	"github.com/sells-group/salary-cli/internal/normalize"
)

// ParseRoster extracts the department entries linked from a roster page.
// Anchors must point at departmentPath and carry a Dept parameter. Entries
// whose display text reads as a job title are dropped; the roster mixes the
// two. The result is deduplicated by identifier in first-seen order.
func ParseRoster(html, departmentPath string, rules *normalize.RuleSet) ([]model.DepartmentEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "htmlsource: parse roster")
	}
	if rules == nil {
		rules = normalize.DefaultRules()
	}
	target := path.Base(departmentPath)

	var entries []model.DepartmentEntry
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || path.Base(u.Path) != target {
			return
		}
		id := u.Query().Get("Dept")
		if id == "" || seen[id] {
			return
		}

		name := strings.Join(strings.Fields(s.Text()), " ")
		if name == "" {
			name = decodeID(id)
		}
		if rules.IsJobTitle(name) {
			return
		}

		seen[id] = true
		entries = append(entries, model.DepartmentEntry{DisplayName: name, SourceEncodedID: id})
	})
	return entries, nil
}

// decodeID returns the readable form of a Dept identifier. The site encodes
// names as base64; anything that does not decode to printable text is
// returned as-is.
func decodeID(id string) string {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(id)
		if err == nil && printable(b) {
			return strings.TrimSpace(string(b))
		}
	}
	return id
}

func printable(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
