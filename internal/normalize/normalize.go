package normalize

import (
	"strings"
)

// RuleSet bundles the three rule tables.
type RuleSet struct {
	OrgUnits           []Rule
	JobTitles          []Rule
	DepartmentPrefixes []Rule
}

// DefaultRules returns a fresh copy of the built-in rule tables.
func DefaultRules() *RuleSet {
	return &RuleSet{
		OrgUnits:           defaultOrgUnits(),
		JobTitles:          defaultJobTitles(),
		DepartmentPrefixes: defaultDepartmentPrefixes(),
	}
}

// MatchOrgUnit returns the first whitelist rule matching s.
func (rs *RuleSet) MatchOrgUnit(s string) (Rule, bool) {
	return firstMatch(rs.OrgUnits, s)
}

// MatchJobTitle returns the first title rule matching s, ignoring the whitelist.
func (rs *RuleSet) MatchJobTitle(s string) (Rule, bool) {
	return firstMatch(rs.JobTitles, s)
}

// IsOrgUnit reports whether s contains an organizational-unit keyword.
func (rs *RuleSet) IsOrgUnit(s string) bool {
	_, ok := rs.MatchOrgUnit(s)
	return ok
}

// IsJobTitle reports whether s reads as a job title. Any whitelist match wins.
func (rs *RuleSet) IsJobTitle(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || rs.IsOrgUnit(s) {
		return false
	}
	_, ok := rs.MatchJobTitle(s)
	return ok
}

// ReclassifyLeak detects a job title stored in the department field. When
// found, the department text becomes the title and the department is cleared.
func (rs *RuleSet) ReclassifyLeak(title, dept string) (string, string, bool) {
	if !rs.IsJobTitle(dept) {
		return title, dept, false
	}
	return strings.TrimSpace(dept), "", true
}

// FindDepartmentPrefix returns the byte offset of the earliest department
// prefix in s, or -1. Ties go to the rule listed first.
func (rs *RuleSet) FindDepartmentPrefix(s string) int {
	best := -1
	for _, r := range rs.DepartmentPrefixes {
		loc := r.Pattern.FindStringIndex(s)
		if loc == nil || (r.Unless != nil && r.Unless.MatchString(s)) {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
		}
	}
	return best
}

// SplitEmbeddedDepartment moves a department name found mid-way through title
// into dept. It only acts when dept is empty and the prefix is not at the start.
func (rs *RuleSet) SplitEmbeddedDepartment(title, dept string) (string, string, bool) {
	if strings.TrimSpace(dept) != "" {
		return title, dept, false
	}
	idx := rs.FindDepartmentPrefix(title)
	if idx <= 0 {
		return title, dept, false
	}
	head := strings.TrimSpace(title[:idx])
	if head == "" {
		return title, dept, false
	}
	return head, strings.TrimSpace(title[idx:]), true
}

func firstMatch(rules []Rule, s string) (Rule, bool) {
	for _, r := range rules {
		if r.Match(s) {
			return r, true
		}
	}
	return Rule{}, false
}
