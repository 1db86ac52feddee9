// Package normalize repairs title/department mix-ups that both salary sources produce.
//
// The heuristics are driven by three ordered rule tables:
//
//  1. OrgUnits: organizational-unit keywords. A match here means "this is a
//     department" and suppresses every job-title match (whitelist first).
//  2. JobTitles: role keywords, rank prefixes and VP/director phrasing.
//  3. DepartmentPrefixes: tokens that begin a department name when it has been
//     run together with a title ("Professor LSA History").
//
// Rules are evaluated in table order. The tables are best-effort: a genuine
// unit named after a role ("Coaching Staff") or a title containing a unit
// keyword ("Lab Manager") can be misclassified, and there is no ground truth in
// the source documents to check against.
package normalize

import (
	"regexp"
)

// Rule is one named pattern in a rule table. When Unless is set, a string
// it matches is never a match for the rule.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Unless  *regexp.Regexp
}

// Match reports whether the rule matches s.
func (r Rule) Match(s string) bool {
	if !r.Pattern.MatchString(s) {
		return false
	}
	return r.Unless == nil || !r.Unless.MatchString(s)
}

func rule(name, expr string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(expr)}
}

func ruleUnless(name, expr, unless string) Rule {
	r := rule(name, expr)
	r.Unless = regexp.MustCompile(unless)
	return r
}

// schoolCodes are abbreviated unit codes used by both sources.
const schoolCodes = `LSA|UMH|UMMG|UMHS|SPH|SSW|SEAS|SMTD|ITS|MM|CoE|UMD|UMF`

func defaultOrgUnits() []Rule {
	return []Rule{
		rule("school-code", `\b(?:`+schoolCodes+`)\b`),
		rule("department", `(?i)\b(?:department|dept|depts)\b`),
		rule("office", `(?i)\boffices?\b`),
		rule("center", `(?i)\b(?:center|centre|centers)\b`),
		rule("program", `(?i)\bprograms?\b`),
		rule("division", `(?i)\b(?:division|divisions|div)\b`),
		rule("institute", `(?i)\binstitutes?\b`),
		rule("lab", `(?i)\b(?:lab|labs|laboratory|laboratories)\b`),
		rule("school", `(?i)\b(?:school|college)\b`),
		rule("library", `(?i)\b(?:library|libraries|museum|museums)\b`),
		rule("clinical-site", `(?i)\b(?:hospital|hospitals|clinic|clinics|health system)\b`),
		rule("services", `(?i)\b(?:services|operations|facilities)\b`),
		rule("unit", `(?i)\b(?:unit|units|administration|committee|council|foundation)\b`),
		rule("athletics", `(?i)\bathletics\b`),
		// A subject on its own names a unit ("Internal Medicine"); as the
		// object of "of"/"in" it qualifies a title ("Professor of Surgery").
		ruleUnless("discipline",
			`(?i)\b(?:studies|sciences|engineering|medicine|surgery|pediatrics|psychiatry|radiology)\b`,
			`(?i)\b(?:of|in)\s+(?:\w+\s+)?(?:studies|sciences|engineering|medicine|surgery|pediatrics|psychiatry|radiology)\b`),
	}
}

func defaultJobTitles() []Rule {
	return []Rule{
		rule("faculty-role", `(?i)\b(?:professor|prof|lecturer|instructor|adjunct|emeritus|emerita)\b`),
		rule("research-role", `(?i)\b(?:scientist|fellow|postdoc|postdoctoral|investigator|researcher)\b`),
		rule("coach", `(?i)\bcoach(?:es)?\b`),
		rule("rank-prefix", `(?i)^(?:asst|assoc|assistant|associate|clinical|research|visiting|senior|sr|junior|jr|lead|chief|principal|executive|exec|interim|deputy)\b`),
		rule("leadership", `(?i)\b(?:vice president|vice-president|vp|avp|director|dir|dean|provost|chancellor|president|regent)\b`),
		rule("staff-role", `(?i)\b(?:manager|mgr|coordinator|specialist|analyst|engineer|nurse|physician|technician|tech|administrator|officer|supervisor|librarian|counselor|curator|resident|intern|aide|clerk|secretary|advisor|consultant|developer|programmer|therapist|pharmacist|custodian|assistant)\b`),
	}
}

func defaultDepartmentPrefixes() []Rule {
	return []Rule{
		rule("school-code", `\b(?:`+schoolCodes+`)\b`),
		rule("medical-school", `\bMedical School\b`),
		rule("law-school", `\bLaw School\b`),
		rule("school-of", `\bSchool of\b`),
		rule("college", `\bCollege\b`),
		rule("building", `\bBuilding\b`),
		rule("facilities", `\bFacilities\b`),
		rule("rackham", `\bRackham\b`),
		rule("university", `\bUniversity (?:Library|Health|Hospital|Musical)\b`),
		rule("athletic", `\bAthletic`),
		rule("regional-campus", `\b(?:Dearborn|Flint) (?:Campus|Administration|College)\b`),
		rule("hospital", `\bHospitals?\b`),
	}
}
