package normalize

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk format for extending the built-in tables.
//
//	normalize:
//	  org_units:
//	    - name: consortium
//	      pattern: '(?i)\bconsortium\b'
//	      unless: '(?i)\bof the consortium\b'
//	  job_titles: []
//	  department_prefixes: []
//
// Extra rules are appended after the built-in ones, so built-ins keep priority.
type RulesFile struct {
	OrgUnits           []RuleSpec `yaml:"org_units"`
	JobTitles          []RuleSpec `yaml:"job_titles"`
	DepartmentPrefixes []RuleSpec `yaml:"department_prefixes"`
}

// RuleSpec is a named pattern as written in a rules file. Unless is
// optional and vetoes the rule for any string it matches.
type RuleSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Unless  string `yaml:"unless"`
}

// LoadRules returns the default rules extended by the file at path.
// An empty path yields the defaults.
func LoadRules(path string) (*RuleSet, error) {
	rs := DefaultRules()
	if path == "" {
		return rs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read rules %s", path)
	}

	var wrapper struct {
		Normalize RulesFile `yaml:"normalize"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "normalize: parse rules")
	}

	extra := wrapper.Normalize
	if rs.OrgUnits, err = appendSpecs(rs.OrgUnits, extra.OrgUnits, "org_units"); err != nil {
		return nil, err
	}
	if rs.JobTitles, err = appendSpecs(rs.JobTitles, extra.JobTitles, "job_titles"); err != nil {
		return nil, err
	}
	if rs.DepartmentPrefixes, err = appendSpecs(rs.DepartmentPrefixes, extra.DepartmentPrefixes, "department_prefixes"); err != nil {
		return nil, err
	}
	return rs, nil
}

func appendSpecs(rules []Rule, specs []RuleSpec, table string) ([]Rule, error) {
	for i, spec := range specs {
		if spec.Pattern == "" {
			return nil, eris.Errorf("normalize: %s[%d]: empty pattern", table, i)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: %s[%d] %q", table, i, spec.Name)
		}
		name := spec.Name
		if name == "" {
			name = spec.Pattern
		}
		r := Rule{Name: name, Pattern: re}
		if spec.Unless != "" {
			if r.Unless, err = regexp.Compile(spec.Unless); err != nil {
				return nil, eris.Wrapf(err, "normalize: %s[%d] %q unless", table, i, spec.Name)
			}
		}
		rules = append(rules, r)
	}
	return rules, nil
}
