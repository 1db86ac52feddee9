package model

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Campus is one of the fixed campus codes that appear in the published report.
type Campus struct {
	Token string // token printed in the PDF, e.g. "UM_ANN-ARBOR"
	Label string
	ID    int
}

// Campus codes.
var (
	CampusAnnArbor = Campus{Token: "UM_ANN-ARBOR", Label: "Ann Arbor", ID: 1}
	CampusDearborn = Campus{Token: "UM_DEARBORN", Label: "Dearborn", ID: 2}
	CampusFlint    = Campus{Token: "UM_FLINT", Label: "Flint", ID: 3}
)

// Campuses lists every campus in ID order.
var Campuses = []Campus{CampusAnnArbor, CampusDearborn, CampusFlint}

// CampusTokenRe matches any campus token.
var CampusTokenRe = regexp.MustCompile(`UM_ANN-ARBOR|UM_DEARBORN|UM_FLINT`)

// CampusByToken looks up a campus by its PDF token.
func CampusByToken(token string) (Campus, bool) {
	for _, c := range Campuses {
		if c.Token == token {
			return c, true
		}
	}
	return Campus{}, false
}

// ParseCampus accepts a token ("UM_FLINT"), a label ("Flint") or an ID ("3").
func ParseCampus(s string) (Campus, error) {
	s = strings.TrimSpace(s)
	for _, c := range Campuses {
		if strings.EqualFold(s, c.Token) || strings.EqualFold(s, c.Label) || s == strconv.Itoa(c.ID) {
			return c, nil
		}
	}
	return Campus{}, eris.Errorf("unknown campus: %q (valid: UM_ANN-ARBOR, UM_DEARBORN, UM_FLINT)", s)
}
