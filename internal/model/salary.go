package model

import (
	"fmt"
	"strings"
)

// SalaryRecord is the canonical unit produced by every source.
type SalaryRecord struct {
	LastName   string  `json:"last_name"`
	FirstName  string  `json:"first_name"`
	Title      string  `json:"title"`
	Department string  `json:"department"`
	FiscalYear string  `json:"fiscal_year"`
	YearKey    int     `json:"year_key"`
	Campus     string  `json:"campus"`
	CampusID   int     `json:"campus_id"`
	FTR        float64 `json:"ftr"`
	GF         float64 `json:"gf"`
	PeriodFTE  string  `json:"period_fte"`
}

// Identity is the uniqueness tuple of a SalaryRecord.
type Identity struct {
	LastName   string
	FirstName  string
	Title      string
	Department string
	YearKey    int
}

// Identity returns the record's uniqueness tuple.
func (r SalaryRecord) Identity() Identity {
	return Identity{
		LastName:   r.LastName,
		FirstName:  r.FirstName,
		Title:      r.Title,
		Department: r.Department,
		YearKey:    r.YearKey,
	}
}

// Valid reports whether the record satisfies the required-field constraints.
func (r SalaryRecord) Valid() bool {
	return strings.TrimSpace(r.LastName) != "" && r.FTR >= 0 && r.GF >= 0 && r.YearKey >= 0
}

// DepartmentEntry addresses one department on the HTML source.
type DepartmentEntry struct {
	DisplayName     string `json:"display_name"`
	SourceEncodedID string `json:"source_encoded_id"`
}

// FiscalYearLabel renders the display label for yearKey, counting back from
// the start year of the most recent fiscal year. latest=2024, yearKey=1 -> "2023-24".
func FiscalYearLabel(latest, yearKey int) string {
	start := latest - yearKey
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// Stamp sets the year key, fiscal-year label and (when empty) campus on every record.
func Stamp(records []SalaryRecord, yearKey int, label string, campus Campus) {
	for i := range records {
		records[i].YearKey = yearKey
		records[i].FiscalYear = label
		if records[i].Campus == "" {
			records[i].Campus = campus.Label
			records[i].CampusID = campus.ID
		}
	}
}
