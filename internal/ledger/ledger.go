// Package ledger records departments that failed during a run so a later run
// can retry exactly those. Entries are keyed by (year key, source id).
package ledger

import (
	"context"
	"time"
)

// AllYears disables the year filter in ReadFiltered.
const AllYears = -1

// Entry is one failed unit.
type Entry struct {
	YearKey         int       `json:"year_key"`
	SourceEncodedID string    `json:"source_encoded_id"`
	DisplayName     string    `json:"display_name"`
	ErrorMessage    string    `json:"error_message"`
	FailedAt        time.Time `json:"failed_at"`
	RunID           string    `json:"run_id,omitempty"`
}

// Key identifies an entry.
type Key struct {
	YearKey         int
	SourceEncodedID string
}

// Key returns the entry's key.
func (e Entry) Key() Key {
	return Key{YearKey: e.YearKey, SourceEncodedID: e.SourceEncodedID}
}

// Store persists ledger entries.
type Store interface {
	// Append records a failure. Repeated failures of one key are all kept.
	Append(ctx context.Context, e Entry) error
	// ReadFiltered returns one entry per key for yearKey (or every year with
	// AllYears), in first-failure order, carrying the latest error.
	ReadFiltered(ctx context.Context, yearKey int) ([]Entry, error)
	// RemoveKeys deletes every entry for yearKey whose id is in ids and
	// returns how many lines were removed.
	RemoveKeys(ctx context.Context, yearKey int, ids []string) (int, error)
}

// collapse keeps one entry per key: first-seen position, latest content.
func collapse(entries []Entry, yearKey int) []Entry {
	idx := make(map[Key]int)
	var out []Entry
	for _, e := range entries {
		if yearKey != AllYears && e.YearKey != yearKey {
			continue
		}
		if i, ok := idx[e.Key()]; ok {
			out[i] = e
			continue
		}
		idx[e.Key()] = len(out)
		out = append(out, e)
	}
	return out
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
