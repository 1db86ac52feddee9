package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// File is a line-delimited JSON ledger on disk.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a ledger backed by path. The file is created on first Append.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Append implements Store.
func (f *File) Append(_ context.Context, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal entry")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "ledger: create dir %s", dir)
		}
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "ledger: open %s", f.path)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		file.Close() //nolint:errcheck
		return eris.Wrapf(err, "ledger: append %s", f.path)
	}
	return eris.Wrap(file.Close(), "ledger: close")
}

// ReadFiltered implements Store. A missing file is an empty ledger.
func (f *File) ReadFiltered(_ context.Context, yearKey int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parsed, _, err := f.readAll()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(parsed))
	for _, e := range parsed {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return collapse(entries, yearKey), nil
}

// RemoveKeys implements Store. The file is rewritten through a temp file and
// renamed into place.
func (f *File) RemoveKeys(_ context.Context, yearKey int, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, raw, err := f.readAll()
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}

	drop := idSet(ids)
	var keep [][]byte
	removed := 0
	for i, line := range raw {
		e := entries[i]
		if e != nil && e.YearKey == yearKey && drop[e.SourceEncodedID] {
			removed++
			continue
		}
		keep = append(keep, line)
	}
	if removed == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return 0, eris.Wrap(err, "ledger: create temp file")
	}
	w := bufio.NewWriter(tmp)
	for _, line := range keep {
		w.Write(line)     //nolint:errcheck
		w.WriteByte('\n') //nolint:errcheck
	}
	if err := w.Flush(); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return 0, eris.Wrap(err, "ledger: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return 0, eris.Wrap(err, "ledger: close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return 0, eris.Wrapf(err, "ledger: replace %s", f.path)
	}
	return removed, nil
}

// readAll returns every non-blank line with its decoded entry (nil when the
// line is malformed). Malformed lines are kept verbatim by RemoveKeys.
func (f *File) readAll() ([]*Entry, [][]byte, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ledger: open %s", f.path)
	}
	defer file.Close() //nolint:errcheck

	var (
		entries []*Entry
		raw     [][]byte
	)
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		cp := append([]byte(nil), line...)
		var e Entry
		if err := json.Unmarshal(cp, &e); err != nil || e.SourceEncodedID == "" {
			zap.L().Warn("ledger: skipping malformed line",
				zap.String("path", f.path),
				zap.Int("line", lineNo),
			)
			entries = append(entries, nil)
		} else {
			entries = append(entries, &e)
		}
		raw = append(raw, cp)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, eris.Wrapf(err, "ledger: read %s", f.path)
	}
	if raw == nil {
		raw = [][]byte{}
	}
	return entries, raw, nil
}
