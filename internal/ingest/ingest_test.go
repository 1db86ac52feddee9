package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/fetcher"
	"github.com/sells-group/salary-cli/internal/ledger"
	"github.com/sells-group/salary-cli/internal/loader"
	"github.com/sells-group/salary-cli/internal/model"
	"github.com/sells-group/salary-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// --- fakes ---

type fakeSource struct {
	roster    []model.DepartmentEntry
	rosterErr error
	failing   map[string]error
	rosterHit int
	fetched   []string
}

func (f *fakeSource) Roster(_ context.Context, _ int) ([]model.DepartmentEntry, error) {
	f.rosterHit++
	return f.roster, f.rosterErr
}

func (f *fakeSource) Department(_ context.Context, d model.DepartmentEntry, _ int) ([]model.SalaryRecord, error) {
	f.fetched = append(f.fetched, d.SourceEncodedID)
	if err := f.failing[d.SourceEncodedID]; err != nil {
		return nil, err
	}
	return []model.SalaryRecord{{LastName: "Person" + d.SourceEncodedID, Title: "Analyst", Department: d.DisplayName}}, nil
}

type fakeLoader struct {
	calls  [][]model.SalaryRecord
	failOn int // 1-based call number that fails, 0 = never
}

func (f *fakeLoader) Load(_ context.Context, records []model.SalaryRecord) (loader.Result, error) {
	f.calls = append(f.calls, records)
	if len(f.calls) == f.failOn {
		return loader.Result{}, &loader.LoadError{Batch: 0, Rows: len(records), Err: errors.New("db down")}
	}
	return loader.Result{Inserted: len(records)}, nil
}

type fakeStore struct {
	deleted []int
}

func (f *fakeStore) DeleteYear(_ context.Context, yearKey int) (int64, error) {
	f.deleted = append(f.deleted, yearKey)
	return 7, nil
}

func (f *fakeStore) ListTitleDepartments(context.Context, int) ([]store.TitleDepartment, error) {
	return nil, nil
}

func (f *fakeStore) UpdateTitleDepartment(context.Context, int64, string, string) (bool, error) {
	return false, nil
}

func depts(ids ...string) []model.DepartmentEntry {
	out := make([]model.DepartmentEntry, len(ids))
	for i, id := range ids {
		out[i] = model.DepartmentEntry{DisplayName: "Dept " + id, SourceEncodedID: id}
	}
	return out
}

type harness struct {
	ctl    *Controller
	src    *fakeSource
	load   *fakeLoader
	store  *fakeStore
	ledger *ledger.Memory
}

func newHarness(roster []model.DepartmentEntry, seed ...ledger.Entry) *harness {
	h := &harness{
		src:    &fakeSource{roster: roster, failing: map[string]error{}},
		load:   &fakeLoader{},
		store:  &fakeStore{},
		ledger: ledger.NewMemory(seed...),
	}
	h.ctl = NewController(Deps{
		Source:           h.src,
		Loader:           h.load,
		Store:            h.store,
		Ledger:           h.ledger,
		LatestFiscalYear: 2025,
	})
	h.ctl.newID = func() string { return "run-test" }
	h.ctl.now = func() time.Time { return time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC) }
	return h
}

// --- working set ---

func TestSelectWorkingSet_SkipLimit(t *testing.T) {
	roster := depts("A", "B", "C", "D", "E")

	got, ignored := SelectWorkingSet(roster, Options{Skip: 1, Limit: 2}, nil)
	assert.Equal(t, depts("B", "C"), got)
	assert.Empty(t, ignored)

	got, _ = SelectWorkingSet(roster, Options{Skip: 10}, nil)
	assert.Empty(t, got)

	got, _ = SelectWorkingSet(roster, Options{}, nil)
	assert.Equal(t, roster, got)
}

func TestSelectWorkingSet_Indices(t *testing.T) {
	roster := depts("A", "B", "C")
	got, ignored := SelectWorkingSet(roster, Options{Indices: []int{2, 0, 9, -1}, Skip: 1, Limit: 1}, nil)
	assert.Equal(t, depts("C", "A"), got)
	assert.Equal(t, []int{9, -1}, ignored)
}

func TestSelectWorkingSet_RetryScopedToYear(t *testing.T) {
	failed := []ledger.Entry{
		{YearKey: 2, SourceEncodedID: "X", DisplayName: "Dept X"},
		{YearKey: 0, SourceEncodedID: "Y", DisplayName: "Dept Y"},
		{YearKey: 2, SourceEncodedID: "X", DisplayName: "Dept X"},
	}
	for yk := 0; yk <= 3; yk++ {
		got, _ := SelectWorkingSet(depts("A"), Options{YearKey: yk, RetryFailed: true}, failed)
		var ids []string
		for _, d := range got {
			ids = append(ids, d.SourceEncodedID)
		}
		assert.Equal(t, yk == 2, contains(ids, "X"), "year key %d", yk)
		assert.NotContains(t, ids, "A")
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func TestOptions_Validate(t *testing.T) {
	var cfgErr *config.ConfigError

	err := Options{Clear: true, RetryFailed: true}.Validate()
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "clear", cfgErr.Field)

	err = Options{RetryFailed: true, Indices: []int{1}}.Validate()
	require.True(t, errors.As(err, &cfgErr))

	assert.Error(t, Options{YearKey: -1}.Validate())
	assert.Error(t, Options{Limit: -1}.Validate())
	assert.Error(t, Options{Skip: -1}.Validate())
	assert.NoError(t, Options{YearKey: 3, Limit: 2, Clear: true}.Validate())
}

// --- roster runs ---

func TestRunRoster_SoftFailureContinues(t *testing.T) {
	h := newHarness(depts("A", "B", "C"))
	h.src.failing["B"] = &fetcher.FetchError{URL: "u", Attempts: 3, StatusCode: 503}

	report, err := h.ctl.RunRoster(context.Background(), Options{YearKey: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, h.src.fetched)
	assert.Equal(t, 3, report.Units)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"B"}, report.FailedIDs())
	assert.Equal(t, 2, report.Load.Inserted)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "2024-25", report.FiscalYear)

	entries := h.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].YearKey)
	assert.Equal(t, "B", entries[0].SourceEncodedID)
	assert.Equal(t, "Dept B", entries[0].DisplayName)
	assert.Equal(t, "run-test", entries[0].RunID)
	assert.Contains(t, entries[0].ErrorMessage, "http 503")
}

func TestRunRoster_StampsRecords(t *testing.T) {
	h := newHarness(depts("A"))
	_, err := h.ctl.RunRoster(context.Background(), Options{YearKey: 2})
	require.NoError(t, err)

	require.Len(t, h.load.calls, 1)
	rec := h.load.calls[0][0]
	assert.Equal(t, 2, rec.YearKey)
	assert.Equal(t, "2023-24", rec.FiscalYear)
	assert.Equal(t, "Ann Arbor", rec.Campus)
	assert.Equal(t, 1, rec.CampusID)
}

func TestRunRoster_RosterFailureIsFatal(t *testing.T) {
	h := newHarness(nil)
	h.src.rosterErr = &fetcher.FetchError{URL: "roster", Attempts: 3}

	report, err := h.ctl.RunRoster(context.Background(), Options{})
	require.Error(t, err)
	var fe *fetcher.FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Empty(t, h.src.fetched)
	assert.Equal(t, StateListing, report.State)
}

func TestRunRoster_LoadErrorIsFatal(t *testing.T) {
	h := newHarness(depts("A", "B", "C"))
	h.load.failOn = 2

	report, err := h.ctl.RunRoster(context.Background(), Options{})
	require.Error(t, err)
	var le *loader.LoadError
	assert.True(t, errors.As(err, &le))
	assert.Equal(t, []string{"A", "B"}, h.src.fetched)
	assert.Equal(t, 1, report.Succeeded)
	assert.Empty(t, h.ledger.Entries())
}

func TestRunRoster_RetryScopesAndRemovesEntries(t *testing.T) {
	h := newHarness(depts("A", "B"),
		ledger.Entry{YearKey: 2, SourceEncodedID: "X", DisplayName: "Dept X", ErrorMessage: "timeout"},
		ledger.Entry{YearKey: 2, SourceEncodedID: "Z", DisplayName: "Dept Z", ErrorMessage: "timeout"},
		ledger.Entry{YearKey: 0, SourceEncodedID: "Y", DisplayName: "Dept Y", ErrorMessage: "timeout"},
	)
	h.src.failing["Z"] = errors.New("still broken")

	report, err := h.ctl.RunRoster(context.Background(), Options{YearKey: 2, RetryFailed: true})
	require.NoError(t, err)

	assert.Zero(t, h.src.rosterHit)
	assert.Equal(t, []string{"X", "Z"}, h.src.fetched)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.LedgerCleared)

	left, err := h.ledger.ReadFiltered(context.Background(), ledger.AllYears)
	require.NoError(t, err)
	var keys []ledger.Key
	for _, e := range left {
		keys = append(keys, e.Key())
	}
	assert.ElementsMatch(t, []ledger.Key{{YearKey: 2, SourceEncodedID: "Z"}, {YearKey: 0, SourceEncodedID: "Y"}}, keys)
}

func TestRunRoster_RetryOtherYearIgnoresEntry(t *testing.T) {
	h := newHarness(nil, ledger.Entry{YearKey: 2, SourceEncodedID: "X"})

	report, err := h.ctl.RunRoster(context.Background(), Options{YearKey: 1, RetryFailed: true})
	require.NoError(t, err)
	assert.Zero(t, report.Units)
	assert.Empty(t, h.src.fetched)
	assert.Len(t, h.ledger.Entries(), 1)
}

func TestRunRoster_FullRunKeepsLedgerEntries(t *testing.T) {
	h := newHarness(depts("A", "B"), ledger.Entry{YearKey: 0, SourceEncodedID: "B"})

	report, err := h.ctl.RunRoster(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.LedgerCleared)
	require.Len(t, h.ledger.Entries(), 1)
	assert.Equal(t, "B", h.ledger.Entries()[0].SourceEncodedID)
}

func TestRunRoster_DryRunWritesNothing(t *testing.T) {
	h := newHarness(depts("A", "B"), ledger.Entry{YearKey: 0, SourceEncodedID: "A"})
	h.src.failing["B"] = errors.New("boom")

	report, err := h.ctl.RunRoster(context.Background(), Options{DryRun: true, Clear: true})
	require.NoError(t, err)

	assert.Empty(t, h.load.calls)
	assert.Empty(t, h.store.deleted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.LedgerCleared)
	assert.Len(t, h.ledger.Entries(), 1)
}

func TestRunRoster_ClearBeforeImport(t *testing.T) {
	h := newHarness(depts("A"))

	report, err := h.ctl.RunRoster(context.Background(), Options{YearKey: 4, Clear: true})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, h.store.deleted)
	assert.Equal(t, int64(7), report.RowsCleared)
}

func TestRunRoster_IgnoredIndices(t *testing.T) {
	h := newHarness(depts("A", "B"))

	report, err := h.ctl.RunRoster(context.Background(), Options{Indices: []int{1, 5}})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, h.src.fetched)
	assert.Equal(t, []int{5}, report.IgnoredIndices)
}

func TestRunRoster_Cancelled(t *testing.T) {
	h := newHarness(depts("A", "B"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.ctl.RunRoster(ctx, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.src.fetched)
}

func TestRunRoster_InvalidOptions(t *testing.T) {
	h := newHarness(depts("A"))
	report, err := h.ctl.RunRoster(context.Background(), Options{Clear: true, RetryFailed: true})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Zero(t, h.src.rosterHit)
}

func TestRunRoster_Transitions(t *testing.T) {
	h := newHarness(depts("A", "B"))
	h.src.failing["B"] = errors.New("boom")

	type step struct {
		unit  string
		state State
	}
	var steps []step
	h.ctl.OnTransition = func(unit string, s State) { steps = append(steps, step{unit, s}) }

	_, err := h.ctl.RunRoster(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []step{
		{"", StateListing},
		{"", StateIterating},
		{"Dept A", StateFetching},
		{"Dept A", StateParsing},
		{"Dept A", StateLoading},
		{"Dept B", StateFetching},
		{"Dept B", StateFailed},
		{"", StateDone},
	}, steps)
}

// --- document runs ---

type fakeDownloader struct {
	content string
	err     error
	urls    []string
}

func (f *fakeDownloader) FetchText(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeDownloader) DownloadToFile(_ context.Context, url, path string) (int64, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.content)), os.WriteFile(path, []byte(f.content), 0o644)
}

type fakeExtractor struct {
	text  string
	paths []string
}

func (f *fakeExtractor) ExtractText(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return f.text, nil
}

const compactReport = `UM_ANN-ARBOR Smith, Aaron Professor LSA History 100,000.00 9-Month1.00 5,000.00
UM_FLINT Doe, Jane Analyst 62,232.00 12-Month1.00 0.00
UM_DEARBORN broken chunk
`

func TestRunDocument_TextFile(t *testing.T) {
	h := newHarness(nil)
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte(compactReport), 0o644))

	report, err := h.ctl.RunDocument(context.Background(), DocumentOptions{YearKey: 1, File: path})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Units)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.ParseFailures)
	assert.Equal(t, 2, report.Load.Inserted)
	assert.Equal(t, StateDone, report.State)
	assert.Empty(t, h.ledger.Entries())

	require.Len(t, h.load.calls, 1)
	recs := h.load.calls[0]
	assert.Equal(t, "2024-25", recs[0].FiscalYear)
	assert.Equal(t, "Ann Arbor", recs[0].Campus)
	assert.Equal(t, "Flint", recs[1].Campus)
	assert.Equal(t, 3, recs[1].CampusID)
}

func TestRunDocument_DownloadsAndExtracts(t *testing.T) {
	h := newHarness(nil)
	dl := &fakeDownloader{content: "%PDF-1.4"}
	ex := &fakeExtractor{text: compactReport}
	h.ctl.Fetcher = dl
	h.ctl.Extractor = ex
	h.ctl.TempDir = t.TempDir()

	report, err := h.ctl.RunDocument(context.Background(), DocumentOptions{URL: "https://example.test/report.pdf", Clear: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.test/report.pdf"}, dl.urls)
	require.Len(t, ex.paths, 1)
	assert.Equal(t, ".pdf", filepath.Ext(ex.paths[0]))
	_, statErr := os.Stat(ex.paths[0])
	assert.True(t, os.IsNotExist(statErr), "downloaded file is removed")
	assert.Equal(t, []int{0}, h.store.deleted)
	assert.Equal(t, 2, report.Load.Inserted)
}

func TestRunDocument_DownloadFailureIsFatal(t *testing.T) {
	h := newHarness(nil)
	h.ctl.Fetcher = &fakeDownloader{err: &fetcher.FetchError{URL: "u", Attempts: 3, StatusCode: 404}}
	h.ctl.TempDir = t.TempDir()

	_, err := h.ctl.RunDocument(context.Background(), DocumentOptions{URL: "u"})
	require.Error(t, err)
	var fe *fetcher.FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Empty(t, h.load.calls)
}

func TestRunDocument_DryRun(t *testing.T) {
	h := newHarness(nil)
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte(compactReport), 0o644))

	report, err := h.ctl.RunDocument(context.Background(), DocumentOptions{File: path, DryRun: true, Clear: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Empty(t, h.load.calls)
	assert.Empty(t, h.store.deleted)
}

func TestDocumentOptions_Validate(t *testing.T) {
	var cfgErr *config.ConfigError
	require.True(t, errors.As(DocumentOptions{}.Validate(), &cfgErr))
	assert.Equal(t, "source", cfgErr.Field)
	require.True(t, errors.As(DocumentOptions{File: "a", URL: "b"}.Validate(), &cfgErr))
	assert.NoError(t, DocumentOptions{File: "a"}.Validate())
}

// --- repair ---

func TestRepair_AgainstSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "repair.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	_, err = st.InsertBatch(ctx, []model.SalaryRecord{
		{LastName: "Smith", FirstName: "Aaron", Department: "Assistant Professor", FiscalYear: "2025-26"},
		{LastName: "Doe", FirstName: "Jane", Title: "", Department: "Head Coach", FiscalYear: "2025-26"},
		{LastName: "Doe", FirstName: "Jane", Title: "Head Coach", Department: "", FiscalYear: "2025-26"},
		{LastName: "Roe", FirstName: "Rick", Title: "Analyst", Department: "Office of Research", FiscalYear: "2025-26"},
	})
	require.NoError(t, err)

	ctl := NewController(Deps{Store: st})

	dry, err := ctl.Repair(ctx, RepairOptions{YearKey: store.AllYears, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 4, dry.Scanned)
	assert.Equal(t, 2, dry.Candidates)
	assert.Zero(t, dry.Updated)
	require.Len(t, dry.Changes, 2)
	assert.Equal(t, "Assistant Professor", dry.Changes[0].NewTitle)

	res, err := ctl.Repair(ctx, RepairOptions{YearKey: store.AllYears})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Collisions)
	assert.True(t, res.Changes[1].Collided)

	rows, err := st.ListTitleDepartments(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Assistant Professor", rows[0].Title)
	assert.Empty(t, rows[0].Department)
	assert.Equal(t, "Office of Research", rows[3].Department)
}
