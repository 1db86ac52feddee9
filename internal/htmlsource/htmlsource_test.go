package htmlsource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/fetcher"
	"github.com/sells-group/salary-cli/internal/model"
)

func testHTMLConfig(base string) config.HTMLSourceConfig {
	return config.HTMLSourceConfig{
		BaseURL:        base,
		RosterPath:     "/deptsearch.php",
		DepartmentPath: "/deptsearch.php",
		DefaultCampus:  "UM_ANN-ARBOR",
	}
}

func salaryPage(page, total int, rows ...[5]string) string {
	html := `<html><body><table class="nav"><tr><td>Search</td></tr></table>`
	if total > 0 {
		html += fmt.Sprintf(`<p>Page <b>%d</b> of <b>%d</b></p>`, page, total)
	}
	html += `<table><tr><th>Name</th><th>Title</th><th>Dept</th><th>FTR</th><th>GF</th></tr>`
	for _, r := range rows {
		html += fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`, r[0], r[1], r[2], r[3], r[4])
	}
	return html + `</table></body></html>`
}

func TestParseRow_Example(t *testing.T) {
	rec, ok := ParseRow([]string{"Smith, Aaron", "Professor", "LSA History", "$100,000.00", "$5,000.00"})
	require.True(t, ok)
	assert.Equal(t, model.SalaryRecord{
		LastName:   "Smith",
		FirstName:  "Aaron",
		Title:      "Professor",
		Department: "LSA History",
		FTR:        100000.00,
		GF:         5000.00,
	}, rec)
}

func TestParseRow_Rejects(t *testing.T) {
	_, ok := ParseRow([]string{"Smith, Aaron", "Professor", "LSA History", "$1.00"})
	assert.False(t, ok)

	_, ok = ParseRow([]string{", Aaron", "Professor", "LSA History", "$1.00", "$0.00"})
	assert.False(t, ok)
}

func TestSplitName(t *testing.T) {
	last, first := SplitName("Smith, Aaron B")
	assert.Equal(t, "Smith", last)
	assert.Equal(t, "Aaron B", first)

	last, first = SplitName("Cher")
	assert.Equal(t, "Cher", last)
	assert.Empty(t, first)

	last, first = SplitName("Van Dyke, Jr., Dick")
	assert.Equal(t, "Van Dyke", last)
	assert.Equal(t, "Jr., Dick", first)
}

func TestParseCurrency(t *testing.T) {
	assert.InDelta(t, 100000.0, ParseCurrency("$100,000.00"), 0.001)
	assert.InDelta(t, 12.5, ParseCurrency(" 12.50 "), 0.001)
	assert.InDelta(t, 0.0, ParseCurrency("n/a"), 0.001)
	assert.InDelta(t, 0.0, ParseCurrency(""), 0.001)
	assert.InDelta(t, 0.0, ParseCurrency("-$5.00"), 0.001)
	assert.InDelta(t, 0.5, ParseCurrency("$.50"), 0.001)
	assert.InDelta(t, 7.0, ParseCurrency("7."), 0.001)
}

func TestParseCurrency_RejectsNonDecimalForms(t *testing.T) {
	for _, in := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity", "1e3", "$1E6", "0x1p4", "+5", "1.2.3", "1e400"} {
		t.Run(in, func(t *testing.T) {
			v := ParseCurrency(in)
			assert.False(t, math.IsNaN(v))
			assert.False(t, math.IsInf(v, 0))
			assert.Zero(t, v)
		})
	}
}

func TestParseCurrency_HugeAmountOverflows(t *testing.T) {
	assert.Zero(t, ParseCurrency(strings.Repeat("9", 400)))
}

func TestParsePageCount(t *testing.T) {
	assert.Equal(t, 5, ParsePageCount("Results: Page 1 of 5"))
	assert.Equal(t, 12, ParsePageCount("Page 3   of 12"))
	assert.Equal(t, 1, ParsePageCount("no marker"))
	assert.Equal(t, 1, ParsePageCount("Page 1 of 0"))
}

func TestParsePage(t *testing.T) {
	html := salaryPage(1, 3,
		[5]string{"Smith, Aaron", "Professor", "LSA History", "$100,000.00", "$5,000.00"},
		[5]string{"", "Ghost", "Nowhere", "$1.00", "$1.00"},
		[5]string{"Doe, Jane", "Analyst", "ITS", "$62,232.00", "$0.00"},
	)
	page, err := ParsePage(html)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "Smith", page.Records[0].LastName)
	assert.Equal(t, "Doe", page.Records[1].LastName)
	assert.InDelta(t, 62232.0, page.Records[1].FTR, 0.001)
}

func TestParsePage_NoTable(t *testing.T) {
	page, err := ParsePage(`<html><body><table><tr><td>Name</td><td>Pay</td></tr><tr><td>a</td><td>b</td></tr></table></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Records)
}

func TestParseRoster(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("Law School"))
	html := `<html><body>
<a href="/deptsearch.php?Dept=TFNBIEhpc3Rvcnk%3D&Year=0">LSA History</a>
<a href="deptsearch.php?Dept=UHJvZmVzc29y&Year=0">Professor</a>
<a href="/deptsearch.php?Dept=TFNBIEhpc3Rvcnk%3D&Year=0&Page=2">LSA History (dup)</a>
<a href="/deptsearch.php?Year=0">No dept</a>
<a href="/other.php?Dept=abc">Wrong endpoint</a>
<a href="https://www.umsalary.info/deptsearch.php?Dept=` + encoded + `"></a>
<a href="/deptsearch.php?Dept=SGVhZCBDb2FjaA%3D%3D">Head Coach</a>
<a href="/deptsearch.php?Dept=QXRobGV0aWNzIERlcGFydG1lbnQ%3D">Athletics Department</a>
</body></html>`

	entries, err := ParseRoster(html, "/deptsearch.php", nil)
	require.NoError(t, err)
	assert.Equal(t, []model.DepartmentEntry{
		{DisplayName: "LSA History", SourceEncodedID: "TFNBIEhpc3Rvcnk="},
		{DisplayName: "Law School", SourceEncodedID: encoded},
		{DisplayName: "Athletics Department", SourceEncodedID: "QXRobGV0aWNzIERlcGFydG1lbnQ="},
	}, entries)
}

func TestDecodeID(t *testing.T) {
	assert.Equal(t, "LSA History", decodeID("TFNBIEhpc3Rvcnk="))
	assert.Equal(t, "12345", decodeID("12345"))
	assert.Equal(t, "%%%", decodeID("%%%"))
}

func TestClient_URLs(t *testing.T) {
	c := NewClient(nil, testHTMLConfig("https://example.test/"), nil)
	assert.Equal(t, "https://example.test/deptsearch.php?Year=2", c.RosterURL(2))
	assert.Equal(t, "https://example.test/deptsearch.php?Dept=QUJD&Page=3&Year=1", c.DepartmentURL("QUJD", 1, 3))
}

func TestClient_DepartmentPagination(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "QUJD", r.URL.Query().Get("Dept"))
		assert.Equal(t, "0", r.URL.Query().Get("Year"))
		page := r.URL.Query().Get("Page")
		row := [5]string{"Person" + page + ", A", "Analyst", "ITS", "$1,000.00", "$0.00"}
		if page == "1" {
			fmt.Fprint(w, salaryPage(1, 5, row))
			return
		}
		fmt.Fprint(w, salaryPage(0, 0, row))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Retries: 0})
	c := NewClient(f, testHTMLConfig(srv.URL), nil)

	records, err := c.Department(context.Background(), model.DepartmentEntry{DisplayName: "ABC", SourceEncodedID: "QUJD"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(5), hits.Load())
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("Person%d", i+1), rec.LastName)
	}
}

func TestClient_DepartmentPageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, salaryPage(1, 2, [5]string{"A, B", "Analyst", "ITS", "$1.00", "$0.00"}))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Retries: 1, Backoff: time.Millisecond})
	c := NewClient(f, testHTMLConfig(srv.URL), nil)

	_, err := c.Department(context.Background(), model.DepartmentEntry{SourceEncodedID: "X"}, 0)
	require.Error(t, err)
	var fe *fetcher.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, 2, fe.Attempts)
}

func TestClient_Roster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deptsearch.php", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("Year"))
		fmt.Fprint(w, `<a href="/deptsearch.php?Dept=QUJD">Office of Budget</a><a href="/deptsearch.php?Dept=WFla">Lecturer</a>`)
	}))
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), testHTMLConfig(srv.URL), nil)
	entries, err := c.Roster(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []model.DepartmentEntry{{DisplayName: "Office of Budget", SourceEncodedID: "QUJD"}}, entries)
}
