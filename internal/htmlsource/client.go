package htmlsource

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/fetcher"
	"github.com/sells-group/salary-cli/internal/model"
	"github.com/sells-group/salary-cli/internal/normalize"
)

// Client addresses the salary site through a Fetcher. Wrap the fetcher with
// fetcher.Paced to space requests out.
type Client struct {
	fetcher fetcher.Fetcher
	cfg     config.HTMLSourceConfig
	rules   *normalize.RuleSet
	log     *zap.Logger
}

// NewClient creates a Client. rules may be nil.
func NewClient(f fetcher.Fetcher, cfg config.HTMLSourceConfig, rules *normalize.RuleSet) *Client {
	if rules == nil {
		rules = normalize.DefaultRules()
	}
	return &Client{
		fetcher: f,
		cfg:     cfg,
		rules:   rules,
		log:     zap.L().With(zap.String("component", "htmlsource")),
	}
}

// RosterURL is the roster page for yearKey.
func (c *Client) RosterURL(yearKey int) string {
	q := url.Values{}
	q.Set("Year", strconv.Itoa(yearKey))
	return c.endpoint(c.cfg.RosterPath, q)
}

// DepartmentURL is one result page for a department.
func (c *Client) DepartmentURL(id string, yearKey, page int) string {
	q := url.Values{}
	q.Set("Dept", id)
	q.Set("Year", strconv.Itoa(yearKey))
	q.Set("Page", strconv.Itoa(page))
	return c.endpoint(c.cfg.DepartmentPath, q)
}

func (c *Client) endpoint(p string, q url.Values) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return base + p + "?" + q.Encode()
}

// Roster fetches and parses the department list for yearKey.
func (c *Client) Roster(ctx context.Context, yearKey int) ([]model.DepartmentEntry, error) {
	html, err := c.fetcher.FetchText(ctx, c.RosterURL(yearKey))
	if err != nil {
		return nil, err
	}
	entries, err := ParseRoster(html, c.cfg.DepartmentPath, c.rules)
	if err != nil {
		return nil, err
	}
	c.log.Info("roster parsed", zap.Int("year_key", yearKey), zap.Int("departments", len(entries)))
	return entries, nil
}

// Department fetches every result page for dept, in order. A failure on any
// page fails the department.
func (c *Client) Department(ctx context.Context, dept model.DepartmentEntry, yearKey int) ([]model.SalaryRecord, error) {
	first, err := c.page(ctx, dept, yearKey, 1)
	if err != nil {
		return nil, err
	}
	records := first.Records
	for p := 2; p <= first.TotalPages; p++ {
		next, err := c.page(ctx, dept, yearKey, p)
		if err != nil {
			return nil, err
		}
		records = append(records, next.Records...)
	}

	c.log.Debug("department scraped",
		zap.String("department", dept.DisplayName),
		zap.Int("pages", first.TotalPages),
		zap.Int("rows", len(records)),
	)
	return records, nil
}

func (c *Client) page(ctx context.Context, dept model.DepartmentEntry, yearKey, n int) (Page, error) {
	html, err := c.fetcher.FetchText(ctx, c.DepartmentURL(dept.SourceEncodedID, yearKey, n))
	if err != nil {
		return Page{}, err
	}
	return ParsePage(html)
}
