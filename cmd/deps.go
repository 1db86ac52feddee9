package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salary-cli/internal/config"
	"github.com/sells-group/salary-cli/internal/fetcher"
	"github.com/sells-group/salary-cli/internal/ledger"
	"github.com/sells-group/salary-cli/internal/normalize"
	"github.com/sells-group/salary-cli/internal/store"
)

// openStore validates the store settings, connects and applies pending migrations.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newFetcher builds the paced HTTP fetcher. A positive delay overrides fetch.delay_ms.
func newFetcher(delay time.Duration) fetcher.Fetcher {
	if delay <= 0 {
		delay = cfg.Fetch.Delay()
	}
	return fetcher.Paced(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout(),
		Retries:   cfg.Fetch.Retries,
		Backoff:   cfg.Fetch.Backoff(),
	}), delay)
}

func loadRules() (*normalize.RuleSet, error) {
	rs, err := normalize.LoadRules(cfg.Normalize.RulesFile)
	if err != nil {
		return nil, config.NewConfigError("normalize.rules_file", err.Error())
	}
	return rs, nil
}

func openLedger() ledger.Store {
	return ledger.NewFile(cfg.Ingest.LedgerPath)
}
