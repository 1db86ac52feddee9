package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// PacedFetcher leaves a fixed politeness gap between the end of one request
// and the start of the next. The first request goes out immediately.
type PacedFetcher struct {
	next  Fetcher
	delay time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

// Paced wraps f so that each call starts at least delay after the previous
// call returned. A zero delay disables pacing.
func Paced(f Fetcher, delay time.Duration) *PacedFetcher {
	return &PacedFetcher{
		next:    f,
		delay:   delay,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

// FetchText waits for the pacer, then delegates.
func (p *PacedFetcher) FetchText(ctx context.Context, url string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	defer p.finished()
	return p.next.FetchText(ctx, url)
}

// DownloadToFile waits for the pacer, then delegates.
func (p *PacedFetcher) DownloadToFile(ctx context.Context, url string, path string) (int64, error) {
	if err := p.wait(ctx); err != nil {
		return 0, err
	}
	defer p.finished()
	return p.next.DownloadToFile(ctx, url, path)
}

func (p *PacedFetcher) wait(ctx context.Context) error {
	p.mu.Lock()
	lim := p.limiter
	p.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return eris.Wrap(err, "fetcher: politeness wait")
	}
	return nil
}

// finished restarts the delay from now: a fresh limiter with its only token
// spent at the end of the request has the next token ready at now+delay.
func (p *PacedFetcher) finished() {
	if p.delay <= 0 {
		return
	}
	lim := rate.NewLimiter(rate.Every(p.delay), 1)
	lim.AllowN(time.Now(), 1)

	p.mu.Lock()
	p.limiter = lim
	p.mu.Unlock()
}
