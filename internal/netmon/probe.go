package netmon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"savesync/internal/clock"
)

const (
	probeBackoffBase = 500 * time.Millisecond
	probeBackoffMax  = 5 * time.Second
	probeUserAgent   = "savesync/0.1"
)

// prober issues a single connectivity check: one HTTP request per attempt
// with a hard timeout, retried with exponential backoff within the cycle.
type prober struct {
	url      string
	timeout  time.Duration
	attempts int
	client   *http.Client
	clk      clock.Clock
}

// probeResult carries the measured round-trip time of the last successful
// attempt, or the terminal error of the cycle.
type probeResult struct {
	ok  bool
	rtt time.Duration
	err error
}

func newProber(url string, timeout time.Duration, attempts int, client *http.Client, clk clock.Clock) *prober {
	if attempts <= 0 {
		attempts = 1
	}
	if client == nil {
		client = &http.Client{}
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &prober{url: url, timeout: timeout, attempts: attempts, client: client, clk: clk}
}

// run executes one probe cycle. The per-attempt timeout is hard; backoff
// delays apply only between attempts of the same cycle.
func (p *prober) run(ctx context.Context) probeResult {
	delay := probeBackoffBase
	var lastErr error

	for attempt := 1; attempt <= p.attempts; attempt++ {
		rtt, err := p.attempt(ctx)
		if err == nil {
			return probeResult{ok: true, rtt: rtt}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return probeResult{err: ctx.Err()}
		case <-p.clk.After(delay):
		}
		if next := delay * 2; next <= probeBackoffMax {
			delay = next
		} else {
			delay = probeBackoffMax
		}
	}
	return probeResult{err: lastErr}
}

func (p *prober) attempt(ctx context.Context) (time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodHead, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", probeUserAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return 0, fmt.Errorf("probe %s: http %d", p.url, resp.StatusCode)
	}
	return time.Since(start), nil
}
