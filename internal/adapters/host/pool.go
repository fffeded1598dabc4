package host

import (
	"context"
	"time"

	perr "workrecap/internal/platform/errors"
)

// Pool is a fixed-size set of Host Clients shared by parallel workers. Every
// Client in the pool shares one search gate so the search-endpoint throttle
// (spec: ≥ search_interval seconds between any two search calls from any
// Client in the pool) holds pool-wide, not just per-Client.
type Pool struct {
	clients chan *Client
}

// NewPool builds a Pool of n Clients constructed from opts. n must be >= 1.
func NewPool(n int, opts Options) *Pool {
	if n < 1 {
		n = 1
	}
	gate := newSearchGate(opts.SearchInterval)
	ch := make(chan *Client, n)
	for i := 0; i < n; i++ {
		ch <- New(opts, gate)
	}
	return &Pool{clients: ch}
}

// Acquire blocks until a Client is available or ctx is done, whichever comes
// first. The returned release func must be called exactly once to return the
// Client to the pool.
func (p *Pool) Acquire(ctx context.Context) (*Client, func(), error) {
	select {
	case c := <-p.clients:
		return c, func() { p.clients <- c }, nil
	case <-ctx.Done():
		return nil, func() {}, perr.FetchWrapf(ctx.Err(), perr.ErrorCodeUnavailable, "acquire host client from pool")
	}
}

// AcquireTimeout is a convenience wrapper around Acquire with a bounded wait.
func (p *Pool) AcquireTimeout(ctx context.Context, timeout time.Duration) (*Client, func(), error) {
	if timeout <= 0 {
		return p.Acquire(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c, release, err := p.Acquire(tctx)
	if err != nil {
		return nil, func() {}, perr.FetchWrapf(err, perr.ErrorCodeUnavailable, "host client pool exhausted after %s", timeout)
	}
	return c, release, nil
}

// Size reports the pool's fixed capacity.
func (p *Pool) Size() int { return cap(p.clients) }
