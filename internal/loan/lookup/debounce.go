// internal/loan/lookup/debounce.go
package lookup

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a caller whose query was replaced by a newer
// one before its result was delivered.
var ErrSuperseded = errors.New("lookup superseded by a newer query")

// QueryFunc performs the actual lookup.
type QueryFunc[Q, R any] func(ctx context.Context, q Q) (R, error)

// Debouncer runs the latest query after a quiet period. Starting a new call
// cancels the pending or in-flight previous one, and a result that arrives
// after a newer call started is discarded.
type Debouncer[Q, R any] struct {
	delay time.Duration
	query QueryFunc[Q, R]

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewDebouncer[Q, R any](delay time.Duration, query QueryFunc[Q, R]) *Debouncer[Q, R] {
	return &Debouncer[Q, R]{delay: delay, query: query}
}

// Do waits out the debounce delay and runs the query, unless a newer call
// arrives first.
func (d *Debouncer[Q, R]) Do(ctx context.Context, q Q) (R, error) {
	var zero R

	callCtx, seq := d.begin(ctx)
	defer d.finish(seq)

	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		select {
		case <-timer.C:
		case <-callCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, ErrSuperseded
		}
	}

	res, err := d.query(callCtx, q)
	if !d.current(seq) {
		return zero, ErrSuperseded
	}
	if err != nil && ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return res, err
}

// Cancel supersedes whatever call is pending.
func (d *Debouncer[Q, R]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer[Q, R]) begin(ctx context.Context) (context.Context, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.seq++
	callCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	return callCtx, d.seq
}

func (d *Debouncer[Q, R]) finish(seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq == seq && d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer[Q, R]) current(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq == seq
}

// Result is one delivered answer of a Watch stream.
type Result[Q, R any] struct {
	Query Q
	Value R
	Err   error
}

// Watch turns a stream of queries into a stream of latest-wins results.
// Superseded queries produce nothing. The output closes after in closes (or
// ctx ends) and the last query has settled.
func (d *Debouncer[Q, R]) Watch(ctx context.Context, in <-chan Q) <-chan Result[Q, R] {
	out := make(chan Result[Q, R])

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case q, ok := <-in:
				if !ok {
					return
				}
				wg.Add(1)
				go func(q Q) {
					defer wg.Done()
					v, err := d.Do(ctx, q)
					if errors.Is(err, ErrSuperseded) || (err != nil && ctx.Err() != nil) {
						return
					}
					select {
					case out <- Result[Q, R]{Query: q, Value: v, Err: err}:
					case <-ctx.Done():
					}
				}(q)
			}
		}
	}()

	return out
}
