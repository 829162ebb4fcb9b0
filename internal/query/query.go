// Package query holds the client-side state for browsing F1 data: one Query
// per resource, a debouncer for user input and the Session that ties the
// season, race and driver selections together.
package query

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is a point-in-time view of a Query.
type State[K comparable, T any] struct {
	Key    K
	Status Status
	Data   T
	Err    error
}

type settled[T any] struct {
	v  T
	at time.Time
}

// QueryOptions configures a Query. Enabled gates fetching: a disabled key
// never reaches the fetcher. StaleAfter returns how long a settled result may
// be reused; zero means forever.
type QueryOptions[K comparable] struct {
	Enabled    func(K) bool
	StaleAfter func(K) time.Duration
	CacheSize  int
	OnChange   func()
	Now        func() time.Time
}

// Query runs fetch for the current key and keeps its state. Results for keys
// that were superseded while in flight are dropped.
type Query[K comparable, T any] struct {
	name  string
	fetch func(context.Context, K) (T, error)
	opts  QueryOptions[K]
	seen  *lru.Cache[K, settled[T]]

	mu     sync.Mutex
	ctx    context.Context
	gen    uint64
	hasKey bool
	state  State[K, T]
}

func NewQuery[K comparable, T any](ctx context.Context, name string, fetch func(context.Context, K) (T, error), opts QueryOptions[K]) *Query[K, T] {
	if opts.Enabled == nil {
		opts.Enabled = func(K) bool { return true }
	}
	if opts.StaleAfter == nil {
		opts.StaleAfter = func(K) time.Duration { return 0 }
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seen, _ := lru.New[K, settled[T]](opts.CacheSize)
	return &Query[K, T]{name: name, fetch: fetch, opts: opts, seen: seen, ctx: ctx}
}

func (q *Query[K, T]) Name() string { return q.name }

// Set switches the query to key. A disabled key resets to idle without a
// fetch; a fresh settled result is served without a fetch; otherwise a fetch
// starts and the state is loading until it lands. Setting the current key
// again refetches only when its settled result has gone stale.
func (q *Query[K, T]) Set(key K) {
	q.mu.Lock()
	var prev T
	if q.hasKey && q.state.Key == key {
		switch q.state.Status {
		case StatusLoading:
			q.mu.Unlock()
			return
		case StatusSuccess:
			s, ok := q.seen.Peek(key)
			if !ok || q.fresh(key, s) {
				q.mu.Unlock()
				return
			}
			// keep showing the stale value while it refreshes
			prev = q.state.Data
		}
	}
	q.gen++
	gen := q.gen
	q.hasKey = true

	if !q.opts.Enabled(key) {
		q.state = State[K, T]{Key: key, Status: StatusIdle}
		q.mu.Unlock()
		q.opts.OnChange()
		return
	}
	if s, ok := q.seen.Get(key); ok && q.fresh(key, s) {
		q.state = State[K, T]{Key: key, Status: StatusSuccess, Data: s.v}
		q.mu.Unlock()
		q.opts.OnChange()
		return
	}
	q.state = State[K, T]{Key: key, Status: StatusLoading, Data: prev}
	ctx := q.ctx
	q.mu.Unlock()
	q.opts.OnChange()

	go q.run(ctx, gen, key)
}

func (q *Query[K, T]) run(ctx context.Context, gen uint64, key K) {
	v, err := q.fetch(ctx, key)

	q.mu.Lock()
	if gen != q.gen {
		// superseded while in flight
		q.mu.Unlock()
		return
	}
	if err != nil {
		q.state = State[K, T]{Key: key, Status: StatusError, Err: err}
	} else {
		q.state = State[K, T]{Key: key, Status: StatusSuccess, Data: v}
		q.seen.Add(key, settled[T]{v: v, at: q.opts.Now()})
	}
	q.mu.Unlock()
	q.opts.OnChange()
}

func (q *Query[K, T]) fresh(key K, s settled[T]) bool {
	ttl := q.opts.StaleAfter(key)
	return ttl <= 0 || q.opts.Now().Sub(s.at) < ttl
}

// Reset returns to idle and discards any in-flight result.
func (q *Query[K, T]) Reset() {
	q.mu.Lock()
	q.gen++
	q.hasKey = false
	q.state = State[K, T]{}
	q.mu.Unlock()
	q.opts.OnChange()
}

// Refetch drops the settled result for the current key and fetches again.
func (q *Query[K, T]) Refetch() {
	q.mu.Lock()
	if !q.hasKey {
		q.mu.Unlock()
		return
	}
	key := q.state.Key
	q.seen.Remove(key)
	q.state.Status = StatusIdle
	q.mu.Unlock()
	q.Set(key)
}

// RetryFailed refetches only when the last fetch failed.
func (q *Query[K, T]) RetryFailed() {
	if q.State().Status == StatusError {
		q.Refetch()
	}
}

func (q *Query[K, T]) State() State[K, T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *Query[K, T]) Loading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state.Status == StatusLoading
}
