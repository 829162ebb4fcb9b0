package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestQuery_DisabledKeyNeverFetches(t *testing.T) {
	var calls int32
	q := NewQuery(context.Background(), "races",
		func(context.Context, string) (int, error) { atomic.AddInt32(&calls, 1); return 1, nil },
		QueryOptions[string]{Enabled: func(k string) bool { return k != "" }})

	q.Set("")
	if st := q.State(); st.Status != StatusIdle {
		t.Fatalf("status=%s want idle", st.Status)
	}
	time.Sleep(20 * time.Millisecond)
	if calls != 0 {
		t.Fatalf("calls=%d want 0", calls)
	}
}

func TestQuery_SettledResultReusedWithoutFetch(t *testing.T) {
	var calls int32
	q := NewQuery(context.Background(), "races",
		func(_ context.Context, k string) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "races " + k, nil
		},
		QueryOptions[string]{})

	q.Set("2021")
	waitFor(t, func() bool { return q.State().Status == StatusSuccess })
	q.Set("2022")
	waitFor(t, func() bool { return q.State().Status == StatusSuccess && q.State().Key == "2022" })
	q.Set("2021")
	if st := q.State(); st.Status != StatusSuccess || st.Data != "races 2021" {
		t.Fatalf("state=%+v want cached success", st)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls=%d want 2", n)
	}
}

func TestQuery_StaleAfterForcesRefetch(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var calls int32
	q := NewQuery(context.Background(), "standings",
		func(context.Context, string) (int32, error) { return atomic.AddInt32(&calls, 1), nil },
		QueryOptions[string]{
			StaleAfter: func(string) time.Duration { return time.Minute },
			Now:        func() time.Time { return now },
		})

	q.Set("2024")
	waitFor(t, func() bool { return q.State().Status == StatusSuccess })
	q.Reset()
	q.Set("2024")
	if q.State().Data != 1 {
		t.Fatalf("fresh entry should be reused")
	}

	q.Reset()
	now = now.Add(2 * time.Minute)
	q.Set("2024")
	waitFor(t, func() bool { return q.State().Status == StatusSuccess })
	if q.State().Data != 2 {
		t.Fatalf("data=%d want refetched 2", q.State().Data)
	}
}

func TestQuery_SameKeyRefetchesOnceStale(t *testing.T) {
	clk := newTestClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	gate := make(chan struct{}, 1)
	var calls int32
	q := NewQuery(context.Background(), "races",
		func(context.Context, string) (int32, error) {
			n := atomic.AddInt32(&calls, 1)
			if n > 1 {
				<-gate
			}
			return n, nil
		},
		QueryOptions[string]{
			StaleAfter: func(string) time.Duration { return time.Minute },
			Now:        clk.Now,
		})

	q.Set("2025")
	waitFor(t, func() bool { return q.State().Status == StatusSuccess })

	clk.Advance(30 * time.Second)
	q.Set("2025")
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls=%d want 1 while fresh", n)
	}

	clk.Advance(time.Minute)
	q.Set("2025")
	st := q.State()
	if st.Status != StatusLoading || st.Data != 1 {
		t.Fatalf("state=%+v want loading with previous data 1", st)
	}
	gate <- struct{}{}
	waitFor(t, func() bool { return q.State().Status == StatusSuccess })
	if got := q.State().Data; got != 2 {
		t.Fatalf("data=%d want 2", got)
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestQuery_SupersededResultIsDropped(t *testing.T) {
	release := map[string]chan struct{}{"2024": make(chan struct{}), "2023": make(chan struct{})}
	q := NewQuery(context.Background(), "races",
		func(_ context.Context, k string) (string, error) { <-release[k]; return "races " + k, nil },
		QueryOptions[string]{})

	q.Set("2024")
	q.Set("2023")
	close(release["2023"])
	waitFor(t, func() bool { return q.State().Status == StatusSuccess })

	close(release["2024"])
	time.Sleep(30 * time.Millisecond)
	if st := q.State(); st.Key != "2023" || st.Data != "races 2023" {
		t.Fatalf("stale result applied: %+v", st)
	}
}

func TestQuery_ErrorThenRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	q := NewQuery(context.Background(), "results",
		func(context.Context, string) (string, error) {
			if fail.Load() {
				return "", errors.New("upstream down")
			}
			return "ok", nil
		}, QueryOptions[string]{})

	q.Set("2021")
	waitFor(t, func() bool { return q.State().Status == StatusError })
	fail.Store(false)
	q.RetryFailed()
	waitFor(t, func() bool { return q.State().Status == StatusSuccess })
}
