package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "results-2021-5", []byte(`{"round":"5"}`), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, "results-2021-5")
	if err != nil || !ok {
		t.Fatalf("Get ok=%v err=%v", ok, err)
	}
	if string(got) != `{"round":"5"}` {
		t.Fatalf("value=%s", got)
	}

	if _, ok, err := rc.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v want false,nil", ok, err)
	}

	if err := rc.Del(ctx, "results-2021-5"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "results-2021-5"); ok {
		t.Fatalf("key still present after Del")
	}
}

func TestFlush_PrefixOnly(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for _, k := range []string{"f1:seasons", "f1:races-2021", "other:keep"} {
		if err := rc.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	if err := rc.Flush(ctx, "f1:"); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if mr.Exists("f1:seasons") || mr.Exists("f1:races-2021") {
		t.Fatalf("prefixed keys survived flush: %v", mr.Keys())
	}
	if !mr.Exists("other:keep") {
		t.Fatalf("flush removed a key outside the prefix")
	}

	if err := rc.Flush(ctx, ""); err != nil {
		t.Fatalf("Flush all: %v", err)
	}
	if n := len(mr.Keys()); n != 0 {
		t.Fatalf("keys after FLUSHDB=%d want 0", n)
	}
}

func TestFlush_PrefixWithGlobCharsStaysInNamespace(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for _, k := range []string{"f1*:seasons", "f1x:seasons", "f1:races-2021"} {
		if err := rc.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	if err := rc.Flush(ctx, "f1*:"); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if mr.Exists("f1*:seasons") {
		t.Fatalf("prefixed key survived flush")
	}
	if !mr.Exists("f1x:seasons") || !mr.Exists("f1:races-2021") {
		t.Fatalf("flush matched outside the prefix: %v", mr.Keys())
	}
}

func TestGlobEscape(t *testing.T) {
	cases := map[string]string{
		"f1:":   "f1:",
		"f1*:":  `f1\*:`,
		"a?b":   `a\?b`,
		"[x]":   `\[x\]`,
		`back\`: `back\\`,
		"":      "",
	}
	for in, want := range cases {
		if got := globEscape(in); got != want {
			t.Fatalf("globEscape(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNew_FailsWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, addr, WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatalf("expected ping error for closed server")
	}
	if _, err := New(ctx, ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}
