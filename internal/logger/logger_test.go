package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSlogBridge_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "f1api", Component: "test"}, &buf)
	l := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithResource(ctx, "results")
	ctx = WithCacheOutcome(ctx, "hit")
	l.InfoContext(ctx, "served", "season", "2021", "round", 5, "err", errors.New("boom"))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":           "served",
		"level":         "info",
		"service":       "f1api",
		"component":     "test",
		"request_id":    "req-1",
		"resource":      "results",
		"cache_outcome": "hit",
		"season":        "2021",
		"err":           "boom",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s=%v want %v (line=%s)", k, got[k], v, buf.String())
		}
	}
	if got["round"] != float64(5) {
		t.Fatalf("round=%v want 5", got["round"])
	}
}

func TestSlogBridge_RespectsGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	l := NewSlog(&zl)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %s", buf.String())
	}
	l.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn line missing")
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if id := RequestID(ctx); len(id) != 16 {
		t.Fatalf("generated id=%q want 16 hex chars", id)
	}
}
