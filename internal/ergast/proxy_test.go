package ergast

import (
	"context"
	"errors"
	"testing"
)

func TestProxyAllowed(t *testing.T) {
	allowed := []string{
		"/seasons.json?limit=100",
		"/2021.json",
		"/current.json",
		"/2021/driverStandings.json",
		"/2021/constructorStandings/1.json",
		"/2021/5/results.json",
		"/2021/5/pitstops.json",
		"/2021/5/laps.json?limit=100&offset=200",
		"/2021/5/drivers/max_verstappen/laps.json?limit=100",
	}
	for _, p := range allowed {
		if !ProxyAllowed(p) {
			t.Fatalf("%s should be allowed", p)
		}
	}
	denied := []string{
		"", "/", "https://evil.example/2021.json", "/2021/../admin", "/2021.json?x=1",
		"/2021/5/results.json/extra", "//2021.json",
	}
	for _, p := range denied {
		if ProxyAllowed(p) {
			t.Fatalf("%q should be denied", p)
		}
	}
}

func TestProxy_CachesRawEnvelope(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/2021/driverStandings/1.json", verstappen2021)
	svc, _ := newTestService(t, srv, Options{})
	ctx := context.Background()

	raw, err := svc.Proxy(ctx, "/2021/driverStandings/1.json")
	if err != nil {
		t.Fatalf("Proxy: %v", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		t.Fatalf("raw=%s", raw)
	}
	_, _ = svc.Proxy(ctx, "/2021/driverStandings/1.json")
	if n := api.count("/2021/driverStandings/1.json"); n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}

	if _, err := svc.Proxy(ctx, "/admin"); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("err=%v want ErrInvalidParam", err)
	}
}

func TestPrefetch_WarmsThreeResources(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("/seasons.json?limit=100", `{"MRData":{"SeasonTable":{"Seasons":[{"season":"2023"}]}}}`)
	api.on("/2023.json", `{"MRData":{"RaceTable":{"Races":[{"season":"2023","round":"5","raceName":"Miami Grand Prix"}]}}}`)
	api.on("/2023/5/results.json", `{"MRData":{"RaceTable":{"Races":[{"season":"2023","round":"5","Results":[]}]}}}`)
	svc, mr := newTestService(t, srv, Options{})

	if err := svc.Prefetch(context.Background(), "2023", "5"); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	for _, k := range []string{"seasons", "races-2023", "results-2023-5"} {
		if !mr.Exists(k) {
			t.Fatalf("%s not cached after prefetch", k)
		}
	}

	api.fail("/2022/1/results.json", 404)
	api.on("/2022.json", `{"MRData":{"RaceTable":{"Races":[]}}}`)
	if err := svc.Prefetch(context.Background(), "2022", "1"); err == nil {
		t.Fatalf("expected prefetch error when results fail")
	}
}
