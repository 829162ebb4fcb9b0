// Package router exposes the cached F1 data over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/f1-stats-cache/internal/ergast"
	"github.com/mohammed-shakir/f1-stats-cache/internal/upstream"
)

// Service is the data seam the handlers call; *ergast.Service satisfies it.
type Service interface {
	Seasons(ctx context.Context) ([]ergast.Season, error)
	Races(ctx context.Context, season string) ([]ergast.Race, error)
	RaceResults(ctx context.Context, season, round string) ([]ergast.RaceResult, error)
	LapTimes(ctx context.Context, season, round string) ([]ergast.LapRecord, error)
	DriverLapTimes(ctx context.Context, season, round, driverID string) ([]ergast.LapRecord, error)
	PitStops(ctx context.Context, season, round string) ([]ergast.PitStop, error)
	DriverStandings(ctx context.Context, season string) ([]ergast.StandingsList, error)
	ConstructorStandings(ctx context.Context, season string) ([]ergast.StandingsList, error)
	Champions(ctx context.Context, season string) (ergast.Champions, error)
	Proxy(ctx context.Context, path string) (json.RawMessage, error)
}

// CacheAdmin is satisfied by *cache.Store.
type CacheAdmin interface {
	ClearKeys(ctx context.Context, ks ...string) int
	ClearAll(ctx context.Context)
}

// nginx's convention for a client that went away mid-request
const statusClientClosed = 499

type API struct {
	svc   Service
	cache CacheAdmin
	log   *slog.Logger
}

func New(svc Service, admin CacheAdmin, logger *slog.Logger) *API {
	return &API{svc: svc, cache: admin, log: logger}
}

// Routes returns the handler tree meant to be mounted under /api.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/f1", a.proxy)
	r.Get("/seasons", a.seasons)
	r.Route("/seasons/{season}", func(r chi.Router) {
		r.Get("/races", a.races)
		r.Get("/races/{round}/results", a.results)
		r.Get("/races/{round}/laps", a.laps)
		r.Get("/races/{round}/pitstops", a.pitStops)
		r.Get("/standings/drivers", a.driverStandings)
		r.Get("/standings/constructors", a.constructorStandings)
		r.Get("/champions", a.champions)
	})
	if a.cache != nil {
		r.Delete("/cache", a.clearAll)
		r.Delete("/cache/{key}", a.clearKey)
	}
	return r
}

func (a *API) seasons(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Seasons(r.Context())
	a.reply(w, r, v, err)
}

func (a *API) races(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Races(r.Context(), chi.URLParam(r, "season"))
	a.reply(w, r, v, err)
}

func (a *API) results(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.RaceResults(r.Context(), chi.URLParam(r, "season"), chi.URLParam(r, "round"))
	a.reply(w, r, v, err)
}

func (a *API) laps(w http.ResponseWriter, r *http.Request) {
	season, round := chi.URLParam(r, "season"), chi.URLParam(r, "round")
	if d := r.URL.Query().Get("driver"); d != "" {
		v, err := a.svc.DriverLapTimes(r.Context(), season, round, d)
		a.reply(w, r, v, err)
		return
	}
	v, err := a.svc.LapTimes(r.Context(), season, round)
	a.reply(w, r, v, err)
}

func (a *API) pitStops(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.PitStops(r.Context(), chi.URLParam(r, "season"), chi.URLParam(r, "round"))
	a.reply(w, r, v, err)
}

func (a *API) driverStandings(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.DriverStandings(r.Context(), chi.URLParam(r, "season"))
	a.reply(w, r, v, err)
}

func (a *API) constructorStandings(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.ConstructorStandings(r.Context(), chi.URLParam(r, "season"))
	a.reply(w, r, v, err)
}

func (a *API) champions(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Champions(r.Context(), chi.URLParam(r, "season"))
	a.reply(w, r, v, err)
}

func (a *API) proxy(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		a.fail(w, r, fmt.Errorf("%w: path is required", ergast.ErrInvalidParam))
		return
	}
	v, err := a.svc.Proxy(r.Context(), path)
	a.reply(w, r, v, err)
}

func (a *API) clearKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	n := a.cache.ClearKeys(r.Context(), key)
	a.log.InfoContext(r.Context(), "cache key cleared via api", "key", key, "deleted", n)
	writeJSON(w, r, http.StatusOK, map[string]any{"key": key, "cleared": n})
}

func (a *API) clearAll(w http.ResponseWriter, r *http.Request) {
	a.cache.ClearAll(r.Context())
	a.log.InfoContext(r.Context(), "cache cleared via api")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) reply(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	msg := err.Error()
	switch {
	case code == statusClientClosed:
		a.log.DebugContext(r.Context(), "client went away", "path", r.URL.Path)
	case code >= http.StatusInternalServerError:
		a.log.WarnContext(r.Context(), "request failed", "path", r.URL.Path, "status", code, "err", err)
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	var (
		fe *upstream.FetchError
		se *ergast.ShapeError
		pe *ergast.PaginationError
	)
	switch {
	case errors.Is(err, ergast.ErrInvalidParam):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return statusClientClosed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &fe):
		if fe.RateLimited() {
			return http.StatusGatewayTimeout
		}
		if fe.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.As(err, &se), errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v, tags it with an xxhash ETag and answers 304 when the
// client already holds that representation.
func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if code == http.StatusOK && etagMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func etagMatch(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimPrefix(strings.TrimSpace(cand), "W/")
		if cand == "*" || cand == etag {
			return true
		}
	}
	return false
}
