package ergast

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParam is returned before any I/O when a season, round or driver
// id cannot be part of an upstream path.
var ErrInvalidParam = errors.New("invalid parameter")

// ShapeError reports a response that lacks a required field. It is never
// retried and nothing is cached.
type ShapeError struct {
	Endpoint string
	Params   []string // key=value pairs
	Path     string   // the missing field path
	Err      error    // decode error, if the body was not JSON
}

func (e *ShapeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid response shape from %s endpoint", e.Endpoint)
	if len(e.Params) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Params, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else if e.Path != "" {
		fmt.Fprintf(&b, ": missing %s", e.Path)
	}
	return b.String()
}

func (e *ShapeError) Unwrap() error { return e.Err }

// PaginationError fails a whole lap-time fetch because one page failed or the
// merged pages do not add up.
type PaginationError struct {
	Season string
	Round  string
	Offset int // failing page offset, -1 when the merge check failed
	Err    error
}

func (e *PaginationError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("lap times %s/%s: %v", e.Season, e.Round, e.Err)
	}
	return fmt.Sprintf("lap times %s/%s: page at offset %d: %v", e.Season, e.Round, e.Offset, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

func shapeErr(endpoint, path string, params ...string) *ShapeError {
	return &ShapeError{Endpoint: endpoint, Params: params, Path: path}
}

func param(k, v string) string { return k + "=" + v }
