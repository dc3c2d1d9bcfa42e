package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/datafile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/pipeline"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/render"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// Error codes of the JSON error envelope.
const (
	codeBadRequest        = "bad_request"
	codeNotFound          = "not_found"
	codeUnknownDepartment = "unknown_department"
	codeDataUnavailable   = "data_unavailable"
	codeNotLoaded         = "not_loaded"
	codeTimeout           = "timeout"
	codeInternal          = "internal"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{
		Status:    status,
		Code:      code,
		Message:   msg,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// badRequestError marks an invalid request parameter.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// classify maps an error to its HTTP status and envelope code.
func classify(err error) (int, string) {
	var bad *badRequestError
	var stage *pipeline.StageError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, pipeline.ErrUnknownDepartment), errors.Is(err, spatial.ErrNoCenters):
		return http.StatusNotFound, codeUnknownDepartment
	case errors.Is(err, pipeline.ErrNotLoaded):
		return http.StatusServiceUnavailable, codeNotLoaded
	case errors.Is(err, datafile.ErrNotFound), errors.As(err, &stage),
		errors.Is(err, render.ErrNoDistricts), errors.Is(err, render.ErrNoCounts):
		return http.StatusServiceUnavailable, codeDataUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	writeError(w, r, status, code, err.Error())
}

// intParam reads a positive integer query parameter, def when absent.
func intParam(r *http.Request, name string, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, badRequest("%s must be a positive integer, got %q", name, raw)
	}
	if max > 0 && n > max {
		return 0, badRequest("%s must be at most %d, got %d", name, max, n)
	}
	return n, nil
}

// maxRadius bounds the proximity buffer.
const maxRadius = 100000.0

func radiusParam(r *http.Request, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("radius"))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > maxRadius {
		return 0, badRequest("radius must be a number of metres in (0, %.0f], got %q", maxRadius, raw)
	}
	return v, nil
}

func departmentParam(r *http.Request) string {
	d := strings.TrimSpace(r.URL.Query().Get("department"))
	if d == "" {
		return domain.AllDepartments
	}
	return d
}

func listParam(r *http.Request, name string, def []string) []string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
