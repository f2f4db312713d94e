package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/glaciation-heu/timegraph/internal/engine"
	"github.com/glaciation-heu/timegraph/internal/graphname"
	"github.com/glaciation-heu/timegraph/internal/rdf"
	"github.com/glaciation-heu/timegraph/internal/retention"
	"github.com/glaciation-heu/timegraph/internal/sparql"
	"github.com/glaciation-heu/timegraph/internal/version"
)

const defaultLimit = 50

// handleQuery passes a validated read query through to the store and
// returns the SPARQL JSON results document.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	res, err := s.engine.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res == nil {
		res = sparql.Empty()
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExecute passes a validated update through to the store. The
// statement comes from ?query= or a JSON body {"sparql": "..."}.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	stmt := r.URL.Query().Get("query")
	if stmt == "" && r.ContentLength != 0 {
		var req struct {
			SPARQL string `json:"sparql"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		stmt = req.SPARQL
	}
	if err := s.engine.Execute(r.Context(), stmt); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpdateGraph stores a JSON-LD document as the next snapshot of the
// prefix named by its @id.
func (s *Server) handleUpdateGraph(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ApplyJSONLD(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type timelineEntry struct {
	Name      graphname.Name `json:"name"`
	Timestamp int64          `json:"timestamp"`
	Role      graphname.Role `json:"role"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	tl, err := s.engine.Timeline(r.Context(), prefix)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries := make([]timelineEntry, len(tl))
	for i, p := range tl {
		entries[i] = timelineEntry{Name: p.Name, Timestamp: p.Timestamp, Role: p.Role}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prefix":  graphname.NormalizePrefix(prefix),
		"entries": entries,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := s.engine.History(r.URL.Query().Get("prefix"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": entries})
}

func (s *Server) handleSweeps(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := s.engine.Sweeps(limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sweeps": entries})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	rep, err := s.engine.Sweep(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body := map[string]any{
		"cutoff":    rep.Cutoff,
		"listed":    rep.Listed,
		"skipped":   rep.Skipped,
		"dropped":   rep.Dropped,
		"failed":    rep.Failed,
		"compacted": rep.Compacted,
	}
	if rep.ListErr != nil {
		body["list_error"] = rep.ListErr.Error()
	}
	if rep.Err != nil {
		body["error"] = rep.Err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	var (
		valErr   *sparql.ValidationError
		docErr   *engine.DocumentError
		emptyErr *rdf.EmptyGraphError
		prevErr  *version.NoPreviousSnapshotError
		storeErr *sparql.StoreError
		sizeErr  *http.MaxBytesError
		pfxErr   *graphname.InvalidPrefixError
	)
	switch {
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &valErr), errors.As(err, &docErr), errors.As(err, &pfxErr),
		errors.Is(err, version.ErrInvalidTriple):
		return http.StatusBadRequest
	case errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &prevErr), errors.Is(err, retention.ErrSweepInProgress):
		return http.StatusConflict
	case errors.As(err, &storeErr):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrNoJournal):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with its mapped status. A non-nil update result is
// included so a client can see which graphs were written before the failure.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, partial ...*version.Result) {
	status := statusFor(err)
	body := map[string]any{"error": err.Error()}
	if len(partial) > 0 && partial[0] != nil && len(partial[0].Written) > 0 {
		body["result"] = partial[0]
	}

	log := s.logger.WithField("action", "http_error").WithError(err).WithField("path", r.URL.Path)
	if status >= 500 {
		log.Error(strings.ToLower(http.StatusText(status)))
	} else {
		log.Debug(strings.ToLower(http.StatusText(status)))
	}
	writeJSON(w, status, body)
}
