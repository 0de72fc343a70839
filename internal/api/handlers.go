package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cascadekit/cascade/internal/diag"
	"github.com/cascadekit/cascade/internal/dispatch"
	"github.com/cascadekit/cascade/internal/journal"
	"github.com/cascadekit/cascade/internal/pipeline"
	"github.com/cascadekit/cascade/internal/queue"
)

const (
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 5 * time.Minute
	defaultJournalPage = 50
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Commands:      s.deps.Registry.Len(),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Command == "" || req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "command and target are required")
		return
	}

	pending, err := s.deps.Executor.Execute(dispatch.Request{
		Command:  req.Command,
		TargetID: req.Target,
		SourceID: req.Source,
	})
	if err != nil {
		var d *diag.Diagnostic
		if errors.As(err, &d) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:       d.Message,
				Suggestions: d.Suggestions,
			})
			return
		}
		if errors.Is(err, queue.ErrQueueFull) {
			s.writeError(w, http.StatusServiceUnavailable, "execution queue is full")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !req.Wait {
		respondJSON(w, http.StatusAccepted, ExecuteResponse{Status: string(pending.Status())})
		return
	}

	timeout := defaultWaitTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
		if timeout > maxWaitTimeout {
			timeout = maxWaitTimeout
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	outcome, err := pending.Wait(ctx)
	if err != nil {
		s.writeError(w, http.StatusGatewayTimeout, "timed out waiting for execution")
		return
	}

	resp := ExecuteResponse{Status: string(pending.Status())}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	prefixes := s.deps.Registry.Prefixes()
	respondJSON(w, http.StatusOK, RegistryResponse{Prefixes: prefixes, Count: len(prefixes)})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.deps.States.Snapshot()
	pairs := make([]StatePair, 0, len(snapshot))
	for k, lc := range snapshot {
		cmd, target, _ := strings.Cut(k, "\x00")
		pairs = append(pairs, StatePair{Command: cmd, Target: target, Lifecycle: string(lc)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Command != pairs[j].Command {
			return pairs[i].Command < pairs[j].Command
		}
		return pairs[i].Target < pairs[j].Target
	})
	respondJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := s.deps.Templates.All()
	if templates == nil {
		templates = []*pipeline.Template{}
	}
	respondJSON(w, http.StatusOK, templates)
}

func (s *Server) handleJournalRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultJournalPage
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	entries, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "journal read failed: "+err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleJournalGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executionID")
	entry, err := s.deps.Journal.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "journal read failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	dropped := s.deps.Executor.Reset()
	respondJSON(w, http.StatusOK, ResetResponse{Dropped: dropped})
}

func parsePositiveInt(v string) (int, error) {
	var n int
	if err := json.Unmarshal([]byte(v), &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
