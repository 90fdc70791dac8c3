// Package api exposes the monitor's state over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/nadmax/nexwatch/internal/httputil"
	"github.com/nadmax/nexwatch/internal/issue"
	"github.com/nadmax/nexwatch/internal/middleware"
	"github.com/nadmax/nexwatch/internal/report"
	"github.com/nadmax/nexwatch/internal/scanner"
	"github.com/nadmax/nexwatch/internal/watchdog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultAlertLimit = 20
	feedTimeout       = 5 * time.Second
)

// StateSource provides the outcome of the latest polling cycle.
type StateSource interface {
	Snapshot() watchdog.State
}

// AlertFeed lists recently dispatched alerts, newest first.
type AlertFeed interface {
	Recent(ctx context.Context, limit int) ([]*alert.Alert, error)
}

type API struct {
	state StateSource
	store *report.SnapshotStore
	feed  AlertFeed
	mux   *http.ServeMux
	next  http.Handler
}

type StatusResponse struct {
	Status     *scanner.Status `json:"status"`
	Issues     []issue.Issue   `json:"issues"`
	IssueCount int             `json:"issue_count"`
	CheckedAt  time.Time       `json:"checked_at,omitzero"`
	LastAlert  *AlertInfo      `json:"last_alert,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
}

type AlertInfo struct {
	ID   string    `json:"id"`
	At   time.Time `json:"at"`
	Path string    `json:"path,omitempty"`
}

// NewAPI builds the HTTP handler. store and feed may be nil; the endpoints backed by them
// then answer 404.
func NewAPI(state StateSource, store *report.SnapshotStore, feed AlertFeed) *API {
	api := &API{
		state: state,
		store: store,
		feed:  feed,
		mux:   http.NewServeMux(),
	}

	api.setupRoutes()
	api.next = middleware.MetricsMiddleware(api.mux)
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("GET /api/status", a.getStatus)
	a.mux.HandleFunc("GET /api/issues", a.getIssues)
	a.mux.HandleFunc("GET /api/agents", a.listAgents)
	a.mux.HandleFunc("GET /api/agents/{name}", a.getAgent)
	a.mux.HandleFunc("GET /api/alerts", a.listAlerts)
	a.mux.Handle("GET /metrics", promhttp.Handler())
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.next.ServeHTTP(w, r)
}

func (a *API) getStatus(w http.ResponseWriter, _ *http.Request) {
	s := a.state.Snapshot()

	resp := StatusResponse{
		Status:     s.Status,
		Issues:     s.Issues,
		IssueCount: len(s.Issues),
		CheckedAt:  s.CheckedAt,
		LastError:  s.LastError,
	}
	if resp.Issues == nil {
		resp.Issues = []issue.Issue{}
	}
	if s.LastAlertID != "" {
		resp.LastAlert = &AlertInfo{ID: s.LastAlertID, At: s.LastAlertAt, Path: s.LastAlertPath}
	}

	httputil.WriteJSON(w, resp)
}

func (a *API) getIssues(w http.ResponseWriter, _ *http.Request) {
	issues := a.state.Snapshot().Issues
	if issues == nil {
		issues = []issue.Issue{}
	}

	httputil.WriteJSON(w, issues)
}

func (a *API) listAgents(w http.ResponseWriter, _ *http.Request) {
	snap, ok := a.loadSnapshot(w)
	if !ok {
		return
	}

	httputil.WriteJSON(w, snap)
}

func (a *API) getAgent(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.loadSnapshot(w)
	if !ok {
		return
	}

	entry, found := snap[r.PathValue("name")]
	if !found {
		httputil.WriteJSONError(w, "Agent not found", http.StatusNotFound)
		return
	}

	httputil.WriteJSON(w, entry)
}

func (a *API) loadSnapshot(w http.ResponseWriter) (report.Snapshot, bool) {
	if a.store == nil {
		httputil.WriteJSONError(w, "Agent status is not configured", http.StatusNotFound)
		return nil, false
	}

	snap, err := a.store.Load()
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}

	return snap, true
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		httputil.WriteJSONError(w, "Alert feed is not configured", http.StatusNotFound)
		return
	}

	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.WriteJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), feedTimeout)
	defer cancel()

	alerts, err := a.feed.Recent(ctx, limit)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, alerts)
}
