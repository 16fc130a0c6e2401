// Package schedule exposes the current schedule and setpoint over HTTP.
package schedule

import (
	"encoding/json"
	"net/http"

	"github.com/mgenrique/ess-controller/core/model"
	"github.com/mgenrique/ess-controller/pkg/export"
)

// Service is the part of the orchestrator served by the handlers.
type Service interface {
	Schedule() (model.Schedule, bool)
	Setpoint() model.Setpoint
	Force()
}

// Register mounts the handlers on mux. Requests must carry
// "Authorization: Bearer <token>" when token is non-empty.
func Register(mux *http.ServeMux, svc Service, token string) {
	mux.Handle("/api/schedule", auth(token, NewScheduleHandler(svc, export.FormatJSON)))
	mux.Handle("/api/schedule.md", auth(token, NewScheduleHandler(svc, export.FormatMarkdown)))
	mux.Handle("/api/schedule.csv", auth(token, NewScheduleHandler(svc, export.FormatCSV)))
	mux.Handle("/api/schedule.html", auth(token, NewScheduleHandler(svc, export.FormatHTML)))
	mux.Handle("/api/setpoint", auth(token, NewSetpointHandler(svc)))
	mux.Handle("/api/schedule/recompute", auth(token, NewRecomputeHandler(svc)))
}

var contentTypes = map[export.Format]string{
	export.FormatJSON:     "application/json",
	export.FormatMarkdown: "text/markdown; charset=utf-8",
	export.FormatCSV:      "text/csv",
	export.FormatHTML:     "text/html; charset=utf-8",
}

// NewScheduleHandler serves the last published schedule in format f. It
// answers 404 until a schedule exists.
func NewScheduleHandler(svc Service, f export.Format) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s, ok := svc.Schedule()
		if !ok {
			http.Error(w, "no schedule yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentTypes[f])
		if err := export.Write(w, f, s); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewSetpointHandler serves the last proposed setpoint via GET /api/setpoint.
func NewSetpointHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sp := svc.Setpoint()
		if sp.At.IsZero() {
			http.Error(w, "no setpoint yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewRecomputeHandler forces a recompute on the next tick via
// POST /api/schedule/recompute.
func NewRecomputeHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		svc.Force()
		w.WriteHeader(http.StatusAccepted)
	})
}

func auth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
