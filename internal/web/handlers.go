package web

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/tasks"
)

// AreaInfo is one entry of GET /api/areas.
type AreaInfo struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Task  string `json:"task"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	deps := area.Departments()
	out := make([]AreaInfo, 0, len(deps)+1)
	out = append(out, AreaInfo{
		Code:  area.National.String(),
		Name:  "France",
		Title: area.National.Title(),
		Task:  tasks.PublishNational,
	})
	for _, d := range deps {
		a := area.Area(d.Code)
		out = append(out, AreaInfo{
			Code:  d.Code,
			Name:  d.Name,
			Title: a.Title(),
			Task:  tasks.PublishDepartment,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	t, err := tasks.ForArea(chi.URLParam(r, "area"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	t.EnqueuedAt = time.Now().UTC()
	if err := s.enqueuer.Enqueue(r.Context(), t); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errEnqueue, err))
		return
	}

	writeJSON(w, http.StatusAccepted, t)
}
