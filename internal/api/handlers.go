package api

import (
	"net/http"
	"strconv"

	"melpower/adapters/report"
	"melpower/app"
	"melpower/domain/core"
	apperrors "melpower/internal/errors"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePopulation(w http.ResponseWriter, r *http.Request) {
	req := app.NewPopulationRequest()
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.service.Population(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExperiment(w http.ResponseWriter, r *http.Request) {
	req := app.NewExperimentRequest()
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.service.Experiment(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleTreatmentExperiment(w http.ResponseWriter, r *http.Request) {
	req := app.NewExperimentRequest()
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.service.TreatmentExperiment(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleLuxPower(w http.ResponseWriter, r *http.Request) {
	req := app.NewPowerRequest()
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.service.LuxPower(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writePowerResult(w, r, res)
}

func (s *Server) handleTreatmentPower(w http.ResponseWriter, r *http.Request) {
	req := app.NewPowerRequest()
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.service.TreatmentPower(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writePowerResult(w, r, res)
}

// writePowerResult answers with JSON, or an HTML report for ?format=html.
func (s *Server) writePowerResult(w http.ResponseWriter, r *http.Request, res *app.PowerResult) {
	if r.URL.Query().Get("format") == "html" {
		pop := res.Population
		writeHTML(w, report.PowerReport{Run: res.Run, Population: &pop, Curve: res.Curve}.HTML())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, apperrors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	runs, err := s.service.ListRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) runFromPath(w http.ResponseWriter, r *http.Request) (core.RunID, bool) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, apperrors.InvalidInput("run id must be a UUID"))
		return "", false
	}
	return id, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runFromPath(w, r)
	if !ok {
		return
	}
	run, err := s.service.GetRun(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runFromPath(w, r)
	if !ok {
		return
	}
	run, err := s.service.GetRun(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeHTML(w, report.PowerReport{Run: *run}.HTML())
}
