package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"melpower/app"
	"melpower/domain/core"
	apperrors "melpower/internal/errors"
	"melpower/internal/testkit"
	"melpower/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	svc := app.NewPowerService(kit.Source(), kit.RNG(), kit.Runs(), app.ServiceConfig{
		MaxAttempts: 10000, Workers: 2, Thresh25: 1, Thresh75: 1, Alpha: 0.05,
	}, nil)
	return NewServer(svc, 2, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestExperimentEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodPost, "/v1/experiments",
		`{"n": 5, "lux": [10, 100], "individual_variation_level": 1, "seed": 2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 10)
}

func TestOmittedVariationLevelKeepsFullSpread(t *testing.T) {
	s := newTestServer(t)
	decodeP1 := func(body string) map[float64]bool {
		rec := do(t, s, http.MethodPost, "/v1/populations", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res app.PopulationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Population, 20)
		distinct := make(map[float64]bool)
		for _, c := range res.Population {
			distinct[c.P1] = true
		}
		return distinct
	}

	assert.Greater(t, len(decodeP1(`{"n": 20, "seed": 3}`)), 1)
	assert.Len(t, decodeP1(`{"n": 20, "seed": 3, "individual_variation_level": 0}`), 1)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed", "/v1/experiments", `{"n": `, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"unknown field", "/v1/experiments", `{"n": 5, "colour": 1}`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"variation out of range", "/v1/treatment-experiments",
			`{"n": 5, "lux": [10], "individual_variation_level": 2}`, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"implausible window", "/v1/experiments",
			`{"n": 5, "lux": [10], "individual_variation_level": 1, "thresh_25": 1000000, "thresh_75": 0.000001}`,
			http.StatusUnprocessableEntity, apperrors.CodeImplausible},
		{"population too small", "/v1/power/lux",
			`{"lux_1": 10, "lux_2": 100, "n": 20, "population_size": 5, "individual_variation_level": 1, "nreps": 5}`,
			http.StatusBadRequest, apperrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			var e errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestPowerRunLifecycle(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/power/treatment",
		`{"between": false, "lux_1": 30, "treated_ed50_multiplier": 0.5, "is_treated_higher": true,
		  "n": 8, "population_size": 40, "individual_variation_level": 1, "nreps": 10, "seed": 4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Run ports.PowerRun `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Run.ID)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+res.Run.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+res.Run.ID.String()+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Power report</h1>")

	rec = do(t, s, http.MethodGet, "/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []ports.PowerRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+core.NewRunID().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPowerHTMLFormat(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodPost, "/v1/power/lux?format=html",
		`{"lux_1": 10, "lux_2": 100, "n": 5, "population_size": 30, "individual_variation_level": 1, "nreps": 5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<table>")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperrors.CodeInvalidInput))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(apperrors.CodeImplausible))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(apperrors.CodeSamplingFailed))
	assert.Equal(t, http.StatusNotFound, StatusFor(apperrors.CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperrors.CodeMissingData))
}
