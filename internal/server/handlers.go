package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/census"
	"github.com/sells-group/incore-data/internal/export"
	"github.com/sells-group/incore-data/internal/fips"
	"github.com/sells-group/incore-data/internal/inventory"
	"github.com/sells-group/incore-data/internal/model"
	"github.com/sells-group/incore-data/internal/store"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// InventoryResponse is the JSON body of GET /v1/inventory/{fips}.
type InventoryResponse struct {
	RunID     string            `json:"run_id,omitempty"`
	Summary   inventory.Summary `json:"summary"`
	Buildings []model.Building  `json:"buildings"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Upstreams map[string]string `json:"upstreams,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if s.deps.Upstreams != nil {
		resp.Upstreams = s.deps.Upstreams.HostStates()
	}
	sendJSON(w, resp, http.StatusOK)
}

func (s *Server) listStates(w http.ResponseWriter, r *http.Request) {
	territories, _ := strconv.ParseBool(r.URL.Query().Get("territories"))
	sendJSON(w, fips.States(territories), http.StatusOK)
}

func (s *Server) listCounties(w http.ResponseWriter, r *http.Request) {
	if s.deps.Counties == nil {
		sendError(w, "county lookup is not configured", http.StatusServiceUnavailable)
		return
	}
	counties, err := s.deps.Counties.Counties(r.Context(), chi.URLParam(r, "state"))
	if err != nil {
		if eris.Is(err, fips.ErrUnknownState) {
			sendError(w, err.Error(), http.StatusNotFound)
			return
		}
		s.upstreamError(w, "list counties", err)
		return
	}
	sendJSON(w, counties, http.StatusOK)
}

func (s *Server) getInventory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Inventory == nil {
		sendError(w, "inventory builder is not configured", http.StatusServiceUnavailable)
		return
	}
	code := chi.URLParam(r, "fips")
	if _, _, err := fips.Split(code); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	opts := inventory.Options{Region: q.Get("region"), Random: s.deps.Defaults.Random, Seed: s.deps.Defaults.Seed}
	if v := q.Get("random"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			sendError(w, "random must be a boolean", http.StatusBadRequest)
			return
		}
		opts.Random = b
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			sendError(w, "seed must be an unsigned integer", http.StatusBadRequest)
			return
		}
		opts.Seed = n
	}

	var inv *inventory.Inventory
	build := func(ctx context.Context, runID string) (*model.RunResult, error) {
		var err error
		inv, err = s.deps.Inventory.FromFIPS(ctx, []string{code}, opts)
		if err != nil {
			return nil, err
		}
		if runID != "" {
			if _, err := s.deps.Store.SaveBuildings(ctx, runID, inv.Buildings); err != nil {
				return nil, err
			}
		}
		rep := inv.Report
		return &model.RunResult{Records: len(inv.Buildings), Report: &rep}, nil
	}

	params := model.RunParams{FIPS: []string{code}, Source: "nsi", Region: opts.Region, Random: opts.Random, Seed: opts.Seed}
	runID, err := s.track(r.Context(), model.RunKindInventory, params, build)
	if err != nil {
		s.upstreamError(w, "build inventory", err)
		return
	}

	if q.Get("format") == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(export.FeatureCollection(inv.Features())); err != nil {
			zap.L().Warn("server: encode geojson", zap.Error(err))
		}
		return
	}
	sendJSON(w, InventoryResponse{RunID: runID, Summary: inv.Summarize(), Buildings: inv.Buildings}, http.StatusOK)
}

func (s *Server) getDislocationMap(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dislocation == nil {
		sendError(w, "dislocation builder is not configured", http.StatusServiceUnavailable)
		return
	}
	counties := strings.Split(chi.URLParam(r, "fips"), ",")
	for _, c := range counties {
		if _, _, err := fips.Split(c); err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	d := s.deps.Defaults
	q := r.URL.Query()
	vintage, dataset := firstNonEmpty(q.Get("vintage"), d.Vintage), firstNonEmpty(q.Get("dataset"), d.Dataset)

	scratch, err := os.MkdirTemp(d.WorkDir, "dislocation-")
	if err != nil {
		s.internalError(w, "create scratch dir", err)
		return
	}
	defer os.RemoveAll(scratch) //nolint:errcheck

	var res *census.DislocationResult
	build := func(ctx context.Context, runID string) (*model.RunResult, error) {
		var err error
		res, err = s.deps.Dislocation.Run(ctx, census.DislocationOptions{
			StateCounties: counties,
			Vintage:       vintage,
			Dataset:       dataset,
			GeoName:       firstNonEmpty(q.Get("geo_name"), strings.Join(counties, "_")),
			ProgramName:   firstNonEmpty(q.Get("program_name"), "dislocation"),
			OutputDir:     scratch,
			TigerBaseURL:  d.TigerBaseURL,
			TigerYear:     d.TigerYear,
		})
		if err != nil {
			return nil, err
		}
		if runID != "" {
			if _, err := s.deps.Store.SaveBlockGroups(ctx, runID, res.BlockGroups); err != nil {
				return nil, err
			}
		}
		return &model.RunResult{Records: len(res.BlockGroups)}, nil
	}

	params := model.RunParams{FIPS: counties, Vintage: vintage, Dataset: dataset}
	if _, err := s.track(r.Context(), model.RunKindDislocation, params, build); err != nil {
		s.upstreamError(w, "build dislocation map", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := export.RenderChoropleth(w, res.Map); err != nil {
		zap.L().Warn("server: render choropleth", zap.Error(err))
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Kind:   model.RunKind(q.Get("kind")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	runs, err := s.deps.Store.ListRuns(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	sendJSON(w, runs, http.StatusOK)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.deps.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, "get run", err)
		return
	}
	sendJSON(w, run, http.StatusOK)
}

func (s *Server) getRunBuildings(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Store.GetRun(r.Context(), id); err != nil {
		s.storeError(w, "get run", err)
		return
	}
	buildings, err := s.deps.Store.ListBuildings(r.Context(), id)
	if err != nil {
		s.internalError(w, "list buildings", err)
		return
	}

	inv := inventory.Inventory{Buildings: buildings}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(export.FeatureCollection(inv.Features())); err != nil {
		zap.L().Warn("server: encode geojson", zap.Error(err))
	}
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collector == nil {
		sendError(w, "run history is not configured", http.StatusServiceUnavailable)
		return
	}
	hours := 24
	if v, err := strconv.Atoi(r.URL.Query().Get("hours")); err == nil && v > 0 {
		hours = v
	}
	snap, err := s.deps.Collector.Collect(r.Context(), hours)
	if err != nil {
		s.internalError(w, "collect status", err)
		return
	}
	sendJSON(w, snap, http.StatusOK)
}

// track runs fn inside a persisted run when a store is configured.
func (s *Server) track(ctx context.Context, kind model.RunKind, params model.RunParams,
	fn func(ctx context.Context, runID string) (*model.RunResult, error),
) (string, error) {
	if s.deps.Store == nil {
		_, err := fn(ctx, "")
		return "", err
	}
	run, err := store.Track(ctx, s.deps.Store, kind, params, fn)
	if run == nil {
		return "", err
	}
	return run.ID, err
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.deps.Store == nil {
		sendError(w, "run history is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if eris.Is(err, store.ErrNotFound) {
		sendError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.internalError(w, op, err)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("server: "+op, zap.Error(err))
	sendError(w, err.Error(), http.StatusInternalServerError)
}

// upstreamError reports a failed NSI, Census or TIGER request.
func (s *Server) upstreamError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("server: "+op, zap.Error(err))
	sendError(w, err.Error(), http.StatusBadGateway)
}

func sendJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func sendError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, ErrorResponse{Error: http.StatusText(status), Message: message, Code: status}, status)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
