package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/catalog"
	"github.com/iwmi/leaf-dss/internal/export"
	"github.com/iwmi/leaf-dss/internal/feasibility"
	"github.com/iwmi/leaf-dss/internal/metrics"
	"github.com/iwmi/leaf-dss/internal/schema"
	"github.com/iwmi/leaf-dss/internal/unit"
)

// criteria returns the request's criteria, falling back to the variables of
// the named intervention expanded for the scored level. An unknown
// intervention yields no criteria.
func (s *Server) criteria(ctx context.Context, kind unit.Kind, req ScoringRequest) ([]feasibility.Criterion, error) {
	if len(req.Criteria) > 0 || req.Intervention == "" {
		return req.Criteria, nil
	}
	iv, err := s.data.Intervention(ctx, req.Intervention, kind)
	if errors.Is(err, schema.ErrUnknownIntervention) {
		zap.L().Warn("api: unknown intervention, scoring without criteria",
			zap.String("component", "api"),
			zap.String("intervention", req.Intervention))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return feasibility.CriteriaFromConfig(iv.Variables), nil
}

// evaluate scores the units of one level. GP requests may be restricted to
// one block; block requests may scope their statistics to one district.
func (s *Server) evaluate(ctx context.Context, kind unit.Kind, req ScoringRequest) (feasibility.Result, error) {
	coll, err := s.data.Collection(ctx, kind)
	if err != nil {
		return feasibility.Result{}, err
	}
	criteria, err := s.criteria(ctx, kind, req)
	if err != nil {
		return feasibility.Result{}, err
	}

	scope := req.Scope
	if kind == unit.KindGP {
		if req.Block != "" {
			coll = catalog.InParent(coll, req.Block)
		}
		scope = ""
	}

	start := time.Now()
	res := feasibility.Evaluate(coll, criteria, req.Logic, scope)
	metrics.ObserveScoring(string(kind), coll.Len(), time.Since(start))

	zap.L().Debug("api: scored units",
		zap.String("component", "api"),
		zap.String("level", string(kind)),
		zap.Int("units", coll.Len()),
		zap.Int("criteria", len(criteria)),
		zap.String("logic", string(req.Logic)),
		zap.String("scope", scope))
	return res, nil
}

func (s *Server) score(kind unit.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeScoringRequest(r.Body)
		if err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		res, err := s.evaluate(r.Context(), kind, req)
		if err != nil {
			fail(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"geojson":    export.FeatureCollection(res.Units),
			"statistics": res.Stats,
		})
	}
}

func (s *Server) handleBlockFeasibility(w http.ResponseWriter, r *http.Request) {
	s.score(unit.KindBlock)(w, r)
}

func (s *Server) handleGPFeasibility(w http.ResponseWriter, r *http.Request) {
	s.score(unit.KindGP)(w, r)
}

// handleExportCSV streams the units of a level as CSV. Units are scored
// first when the request carries criteria or an intervention.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	kind, err := unit.ParseKind(r.URL.Query().Get("level"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	req, err := decodeScoringRequest(r.Body)
	if err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	var coll unit.Collection
	if len(req.Criteria) > 0 || req.Intervention != "" {
		res, err := s.evaluate(r.Context(), kind, req)
		if err != nil {
			fail(w, r, err, "")
			return
		}
		coll = res.Units
	} else if coll, err = s.data.Collection(r.Context(), kind); err != nil {
		fail(w, r, err, "")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leaf_data.csv"`)
	if err := export.WriteCSV(w, coll); err != nil {
		zap.L().Warn("api: write csv", zap.String("component", "api"), zap.Error(err))
	}
}
