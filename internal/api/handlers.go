package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iwmi/leaf-dss/internal/catalog"
	"github.com/iwmi/leaf-dss/internal/display"
	"github.com/iwmi/leaf-dss/internal/export"
	"github.com/iwmi/leaf-dss/internal/loader"
	"github.com/iwmi/leaf-dss/internal/unit"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIndex lists every registered route.
func (s *Server) handleIndex(routes chi.Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var endpoints []string
		_ = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			endpoints = append(endpoints, method+" "+strings.TrimSuffix(route, "/"))
			return nil
		})
		sort.Strings(endpoints)
		writeJSON(w, http.StatusOK, map[string]any{"info": "LEAF DSS API v1.0", "endpoints": endpoints})
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.display
	if cfg == nil {
		var err error
		if cfg, err = display.Load(""); err != nil {
			fail(w, r, err, "")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"colors":             cfg.Colors,
		"feasibility_colors": display.FeasibilityColors(),
		"map_config":         cfg.Map,
		"variable_groups":    cfg.VariableGroups,
	})
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	levels, districts := catalog.Levels(s.data.GPAvailable(r.Context()), s.gpDistrict)
	writeJSON(w, http.StatusOK, map[string]any{"levels": levels, "gp_districts": districts})
}

// gpsOrNil returns the GP collection, or nil when the level is unavailable.
func (s *Server) gpsOrNil(r *http.Request) (*unit.Collection, error) {
	gps, err := s.data.GPs(r.Context())
	if errors.Is(err, loader.ErrUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gps, nil
}

func (s *Server) collectionGeoJSON(kind unit.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coll, err := s.data.Collection(r.Context(), kind)
		if err != nil {
			fail(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, export.FeatureCollection(coll))
	}
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	s.collectionGeoJSON(unit.KindBlock)(w, r)
}

func (s *Server) handleGPs(w http.ResponseWriter, r *http.Request) {
	s.collectionGeoJSON(unit.KindGP)(w, r)
}

// lookup serves the units matched by find as GeoJSON.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, kind unit.Kind, find func(unit.Collection) (unit.Collection, error), notFound string) {
	coll, err := s.data.Collection(r.Context(), kind)
	if err != nil {
		fail(w, r, err, notFound)
		return
	}
	found, err := find(coll)
	if err != nil {
		fail(w, r, err, notFound)
		return
	}
	writeJSON(w, http.StatusOK, export.FeatureCollection(found))
}

func (s *Server) handleBlockByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.lookup(w, r, unit.KindBlock, func(c unit.Collection) (unit.Collection, error) { return catalog.FindByCode(c, id) }, "Block not found")
}

func (s *Server) handleBlockByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.lookup(w, r, unit.KindBlock, func(c unit.Collection) (unit.Collection, error) { return catalog.FindByName(c, name) }, "Block not found")
}

func (s *Server) handleGPByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.lookup(w, r, unit.KindGP, func(c unit.Collection) (unit.Collection, error) { return catalog.FindByCode(c, id) }, "GP not found")
}

func (s *Server) handleGPByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.lookup(w, r, unit.KindGP, func(c unit.Collection) (unit.Collection, error) { return catalog.FindByName(c, name) }, "GP not found")
}

func (s *Server) handleBlockStatistics(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.data.Blocks(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	sum := catalog.Summarize(blocks, loader.ColDistName)
	writeJSON(w, http.StatusOK, map[string]any{
		"total_blocks":   sum.Total,
		"districts":      sum.Groups,
		"district_count": len(sum.Groups),
		"columns":        sum.Columns,
	})
}

func (s *Server) handleGPStatistics(w http.ResponseWriter, r *http.Request) {
	gps, err := s.data.GPs(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	sum := catalog.Summarize(gps, loader.ColGPBlockName)
	writeJSON(w, http.StatusOK, map[string]any{
		"total_gps": sum.Total,
		"district":  s.gpDistrict,
		"blocks":    sum.Groups,
		"columns":   sum.Columns,
	})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.data.Blocks(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	gps, err := s.gpsOrNil(r)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"districts": catalog.Districts(blocks, gps, s.gpDistrict)})
}

func (s *Server) handleDistrictBlocks(w http.ResponseWriter, r *http.Request) {
	district := chi.URLParam(r, "district")
	blocks, err := s.data.Blocks(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	list, err := catalog.DistrictBlocks(blocks, district)
	if err != nil {
		fail(w, r, err, fmt.Sprintf("District %q not found", district))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"district": district, "blocks": list})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.data.Blocks(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	gps, err := s.gpsOrNil(r)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, catalog.Locations(blocks, gps, s.gpDistrict))
}

func (s *Server) handleBlockNames(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.data.Blocks(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": catalog.BlockNames(blocks)})
}

func (s *Server) handleGPNames(w http.ResponseWriter, r *http.Request) {
	gps, err := s.gpsOrNil(r)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	names := []catalog.GPEntry{}
	if gps != nil {
		names = catalog.GPNames(*gps, loader.ColVillageCount)
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": names})
}

func (s *Server) handleGPLocations(w http.ResponseWriter, r *http.Request) {
	gps, err := s.gpsOrNil(r)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	locs := []catalog.GPLocation{}
	if gps != nil {
		locs = catalog.GPLocations(*gps)
	}
	writeJSON(w, http.StatusOK, map[string]any{"gps": locs, "by_block": catalog.ByBlock(locs)})
}

func (s *Server) handleGPsInBlock(w http.ResponseWriter, r *http.Request) {
	block := chi.URLParam(r, "block")
	gps, err := s.data.GPs(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	list, err := catalog.GPsInBlock(gps, block, loader.ColVillageCount)
	if err != nil {
		fail(w, r, err, fmt.Sprintf("No GPs found in block %q", block))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"block": block, "district": s.gpDistrict, "gps": list})
}

func (s *Server) handleInterventions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.data.Definitions(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interventions": defs.Interventions()})
}

func (s *Server) handleInterventionConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	kind, err := unit.ParseKind(r.URL.Query().Get("level"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	iv, err := s.data.Intervention(r.Context(), name, kind)
	if err != nil {
		fail(w, r, err, fmt.Sprintf("Intervention %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intervention": iv.Key,
		"name":         iv.Name,
		"description":  iv.Description,
		"variables":    iv.Variables,
	})
}

func (s *Server) variables(w http.ResponseWriter, r *http.Request, kind unit.Kind) {
	coll, err := s.data.Collection(r.Context(), kind)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	defs, err := s.data.Definitions(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, catalog.Variables(coll, defs, catalog.SkipFor(kind)))
}

func (s *Server) handleBlockVariables(w http.ResponseWriter, r *http.Request) {
	s.variables(w, r, unit.KindBlock)
}

func (s *Server) handleGPVariables(w http.ResponseWriter, r *http.Request) {
	s.variables(w, r, unit.KindGP)
}

func (s *Server) handleVariableGroups(w http.ResponseWriter, r *http.Request) {
	defs, err := s.data.Definitions(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": defs.Groups()})
}

// handleVariableStats serves the observed range of a column. The level
// query parameter selects blocks (default) or GPs.
func (s *Server) handleVariableStats(w http.ResponseWriter, r *http.Request) {
	kind, err := unit.ParseKind(r.URL.Query().Get("level"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	coll, err := s.data.Collection(r.Context(), kind)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, catalog.ColumnStats(coll, chi.URLParam(r, "variable")))
}
