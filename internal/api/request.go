package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/iwmi/leaf-dss/internal/feasibility"
	"github.com/iwmi/leaf-dss/internal/unit"
)

// ScoringRequest is the canonical scoring request.
type ScoringRequest struct {
	Intervention string
	Criteria     []feasibility.Criterion
	Logic        feasibility.Logic
	// Scope restricts statistics to one parent region.
	Scope string
	// Block restricts GP scoring to the GPs of one block.
	Block string
}

// wireCriterion accepts both the canonical and the legacy criterion keys.
// Values are decoded loosely and coerced, so numbers sent as strings work.
type wireCriterion struct {
	Column   any `json:"column"`
	Field    any `json:"field"`
	MinVal   any `json:"min_val"`
	RangeMin any `json:"range_min"`
	MaxVal   any `json:"max_val"`
	RangeMax any `json:"range_max"`
	Weight   any `json:"weight"`
}

type wireRequest struct {
	Intervention string          `json:"intervention"`
	Criteria     []wireCriterion `json:"criteria"`
	Filters      []wireCriterion `json:"filters"`
	Logic        string          `json:"logic"`
	Scope        any             `json:"scope"`
	District     any             `json:"district"`
	Block        string          `json:"block"`
}

// decodeScoringRequest reads a scoring request body. Legacy clients send
// filters instead of criteria, district instead of scope, field instead of
// column and range_min/range_max instead of min_val/max_val; both spellings
// are accepted. A missing or non-numeric weight is 1 and a missing or
// non-numeric bound is unbounded. An empty body is an empty request.
func decodeScoringRequest(r io.Reader) (ScoringRequest, error) {
	var wire wireRequest
	if err := json.NewDecoder(r).Decode(&wire); err != nil && !errors.Is(err, io.EOF) {
		return ScoringRequest{}, eris.Wrap(err, "api: decode scoring request")
	}

	raw := wire.Criteria
	if len(raw) == 0 {
		raw = wire.Filters
	}
	req := ScoringRequest{
		Intervention: strings.TrimSpace(wire.Intervention),
		Criteria:     make([]feasibility.Criterion, 0, len(raw)),
		Logic:        feasibility.ParseLogic(wire.Logic),
		Scope:        strings.TrimSpace(unit.Text(wire.Scope)),
		Block:        strings.TrimSpace(wire.Block),
	}
	if req.Scope == "" {
		req.Scope = strings.TrimSpace(unit.Text(wire.District))
	}
	for _, c := range raw {
		req.Criteria = append(req.Criteria, feasibility.Criterion{
			Column: firstString(c.Column, c.Field),
			Min:    firstNumber(math.Inf(-1), c.MinVal, c.RangeMin),
			Max:    firstNumber(math.Inf(1), c.MaxVal, c.RangeMax),
			Weight: firstNumber(1, c.Weight),
		})
	}
	return req, nil
}

func firstString(vals ...any) string {
	for _, v := range vals {
		if v != nil {
			return strings.TrimSpace(unit.Text(v))
		}
	}
	return ""
}

// firstNumber coerces the first non-null value; def when it is not numeric.
func firstNumber(def float64, vals ...any) float64 {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if f, ok := unit.Float(v); ok {
			return f
		}
		return def
	}
	return def
}
