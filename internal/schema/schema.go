// Package schema parses the variable-definition table into typed variable
// metadata and the intervention catalog derived from its cluster column.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/iwmi/leaf-dss/internal/table"
)

// Column names of the variable-definition table.
const (
	ColVariable     = "variable"
	ColLabel        = "label"
	ColDescription  = "Description"
	ColGroup        = "group"
	ColSubgroup     = "subgroup"
	ColWeight       = "Weight"
	ColCluster      = "Cluster"
	ColIVariable    = "I_variable"
	ColILabel       = "I_label"
	ColIDescription = "I_description"
	ColIWeight      = "I_weight"
	ColRangeMin     = "range_min"
	ColRangeMax     = "range_max"
	ColPreference   = "Preference"
)

// DefaultGroup is the group of variables without one.
const DefaultGroup = "Other"

var optionalColumns = []string{
	ColLabel, ColDescription, ColGroup, ColSubgroup, ColWeight, ColCluster,
	ColIVariable, ColILabel, ColIDescription, ColIWeight,
	ColRangeMin, ColRangeMax, ColPreference,
}

// Variable is the general definition of one indicator column.
type Variable struct {
	Code        string  `json:"field"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Group       string  `json:"group"`
	Subgroup    string  `json:"subgroup"`
	Weight      float64 `json:"weight"`
}

// Diagnostic reports a structural anomaly found while parsing.
type Diagnostic struct {
	Column  string
	Message string
}

func (d Diagnostic) String() string {
	if d.Column == "" {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Column, d.Message)
}

// entry is one intervention row of the definition table.
type entry struct {
	cluster     string
	field       string
	label       string
	description string
	rangeMin    *float64
	rangeMax    *float64
	weight      *float64
	preference  Preference
}

// Definitions is the parsed variable-definition table. It is immutable after
// Parse and safe for concurrent use.
type Definitions struct {
	variables map[string]Variable
	order     []string
	groups    []string
	clusters  []string
	entries   []entry
}

// Parse validates and converts the variable-definition table. A missing
// variable column is an error; missing optional columns and duplicate codes
// are reported as diagnostics.
func Parse(t table.Table) (*Definitions, []Diagnostic, error) {
	if !t.Has(ColVariable) {
		return nil, nil, eris.Errorf("schema: definition table has no %q column", ColVariable)
	}

	var diags []Diagnostic
	for _, col := range optionalColumns {
		if !t.Has(col) {
			diags = append(diags, Diagnostic{Column: col, Message: "column absent; defaults apply"})
		}
	}

	d := &Definitions{variables: make(map[string]Variable)}
	seenGroup := make(map[string]bool)
	seenCluster := make(map[string]bool)

	for _, row := range t.Rows {
		if g := t.Value(row, ColGroup); g != "" && !seenGroup[g] {
			seenGroup[g] = true
			d.groups = append(d.groups, g)
		}

		if code := t.Value(row, ColVariable); code != "" {
			if _, dup := d.variables[code]; dup {
				diags = append(diags, Diagnostic{Column: ColVariable, Message: fmt.Sprintf("duplicate code %q ignored", code)})
			} else {
				d.variables[code] = Variable{
					Code:        code,
					Label:       orDefault(t.Value(row, ColLabel), code),
					Description: t.Value(row, ColDescription),
					Group:       orDefault(t.Value(row, ColGroup), DefaultGroup),
					Subgroup:    t.Value(row, ColSubgroup),
					Weight:      floatOr(t.Value(row, ColWeight), 1.0),
				}
				d.order = append(d.order, code)
			}
		}

		cluster := t.Value(row, ColCluster)
		if !IsValidCluster(cluster) {
			continue
		}
		if !seenCluster[cluster] {
			seenCluster[cluster] = true
			d.clusters = append(d.clusters, cluster)
		}
		field := t.Value(row, ColIVariable)
		if field == "" {
			continue
		}
		d.entries = append(d.entries, entry{
			cluster:     cluster,
			field:       field,
			label:       orDefault(t.Value(row, ColILabel), field),
			description: t.Value(row, ColIDescription),
			rangeMin:    parseFloat(t.Value(row, ColRangeMin)),
			rangeMax:    parseFloat(t.Value(row, ColRangeMax)),
			weight:      parseFloat(t.Value(row, ColIWeight)),
			preference:  ParsePreference(t.Value(row, ColPreference)),
		})
	}

	return d, diags, nil
}

// Variables returns every variable definition keyed by code.
func (d *Definitions) Variables() map[string]Variable {
	out := make(map[string]Variable, len(d.variables))
	for k, v := range d.variables {
		out[k] = v
	}
	return out
}

// Variable returns the definition for code. Unknown codes get a fallback
// definition whose label is the code itself.
func (d *Definitions) Variable(code string) (Variable, bool) {
	if v, ok := d.variables[code]; ok {
		return v, true
	}
	return Variable{Code: code, Label: code, Group: DefaultGroup, Weight: 1}, false
}

// Codes returns variable codes in table order.
func (d *Definitions) Codes() []string {
	return append([]string(nil), d.order...)
}

// Groups returns the distinct non-empty groups in first-seen order.
func (d *Definitions) Groups() []string {
	return append([]string(nil), d.groups...)
}

// GroupOf returns the group of code, or DefaultGroup.
func (d *Definitions) GroupOf(code string) string {
	v, _ := d.Variable(strings.TrimSpace(code))
	return v.Group
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func floatOr(s string, def float64) float64 {
	if v := parseFloat(s); v != nil {
		return *v
	}
	return def
}
