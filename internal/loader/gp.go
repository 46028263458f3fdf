package loader

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/join"
	"github.com/iwmi/leaf-dss/internal/table"
	"github.com/iwmi/leaf-dss/internal/unit"
)

// GPIndicators reads the GP indicator workbook into a geometry-less
// collection keyed by GP_CODE. A missing workbook is ErrUnavailable.
//
// The workbook's first data row holds human-readable labels and is skipped.
// An unnamed first column is the GP name. Unnamed columns, columns literally
// named "nan", pandas-style ".1" duplicates and repeated headers are
// dropped. GP_CODE comes from the village join CSV by folded GP name.
func (l *Loader) GPIndicators(ctx context.Context) (unit.Collection, error) {
	if err := ctx.Err(); err != nil {
		return unit.Collection{}, eris.Wrap(err, "loader: gp indicators")
	}
	path := l.cfg.Path(l.cfg.GPIndicators)
	if !exists(path) {
		return unit.Collection{}, eris.Wrapf(ErrUnavailable, "gp indicators %s", path)
	}

	start := time.Now()
	t, err := table.ReadXLSX(path, table.XLSXOptions{})
	if err != nil {
		return unit.Collection{}, eris.Wrap(err, "loader: read gp indicators")
	}

	codes, err := l.gpCodes()
	if err != nil {
		return unit.Collection{}, err
	}

	coll := indicatorCollection(t, codes)
	l.log("gp_indicators").Info("loaded gp indicators",
		zap.Int("rows", coll.Len()),
		zap.Int("columns", len(coll.Columns)),
		zap.Bool("gp_codes", codes != nil),
		zap.Duration("elapsed", time.Since(start)))
	return coll, nil
}

// gpCodes maps folded GP names to GP codes from the village join CSV. The
// first row of each code wins and the first code of each name wins. A
// missing file returns nil.
func (l *Loader) gpCodes() (map[string]int64, error) {
	path := l.cfg.Path(l.cfg.VillageGPJoin)
	if !exists(path) {
		l.log("gp_indicators").Warn("village join file not found, gp indicators cannot be joined",
			zap.String("path", path))
		return nil, nil
	}

	t, err := table.ReadCSV(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: read village join")
	}
	if !t.Has(ColGPName) || !t.Has(ColGPCode) {
		return nil, eris.Errorf("loader: village join %s lacks %s/%s columns", path, ColGPName, ColGPCode)
	}

	seenCode := make(map[string]bool)
	out := make(map[string]int64)
	for _, row := range t.Rows {
		raw := t.Value(row, ColGPCode)
		if seenCode[raw] {
			continue
		}
		seenCode[raw] = true

		name, ok := join.KeyFold(t.Value(row, ColGPName))
		if !ok {
			continue
		}
		code, ok := join.NormalizeCode(raw)
		if !ok {
			continue
		}
		if _, dup := out[name]; !dup {
			out[name] = code
		}
	}
	return out, nil
}

func indicatorCollection(t table.Table, codes map[string]int64) unit.Collection {
	header := append([]string(nil), t.Header...)
	if len(header) > 0 && isUnnamed(header[0]) {
		header[0] = ColGPName
	}

	type col struct {
		name string
		idx  int
	}
	var cols []col
	seen := make(map[string]bool)
	var dropped []string
	for i, h := range header {
		if isUnnamed(h) || strings.EqualFold(h, "nan") || strings.HasSuffix(h, ".1") || seen[h] {
			dropped = append(dropped, h)
			continue
		}
		seen[h] = true
		cols = append(cols, col{name: h, idx: i})
	}
	if len(dropped) > 0 {
		zap.L().Debug("loader: dropped gp indicator columns", zap.Strings("columns", dropped))
	}

	coll := unit.Collection{Kind: unit.KindGP, Keys: GPKeys}
	for _, c := range cols {
		coll.Columns = append(coll.Columns, c.name)
	}
	hasBW := seen[ColVillageBW]
	if hasBW {
		coll.AddColumn(ColVillageCount)
	}
	if codes != nil {
		coll.AddColumn(ColGPCode)
	}

	rows := t.Rows
	if len(rows) > 0 {
		rows = rows[1:]
	}
	for _, row := range rows {
		attrs := make(map[string]any, len(coll.Columns))
		for _, c := range cols {
			var raw string
			if c.idx < len(row) {
				raw = strings.TrimSpace(row[c.idx])
			}
			if c.name == ColGPName {
				attrs[c.name] = nilIfEmpty(raw)
				continue
			}
			attrs[c.name] = numeric(raw)
		}
		if hasBW {
			attrs[ColVillageCount] = attrs[ColVillageBW]
		}
		if codes != nil {
			attrs[ColGPCode] = nil
			if name, ok := join.KeyFold(attrs[ColGPName]); ok {
				if code, hit := codes[name]; hit {
					attrs[ColGPCode] = code
				}
			}
		}
		coll.Units = append(coll.Units, unit.Unit{Attrs: attrs})
	}
	return coll
}

func isUnnamed(h string) bool {
	return h == "" || strings.HasPrefix(h, "Unnamed")
}

func numeric(raw string) any {
	if f, ok := unit.Float(strings.ReplaceAll(raw, ",", "")); ok {
		return f
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
