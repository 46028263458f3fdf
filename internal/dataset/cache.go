// Package dataset assembles the joined block and GP collections and keeps
// them, with the variable definitions, for the life of the process.
package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iwmi/leaf-dss/internal/join"
	"github.com/iwmi/leaf-dss/internal/loader"
	"github.com/iwmi/leaf-dss/internal/metrics"
	"github.com/iwmi/leaf-dss/internal/schema"
	"github.com/iwmi/leaf-dss/internal/unit"
)

// Source reads the raw datasets. *loader.Loader implements it.
type Source interface {
	Blocks(ctx context.Context) (unit.Collection, error)
	DistrictMapping(ctx context.Context) (map[int64]string, error)
	GPGeometry(ctx context.Context) (unit.Collection, error)
	GPIndicators(ctx context.Context) (unit.Collection, error)
	GPBlockMapping(ctx context.Context) (map[string]string, error)
	Definitions(ctx context.Context) (*schema.Definitions, []schema.Diagnostic, error)
}

var _ Source = (*loader.Loader)(nil)

// lazy computes a value once. Failures are not stored, so the next caller
// retries.
type lazy[T any] struct {
	mu  sync.Mutex
	val atomic.Pointer[T]
}

func (l *lazy[T]) get(load func() (T, error)) (T, error) {
	if p := l.val.Load(); p != nil {
		return *p, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.val.Load(); p != nil {
		return *p, nil
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	l.val.Store(&v)
	return v, nil
}

type definitions struct {
	defs  *schema.Definitions
	diags []schema.Diagnostic
}

// Cache owns the canonical collections. Returned collections are shared and
// must not be modified; callers clone before writing.
type Cache struct {
	src        Source
	gpDistrict string

	rawBlocks    lazy[unit.Collection]
	districts    lazy[map[int64]string]
	gpGeometry   lazy[unit.Collection]
	gpIndicators lazy[unit.Collection]
	gpBlocks     lazy[map[string]string]
	defs         lazy[definitions]
	blocks       lazy[unit.Collection]
	gps          lazy[unit.Collection]
}

// New creates an empty cache. gpDistrict is the district every GP belongs
// to.
func New(src Source, gpDistrict string) *Cache {
	return &Cache{src: src, gpDistrict: gpDistrict}
}

func observed[T any](dataset string, load func() (T, error)) func() (T, error) {
	return func() (T, error) {
		start := time.Now()
		v, err := load()
		elapsed := time.Since(start)
		metrics.ObserveLoad(dataset, elapsed, err)

		log := zap.L().With(zap.String("component", "dataset"), zap.String("dataset", dataset))
		if err != nil {
			log.Debug("dataset load failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		} else {
			log.Info("dataset cached", zap.Duration("elapsed", elapsed))
		}
		return v, err
	}
}

// Blocks returns the block collection with district names attached.
func (c *Cache) Blocks(ctx context.Context) (unit.Collection, error) {
	return c.blocks.get(observed("blocks", func() (unit.Collection, error) {
		raw, err := c.rawBlocks.get(func() (unit.Collection, error) { return c.src.Blocks(ctx) })
		if err != nil {
			return unit.Collection{}, eris.Wrap(err, "dataset: block geometry")
		}
		districts, err := c.districts.get(func() (map[int64]string, error) { return c.src.DistrictMapping(ctx) })
		if err != nil {
			return unit.Collection{}, eris.Wrap(err, "dataset: district mapping")
		}

		out := raw.Clone()
		if len(districts) > 0 && out.HasColumn(loader.ColDistrictID) {
			join.Attach(&out, join.Lookup[int64, string]{
				Source:  loader.ColDistrictID,
				Target:  loader.ColDistName,
				Mapping: districts,
				Key:     join.NormalizeCode,
			})
		}
		return out, nil
	}))
}

// GPs returns the GP collection: geometry left-joined with the indicator
// workbook, the configured district and block names. It returns
// loader.ErrUnavailable when the GP geometry is absent.
func (c *Cache) GPs(ctx context.Context) (unit.Collection, error) {
	return c.gps.get(observed("gps", func() (unit.Collection, error) {
		geometry, err := c.gpGeometry.get(func() (unit.Collection, error) { return c.src.GPGeometry(ctx) })
		if err != nil {
			return unit.Collection{}, eris.Wrap(err, "dataset: gp geometry")
		}

		indicators, err := c.gpIndicators.get(func() (unit.Collection, error) { return c.src.GPIndicators(ctx) })
		if errors.Is(err, loader.ErrUnavailable) {
			zap.L().Warn("dataset: gp indicators unavailable, gp units carry geometry only", zap.Error(err))
			indicators = unit.Collection{Kind: unit.KindGP}
		} else if err != nil {
			return unit.Collection{}, eris.Wrap(err, "dataset: gp indicators")
		}

		blocks, err := c.gpBlocks.get(func() (map[string]string, error) { return c.src.GPBlockMapping(ctx) })
		if err != nil {
			return unit.Collection{}, eris.Wrap(err, "dataset: gp block mapping")
		}

		out := join.Left(geometry, indicators, join.Options{
			Key:          loader.ColGPCode,
			DropFromBase: []string{loader.ColVillageCount},
		})
		out.Kind = unit.KindGP
		out.Keys = loader.GPKeys
		join.SetConstant(&out, loader.ColDistName, c.gpDistrict)
		join.Attach(&out, join.Lookup[string, string]{
			Source:    loader.ColGPName,
			Target:    loader.ColGPBlockName,
			Mapping:   blocks,
			Key:       join.KeyFold,
			Transform: join.Title,
			Missing:   "",
		})
		return out, nil
	}))
}

// GPAvailable reports whether the GP level can be served.
func (c *Cache) GPAvailable(ctx context.Context) bool {
	_, err := c.GPs(ctx)
	return err == nil
}

// Collection returns the collection for kind.
func (c *Cache) Collection(ctx context.Context, kind unit.Kind) (unit.Collection, error) {
	switch kind {
	case unit.KindBlock:
		return c.Blocks(ctx)
	case unit.KindGP:
		return c.GPs(ctx)
	}
	return unit.Collection{}, eris.Errorf("dataset: unknown level %q", kind)
}

// Definitions returns the parsed variable definitions.
func (c *Cache) Definitions(ctx context.Context) (*schema.Definitions, error) {
	d, err := c.definitions(ctx)
	return d.defs, err
}

// Diagnostics returns the structural problems found in the definitions.
func (c *Cache) Diagnostics(ctx context.Context) ([]schema.Diagnostic, error) {
	d, err := c.definitions(ctx)
	return d.diags, err
}

func (c *Cache) definitions(ctx context.Context) (definitions, error) {
	return c.defs.get(observed("definitions", func() (definitions, error) {
		defs, diags, err := c.src.Definitions(ctx)
		if err != nil {
			return definitions{}, eris.Wrap(err, "dataset: definitions")
		}
		for _, d := range diags {
			zap.L().Warn("dataset: variable definitions", zap.String("diagnostic", d.String()))
		}
		return definitions{defs: defs, diags: diags}, nil
	}))
}

// InterventionConfig expands every intervention against the units of one
// level. Variables without an explicit range take the level's observed range.
func (c *Cache) InterventionConfig(ctx context.Context, kind unit.Kind) (map[string][]schema.VariableConfig, error) {
	defs, err := c.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	coll, err := c.Collection(ctx, kind)
	if err != nil {
		return nil, err
	}
	return defs.InterventionConfig(coll), nil
}

// Intervention returns one intervention expanded against the units of one
// level, so default ranges match the collection being scored.
func (c *Cache) Intervention(ctx context.Context, name string, kind unit.Kind) (schema.Intervention, error) {
	defs, err := c.Definitions(ctx)
	if err != nil {
		return schema.Intervention{}, err
	}
	coll, err := c.Collection(ctx, kind)
	if err != nil {
		return schema.Intervention{}, err
	}
	return defs.Intervention(name, coll)
}

// Warm loads every dataset in parallel. A missing GP level is logged and
// not returned.
func (c *Cache) Warm(ctx context.Context) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := c.Blocks(gctx)
		return err
	})
	g.Go(func() error {
		_, err := c.Definitions(gctx)
		return err
	})
	g.Go(func() error {
		_, err := c.GPs(gctx)
		if errors.Is(err, loader.ErrUnavailable) {
			zap.L().Info("dataset: gp level unavailable", zap.Error(err))
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "dataset: warm")
	}
	zap.L().Info("dataset: cache warm", zap.Duration("elapsed", time.Since(start)))
	return nil
}
