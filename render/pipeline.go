// Package render implements the incremental page-render pipeline: it decides
// which source pages must be rasterized for the current navigation intent,
// rasterizes them in ascending order, and appends the results to the raster
// cache exactly once per index.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/flipbook/observability"
	"github.com/wudi/flipbook/recovery"
	"github.com/wudi/flipbook/source"
	"github.com/wudi/flipbook/state"
)

// NoTarget is passed as the target page when a load has no explicit
// navigation target.
const NoTarget = -1

// warmupPages is the number of pages guaranteed on an initial load (the
// first two spreads plus one page ahead).
const warmupPages = 6

// lookahead is the number of pages kept rasterized beyond the cache or
// beyond an explicit target page.
const lookahead = 4

// RenderError reports a failed rasterization of a single page.
type RenderError struct {
	PageIndex int
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.PageIndex, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Config controls a Pipeline.
type Config struct {
	Store *state.Store

	// Recovery decides how page-level rasterization failures are handled.
	// Defaults to the lenient skip-and-continue strategy.
	Recovery recovery.Strategy

	Logger observability.Logger
	Tracer observability.Tracer
}

// Pipeline owns the raster cache and the rendered-index set. A generation
// counter invalidates in-flight passes when the cache is reset: a pass
// captures the generation at entry and re-checks it before every append, so
// late completions from a superseded pass are discarded instead of applied.
type Pipeline struct {
	store    *state.Store
	strategy recovery.Strategy
	logger   observability.Logger
	tracer   observability.Tracer

	mu       sync.Mutex
	gen      uint64
	cache    []*source.Raster
	rendered map[int]bool
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	return &Pipeline{
		store:    cfg.Store,
		strategy: cfg.Recovery,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		rendered: make(map[int]bool),
	}, nil
}

// LoadPages guarantees that the leading pages required by the given spread
// index (and explicit target page, when supplied) are rasterized. It is a
// no-op when no document is installed or another operation holds the busy
// guard. Pages are appended to the cache in strictly ascending source-index
// order.
func (p *Pipeline) LoadPages(ctx context.Context, spreadIndex, targetPage int) error {
	doc := p.store.Document()
	if doc == nil {
		return nil
	}
	if !p.store.TryBusy() {
		return nil
	}
	defer p.store.ClearBusy()

	ctx, span := p.tracer.StartSpan(ctx, "render.load_pages")
	defer span.Finish()

	p.mu.Lock()
	gen := p.gen
	cached := len(p.cache)
	p.mu.Unlock()

	pageCount := p.store.PageCount()
	budget := pageBudget(spreadIndex, targetPage, cached)

	jobID := uuid.NewString()
	log := p.logger.With(observability.String("job", jobID))
	log.Debug("render pass started",
		observability.Int("spread", spreadIndex),
		observability.Int("target", targetPage),
		observability.Int("budget", budget))
	start := time.Now()

	appended := 0
	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			span.SetError(err)
			return err
		}
		if i >= pageCount {
			break
		}
		if !p.claim(gen, i) {
			if p.stale(gen) {
				log.Debug("render pass superseded", observability.Int("page", i))
				return nil
			}
			continue
		}

		raster, err := doc.RenderPage(ctx, i, source.RenderScale, source.RenderScale)
		if err != nil {
			loc := recovery.Location{PageIndex: i, Stage: "rasterize"}
			if p.strategy.OnError(err, loc) == recovery.ActionFail {
				rerr := fmt.Errorf("load pages: %w", &RenderError{PageIndex: i, Err: err})
				span.SetError(rerr)
				return rerr
			}
			continue
		}

		if !p.append(gen, i, raster, pageCount) {
			log.Debug("discarding stale raster", observability.Int("page", i))
			return nil
		}
		appended++
	}

	// A new spread boundary may have appeared; the flip controller must
	// re-settle against it.
	p.store.SetSettled(false)
	if targetPage >= 0 {
		p.store.CommitSpread(targetPage / 2)
	}

	log.Info("render pass finished",
		observability.Int("pages", appended),
		observability.Int("cache", p.CacheLen()),
		observability.Int64("ms", time.Since(start).Milliseconds()))
	return nil
}

// pageBudget computes how many leading source pages must be guaranteed.
func pageBudget(spreadIndex, targetPage, cached int) int {
	if targetPage >= 0 {
		return lookahead + targetPage
	}
	if spreadIndex <= 1 {
		return warmupPages
	}
	return lookahead + cached
}

// claim marks index i as rendered-or-in-flight. It returns false when the
// index is already claimed or the pass generation is stale.
func (p *Pipeline) claim(gen uint64, i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || p.rendered[i] {
		return false
	}
	p.rendered[i] = true
	return true
}

func (p *Pipeline) stale(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen != gen
}

// append adds a raster to the cache, applying the cover and odd-tail
// padding rules. It returns false when the pass generation went stale and
// the raster was discarded.
func (p *Pipeline) append(gen uint64, i int, r *source.Raster, pageCount int) bool {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return false
	}
	p.cache = append(p.cache, r)
	if i == 0 && pageCount == 2 {
		// Two-page documents present the first page alone as the cover
		// spread; the duplicate fills its left half.
		p.cache = append(p.cache, r)
	}
	if i == pageCount-1 && pageCount%2 == 1 {
		p.cache = append(p.cache, &source.Raster{
			Image:   r.Image,
			Width:   r.Width,
			Height:  r.Height,
			Padding: true,
		})
	}
	n := len(p.cache)
	p.mu.Unlock()

	p.store.SetCacheLen(n)
	return true
}

// Reset discards the raster cache and the rendered-index set and
// invalidates any in-flight render pass.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.gen++
	p.cache = nil
	p.rendered = make(map[int]bool)
	p.mu.Unlock()

	p.store.SetCacheLen(0)
}

// CacheLen returns the number of cache entries, padding included.
func (p *Pipeline) CacheLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// Rendered reports whether index i is in the rendered-index set.
func (p *Pipeline) Rendered(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rendered[i]
}

// Raster returns the cache entry at position i.
func (p *Pipeline) Raster(i int) (*source.Raster, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.cache) {
		return nil, false
	}
	return p.cache[i], true
}

// Snapshot copies the cache sequence.
func (p *Pipeline) Snapshot() []*source.Raster {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*source.Raster, len(p.cache))
	copy(out, p.cache)
	return out
}

// ShowLastPage reports whether the final cache entry is a real page. It is
// false when the entry is the padding duplicate of an odd-page document.
func (p *Pipeline) ShowLastPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.cache); n > 0 {
		return !p.cache[n-1].Padding
	}
	return true
}
