// Package viewer ties the acquisition service, the shared state store, the
// render pipeline and the flip controller together behind a single facade.
// All state mutations execute on one internal task loop, reproducing the
// cooperative single-consumer scheduling the pipeline's ordering guarantees
// assume.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/wudi/flipbook/fetch"
	"github.com/wudi/flipbook/flip"
	"github.com/wudi/flipbook/observability"
	"github.com/wudi/flipbook/recovery"
	"github.com/wudi/flipbook/render"
	"github.com/wudi/flipbook/source"
	"github.com/wudi/flipbook/state"
)

// DefaultZoomThreshold is the transform magnitude above which the view
// counts as zoomed in.
const DefaultZoomThreshold = 1.05

// Config controls a Viewer.
type Config struct {
	// Location is the document URL, or a path into BundleFS when Bundled
	// is set.
	Location string
	Bundled  bool
	BundleFS fs.FS

	// ProxyEndpoint enables the proxy fallback retrieval path.
	ProxyEndpoint string

	// Opener turns validated payloads into document sources. Required.
	Opener source.Opener

	// HTTP overrides the retrieval transport. Defaults to the standard
	// client.
	HTTP fetch.Doer

	// Recovery selects the page-level render failure policy. Defaults to
	// lenient skip-and-continue.
	Recovery recovery.Strategy

	ZoomThreshold  float64
	SettleDuration time.Duration

	// OnPageChanged fires when the derived current page number or total
	// page count changes.
	OnPageChanged func(current, total int)

	// OnError fires exactly once per failed top-level operation.
	OnError func(msg string)

	Logger observability.Logger
	Tracer observability.Tracer
}

// Viewer is the page-flip book viewer core.
type Viewer struct {
	cfg      Config
	store    *state.Store
	client   *fetch.Client
	pipeline *render.Pipeline
	flip     *flip.Controller
	logger   observability.Logger

	tasks chan task
	done  chan struct{}
	wg    sync.WaitGroup

	cbMu      sync.Mutex
	lastPage  int
	lastTotal int
}

type task struct {
	fn  func() error
	res chan error
}

func New(cfg Config) (*Viewer, error) {
	if cfg.Opener == nil {
		return nil, errors.New("opener required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	if cfg.ZoomThreshold <= 0 {
		cfg.ZoomThreshold = DefaultZoomThreshold
	}

	st := state.NewStore()
	client, err := fetch.NewClient(fetch.Config{
		HTTP:          cfg.HTTP,
		ProxyEndpoint: cfg.ProxyEndpoint,
		Opener:        cfg.Opener,
		Logger:        cfg.Logger,
		Tracer:        cfg.Tracer,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	pipeline, err := render.NewPipeline(render.Config{
		Store:    st,
		Recovery: cfg.Recovery,
		Logger:   cfg.Logger,
		Tracer:   cfg.Tracer,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	controller, err := flip.NewController(flip.Config{
		Store:          st,
		Pipeline:       pipeline,
		SettleDuration: cfg.SettleDuration,
		Logger:         cfg.Logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	v := &Viewer{
		cfg:      cfg,
		store:    st,
		client:   client,
		pipeline: pipeline,
		flip:     controller,
		logger:   cfg.Logger,
		tasks:    make(chan task),
		done:     make(chan struct{}),
		lastPage: -1,
	}
	st.Subscribe(v.onStateChange)
	v.wg.Add(1)
	go v.loop()
	return v, nil
}

// loop is the single consumer of all mutating operations.
func (v *Viewer) loop() {
	defer v.wg.Done()
	for {
		select {
		case <-v.done:
			return
		case t := <-v.tasks:
			t.res <- t.fn()
		}
	}
}

// do runs fn on the task loop and waits for its result.
func (v *Viewer) do(fn func() error) error {
	t := task{fn: fn, res: make(chan error, 1)}
	select {
	case v.tasks <- t:
		return <-t.res
	case <-v.done:
		return errors.New("viewer closed")
	}
}

// Open acquires the configured document, validates it, installs it into the
// store and runs the initial render pass.
func (v *Viewer) Open(ctx context.Context) error {
	return v.do(func() error {
		if err := v.open(ctx); err != nil {
			v.store.Fail(err)
			v.fireError(err)
			return err
		}
		return nil
	})
}

func (v *Viewer) open(ctx context.Context) error {
	if !v.store.TryBusy() {
		return errors.New("open: another operation in progress")
	}
	v.store.SetLoading()

	var (
		data []byte
		err  error
	)
	if v.cfg.Bundled {
		data, err = v.client.LoadBundled(ctx, v.cfg.BundleFS, v.cfg.Location)
	} else {
		data, err = v.client.FetchBytes(ctx, v.cfg.Location)
	}
	if err != nil {
		v.store.ClearBusy()
		return err
	}

	doc, pages, err := v.client.OpenDocument(ctx, data)
	if err != nil {
		v.store.ClearBusy()
		return err
	}

	v.store.InstallDocument(doc, pages)
	v.pipeline.Reset()
	v.store.ClearBusy()

	// Initial warm-up pass: first spread, no explicit target.
	return v.pipeline.LoadPages(ctx, 0, render.NoTarget)
}

// NavigateToPage jumps to the spread containing the 1-based pageNumber.
// Out-of-range pages and calls without a document are silent no-ops. The
// jump discards the whole raster cache before re-rendering.
func (v *Viewer) NavigateToPage(ctx context.Context, pageNumber int) error {
	return v.do(func() error {
		if v.store.Document() == nil {
			return nil
		}
		if pageNumber < 1 || pageNumber > v.store.PageCount() {
			return nil
		}
		spread := pageNumber / 2
		v.pipeline.Reset()
		if err := v.pipeline.LoadPages(ctx, spread, pageNumber); err != nil {
			v.store.Fail(err)
			v.fireError(err)
			return err
		}
		v.store.CommitSpread(spread)
		return nil
	})
}

// SetZoom records the zoom flag derived from the external transform
// magnitude.
func (v *Viewer) SetZoom(scale float64) {
	v.store.SetZoomed(scale > v.cfg.ZoomThreshold)
}

// BeginDrag starts a page-turn drag. See flip.Controller.BeginDrag.
func (v *Viewer) BeginDrag(x, width float64) bool { return v.flip.BeginDrag(x, width) }

// Drag updates an active page-turn drag.
func (v *Viewer) Drag(x float64) { v.flip.Drag(x) }

// EndDrag finishes the drag and starts the settle transition.
func (v *Viewer) EndDrag() { v.flip.EndDrag() }

// Advance steps the settle transition on the task loop. Errors from the
// post-turn lookahead pass surface through OnError without affecting the
// animation's completion.
func (v *Viewer) Advance(ctx context.Context, dt time.Duration) {
	v.do(func() error {
		if err := v.flip.Advance(ctx, dt); err != nil {
			v.store.Fail(err)
			v.fireError(err)
		}
		return nil
	})
}

// Flip exposes the animation controller for frame composition.
func (v *Viewer) Flip() *flip.Controller { return v.flip }

// Pipeline exposes the render pipeline for cache inspection.
func (v *Viewer) Pipeline() *render.Pipeline { return v.pipeline }

// Store exposes the shared state store.
func (v *Viewer) Store() *state.Store { return v.store }

// Close stops the task loop and releases the document.
func (v *Viewer) Close() error {
	close(v.done)
	v.wg.Wait()
	return v.store.Close()
}

// onStateChange runs on the store's dispatch goroutine and drives the
// consumer page-changed callback.
func (v *Viewer) onStateChange(snap state.Snapshot) {
	if v.cfg.OnPageChanged == nil || snap.PageCount == 0 {
		return
	}
	current := snap.CommittedSpread*2 + 1
	total := (snap.PageCount + 1) / 2 * 2

	v.cbMu.Lock()
	changed := current != v.lastPage || total != v.lastTotal
	if changed {
		v.lastPage = current
		v.lastTotal = total
	}
	v.cbMu.Unlock()

	if changed {
		v.cfg.OnPageChanged(current, total)
	}
}

func (v *Viewer) fireError(err error) {
	v.logger.Error("operation failed", observability.Error("err", err))
	if v.cfg.OnError != nil {
		v.cfg.OnError(fmt.Sprintf("%v", err))
	}
}
