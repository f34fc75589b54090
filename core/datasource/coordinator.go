// Package datasource implements the windowed data source: a sparse buffer of
// fetched rows, a fetch coordinator that reconciles out-of-order provider
// responses, and a lazy iterator over the applied range.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/sushant-115/infinitygrid/core/buffer"
	"github.com/sushant-115/infinitygrid/core/span"
	internaltelemetry "github.com/sushant-115/infinitygrid/internal/telemetry"
	"github.com/sushant-115/infinitygrid/pkg/logger"
)

// State is the fetch state of a Coordinator.
type State int

const (
	StateIdle State = iota
	StatePending
)

func (s State) String() string {
	if s == StatePending {
		return "pending"
	}
	return "idle"
}

// Config tunes a Coordinator.
type Config struct {
	// PageSize is the buffer page size. Zero selects buffer.DefaultPageSize.
	PageSize int `yaml:"page_size"`
	// IgnoreStaleResize stops superseded responses from resizing the buffer.
	// They still fill positions that fit inside the current length.
	IgnoreStaleResize bool `yaml:"ignore_stale_resize"`
	// FetchTimeout bounds each provider call. Zero means no deadline.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// token identifies one issued fetch. Only the token held in
// Coordinator.pending may grant readiness.
type token struct {
	generation uint64
	epoch      uint64
	rng        span.Range
	requestID  string
}

type options struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *internaltelemetry.DataSourceMetrics
	onChange func(Event)
}

// Option configures a Coordinator.
type Option func(*options)

// WithLogger sets the logger. The coordinator logs under "datasource".
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer used for one span per provider call.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *internaltelemetry.DataSourceMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithOnChange registers a callback for state changes. It runs outside the
// coordinator lock, on the goroutine that caused the change: the caller of
// RequestRange/ClearAll, or a provider goroutine for fetch resolutions.
func WithOnChange(fn func(Event)) Option {
	return func(o *options) { o.onChange = fn }
}

// Coordinator owns a SparseBuffer and turns range requests into provider
// calls. Every response is merged into the buffer, but only the response to
// the most recently issued request may mark the data source ready.
type Coordinator[T any] struct {
	provider Provider[T]
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *internaltelemetry.DataSourceMetrics
	onChange func(Event)

	mu  sync.Mutex
	buf *buffer.SparseBuffer[T]
	// generation counts issued fetches; epoch counts ClearAll calls. A
	// response from an older epoch is dropped without touching the buffer.
	generation  uint64
	epoch       uint64
	pending     *token
	ready       bool
	viewport    span.Range
	hasViewport bool
	lastErr     error

	inflight sync.WaitGroup
}

// New creates a Coordinator with an empty buffer.
func New[T any](provider Provider[T], cfg Config, opts ...Option) (*Coordinator[T], error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = nooptrace.NewTracerProvider().Tracer("")
	}
	if o.metrics == nil {
		o.metrics = internaltelemetry.NoopDataSourceMetrics()
	}

	return &Coordinator[T]{
		provider: provider,
		cfg:      cfg,
		logger:   logger.OrNop(o.logger).Named("datasource"),
		tracer:   o.tracer,
		metrics:  o.metrics,
		onChange: o.onChange,
		buf:      buffer.New[T](cfg.PageSize),
	}, nil
}

// RequestRange makes r the range the host wants to show. If the buffer already
// holds every position of r the range is applied synchronously and true is
// returned. Otherwise a provider fetch is issued in the background, readiness
// drops to false until that fetch (and not an older one) resolves, and false
// is returned. Earlier in-flight fetches keep running.
func (c *Coordinator[T]) RequestRange(r span.Range) bool {
	r = span.New(r.Start, r.End)

	c.mu.Lock()
	if c.buf.IsFilled(r) {
		c.viewport = r
		c.hasViewport = true
		c.ready = true
		// A cached range supersedes whatever was pending.
		c.pending = nil
		c.mu.Unlock()

		c.metrics.CacheHitsCounter.Add(context.Background(), 1)
		c.logger.Debug("range served from buffer", zap.Stringer("range", r))
		c.emit(Event{Kind: EventReady, Range: r, CacheHit: true})
		return true
	}

	c.generation++
	tok := token{
		generation: c.generation,
		epoch:      c.epoch,
		rng:        r,
		requestID:  uuid.NewString(),
	}
	c.pending = &tok
	c.ready = false
	c.inflight.Add(1)
	c.mu.Unlock()

	c.logger.Debug("issuing fetch",
		zap.Stringer("range", r),
		zap.Uint64("generation", tok.generation),
		zap.String("requestID", tok.requestID))
	c.emit(Event{Kind: EventIssued, Range: r, RequestID: tok.requestID})

	go c.fetch(tok)
	return false
}

func (c *Coordinator[T]) fetch(tok token) {
	defer c.inflight.Done()

	ctx := context.Background()
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}
	ctx, sp := c.tracer.Start(ctx, "datasource.fetch", trace.WithAttributes(
		attribute.Int("range.start", tok.rng.Start),
		attribute.Int("range.end", tok.rng.End),
		attribute.Int64("generation", int64(tok.generation)),
		attribute.String("request.id", tok.requestID),
	))
	defer sp.End()

	c.metrics.RecordIssued(ctx)
	started := time.Now()
	page, err := c.provider.Fetch(ctx, tok.rng)
	elapsed := time.Since(started).Milliseconds()

	if err != nil {
		err = fmt.Errorf("%w: range %s: %w", ErrFetchFailed, tok.rng, err)
		sp.RecordError(err)
		sp.SetStatus(codes.Error, "provider error")
		c.metrics.RecordFailed(ctx, "provider", elapsed)
		c.fail(tok, err)
		return
	}

	stale, err := c.merge(tok, page)
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, "invalid page")
		c.metrics.RecordFailed(ctx, "invalid_page", elapsed)
		c.fail(tok, err)
		return
	}
	sp.SetAttributes(attribute.Bool("stale", stale), attribute.Int("total_length", page.TotalLength))
	c.metrics.RecordResolved(ctx, stale, elapsed)
}

// merge applies a provider page. It reports whether the response was stale.
func (c *Coordinator[T]) merge(tok token, page Page[T]) (bool, error) {
	if err := validatePage(page); err != nil {
		return false, err
	}

	c.mu.Lock()
	if tok.epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("dropping response issued before clear",
			zap.Stringer("range", tok.rng), zap.String("requestID", tok.requestID))
		return true, nil
	}

	current := c.pending != nil && c.pending.generation == tok.generation
	if err := c.applyLocked(page, current); err != nil {
		c.mu.Unlock()
		return !current, err
	}

	var applied span.Range
	if current {
		applied = c.pending.rng
		c.viewport = applied
		c.hasViewport = true
		c.ready = true
		c.pending = nil
		c.lastErr = nil
	}
	length, present := c.buf.Len(), c.buf.PresentCount()
	c.mu.Unlock()

	c.logger.Debug("fetch merged",
		zap.Stringer("range", tok.rng),
		zap.Bool("stale", !current),
		zap.Int("totalLength", length),
		zap.Int("fetchedSize", present),
		zap.String("requestID", tok.requestID))

	c.emit(Event{Kind: EventMerged, Range: tok.rng, Stale: !current, RequestID: tok.requestID})
	if current {
		c.emit(Event{Kind: EventReady, Range: applied, RequestID: tok.requestID})
	}
	return !current, nil
}

// applyLocked resizes and writes in one critical section. Must be called with
// c.mu held.
func (c *Coordinator[T]) applyLocked(page Page[T], current bool) error {
	if !current && c.cfg.IgnoreStaleResize && c.buf.Sized() {
		// Keep only the part that fits the length set by a newer response.
		end := min(page.Start+len(page.Data), c.buf.Len())
		if page.Start >= end {
			return nil
		}
		return c.buf.Write(page.Start, page.Data[:end-page.Start])
	}

	if err := c.buf.Resize(page.TotalLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPage, err)
	}
	c.clampPendingLocked()
	if err := c.buf.Write(page.Start, page.Data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPage, err)
	}
	return nil
}

// clampPendingLocked pulls the pending token's end back inside a shrunken
// buffer.
func (c *Coordinator[T]) clampPendingLocked() {
	if c.pending == nil {
		return
	}
	length := c.buf.Len()
	if c.pending.rng.End >= length {
		c.pending.rng.End = max(c.pending.rng.Start, length-1)
	}
}

func (c *Coordinator[T]) fail(tok token, err error) {
	c.mu.Lock()
	if tok.epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	current := c.pending != nil && c.pending.generation == tok.generation
	if current {
		c.pending = nil
	}
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Error("fetch failed",
		zap.Stringer("range", tok.rng),
		zap.Bool("stale", !current),
		zap.String("requestID", tok.requestID),
		zap.Error(err))
	c.emit(Event{Kind: EventFailed, Range: tok.rng, Stale: !current, Err: err, RequestID: tok.requestID})
}

func validatePage[T any](page Page[T]) error {
	if page.TotalLength < 0 {
		return fmt.Errorf("%w: negative total length %d: %w", ErrInvalidPage, page.TotalLength, buffer.ErrInvalidLength)
	}
	if page.Start < 0 || page.Start+len(page.Data) > page.TotalLength {
		return fmt.Errorf("%w: data [%d,%d) outside total length %d: %w",
			ErrInvalidPage, page.Start, page.Start+len(page.Data), page.TotalLength, buffer.ErrRange)
	}
	return nil
}

func (c *Coordinator[T]) emit(ev Event) {
	if c.onChange != nil {
		c.onChange(ev)
	}
}

// IsFetched reports whether every position of r is in the buffer. It is a
// pure query; the state machine is not touched.
func (c *Coordinator[T]) IsFetched(r span.Range) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.IsFilled(span.New(r.Start, r.End))
}

// IsPageReady is IsFetched under the name the rendering layer uses.
func (c *Coordinator[T]) IsPageReady(r span.Range) bool {
	return c.IsFetched(r)
}

// TotalLength is the collection size reported by the last merged response.
func (c *Coordinator[T]) TotalLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

// Ready reports whether the applied range reflects the latest request.
func (c *Coordinator[T]) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Viewport returns the applied range, if any.
func (c *Coordinator[T]) Viewport() (span.Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport, c.hasViewport
}

// State returns StatePending while the latest request is unresolved.
func (c *Coordinator[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return StatePending
	}
	return StateIdle
}

// Pending returns the range of the current token, if any.
func (c *Coordinator[T]) Pending() (span.Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return span.Range{}, false
	}
	return c.pending.rng, true
}

// PresentCount is the number of fetched positions.
func (c *Coordinator[T]) PresentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.PresentCount()
}

// LastError returns the most recent fetch failure. It is reset when the
// current request resolves successfully.
func (c *Coordinator[T]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearAll empties the buffer and forgets the pending token and the applied
// range. Fetches already in flight finish but their responses are dropped.
func (c *Coordinator[T]) ClearAll() {
	c.mu.Lock()
	c.buf.Clear()
	c.epoch++
	c.pending = nil
	c.ready = false
	c.viewport = span.Range{}
	c.hasViewport = false
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Debug("data source cleared")
	c.emit(Event{Kind: EventCleared})
}

// Wait blocks until every issued fetch has returned from the provider.
func (c *Coordinator[T]) Wait() {
	c.inflight.Wait()
}
