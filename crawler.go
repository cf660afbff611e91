package spinneret

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/spinneret/metrics"
)

// Crawler drives a crawl: it seeds the frontier from the spider, runs the
// fetch and parse worker pools connected by a bounded hand-off channel, and
// feeds extracted records through the pipeline chain into the exporters.
//
// Build one with NewBuilder; a Crawler is single-use.
type Crawler[T, S any] struct {
	cfg       Config
	spider    Spider[T, S]
	state     *S
	transport Transport
	mws       []Middleware
	pipelines []Pipeline[T]
	exporters []Exporter[T]
	dedup     DedupStore
	cpStore   CheckpointStore
	logger    *zap.Logger

	stats    *Stats
	frontier *Frontier
	runID    string

	cpSeq       atomic.Int64
	sinceSnap   atomic.Int64
	cpKick      chan struct{}
	openedExp   int
	exportersMu sync.Mutex
}

// Builder assembles a Crawler. Zero-value options fall back to sensible
// defaults: HTTPTransport, an in-memory dedup index, a Nop logger, and a
// fresh zero state.
type Builder[T, S any] struct {
	cfg       Config
	spider    Spider[T, S]
	state     *S
	transport Transport
	mws       []Middleware
	pipelines []Pipeline[T]
	exporters []Exporter[T]
	dedup     DedupStore
	cpStore   CheckpointStore
	logger    *zap.Logger
}

// NewBuilder starts a builder for the given spider.
func NewBuilder[T, S any](spider Spider[T, S]) *Builder[T, S] {
	return &Builder[T, S]{spider: spider}
}

// WithConfig sets the engine knobs.
func (b *Builder[T, S]) WithConfig(cfg Config) *Builder[T, S] {
	b.cfg = cfg
	return b
}

// WithState supplies the shared crawl state passed to every parse
// invocation. The state must be internally synchronized; the engine shares
// it by reference and never clones it.
func (b *Builder[T, S]) WithState(state *S) *Builder[T, S] {
	b.state = state
	return b
}

// WithTransport replaces the default HTTP transport.
func (b *Builder[T, S]) WithTransport(t Transport) *Builder[T, S] {
	b.transport = t
	return b
}

// WithMiddlewares appends interceptors in invocation order. The chain is
// fixed once Build returns.
func (b *Builder[T, S]) WithMiddlewares(mws ...Middleware) *Builder[T, S] {
	b.mws = append(b.mws, mws...)
	return b
}

// WithPipelines appends record processors in invocation order.
func (b *Builder[T, S]) WithPipelines(ps ...Pipeline[T]) *Builder[T, S] {
	b.pipelines = append(b.pipelines, ps...)
	return b
}

// WithExporters appends terminal record writers.
func (b *Builder[T, S]) WithExporters(es ...Exporter[T]) *Builder[T, S] {
	b.exporters = append(b.exporters, es...)
	return b
}

// WithDedupStore replaces the in-memory request dedup index.
func (b *Builder[T, S]) WithDedupStore(d DedupStore) *Builder[T, S] {
	b.dedup = d
	return b
}

// WithCheckpointStore enables checkpointing via the given store. Cadence is
// controlled by Config.CheckpointInterval and Config.CheckpointEvery.
func (b *Builder[T, S]) WithCheckpointStore(s CheckpointStore) *Builder[T, S] {
	b.cpStore = s
	return b
}

// WithLogger sets the structured logger.
func (b *Builder[T, S]) WithLogger(l *zap.Logger) *Builder[T, S] {
	b.logger = l
	return b
}

// Build validates the configuration and constructs the crawler. Invalid
// pool sizes are the only fatal errors; everything later is per-item.
func (b *Builder[T, S]) Build() (*Crawler[T, S], error) {
	if b.spider == nil {
		return nil, fmt.Errorf("spinneret: spider is required")
	}
	cfg, err := b.cfg.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("spinneret: invalid config: %w", err)
	}
	transport := b.transport
	if transport == nil {
		transport = NewHTTPTransport(HTTPTransportConfig{Timeout: cfg.RequestTimeout})
	}
	dedup := b.dedup
	if dedup == nil {
		dedup = NewMemoryDedup()
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	state := b.state
	if state == nil {
		state = new(S)
	}

	stats := NewStats()
	return &Crawler[T, S]{
		cfg:       cfg,
		spider:    b.spider,
		state:     state,
		transport: transport,
		mws:       b.mws,
		pipelines: b.pipelines,
		exporters: b.exporters,
		dedup:     dedup,
		cpStore:   b.cpStore,
		logger:    logger,
		stats:     stats,
		frontier:  NewFrontier(cfg, dedup, stats),
		runID:     uuid.NewString(),
		cpKick:    make(chan struct{}, 1),
	}, nil
}

// Stats exposes the crawl counters; safe to read while the crawl runs.
func (c *Crawler[T, S]) Stats() *Stats { return c.stats }

// State returns the shared crawl state.
func (c *Crawler[T, S]) State() *S { return c.state }

// Frontier exposes the scheduler, mainly for inspection in tests and the
// monitor endpoint.
func (c *Crawler[T, S]) Frontier() *Frontier { return c.frontier }

// Run executes the crawl until the frontier drains and all in-flight work
// completes, or until ctx is canceled. Per-item failures are recorded in
// Stats and never surface here.
func (c *Crawler[T, S]) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.Init()

	if err := c.openExporters(ctx); err != nil {
		return err
	}
	defer c.closeExporters()

	if c.cpStore != nil {
		cp, err := c.cpStore.Load(ctx)
		if err != nil {
			return &CheckpointError{Op: "load", Err: err}
		}
		if cp != nil {
			c.restore(cp)
			c.logger.Info("resumed from checkpoint",
				zap.Int64("seq", cp.Seq),
				zap.Int("frontier_entries", len(cp.Frontier)),
				zap.Int("dedup_keys", len(cp.DedupKeys)),
			)
		}
	}

	for _, req := range c.spider.StartRequests() {
		c.submit(req, "")
	}
	// covers the case where every seed was suppressed by the dedup index
	c.frontier.closeIfIdle()

	cpStop := make(chan struct{})
	var cpWG sync.WaitGroup
	if c.cpStore != nil {
		cpWG.Add(1)
		go c.checkpointLoop(ctx, cpStop, &cpWG)
	}

	handoff := make(chan *Response, c.cfg.HandoffCapacity)

	var fetchers, parsers errgroup.Group
	for range c.cfg.FetchWorkers {
		fetchers.Go(func() error {
			c.fetchLoop(ctx, handoff)
			return nil
		})
	}
	for range c.cfg.ParseWorkers {
		parsers.Go(func() error {
			c.parseLoop(ctx, handoff)
			return nil
		})
	}

	_ = fetchers.Wait()
	close(handoff)
	_ = parsers.Wait()

	close(cpStop)
	cpWG.Wait()

	if err := ctx.Err(); err != nil {
		c.logger.Info("crawl canceled", zap.String("run_id", c.runID))
		return err
	}
	c.logger.Info("crawl complete",
		zap.String("run_id", c.runID),
		zap.Int64("requests_succeeded", c.stats.RequestsSucceeded.Load()),
		zap.Int64("items_scraped", c.stats.ItemsScraped.Load()),
	)
	return nil
}

func (c *Crawler[T, S]) fetchLoop(ctx context.Context, handoff chan<- *Response) {
	for {
		req, err := c.frontier.Dequeue(ctx)
		if err != nil {
			return
		}
		metrics.WorkerActive(1)
		res := c.fetchOne(ctx, req)
		c.frontier.release(req)
		metrics.WorkerActive(-1)
		if res == nil {
			c.finishRequest(req)
			continue
		}
		select {
		case handoff <- res:
		case <-ctx.Done():
			// partial in-flight results are discarded, not committed
			c.finishRequest(req)
			return
		}
	}
}

// fetchOne runs the interceptor chain around the transport. A nil return
// means the request reached a terminal state (dropped, failed, or handed to
// a retry) and produces no parse work.
func (c *Crawler[T, S]) fetchOne(ctx context.Context, req *Request) *Response {
	var res *Response
	entered := len(c.mws)

	for i, mw := range c.mws {
		act, err := mw.BeforeRequest(ctx, req)
		if err != nil {
			c.requestFailed(req, &InterceptorError{Middleware: mw.Name(), Err: err})
			return nil
		}
		switch act.Kind {
		case ActionContinue:
		case ActionDrop:
			c.requestDropped(req, mw.Name())
			return nil
		case ActionShortCircuit:
			res = act.Response
			entered = i
		case ActionRetry:
			c.scheduleRetry(req, act.Delay)
			return nil
		}
		if res != nil {
			break
		}
	}

	if res == nil {
		fetched, err := c.transport.Fetch(ctx, req)
		if err != nil {
			res = &Response{URL: req.URL, Request: req, Err: err}
		} else {
			res = fetched
		}
	}

	// unwind through the layers already entered, innermost first
	for i := entered - 1; i >= 0; i-- {
		act, err := c.mws[i].AfterResponse(ctx, res)
		if err != nil {
			c.requestFailed(req, &InterceptorError{Middleware: c.mws[i].Name(), Err: err})
			return nil
		}
		switch act.Kind {
		case ActionContinue:
		case ActionDrop:
			c.requestDropped(req, c.mws[i].Name())
			return nil
		case ActionShortCircuit:
			res = act.Response
		case ActionRetry:
			c.scheduleRetry(req, act.Delay)
			return nil
		}
	}

	if res.Err != nil {
		c.requestFailed(req, res.Err)
		return nil
	}
	c.stats.RequestsSucceeded.Add(1)
	metrics.ObserveRequest(req.PolitenessKey(), metrics.OutcomeSucceeded, res.Duration)
	return res
}

func (c *Crawler[T, S]) parseLoop(ctx context.Context, handoff <-chan *Response) {
	for {
		select {
		case res, ok := <-handoff:
			if !ok {
				return
			}
			c.parseOne(ctx, res)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Crawler[T, S]) parseOne(ctx context.Context, res *Response) {
	defer c.finishRequest(res.Request)

	out, err := c.invokeParse(ctx, res)
	if err != nil {
		c.stats.ParseErrors.Add(1)
		c.logger.Warn("parse failed", zap.String("url", res.URL), zap.Error(err))
		return
	}
	for _, req := range out.Requests {
		c.submit(req, res.URL)
	}
	for _, item := range out.Items {
		c.processItem(ctx, item)
	}
}

// invokeParse calls user parse logic, converting panics into ParseErrors so
// a misbehaving spider cannot take down a parse worker.
func (c *Crawler[T, S]) invokeParse(ctx context.Context, res *Response) (out *ParseOutput[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &ParseError{URL: res.URL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, perr := c.spider.Parse(ctx, res, c.state)
	if perr != nil {
		return nil, &ParseError{URL: res.URL, Err: perr}
	}
	if out == nil {
		out = NewParseOutput[T]()
	}
	return out, nil
}

func (c *Crawler[T, S]) processItem(ctx context.Context, item T) {
	cur := item
	for _, p := range c.pipelines {
		next, err := p.Process(ctx, cur)
		if err != nil {
			if !errors.Is(err, ErrDropItem) {
				c.stats.ExportErrors.Add(1)
				metrics.ObserveItem("failed")
				c.logger.Warn("pipeline stage failed",
					zap.String("stage", p.Name()), zap.Error(err))
			}
			return
		}
		cur = next
	}
	c.stats.ItemsScraped.Add(1)
	metrics.ObserveItem("scraped")
	for _, exp := range c.exporters {
		if err := exp.Write(ctx, cur); err != nil {
			c.stats.ExportErrors.Add(1)
			c.logger.Warn("export failed",
				zap.String("exporter", exp.Name()),
				zap.Error(&ExportError{Exporter: exp.Name(), Err: err}))
		}
	}
}

// submit enqueues a discovered request, tagging it with its parent so the
// referer middleware can fill in the header.
func (c *Crawler[T, S]) submit(req *Request, parentURL string) {
	if parentURL != "" {
		if _, ok := req.Meta[MetaParentURL]; !ok {
			req.WithMeta(MetaParentURL, parentURL)
		}
	}
	err := c.frontier.Enqueue(req)
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateRequest):
		// counted by the frontier
	case errors.Is(err, ErrFrontierClosed):
		c.logger.Warn("request submitted after close", zap.String("url", req.URL))
	default:
		c.logger.Error("enqueue failed", zap.String("url", req.URL), zap.Error(err))
	}
}

// scheduleRetry re-enqueues the request with an incremented retry count.
// The clone is admitted immediately (keeping the work count above zero) but
// held back from dispatch until the backoff elapses.
func (c *Crawler[T, S]) scheduleRetry(req *Request, backoff time.Duration) {
	clone := req.retryClone(backoff)
	if err := c.frontier.Enqueue(clone); err != nil {
		c.requestFailed(req, fmt.Errorf("retry enqueue: %w", err))
		return
	}
	c.stats.RequestsRetried.Add(1)
	metrics.ObserveRequest(req.PolitenessKey(), metrics.OutcomeRetried, 0)
	c.logger.Debug("request retried",
		zap.String("url", req.URL), zap.Int("retries", clone.Retries))
}

func (c *Crawler[T, S]) requestFailed(req *Request, err error) {
	c.stats.RequestsFailed.Add(1)
	metrics.ObserveRequest(req.PolitenessKey(), metrics.OutcomeFailed, 0)
	c.logger.Warn("request failed", zap.String("url", req.URL), zap.Error(err))
}

func (c *Crawler[T, S]) requestDropped(req *Request, by string) {
	c.stats.RequestsDropped.Add(1)
	metrics.ObserveRequest(req.PolitenessKey(), metrics.OutcomeDropped, 0)
	c.logger.Debug("request dropped",
		zap.String("url", req.URL), zap.String("middleware", by))
}

// finishRequest retires the work unit and feeds the count-based checkpoint
// trigger.
func (c *Crawler[T, S]) finishRequest(req *Request) {
	c.frontier.done(req)
	if c.cpStore != nil && c.cfg.CheckpointEvery > 0 {
		if c.sinceSnap.Add(1) >= int64(c.cfg.CheckpointEvery) {
			c.sinceSnap.Store(0)
			select {
			case c.cpKick <- struct{}{}:
			default:
			}
		}
	}
}

func (c *Crawler[T, S]) checkpointLoop(ctx context.Context, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	var tickC <-chan time.Time
	if c.cfg.CheckpointInterval > 0 {
		ticker := time.NewTicker(c.cfg.CheckpointInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}
	for {
		select {
		case <-stop:
			// final snapshot so an interrupted crawl resumes cleanly
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			c.saveCheckpoint(saveCtx)
			cancel()
			return
		case <-tickC:
			c.saveCheckpoint(ctx)
		case <-c.cpKick:
			c.saveCheckpoint(ctx)
		}
	}
}

// saveCheckpoint takes a fuzzy snapshot without pausing in-flight work.
// Failure skips the snapshot; it is never fatal.
func (c *Crawler[T, S]) saveCheckpoint(ctx context.Context) {
	keys, err := c.dedup.Keys()
	if err != nil {
		c.logger.Warn("checkpoint skipped",
			zap.Error(&CheckpointError{Op: "snapshot", Err: err}))
		return
	}
	cp := &Checkpoint{
		Seq:       c.cpSeq.Add(1),
		RunID:     c.runID,
		Frontier:  c.frontier.snapshot(),
		DedupKeys: keys,
		Stats:     c.stats.Snapshot(),
	}
	if err := c.cpStore.Save(ctx, cp); err != nil {
		c.logger.Warn("checkpoint skipped",
			zap.Error(&CheckpointError{Op: "save", Err: err}))
		return
	}
	c.logger.Debug("checkpoint saved",
		zap.Int64("seq", cp.Seq), zap.Int("frontier_entries", len(cp.Frontier)))
}

// restore re-seeds the dedup index, stats, and frontier from a checkpoint
// before the worker pools start. Every captured entry is re-fetched;
// completed requests stay suppressed through the dedup key set.
func (c *Crawler[T, S]) restore(cp *Checkpoint) {
	for _, key := range cp.DedupKeys {
		if _, err := c.dedup.MarkIfNew(key); err != nil {
			c.logger.Warn("dedup restore failed", zap.Error(err))
		}
	}
	c.stats.Restore(cp.Stats)
	c.cpSeq.Store(cp.Seq)
	for i := range cp.Frontier {
		req := cp.Frontier[i]
		req.SkipDedup = true
		c.submit(&req, "")
	}
}

func (c *Crawler[T, S]) openExporters(ctx context.Context) error {
	for i, exp := range c.exporters {
		if err := exp.Open(ctx); err != nil {
			c.exportersMu.Lock()
			c.openedExp = i
			c.exportersMu.Unlock()
			c.closeExporters()
			return fmt.Errorf("open exporter %s: %w", exp.Name(), err)
		}
	}
	c.exportersMu.Lock()
	c.openedExp = len(c.exporters)
	c.exportersMu.Unlock()
	return nil
}

// closeExporters flushes and closes every opened exporter, even on early
// termination. Close errors are logged, not returned.
func (c *Crawler[T, S]) closeExporters() {
	c.exportersMu.Lock()
	n := c.openedExp
	c.openedExp = 0
	c.exportersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := range n {
		exp := c.exporters[i]
		if err := exp.Close(ctx); err != nil {
			c.logger.Warn("exporter close failed",
				zap.String("exporter", exp.Name()), zap.Error(err))
		}
	}
}
