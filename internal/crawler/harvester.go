package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/pipeline"
	"github.com/nao1215/harvester/internal/proxy"
	"github.com/nao1215/harvester/internal/queue"
	"github.com/nao1215/harvester/internal/ratelimit"
)

// Defaults for the orchestrator.
const (
	// DefaultWorkers is the worker pool size.
	DefaultWorkers = 4

	// DefaultPollInterval is how long an idle worker waits before asking
	// the queue again.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultProxyRetryDelay is how long a task waits after being bounced
	// because no healthy proxy was available.
	DefaultProxyRetryDelay = 5 * time.Second

	// cleanupInterval is how often dead proxies are evicted from the pool.
	cleanupInterval = 30 * time.Second
)

// Fetcher retrieves one page, optionally through a proxy. Implemented by
// fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, proxyAddr string) (*model.Page, error)
}

// Harvester runs a crawl session: a bounded pool of workers drains the
// queue, with each fetch gated on the rate limiter and routed through the
// proxy layer.
type Harvester struct {
	queue   *queue.Queue
	limiter *ratelimit.DomainLimiter
	rotator *proxy.Rotator
	geo     *proxy.GeoSelector
	fetcher Fetcher
	pipe    *pipeline.Pipeline
	logger  *slog.Logger

	workers         int
	pollInterval    time.Duration
	proxyRetryDelay time.Duration

	// followLinks enqueues links discovered on fetched pages at low
	// priority, up to maxPages total tasks.
	followLinks bool
	maxPages    int

	// discovered tracks URLs already enqueued through link discovery so
	// the same page is not queued twice.
	mu         sync.Mutex
	discovered map[string]bool
}

// HarvesterOption configures a Harvester.
type HarvesterOption func(*Harvester)

// WithWorkers sets the worker pool size. Default is DefaultWorkers.
func WithWorkers(n int) HarvesterOption {
	return func(h *Harvester) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithPollInterval sets the idle-worker polling interval.
func WithPollInterval(d time.Duration) HarvesterOption {
	return func(h *Harvester) {
		if d > 0 {
			h.pollInterval = d
		}
	}
}

// WithProxyRetryDelay sets how long a task is deferred when no healthy
// proxy is available.
func WithProxyRetryDelay(d time.Duration) HarvesterOption {
	return func(h *Harvester) {
		if d > 0 {
			h.proxyRetryDelay = d
		}
	}
}

// WithGeoSelector enables geo-aware proxy selection. Targets without a
// regional match still use the rotator's round robin.
func WithGeoSelector(g *proxy.GeoSelector) HarvesterOption {
	return func(h *Harvester) {
		h.geo = g
	}
}

// WithPipeline sets the post-fetch processing pipeline. Without one,
// fetched pages are counted but not processed or stored.
func WithPipeline(p *pipeline.Pipeline) HarvesterOption {
	return func(h *Harvester) {
		h.pipe = p
	}
}

// WithFollowLinks enables link discovery: links found on fetched pages are
// enqueued at low priority until maxPages tasks exist in total, seed tasks
// included. Zero or negative maxPages disables discovery.
func WithFollowLinks(maxPages int) HarvesterOption {
	return func(h *Harvester) {
		h.followLinks = maxPages > 0
		h.maxPages = maxPages
	}
}

// WithHarvesterLogger sets a custom logger. Default is slog.Default().
func WithHarvesterLogger(logger *slog.Logger) HarvesterOption {
	return func(h *Harvester) {
		h.logger = logger
	}
}

// New creates a Harvester. rotator may be empty when the operator
// configured no proxies; fetches then go out directly.
func New(q *queue.Queue, limiter *ratelimit.DomainLimiter, rotator *proxy.Rotator, fetcher Fetcher, opts ...HarvesterOption) *Harvester {
	h := &Harvester{
		queue:           q,
		limiter:         limiter,
		rotator:         rotator,
		fetcher:         fetcher,
		workers:         DefaultWorkers,
		pollInterval:    DefaultPollInterval,
		proxyRetryDelay: DefaultProxyRetryDelay,
		discovered:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Run drains the queue with the configured worker pool. It returns when
// every task has reached a terminal state or the context is cancelled.
func (h *Harvester) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cleanupDone chan struct{}
	if h.rotator != nil && h.rotator.Len() > 0 {
		cleanupDone = make(chan struct{})
		go func() {
			defer close(cleanupDone)
			h.cleanupLoop(ctx)
		}()
	}

	g, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < h.workers; i++ {
		g.Go(func() error {
			return h.workerLoop(workerCtx)
		})
	}
	err := g.Wait()

	cancel()
	if cleanupDone != nil {
		<-cleanupDone
	}
	return err
}

// workerLoop pulls and processes tasks until the queue is drained.
func (h *Harvester) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task := h.queue.Dequeue()
		if task == nil {
			if h.queue.Drained() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.pollInterval):
			}
			continue
		}

		h.process(ctx, task)
	}
}

// cleanupLoop periodically evicts proxies past the eviction threshold.
func (h *Harvester) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.rotator.CleanupUnhealthy(); n > 0 {
				h.logger.Info("evicted dead proxies", "count", n)
			}
		}
	}
}

// process runs one attempt of one task: admission, routing, fetch, health
// feedback, pipeline, and the resulting queue transition.
func (h *Harvester) process(ctx context.Context, task *model.Task) {
	domain := model.DomainOf(task.URL)

	if !h.limiter.TryAcquire(domain) {
		retryAfter := h.limiter.Limit(domain).Interval()
		if err := h.queue.Fail(task.ID, model.NewRateLimitError(domain, retryAfter), 0); err != nil {
			h.logger.Error("deferring rate-limited task", "task", task.ID, "error", err)
		}
		return
	}

	proxyAddr, ok := h.selectProxy(task.URL)
	if !ok {
		h.logger.Warn("no healthy proxy, deferring task",
			"task", task.ID,
			"url", task.URL,
			"delay", h.proxyRetryDelay,
		)
		if err := h.queue.Defer(task.ID, h.proxyRetryDelay); err != nil {
			h.logger.Error("deferring task", "task", task.ID, "error", err)
		}
		return
	}

	start := time.Now()
	page, err := h.fetcher.Fetch(ctx, task.URL, proxyAddr)
	duration := time.Since(start)

	h.reportProxyOutcome(proxyAddr, page, err)

	if err != nil {
		h.logger.Debug("fetch failed",
			"task", task.ID,
			"url", task.URL,
			"proxy", proxyAddr,
			"error", err,
		)
		if ferr := h.queue.Fail(task.ID, err, duration); ferr != nil {
			h.logger.Error("recording task failure", "task", task.ID, "error", ferr)
		}
		return
	}

	if h.pipe != nil {
		result := &pipeline.Result{Task: task, Page: page}
		if perr := h.pipe.Execute(ctx, result); perr != nil {
			// The fetch itself succeeded; a processing hiccup does not
			// earn the target another request.
			h.logger.Warn("post-fetch processing incomplete",
				"task", task.ID,
				"url", task.URL,
				"error", perr,
			)
		}
	}

	if cerr := h.queue.Complete(task.ID, duration); cerr != nil {
		h.logger.Error("completing task", "task", task.ID, "error", cerr)
		return
	}

	h.discoverLinks(task, page)
}

// selectProxy picks the egress route for a target. Regional proxies win
// when the geo selector has a healthy match; otherwise the rotator's round
// robin decides. The second return is false when proxies are configured
// but none is healthy; the caller defers the task rather than going
// direct.
func (h *Harvester) selectProxy(rawURL string) (string, bool) {
	if h.rotator == nil || !h.rotator.Configured() {
		// Operator configured no proxies: direct fetch is intended. An
		// evicted-to-empty pool is not that case and falls through so the
		// task gets deferred instead of fetched directly.
		return "", true
	}

	if h.geo != nil {
		if addr, err := h.geo.SelectProxyForURL(rawURL); err == nil && h.rotator.Healthy(addr) {
			return addr, true
		}
	}

	addr, err := h.rotator.NextProxy()
	if err != nil {
		return "", false
	}
	return addr, true
}

// reportProxyOutcome feeds the fetch outcome into the proxy's health
// counter. Any received response counts as proxy success, even an HTTP
// error: the route worked, the target just said no. Only failures the
// classifier attributes to the proxy count against it.
func (h *Harvester) reportProxyOutcome(proxyAddr string, page *model.Page, err error) {
	if proxyAddr == "" || h.rotator == nil {
		return
	}

	if page != nil {
		if rerr := h.rotator.ReportSuccess(proxyAddr); rerr != nil {
			h.logger.Debug("reporting proxy success", "proxy", proxyAddr, "error", rerr)
		}
		return
	}

	var crawlErr *model.CrawlError
	if errors.As(err, &crawlErr) && crawlErr.ProxyAttributable() {
		if rerr := h.rotator.ReportFailure(proxyAddr); rerr != nil {
			h.logger.Debug("reporting proxy failure", "proxy", proxyAddr, "error", rerr)
		}
	}
}

// discoverLinks enqueues links found on a fetched page at low priority,
// bounded by the configured page cap. Links the validator rejects are
// skipped silently; discovery is best effort.
func (h *Harvester) discoverLinks(task *model.Task, page *model.Page) {
	if !h.followLinks || page == nil || len(page.Links) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.discovered[task.URL] = true
	// The cap bounds the session's task total, so seed tasks count
	// against it alongside discovered links.
	total := h.queue.Stats().Total
	for _, link := range page.Links {
		if total >= h.maxPages {
			return
		}
		if h.discovered[link] {
			continue
		}
		h.discovered[link] = true

		if _, err := h.queue.Enqueue(link, model.PriorityLow); err != nil {
			continue
		}
		total++
	}
}

// Stats returns the queue's aggregate statistics.
func (h *Harvester) Stats() model.QueueStatistics {
	return h.queue.Stats()
}
