// Package workload drives randomized churn against many independent pools
// at once, one goroutine per pool, and checks pool accounting as it goes.
package workload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/genpool/pkg/config"
	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/metrics"
	"github.com/ajitpratap0/genpool/pkg/observability"
	"github.com/ajitpratap0/genpool/pkg/pool"
)

// batchSize is the number of operations between cancellation checks and
// rate limiter waits.
const batchSize = 256

// maxPending bounds the outstanding tickets per pool.
const maxPending = 8

// Item is the value churned through each pool.
type Item struct {
	ID    uint64
	Owner int
	Data  [6]uint64
}

// Report summarizes one pool's run.
type Report struct {
	Pool      string        `json:"pool"`
	Ops       int64         `json:"ops"`
	Spawns    int64         `json:"spawns"`
	Frees     int64         `json:"frees"`
	Reserves  int64         `json:"reserves"`
	PutBacks  int64         `json:"put_backs"`
	Forgets   int64         `json:"forgets"`
	Alive     uint32        `json:"alive"`
	Capacity  uint32        `json:"capacity"`
	Duration  time.Duration `json:"duration"`
	OpsPerSec float64       `json:"ops_per_sec"`
}

// Result aggregates a run.
type Result struct {
	Reports  []Report      `json:"reports"`
	TotalOps int64         `json:"total_ops"`
	Duration time.Duration `json:"duration"`
	Before   ResourceUsage `json:"before"`
	After    ResourceUsage `json:"after"`
	PeakRSS  uint64        `json:"peak_rss"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithCollector reports pool events and run durations to c.
func WithCollector(c *metrics.PoolCollector) Option {
	return func(r *Runner) { r.collector = c }
}

// WithLogger sets the run logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithSampleInterval sets how often process memory is sampled. Zero
// disables sampling.
func WithSampleInterval(d time.Duration) Option {
	return func(r *Runner) { r.sampleEvery = d }
}

// Runner executes a churn workload.
type Runner struct {
	cfg         config.WorkloadConfig
	poolCfg     config.PoolConfig
	collector   *metrics.PoolCollector
	logger      *zap.Logger
	sampleEvery time.Duration
}

// NewRunner validates the configuration and builds a runner.
func NewRunner(cfg config.WorkloadConfig, poolCfg config.PoolConfig, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := poolCfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:         cfg,
		poolCfg:     poolCfg,
		logger:      zap.NewNop(),
		sampleEvery: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run churns every pool concurrently. The first pool to fail cancels the
// others.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	ol := observability.NewOperationLogger(r.logger, "workload")
	ol.LogStart("starting workload",
		zap.Int("pools", r.cfg.Pools),
		zap.Int("ops_per_pool", r.cfg.OpsPerPool),
		zap.Int64("seed", r.cfg.Seed))
	progress := observability.NewOpsProgress(ol, int64(r.cfg.Pools)*int64(r.cfg.OpsPerPool))

	result := &Result{Reports: make([]Report, r.cfg.Pools)}

	var monitor *ResourceMonitor
	if r.sampleEvery > 0 {
		m, err := NewResourceMonitor()
		if err != nil {
			r.logger.Warn("resource monitoring unavailable", zap.Error(err))
		} else {
			monitor = m
			result.Before = monitor.Sample(ctx)
			watchCtx, stopWatch := context.WithCancel(ctx)
			defer stopWatch()
			go monitor.Watch(watchCtx, r.sampleEvery)
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Pools; i++ {
		g.Go(func() error {
			rep, err := r.runPool(gctx, i, progress)
			result.Reports[i] = rep
			if err != nil {
				progress.RecordError()
			}
			return err
		})
	}
	err := g.Wait()
	result.Duration = time.Since(start)

	for _, rep := range result.Reports {
		result.TotalOps += rep.Ops
	}
	if monitor != nil {
		result.After = monitor.Sample(context.WithoutCancel(ctx))
		result.PeakRSS = monitor.PeakRSS()
	}

	if err != nil {
		ol.LogError("workload failed", err)
		return result, err
	}
	progress.LogFinal()
	return result, nil
}

type pending struct {
	ticket *pool.Ticket[Item]
	value  Item
}

// churn holds the per-pool state of a run.
type churn struct {
	p       *pool.Pool[Item]
	rng     *rand.Rand
	owner   int
	live    []pool.Handle[Item]
	pending []pending
	stale   pool.Handle[Item]
	nextID  uint64
	rep     *Report
}

func (r *Runner) runPool(ctx context.Context, idx int, progress *observability.OpsProgress) (Report, error) {
	name := fmt.Sprintf("%s-%d", r.poolCfg.Name, idx)
	rep := Report{Pool: name}

	opts, err := r.poolCfg.Options()
	if err != nil {
		return rep, err
	}
	opts = append(opts, pool.WithName(name), pool.WithLogger(r.logger))
	if r.collector != nil {
		opts = append(opts, pool.WithObserver(r.collector))
	}

	c := &churn{
		p:     pool.New[Item](opts...),
		rng:   rand.New(rand.NewPCG(uint64(r.cfg.Seed), uint64(idx))),
		owner: idx,
		rep:   &rep,
	}

	var limiter *rate.Limiter
	burst := batchSize
	if r.cfg.IsRateLimited() {
		burst = min(batchSize, r.cfg.RatePerSec)
		limiter = rate.NewLimiter(rate.Limit(r.cfg.RatePerSec), burst)
	}

	var throughput *metrics.ThroughputTracker
	if r.collector != nil {
		throughput = r.collector.NewThroughputTracker(name)
	}

	timer := metrics.NewTimer(name)
	err = observability.NewPoolTracer(name).TraceBatch(ctx, r.cfg.OpsPerPool, "churn", func(ctx context.Context) error {
		remaining := r.cfg.OpsPerPool
		for remaining > 0 {
			n := min(burst, remaining)
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return errors.Wrap(err, errors.ErrorTypeTimeout, "workload cancelled").WithDetail("pool", name)
				}
			} else if err := ctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeTimeout, "workload cancelled").WithDetail("pool", name)
			}
			for j := 0; j < n; j++ {
				if err := c.step(r.cfg.FreeRatio, r.cfg.ReserveRatio); err != nil {
					return err
				}
			}
			rep.Ops += int64(n)
			remaining -= n
			progress.Add(int64(n))
			if throughput != nil {
				throughput.Increment(int64(n))
			}
		}
		return c.finish()
	})

	rep.Duration = timer.Stop()
	if rep.Duration > 0 {
		rep.OpsPerSec = float64(rep.Ops) / rep.Duration.Seconds()
	}
	rep.Alive = c.p.AliveCount()
	rep.Capacity = c.p.Capacity()
	if r.collector != nil {
		r.collector.ObserveRun(timer.Name(), rep.Duration)
		throughput.GetAndReset()
	}
	if err != nil {
		if c.p.OutstandingTickets() > 0 {
			c.forgetPending()
		}
		return rep, err
	}
	r.logger.Debug("pool run complete",
		zap.String("pool", name),
		zap.Int64("ops", rep.Ops),
		zap.Uint32("alive", rep.Alive),
		zap.Uint32("capacity", rep.Capacity))
	return rep, nil
}

// step applies one random operation and checks its effect.
func (c *churn) step(freeRatio, reserveRatio float64) error {
	if len(c.pending) > 0 && (len(c.pending) >= maxPending || c.rng.IntN(4) == 0) {
		return c.resolve()
	}

	x := c.rng.Float64()
	switch {
	case x < freeRatio && len(c.live) > 0:
		i := c.rng.IntN(len(c.live))
		h := c.live[i]
		c.live[i] = c.live[len(c.live)-1]
		c.live = c.live[:len(c.live)-1]
		v := c.p.Free(h)
		if v.Owner != c.owner {
			return c.corrupt("freed value belongs to pool %d", v.Owner)
		}
		c.stale = h
		c.rep.Frees++
	case x < freeRatio+reserveRatio && len(c.live) > 0:
		i := c.rng.IntN(len(c.live))
		h := c.live[i]
		c.live[i] = c.live[len(c.live)-1]
		c.live = c.live[:len(c.live)-1]
		t, v := c.p.TakeReserve(h)
		if c.p.IsValidHandle(h) {
			return c.corrupt("handle %v resolves while reserved", h)
		}
		c.pending = append(c.pending, pending{ticket: t, value: v})
		c.rep.Reserves++
	default:
		c.nextID++
		v := Item{ID: c.nextID, Owner: c.owner}
		v.Data[0] = c.rng.Uint64()
		h := c.p.Spawn(v)
		if h == c.stale {
			return c.corrupt("spawn returned stale handle %v", h)
		}
		if got := c.p.Borrow(h); got.ID != v.ID {
			return c.corrupt("handle %v resolves to item %d, want %d", h, got.ID, v.ID)
		}
		c.live = append(c.live, h)
		c.rep.Spawns++
	}

	if c.stale.IsSome() && c.p.IsValidHandle(c.stale) {
		return c.corrupt("freed handle %v still resolves", c.stale)
	}
	return nil
}

// resolve settles the oldest ticket: usually a put-back, sometimes a forget.
func (c *churn) resolve() error {
	pd := c.pending[0]
	c.pending = c.pending[1:]
	if c.rng.IntN(8) == 0 {
		c.p.ForgetTicket(pd.ticket)
		c.rep.Forgets++
		return nil
	}
	h := c.p.PutBack(pd.ticket, pd.value)
	if got := c.p.Borrow(h); got.ID != pd.value.ID {
		return c.corrupt("put back %v resolves to item %d, want %d", h, got.ID, pd.value.ID)
	}
	c.live = append(c.live, h)
	c.rep.PutBacks++
	return nil
}

func (c *churn) finish() error {
	for len(c.pending) > 0 {
		if err := c.resolve(); err != nil {
			return err
		}
	}
	if err := c.p.VerifyTickets(); err != nil {
		return err
	}
	if alive := c.p.AliveCount(); int(alive) != len(c.live) {
		return c.corrupt("pool reports %d alive values, %d tracked", alive, len(c.live))
	}
	for _, h := range c.live {
		if !c.p.IsValidHandle(h) {
			return c.corrupt("live handle %v does not resolve", h)
		}
	}
	return nil
}

func (c *churn) forgetPending() {
	for _, pd := range c.pending {
		c.p.ForgetTicket(pd.ticket)
	}
	c.pending = nil
}

func (c *churn) corrupt(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeInternal, format, args...).
		WithDetail("pool", c.p.Name())
}
