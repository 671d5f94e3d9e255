// Package health runs periodic liveness probes against the portal's
// dependencies (the analysis service and PostgreSQL) and keeps a
// snapshot the /healthz endpoint can serve without blocking.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dependency statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// ProbeFunc checks one dependency. A nil return means healthy.
type ProbeFunc func(ctx context.Context) error

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// DependencyStatus is the snapshot for one probed dependency.
type DependencyStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type dependency struct {
	name      string
	probe     ProbeFunc
	failCount int
	status    DependencyStatus
}

// Checker runs periodic dependency probes.
type Checker struct {
	mu        sync.Mutex
	deps      []*dependency
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Checker with no dependencies registered.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{cfg: cfg, logger: logger}
}

// Register adds a named dependency probe. Not safe to call after Start.
func (c *Checker) Register(name string, probe ProbeFunc) {
	c.deps = append(c.deps, &dependency{
		name:   name,
		probe:  probe,
		status: DependencyStatus{Name: name, Status: StatusUnknown},
	})
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until quit is signalled. An initial round
// runs immediately so the snapshot is populated before the first tick.
func (c *Checker) Start(quit <-chan os.Signal) {
	c.CheckAll(context.Background())

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CheckAll(context.Background())
		case <-quit:
			return
		}
	}
}

// CheckAll probes every registered dependency once.
func (c *Checker) CheckAll(ctx context.Context) {
	c.mu.Lock()
	deps := c.deps
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, d := range deps {
		wg.Add(1)
		go func(d *dependency) {
			defer wg.Done()
			c.checkOne(ctx, d)
		}(d)
	}
	wg.Wait()
}

func (c *Checker) checkOne(ctx context.Context, d *dependency) {
	pctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	err := d.probe(pctx)
	now := time.Now().UTC()

	if c.onMetrics != nil {
		c.onMetrics(err == nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := d.status.Status
	if err == nil {
		d.failCount = 0
		d.status = DependencyStatus{Name: d.name, Status: StatusHealthy, CheckedAt: now}
		if prev == StatusUnhealthy {
			c.logger.Info("dependency recovered", zap.String("dependency", d.name))
		}
		return
	}

	d.failCount++
	status := StatusDegraded
	if d.failCount >= c.cfg.FailThreshold {
		status = StatusUnhealthy
	}
	d.status = DependencyStatus{
		Name:      d.name,
		Status:    status,
		LastError: err.Error(),
		CheckedAt: now,
	}
	if status == StatusUnhealthy && prev != StatusUnhealthy {
		c.logger.Warn("dependency unhealthy",
			zap.String("dependency", d.name),
			zap.Int("consecutive_failures", d.failCount),
			zap.Error(err),
		)
	}
}

// Snapshot returns the current status of every dependency plus an
// overall verdict: unhealthy if any dependency is unhealthy, degraded
// if any is degraded or unknown, healthy otherwise.
func (c *Checker) Snapshot() (overall string, deps []DependencyStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	overall = StatusHealthy
	for _, d := range c.deps {
		deps = append(deps, d.status)
		switch d.status.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded, StatusUnknown:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return overall, deps
}
