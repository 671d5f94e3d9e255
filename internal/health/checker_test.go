package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testChecker() *Checker {
	return New(Config{
		CheckInterval: time.Minute,
		ProbeTimeout:  time.Second,
		FailThreshold: 3,
	}, zap.NewNop())
}

func TestCheckAllHealthy(t *testing.T) {
	c := testChecker()
	c.Register("analysis", func(context.Context) error { return nil })
	c.Register("postgres", func(context.Context) error { return nil })

	c.CheckAll(context.Background())

	overall, deps := c.Snapshot()
	if overall != StatusHealthy {
		t.Errorf("overall = %q, want healthy", overall)
	}
	for _, d := range deps {
		if d.Status != StatusHealthy || d.CheckedAt.IsZero() {
			t.Errorf("dependency %s = %+v", d.Name, d)
		}
	}
}

func TestFailThreshold(t *testing.T) {
	c := testChecker()
	probeErr := errors.New("connection refused")
	c.Register("analysis", func(context.Context) error { return probeErr })

	// Below the threshold the dependency is degraded, not unhealthy.
	c.CheckAll(context.Background())
	c.CheckAll(context.Background())
	overall, deps := c.Snapshot()
	if overall != StatusDegraded || deps[0].Status != StatusDegraded {
		t.Fatalf("after 2 failures: overall=%q dep=%q", overall, deps[0].Status)
	}

	c.CheckAll(context.Background())
	overall, deps = c.Snapshot()
	if overall != StatusUnhealthy || deps[0].Status != StatusUnhealthy {
		t.Fatalf("after 3 failures: overall=%q dep=%q", overall, deps[0].Status)
	}
	if deps[0].LastError != "connection refused" {
		t.Errorf("last error = %q", deps[0].LastError)
	}
}

func TestRecoveryResetsFailCount(t *testing.T) {
	c := testChecker()
	var fail bool
	c.Register("analysis", func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	fail = true
	c.CheckAll(context.Background())
	c.CheckAll(context.Background())
	fail = false
	c.CheckAll(context.Background())

	overall, _ := c.Snapshot()
	if overall != StatusHealthy {
		t.Fatalf("overall = %q after recovery", overall)
	}

	// A single new failure starts the count from zero again.
	fail = true
	c.CheckAll(context.Background())
	_, deps := c.Snapshot()
	if deps[0].Status != StatusDegraded {
		t.Errorf("status = %q, want degraded (fail count was reset)", deps[0].Status)
	}
}

func TestUnknownBeforeFirstCheck(t *testing.T) {
	c := testChecker()
	c.Register("analysis", func(context.Context) error { return nil })

	overall, deps := c.Snapshot()
	if overall != StatusDegraded || deps[0].Status != StatusUnknown {
		t.Errorf("pre-check snapshot: overall=%q dep=%q", overall, deps[0].Status)
	}
}

func TestMetricsCallback(t *testing.T) {
	c := testChecker()
	c.Register("ok", func(context.Context) error { return nil })
	c.Register("bad", func(context.Context) error { return errors.New("x") })

	var mu = make(chan bool, 4)
	c.SetMetricsRecord(func(success bool) { mu <- success })

	c.CheckAll(context.Background())

	var successes, failures int
	for i := 0; i < 2; i++ {
		if <-mu {
			successes++
		} else {
			failures++
		}
	}
	if successes != 1 || failures != 1 {
		t.Errorf("metrics: %d successes, %d failures", successes, failures)
	}
}
