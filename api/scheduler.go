/*
scheduler.go - Config-change recalculation scheduler

PURPOSE:
  Periodically checks the stored payroll config version and, when it has
  changed, recalculates the current month for every stored malla grid.
  A payroll admin who edits a multiplier therefore sees the month's
  records follow without triggering anything by hand.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The version seen at Start is the baseline; only later changes trigger
  - A failed run keeps the old baseline, so the next tick retries it
  - Days that failed with a retryable error (holiday lookup down) are kept
    and retried on later ticks with the code the grid holds at that time,
    until they succeed or fail for a non-retryable reason
  - Closed days are skipped by the recalculator; they are final

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - CompanyID: Restrict runs to one company (empty = every company)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRecalcScheduler(store, store, handler.Recalculator, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Recalculate endpoint (manual batch)
  - malla/recalc.go: Recalculator
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/malla"
)

// ConfigVersionSource reports the newest stored config version.
type ConfigVersionSource interface {
	LatestConfigVersion(ctx context.Context) (int, error)
}

// MonthRecalculator runs a month batch.
type MonthRecalculator interface {
	RecalculateMonth(ctx context.Context, grids []malla.MonthGrid) (malla.BatchReport, error)
}

// RecalcScheduler recalculates the current month after config changes.
type RecalcScheduler struct {
	Versions      ConfigVersionSource
	Grids         malla.GridStore
	Recalculator  MonthRecalculator
	Logger        *slog.Logger
	CheckInterval time.Duration
	CompanyID     generic.CompanyID
	Enabled       bool

	// Now is the clock used to pick the month. Tests replace it.
	Now func() time.Time

	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	baseline int
	pending  []pendingDay
	started  bool
}

// pendingDay is a day whose last recalculation failed with a retryable
// error.
type pendingDay struct {
	employeeID generic.EmployeeID
	date       generic.TimePoint
}

// NewRecalcScheduler creates a new scheduler.
func NewRecalcScheduler(versions ConfigVersionSource, grids malla.GridStore, recalc MonthRecalculator, logger *slog.Logger) *RecalcScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalcScheduler{
		Versions:      versions,
		Grids:         grids,
		Recalculator:  recalc,
		Logger:        logger,
		CheckInterval: time.Minute,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start records the current config version and begins checking.
func (rs *RecalcScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.Logger.Info("recalc scheduler disabled")
		return
	}
	if rs.started {
		return
	}

	version, err := rs.Versions.LatestConfigVersion(context.Background())
	if err != nil {
		rs.Logger.Error("recalc scheduler: failed to read config version", "error", err)
	}
	rs.baseline = version

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.started = true
	rs.wg.Add(1)

	go rs.run()

	rs.Logger.Info("recalc scheduler started", "interval", rs.CheckInterval.String(), "config_version", version)
}

// Stop stops the scheduler and waits for a running check to finish.
func (rs *RecalcScheduler) Stop() {
	rs.mu.Lock()
	if !rs.started {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.started = false
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.Logger.Info("recalc scheduler stopped")
}

func (rs *RecalcScheduler) run() {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-rs.stop
		cancel()
	}()

	for {
		select {
		case <-rs.ticker.C:
			rs.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one iteration: when the config version differs from the
// baseline, the current month is recalculated and the baseline moves;
// otherwise days left over from a failed lookup are retried. It reports
// whether a batch ran.
func (rs *RecalcScheduler) Check(ctx context.Context) bool {
	version, err := rs.Versions.LatestConfigVersion(ctx)
	if err != nil {
		rs.Logger.Error("recalc scheduler: failed to read config version", "error", err)
		return false
	}

	rs.mu.Lock()
	baseline := rs.baseline
	pending := rs.pending
	rs.mu.Unlock()
	if version == baseline {
		if len(pending) == 0 {
			return false
		}
		return rs.retryPending(ctx, pending)
	}

	now := rs.Now()
	grids, err := rs.Grids.GridsForMonth(ctx, rs.CompanyID, now.Year(), now.Month())
	if err != nil {
		rs.Logger.Error("recalc scheduler: failed to load malla", "error", err)
		return false
	}

	rs.Logger.Info("config changed, recalculating month",
		"from_version", baseline, "to_version", version,
		"month", now.Format("2006-01"), "grids", len(grids),
	)
	report, err := rs.Recalculator.RecalculateMonth(ctx, grids)
	if err != nil {
		rs.Logger.Error("recalc scheduler: batch failed", "error", err)
		return true
	}

	rs.mu.Lock()
	rs.baseline = version
	rs.pending = retryableDays(report)
	rs.mu.Unlock()
	rs.logFailures(report)
	return true
}

// retryPending recalculates the pending days with their current grid codes.
// Days no longer in the grid are dropped.
func (rs *RecalcScheduler) retryPending(ctx context.Context, pending []pendingDay) bool {
	type monthKey struct {
		employeeID generic.EmployeeID
		year       int
		month      time.Month
	}
	var (
		order []monthKey
		days  = make(map[monthKey][]int)
	)
	for _, p := range pending {
		k := monthKey{p.employeeID, p.date.Year(), p.date.Month()}
		if _, ok := days[k]; !ok {
			order = append(order, k)
		}
		days[k] = append(days[k], p.date.Day())
	}

	var grids []malla.MonthGrid
	for _, k := range order {
		current, err := rs.Grids.LoadGrid(ctx, k.employeeID, k.year, k.month)
		if err != nil {
			rs.Logger.Error("recalc scheduler: failed to load malla", "employee_id", k.employeeID, "error", err)
			return false
		}
		retry := malla.NewMonthGrid(k.employeeID, k.year, k.month)
		for _, day := range days[k] {
			if shift, ok := current.Days[day]; ok {
				retry.Set(day, shift)
			}
		}
		if len(retry.Days) > 0 {
			grids = append(grids, retry)
		}
	}

	rs.Logger.Info("retrying days with failed lookups", "days", len(pending), "grids", len(grids))
	report, err := rs.Recalculator.RecalculateMonth(ctx, grids)
	if err != nil {
		rs.Logger.Error("recalc scheduler: retry failed", "error", err)
		return true
	}

	rs.mu.Lock()
	rs.pending = retryableDays(report)
	rs.mu.Unlock()
	rs.logFailures(report)
	return true
}

func (rs *RecalcScheduler) logFailures(report malla.BatchReport) {
	if report.OK() {
		return
	}
	// Non-retryable failures keep their previous version until the next
	// edit or manual batch.
	rs.Logger.Warn("recalc scheduler: batch finished with failures",
		"failed", len(report.Failures),
		"retrying", len(retryableDays(report)),
	)
}

func retryableDays(report malla.BatchReport) []pendingDay {
	var out []pendingDay
	for _, f := range report.Failures {
		if generic.IsRetryable(f.Err) {
			out = append(out, pendingDay{employeeID: f.EmployeeID, date: f.Date})
		}
	}
	return out
}
