/*
recalc.go - Batch recalculation of work-day records

PURPOSE:
  Turns malla grids into day records. Every computed day is appended to the
  record ledger as a new version; nothing is edited or deleted.

FLOW:
  1. Load ONE configuration snapshot for the whole batch
  2. Load each employee once (salary, surcharge flag, company)
  3. Fan out over (employee, day) with a bounded worker count
  4. Per day: Calculator.CalculateWith -> payroll.ToRecord -> ledger.Record

FAILURE POLICY:
  - External lookup failures (holiday oracle, registry) are retried with
    exponential backoff, up to MaxAttempts.
  - Any other per-day failure is recorded in the BatchReport. One bad day
    never aborts the batch.
  - Closed days are skipped and counted; they are final.
  - Days removed from a grid get an "unscheduled" version so payroll stops
    paying them.
  - Only a failed config load or a cancelled context stops the batch.

SEE ALSO:
  - payroll/calculator.go: Per-day calculation
  - generic/ledger.go: Append-only record history
  - api/scheduler.go: Triggers a month run when the config version changes
*/
package malla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/payroll"
)

const (
	DefaultConcurrency = 8
	DefaultMaxAttempts = 3
	DefaultBackoff     = 200 * time.Millisecond
)

// Recalculator computes and records malla days. It is safe for concurrent
// use.
type Recalculator struct {
	Calculator  *payroll.Calculator
	Employees   EmployeeSource
	Ledger      generic.RecordLedger
	Concurrency int
	MaxAttempts int
	Backoff     time.Duration
	Logger      *slog.Logger

	// Sleep waits between retries. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRecalculator(calc *payroll.Calculator, employees EmployeeSource, ledger generic.RecordLedger) *Recalculator {
	return &Recalculator{
		Calculator:  calc,
		Employees:   employees,
		Ledger:      ledger,
		Concurrency: DefaultConcurrency,
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Logger:      slog.Default(),
	}
}

// Failure is one day that could not be recorded.
type Failure struct {
	EmployeeID generic.EmployeeID
	Date       generic.TimePoint
	ShiftID    generic.ShiftID
	Attempts   int
	Err        error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", f.EmployeeID, f.Date, f.ShiftID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// BatchReport summarizes one recalculation run.
type BatchReport struct {
	ConfigVersion int
	Calculated    int
	Skipped       int // closed days
	Unscheduled   int // days removed from the grid
	Records       []generic.DayRecord
	Failures      []Failure
}

// OK reports whether every day was recorded or skipped.
func (r BatchReport) OK() bool { return len(r.Failures) == 0 }

// =============================================================================
// RECALCULATION
// =============================================================================

type dayRef struct {
	employeeID generic.EmployeeID
	entry      Entry
}

type job struct {
	employee generic.Employee
	entry    Entry
}

// RecalculateMonth recalculates every scheduled day of the given grids.
func (r *Recalculator) RecalculateMonth(ctx context.Context, grids []MonthGrid) (BatchReport, error) {
	seen := make(map[string]bool, len(grids))
	for _, g := range grids {
		if err := g.Validate(); err != nil {
			return BatchReport{}, err
		}
		key := fmt.Sprintf("%s:%d-%02d", g.EmployeeID, g.Year, g.Month)
		if seen[key] {
			return BatchReport{}, &generic.InvalidInputError{Field: "grids", Value: key, Reason: "duplicate grid"}
		}
		seen[key] = true
	}

	var refs []dayRef
	for _, g := range grids {
		for _, e := range g.Entries() {
			refs = append(refs, dayRef{employeeID: g.EmployeeID, entry: e})
		}
	}
	return r.run(ctx, refs)
}

// RecalculateEntries recalculates the given days of one employee, e.g. the
// days changed by a grid edit.
func (r *Recalculator) RecalculateEntries(ctx context.Context, employeeID generic.EmployeeID, entries []Entry) (BatchReport, error) {
	refs := make([]dayRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, dayRef{employeeID: employeeID, entry: e})
	}
	return r.run(ctx, refs)
}

// ApplyEdit records the difference between two versions of a grid: days
// removed from next are unscheduled, new or changed days are recalculated.
// Callers check CheckOpen first; a closed day found here is skipped.
func (r *Recalculator) ApplyEdit(ctx context.Context, prev, next MonthGrid) (BatchReport, error) {
	var unscheduled, skipped int
	var failures []Failure
	for _, e := range next.Removed(prev) {
		_, changed, err := r.Ledger.Unschedule(ctx, next.EmployeeID, e.Date, "malla-removed")
		switch {
		case err == nil:
			if changed {
				unscheduled++
			}
		case errors.Is(err, generic.ErrRecordClosed):
			skipped++
		case ctx.Err() != nil:
			return BatchReport{}, err
		default:
			failures = append(failures, Failure{EmployeeID: next.EmployeeID, Date: e.Date, ShiftID: e.ShiftID, Attempts: 1, Err: err})
		}
	}

	report, err := r.RecalculateEntries(ctx, next.EmployeeID, next.Changed(prev))
	report.Unscheduled += unscheduled
	report.Skipped += skipped
	if len(failures) > 0 {
		report.Failures = append(report.Failures, failures...)
		sortReport(&report)
	}
	return report, err
}

// CheckOpen returns a *generic.RecordClosedError for the first of the given
// days that is closed for payroll.
func (r *Recalculator) CheckOpen(ctx context.Context, employeeID generic.EmployeeID, entries []Entry) error {
	for _, e := range entries {
		history, err := r.Ledger.History(ctx, employeeID, e.Date)
		if err != nil {
			return err
		}
		if n := len(history); n > 0 && history[n-1].Status == generic.RecordClosed {
			return &generic.RecordClosedError{Key: history[n-1].Key(), RecordID: history[n-1].ID}
		}
	}
	return nil
}

// RecalculateDay recalculates and records a single day. Unlike the batch
// methods it returns the failure as an error.
func (r *Recalculator) RecalculateDay(ctx context.Context, employeeID generic.EmployeeID, date generic.TimePoint, shift generic.ShiftID) (generic.DayRecord, error) {
	report, err := r.RecalculateEntries(ctx, employeeID, []Entry{{Date: date, ShiftID: shift}})
	if err != nil {
		return generic.DayRecord{}, err
	}
	if len(report.Failures) > 0 {
		return generic.DayRecord{}, report.Failures[0].Err
	}
	if report.Skipped > 0 {
		return generic.DayRecord{}, generic.ErrRecordClosed
	}
	return report.Records[0], nil
}

func (r *Recalculator) run(ctx context.Context, refs []dayRef) (BatchReport, error) {
	cfg, err := r.Calculator.Snapshot(ctx)
	if err != nil {
		return BatchReport{}, fmt.Errorf("load config snapshot: %w", err)
	}
	report := BatchReport{ConfigVersion: cfg.Version}

	// Employees are loaded once; an unknown employee fails its days only.
	employees := make(map[generic.EmployeeID]generic.Employee)
	employeeErrs := make(map[generic.EmployeeID]error)
	var jobs []job
	for _, e := range refs {
		emp, ok := employees[e.employeeID]
		if !ok && employeeErrs[e.employeeID] == nil {
			loaded, err := r.Employees.Employee(ctx, e.employeeID)
			if err != nil {
				employeeErrs[e.employeeID] = err
			} else {
				employees[e.employeeID] = loaded
				emp, ok = loaded, true
			}
		}
		if !ok {
			report.Failures = append(report.Failures, Failure{
				EmployeeID: e.employeeID,
				Date:       e.entry.Date,
				ShiftID:    e.entry.ShiftID,
				Err:        employeeErrs[e.employeeID],
			})
			continue
		}
		jobs = append(jobs, job{employee: emp, entry: e.entry})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, attempts, err := r.recordDay(gctx, j, cfg)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Calculated++
				report.Records = append(report.Records, rec)
			case errors.Is(err, generic.ErrRecordClosed):
				report.Skipped++
			case ctx.Err() != nil:
				return err
			default:
				report.Failures = append(report.Failures, Failure{
					EmployeeID: j.employee.ID,
					Date:       j.entry.Date,
					ShiftID:    j.entry.ShiftID,
					Attempts:   attempts,
					Err:        err,
				})
			}
			return nil
		})
	}
	waitErr := g.Wait()

	sortReport(&report)
	r.logger().Info("malla recalculation finished",
		"config_version", report.ConfigVersion,
		"calculated", report.Calculated,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	for _, f := range report.Failures {
		r.logger().Warn("malla day failed", "employee_id", f.EmployeeID, "date", f.Date.String(), "shift_id", f.ShiftID, "error", f.Err)
	}

	if waitErr != nil {
		return report, waitErr
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// recordDay computes one day with retries and appends it to the ledger.
func (r *Recalculator) recordDay(ctx context.Context, j job, cfg payroll.Config) (generic.DayRecord, int, error) {
	req := payroll.DayRequest{
		EmployeeID:        j.employee.ID,
		CompanyID:         j.employee.CompanyID,
		Date:              j.entry.Date,
		ShiftID:           j.entry.ShiftID,
		MonthlySalary:     j.employee.MonthlySalary,
		SurchargesEnabled: j.employee.SurchargesEnabled,
	}

	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		res payroll.DayResult
		err error
	)
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		res, err = r.Calculator.CalculateWith(ctx, req, cfg)
		if err == nil || !generic.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		if sleepErr := r.sleep(ctx, r.backoff(attempt)); sleepErr != nil {
			return generic.DayRecord{}, attempt, sleepErr
		}
	}
	if err != nil {
		return generic.DayRecord{}, attempt, err
	}

	rec, err := r.Ledger.Record(ctx, payroll.ToRecord(res, j.employee.CompanyID, "malla"))
	return rec, attempt, err
}

func (r *Recalculator) backoff(attempt int) time.Duration {
	base := r.Backoff
	if base <= 0 {
		base = DefaultBackoff
	}
	return base << (attempt - 1)
}

func (r *Recalculator) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recalculator) concurrency() int {
	if r.Concurrency < 1 {
		return 1
	}
	return r.Concurrency
}

func (r *Recalculator) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func sortReport(report *BatchReport) {
	sort.Slice(report.Records, func(i, j int) bool {
		a, b := report.Records[i], report.Records[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.Date.Before(b.Date)
	})
	sort.Slice(report.Failures, func(i, j int) bool {
		a, b := report.Failures[i], report.Failures[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.Date.Before(b.Date)
	})
}
