package generic_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger() (*generic.DefaultLedger, *store.TxMemory) {
	mem := store.NewTxMemory()
	n := 0
	ledger := generic.NewLedger(mem, func() generic.RecordID {
		n++
		return generic.RecordID(fmt.Sprintf("rec-%d", n))
	})
	ledger.Clock = func() time.Time { return time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC) }
	return ledger, mem
}

func dayRecord(employee string, date string, shift string, value int64) generic.DayRecord {
	return generic.DayRecord{
		EmployeeID: generic.EmployeeID(employee),
		CompanyID:  "acme",
		Date:       generic.MustParseDate(date),
		ShiftID:    generic.ShiftID(shift),
		TotalValue: decimal.NewFromInt(value),
	}
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestLedger_RecordAssignsVersions(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	// GIVEN: Two computations of the same day
	v1, err := ledger.Record(ctx, dayRecord("ana", "2025-03-09", "N8", 100))
	if err != nil {
		t.Fatalf("Record v1: %v", err)
	}
	v2, err := ledger.Record(ctx, dayRecord("ana", "2025-03-09", "M8", 200))
	if err != nil {
		t.Fatalf("Record v2: %v", err)
	}

	// THEN: versions, ids, keys and defaults are assigned
	if v1.Version != 1 || v2.Version != 2 {
		t.Errorf("Expected versions 1 and 2, got %d and %d", v1.Version, v2.Version)
	}
	if v1.ID != "rec-1" || v2.ID != "rec-2" {
		t.Errorf("Unexpected ids %s, %s", v1.ID, v2.ID)
	}
	if v2.IdempotencyKey != "ana:2025-03-09:v2" {
		t.Errorf("Unexpected idempotency key %q", v2.IdempotencyKey)
	}
	if v2.Status != generic.RecordCalculated {
		t.Errorf("Expected calculated status, got %s", v2.Status)
	}
	if !v2.CreatedAt.Equal(time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected CreatedAt %v", v2.CreatedAt)
	}

	// AND: history keeps both, current returns the newest
	history, _ := ledger.History(ctx, "ana", generic.MustParseDate("2025-03-09"))
	if len(history) != 2 || history[0].ShiftID != "N8" {
		t.Errorf("Expected 2 versions oldest first, got %+v", history)
	}
	current, _ := ledger.Current(ctx, "ana", generic.MonthPeriod(2025, time.March))
	if len(current) != 1 || current[0].ShiftID != "M8" {
		t.Errorf("Expected current M8, got %+v", current)
	}
}

func TestLedger_CurrentFiltersPeriodAndCompany(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	for _, rec := range []generic.DayRecord{
		dayRecord("ana", "2025-03-01", "M8", 1),
		dayRecord("ana", "2025-03-16", "M8", 1),
		dayRecord("bo", "2025-03-02", "N8", 1),
		dayRecord("ana", "2025-04-01", "M8", 1),
	} {
		if _, err := ledger.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	other := dayRecord("cy", "2025-03-03", "M8", 1)
	other.CompanyID = "other"
	if _, err := ledger.Record(ctx, other); err != nil {
		t.Fatalf("Record: %v", err)
	}

	fortnight := generic.FortnightPeriod(generic.MustParseDate("2025-03-10"))
	recs, _ := ledger.Current(ctx, "ana", fortnight)
	if len(recs) != 1 {
		t.Errorf("Expected 1 record for ana in the first fortnight, got %d", len(recs))
	}

	recs, _ = ledger.CurrentForCompany(ctx, "acme", generic.MonthPeriod(2025, time.March))
	if len(recs) != 3 {
		t.Errorf("Expected 3 acme records in March, got %d", len(recs))
	}

	recs, _ = ledger.CurrentForCompany(ctx, "", generic.MonthPeriod(2025, time.March))
	if len(recs) != 4 {
		t.Errorf("Expected 4 records across companies, got %d", len(recs))
	}
}

func TestLedger_ClosedDayIsFinal(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()
	date := generic.MustParseDate("2025-03-09")

	if _, err := ledger.Record(ctx, dayRecord("ana", "2025-03-09", "N8", 100)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// WHEN: Closing the day twice
	closed, err := ledger.CloseDay(ctx, "ana", date)
	if err != nil {
		t.Fatalf("CloseDay: %v", err)
	}
	again, err := ledger.CloseDay(ctx, "ana", date)

	// THEN: closing is idempotent
	if err != nil || closed.Status != generic.RecordClosed || again.ID != closed.ID {
		t.Errorf("Expected idempotent close, got %+v / %v", again, err)
	}

	// AND: a new version is rejected
	_, err = ledger.Record(ctx, dayRecord("ana", "2025-03-09", "M8", 200))
	var closedErr *generic.RecordClosedError
	if !errors.As(err, &closedErr) || !errors.Is(err, generic.ErrRecordClosed) {
		t.Fatalf("Expected RecordClosedError, got %v", err)
	}
	if closedErr.RecordID != closed.ID {
		t.Errorf("Expected error to name %s, got %s", closed.ID, closedErr.RecordID)
	}
}

func TestLedger_CloseUnknownDay(t *testing.T) {
	ledger, _ := newTestLedger()

	_, err := ledger.CloseDay(context.Background(), "ana", generic.MustParseDate("2025-03-09"))

	if !generic.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestLedger_DuplicateIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	rec := dayRecord("ana", "2025-03-09", "N8", 100)
	rec.IdempotencyKey = "clock-import-42"
	if _, err := ledger.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	_, err := ledger.Record(ctx, rec)

	if !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		t.Errorf("Expected duplicate key error, got %v", err)
	}
}

func TestLedger_ConcurrentRecordsOfOneDayAllLand(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	// GIVEN: An edit and a batch recalculating the same day at once
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Record(ctx, dayRecord("ana", "2025-03-10", "M9", int64(i)))
		}(i)
	}
	wg.Wait()

	// THEN: none is lost as a duplicate; versions are 1..N
	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d: %v", i, err)
		}
	}
	history, _ := ledger.History(ctx, "ana", generic.MustParseDate("2025-03-10"))
	if len(history) != writers {
		t.Fatalf("Expected %d versions, got %d", writers, len(history))
	}
	for i, rec := range history {
		if rec.Version != i+1 {
			t.Errorf("Expected version %d at position %d, got %d", i+1, i, rec.Version)
		}
	}
}

func TestLedger_UnscheduleHidesDay(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()
	date := generic.MustParseDate("2025-03-11")
	march := generic.MonthPeriod(2025, time.March)

	if _, err := ledger.Record(ctx, dayRecord("ana", "2025-03-11", "M9", 92500)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// WHEN: The day is removed from the malla
	rec, changed, err := ledger.Unschedule(ctx, "ana", date, "malla-removed")
	if err != nil || !changed {
		t.Fatalf("Unschedule: changed=%v err=%v", changed, err)
	}

	// THEN: a zero version supersedes the old one
	if rec.Version != 2 || rec.Status != generic.RecordUnscheduled || !rec.TotalValue.IsZero() || rec.CompanyID != "acme" {
		t.Errorf("Unexpected unscheduled version %+v", rec)
	}

	// AND: payroll no longer sees the day, history keeps both
	if recs, _ := ledger.Current(ctx, "ana", march); len(recs) != 0 {
		t.Errorf("Expected no current records, got %+v", recs)
	}
	if recs, _ := ledger.CurrentForCompany(ctx, "acme", march); len(recs) != 0 {
		t.Errorf("Expected no company records, got %+v", recs)
	}
	if history, _ := ledger.History(ctx, "ana", date); len(history) != 2 {
		t.Errorf("Expected 2 versions, got %d", len(history))
	}

	// AND: unscheduling again, or an unknown day, is a no-op
	if _, changed, err := ledger.Unschedule(ctx, "ana", date, "malla-removed"); changed || err != nil {
		t.Errorf("Expected no-op, got changed=%v err=%v", changed, err)
	}
	if _, changed, err := ledger.Unschedule(ctx, "ana", generic.MustParseDate("2025-03-12"), "malla-removed"); changed || err != nil {
		t.Errorf("Expected no-op on unknown day, got changed=%v err=%v", changed, err)
	}

	// AND: there is nothing to close
	if _, err := ledger.CloseDay(ctx, "ana", date); !generic.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}

	// AND: scheduling it again brings it back
	if _, err := ledger.Record(ctx, dayRecord("ana", "2025-03-11", "N8", 100)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if recs, _ := ledger.Current(ctx, "ana", march); len(recs) != 1 || recs[0].Version != 3 {
		t.Errorf("Expected v3 current, got %+v", recs)
	}
}

// =============================================================================
// MEMORY STORE TESTS
// =============================================================================

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	_, mem := newTestLedger()

	rec := dayRecord("ana", "2025-03-09", "N8", 100)
	rec.ID, rec.Version, rec.IdempotencyKey = "r1", 1, "k1"

	err := mem.WithTx(ctx, func(tx generic.RecordStore) error {
		if err := tx.Append(ctx, rec); err != nil {
			return err
		}
		return errors.New("abort")
	})

	if err == nil {
		t.Fatal("Expected error from transaction")
	}
	if exists, _ := mem.Exists(ctx, "k1"); exists {
		t.Error("Expected append to be rolled back")
	}
	if _, err := mem.Get(ctx, "r1"); !generic.IsNotFound(err) {
		t.Errorf("Expected record to be gone, got %v", err)
	}
}

func TestMemory_AppendBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	_, mem := newTestLedger()

	a := dayRecord("ana", "2025-03-09", "N8", 1)
	a.ID, a.IdempotencyKey = "a", "k"
	b := dayRecord("ana", "2025-03-10", "N8", 1)
	b.ID, b.IdempotencyKey = "b", "k"

	err := mem.AppendBatch(ctx, []generic.DayRecord{a, b})

	if !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		t.Fatalf("Expected duplicate key error, got %v", err)
	}
	if recs, _ := mem.Current(ctx, "ana", generic.MonthPeriod(2025, time.March)); len(recs) != 0 {
		t.Errorf("Expected nothing appended, got %d", len(recs))
	}
}

// =============================================================================
// TIME AND PERIOD TESTS
// =============================================================================

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"06:30", 390, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"7:00", 0, true},
		{"07:60", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		got, err := generic.ParseClock(tt.in)
		if tt.wantErr {
			if !errors.Is(err, generic.ErrInvalidInput) {
				t.Errorf("ParseClock(%q): expected invalid input, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got.Minutes() != tt.want {
			t.Errorf("ParseClock(%q) = %d, %v; want %d", tt.in, got.Minutes(), err, tt.want)
		}
	}
}

func TestShiftSpec_CrossesMidnight(t *testing.T) {
	night := generic.ShiftSpec{ID: "N8", Entry: generic.MustParseClock("22:00"), Exit: generic.MustParseClock("06:00")}
	day := generic.ShiftSpec{ID: "M9", Entry: generic.MustParseClock("08:00"), Exit: generic.MustParseClock("17:00")}

	if !night.CrossesMidnight() || night.Duration() != 8*time.Hour {
		t.Errorf("Expected N8 to cross midnight for 8h, got %v %v", night.CrossesMidnight(), night.Duration())
	}
	if day.CrossesMidnight() || day.Duration() != 9*time.Hour {
		t.Errorf("Expected M9 same-day 9h, got %v %v", day.CrossesMidnight(), day.Duration())
	}
}

func TestPeriods(t *testing.T) {
	feb := generic.MonthPeriod(2024, time.February)
	if feb.End.String() != "2024-02-29" || len(feb.Days()) != 29 {
		t.Errorf("Unexpected leap February %s", feb)
	}

	second := generic.FortnightPeriod(generic.MustParseDate("2025-04-20"))
	if second.Start.String() != "2025-04-16" || second.End.String() != "2025-04-30" {
		t.Errorf("Unexpected second fortnight %s", second)
	}

	if _, err := generic.NewPeriod(generic.MustParseDate("2025-03-31"), generic.MustParseDate("2025-03-01")); !generic.IsClientError(err) {
		t.Errorf("Expected inverted period to be rejected, got %v", err)
	}

	if generic.DaysInMonth(2025, time.February) != 28 {
		t.Error("Expected 28 days in February 2025")
	}
}
