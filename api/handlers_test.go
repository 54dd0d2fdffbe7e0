/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Day preview (Calculate), with and without a stored employee
- Malla edits recalculating and versioning day records
- Removing days from the malla (unscheduled versions)
- Closing days for payroll (409 on later edits, single-day or full-month)
- Recomputing a stored day from its applied parameters
- Versioned config and the month batch
- Holiday calendar and payroll summary
- Error-to-status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	store   *sqlite.Store
	handler *Handler
	router  *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(store, 0, logger)
	h.Today = func() generic.TimePoint { return generic.MustParseDate("2025-03-15") }
	h.Recalculator.Sleep = func(context.Context, time.Duration) error { return nil }

	ctx := context.Background()
	for _, spec := range []generic.ShiftSpec{
		{ID: "M9", Entry: generic.MustParseClock("08:00"), Exit: generic.MustParseClock("17:00")},
		{ID: "N8", Entry: generic.MustParseClock("22:00"), Exit: generic.MustParseClock("06:00")},
	} {
		if err := store.PutShift(ctx, spec); err != nil {
			t.Fatalf("Failed to save shift: %v", err)
		}
	}
	if err := store.SaveEmployee(ctx, generic.Employee{
		ID: "ana", Name: "Ana", CompanyID: "acme", MonthlySalary: decimal.NewFromInt(2200000), SurchargesEnabled: true,
	}); err != nil {
		t.Fatalf("Failed to save employee: %v", err)
	}

	return &testServer{store: store, handler: h, router: NewRouter(h, RouterOptions{Logger: logger})}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func expectDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("Expected %s = %s, got %s", name, want, got)
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

func TestCalculate_SundayPreview(t *testing.T) {
	// GIVEN: A 9h day shift on a Sunday, salary 2.2M
	s := newTestServer(t)

	// WHEN: Previewing it
	rec := s.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"date":           "2025-03-09",
		"shift_id":       "M9",
		"monthly_salary": "2200000",
	})

	// THEN: 8h holiday diurnal + 1h overtime diurnal holiday
	expectStatus(t, rec, http.StatusOK)
	res := decode[DayResultDTO](t, rec)
	if !res.Holiday {
		t.Error("Expected Sunday to be priced as holiday")
	}
	expectDecimal(t, "hourly_rate", res.HourlyRate, "10000")
	expectDecimal(t, "holiday_diurnal hours", res.Hours["holiday_diurnal"], "8")
	expectDecimal(t, "overtime_diurnal_holiday hours", res.Hours["overtime_diurnal_holiday"], "1")
	expectDecimal(t, "total_value", res.TotalValue, "164500")

	// AND: nothing was stored
	recs, err := s.store.Current(context.Background(), "", generic.MonthPeriod(2025, 3))
	if err != nil || len(recs) != 0 {
		t.Errorf("Expected no stored records, got %d (%v)", len(recs), err)
	}
}

func TestCalculate_EmployeeAndActualTimes(t *testing.T) {
	s := newTestServer(t)

	// WHEN: Previewing ana's night shift with a real clock-out at 04:00
	rec := s.do(t, http.MethodPost, "/api/calculate", map[string]any{
		"employee_id": "ana",
		"date":        "2025-03-11",
		"shift_id":    "N8",
		"actual_exit": "04:00",
	})

	// THEN: 6 nocturnal hours on the employee's salary
	expectStatus(t, rec, http.StatusOK)
	res := decode[DayResultDTO](t, rec)
	expectDecimal(t, "night_ordinary hours", res.Hours["night_ordinary"], "6")
	expectDecimal(t, "total_hours", res.TotalHours, "6")
	if res.Exit != "04:00" {
		t.Errorf("Expected exit 04:00, got %s", res.Exit)
	}
}

func TestCalculate_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown shift", map[string]any{"date": "2025-03-11", "shift_id": "XX", "monthly_salary": "1"}, http.StatusNotFound},
		{"unknown employee", map[string]any{"employee_id": "ghost", "date": "2025-03-11", "shift_id": "M9"}, http.StatusNotFound},
		{"bad date", map[string]any{"date": "11/03/2025", "shift_id": "M9", "monthly_salary": "1"}, http.StatusBadRequest},
		{"negative salary", map[string]any{"date": "2025-03-11", "shift_id": "M9", "monthly_salary": "-1"}, http.StatusBadRequest},
		{"no salary", map[string]any{"date": "2025-03-11", "shift_id": "M9"}, http.StatusBadRequest},
		{"zero-length override", map[string]any{"date": "2025-03-11", "shift_id": "M9", "monthly_salary": "1", "actual_entry": "08:00", "actual_exit": "08:00"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, http.MethodPost, "/api/calculate", tt.body), tt.want)
		})
	}
}

// =============================================================================
// MALLA AND RECORDS
// =============================================================================

func TestMalla_EditRecalculatesAndVersions(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: ana's March grid
	rec := s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"9": "M9", "10": "M9", "11": "D"}})
	expectStatus(t, rec, http.StatusOK)
	report := decode[BatchReportDTO](t, rec)
	if report.Calculated != 3 || report.Failed != 0 {
		t.Fatalf("Expected 3 calculated days, got %+v", report)
	}

	// WHEN: Editing the 10th to a night shift
	rec = s.do(t, http.MethodPut, "/api/malla/ana/days/2025-03-10", SetDayRequest{ShiftID: "N8"})

	// THEN: a second version is recorded
	expectStatus(t, rec, http.StatusOK)
	day := decode[DayRecordDTO](t, rec)
	if day.Version != 2 || day.ShiftID != "N8" {
		t.Errorf("Expected version 2 of N8, got v%d %s", day.Version, day.ShiftID)
	}

	rec = s.do(t, http.MethodGet, "/api/records/ana/2025-03-10/history", nil)
	expectStatus(t, rec, http.StatusOK)
	if history := decode[[]DayRecordDTO](t, rec); len(history) != 2 {
		t.Errorf("Expected 2 versions, got %d", len(history))
	}

	// AND: the grid reflects the edit
	rec = s.do(t, http.MethodGet, "/api/malla/ana/2025/3", nil)
	expectStatus(t, rec, http.StatusOK)
	if grid := decode[GridDTO](t, rec); grid.Days["10"] != "N8" || len(grid.Days) != 3 {
		t.Errorf("Unexpected grid: %+v", grid.Days)
	}

	// AND: the current records list has one entry per day
	rec = s.do(t, http.MethodGet, "/api/records?employee_id=ana&from=2025-03-01&to=2025-03-31", nil)
	expectStatus(t, rec, http.StatusOK)
	if current := decode[[]DayRecordDTO](t, rec); len(current) != 3 {
		t.Errorf("Expected 3 current records, got %d", len(current))
	}
}

func TestMalla_UnchangedDaysAreNotRecalculated(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"10": "M9"}}), http.StatusOK)

	rec := s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"10": "M9", "12": "N8"}})

	expectStatus(t, rec, http.StatusOK)
	if report := decode[BatchReportDTO](t, rec); report.Calculated != 1 {
		t.Errorf("Expected only the new day to be calculated, got %d", report.Calculated)
	}
}

func TestMalla_InvalidGrid(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/2", GridDTO{Days: map[string]string{"30": "M9"}}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/13", GridDTO{}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ghost/2025/3", GridDTO{}), http.StatusNotFound)
}

func TestRecords_ClosedDayRejectsEdits(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/days/2025-03-10", SetDayRequest{ShiftID: "M9"}), http.StatusOK)

	// WHEN: Closing the day, then editing it
	rec := s.do(t, http.MethodPost, "/api/records/ana/2025-03-10/close", nil)
	expectStatus(t, rec, http.StatusOK)
	if closed := decode[DayRecordDTO](t, rec); closed.Status != "closed" {
		t.Errorf("Expected closed status, got %s", closed.Status)
	}
	rec = s.do(t, http.MethodPut, "/api/malla/ana/days/2025-03-10", SetDayRequest{ShiftID: "N8"})

	// THEN: 409 and the grid is untouched
	expectStatus(t, rec, http.StatusConflict)
	grid, err := s.store.LoadGrid(context.Background(), "ana", 2025, 3)
	if err != nil || grid.Days[10] != "M9" {
		t.Errorf("Expected grid to keep M9, got %v (%v)", grid.Days, err)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/records/ana/2025-03-20/close", nil), http.StatusNotFound)
}

func TestMalla_RemovedDayIsUnscheduled(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"10": "M9", "11": "M9"}}), http.StatusOK)

	// WHEN: The 11th is dropped from the grid
	rec := s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"10": "M9"}})

	// THEN: it is unscheduled, nothing is recalculated
	expectStatus(t, rec, http.StatusOK)
	if report := decode[BatchReportDTO](t, rec); report.Unscheduled != 1 || report.Calculated != 0 {
		t.Errorf("Expected 1 unscheduled and 0 calculated, got %+v", report)
	}

	// AND: only the 10th is current and paid
	rec = s.do(t, http.MethodGet, "/api/records?employee_id=ana&from=2025-03-01&to=2025-03-31", nil)
	expectStatus(t, rec, http.StatusOK)
	if current := decode[[]DayRecordDTO](t, rec); len(current) != 1 || current[0].Date != "2025-03-10" {
		t.Errorf("Expected only 2025-03-10 current, got %+v", current)
	}
	rec = s.do(t, http.MethodGet, "/api/payroll/summary?from=2025-03-01&to=2025-03-31", nil)
	expectStatus(t, rec, http.StatusOK)
	summary := decode[SummaryResponse](t, rec)
	if len(summary.Employees) != 1 {
		t.Fatalf("Expected one employee, got %+v", summary)
	}
	expectDecimal(t, "total_value", summary.Employees[0].TotalValue, "92500")

	// AND: the history keeps the computed version under the unscheduled one
	rec = s.do(t, http.MethodGet, "/api/records/ana/2025-03-11/history", nil)
	expectStatus(t, rec, http.StatusOK)
	history := decode[[]DayRecordDTO](t, rec)
	if len(history) != 2 || history[1].Status != "unscheduled" || history[1].Source != "malla-removed" {
		t.Errorf("Unexpected history: %+v", history)
	}

	// AND: putting the day back schedules it again
	rec = s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"10": "M9", "11": "N8"}})
	expectStatus(t, rec, http.StatusOK)
	if report := decode[BatchReportDTO](t, rec); report.Calculated != 1 || report.Records[0].Version != 3 {
		t.Errorf("Expected version 3 of the 11th, got %+v", report)
	}
}

func TestMalla_FullGridEditOfClosedDayIsRejected(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"10": "M9", "12": "M9"}}), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/api/records/ana/2025-03-10/close", nil), http.StatusOK)

	tests := []struct {
		name string
		days map[string]string
	}{
		{"changed", map[string]string{"10": "N8", "12": "M9"}},
		{"removed", map[string]string{"12": "N8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// WHEN: Replacing the month in a way that touches the closed day
			rec := s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: tt.days})

			// THEN: 409, and neither the grid nor the records moved
			expectStatus(t, rec, http.StatusConflict)
			grid, err := s.store.LoadGrid(context.Background(), "ana", 2025, 3)
			if err != nil || grid.Days[10] != "M9" || grid.Days[12] != "M9" {
				t.Errorf("Expected grid to be untouched, got %v (%v)", grid.Days, err)
			}
			current, err := s.store.Current(context.Background(), "ana", generic.MonthPeriod(2025, time.March))
			if err != nil || len(current) != 2 || current[0].ShiftID != "M9" || current[1].Version != 1 {
				t.Errorf("Expected records to be untouched, got %+v (%v)", current, err)
			}
		})
	}
}

func TestRecords_Recompute(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"10": "M9"}}), http.StatusOK)

	// WHEN: Recomputing the stored day
	rec := s.do(t, http.MethodGet, "/api/records/ana/2025-03-10/recompute", nil)

	// THEN: the stored parameters reproduce the stored figures
	expectStatus(t, rec, http.StatusOK)
	audit := decode[AuditDTO](t, rec)
	if !audit.Matches || len(audit.Mismatches) != 0 {
		t.Errorf("Expected a match, got %v", audit.Mismatches)
	}
	expectDecimal(t, "recomputed total_value", audit.Recomputed.TotalValue, "92500")
	if audit.Record.Version != 1 {
		t.Errorf("Expected version 1, got %d", audit.Record.Version)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/records/ana/2025-03-10/recompute?version=1", nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/records/ana/2025-03-10/recompute?version=2", nil), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodGet, "/api/records/ana/2025-03-20/recompute", nil), http.StatusNotFound)
}

// =============================================================================
// CONFIG AND BATCH
// =============================================================================

func TestConfig_PutAndRecalculate(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"11": "N8"}}), http.StatusOK)

	// WHEN: Raising the ordinary night surcharge
	rec := s.do(t, http.MethodPut, "/api/config", map[string]any{
		"recargos": map[string]any{"recargo_nocturno_ordinario": 0.5},
	})
	expectStatus(t, rec, http.StatusCreated)
	saved := decode[map[string]any](t, rec)
	if saved["version"] != float64(1) {
		t.Fatalf("Expected version 1, got %v", saved["version"])
	}

	// AND: Recalculating March
	rec = s.do(t, http.MethodPost, "/api/recalculate", RecalculateRequest{CompanyID: "acme", Year: 2025, Month: 3})

	// THEN: 8 night hours at 10000 plus a 50% surcharge
	expectStatus(t, rec, http.StatusOK)
	report := decode[BatchReportDTO](t, rec)
	if report.ConfigVersion != 1 || len(report.Records) != 1 {
		t.Fatalf("Unexpected report: %+v", report)
	}
	expectDecimal(t, "total_value", report.Records[0].TotalValue, "120000")
	if report.Records[0].AppliedConfig["factor.night_ordinary"] != "0.5" {
		t.Errorf("Expected applied factor 0.5, got %v", report.Records[0].AppliedConfig)
	}

	// AND: the version list has it
	rec = s.do(t, http.MethodGet, "/api/config/versions", nil)
	expectStatus(t, rec, http.StatusOK)
	if versions := decode[[]map[string]any](t, rec); len(versions) != 1 {
		t.Errorf("Expected 1 version, got %d", len(versions))
	}
}

func TestConfig_RejectsInvalid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/config", map[string]any{
		"rules": map[string]any{"nightStartsAt": "25:00"},
	})

	expectStatus(t, rec, http.StatusBadRequest)
	rec = s.do(t, http.MethodGet, "/api/config", nil)
	expectStatus(t, rec, http.StatusOK)
	if cfg := decode[map[string]any](t, rec); cfg["version"] != nil {
		t.Errorf("Expected defaults without version, got %v", cfg["version"])
	}
}

// =============================================================================
// HOLIDAYS AND PAYROLL
// =============================================================================

func TestHolidayCalendar(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/holidays", CreateHolidayRequest{
		CompanyID: "acme", Date: "2020-09-15", Name: "Aniversario", Recurring: true,
	}), http.StatusCreated)

	rec := s.do(t, http.MethodGet, "/api/holidays/calendar/2025?company_id=acme", nil)

	expectStatus(t, rec, http.StatusOK)
	if hs := decode[[]HolidayDTO](t, rec); len(hs) != 19 {
		t.Errorf("Expected 18 statutory + 1 company holiday, got %d", len(hs))
	}
	rec = s.do(t, http.MethodGet, "/api/holidays/calendar/2025?company_id=other", nil)
	if hs := decode[[]HolidayDTO](t, rec); len(hs) != 18 {
		t.Errorf("Expected 18 statutory holidays, got %d", len(hs))
	}
}

func TestPayrollSummary(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPut, "/api/malla/ana/2025/3", GridDTO{Days: map[string]string{"9": "M9", "10": "M9", "11": "D"}}), http.StatusOK)

	// WHEN: Summarizing the first fortnight (default company filter: all)
	rec := s.do(t, http.MethodGet, "/api/payroll/summary?fortnight=2025-03-01", nil)

	// THEN: one employee, 164500 + 92500
	expectStatus(t, rec, http.StatusOK)
	resp := decode[SummaryResponse](t, rec)
	if resp.From != "2025-03-01" || resp.To != "2025-03-15" || len(resp.Employees) != 1 {
		t.Fatalf("Unexpected summary: %+v", resp)
	}
	sum := resp.Employees[0]
	if sum.WorkedDays != 2 || sum.RestDays != 1 || sum.HolidayDays != 1 {
		t.Errorf("Unexpected day counts: %+v", sum)
	}
	expectDecimal(t, "total_value", sum.TotalValue, "257000")

	expectStatus(t, s.do(t, http.MethodGet, "/api/payroll/summary?from=2025-03-31&to=2025-03-01", nil), http.StatusBadRequest)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&generic.InvalidInputError{Field: "x"}, http.StatusBadRequest},
		{&generic.ShiftNotFoundError{ShiftID: "X"}, http.StatusNotFound},
		{generic.ErrEmployeeNotFound, http.StatusNotFound},
		{&generic.LookupError{Source: "company-calendar", Err: context.DeadlineExceeded}, http.StatusBadGateway},
		{&generic.RecordClosedError{}, http.StatusConflict},
		{generic.ErrDuplicateIdempotencyKey, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
