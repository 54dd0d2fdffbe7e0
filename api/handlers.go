/*
handlers.go - HTTP API handlers for the recargos engine

PURPOSE:
  Exposes the malla and surcharge engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                        List employees (?company_id=)
    POST   /api/employees                        Create or update employee
    GET    /api/employees/{id}                   Get employee

  Shifts:
    GET    /api/shifts                           List shifts
    POST   /api/shifts                           Create or update shift
    GET    /api/shifts/{id}                      Get shift
    DELETE /api/shifts/{id}                      Delete shift

  Holidays:
    GET    /api/holidays                         Stored company holidays
    POST   /api/holidays                         Add company holiday
    DELETE /api/holidays/{id}                    Delete company holiday
    GET    /api/holidays/calendar/{year}         Statutory + company holidays

  Config:
    GET    /api/config                           Current parametros
    PUT    /api/config                           Save a new version
    GET    /api/config/versions                  Every stored version

  Malla:
    GET    /api/malla/{employeeID}/{year}/{month}   Month grid
    PUT    /api/malla/{employeeID}/{year}/{month}   Replace grid, recalc changed days,
                                                    unschedule removed ones
    PUT    /api/malla/{employeeID}/days/{date}      Edit one day, recalc it

  Calculation:
    POST   /api/calculate                        Preview a day (not stored)
    POST   /api/recalculate                      Recalculate a month batch

  Records:
    GET    /api/records                          Current records (?employee_id=&company_id=&from=&to=)
    GET    /api/records/{employeeID}/{date}/history   Every version of a day
    GET    /api/records/{employeeID}/{date}/recompute Recompute a version (?version=)
    POST   /api/records/{employeeID}/{date}/close     Close a day for payroll

  Payroll:
    GET    /api/payroll/summary                  Per-employee totals over a period

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown employee, shift or record
  - 409: Closed day, duplicate write
  - 502: Holiday calendar or registry lookup failed (retryable)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - malla/recalc.go: Batch recalculation
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/recargos-engine/factory"
	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/holidays"
	"github.com/warp/recargos-engine/malla"
	"github.com/warp/recargos-engine/payroll"
	"github.com/warp/recargos-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Oracle        *holidays.Oracle
	Calculator    *payroll.Calculator
	Ledger        *generic.DefaultLedger
	Recalculator  *malla.Recalculator
	ConfigFactory *factory.ConfigFactory
	Logger        *slog.Logger

	// Today is the reference date for default periods. Tests replace it.
	Today func() generic.TimePoint
}

// NewHandler wires the engine on top of the store. The store is the shift
// registry, the company calendar, the config provider, the employee source
// and the record store.
func NewHandler(store *sqlite.Store, lookupTimeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	oracle := holidays.NewOracle(store, lookupTimeout)
	calc := payroll.NewCalculator(store, oracle, store)
	ledger := generic.NewLedger(store, sqlite.NewRecordID)
	recalc := malla.NewRecalculator(calc, store, ledger)
	recalc.Logger = logger

	return &Handler{
		Store:         store,
		Oracle:        oracle,
		Calculator:    calc,
		Ledger:        ledger,
		Recalculator:  recalc,
		ConfigFactory: factory.NewConfigFactory(),
		Logger:        logger,
		Today: func() generic.TimePoint {
			now := time.Now()
			return generic.NewTimePoint(now.Year(), now.Month(), now.Day())
		},
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the employees of a company (all when omitted).
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context(), generic.CompanyID(r.URL.Query().Get("company_id")))
	if err != nil {
		h.writeFailure(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.Employee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeFailure(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	if req.MonthlySalary.IsNegative() {
		writeError(w, http.StatusBadRequest, "monthly_salary must not be negative", nil)
		return
	}

	emp := generic.Employee{
		ID:                generic.EmployeeID(req.ID),
		Name:              req.Name,
		Document:          req.Document,
		CompanyID:         generic.CompanyID(req.CompanyID),
		MonthlySalary:     req.MonthlySalary,
		SurchargesEnabled: req.SurchargesEnabled == nil || *req.SurchargesEnabled,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeFailure(w, r, "Failed to save employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.Store.ListShifts(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to list shifts", err)
		return
	}
	dtos := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = toShiftDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	spec, err := h.Store.ResolveShift(r.Context(), generic.ShiftID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeFailure(w, r, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(spec))
}

// PutShift creates or updates a shift. Entry == exit is rejected: it would
// be a zero-length shift.
func (h *Handler) PutShift(w http.ResponseWriter, r *http.Request) {
	var req ShiftDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if generic.ShiftID(req.ID).IsRestDay() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%q is reserved for rest days", req.ID), nil)
		return
	}
	entry, err := generic.ParseClock(req.Entry)
	if err != nil {
		h.writeFailure(w, r, "Invalid entry", err)
		return
	}
	exit, err := generic.ParseClock(req.Exit)
	if err != nil {
		h.writeFailure(w, r, "Invalid exit", err)
		return
	}
	if entry == exit {
		writeError(w, http.StatusBadRequest, "entry and exit must differ", nil)
		return
	}

	spec := generic.ShiftSpec{
		ID:          generic.ShiftID(req.ID),
		Name:        req.Name,
		Entry:       entry,
		Exit:        exit,
		Description: req.Description,
		Location:    req.Location,
	}
	if err := h.Store.PutShift(r.Context(), spec); err != nil {
		h.writeFailure(w, r, "Failed to save shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(spec))
}

func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteShift(r.Context(), generic.ShiftID(chi.URLParam(r, "id"))); err != nil {
		h.writeFailure(w, r, "Failed to delete shift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the stored company and global holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	hs, err := h.Store.ListHolidays(r.Context(), generic.CompanyID(r.URL.Query().Get("company_id")))
	if err != nil {
		h.writeFailure(w, r, "Failed to list holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(hs))
}

// CreateHoliday adds a company holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.writeFailure(w, r, "Invalid date", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	saved, err := h.Store.SaveHoliday(r.Context(), generic.Holiday{
		CompanyID: generic.CompanyID(req.CompanyID),
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	})
	if err != nil {
		h.writeFailure(w, r, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTOs([]generic.Holiday{saved})[0])
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, r, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HolidayCalendar lists the statutory and company holidays of a year, the
// dates the engine pays as holidays (Sundays aside).
func (h *Handler) HolidayCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 9999 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	hs, err := h.Oracle.HolidaysIn(r.Context(), generic.CompanyID(r.URL.Query().Get("company_id")), year)
	if err != nil {
		h.writeFailure(w, r, "Failed to build holiday calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(hs))
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

// GetConfig returns the current parametros (defaults when none stored).
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Calculator.Snapshot(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to load config", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ConfigFactory.ToJSON(cfg))
}

// PutConfig stores a new config version. Omitted fields keep their
// defaults; the stored version number is returned.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var req factory.ConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cfg, err := h.ConfigFactory.FromJSON(req)
	if err != nil {
		h.writeFailure(w, r, "Invalid config", err)
		return
	}
	saved, err := h.Store.SaveConfig(r.Context(), cfg)
	if err != nil {
		h.writeFailure(w, r, "Failed to save config", err)
		return
	}
	h.Logger.Info("payroll config saved", "config_version", saved.Version)
	writeJSON(w, http.StatusCreated, h.ConfigFactory.ToJSON(saved))
}

func (h *Handler) ListConfigVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.Store.ConfigVersions(r.Context())
	if err != nil {
		h.writeFailure(w, r, "Failed to list config versions", err)
		return
	}
	out := make([]factory.ConfigJSON, len(versions))
	for i, v := range versions {
		out[i] = h.ConfigFactory.ToJSON(v.Config)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// MALLA HANDLERS
// =============================================================================

// GetGrid returns an employee's month.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	employeeID, year, month, ok := gridParams(w, r)
	if !ok {
		return
	}
	grid, err := h.Store.LoadGrid(r.Context(), employeeID, year, month)
	if err != nil {
		h.writeFailure(w, r, "Failed to load malla", err)
		return
	}
	writeJSON(w, http.StatusOK, toGridDTO(grid))
}

// PutGrid replaces an employee's month, recalculates the days whose
// shift code changed and unschedules the days that were removed.
func (h *Handler) PutGrid(w http.ResponseWriter, r *http.Request) {
	employeeID, year, month, ok := gridParams(w, r)
	if !ok {
		return
	}
	var req GridDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Store.Employee(ctx, employeeID); err != nil {
		h.writeFailure(w, r, "Failed to load employee", err)
		return
	}

	grid := malla.NewMonthGrid(employeeID, year, month)
	for key, shift := range req.Days {
		day, err := strconv.Atoi(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid day %q", key), err)
			return
		}
		grid.Set(day, generic.ShiftID(shift))
	}
	if err := grid.Validate(); err != nil {
		h.writeFailure(w, r, "Invalid malla", err)
		return
	}

	prev, err := h.Store.LoadGrid(ctx, employeeID, year, month)
	if err != nil {
		h.writeFailure(w, r, "Failed to load malla", err)
		return
	}
	// Fail before touching the grid: a closed day cannot change or go away.
	touched := append(grid.Changed(prev), grid.Removed(prev)...)
	if err := h.Recalculator.CheckOpen(ctx, employeeID, touched); err != nil {
		h.writeFailure(w, r, "Day is closed", err)
		return
	}
	if err := h.Store.SaveGrid(ctx, grid); err != nil {
		h.writeFailure(w, r, "Failed to save malla", err)
		return
	}

	report, err := h.Recalculator.ApplyEdit(ctx, prev, grid)
	if err != nil {
		h.writeFailure(w, r, "Malla saved but recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchReportDTO(report))
}

// SetGridDay edits one malla day and recalculates it.
func (h *Handler) SetGridDay(w http.ResponseWriter, r *http.Request) {
	employeeID := generic.EmployeeID(chi.URLParam(r, "employeeID"))
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeFailure(w, r, "Invalid date", err)
		return
	}
	var req SetDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Store.Employee(ctx, employeeID); err != nil {
		h.writeFailure(w, r, "Failed to load employee", err)
		return
	}
	// Fail before touching the grid: a closed day cannot change.
	if err := h.Recalculator.CheckOpen(ctx, employeeID, []malla.Entry{{Date: date, ShiftID: generic.ShiftID(req.ShiftID)}}); err != nil {
		h.writeFailure(w, r, "Day is closed", err)
		return
	}

	if err := h.Store.SetDay(ctx, employeeID, date, generic.ShiftID(req.ShiftID)); err != nil {
		h.writeFailure(w, r, "Failed to save malla day", err)
		return
	}
	rec, err := h.Recalculator.RecalculateDay(ctx, employeeID, date, generic.ShiftID(req.ShiftID))
	if err != nil {
		h.writeFailure(w, r, "Malla day saved but recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayRecordDTO(rec))
}

func gridParams(w http.ResponseWriter, r *http.Request) (generic.EmployeeID, int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return "", 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return "", 0, 0, false
	}
	return generic.EmployeeID(chi.URLParam(r, "employeeID")), year, time.Month(month), true
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// Calculate previews one day without storing it.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.writeFailure(w, r, "Invalid date", err)
		return
	}
	if req.ShiftID == "" {
		writeError(w, http.StatusBadRequest, "shift_id is required", nil)
		return
	}

	dayReq := payroll.DayRequest{
		EmployeeID:        generic.EmployeeID(req.EmployeeID),
		CompanyID:         generic.CompanyID(req.CompanyID),
		Date:              date,
		ShiftID:           generic.ShiftID(req.ShiftID),
		SurchargesEnabled: true,
	}
	if req.EmployeeID != "" {
		emp, err := h.Store.Employee(r.Context(), dayReq.EmployeeID)
		if err != nil {
			h.writeFailure(w, r, "Failed to load employee", err)
			return
		}
		dayReq.MonthlySalary = emp.MonthlySalary
		dayReq.SurchargesEnabled = emp.SurchargesEnabled
		if dayReq.CompanyID == "" {
			dayReq.CompanyID = emp.CompanyID
		}
	}
	if req.MonthlySalary != nil {
		dayReq.MonthlySalary = *req.MonthlySalary
	} else if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "monthly_salary or employee_id is required", nil)
		return
	}
	if req.SurchargesEnabled != nil {
		dayReq.SurchargesEnabled = *req.SurchargesEnabled
	}
	if dayReq.ActualEntry, err = optionalClock(req.ActualEntry); err != nil {
		h.writeFailure(w, r, "Invalid actual_entry", err)
		return
	}
	if dayReq.ActualExit, err = optionalClock(req.ActualExit); err != nil {
		h.writeFailure(w, r, "Invalid actual_exit", err)
		return
	}

	res, err := h.Calculator.Calculate(r.Context(), dayReq)
	if err != nil {
		h.writeFailure(w, r, "Calculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayResultDTO(res))
}

// Recalculate runs the month batch over every stored grid of a company.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Year == 0 && req.Month == 0 {
		today := h.Today()
		req.Year, req.Month = today.Year(), int(today.Month())
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", nil)
		return
	}

	ctx := r.Context()
	grids, err := h.Store.GridsForMonth(ctx, generic.CompanyID(req.CompanyID), req.Year, time.Month(req.Month))
	if err != nil {
		h.writeFailure(w, r, "Failed to load malla", err)
		return
	}
	report, err := h.Recalculator.RecalculateMonth(ctx, grids)
	if err != nil {
		h.writeFailure(w, r, "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchReportDTO(report))
}

func optionalClock(s string) (*generic.ClockTime, error) {
	if s == "" {
		return nil, nil
	}
	c, err := generic.ParseClock(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns the current version of every day in the period, for
// one employee or for a company.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var (
		recs []generic.DayRecord
		err  error
	)
	if employeeID := q.Get("employee_id"); employeeID != "" {
		recs, err = h.Ledger.Current(r.Context(), generic.EmployeeID(employeeID), period)
	} else {
		recs, err = h.Ledger.CurrentForCompany(r.Context(), generic.CompanyID(q.Get("company_id")), period)
	}
	if err != nil {
		h.writeFailure(w, r, "Failed to list records", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayRecordDTOs(recs))
}

// RecordHistory returns every version of one day, oldest first.
func (h *Handler) RecordHistory(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeFailure(w, r, "Invalid date", err)
		return
	}
	recs, err := h.Ledger.History(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeID")), date)
	if err != nil {
		h.writeFailure(w, r, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayRecordDTOs(recs))
}

// RecomputeRecord re-runs a stored version of a day with the parameters it
// recorded and reports any figure that no longer matches. ?version= picks an
// older version; the latest is the default.
func (h *Handler) RecomputeRecord(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeFailure(w, r, "Invalid date", err)
		return
	}
	history, err := h.Ledger.History(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeID")), date)
	if err != nil {
		h.writeFailure(w, r, "Failed to load history", err)
		return
	}
	if len(history) == 0 {
		h.writeFailure(w, r, "No record for day", generic.ErrRecordNotFound)
		return
	}

	rec := history[len(history)-1]
	if v := r.URL.Query().Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil || version < 1 || version > len(history) {
			writeError(w, http.StatusBadRequest, "Invalid version", err)
			return
		}
		rec = history[version-1]
	}
	if rec.Status == generic.RecordUnscheduled {
		h.writeFailure(w, r, "Version is unscheduled", generic.ErrRecordNotFound)
		return
	}

	audit, err := payroll.AuditRecord(rec)
	if err != nil {
		h.writeFailure(w, r, "Recomputation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTO(audit))
}

// CloseRecord closes the current version of a day for payroll.
func (h *Handler) CloseRecord(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeFailure(w, r, "Invalid date", err)
		return
	}
	rec, err := h.Ledger.CloseDay(r.Context(), generic.EmployeeID(chi.URLParam(r, "employeeID")), date)
	if err != nil {
		h.writeFailure(w, r, "Failed to close day", err)
		return
	}
	writeJSON(w, http.StatusOK, toDayRecordDTO(rec))
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// PayrollSummary sums current records per employee over a period.
func (h *Handler) PayrollSummary(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodParams(w, r)
	if !ok {
		return
	}
	recs, err := h.Ledger.CurrentForCompany(r.Context(), generic.CompanyID(r.URL.Query().Get("company_id")), period)
	if err != nil {
		h.writeFailure(w, r, "Failed to load records", err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		From:      period.Start.String(),
		To:        period.End.String(),
		Employees: toSummaryDTOs(payroll.Summarize(recs)),
	})
}

// periodParams reads ?from=&to=, or ?fortnight=YYYY-MM-DD, defaulting to
// the current month.
func (h *Handler) periodParams(w http.ResponseWriter, r *http.Request) (generic.Period, bool) {
	q := r.URL.Query()

	if f := q.Get("fortnight"); f != "" {
		date, err := generic.ParseDate(f)
		if err != nil {
			h.writeFailure(w, r, "Invalid fortnight", err)
			return generic.Period{}, false
		}
		return generic.FortnightPeriod(date), true
	}

	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		today := h.Today()
		return generic.MonthPeriod(today.Year(), today.Month()), true
	}
	start, err := generic.ParseDate(from)
	if err != nil {
		h.writeFailure(w, r, "Invalid from", err)
		return generic.Period{}, false
	}
	end, err := generic.ParseDate(to)
	if err != nil {
		h.writeFailure(w, r, "Invalid to", err)
		return generic.Period{}, false
	}
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		h.writeFailure(w, r, "Invalid period", err)
		return generic.Period{}, false
	}
	return period, true
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeFailure maps a domain error to its status. Server-side failures are
// logged.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message, "error", err, "path", r.URL.Path, "status", status)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrRecordClosed), errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return http.StatusConflict
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsRetryable(err):
		return http.StatusBadGateway
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
