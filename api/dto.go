/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY AND HOURS:
  Salaries, rates, hours and values travel as decimal strings
  ("92500.00", "7.5"); shopspring/decimal marshals them that way, so no
  precision is lost to float64.

TYPES:
  Employee:    EmployeeDTO, CreateEmployeeRequest
  Shift:       ShiftDTO
  Holiday:     HolidayDTO, CreateHolidayRequest
  Calculation: CalculateRequest, DayResultDTO
  Malla:       GridDTO, SetDayRequest, RecalculateRequest, BatchReportDTO
  Records:     DayRecordDTO, AuditDTO
  Payroll:     SummaryDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ConfigJSON, the config document
*/
package api

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/malla"
	"github.com/warp/recargos-engine/payroll"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Document          string          `json:"document,omitempty"`
	CompanyID         string          `json:"company_id"`
	MonthlySalary     decimal.Decimal `json:"monthly_salary"`
	SurchargesEnabled bool            `json:"surcharges_enabled"`
	CreatedAt         string          `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the body for creating or updating an employee.
// SurchargesEnabled defaults to true.
type CreateEmployeeRequest struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Document          string          `json:"document"`
	CompanyID         string          `json:"company_id"`
	MonthlySalary     decimal.Decimal `json:"monthly_salary"`
	SurchargesEnabled *bool           `json:"surcharges_enabled"`
}

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:                string(e.ID),
		Name:              e.Name,
		Document:          e.Document,
		CompanyID:         string(e.CompanyID),
		MonthlySalary:     e.MonthlySalary,
		SurchargesEnabled: e.SurchargesEnabled,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// SHIFTS
// =============================================================================

// ShiftDTO is both the request and the response shape of a shift.
type ShiftDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Entry           string `json:"entry"`
	Exit            string `json:"exit"`
	Description     string `json:"description,omitempty"`
	Location        string `json:"location,omitempty"`
	CrossesMidnight bool   `json:"crosses_midnight"`
	DurationHours   string `json:"duration_hours"`
}

func toShiftDTO(s generic.ShiftSpec) ShiftDTO {
	return ShiftDTO{
		ID:              string(s.ID),
		Name:            s.Name,
		Entry:           s.Entry.String(),
		Exit:            s.Exit.String(),
		Description:     s.Description,
		Location:        s.Location,
		CrossesMidnight: s.CrossesMidnight(),
		DurationHours:   generic.MinutesToHours(int(s.Duration() / time.Minute)).Value.StringFixed(2),
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayDTO struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type CreateHolidayRequest struct {
	CompanyID string `json:"company_id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

func toHolidayDTOs(hs []generic.Holiday) []HolidayDTO {
	out := make([]HolidayDTO, len(hs))
	for i, h := range hs {
		out[i] = HolidayDTO{
			ID:        h.ID,
			CompanyID: string(h.CompanyID),
			Date:      h.Date.String(),
			Name:      h.Name,
			Recurring: h.Recurring,
		}
	}
	return out
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateRequest previews one day without storing it. When EmployeeID is
// set, missing salary, company and surcharge flag are read from the
// employee.
type CalculateRequest struct {
	EmployeeID        string           `json:"employee_id"`
	CompanyID         string           `json:"company_id"`
	Date              string           `json:"date"`
	ShiftID           string           `json:"shift_id"`
	MonthlySalary     *decimal.Decimal `json:"monthly_salary"`
	SurchargesEnabled *bool            `json:"surcharges_enabled"`
	ActualEntry       string           `json:"actual_entry"`
	ActualExit        string           `json:"actual_exit"`
}

type WarningDTO struct {
	Code     string `json:"code"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// DayResultDTO is a computed day. Hours and values are keyed by category.
type DayResultDTO struct {
	EmployeeID        string                     `json:"employee_id,omitempty"`
	Date              string                     `json:"date"`
	ShiftID           string                     `json:"shift_id"`
	Entry             string                     `json:"entry"`
	Exit              string                     `json:"exit"`
	CrossesMidnight   bool                       `json:"crosses_midnight"`
	RestDay           bool                       `json:"rest_day"`
	Holiday           bool                       `json:"holiday"`
	SurchargesEnabled bool                       `json:"surcharges_enabled"`
	Hours             map[string]decimal.Decimal `json:"hours"`
	Values            map[string]decimal.Decimal `json:"values"`
	TotalHours        decimal.Decimal            `json:"total_hours"`
	TotalValue        decimal.Decimal            `json:"total_value"`
	HourlyRate        decimal.Decimal            `json:"hourly_rate"`
	MonthlySalary     decimal.Decimal            `json:"monthly_salary"`
	ConfigVersion     int                        `json:"config_version"`
	Warnings          []WarningDTO               `json:"warnings"`
}

func toDayResultDTO(res payroll.DayResult) DayResultDTO {
	dto := DayResultDTO{
		EmployeeID:        string(res.EmployeeID),
		Date:              res.Date.String(),
		ShiftID:           string(res.ShiftID),
		Entry:             res.Entry.String(),
		Exit:              res.Exit.String(),
		CrossesMidnight:   res.CrossesMidnight,
		RestDay:           res.RestDay,
		Holiday:           res.Holiday,
		SurchargesEnabled: res.SurchargesEnabled,
		Hours:             make(map[string]decimal.Decimal, len(payroll.Categories)),
		Values:            make(map[string]decimal.Decimal, len(payroll.Categories)),
		TotalHours:        res.TotalHours,
		TotalValue:        res.TotalValue,
		HourlyRate:        res.HourlyRate,
		MonthlySalary:     res.MonthlySalary,
		ConfigVersion:     res.ConfigVersion,
		Warnings:          []WarningDTO{},
	}
	for _, c := range payroll.Categories {
		dto.Hours[string(c)] = res.Hours[c]
		dto.Values[string(c)] = res.Values[c]
	}
	for _, w := range res.Warnings {
		dto.Warnings = append(dto.Warnings, WarningDTO{Code: w.Code, Category: string(w.Category), Message: w.Message})
	}
	return dto
}

// =============================================================================
// MALLA
// =============================================================================

// GridDTO is one employee's month. Days maps day-of-month ("1".."31") to a
// shift code; "D" is a rest day.
type GridDTO struct {
	EmployeeID string            `json:"employee_id"`
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	Days       map[string]string `json:"days"`
}

func toGridDTO(g malla.MonthGrid) GridDTO {
	dto := GridDTO{EmployeeID: string(g.EmployeeID), Year: g.Year, Month: int(g.Month), Days: make(map[string]string, len(g.Days))}
	for day, shift := range g.Days {
		dto.Days[strconv.Itoa(day)] = string(shift)
	}
	return dto
}

type SetDayRequest struct {
	ShiftID string `json:"shift_id"`
}

// RecalculateRequest triggers a month batch. An empty CompanyID means every
// company.
type RecalculateRequest struct {
	CompanyID string `json:"company_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
}

type FailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	ShiftID    string `json:"shift_id"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error"`
	Retryable  bool   `json:"retryable"`
}

type BatchReportDTO struct {
	ConfigVersion int            `json:"config_version"`
	Calculated    int            `json:"calculated"`
	Skipped       int            `json:"skipped"`
	Unscheduled   int            `json:"unscheduled"`
	Failed        int            `json:"failed"`
	Records       []DayRecordDTO `json:"records"`
	Failures      []FailureDTO   `json:"failures"`
}

func toBatchReportDTO(r malla.BatchReport) BatchReportDTO {
	dto := BatchReportDTO{
		ConfigVersion: r.ConfigVersion,
		Calculated:    r.Calculated,
		Skipped:       r.Skipped,
		Unscheduled:   r.Unscheduled,
		Failed:        len(r.Failures),
		Records:       toDayRecordDTOs(r.Records),
		Failures:      make([]FailureDTO, len(r.Failures)),
	}
	for i, f := range r.Failures {
		dto.Failures[i] = FailureDTO{
			EmployeeID: string(f.EmployeeID),
			Date:       f.Date.String(),
			ShiftID:    string(f.ShiftID),
			Attempts:   f.Attempts,
			Error:      f.Err.Error(),
			Retryable:  generic.IsRetryable(f.Err),
		}
	}
	return dto
}

// =============================================================================
// RECORDS
// =============================================================================

type DayRecordDTO struct {
	ID              string                     `json:"id"`
	EmployeeID      string                     `json:"employee_id"`
	CompanyID       string                     `json:"company_id"`
	Date            string                     `json:"date"`
	ShiftID         string                     `json:"shift_id"`
	Entry           string                     `json:"entry"`
	Exit            string                     `json:"exit"`
	CrossesMidnight bool                       `json:"crosses_midnight"`
	Holiday         bool                       `json:"holiday"`
	MonthlySalary   decimal.Decimal            `json:"monthly_salary"`
	HourlyRate      decimal.Decimal            `json:"hourly_rate"`
	Hours           map[string]decimal.Decimal `json:"hours"`
	Values          map[string]decimal.Decimal `json:"values"`
	TotalHours      decimal.Decimal            `json:"total_hours"`
	TotalValue      decimal.Decimal            `json:"total_value"`
	AppliedConfig   map[string]string          `json:"applied_config"`
	Warnings        []string                   `json:"warnings"`
	Status          string                     `json:"status"`
	Version         int                        `json:"version"`
	Source          string                     `json:"source,omitempty"`
	CreatedAt       string                     `json:"created_at"`
}

func toDayRecordDTO(r generic.DayRecord) DayRecordDTO {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return DayRecordDTO{
		ID:              string(r.ID),
		EmployeeID:      string(r.EmployeeID),
		CompanyID:       string(r.CompanyID),
		Date:            r.Date.String(),
		ShiftID:         string(r.ShiftID),
		Entry:           r.Entry.String(),
		Exit:            r.Exit.String(),
		CrossesMidnight: r.CrossesMidnight,
		Holiday:         r.Holiday,
		MonthlySalary:   r.MonthlySalary,
		HourlyRate:      r.HourlyRate,
		Hours:           r.Hours,
		Values:          r.Values,
		TotalHours:      r.TotalHours,
		TotalValue:      r.TotalValue,
		AppliedConfig:   r.AppliedConfig,
		Warnings:        warnings,
		Status:          string(r.Status),
		Version:         r.Version,
		Source:          r.Source,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
}

// AuditDTO is a stored version next to its recomputation.
type AuditDTO struct {
	Record     DayRecordDTO `json:"record"`
	Recomputed DayResultDTO `json:"recomputed"`
	Matches    bool         `json:"matches"`
	Mismatches []string     `json:"mismatches"`
}

func toAuditDTO(a payroll.Audit) AuditDTO {
	mismatches := a.Mismatches
	if mismatches == nil {
		mismatches = []string{}
	}
	return AuditDTO{
		Record:     toDayRecordDTO(a.Record),
		Recomputed: toDayResultDTO(a.Result),
		Matches:    a.Matches(),
		Mismatches: mismatches,
	}
}

func toDayRecordDTOs(recs []generic.DayRecord) []DayRecordDTO {
	out := make([]DayRecordDTO, len(recs))
	for i, r := range recs {
		out[i] = toDayRecordDTO(r)
	}
	return out
}

// =============================================================================
// PAYROLL
// =============================================================================

type SummaryDTO struct {
	EmployeeID  string                     `json:"employee_id"`
	WorkedDays  int                        `json:"worked_days"`
	RestDays    int                        `json:"rest_days"`
	HolidayDays int                        `json:"holiday_days"`
	Hours       map[string]decimal.Decimal `json:"hours"`
	Values      map[string]decimal.Decimal `json:"values"`
	TotalHours  decimal.Decimal            `json:"total_hours"`
	TotalValue  decimal.Decimal            `json:"total_value"`
	Warnings    int                        `json:"warnings"`
}

type SummaryResponse struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Employees []SummaryDTO `json:"employees"`
}

func toSummaryDTOs(sums []payroll.EmployeeSummary) []SummaryDTO {
	out := make([]SummaryDTO, len(sums))
	for i, s := range sums {
		dto := SummaryDTO{
			EmployeeID:  string(s.EmployeeID),
			WorkedDays:  s.WorkedDays,
			RestDays:    s.RestDays,
			HolidayDays: s.HolidayDays,
			Hours:       make(map[string]decimal.Decimal, len(s.Hours)),
			Values:      make(map[string]decimal.Decimal, len(s.Values)),
			TotalHours:  s.TotalHours,
			TotalValue:  s.TotalValue,
			Warnings:    s.Warnings,
		}
		for c, v := range s.Hours {
			dto.Hours[string(c)] = v
		}
		for c, v := range s.Values {
			dto.Values[string(c)] = v
		}
		out[i] = dto
	}
	return out
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
