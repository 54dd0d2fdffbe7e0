package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/recargos-engine/generic"
)

// =============================================================================
// SHIFT REGISTRY (generic.ShiftRegistry interface)
// =============================================================================

// PutShift saves a shift definition.
func (s *Store) PutShift(ctx context.Context, spec generic.ShiftSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO shifts (id, name, entry_time, exit_time, description, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			entry_time = excluded.entry_time,
			exit_time = excluded.exit_time,
			description = excluded.description,
			location = excluded.location
	`

	_, err := s.db.ExecContext(ctx, query,
		string(spec.ID),
		nullString(spec.Name),
		spec.Entry.String(),
		spec.Exit.String(),
		nullString(spec.Description),
		nullString(spec.Location),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ResolveShift loads a shift by code.
func (s *Store) ResolveShift(ctx context.Context, id generic.ShiftID) (generic.ShiftSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, entry_time, exit_time, description, location FROM shifts WHERE id = ?",
		string(id),
	)
	spec, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.ShiftSpec{}, &generic.ShiftNotFoundError{ShiftID: id}
	}
	return spec, err
}

// ListShifts returns every shift ordered by code.
func (s *Store) ListShifts(ctx context.Context) ([]generic.ShiftSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, entry_time, exit_time, description, location FROM shifts ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []generic.ShiftSpec
	for rows.Next() {
		spec, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, spec)
	}
	return shifts, rows.Err()
}

// DeleteShift removes a shift definition. Recorded days keep the times
// they were computed with.
func (s *Store) DeleteShift(ctx context.Context, id generic.ShiftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM shifts WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.ShiftNotFoundError{ShiftID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(row rowScanner) (generic.ShiftSpec, error) {
	var (
		spec                     generic.ShiftSpec
		name, description, place sql.NullString
		entry, exit              string
	)
	if err := row.Scan(&spec.ID, &name, &entry, &exit, &description, &place); err != nil {
		return spec, err
	}

	var err error
	if spec.Entry, err = generic.ParseClock(entry); err != nil {
		return spec, fmt.Errorf("shift %s: %w", spec.ID, err)
	}
	if spec.Exit, err = generic.ParseClock(exit); err != nil {
		return spec, fmt.Errorf("shift %s: %w", spec.ID, err)
	}
	spec.Name = name.String
	spec.Description = description.String
	spec.Location = place.String
	return spec, nil
}

// =============================================================================
// EMPLOYEE STORE (malla.EmployeeSource interface)
// =============================================================================

// SaveEmployee saves an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, document, company_id, monthly_salary, surcharges_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			company_id = excluded.company_id,
			monthly_salary = excluded.monthly_salary,
			surcharges_enabled = excluded.surcharges_enabled
	`

	_, err := s.db.ExecContext(ctx, query,
		string(emp.ID),
		emp.Name,
		nullString(emp.Document),
		string(emp.CompanyID),
		emp.MonthlySalary.String(),
		emp.SurchargesEnabled,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Employee retrieves an employee by ID.
func (s *Store) Employee(ctx context.Context, id generic.EmployeeID) (generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, document, company_id, monthly_salary, surcharges_enabled, created_at
		 FROM employees WHERE id = ?`,
		string(id),
	)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return emp, err
}

// ListEmployees returns the employees of a company, or all employees when
// companyID is empty.
func (s *Store) ListEmployees(ctx context.Context, companyID generic.CompanyID) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, document, company_id, monthly_salary, surcharges_enabled, created_at
		 FROM employees WHERE ? = '' OR company_id = ? ORDER BY name, id`,
		string(companyID), string(companyID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []generic.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (generic.Employee, error) {
	var (
		emp       generic.Employee
		document  sql.NullString
		salary    string
		createdAt string
	)
	if err := row.Scan(&emp.ID, &emp.Name, &document, &emp.CompanyID, &salary, &emp.SurchargesEnabled, &createdAt); err != nil {
		return emp, err
	}
	var err error
	if emp.MonthlySalary, err = decimal.NewFromString(salary); err != nil {
		return emp, fmt.Errorf("employee %s: bad salary %q: %w", emp.ID, salary, err)
	}
	emp.Document = document.String
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return emp, nil
}

// =============================================================================
// HOLIDAY CALENDAR (generic.HolidayCalendar interface)
// =============================================================================

// SaveHoliday saves a company holiday. An empty ID is generated.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) (generic.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}

	query := `
		INSERT INTO holidays (id, company_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		string(h.CompanyID),
		h.Date.String(),
		h.Name,
		h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return generic.Holiday{}, err
	}

	// On conflict the existing row keeps its id.
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM holidays WHERE company_id = ? AND date = ? AND name = ?",
		string(h.CompanyID), h.Date.String(), h.Name,
	).Scan(&h.ID)
	return h, err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// IsHoliday checks if a date is a company or global holiday.
func (s *Store) IsHoliday(ctx context.Context, companyID generic.CompanyID, date generic.TimePoint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (company_id = ? OR company_id = '')
		  AND (
			(recurring = FALSE AND date = ?)
			OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
		  )
	`

	var count int
	err := s.db.QueryRowContext(ctx, query,
		string(companyID), date.String(), date.Time.Format("01-02"),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query holidays: %w", err)
	}
	return count > 0, nil
}

// HolidaysIn returns the company and global holidays of a year. Recurring
// holidays are moved to that year.
func (s *Store) HolidaysIn(ctx context.Context, companyID generic.CompanyID, year int) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, company_id, date, name, recurring
		FROM holidays
		WHERE (company_id = ? OR company_id = '')
		  AND (recurring = TRUE OR strftime('%Y', date) = ?)
		ORDER BY strftime('%m-%d', date) ASC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(companyID), fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.CompanyID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		date, err := generic.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		if h.Recurring {
			date = generic.NewTimePoint(year, date.Month(), date.Day())
		}
		h.Date = date
		holidays = append(holidays, h)
	}

	return holidays, rows.Err()
}

// ListHolidays returns every stored holiday of a company, including global
// ones, with their stored dates.
func (s *Store) ListHolidays(ctx context.Context, companyID generic.CompanyID) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, date, name, recurring
		FROM holidays
		WHERE company_id = ? OR company_id = ''
		ORDER BY date ASC
	`, string(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.CompanyID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
