package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/malla"
)

// =============================================================================
// GRID STORE (malla.GridStore interface)
// =============================================================================

// LoadGrid returns the grid of one employee for a month. A month with no
// stored days is an empty grid, not an error.
func (s *Store) LoadGrid(ctx context.Context, employeeID generic.EmployeeID, year int, month time.Month) (malla.MonthGrid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grids, err := s.loadGrids(ctx, `
		SELECT employee_id, date, shift_id FROM malla_days
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`, year, month, string(employeeID))
	if err != nil {
		return malla.MonthGrid{}, err
	}
	if len(grids) == 0 {
		return malla.NewMonthGrid(employeeID, year, month), nil
	}
	return grids[0], nil
}

// SaveGrid replaces the stored month of the grid's employee with its days.
func (s *Store) SaveGrid(ctx context.Context, grid malla.MonthGrid) error {
	if err := grid.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	period := grid.Period()
	_, err = tx.ExecContext(ctx,
		"DELETE FROM malla_days WHERE employee_id = ? AND date >= ? AND date <= ?",
		string(grid.EmployeeID), period.Start.String(), period.End.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to clear malla month: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range grid.Entries() {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO malla_days (employee_id, date, shift_id, updated_at) VALUES (?, ?, ?, ?)",
			string(grid.EmployeeID), e.Date.String(), string(e.ShiftID), now,
		)
		if err != nil {
			return fmt.Errorf("failed to save malla day %s: %w", e.Date, err)
		}
	}

	return tx.Commit()
}

// SetDay assigns one shift code without touching the rest of the month.
func (s *Store) SetDay(ctx context.Context, employeeID generic.EmployeeID, date generic.TimePoint, shift generic.ShiftID) error {
	if shift == "" {
		return &generic.InvalidInputError{Field: "shift_id", Value: date.String(), Reason: "empty shift code"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO malla_days (employee_id, date, shift_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			shift_id = excluded.shift_id,
			updated_at = excluded.updated_at
	`, string(employeeID), date.String(), string(shift), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GridsForMonth returns every stored grid of a company for the month. An
// empty companyID means every company.
func (s *Store) GridsForMonth(ctx context.Context, companyID generic.CompanyID, year int, month time.Month) ([]malla.MonthGrid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadGrids(ctx, `
		SELECT m.employee_id, m.date, m.shift_id FROM malla_days m
		JOIN employees e ON e.id = m.employee_id
		WHERE (? = '' OR e.company_id = ?) AND m.date >= ? AND m.date <= ?
		ORDER BY m.employee_id, m.date
	`, year, month, string(companyID), string(companyID))
}

// loadGrids runs a malla_days query whose last two arguments are the month
// bounds and groups the rows per employee, in row order.
func (s *Store) loadGrids(ctx context.Context, query string, year int, month time.Month, args ...any) ([]malla.MonthGrid, error) {
	period := generic.MonthPeriod(year, month)
	args = append(args, period.Start.String(), period.End.String())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query malla: %w", err)
	}
	defer rows.Close()

	var (
		grids []malla.MonthGrid
		index = make(map[generic.EmployeeID]int)
	)
	for rows.Next() {
		var (
			employeeID generic.EmployeeID
			dateStr    string
			shift      generic.ShiftID
		)
		if err := rows.Scan(&employeeID, &dateStr, &shift); err != nil {
			return nil, err
		}
		date, err := generic.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("malla day of %s: %w", employeeID, err)
		}
		i, ok := index[employeeID]
		if !ok {
			i = len(grids)
			index[employeeID] = i
			grids = append(grids, malla.NewMonthGrid(employeeID, year, month))
		}
		grids[i].Set(date.Day(), shift)
	}
	return grids, rows.Err()
}
