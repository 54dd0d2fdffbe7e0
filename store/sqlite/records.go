package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recargos-engine/generic"
)

// =============================================================================
// RECORD STORE (generic.RecordStore interface)
// =============================================================================

const recordColumns = `id, employee_id, company_id, date, version, shift_id,
	entry_minute, exit_minute, crosses_midnight, holiday,
	monthly_salary, pay_period_hours, hourly_rate, applied_config,
	hours, value_buckets, total_hours, total_value, warnings,
	status, idempotency_key, source, created_at`

// Append persists a day record. Append-only.
func (s *Store) Append(ctx context.Context, rec generic.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return records{q: s.db}.Append(ctx, rec)
}

// AppendBatch persists multiple records atomically.
func (s *Store) AppendBatch(ctx context.Context, recs []generic.DayRecord) error {
	return s.WithTx(ctx, func(rs generic.RecordStore) error {
		return rs.AppendBatch(ctx, recs)
	})
}

func (s *Store) Current(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]generic.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return records{q: s.db}.Current(ctx, employeeID, period)
}

func (s *Store) CurrentForCompany(ctx context.Context, companyID generic.CompanyID, period generic.Period) ([]generic.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return records{q: s.db}.CurrentForCompany(ctx, companyID, period)
}

func (s *Store) History(ctx context.Context, employeeID generic.EmployeeID, date generic.TimePoint) ([]generic.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return records{q: s.db}.History(ctx, employeeID, date)
}

func (s *Store) Get(ctx context.Context, id generic.RecordID) (generic.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return records{q: s.db}.Get(ctx, id)
}

// CloseRecord marks a record as closed. This is the only write that touches an
// existing row, and it only moves the status forward.
func (s *Store) CloseRecord(ctx context.Context, id generic.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return records{q: s.db}.CloseRecord(ctx, id)
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return records{q: s.db}.Exists(ctx, idempotencyKey)
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxRecordStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The store
// passed to fn must not be used after fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(generic.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(records{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// records runs the record queries against a connection or a transaction.
// It does no locking; Store methods lock around it.
type records struct {
	q querier
}

func (r records) Append(ctx context.Context, rec generic.DayRecord) error {
	latest, err := r.latest(ctx, rec.EmployeeID, rec.Date)
	if err != nil {
		return err
	}
	if latest != nil && latest.Status == generic.RecordClosed {
		return &generic.RecordClosedError{Key: latest.Key(), RecordID: latest.ID}
	}

	applied, err := json.Marshal(rec.AppliedConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal applied config: %w", err)
	}
	hours, err := json.Marshal(rec.Hours)
	if err != nil {
		return fmt.Errorf("failed to marshal hours: %w", err)
	}
	values, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}
	var warnings sql.NullString
	if len(rec.Warnings) > 0 {
		b, err := json.Marshal(rec.Warnings)
		if err != nil {
			return fmt.Errorf("failed to marshal warnings: %w", err)
		}
		warnings = nullString(string(b))
	}
	status := rec.Status
	if status == "" {
		status = generic.RecordCalculated
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO day_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.q.ExecContext(ctx, query,
		string(rec.ID),
		string(rec.EmployeeID),
		string(rec.CompanyID),
		rec.Date.String(),
		rec.Version,
		string(rec.ShiftID),
		rec.Entry.Minutes(),
		rec.Exit.Minutes(),
		rec.CrossesMidnight,
		rec.Holiday,
		rec.MonthlySalary.String(),
		rec.PayPeriodHours.String(),
		rec.HourlyRate.String(),
		string(applied),
		string(hours),
		string(values),
		rec.TotalHours.String(),
		rec.TotalValue.String(),
		warnings,
		string(status),
		nullString(rec.IdempotencyKey),
		nullString(rec.Source),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert day record: %w", err)
	}
	return nil
}

func (r records) AppendBatch(ctx context.Context, recs []generic.DayRecord) error {
	for _, rec := range recs {
		if err := r.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r records) Current(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]generic.DayRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM day_records r
		WHERE employee_id = ?
		  AND date >= ? AND date <= ?
		  AND version = (
			SELECT MAX(version) FROM day_records
			WHERE employee_id = r.employee_id AND date = r.date
		  )
		  AND status <> ?
		ORDER BY date ASC
	`
	return r.query(ctx, query, string(employeeID), period.Start.String(), period.End.String(), string(generic.RecordUnscheduled))
}

func (r records) CurrentForCompany(ctx context.Context, companyID generic.CompanyID, period generic.Period) ([]generic.DayRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM day_records r
		WHERE (? = '' OR company_id = ?)
		  AND date >= ? AND date <= ?
		  AND version = (
			SELECT MAX(version) FROM day_records
			WHERE employee_id = r.employee_id AND date = r.date
		  )
		  AND status <> ?
		ORDER BY date ASC, employee_id ASC
	`
	return r.query(ctx, query, string(companyID), string(companyID), period.Start.String(), period.End.String(), string(generic.RecordUnscheduled))
}

func (r records) History(ctx context.Context, employeeID generic.EmployeeID, date generic.TimePoint) ([]generic.DayRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM day_records
		WHERE employee_id = ? AND date = ?
		ORDER BY version ASC
	`
	return r.query(ctx, query, string(employeeID), date.String())
}

func (r records) Get(ctx context.Context, id generic.RecordID) (generic.DayRecord, error) {
	recs, err := r.query(ctx, "SELECT "+recordColumns+" FROM day_records WHERE id = ?", string(id))
	if err != nil {
		return generic.DayRecord{}, err
	}
	if len(recs) == 0 {
		return generic.DayRecord{}, generic.ErrRecordNotFound
	}
	return recs[0], nil
}

func (r records) CloseRecord(ctx context.Context, id generic.RecordID) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	latest, err := r.latest(ctx, rec.EmployeeID, rec.Date)
	if err != nil {
		return err
	}
	if latest == nil || latest.ID != id {
		// Superseded versions stay as they were.
		return generic.ErrRecordNotFound
	}

	_, err = r.q.ExecContext(ctx,
		"UPDATE day_records SET status = ? WHERE id = ?",
		string(generic.RecordClosed), string(id),
	)
	if err != nil {
		return fmt.Errorf("failed to close day record: %w", err)
	}
	return nil
}

func (r records) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM day_records WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func (r records) latest(ctx context.Context, employeeID generic.EmployeeID, date generic.TimePoint) (*generic.DayRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM day_records
		WHERE employee_id = ? AND date = ?
		ORDER BY version DESC
		LIMIT 1
	`
	recs, err := r.query(ctx, query, string(employeeID), date.String())
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (r records) query(ctx context.Context, query string, args ...any) ([]generic.DayRecord, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query day records: %w", err)
	}
	defer rows.Close()

	var out []generic.DayRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (generic.DayRecord, error) {
	var (
		rec            generic.DayRecord
		date           string
		entry, exit    int
		salary         string
		payPeriod      string
		rate           string
		appliedJSON    string
		hoursJSON      string
		valuesJSON     string
		totalHours     string
		totalValue     string
		warningsJSON   sql.NullString
		status         string
		idempotencyKey sql.NullString
		source         sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&rec.ID, &rec.EmployeeID, &rec.CompanyID, &date, &rec.Version, &rec.ShiftID,
		&entry, &exit, &rec.CrossesMidnight, &rec.Holiday,
		&salary, &payPeriod, &rate, &appliedJSON,
		&hoursJSON, &valuesJSON, &totalHours, &totalValue, &warningsJSON,
		&status, &idempotencyKey, &source, &createdAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan day record: %w", err)
	}

	if rec.Date, err = generic.ParseDate(date); err != nil {
		return rec, fmt.Errorf("day record %s: %w", rec.ID, err)
	}
	rec.Entry = generic.ClockTime(entry)
	rec.Exit = generic.ClockTime(exit)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rec.MonthlySalary, salary},
		{&rec.PayPeriodHours, payPeriod},
		{&rec.HourlyRate, rate},
		{&rec.TotalHours, totalHours},
		{&rec.TotalValue, totalValue},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return rec, fmt.Errorf("day record %s: bad decimal %q: %w", rec.ID, f.src, err)
		}
	}
	if err := errors.Join(
		json.Unmarshal([]byte(appliedJSON), &rec.AppliedConfig),
		json.Unmarshal([]byte(hoursJSON), &rec.Hours),
		json.Unmarshal([]byte(valuesJSON), &rec.Values),
	); err != nil {
		return rec, fmt.Errorf("day record %s: %w", rec.ID, err)
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &rec.Warnings); err != nil {
			return rec, fmt.Errorf("day record %s: %w", rec.ID, err)
		}
	}
	rec.Status = generic.RecordStatus(status)
	rec.IdempotencyKey = idempotencyKey.String
	rec.Source = source.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return rec, nil
}
