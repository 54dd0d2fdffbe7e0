// Package store provides in-memory implementations of the generic storage
// interfaces.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/recargos-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory record store (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	records     map[generic.DayKey][]generic.DayRecord
	byID        map[generic.RecordID]generic.DayKey
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		records:     make(map[generic.DayKey][]generic.DayRecord),
		byID:        make(map[generic.RecordID]generic.DayKey),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single record. Append-only.
func (m *Memory) Append(_ context.Context, rec generic.DayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.IdempotencyKey != "" && m.idempotency[rec.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	return m.appendLocked(rec)
}

// AppendBatch adds multiple records atomically.
func (m *Memory) AppendBatch(_ context.Context, recs []generic.DayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	for _, rec := range recs {
		if rec.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[rec.IdempotencyKey] || seen[rec.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[rec.IdempotencyKey] = true
		if err := m.checkOpenLocked(rec); err != nil {
			return err
		}
	}

	for _, rec := range recs {
		if err := m.appendLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) checkOpenLocked(rec generic.DayRecord) error {
	versions := m.records[rec.Key()]
	if n := len(versions); n > 0 && versions[n-1].Status == generic.RecordClosed {
		return &generic.RecordClosedError{Key: rec.Key(), RecordID: versions[n-1].ID}
	}
	return nil
}

func (m *Memory) appendLocked(rec generic.DayRecord) error {
	if err := m.checkOpenLocked(rec); err != nil {
		return err
	}
	k := rec.Key()
	m.records[k] = append(m.records[k], rec)
	m.byID[rec.ID] = k
	if rec.IdempotencyKey != "" {
		m.idempotency[rec.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Current(_ context.Context, employeeID generic.EmployeeID, period generic.Period) ([]generic.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentLocked(func(k generic.DayKey, _ generic.DayRecord) bool {
		return k.EmployeeID == employeeID
	}, period), nil
}

func (m *Memory) CurrentForCompany(_ context.Context, companyID generic.CompanyID, period generic.Period) ([]generic.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentLocked(func(_ generic.DayKey, rec generic.DayRecord) bool {
		return companyID == "" || rec.CompanyID == companyID
	}, period), nil
}

func (m *Memory) currentLocked(match func(generic.DayKey, generic.DayRecord) bool, period generic.Period) []generic.DayRecord {
	var result []generic.DayRecord
	for k, versions := range m.records {
		latest := versions[len(versions)-1]
		if latest.Status == generic.RecordUnscheduled || !match(k, latest) || !period.Contains(latest.Date) {
			continue
		}
		result = append(result, latest)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].EmployeeID < result[j].EmployeeID
	})
	return result
}

func (m *Memory) History(_ context.Context, employeeID generic.EmployeeID, date generic.TimePoint) ([]generic.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := generic.DayKey{EmployeeID: employeeID, Date: date.String()}
	result := make([]generic.DayRecord, len(m.records[k]))
	copy(result, m.records[k])
	return result, nil
}

func (m *Memory) Get(_ context.Context, id generic.RecordID) (generic.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.byID[id]
	if !ok {
		return generic.DayRecord{}, generic.ErrRecordNotFound
	}
	for _, rec := range m.records[k] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return generic.DayRecord{}, generic.ErrRecordNotFound
}

// CloseRecord marks a record as closed. Only the latest version of a slot can be
// closed.
func (m *Memory) CloseRecord(_ context.Context, id generic.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.byID[id]
	if !ok {
		return generic.ErrRecordNotFound
	}
	versions := m.records[k]
	last := len(versions) - 1
	if versions[last].ID != id {
		return generic.ErrRecordNotFound
	}
	versions[last].Status = generic.RecordClosed
	return nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support. Transactions run one at
// a time.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.RecordStore) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	tm.mu.Lock()
	snapshot := tm.snapshot()
	tm.mu.Unlock()

	if err := fn(tm.Memory); err != nil {
		tm.mu.Lock()
		tm.restore(snapshot)
		tm.mu.Unlock()
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	recs := make(map[generic.DayKey][]generic.DayRecord, len(tm.records))
	for k, v := range tm.records {
		recs[k] = append([]generic.DayRecord{}, v...)
	}
	ids := make(map[generic.RecordID]generic.DayKey, len(tm.byID))
	for k, v := range tm.byID {
		ids[k] = v
	}
	idemp := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idemp[k] = v
	}
	return memorySnapshot{records: recs, byID: ids, idempotency: idemp}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.records = s.records
	tm.byID = s.byID
	tm.idempotency = s.idempotency
}

type memorySnapshot struct {
	records     map[generic.DayKey][]generic.DayRecord
	byID        map[generic.RecordID]generic.DayKey
	idempotency map[string]bool
}
