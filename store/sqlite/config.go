package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recargos-engine/payroll"
)

// =============================================================================
// CONFIG STORE (payroll.ConfigProvider + payroll.SnapshotProvider)
// =============================================================================

// ConfigVersion is one saved parametros document.
type ConfigVersion struct {
	Version   int
	Config    payroll.Config
	CreatedAt time.Time
}

// SaveConfig validates cfg and stores it as the next version. The stored
// version number is returned on the config; cfg.Version is ignored.
func (s *Store) SaveConfig(ctx context.Context, cfg payroll.Config) (payroll.Config, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return payroll.Config{}, err
	}
	if err := cfg.Surcharges.Validate(); err != nil {
		return payroll.Config{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payroll.Config{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM config_versions").Scan(&latest); err != nil {
		return payroll.Config{}, fmt.Errorf("failed to read config version: %w", err)
	}
	cfg.Version = latest + 1

	doc, err := s.configs.Marshal(cfg)
	if err != nil {
		return payroll.Config{}, err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO config_versions (version, config_json, created_at) VALUES (?, ?, ?)",
		cfg.Version, doc, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return payroll.Config{}, fmt.Errorf("failed to save config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return payroll.Config{}, err
	}
	return cfg, nil
}

// Snapshot returns the newest stored config, or payroll.ErrNoConfig.
func (s *Store) Snapshot(ctx context.Context) (payroll.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		version int
		doc     string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT version, config_json FROM config_versions ORDER BY version DESC LIMIT 1",
	).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.Config{}, payroll.ErrNoConfig
	}
	if err != nil {
		return payroll.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return s.parseConfig(version, doc)
}

func (s *Store) RuleSet(ctx context.Context) (payroll.RuleSet, error) {
	cfg, err := s.Snapshot(ctx)
	return cfg.Rules, err
}

func (s *Store) SurchargeTable(ctx context.Context) (payroll.SurchargeTable, error) {
	cfg, err := s.Snapshot(ctx)
	return cfg.Surcharges, err
}

func (s *Store) PayPeriodHours(ctx context.Context) (decimal.Decimal, error) {
	cfg, err := s.Snapshot(ctx)
	return cfg.Rules.PayPeriodHours, err
}

// LatestConfigVersion returns the newest version number, 0 when nothing is
// stored.
func (s *Store) LatestConfigVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM config_versions").Scan(&version)
	return version, err
}

// ConfigVersions lists every stored version, newest first.
func (s *Store) ConfigVersions(ctx context.Context) ([]ConfigVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT version, config_json, created_at FROM config_versions ORDER BY version DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConfigVersion
	for rows.Next() {
		var (
			cv        ConfigVersion
			doc       string
			createdAt string
		)
		if err := rows.Scan(&cv.Version, &doc, &createdAt); err != nil {
			return nil, err
		}
		if cv.Config, err = s.parseConfig(cv.Version, doc); err != nil {
			return nil, err
		}
		cv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, cv)
	}
	return out, rows.Err()
}

func (s *Store) parseConfig(version int, doc string) (payroll.Config, error) {
	cfg, err := s.configs.ParseConfig(doc)
	if err != nil {
		return payroll.Config{}, fmt.Errorf("stored config v%d: %w", version, err)
	}
	cfg.Version = version
	return cfg, nil
}
