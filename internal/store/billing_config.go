package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tradylo/billing/internal/model"
)

type BillingConfigStore struct {
	db *sql.DB
}

func NewBillingConfigStore(db *sql.DB) *BillingConfigStore {
	return &BillingConfigStore{db: db}
}

// Get returns the singleton configuration row, or nil if none exists.
// Callers treat nil as "no promo window and no default floor".
func (s *BillingConfigStore) Get() (*model.BillingConfig, error) {
	row := s.db.QueryRow(`SELECT promo_start_at, promo_end_at, promo_commission_percent, default_commission_percent, updated_at FROM billing_config WHERE id = 1`)
	var cfg model.BillingConfig
	var start, end sql.NullTime
	err := row.Scan(&start, &end, &cfg.PromoCommissionPercent, &cfg.DefaultCommissionPercent, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get billing config: %w", err)
	}
	if start.Valid {
		cfg.PromoStartAt = &start.Time
	}
	if end.Valid {
		cfg.PromoEndAt = &end.Time
	}
	return &cfg, nil
}

// Upsert replaces the singleton row. Used by admin tooling and tests.
func (s *BillingConfigStore) Upsert(promoStart, promoEnd *time.Time, promoPercent, defaultPercent float64) error {
	_, err := s.db.Exec(`
		INSERT INTO billing_config (id, promo_start_at, promo_end_at, promo_commission_percent, default_commission_percent, updated_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			promo_start_at = excluded.promo_start_at,
			promo_end_at = excluded.promo_end_at,
			promo_commission_percent = excluded.promo_commission_percent,
			default_commission_percent = excluded.default_commission_percent,
			updated_at = CURRENT_TIMESTAMP`,
		promoStart, promoEnd, promoPercent, defaultPercent,
	)
	if err != nil {
		return fmt.Errorf("upsert billing config: %w", err)
	}
	return nil
}
