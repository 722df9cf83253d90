package store

import (
	"database/sql"
	"fmt"

	"github.com/tradylo/billing/internal/model"
)

type PayoutAccountStore struct {
	db *sql.DB
}

func NewPayoutAccountStore(db *sql.DB) *PayoutAccountStore {
	return &PayoutAccountStore{db: db}
}

func (s *PayoutAccountStore) Get(affiliateUserID string) (*model.PayoutAccount, error) {
	row := s.db.QueryRow(
		`SELECT affiliate_user_id, stripe_account_id, status, created_at, updated_at FROM payout_accounts WHERE affiliate_user_id = ?`,
		affiliateUserID,
	)
	var a model.PayoutAccount
	err := row.Scan(&a.AffiliateUserID, &a.StripeAccountID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payout account: %w", err)
	}
	return &a, nil
}

func (s *PayoutAccountStore) Upsert(affiliateUserID, stripeAccountID string, status model.PayoutAccountStatus) error {
	_, err := s.db.Exec(`
		INSERT INTO payout_accounts (affiliate_user_id, stripe_account_id, status, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(affiliate_user_id) DO UPDATE SET
			stripe_account_id = excluded.stripe_account_id,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		affiliateUserID, stripeAccountID, status,
	)
	if err != nil {
		return fmt.Errorf("upsert payout account: %w", err)
	}
	return nil
}
