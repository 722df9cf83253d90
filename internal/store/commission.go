package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tradylo/billing/internal/model"
)

type CommissionStore struct {
	db *sql.DB
}

func NewCommissionStore(db *sql.DB) *CommissionStore {
	return &CommissionStore{db: db}
}

func scanCommission(scanner interface{ Scan(...any) error }) (*model.Commission, error) {
	var c model.Commission
	var customerID, transferID sql.NullString
	var paidAt sql.NullTime
	err := scanner.Scan(
		&c.ID, &c.AffiliateUserID, &c.ReferredUserID, &c.StripeInvoiceID, &customerID,
		&c.AmountCents, &c.CommissionCents, &c.Currency, &c.Status, &c.AvailableAt,
		&transferID, &paidAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		c.StripeCustomerID = &customerID.String
	}
	if transferID.Valid {
		c.StripeTransferID = &transferID.String
	}
	if paidAt.Valid {
		c.PaidAt = &paidAt.Time
	}
	return &c, nil
}

const commissionCols = `id, affiliate_user_id, referred_user_id, stripe_invoice_id, stripe_customer_id, amount_cents, commission_cents, currency, status, available_at, stripe_transfer_id, paid_at, created_at, updated_at`

// Upsert writes a pending commission keyed by (affiliate, invoice). Redelivery
// of the same invoice refreshes the amounts on the existing row instead of
// inserting a duplicate; the update is restricted to rows still pending so a
// late redelivery can never touch a row the payout pipeline has moved on.
// The original available_at is kept, so redelivery does not extend the hold.
func (s *CommissionStore) Upsert(c *model.Commission) error {
	_, err := s.db.Exec(`
		INSERT INTO affiliate_commissions (affiliate_user_id, referred_user_id, stripe_invoice_id, stripe_customer_id, amount_cents, commission_cents, currency, status, available_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(affiliate_user_id, stripe_invoice_id) DO UPDATE SET
			stripe_customer_id = excluded.stripe_customer_id,
			amount_cents = excluded.amount_cents,
			commission_cents = excluded.commission_cents,
			currency = excluded.currency,
			updated_at = CURRENT_TIMESTAMP
		WHERE affiliate_commissions.status = 'pending'`,
		c.AffiliateUserID, c.ReferredUserID, c.StripeInvoiceID, c.StripeCustomerID,
		c.AmountCents, c.CommissionCents, c.Currency, c.Status, c.AvailableAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert commission: %w", err)
	}
	return nil
}

func (s *CommissionStore) GetByID(id int64) (*model.Commission, error) {
	row := s.db.QueryRow(`SELECT `+commissionCols+` FROM affiliate_commissions WHERE id = ?`, id)
	c, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commission: %w", err)
	}
	return c, nil
}

func (s *CommissionStore) GetByInvoice(affiliateUserID, invoiceID string) (*model.Commission, error) {
	row := s.db.QueryRow(
		`SELECT `+commissionCols+` FROM affiliate_commissions WHERE affiliate_user_id = ? AND stripe_invoice_id = ?`,
		affiliateUserID, invoiceID,
	)
	c, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commission by invoice: %w", err)
	}
	return c, nil
}

// ListDue returns matured, unpaid commissions oldest first. Rows already
// carrying a transfer id are excluded no matter their status.
func (s *CommissionStore) ListDue(now time.Time, limit int) ([]*model.Commission, error) {
	rows, err := s.db.Query(`
		SELECT `+commissionCols+` FROM affiliate_commissions
		WHERE stripe_transfer_id IS NULL
		  AND status IN ('pending', 'payable')
		  AND available_at <= ?
		ORDER BY available_at ASC
		LIMIT ?`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due commissions: %w", err)
	}
	defer rows.Close()

	var due []*model.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due commission: %w", err)
		}
		due = append(due, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due commissions: %w", err)
	}
	return due, nil
}

// TransitionStatus moves a row from one status to another, guarded by the
// expected current status. Returns false when the row was not in the expected
// status (a concurrent run got there first) or the transition is not in the
// status machine's table.
func (s *CommissionStore) TransitionStatus(id int64, from, to model.CommissionStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal commission transition %s -> %s", from, to)
	}
	result, err := s.db.Exec(
		`UPDATE affiliate_commissions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition commission status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkPaid finalizes a payable row with its transfer id. Guarded by status and
// the null transfer id so overlapping batch runs record the payment once.
func (s *CommissionStore) MarkPaid(id int64, transferID string, paidAt time.Time) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE affiliate_commissions
		SET status = 'paid', stripe_transfer_id = ?, paid_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'payable' AND stripe_transfer_id IS NULL`,
		transferID, paidAt.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark commission paid: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark paid rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkFailed moves a payable row to the terminal failed status, excluding it
// from future batches.
func (s *CommissionStore) MarkFailed(id int64) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE affiliate_commissions
		SET status = 'failed', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'payable' AND stripe_transfer_id IS NULL`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark commission failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark failed rows affected: %w", err)
	}
	return n == 1, nil
}
