package store

import (
	"database/sql"
	"fmt"

	"github.com/tradylo/billing/internal/model"
)

type EntitlementStore struct {
	db *sql.DB
}

func NewEntitlementStore(db *sql.DB) *EntitlementStore {
	return &EntitlementStore{db: db}
}

func scanEntitlement(scanner interface{ Scan(...any) error }) (*model.Entitlement, error) {
	var e model.Entitlement
	var tradeLimit sql.NullInt64
	var customerID, subscriptionID, subStatus sql.NullString
	var periodEnd sql.NullTime
	err := scanner.Scan(
		&e.UserID, &e.Plan, &tradeLimit, &customerID, &subscriptionID,
		&subStatus, &periodEnd, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tradeLimit.Valid {
		e.TradeLimit = &tradeLimit.Int64
	}
	if customerID.Valid {
		e.StripeCustomerID = &customerID.String
	}
	if subscriptionID.Valid {
		e.StripeSubscriptionID = &subscriptionID.String
	}
	if subStatus.Valid {
		e.SubscriptionStatus = &subStatus.String
	}
	if periodEnd.Valid {
		e.CurrentPeriodEnd = &periodEnd.Time
	}
	return &e, nil
}

const entitlementCols = `user_id, plan, trade_limit, stripe_customer_id, stripe_subscription_id, subscription_status, current_period_end, created_at, updated_at`

func (s *EntitlementStore) GetByUserID(userID string) (*model.Entitlement, error) {
	row := s.db.QueryRow(`SELECT `+entitlementCols+` FROM entitlements WHERE user_id = ?`, userID)
	e, err := scanEntitlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	return e, nil
}

func (s *EntitlementStore) GetBySubscriptionID(subscriptionID string) (*model.Entitlement, error) {
	row := s.db.QueryRow(`SELECT `+entitlementCols+` FROM entitlements WHERE stripe_subscription_id = ?`, subscriptionID)
	e, err := scanEntitlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement by subscription: %w", err)
	}
	return e, nil
}

// Upsert writes the full entitlement row keyed by user_id. Repeated calls
// with the same values converge to the same state.
func (s *EntitlementStore) Upsert(e *model.Entitlement) error {
	_, err := s.db.Exec(`
		INSERT INTO entitlements (user_id, plan, trade_limit, stripe_customer_id, stripe_subscription_id, subscription_status, current_period_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			plan = excluded.plan,
			trade_limit = excluded.trade_limit,
			stripe_customer_id = COALESCE(excluded.stripe_customer_id, entitlements.stripe_customer_id),
			stripe_subscription_id = COALESCE(excluded.stripe_subscription_id, entitlements.stripe_subscription_id),
			subscription_status = excluded.subscription_status,
			current_period_end = excluded.current_period_end,
			updated_at = CURRENT_TIMESTAMP`,
		e.UserID, e.Plan, e.TradeLimit, e.StripeCustomerID, e.StripeSubscriptionID,
		e.SubscriptionStatus, e.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	return nil
}
