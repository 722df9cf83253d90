// Package entitlement owns a user's plan state.
package entitlement

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tradylo/billing/internal/model"
	"github.com/tradylo/billing/internal/store"
)

type Manager struct {
	entitlements *store.EntitlementStore
	logger       *slog.Logger
}

func NewManager(es *store.EntitlementStore, logger *slog.Logger) *Manager {
	return &Manager{entitlements: es, logger: logger}
}

// UserBySubscription resolves the entitlement owning a Stripe subscription,
// or nil when no user maps to it.
func (m *Manager) UserBySubscription(subscriptionID string) (*model.Entitlement, error) {
	return m.entitlements.GetBySubscriptionID(subscriptionID)
}

// GrantPaidAccess upserts the user to the pro plan with no trade limit and
// the given subscription metadata. Idempotent: repeated calls with the same
// arguments converge to the same row.
func (m *Manager) GrantPaidAccess(userID, customerID, subscriptionID, status string, periodEnd *time.Time) error {
	e := &model.Entitlement{
		UserID:           userID,
		Plan:             model.PlanPro,
		CurrentPeriodEnd: periodEnd,
	}
	if customerID != "" {
		e.StripeCustomerID = &customerID
	}
	if subscriptionID != "" {
		e.StripeSubscriptionID = &subscriptionID
	}
	if status != "" {
		e.SubscriptionStatus = &status
	}
	if err := m.entitlements.Upsert(e); err != nil {
		return fmt.Errorf("grant paid access: %w", err)
	}
	m.logger.Info("granted paid access", "user_id", userID, "subscription_status", status)
	return nil
}

// DowngradeUnlessProtected moves the user back to the free tier unless their
// plan is one automated logic must never touch. The subscription status
// string is recorded either way the row is written, for observability.
// A read failure is returned to the caller rather than guessed around.
func (m *Manager) DowngradeUnlessProtected(userID, status string) error {
	current, err := m.entitlements.GetByUserID(userID)
	if err != nil {
		return fmt.Errorf("downgrade protection check: %w", err)
	}
	if current != nil && current.Plan.Protected() {
		m.logger.Info("skipping downgrade for protected plan", "user_id", userID, "plan", current.Plan)
		return nil
	}
	limit := int64(model.FreeTradeLimit)
	e := &model.Entitlement{
		UserID:     userID,
		Plan:       model.PlanFree,
		TradeLimit: &limit,
	}
	if status != "" {
		e.SubscriptionStatus = &status
	}
	if err := m.entitlements.Upsert(e); err != nil {
		return fmt.Errorf("downgrade entitlement: %w", err)
	}
	m.logger.Info("downgraded to free", "user_id", userID, "subscription_status", status)
	return nil
}

// EnsureFree creates the default free entitlement on first touch and returns
// the current row.
func (m *Manager) EnsureFree(userID string) (*model.Entitlement, error) {
	current, err := m.entitlements.GetByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("ensure free entitlement: %w", err)
	}
	if current != nil {
		return current, nil
	}
	limit := int64(model.FreeTradeLimit)
	e := &model.Entitlement{
		UserID:     userID,
		Plan:       model.PlanFree,
		TradeLimit: &limit,
	}
	if err := m.entitlements.Upsert(e); err != nil {
		return nil, fmt.Errorf("create free entitlement: %w", err)
	}
	return m.entitlements.GetByUserID(userID)
}
