// Package payout disburses matured commissions to affiliate accounts.
package payout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradylo/billing/internal/model"
	"github.com/tradylo/billing/internal/store"
)

// BatchSize bounds how many commissions one run touches.
const BatchSize = 50

// TransferClient is the slice of the payment processor the batch needs.
type TransferClient interface {
	CreateTransfer(ctx context.Context, destination string, amountCents int64, currency, idempotencyKey string) (string, error)
}

// Skip reason codes reported in the batch summary.
const (
	SkipNoPayoutAccount    = "no_payout_account"
	SkipAccountPaused      = "payout_account_paused"
	SkipMissingDestination = "missing_destination"
	SkipInvalidAmount      = "invalid_amount"
	SkipStatusConflict     = "status_conflict"
	SkipTransferFailed     = "transfer_failed"
	SkipPermanentFailure   = "transfer_failed_permanent"
)

type Skipped struct {
	ID          int64  `json:"id"`
	Reason      string `json:"reason"`
	Destination string `json:"destination,omitempty"`
}

type Summary struct {
	Processed int       `json:"processed"`
	Paid      int       `json:"paid"`
	Skipped   []Skipped `json:"skipped"`
}

type Processor struct {
	commissions *store.CommissionStore
	accounts    *store.PayoutAccountStore
	transfers   TransferClient
	permanent   func(error) bool
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a Processor. permanent classifies transfer errors that will
// never succeed on retry; nil means every failure is treated as transient.
func New(cs *store.CommissionStore, pas *store.PayoutAccountStore, tc TransferClient, permanent func(error) bool, logger *slog.Logger) *Processor {
	if permanent == nil {
		permanent = func(error) bool { return false }
	}
	return &Processor{
		commissions: cs,
		accounts:    pas,
		transfers:   tc,
		permanent:   permanent,
		logger:      logger,
		now:         time.Now,
	}
}

// Run processes one bounded batch of matured, unpaid commissions. Safe to
// invoke repeatedly and concurrently: the null-transfer-id filter, the
// status-guarded updates, and the per-row idempotency token together
// guarantee at most one transfer per commission even when runs overlap.
func (p *Processor) Run(ctx context.Context) (*Summary, error) {
	due, err := p.commissions.ListDue(p.now(), BatchSize)
	if err != nil {
		return nil, fmt.Errorf("payout batch: %w", err)
	}

	summary := &Summary{Skipped: []Skipped{}}
	for _, c := range due {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("payout batch interrupted: %w", err)
		}
		summary.Processed++
		p.processOne(ctx, c, summary)
	}

	p.logger.Info("payout batch complete",
		"processed", summary.Processed,
		"paid", summary.Paid,
		"skipped", len(summary.Skipped),
	)
	return summary, nil
}

func (p *Processor) processOne(ctx context.Context, c *model.Commission, summary *Summary) {
	if c.Status == model.CommissionPending {
		ok, err := p.commissions.TransitionStatus(c.ID, model.CommissionPending, model.CommissionPayable)
		if err != nil {
			p.logger.Error("promote commission", "commission_id", c.ID, "error", err)
			summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipStatusConflict})
			return
		}
		if !ok {
			// A concurrent run already moved this row on.
			summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipStatusConflict})
			return
		}
	}

	account, err := p.accounts.Get(c.AffiliateUserID)
	if err != nil {
		p.logger.Error("resolve payout account", "commission_id", c.ID, "error", err)
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipNoPayoutAccount})
		return
	}
	if account == nil {
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipNoPayoutAccount})
		return
	}
	if account.Status == model.PayoutAccountPaused {
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipAccountPaused, Destination: account.StripeAccountID})
		return
	}
	if account.StripeAccountID == "" {
		// Onboarding affiliates get paid once a destination exists.
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipMissingDestination})
		return
	}
	if c.CommissionCents <= 0 {
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipInvalidAmount, Destination: account.StripeAccountID})
		return
	}

	transferID, err := p.transfers.CreateTransfer(ctx, account.StripeAccountID, c.CommissionCents, c.Currency, IdempotencyKey(c.ID))
	if err != nil {
		if p.permanent(err) {
			if _, ferr := p.commissions.MarkFailed(c.ID); ferr != nil {
				p.logger.Error("mark commission failed", "commission_id", c.ID, "error", ferr)
			}
			p.logger.Warn("transfer permanently failed", "commission_id", c.ID, "destination", account.StripeAccountID, "error", err)
			summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipPermanentFailure, Destination: account.StripeAccountID})
			return
		}
		// Transient: leave the row payable for the next batch.
		p.logger.Warn("transfer failed, will retry", "commission_id", c.ID, "destination", account.StripeAccountID, "error", err)
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipTransferFailed, Destination: account.StripeAccountID})
		return
	}

	ok, err := p.commissions.MarkPaid(c.ID, transferID, p.now())
	if err != nil {
		p.logger.Error("mark commission paid", "commission_id", c.ID, "transfer_id", transferID, "error", err)
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipStatusConflict, Destination: account.StripeAccountID})
		return
	}
	if !ok {
		// Another run recorded the same (idempotent) transfer first.
		summary.Skipped = append(summary.Skipped, Skipped{ID: c.ID, Reason: SkipStatusConflict, Destination: account.StripeAccountID})
		return
	}
	summary.Paid++
	p.logger.Info("commission paid", "commission_id", c.ID, "transfer_id", transferID, "amount_cents", c.CommissionCents)
}

// IdempotencyKey derives a stable token from the commission's identity, so a
// batch run retrying a row the processor already transferred resolves to the
// same transfer on the payment processor's side.
func IdempotencyKey(commissionID int64) string {
	name := fmt.Sprintf("https://tradylo.app/commissions/%d/transfer", commissionID)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
