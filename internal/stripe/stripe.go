package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/transfer"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}

// GetSubscription fetches a subscription, retrying transient API errors with
// a short fibonacci backoff. Read-only, so retries are always safe.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	var sub *stripe.Subscription
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		s, err := subscription.Get(subscriptionID, params)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}

// CreateTransfer moves commission funds to a connected account. The caller
// supplies an idempotency key derived from the commission row, so a retried
// batch run resolves to the same transfer instead of paying twice.
func (c *Client) CreateTransfer(ctx context.Context, destination string, amountCents int64, currency, idempotencyKey string) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(currency),
		Destination: stripe.String(destination),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	t, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("create transfer: %w", err)
	}
	return t.ID, nil
}

// SubscriptionPeriodEnd extracts the current billing period end. Stripe moved
// period bounds onto subscription items; nil when the shape is incomplete.
func SubscriptionPeriodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	end := sub.Items.Data[0].CurrentPeriodEnd
	if end <= 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}

// IsPermanentTransferError classifies transfer failures that will never
// succeed on retry: ineligible destinations, regional restrictions, and bad
// idempotency-key reuse all surface as invalid_request errors. Everything
// else (network, rate limits, Stripe 5xx) is treated as transient.
func IsPermanentTransferError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Type == stripe.ErrorTypeInvalidRequest
}

func isTransient(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Type == stripe.ErrorTypeAPI
	}
	// Non-Stripe errors are connection-level failures.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
