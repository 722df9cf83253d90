package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/tradylo/billing/internal/commission"
	"github.com/tradylo/billing/internal/entitlement"
	"github.com/tradylo/billing/internal/model"
	billingstripe "github.com/tradylo/billing/internal/stripe"
	"github.com/tradylo/billing/internal/store"
)

// EventVerifier authenticates a raw webhook payload against its signature.
type EventVerifier interface {
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// SubscriptionResolver fetches live subscription state from the processor.
type SubscriptionResolver interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type WebhookHandler struct {
	verifier      EventVerifier
	subscriptions SubscriptionResolver
	entitlements *entitlement.Manager
	recorder     *commission.Recorder
	configs      *store.BillingConfigStore
	events       *store.WebhookEventStore
	logger       *slog.Logger
}

func NewWebhookHandler(
	verifier EventVerifier,
	subs SubscriptionResolver,
	em *entitlement.Manager,
	rec *commission.Recorder,
	bcs *store.BillingConfigStore,
	wes *store.WebhookEventStore,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:      verifier,
		subscriptions: subs,
		entitlements:  em,
		recorder:      rec,
		configs:       bcs,
		events:        wes,
		logger:        logger,
	}
}

type webhookResponse struct {
	OK      bool   `json:"ok"`
	Warning string `json:"warning,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// HandleStripeWebhook verifies, logs, and dispatches one billing event.
// Beyond signature rejection the endpoint always acknowledges with 200 so
// the processor does not retry: every dispatch step is idempotent per event
// or invoice id, and the event log carries the diagnosis for failures.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.verifier.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logEvent(nil, model.EventTypeInvalidSignature, body)
		h.logger.Warn("rejected webhook with invalid signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	h.logEvent(&event.ID, string(event.Type), body)

	var dispatchErr error
	switch event.Type {
	case "checkout.session.completed":
		dispatchErr = h.handleCheckoutCompleted(r.Context(), event)
	case "invoice.payment_succeeded":
		dispatchErr = h.handleInvoicePaymentSucceeded(r.Context(), event)
	case "customer.subscription.deleted":
		dispatchErr = h.handleSubscriptionDeleted(r.Context(), event)
	case "customer.subscription.updated":
		dispatchErr = h.handleSubscriptionUpdated(r.Context(), event)
	default:
		// Unhandled kinds are acknowledged with no state change.
	}

	resp := webhookResponse{OK: true}
	if dispatchErr != nil {
		h.logger.Error("webhook dispatch failed", "event_id", event.ID, "type", event.Type, "error", dispatchErr)
		resp.Warning = "processing_error"
		resp.Detail = dispatchErr.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// logEvent appends to the webhook event log. Best effort: a logging failure
// must never block dispatch.
func (h *WebhookHandler) logEvent(eventID *string, eventType string, payload []byte) {
	if err := h.events.Insert(eventID, eventType, string(payload)); err != nil {
		h.logger.Warn("event log write failed", "type", eventType, "error", err)
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return err
	}

	userID := sess.ClientReferenceID
	if userID == "" {
		userID = sess.Metadata["user_id"]
	}
	if userID == "" {
		h.logger.Warn("checkout session without user reference", "event_id", event.ID)
		return nil
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	status := ""
	var periodEnd *time.Time
	subscriptionID := ""
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
		// Lookup failure is tolerated: grant access now, refresh on the
		// next subscription event.
		if sub, err := h.subscriptions.GetSubscription(ctx, subscriptionID); err != nil {
			h.logger.Warn("subscription lookup failed", "subscription_id", subscriptionID, "error", err)
		} else {
			status = string(sub.Status)
			periodEnd = billingstripe.SubscriptionPeriodEnd(sub)
		}
	}

	return h.entitlements.GrantPaidAccess(userID, customerID, subscriptionID, status, periodEnd)
}

// subscriptionIDFromInvoice extracts the subscription id from an invoice's
// parent.
func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

func (h *WebhookHandler) handleInvoicePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return err
	}

	subscriptionID := subscriptionIDFromInvoice(invoice)
	if subscriptionID == "" {
		return nil
	}

	ent, err := h.entitlements.UserBySubscription(subscriptionID)
	if err != nil {
		return err
	}
	if ent == nil {
		// No user maps to this subscription; acknowledged as a no-op.
		return nil
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}

	status := ""
	var periodEnd *time.Time
	if sub, err := h.subscriptions.GetSubscription(ctx, subscriptionID); err != nil {
		h.logger.Warn("subscription lookup failed", "subscription_id", subscriptionID, "error", err)
	} else {
		status = string(sub.Status)
		periodEnd = billingstripe.SubscriptionPeriodEnd(sub)
	}

	if err := h.entitlements.GrantPaidAccess(ent.UserID, customerID, subscriptionID, status, periodEnd); err != nil {
		return err
	}

	if invoice.AmountPaid > 0 && invoice.ID != "" {
		h.recordCommission(ent.UserID, &invoice, customerID, event.Created)
	}
	return nil
}

// recordCommission is best effort: commission tracking must never make the
// billing-state update look failed to the sender.
func (h *WebhookHandler) recordCommission(userID string, invoice *stripe.Invoice, customerID string, eventCreated int64) {
	cfg, err := h.configs.Get()
	if err != nil {
		h.logger.Warn("billing config read failed, proceeding without promo", "error", err)
		cfg = nil
	}

	var eventTime time.Time
	if eventCreated > 0 {
		eventTime = time.Unix(eventCreated, 0).UTC()
	}
	err = h.recorder.Record(commission.Params{
		ReferredUserID: userID,
		InvoiceID:      invoice.ID,
		AmountCents:    invoice.AmountPaid,
		Currency:       string(invoice.Currency),
		CustomerID:     customerID,
		EventTime:      eventTime,
	}, cfg)
	if err != nil {
		h.logger.Warn("commission recording failed", "invoice_id", invoice.ID, "error", err)
	}
}

func (h *WebhookHandler) handleSubscriptionDeleted(_ context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return err
	}

	ent, err := h.entitlements.UserBySubscription(sub.ID)
	if err != nil {
		return err
	}
	if ent == nil {
		return nil
	}
	return h.entitlements.DowngradeUnlessProtected(ent.UserID, "canceled")
}

func (h *WebhookHandler) handleSubscriptionUpdated(_ context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return err
	}

	ent, err := h.entitlements.UserBySubscription(sub.ID)
	if err != nil {
		return err
	}
	if ent == nil {
		return nil
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		periodEnd := billingstripe.SubscriptionPeriodEnd(&sub)
		return h.entitlements.GrantPaidAccess(ent.UserID, customerID, sub.ID, string(sub.Status), periodEnd)
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPastDue:
		return h.entitlements.DowngradeUnlessProtected(ent.UserID, string(sub.Status))
	}
	return nil
}
