package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tradylo/billing/internal/commission"
	"github.com/tradylo/billing/internal/entitlement"
	"github.com/tradylo/billing/internal/handler"
	"github.com/tradylo/billing/internal/middleware"
	"github.com/tradylo/billing/internal/payout"
	billingstripe "github.com/tradylo/billing/internal/stripe"
	"github.com/tradylo/billing/internal/store"
)

type Server struct {
	db              *sql.DB
	webhookH        *handler.WebhookHandler
	payoutH         *handler.PayoutHandler
	payoutProcessor *payout.Processor
	stripeClient    *billingstripe.Client
	logger          *slog.Logger
}

type Config struct {
	Stripe       billingstripe.Config
	PayoutSecret string
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	entitlementStore := store.NewEntitlementStore(db)
	affiliateStore := store.NewAffiliateStore(db)
	commissionStore := store.NewCommissionStore(db)
	payoutAccountStore := store.NewPayoutAccountStore(db)
	configStore := store.NewBillingConfigStore(db)
	eventStore := store.NewWebhookEventStore(db)

	stripeClient := billingstripe.NewClient(cfg.Stripe)

	entitlements := entitlement.NewManager(entitlementStore, logger.With("component", "entitlement"))
	recorder := commission.NewRecorder(affiliateStore, commissionStore, logger.With("component", "commission"))
	processor := payout.New(
		commissionStore,
		payoutAccountStore,
		stripeClient,
		billingstripe.IsPermanentTransferError,
		logger.With("component", "payout"),
	)

	webhookH := handler.NewWebhookHandler(
		stripeClient, stripeClient, entitlements, recorder, configStore, eventStore,
		logger.With("component", "webhook"),
	)
	payoutH := handler.NewPayoutHandler(processor, cfg.PayoutSecret, logger.With("component", "payout"))

	return &Server{
		db:              db,
		webhookH:        webhookH,
		payoutH:         payoutH,
		payoutProcessor: processor,
		stripeClient:    stripeClient,
		logger:          logger,
	}
}

// PayoutProcessor returns the batch processor for scheduled runs.
func (s *Server) PayoutProcessor() *payout.Processor {
	return s.payoutProcessor
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Stripe webhook (public, signature-authenticated)
	mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)

	// Payout batch trigger (schedule or manual)
	mux.HandleFunc("POST /api/payouts/run", s.payoutH.Run)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
