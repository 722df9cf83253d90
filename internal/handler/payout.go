package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tradylo/billing/internal/payout"
)

type PayoutHandler struct {
	processor *payout.Processor
	secret    string
	logger    *slog.Logger
}

// NewPayoutHandler wires the payout trigger endpoint. An empty secret
// disables the shared-secret check.
func NewPayoutHandler(p *payout.Processor, secret string, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{processor: p, secret: secret, logger: logger}
}

// Run executes one payout batch and reports the summary.
func (h *PayoutHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		provided := r.Header.Get("X-Payout-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	summary, err := h.processor.Run(r.Context())
	if err != nil {
		h.logger.Error("payout batch failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "payout batch failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		OK        bool             `json:"ok"`
		Processed int              `json:"processed"`
		Paid      int              `json:"paid"`
		Skipped   []payout.Skipped `json:"skipped"`
	}{
		OK:        true,
		Processed: summary.Processed,
		Paid:      summary.Paid,
		Skipped:   summary.Skipped,
	})
}
