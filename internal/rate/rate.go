// Package rate resolves the commission percent for a billing event.
package rate

import (
	"time"

	"github.com/tradylo/billing/internal/model"
)

// Resolve combines an affiliate's base percent with the configured default
// floor and promo window. The result only ever rises: the floor lifts
// underpriced codes without lowering custom higher rates, and the promo lifts
// further inside [PromoStartAt, PromoEndAt). A nil config or a zero event
// time falls open to the base/floor rate. Pure function.
func Resolve(basePercent float64, eventTime time.Time, cfg *model.BillingConfig) float64 {
	pct := basePercent
	if cfg == nil {
		return pct
	}
	if cfg.DefaultCommissionPercent > pct {
		pct = cfg.DefaultCommissionPercent
	}
	if eventTime.IsZero() || cfg.PromoStartAt == nil || cfg.PromoEndAt == nil {
		return pct
	}
	inWindow := !eventTime.Before(*cfg.PromoStartAt) && eventTime.Before(*cfg.PromoEndAt)
	if inWindow && cfg.PromoCommissionPercent > pct {
		pct = cfg.PromoCommissionPercent
	}
	return pct
}
