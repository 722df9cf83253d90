package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tradylo/billing/internal/model"
)

// ErrSelfReferral is returned when a user tries to refer themselves.
var ErrSelfReferral = errors.New("user cannot refer themselves")

type AffiliateStore struct {
	db *sql.DB
}

func NewAffiliateStore(db *sql.DB) *AffiliateStore {
	return &AffiliateStore{db: db}
}

// GetActiveCode returns the affiliate code row, or nil when the code does not
// exist or has been deactivated. Inactive codes never earn new commissions.
func (s *AffiliateStore) GetActiveCode(code string) (*model.AffiliateCode, error) {
	row := s.db.QueryRow(
		`SELECT code, affiliate_user_id, commission_percent, is_active, created_at FROM affiliate_codes WHERE code = ? AND is_active = 1`,
		strings.ToUpper(strings.TrimSpace(code)),
	)
	var c model.AffiliateCode
	var active int
	err := row.Scan(&c.Code, &c.AffiliateUserID, &c.CommissionPercent, &active, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get affiliate code: %w", err)
	}
	c.IsActive = active != 0
	return &c, nil
}

// UpsertCode creates or updates an affiliate code. Admin surface.
func (s *AffiliateStore) UpsertCode(code, affiliateUserID string, commissionPercent float64, isActive bool) error {
	active := 0
	if isActive {
		active = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO affiliate_codes (code, affiliate_user_id, commission_percent, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			affiliate_user_id = excluded.affiliate_user_id,
			commission_percent = excluded.commission_percent,
			is_active = excluded.is_active`,
		strings.ToUpper(strings.TrimSpace(code)), affiliateUserID, commissionPercent, active,
	)
	if err != nil {
		return fmt.Errorf("upsert affiliate code: %w", err)
	}
	return nil
}

func (s *AffiliateStore) GetReferral(referredUserID string) (*model.Referral, error) {
	row := s.db.QueryRow(
		`SELECT referred_user_id, affiliate_user_id, code, created_at FROM referrals WHERE referred_user_id = ?`,
		referredUserID,
	)
	var r model.Referral
	err := row.Scan(&r.ReferredUserID, &r.AffiliateUserID, &r.Code, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get referral: %w", err)
	}
	return &r, nil
}

// CreateReferral records the one-time referral link for a user. An existing
// referral wins: the insert is a no-op and the original row is returned.
func (s *AffiliateStore) CreateReferral(referredUserID, affiliateUserID, code string) (*model.Referral, error) {
	if referredUserID == affiliateUserID {
		return nil, ErrSelfReferral
	}
	_, err := s.db.Exec(
		`INSERT INTO referrals (referred_user_id, affiliate_user_id, code) VALUES (?, ?, ?)
		 ON CONFLICT(referred_user_id) DO NOTHING`,
		referredUserID, affiliateUserID, strings.ToUpper(strings.TrimSpace(code)),
	)
	if err != nil {
		return nil, fmt.Errorf("insert referral: %w", err)
	}
	return s.GetReferral(referredUserID)
}
