package domain

import "time"

const (
	// MaxCodesPerBatch caps a single admin generation request.
	MaxCodesPerBatch = 50

	// CodeValidity is how long a generated code stays redeemable.
	CodeValidity = 30 * 24 * time.Hour
)

// RegistrationCode is an admin-issued, single-use alternative proof of
// payment for a specific program.
type RegistrationCode struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Program   string     `json:"program"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	CreatedBy string     `json:"created_by"`
	UsedBy    string     `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Redeemable reports whether the code can still be used at the given time.
func (c *RegistrationCode) Redeemable(now time.Time) bool {
	return c.UsedBy == "" && now.Before(c.ExpiresAt)
}
