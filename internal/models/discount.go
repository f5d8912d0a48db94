package models

import (
	"strings"
	"time"
)

// DiscountCode is a promotional code definition. Written only via admin
// tooling; codes are stored and compared uppercased.
type DiscountCode struct {
	ID                 string        `json:"id"`
	Code               string        `json:"code"`
	PercentOff         int           `json:"percentOff"`
	ApplicableProducts []SessionType `json:"applicableProducts"`
	ValidFrom          *time.Time    `json:"validFrom"`
	ValidUntil         *time.Time    `json:"validUntil"`
	MaxUses            *int          `json:"maxUses"`
	TimesUsed          int           `json:"timesUsed"`
	Active             bool          `json:"active"`
	Description        string        `json:"description"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// AppliesTo reports whether the code covers the given product
func (d *DiscountCode) AppliesTo(t SessionType) bool {
	for _, p := range d.ApplicableProducts {
		if p == t {
			return true
		}
	}
	return false
}

// InWindow reports whether now falls inside the code's validity window
func (d *DiscountCode) InWindow(now time.Time) bool {
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return false
	}
	return true
}

// UsageCapReached reports whether the global redemption cap is exhausted
func (d *DiscountCode) UsageCapReached() bool {
	return d.MaxUses != nil && d.TimesUsed >= *d.MaxUses
}

// NormalizeCode uppercases and trims a user-entered code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateDiscountCodeRequest is the admin code-creation payload
type CreateDiscountCodeRequest struct {
	Code               string        `json:"code" binding:"required,max=64"`
	PercentOff         int           `json:"percentOff" binding:"required,min=1,max=100"`
	ApplicableProducts []SessionType `json:"applicableProducts" binding:"required,min=1"`
	ValidFrom          *time.Time    `json:"validFrom"`
	ValidUntil         *time.Time    `json:"validUntil"`
	MaxUses            *int          `json:"maxUses" binding:"omitempty,min=1"`
	Description        string        `json:"description" binding:"max=500"`
}

// ValidateDiscountRequest is the discount validation call payload
type ValidateDiscountRequest struct {
	Code        string      `json:"code" binding:"required,max=64"`
	Email       string      `json:"email" binding:"required,email"`
	SessionType SessionType `json:"sessionType" binding:"required"`
}

// ValidateDiscountResponse reports validity or a structured rejection code
type ValidateDiscountResponse struct {
	Valid       bool   `json:"valid"`
	PercentOff  int    `json:"percentOff,omitempty"`
	Description string `json:"description,omitempty"`
	DiscountID  string `json:"discountId,omitempty"`
	ErrorCode   string `json:"errorCode,omitempty"`
	Message     string `json:"message,omitempty"`
}
