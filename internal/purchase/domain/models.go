package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentStatus is the purchase lifecycle state. A purchase transitions out
// of pending exactly once and is immutable afterwards.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentMethod is how the counter payment was settled. It is an external
// attestation recorded at confirmation time, not a processed payment.
type PaymentMethod string

const (
	PaymentMethodUPI  PaymentMethod = "upi"
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCash, PaymentMethodCard:
		return true
	default:
		return false
	}
}

// Purchase records a bottle bought by a user at a venue. Price and volume are
// snapshotted from the catalog at creation so later catalog edits never
// affect an open purchase.
type Purchase struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id,string"`
	UserID        snowflake.ID   `gorm:"not null;index" json:"user_id,string"`
	BottleID      snowflake.ID   `gorm:"not null" json:"bottle_id,string"`
	VenueID       snowflake.ID   `gorm:"not null;index" json:"venue_id,string"`
	TotalML       int64          `gorm:"not null" json:"total_ml"`
	PriceCents    int64          `gorm:"not null" json:"price_cents"`
	PaymentStatus PaymentStatus  `gorm:"type:text;not null;default:pending" json:"payment_status"`
	PaymentMethod *PaymentMethod `gorm:"type:text" json:"payment_method,omitempty"`
	ConfirmedAt   *time.Time     `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Purchase) TableName() string { return "purchases" }

type CreateRequest struct {
	UserID   snowflake.ID
	BottleID snowflake.ID
	VenueID  snowflake.ID
}

type ConfirmRequest struct {
	PurchaseID snowflake.ID
	StaffID    snowflake.ID
	Method     PaymentMethod
}
