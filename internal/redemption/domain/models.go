package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TokenStatus is the redemption token lifecycle state. pending is the only
// non-terminal state; a token leaves it exactly once.
type TokenStatus string

const (
	TokenStatusPending   TokenStatus = "pending"
	TokenStatusRedeemed  TokenStatus = "redeemed"
	TokenStatusExpired   TokenStatus = "expired"
	TokenStatusCancelled TokenStatus = "cancelled"
)

// RedemptionToken is a short-lived single-use claim against a bottle ledger,
// rendered client-side as a QR code. The token value is unguessable. The
// payload it carries is a claim, not a pre-authorization; validation always
// re-checks the live ledger.
type RedemptionToken struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id,string"`
	Token             string        `gorm:"type:text;not null;uniqueIndex" json:"token"`
	PurchaseID        snowflake.ID  `gorm:"not null;index" json:"purchase_id,string"`
	UserID            snowflake.ID  `gorm:"not null;index" json:"user_id,string"`
	VenueID           snowflake.ID  `gorm:"not null;index" json:"venue_id,string"`
	PegSizeML         int64         `gorm:"not null" json:"peg_size_ml"`
	Status            TokenStatus   `gorm:"type:text;not null;default:pending" json:"status"`
	ExpiresAt         time.Time     `gorm:"not null" json:"expires_at"`
	RedeemedAt        *time.Time    `json:"redeemed_at,omitempty"`
	RedeemedByStaffID *snowflake.ID `json:"redeemed_by_staff_id,omitempty"`
	CreatedAt         time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (RedemptionToken) TableName() string { return "redemption_tokens" }

// PourEvent is the immutable journal row appended in the same transaction as
// a successful debit. It exists for reporting and survives independently of
// the token's own record.
type PourEvent struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id,string"`
	TokenID          snowflake.ID `gorm:"not null;index" json:"token_id,string"`
	PurchaseID       snowflake.ID `gorm:"not null;index" json:"purchase_id,string"`
	UserID           snowflake.ID `gorm:"not null" json:"user_id,string"`
	VenueID          snowflake.ID `gorm:"not null" json:"venue_id,string"`
	StaffID          snowflake.ID `gorm:"not null" json:"staff_id,string"`
	PegSizeML        int64        `gorm:"not null" json:"peg_size_ml"`
	RemainingMLAfter int64        `gorm:"not null" json:"remaining_ml_after"`
	PouredAt         time.Time    `gorm:"not null" json:"poured_at"`
}

// TableName sets the database table name.
func (PourEvent) TableName() string { return "pour_events" }

// QRPayload is the JSON rendered into the customer's QR code. Field names
// stay short to keep the code scannable on small screens.
type QRPayload struct {
	Token     string    `json:"id"`
	Venue     string    `json:"venue"`
	Bottle    string    `json:"bottle"`
	PegSizeML int64     `json:"ml"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"created"`
}
