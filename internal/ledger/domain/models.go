package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BottleLedger is the durable remaining-volume balance for one confirmed
// purchase. remaining_ml only ever decreases, and only through TryDebit.
type BottleLedger struct {
	PurchaseID  snowflake.ID `gorm:"primaryKey" json:"purchase_id,string"`
	TotalML     int64        `gorm:"not null" json:"total_ml"`
	RemainingML int64        `gorm:"not null" json:"remaining_ml"`
	Version     int64        `gorm:"not null;default:0" json:"version"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (BottleLedger) TableName() string { return "bottle_ledgers" }

// Balance is a committed-state snapshot of a ledger.
type Balance struct {
	PurchaseID  snowflake.ID `json:"purchase_id,string"`
	TotalML     int64        `json:"total_ml"`
	RemainingML int64        `json:"remaining_ml"`
	Version     int64        `json:"version"`
}
