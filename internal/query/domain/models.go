package domain

import (
	"context"
	"time"

	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/bwmarrin/snowflake"
)

// UserBottle is the customer-facing projection of one purchased bottle.
type UserBottle struct {
	PurchaseID  snowflake.ID `json:"purchase_id,string"`
	BottleID    snowflake.ID `json:"bottle_id,string"`
	VenueName   string       `json:"venue_name"`
	BottleName  string       `json:"bottle_name"`
	BottleBrand string       `json:"bottle_brand"`
	TotalML     int64        `json:"total_ml"`
	RemainingML int64        `json:"remaining_ml"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// PendingPurchase is one row of the bartender's confirmation queue.
type PendingPurchase struct {
	PurchaseID  snowflake.ID `json:"purchase_id,string"`
	UserID      snowflake.ID `json:"user_id,string"`
	BottleName  string       `json:"bottle_name"`
	BottleBrand string       `json:"bottle_brand"`
	VolumeML    int64        `json:"volume_ml"`
	PriceCents  int64        `json:"price_cents"`
	CreatedAt   time.Time    `json:"created_at"`
}

// RedemptionHistoryItem is one row of a customer's or venue's redemption log.
type RedemptionHistoryItem struct {
	TokenID     snowflake.ID                 `json:"token_id,string"`
	UserID      snowflake.ID                 `json:"user_id,string"`
	BottleName  string                       `json:"bottle_name"`
	BottleBrand string                       `json:"bottle_brand"`
	VenueName   string                       `json:"venue_name"`
	PegSizeML   int64                        `json:"peg_size_ml"`
	Status      redemptiondomain.TokenStatus `json:"status"`
	RedeemedAt  *time.Time                   `json:"redeemed_at,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
}

// QueryService serves the read-only projections the UI clients poll. Each is
// a pure function of committed state; none introduce new invariants.
type QueryService interface {
	MyBottles(ctx context.Context, userID snowflake.ID) ([]UserBottle, error)
	PurchaseHistory(ctx context.Context, userID snowflake.ID) ([]UserBottle, error)
	PendingPurchases(ctx context.Context, venueID snowflake.ID) ([]PendingPurchase, error)
	RedemptionHistory(ctx context.Context, userID snowflake.ID) ([]RedemptionHistoryItem, error)
	RecentRedemptions(ctx context.Context, venueID snowflake.ID, limit int) ([]RedemptionHistoryItem, error)
}

// Service is the package alias for QueryService.
type Service = QueryService
