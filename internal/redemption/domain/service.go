package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Outcome classifies a validation attempt. Exactly one of any number of
// concurrent attempts on the same token may end OutcomeRedeemed.
type Outcome string

const (
	OutcomeRedeemed            Outcome = "redeemed"
	OutcomeAlreadyUsed         Outcome = "already_used"
	OutcomeExpired             Outcome = "expired"
	OutcomeCancelled           Outcome = "cancelled"
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
	OutcomeInvalidToken        Outcome = "invalid_token"
	OutcomeVenueMismatch       Outcome = "venue_mismatch"
)

type IssueRequest struct {
	PurchaseID snowflake.ID
	UserID     snowflake.ID
	PegSizeML  int64
}

// IssuedToken is the issuance result: the stored token plus the payload the
// client renders as a QR code.
type IssuedToken struct {
	Token     RedemptionToken `json:"token"`
	QRPayload QRPayload       `json:"qr_payload"`
}

type ValidateRequest struct {
	TokenValue string
	StaffID    snowflake.ID
	VenueID    snowflake.ID
}

// ValidateResult reports the outcome of one scan. On OutcomeRedeemed it
// carries everything the bartender's confirmation screen shows.
type ValidateResult struct {
	Outcome     Outcome          `json:"outcome"`
	Token       *RedemptionToken `json:"token,omitempty"`
	BottleBrand string           `json:"bottle_brand,omitempty"`
	BottleName  string           `json:"bottle_name,omitempty"`
	VenueName   string           `json:"venue_name,omitempty"`
	TotalML     int64            `json:"total_ml,omitempty"`
	RemainingML int64            `json:"remaining_ml,omitempty"`
}

// RedemptionService issues time-boxed single-use tokens and consumes them
// against the ledger. Validate reports business outcomes in the result and
// reserves its error return for storage failures.
type RedemptionService interface {
	Issue(ctx context.Context, req IssueRequest) (*IssuedToken, error)
	Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error)
	Cancel(ctx context.Context, tokenID, userID snowflake.ID) (*RedemptionToken, error)
	Status(ctx context.Context, tokenID, userID snowflake.ID) (*RedemptionToken, error)
}

// Service is the package alias for RedemptionService.
type Service = RedemptionService

var (
	ErrInvalidPegSize  = errors.New("invalid_peg_size")
	ErrBottleExpired   = errors.New("bottle_expired")
	ErrTokenNotFound   = errors.New("token_not_found")
	ErrTokenNotPending = errors.New("token_not_pending")
)
