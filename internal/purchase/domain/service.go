package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// PurchaseService drives the purchase workflow: a purchase is created
// pending, a bartender confirms or rejects the counter payment, and
// confirmation materializes the bottle ledger in the same transaction.
type PurchaseService interface {
	Create(ctx context.Context, req CreateRequest) (*Purchase, error)

	// Confirm moves pending -> confirmed and creates the ledger atomically.
	// A repeated Confirm observes the terminal state and returns it without
	// a second ledger. Confirming a failed purchase is ErrInvalidState.
	Confirm(ctx context.Context, req ConfirmRequest) (*Purchase, error)

	// Reject moves pending -> failed; no ledger is ever created.
	Reject(ctx context.Context, purchaseID, staffID snowflake.ID) (*Purchase, error)

	// Get returns a purchase scoped to its owning user.
	Get(ctx context.Context, purchaseID, userID snowflake.ID) (*Purchase, error)
}

// Service is the package alias for PurchaseService.
type Service = PurchaseService

var (
	ErrPurchaseNotFound = errors.New("purchase_not_found")
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidState     = errors.New("invalid_purchase_state")
	ErrUnavailable      = errors.New("bottle_unavailable")
	ErrInvalidMethod    = errors.New("invalid_payment_method")
)
