package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LedgerService owns every read and the single mutation path for bottle
// balances. Write methods accept an optional enclosing transaction so the
// caller can commit a debit together with its own state change as one unit.
type LedgerService interface {
	// CreateForPurchase materializes the ledger row for a freshly confirmed
	// purchase with remaining_ml = total_ml.
	CreateForPurchase(ctx context.Context, tx *gorm.DB, purchaseID snowflake.ID, totalML int64) error

	// GetBalance returns the latest committed balance.
	GetBalance(ctx context.Context, purchaseID snowflake.ID) (Balance, error)

	// TryDebit atomically subtracts amountML if and only if the remaining
	// balance covers it. Of two concurrent debits whose sum exceeds the
	// balance, exactly one succeeds; the other gets ErrInsufficientBalance.
	TryDebit(ctx context.Context, tx *gorm.DB, purchaseID snowflake.ID, amountML int64) (remainingML int64, err error)
}

// Service is the package alias for LedgerService.
type Service = LedgerService

var (
	ErrLedgerNotFound      = errors.New("ledger_not_found")
	ErrLedgerExists        = errors.New("ledger_already_exists")
	ErrInvalidAmount       = errors.New("invalid_debit_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
)
