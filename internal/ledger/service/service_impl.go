package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/anishghanwat/storemybottle/internal/clock"
	ledgerdomain "github.com/anishghanwat/storemybottle/internal/ledger/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		clock: p.Clock,
	}
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *Service) CreateForPurchase(ctx context.Context, tx *gorm.DB, purchaseID snowflake.ID, totalML int64) error {
	if purchaseID == 0 || totalML <= 0 {
		return ledgerdomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	ledger := ledgerdomain.BottleLedger{
		PurchaseID:  purchaseID,
		TotalML:     totalML,
		RemainingML: totalML,
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.conn(tx).WithContext(ctx).Create(&ledger).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ledgerdomain.ErrLedgerExists
		}
		return fmt.Errorf("create ledger: %w", err)
	}
	return nil
}

func (s *Service) GetBalance(ctx context.Context, purchaseID snowflake.ID) (ledgerdomain.Balance, error) {
	var ledger ledgerdomain.BottleLedger
	err := s.db.WithContext(ctx).First(&ledger, "purchase_id = ?", purchaseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerdomain.Balance{}, ledgerdomain.ErrLedgerNotFound
		}
		return ledgerdomain.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	return ledgerdomain.Balance{
		PurchaseID:  ledger.PurchaseID,
		TotalML:     ledger.TotalML,
		RemainingML: ledger.RemainingML,
		Version:     ledger.Version,
	}, nil
}

// TryDebit is implemented as a single guarded UPDATE: the WHERE clause checks
// the balance and the SET applies the subtraction in the same statement, so
// the database serializes concurrent debits on the same row and at most one
// of two over-draining attempts can apply.
func (s *Service) TryDebit(ctx context.Context, tx *gorm.DB, purchaseID snowflake.ID, amountML int64) (int64, error) {
	if amountML <= 0 {
		return 0, ledgerdomain.ErrInvalidAmount
	}

	conn := s.conn(tx).WithContext(ctx)
	res := conn.Exec(
		`UPDATE bottle_ledgers
		 SET remaining_ml = remaining_ml - ?,
		     version = version + 1,
		     updated_at = ?
		 WHERE purchase_id = ? AND remaining_ml >= ?`,
		amountML,
		s.clock.Now(),
		purchaseID,
		amountML,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("debit ledger: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := conn.Model(&ledgerdomain.BottleLedger{}).
			Where("purchase_id = ?", purchaseID).
			Count(&count).Error; err != nil {
			return 0, fmt.Errorf("check ledger: %w", err)
		}
		if count == 0 {
			return 0, ledgerdomain.ErrLedgerNotFound
		}
		return 0, ledgerdomain.ErrInsufficientBalance
	}

	var remaining int64
	if err := conn.Model(&ledgerdomain.BottleLedger{}).
		Where("purchase_id = ?", purchaseID).
		Select("remaining_ml").
		Scan(&remaining).Error; err != nil {
		return 0, fmt.Errorf("read balance after debit: %w", err)
	}

	s.log.Debug("ledger debited",
		zap.String("purchase_id", purchaseID.String()),
		zap.Int64("amount_ml", amountML),
		zap.Int64("remaining_ml", remaining),
	)
	return remaining, nil
}
