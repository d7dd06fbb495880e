package service

import (
	"context"
	"errors"
	"fmt"

	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	"github.com/anishghanwat/storemybottle/internal/clock"
	"github.com/anishghanwat/storemybottle/internal/events"
	ledgerdomain "github.com/anishghanwat/storemybottle/internal/ledger/domain"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
	LedgerSvc  ledgerdomain.Service
	Outbox     *events.Outbox
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	genID      *snowflake.Node
	catalogSvc catalogdomain.Service
	ledgerSvc  ledgerdomain.Service
	outbox     *events.Outbox
}

func NewService(p Params) purchasedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("purchase.service"),
		clock: p.Clock,

		genID:      p.GenID,
		catalogSvc: p.CatalogSvc,
		ledgerSvc:  p.LedgerSvc,
		outbox:     p.Outbox,
	}
}

func (s *Service) Create(ctx context.Context, req purchasedomain.CreateRequest) (*purchasedomain.Purchase, error) {
	if req.UserID == 0 {
		return nil, purchasedomain.ErrInvalidUser
	}

	venue, err := s.catalogSvc.GetVenue(ctx, req.VenueID)
	if err != nil {
		return nil, err
	}
	bottle, err := s.catalogSvc.GetBottle(ctx, req.BottleID)
	if err != nil {
		return nil, err
	}
	if bottle.VenueID != venue.ID {
		return nil, catalogdomain.ErrBottleNotFound
	}
	if !bottle.IsAvailable {
		return nil, purchasedomain.ErrUnavailable
	}

	now := s.clock.Now()
	record := purchasedomain.Purchase{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		BottleID:      bottle.ID,
		VenueID:       venue.ID,
		TotalML:       bottle.VolumeML,
		PriceCents:    bottle.PriceCents,
		PaymentStatus: purchasedomain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	s.log.Info("purchase created",
		zap.String("purchase_id", record.ID.String()),
		zap.String("user_id", record.UserID.String()),
		zap.Int64("total_ml", record.TotalML),
	)
	return &record, nil
}

// Confirm settles the pending purchase with a compare-and-set on
// payment_status, so the first of two concurrent confirmations wins and the
// ledger row is created exactly once, in the winner's transaction.
func (s *Service) Confirm(ctx context.Context, req purchasedomain.ConfirmRequest) (*purchasedomain.Purchase, error) {
	method := req.Method
	if method == "" {
		// Bartender confirming at the counter without an explicit method
		// means cash changed hands.
		method = purchasedomain.PaymentMethodCash
	}
	if !purchasedomain.ValidPaymentMethod(method) {
		return nil, purchasedomain.ErrInvalidMethod
	}

	now := s.clock.Now()
	var result *purchasedomain.Purchase

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE purchases
			 SET payment_status = ?, payment_method = ?, confirmed_at = ?, updated_at = ?
			 WHERE id = ? AND payment_status = ?`,
			purchasedomain.PaymentStatusConfirmed,
			method,
			now,
			now,
			req.PurchaseID,
			purchasedomain.PaymentStatusPending,
		)
		if res.Error != nil {
			return fmt.Errorf("confirm purchase: %w", res.Error)
		}

		record, err := s.load(ctx, tx, req.PurchaseID)
		if err != nil {
			return err
		}

		if res.RowsAffected == 0 {
			// Lost the CAS or the purchase already left pending. A repeat
			// confirm of an already-confirmed purchase is a no-op.
			if record.PaymentStatus == purchasedomain.PaymentStatusConfirmed {
				result = record
				return nil
			}
			return purchasedomain.ErrInvalidState
		}

		if err := s.ledgerSvc.CreateForPurchase(ctx, tx, record.ID, record.TotalML); err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPurchaseConfirmed,
			Payload: events.PurchasePayload{
				PurchaseID: record.ID.String(),
				UserID:     record.UserID.String(),
				VenueID:    record.VenueID.String(),
				TotalML:    record.TotalML,
			}.ToMap(),
			DedupeKey: "purchase.confirmed:" + record.ID.String(),
		}); err != nil {
			return err
		}

		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase confirmed",
		zap.String("purchase_id", result.ID.String()),
		zap.String("staff_id", req.StaffID.String()),
		zap.String("method", string(method)),
	)
	return result, nil
}

func (s *Service) Reject(ctx context.Context, purchaseID, staffID snowflake.ID) (*purchasedomain.Purchase, error) {
	now := s.clock.Now()
	var result *purchasedomain.Purchase

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE purchases
			 SET payment_status = ?, updated_at = ?
			 WHERE id = ? AND payment_status = ?`,
			purchasedomain.PaymentStatusFailed,
			now,
			purchaseID,
			purchasedomain.PaymentStatusPending,
		)
		if res.Error != nil {
			return fmt.Errorf("reject purchase: %w", res.Error)
		}

		record, err := s.load(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			if record.PaymentStatus == purchasedomain.PaymentStatusFailed {
				result = record
				return nil
			}
			return purchasedomain.ErrInvalidState
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPurchaseRejected,
			Payload: events.PurchasePayload{
				PurchaseID: record.ID.String(),
				UserID:     record.UserID.String(),
				VenueID:    record.VenueID.String(),
			}.ToMap(),
			DedupeKey: "purchase.rejected:" + record.ID.String(),
		}); err != nil {
			return err
		}

		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase rejected",
		zap.String("purchase_id", result.ID.String()),
		zap.String("staff_id", staffID.String()),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, purchaseID, userID snowflake.ID) (*purchasedomain.Purchase, error) {
	var record purchasedomain.Purchase
	err := s.db.WithContext(ctx).
		First(&record, "id = ? AND user_id = ?", purchaseID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchasedomain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return &record, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, purchaseID snowflake.ID) (*purchasedomain.Purchase, error) {
	var record purchasedomain.Purchase
	err := tx.WithContext(ctx).First(&record, "id = ?", purchaseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchasedomain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	return &record, nil
}
