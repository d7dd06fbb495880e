package service

import (
	"context"
	"fmt"
	"time"

	"github.com/anishghanwat/storemybottle/internal/config"
	querydomain "github.com/anishghanwat/storemybottle/internal/query/domain"
	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRecentLimit = 10

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	Cfg config.Config
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config
}

func NewService(p Params) querydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("query.service"),
		cfg: p.Cfg,
	}
}

type bottleRow struct {
	PurchaseID  snowflake.ID
	BottleID    snowflake.ID
	VenueName   string
	BottleName  string
	BottleBrand string
	TotalML     int64
	RemainingML int64
	ConfirmedAt *time.Time
	CreatedAt   time.Time
}

const bottleSelect = `
SELECT p.id AS purchase_id, p.bottle_id, v.name AS venue_name,
       b.name AS bottle_name, b.brand AS bottle_brand,
       l.total_ml, l.remaining_ml, p.confirmed_at, p.created_at
FROM purchases p
JOIN bottle_ledgers l ON l.purchase_id = p.id
JOIN bottles b ON b.id = p.bottle_id
JOIN venues v ON v.id = p.venue_id
WHERE p.user_id = ? AND p.payment_status = 'confirmed'`

func (s *Service) MyBottles(ctx context.Context, userID snowflake.ID) ([]querydomain.UserBottle, error) {
	var rows []bottleRow
	err := s.db.WithContext(ctx).Raw(
		bottleSelect+` AND l.remaining_ml > 0 ORDER BY p.created_at DESC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list active bottles: %w", err)
	}
	return s.toUserBottles(rows), nil
}

func (s *Service) PurchaseHistory(ctx context.Context, userID snowflake.ID) ([]querydomain.UserBottle, error) {
	var rows []bottleRow
	err := s.db.WithContext(ctx).Raw(
		bottleSelect+` ORDER BY p.created_at DESC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list purchase history: %w", err)
	}
	return s.toUserBottles(rows), nil
}

func (s *Service) toUserBottles(rows []bottleRow) []querydomain.UserBottle {
	shelfLife := s.cfg.BottleShelfLife()
	bottles := make([]querydomain.UserBottle, 0, len(rows))
	for _, row := range rows {
		confirmedAt := row.CreatedAt
		if row.ConfirmedAt != nil {
			confirmedAt = *row.ConfirmedAt
		}
		bottles = append(bottles, querydomain.UserBottle{
			PurchaseID:  row.PurchaseID,
			BottleID:    row.BottleID,
			VenueName:   row.VenueName,
			BottleName:  row.BottleName,
			BottleBrand: row.BottleBrand,
			TotalML:     row.TotalML,
			RemainingML: row.RemainingML,
			ExpiresAt:   confirmedAt.Add(shelfLife),
		})
	}
	return bottles
}

func (s *Service) PendingPurchases(ctx context.Context, venueID snowflake.ID) ([]querydomain.PendingPurchase, error) {
	var rows []querydomain.PendingPurchase
	err := s.db.WithContext(ctx).Raw(
		`SELECT p.id AS purchase_id, p.user_id, b.name AS bottle_name, b.brand AS bottle_brand,
		        p.total_ml AS volume_ml, p.price_cents, p.created_at
		 FROM purchases p
		 JOIN bottles b ON b.id = p.bottle_id
		 WHERE p.venue_id = ? AND p.payment_status = 'pending'
		 ORDER BY p.created_at DESC`,
		venueID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pending purchases: %w", err)
	}
	return rows, nil
}

const redemptionSelect = `
SELECT t.id AS token_id, t.user_id, b.name AS bottle_name, b.brand AS bottle_brand,
       v.name AS venue_name, t.peg_size_ml, t.status, t.redeemed_at, t.created_at
FROM redemption_tokens t
JOIN purchases p ON p.id = t.purchase_id
JOIN bottles b ON b.id = p.bottle_id
JOIN venues v ON v.id = t.venue_id`

func (s *Service) RedemptionHistory(ctx context.Context, userID snowflake.ID) ([]querydomain.RedemptionHistoryItem, error) {
	var rows []querydomain.RedemptionHistoryItem
	err := s.db.WithContext(ctx).Raw(
		redemptionSelect+` WHERE t.user_id = ? ORDER BY t.created_at DESC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list redemption history: %w", err)
	}
	return rows, nil
}

func (s *Service) RecentRedemptions(ctx context.Context, venueID snowflake.ID, limit int) ([]querydomain.RedemptionHistoryItem, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var rows []querydomain.RedemptionHistoryItem
	err := s.db.WithContext(ctx).Raw(
		redemptionSelect+` WHERE t.venue_id = ? AND t.status = ? ORDER BY t.redeemed_at DESC LIMIT ?`,
		venueID,
		redemptiondomain.TokenStatusRedeemed,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list recent redemptions: %w", err)
	}
	return rows, nil
}
