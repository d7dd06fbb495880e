package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anishghanwat/storemybottle/internal/cache"
	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lookupCacheTTL = 30 * time.Second

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	venues  *cache.TTLCache[snowflake.ID, catalogdomain.Venue]
	bottles *cache.TTLCache[snowflake.ID, catalogdomain.Bottle]
}

func NewService(p Params) catalogdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("catalog.service"),
		venues:  cache.NewTTLCache[snowflake.ID, catalogdomain.Venue](),
		bottles: cache.NewTTLCache[snowflake.ID, catalogdomain.Bottle](),
	}
}

func (s *Service) GetVenue(ctx context.Context, venueID snowflake.ID) (*catalogdomain.Venue, error) {
	if venueID == 0 {
		return nil, catalogdomain.ErrVenueNotFound
	}
	if cached, ok := s.venues.Get(venueID); ok {
		return &cached, nil
	}

	var venue catalogdomain.Venue
	err := s.db.WithContext(ctx).First(&venue, "id = ?", venueID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrVenueNotFound
		}
		return nil, fmt.Errorf("get venue: %w", err)
	}

	s.venues.Set(venueID, venue, lookupCacheTTL)
	return &venue, nil
}

func (s *Service) GetBottle(ctx context.Context, bottleID snowflake.ID) (*catalogdomain.Bottle, error) {
	if bottleID == 0 {
		return nil, catalogdomain.ErrBottleNotFound
	}
	if cached, ok := s.bottles.Get(bottleID); ok {
		return &cached, nil
	}

	var bottle catalogdomain.Bottle
	err := s.db.WithContext(ctx).First(&bottle, "id = ?", bottleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrBottleNotFound
		}
		return nil, fmt.Errorf("get bottle: %w", err)
	}

	s.bottles.Set(bottleID, bottle, lookupCacheTTL)
	return &bottle, nil
}
