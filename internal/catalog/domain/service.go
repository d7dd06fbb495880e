package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// CatalogService is the read-only boundary to the bottle/venue catalog.
// Catalog management itself belongs to the admin surface and is out of scope.
type CatalogService interface {
	GetVenue(ctx context.Context, venueID snowflake.ID) (*Venue, error)
	GetBottle(ctx context.Context, bottleID snowflake.ID) (*Bottle, error)
}

// Service is the package alias for CatalogService.
type Service = CatalogService

var (
	ErrVenueNotFound  = errors.New("venue_not_found")
	ErrBottleNotFound = errors.New("bottle_not_found")
)
