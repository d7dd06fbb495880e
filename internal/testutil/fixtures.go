package testutil

import (
	"testing"
	"time"

	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	ledgerdomain "github.com/anishghanwat/storemybottle/internal/ledger/domain"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreateVenue inserts an open venue.
func CreateVenue(t *testing.T, db *gorm.DB, node *snowflake.Node) catalogdomain.Venue {
	t.Helper()
	now := time.Now().UTC()
	venue := catalogdomain.Venue{
		ID:        node.Generate(),
		Name:      "Test Venue",
		Location:  "Test Street 1",
		IsOpen:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&venue).Error; err != nil {
		t.Fatalf("create venue: %v", err)
	}
	return venue
}

// CreateBottle inserts an available bottle at the venue.
func CreateBottle(t *testing.T, db *gorm.DB, node *snowflake.Node, venueID snowflake.ID, volumeML int64) catalogdomain.Bottle {
	t.Helper()
	now := time.Now().UTC()
	bottle := catalogdomain.Bottle{
		ID:          node.Generate(),
		VenueID:     venueID,
		Brand:       "Test Brand",
		Name:        "Test Bottle",
		PriceCents:  500000,
		VolumeML:    volumeML,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&bottle).Error; err != nil {
		t.Fatalf("create bottle: %v", err)
	}
	return bottle
}

// CreateConfirmedPurchase inserts a confirmed purchase with its ledger row.
func CreateConfirmedPurchase(
	t *testing.T,
	db *gorm.DB,
	node *snowflake.Node,
	userID snowflake.ID,
	bottle catalogdomain.Bottle,
	remainingML int64,
) purchasedomain.Purchase {
	t.Helper()
	now := time.Now().UTC()
	method := purchasedomain.PaymentMethodCash
	purchase := purchasedomain.Purchase{
		ID:            node.Generate(),
		UserID:        userID,
		BottleID:      bottle.ID,
		VenueID:       bottle.VenueID,
		TotalML:       bottle.VolumeML,
		PriceCents:    bottle.PriceCents,
		PaymentStatus: purchasedomain.PaymentStatusConfirmed,
		PaymentMethod: &method,
		ConfirmedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(&purchase).Error; err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	ledger := ledgerdomain.BottleLedger{
		PurchaseID:  purchase.ID,
		TotalML:     bottle.VolumeML,
		RemainingML: remainingML,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&ledger).Error; err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	return purchase
}
