package service

import (
	"context"
	"testing"
	"time"

	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	"github.com/anishghanwat/storemybottle/internal/config"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	querydomain "github.com/anishghanwat/storemybottle/internal/query/domain"
	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/anishghanwat/storemybottle/internal/testutil"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type queryFixture struct {
	svc    querydomain.Service
	db     *gorm.DB
	node   *snowflake.Node
	venue  catalogdomain.Venue
	bottle catalogdomain.Bottle
	userID snowflake.ID
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	node := testutil.NewNode(t)

	svc := NewService(Params{
		DB:  db,
		Log: zap.NewNop(),
		Cfg: config.Default(),
	})

	venue := testutil.CreateVenue(t, db, node)
	bottle := testutil.CreateBottle(t, db, node, venue.ID, 750)
	return &queryFixture{
		svc:    svc,
		db:     db,
		node:   node,
		venue:  venue,
		bottle: bottle,
		userID: node.Generate(),
	}
}

func (f *queryFixture) insertToken(t *testing.T, status redemptiondomain.TokenStatus, purchaseID snowflake.ID, at time.Time) redemptiondomain.RedemptionToken {
	t.Helper()
	token := redemptiondomain.RedemptionToken{
		ID:         f.node.Generate(),
		Token:      "tok-" + f.node.Generate().String(),
		PurchaseID: purchaseID,
		UserID:     f.userID,
		VenueID:    f.venue.ID,
		PegSizeML:  30,
		Status:     status,
		ExpiresAt:  at.Add(15 * time.Minute),
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if status == redemptiondomain.TokenStatusRedeemed {
		redeemedAt := at.Add(time.Minute)
		staffID := f.node.Generate()
		token.RedeemedAt = &redeemedAt
		token.RedeemedByStaffID = &staffID
	}
	if err := f.db.Create(&token).Error; err != nil {
		t.Fatalf("insert token: %v", err)
	}
	return token
}

func TestMyBottlesExcludesDrainedAndUnconfirmed(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	active := testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 300)
	testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 0)

	// A pending purchase has no ledger and never shows up.
	pending := purchasedomain.Purchase{
		ID:            f.node.Generate(),
		UserID:        f.userID,
		BottleID:      f.bottle.ID,
		VenueID:       f.venue.ID,
		TotalML:       750,
		PriceCents:    500000,
		PaymentStatus: purchasedomain.PaymentStatusPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := f.db.Create(&pending).Error; err != nil {
		t.Fatalf("insert pending purchase: %v", err)
	}

	bottles, err := f.svc.MyBottles(ctx, f.userID)
	if err != nil {
		t.Fatalf("my bottles: %v", err)
	}
	if len(bottles) != 1 {
		t.Fatalf("len = %d, want 1 active bottle", len(bottles))
	}
	got := bottles[0]
	if got.PurchaseID != active.ID {
		t.Fatalf("purchase_id = %s, want %s", got.PurchaseID, active.ID)
	}
	if got.RemainingML != 300 || got.TotalML != 750 {
		t.Fatalf("bottle = %+v, want remaining 300 of 750", got)
	}
	if got.VenueName != f.venue.Name || got.BottleBrand != f.bottle.Brand {
		t.Fatalf("bottle names = %+v", got)
	}
	if got.ExpiresAt.IsZero() {
		t.Fatal("expires_at not computed")
	}
}

func TestPurchaseHistoryIncludesDrainedBottles(t *testing.T) {
	f := newQueryFixture(t)

	testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 300)
	testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 0)

	history, err := f.svc.PurchaseHistory(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("purchase history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len = %d, want 2", len(history))
	}
}

func TestPurchaseHistoryScopedToUser(t *testing.T) {
	f := newQueryFixture(t)

	testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 300)
	testutil.CreateConfirmedPurchase(t, f.db, f.node, f.node.Generate(), f.bottle, 300)

	history, err := f.svc.PurchaseHistory(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("purchase history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len = %d, want 1 owned purchase", len(history))
	}
}

func TestPendingPurchases(t *testing.T) {
	f := newQueryFixture(t)
	now := time.Now().UTC()

	pending := purchasedomain.Purchase{
		ID:            f.node.Generate(),
		UserID:        f.userID,
		BottleID:      f.bottle.ID,
		VenueID:       f.venue.ID,
		TotalML:       750,
		PriceCents:    500000,
		PaymentStatus: purchasedomain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.db.Create(&pending).Error; err != nil {
		t.Fatalf("insert pending purchase: %v", err)
	}
	testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 750)

	rows, err := f.svc.PendingPurchases(context.Background(), f.venue.ID)
	if err != nil {
		t.Fatalf("pending purchases: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len = %d, want 1 pending", len(rows))
	}
	if rows[0].PurchaseID != pending.ID {
		t.Fatalf("purchase_id = %s, want %s", rows[0].PurchaseID, pending.ID)
	}
	if rows[0].BottleName != f.bottle.Name || rows[0].VolumeML != 750 {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestRedemptionHistory(t *testing.T) {
	f := newQueryFixture(t)
	purchase := testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 750)
	now := time.Now().UTC()

	f.insertToken(t, redemptiondomain.TokenStatusRedeemed, purchase.ID, now.Add(-2*time.Hour))
	f.insertToken(t, redemptiondomain.TokenStatusExpired, purchase.ID, now.Add(-time.Hour))

	history, err := f.svc.RedemptionHistory(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("redemption history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len = %d, want 2 (all statuses)", len(history))
	}
	// Newest first.
	if history[0].Status != redemptiondomain.TokenStatusExpired {
		t.Fatalf("first status = %s, want expired", history[0].Status)
	}
	if history[1].RedeemedAt == nil {
		t.Fatal("redeemed item missing redeemed_at")
	}
}

func TestRecentRedemptions(t *testing.T) {
	f := newQueryFixture(t)
	purchase := testutil.CreateConfirmedPurchase(t, f.db, f.node, f.userID, f.bottle, 750)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		f.insertToken(t, redemptiondomain.TokenStatusRedeemed, purchase.ID, now.Add(-time.Duration(i)*time.Hour))
	}
	f.insertToken(t, redemptiondomain.TokenStatusPending, purchase.ID, now)

	recent, err := f.svc.RecentRedemptions(context.Background(), f.venue.ID, 2)
	if err != nil {
		t.Fatalf("recent redemptions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2 (limit)", len(recent))
	}
	for _, row := range recent {
		if row.Status != redemptiondomain.TokenStatusRedeemed {
			t.Fatalf("status = %s, want redeemed only", row.Status)
		}
	}

	all, err := f.svc.RecentRedemptions(context.Background(), f.venue.ID, 0)
	if err != nil {
		t.Fatalf("recent redemptions default limit: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3 redeemed", len(all))
	}
}
