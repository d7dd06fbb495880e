package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	catalogservice "github.com/anishghanwat/storemybottle/internal/catalog/service"
	"github.com/anishghanwat/storemybottle/internal/clock"
	"github.com/anishghanwat/storemybottle/internal/config"
	"github.com/anishghanwat/storemybottle/internal/events"
	ledgerdomain "github.com/anishghanwat/storemybottle/internal/ledger/domain"
	ledgerservice "github.com/anishghanwat/storemybottle/internal/ledger/service"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/anishghanwat/storemybottle/internal/testutil"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var baseTime = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

type redemptionFixture struct {
	db   *gorm.DB
	node *snowflake.Node
	cfg  config.Config

	venue    catalogdomain.Venue
	bottle   catalogdomain.Bottle
	userID   snowflake.ID
	staffID  snowflake.ID
	purchase purchasedomain.Purchase
}

func newRedemptionFixture(t *testing.T, remainingML int64) *redemptionFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	node := testutil.NewNode(t)

	f := &redemptionFixture{
		db:      db,
		node:    node,
		cfg:     config.Default(),
		userID:  node.Generate(),
		staffID: node.Generate(),
	}
	f.venue = testutil.CreateVenue(t, db, node)
	f.bottle = testutil.CreateBottle(t, db, node, f.venue.ID, 750)
	f.purchase = testutil.CreateConfirmedPurchase(t, db, node, f.userID, f.bottle, remainingML)

	// Pin the purchase to the fixture's base time so shelf-life math is
	// deterministic.
	err := db.Model(&purchasedomain.Purchase{}).
		Where("id = ?", f.purchase.ID).
		Updates(map[string]any{"confirmed_at": baseTime, "created_at": baseTime}).Error
	if err != nil {
		t.Fatalf("pin purchase time: %v", err)
	}
	return f
}

// service builds a redemption service observing the given instant.
func (f *redemptionFixture) service(at time.Time) redemptiondomain.Service {
	log := zap.NewNop()
	clk := clock.NewFixed(at)
	return NewService(Params{
		DB:         f.db,
		Log:        log,
		GenID:      f.node,
		Clock:      clk,
		Cfg:        f.cfg,
		CatalogSvc: catalogservice.NewService(catalogservice.Params{DB: f.db, Log: log}),
		LedgerSvc:  ledgerservice.NewService(ledgerservice.Params{DB: f.db, Log: log, Clock: clk}),
		Outbox:     events.NewOutbox(f.db, f.node),
	})
}

func (f *redemptionFixture) issue(t *testing.T, at time.Time, pegSizeML int64) *redemptiondomain.IssuedToken {
	t.Helper()
	issued, err := f.service(at).Issue(context.Background(), redemptiondomain.IssueRequest{
		PurchaseID: f.purchase.ID,
		UserID:     f.userID,
		PegSizeML:  pegSizeML,
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return issued
}

func (f *redemptionFixture) remainingML(t *testing.T) int64 {
	t.Helper()
	var ledger ledgerdomain.BottleLedger
	if err := f.db.First(&ledger, "purchase_id = ?", f.purchase.ID).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return ledger.RemainingML
}

func (f *redemptionFixture) reloadToken(t *testing.T, tokenID snowflake.ID) redemptiondomain.RedemptionToken {
	t.Helper()
	var token redemptiondomain.RedemptionToken
	if err := f.db.First(&token, "id = ?", tokenID).Error; err != nil {
		t.Fatalf("reload token: %v", err)
	}
	return token
}

func TestIssueToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)

	issued := f.issue(t, baseTime, 60)

	token := issued.Token
	if token.Status != redemptiondomain.TokenStatusPending {
		t.Fatalf("status = %s, want pending", token.Status)
	}
	if token.PegSizeML != 60 {
		t.Fatalf("peg_size_ml = %d, want 60", token.PegSizeML)
	}
	wantExpiry := baseTime.Add(f.cfg.Redemption.TokenTTL.Std())
	if !token.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v", token.ExpiresAt, wantExpiry)
	}
	if token.Token == "" {
		t.Fatal("token value is empty")
	}

	payload := issued.QRPayload
	if payload.Token != token.Token {
		t.Fatalf("payload token = %q, want %q", payload.Token, token.Token)
	}
	if payload.Venue != f.venue.Name {
		t.Fatalf("payload venue = %q, want %q", payload.Venue, f.venue.Name)
	}
	if payload.PegSizeML != 60 {
		t.Fatalf("payload ml = %d, want 60", payload.PegSizeML)
	}

	// Issuing holds nothing back; the ledger moves only at validation.
	if got := f.remainingML(t); got != 750 {
		t.Fatalf("remaining_ml = %d, want 750 after issue", got)
	}
}

func TestIssueTokenInvalidPegSize(t *testing.T) {
	f := newRedemptionFixture(t, 750)

	_, err := f.service(baseTime).Issue(context.Background(), redemptiondomain.IssueRequest{
		PurchaseID: f.purchase.ID,
		UserID:     f.userID,
		PegSizeML:  25,
	})
	if !errors.Is(err, redemptiondomain.ErrInvalidPegSize) {
		t.Fatalf("err = %v, want ErrInvalidPegSize", err)
	}
}

func TestIssueTokenForeignPurchase(t *testing.T) {
	f := newRedemptionFixture(t, 750)

	_, err := f.service(baseTime).Issue(context.Background(), redemptiondomain.IssueRequest{
		PurchaseID: f.purchase.ID,
		UserID:     f.node.Generate(),
		PegSizeML:  30,
	})
	if !errors.Is(err, purchasedomain.ErrPurchaseNotFound) {
		t.Fatalf("err = %v, want ErrPurchaseNotFound", err)
	}
}

func TestIssueTokenUnconfirmedPurchase(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	err := f.db.Model(&purchasedomain.Purchase{}).
		Where("id = ?", f.purchase.ID).
		Update("payment_status", purchasedomain.PaymentStatusPending).Error
	if err != nil {
		t.Fatalf("reset purchase: %v", err)
	}

	_, err = f.service(baseTime).Issue(context.Background(), redemptiondomain.IssueRequest{
		PurchaseID: f.purchase.ID,
		UserID:     f.userID,
		PegSizeML:  30,
	})
	if !errors.Is(err, purchasedomain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestIssueTokenExpiredBottle(t *testing.T) {
	f := newRedemptionFixture(t, 750)

	pastShelfLife := baseTime.Add(f.cfg.BottleShelfLife()).Add(time.Hour)
	_, err := f.service(pastShelfLife).Issue(context.Background(), redemptiondomain.IssueRequest{
		PurchaseID: f.purchase.ID,
		UserID:     f.userID,
		PegSizeML:  30,
	})
	if !errors.Is(err, redemptiondomain.ErrBottleExpired) {
		t.Fatalf("err = %v, want ErrBottleExpired", err)
	}
}

func TestIssueTokenInsufficientBalance(t *testing.T) {
	f := newRedemptionFixture(t, 20)

	_, err := f.service(baseTime).Issue(context.Background(), redemptiondomain.IssueRequest{
		PurchaseID: f.purchase.ID,
		UserID:     f.userID,
		PegSizeML:  30,
	})
	if !errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	var count int64
	if err := f.db.Model(&redemptiondomain.RedemptionToken{}).Count(&count).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("token count = %d, want 0 after failed pre-check", count)
	}
}

func TestValidateToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 60)

	scanTime := baseTime.Add(time.Minute)
	result, err := f.service(scanTime).Validate(context.Background(), redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Outcome != redemptiondomain.OutcomeRedeemed {
		t.Fatalf("outcome = %s, want redeemed", result.Outcome)
	}
	if result.RemainingML != 690 {
		t.Fatalf("remaining_ml = %d, want 690", result.RemainingML)
	}
	if result.BottleBrand != f.bottle.Brand || result.VenueName != f.venue.Name {
		t.Fatalf("result decoration = %+v", result)
	}

	token := f.reloadToken(t, issued.Token.ID)
	if token.Status != redemptiondomain.TokenStatusRedeemed {
		t.Fatalf("token status = %s, want redeemed", token.Status)
	}
	if token.RedeemedByStaffID == nil || *token.RedeemedByStaffID != f.staffID {
		t.Fatalf("redeemed_by_staff_id = %v, want %s", token.RedeemedByStaffID, f.staffID)
	}
	if got := f.remainingML(t); got != 690 {
		t.Fatalf("ledger remaining_ml = %d, want 690", got)
	}

	var pourCount int64
	if err := f.db.Model(&redemptiondomain.PourEvent{}).Where("token_id = ?", token.ID).Count(&pourCount).Error; err != nil {
		t.Fatalf("count pour events: %v", err)
	}
	if pourCount != 1 {
		t.Fatalf("pour events = %d, want 1", pourCount)
	}
}

func TestValidateTokenTwice(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)
	svc := f.service(baseTime.Add(time.Minute))
	req := redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	}

	first, err := svc.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	if first.Outcome != redemptiondomain.OutcomeRedeemed {
		t.Fatalf("first outcome = %s, want redeemed", first.Outcome)
	}

	second, err := svc.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if second.Outcome != redemptiondomain.OutcomeAlreadyUsed {
		t.Fatalf("second outcome = %s, want already_used", second.Outcome)
	}
	if got := f.remainingML(t); got != 720 {
		t.Fatalf("remaining_ml = %d, want 720 after a single debit", got)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)

	late := baseTime.Add(f.cfg.Redemption.TokenTTL.Std()).Add(time.Minute)
	result, err := f.service(late).Validate(context.Background(), redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Outcome != redemptiondomain.OutcomeExpired {
		t.Fatalf("outcome = %s, want expired", result.Outcome)
	}

	token := f.reloadToken(t, issued.Token.ID)
	if token.Status != redemptiondomain.TokenStatusExpired {
		t.Fatalf("token status = %s, want expired persisted", token.Status)
	}
	if got := f.remainingML(t); got != 750 {
		t.Fatalf("remaining_ml = %d, want 750 untouched", got)
	}
}

func TestValidateCancelledToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)
	svc := f.service(baseTime.Add(time.Minute))

	if _, err := svc.Cancel(context.Background(), issued.Token.ID, f.userID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	result, err := svc.Validate(context.Background(), redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Outcome != redemptiondomain.OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", result.Outcome)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)

	result, err := f.service(baseTime).Validate(context.Background(), redemptiondomain.ValidateRequest{
		TokenValue: "no-such-token",
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Outcome != redemptiondomain.OutcomeInvalidToken {
		t.Fatalf("outcome = %s, want invalid_token", result.Outcome)
	}
}

func TestValidateVenueMismatch(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)
	otherVenue := testutil.CreateVenue(t, f.db, f.node)

	result, err := f.service(baseTime.Add(time.Minute)).Validate(context.Background(), redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    otherVenue.ID,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Outcome != redemptiondomain.OutcomeVenueMismatch {
		t.Fatalf("outcome = %s, want venue_mismatch", result.Outcome)
	}

	// The token survives a wrong-venue scan and stays claimable.
	token := f.reloadToken(t, issued.Token.ID)
	if token.Status != redemptiondomain.TokenStatusPending {
		t.Fatalf("token status = %s, want pending", token.Status)
	}
}

func TestValidateInsufficientBalance(t *testing.T) {
	f := newRedemptionFixture(t, 60)
	issued := f.issue(t, baseTime, 60)

	// Another redemption drained the bottle after this token was issued.
	err := f.db.Exec(`UPDATE bottle_ledgers SET remaining_ml = 30 WHERE purchase_id = ?`, f.purchase.ID).Error
	if err != nil {
		t.Fatalf("drain ledger: %v", err)
	}

	result, err := f.service(baseTime.Add(time.Minute)).Validate(context.Background(), redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Outcome != redemptiondomain.OutcomeInsufficientBalance {
		t.Fatalf("outcome = %s, want insufficient_balance", result.Outcome)
	}

	token := f.reloadToken(t, issued.Token.ID)
	if token.Status != redemptiondomain.TokenStatusExpired {
		t.Fatalf("token status = %s, want expired", token.Status)
	}
	if token.RedeemedAt != nil || token.RedeemedByStaffID != nil {
		t.Fatalf("redemption fields set on non-redeemed token: %+v", token)
	}
	if got := f.remainingML(t); got != 30 {
		t.Fatalf("remaining_ml = %d, want 30 untouched", got)
	}
}

func TestValidateConcurrentSameToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 60)
	svc := f.service(baseTime.Add(time.Minute))
	req := redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	}

	const scans = 4
	var wg sync.WaitGroup
	outcomes := make([]redemptiondomain.Outcome, scans)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Validate(context.Background(), req)
			if err != nil {
				t.Errorf("validate %d: %v", i, err)
				return
			}
			outcomes[i] = result.Outcome
		}(i)
	}
	wg.Wait()

	redeemed := 0
	for _, outcome := range outcomes {
		switch outcome {
		case redemptiondomain.OutcomeRedeemed:
			redeemed++
		case redemptiondomain.OutcomeAlreadyUsed:
		default:
			t.Fatalf("unexpected outcome %s", outcome)
		}
	}
	if redeemed != 1 {
		t.Fatalf("redeemed = %d, want exactly 1 of %d concurrent scans", redeemed, scans)
	}
	if got := f.remainingML(t); got != 690 {
		t.Fatalf("remaining_ml = %d, want 690 after a single debit", got)
	}
}

func TestCancelToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)
	svc := f.service(baseTime.Add(time.Minute))

	cancelled, err := svc.Cancel(context.Background(), issued.Token.ID, f.userID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != redemptiondomain.TokenStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	// Cancel is idempotent for the owner.
	again, err := svc.Cancel(context.Background(), issued.Token.ID, f.userID)
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if again.Status != redemptiondomain.TokenStatusCancelled {
		t.Fatalf("repeat status = %s, want cancelled", again.Status)
	}
}

func TestCancelRedeemedToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)
	svc := f.service(baseTime.Add(time.Minute))

	if _, err := svc.Validate(context.Background(), redemptiondomain.ValidateRequest{
		TokenValue: issued.Token.Token,
		StaffID:    f.staffID,
		VenueID:    f.venue.ID,
	}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	_, err := svc.Cancel(context.Background(), issued.Token.ID, f.userID)
	if !errors.Is(err, redemptiondomain.ErrTokenNotPending) {
		t.Fatalf("err = %v, want ErrTokenNotPending", err)
	}
}

func TestCancelForeignToken(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)

	_, err := f.service(baseTime).Cancel(context.Background(), issued.Token.ID, f.node.Generate())
	if !errors.Is(err, redemptiondomain.ErrTokenNotFound) {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestStatusLazyExpiry(t *testing.T) {
	f := newRedemptionFixture(t, 750)
	issued := f.issue(t, baseTime, 30)

	fresh, err := f.service(baseTime.Add(time.Minute)).Status(context.Background(), issued.Token.ID, f.userID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if fresh.Status != redemptiondomain.TokenStatusPending {
		t.Fatalf("fresh status = %s, want pending", fresh.Status)
	}

	late := baseTime.Add(f.cfg.Redemption.TokenTTL.Std()).Add(time.Minute)
	stale, err := f.service(late).Status(context.Background(), issued.Token.ID, f.userID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if stale.Status != redemptiondomain.TokenStatusExpired {
		t.Fatalf("stale status = %s, want expired", stale.Status)
	}

	token := f.reloadToken(t, issued.Token.ID)
	if token.Status != redemptiondomain.TokenStatusExpired {
		t.Fatalf("persisted status = %s, want expired", token.Status)
	}
}
