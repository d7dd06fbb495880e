package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	"github.com/anishghanwat/storemybottle/internal/clock"
	"github.com/anishghanwat/storemybottle/internal/config"
	"github.com/anishghanwat/storemybottle/internal/events"
	ledgerdomain "github.com/anishghanwat/storemybottle/internal/ledger/domain"
	"github.com/anishghanwat/storemybottle/internal/observability/metrics"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenValueBytes = 32

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	CatalogSvc catalogdomain.Service
	LedgerSvc  ledgerdomain.Service
	Outbox     *events.Outbox
	Metrics    *metrics.DomainMetrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	cfg   config.Config

	genID      *snowflake.Node
	catalogSvc catalogdomain.Service
	ledgerSvc  ledgerdomain.Service
	outbox     *events.Outbox
	metrics    *metrics.DomainMetrics
}

func NewService(p Params) redemptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("redemption.service"),
		clock: p.Clock,
		cfg:   p.Cfg,

		genID:      p.GenID,
		catalogSvc: p.CatalogSvc,
		ledgerSvc:  p.LedgerSvc,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
	}
}

// Issue mints a pending token after an optimistic balance pre-check. The
// pre-check keeps obviously doomed QR codes off the customer's screen; the
// debit at validation time remains the only authority. A failed pre-check
// creates no token row.
func (s *Service) Issue(ctx context.Context, req redemptiondomain.IssueRequest) (*redemptiondomain.IssuedToken, error) {
	if !s.cfg.PegSizeAllowed(req.PegSizeML) {
		return nil, redemptiondomain.ErrInvalidPegSize
	}

	var purchase purchasedomain.Purchase
	err := s.db.WithContext(ctx).
		First(&purchase, "id = ? AND user_id = ?", req.PurchaseID, req.UserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchasedomain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if purchase.PaymentStatus != purchasedomain.PaymentStatusConfirmed {
		return nil, purchasedomain.ErrInvalidState
	}

	now := s.clock.Now()

	confirmedAt := purchase.CreatedAt
	if purchase.ConfirmedAt != nil {
		confirmedAt = *purchase.ConfirmedAt
	}
	if now.After(confirmedAt.Add(s.cfg.BottleShelfLife())) {
		return nil, redemptiondomain.ErrBottleExpired
	}

	balance, err := s.ledgerSvc.GetBalance(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}
	if balance.RemainingML < req.PegSizeML {
		return nil, ledgerdomain.ErrInsufficientBalance
	}

	value, err := generateTokenValue()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	token := redemptiondomain.RedemptionToken{
		ID:         s.genID.Generate(),
		Token:      value,
		PurchaseID: purchase.ID,
		UserID:     purchase.UserID,
		VenueID:    purchase.VenueID,
		PegSizeML:  req.PegSizeML,
		Status:     redemptiondomain.TokenStatusPending,
		ExpiresAt:  now.Add(s.cfg.Redemption.TokenTTL.Std()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	payload := redemptiondomain.QRPayload{
		Token:     token.Token,
		PegSizeML: token.PegSizeML,
		ExpiresAt: token.ExpiresAt,
		IssuedAt:  now,
	}
	if venue, err := s.catalogSvc.GetVenue(ctx, purchase.VenueID); err == nil {
		payload.Venue = venue.Name
	}
	if bottle, err := s.catalogSvc.GetBottle(ctx, purchase.BottleID); err == nil {
		payload.Bottle = bottle.Brand + " " + bottle.Name
	}

	s.metrics.IncTokenIssued(ctx, token.VenueID.String())
	s.log.Info("redemption token issued",
		zap.String("token_id", token.ID.String()),
		zap.String("purchase_id", purchase.ID.String()),
		zap.Int64("peg_size_ml", token.PegSizeML),
		zap.Time("expires_at", token.ExpiresAt),
	)
	return &redemptiondomain.IssuedToken{Token: token, QRPayload: payload}, nil
}

// Validate consumes a scanned token. Token consumption and the ledger debit
// commit in one transaction; the decisive step is a compare-and-set on the
// token row guarded by status and expiry, so of N concurrent scans of the
// same code exactly one wins regardless of how many process instances serve
// them.
func (s *Service) Validate(ctx context.Context, req redemptiondomain.ValidateRequest) (*redemptiondomain.ValidateResult, error) {
	result := &redemptiondomain.ValidateResult{Outcome: redemptiondomain.OutcomeInvalidToken}
	if req.TokenValue == "" || req.StaffID == 0 {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token redemptiondomain.RedemptionToken
		err := tx.First(&token, "token = ?", req.TokenValue).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Response shape matches the terminal-token outcomes so the
				// endpoint doesn't confirm which token values exist.
				result.Outcome = redemptiondomain.OutcomeInvalidToken
				return nil
			}
			return fmt.Errorf("load token: %w", err)
		}

		if req.VenueID != 0 && token.VenueID != req.VenueID {
			result.Outcome = redemptiondomain.OutcomeVenueMismatch
			return nil
		}

		now := s.clock.Now()
		res := tx.Exec(
			`UPDATE redemption_tokens
			 SET status = ?, redeemed_at = ?, redeemed_by_staff_id = ?, updated_at = ?
			 WHERE id = ? AND status = ? AND expires_at > ?`,
			redemptiondomain.TokenStatusRedeemed,
			now,
			req.StaffID,
			now,
			token.ID,
			redemptiondomain.TokenStatusPending,
			now,
		)
		if res.Error != nil {
			return fmt.Errorf("consume token: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			return s.classifyLostRace(ctx, tx, token.ID, result)
		}

		remaining, err := s.ledgerSvc.TryDebit(ctx, tx, token.PurchaseID, token.PegSizeML)
		if err != nil {
			if errors.Is(err, ledgerdomain.ErrInsufficientBalance) || errors.Is(err, ledgerdomain.ErrLedgerNotFound) {
				// Nothing was debited. The token is spent either way: other
				// tokens drained the bottle after this one was issued.
				if err := s.expireToken(ctx, tx, token.ID); err != nil {
					return err
				}
				result.Outcome = redemptiondomain.OutcomeInsufficientBalance
				return nil
			}
			return err
		}

		token.Status = redemptiondomain.TokenStatusRedeemed
		token.RedeemedAt = &now
		token.RedeemedByStaffID = &req.StaffID

		pour := redemptiondomain.PourEvent{
			ID:               s.genID.Generate(),
			TokenID:          token.ID,
			PurchaseID:       token.PurchaseID,
			UserID:           token.UserID,
			VenueID:          token.VenueID,
			StaffID:          req.StaffID,
			PegSizeML:        token.PegSizeML,
			RemainingMLAfter: remaining,
			PouredAt:         now,
		}
		if err := tx.Create(&pour).Error; err != nil {
			return fmt.Errorf("append pour event: %w", err)
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPegRedeemed,
			Payload: events.RedemptionPayload{
				TokenID:         token.ID.String(),
				PurchaseID:      token.PurchaseID.String(),
				UserID:          token.UserID.String(),
				VenueID:         token.VenueID.String(),
				PegSizeML:       token.PegSizeML,
				RemainingMLNow:  remaining,
				RedeemedByStaff: req.StaffID.String(),
			}.ToMap(),
			DedupeKey: "peg.redeemed:" + token.ID.String(),
		}); err != nil {
			return err
		}

		result.Outcome = redemptiondomain.OutcomeRedeemed
		result.Token = &token
		result.RemainingML = remaining
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome == redemptiondomain.OutcomeRedeemed {
		s.decorateResult(ctx, result)
		s.metrics.IncPegRedeemed(ctx, result.Token.VenueID.String(), result.Token.PegSizeML)
		s.log.Info("peg redeemed",
			zap.String("token_id", result.Token.ID.String()),
			zap.String("purchase_id", result.Token.PurchaseID.String()),
			zap.Int64("peg_size_ml", result.Token.PegSizeML),
			zap.Int64("remaining_ml", result.RemainingML),
		)
	}
	return result, nil
}

// classifyLostRace explains a failed consume CAS: the token was already
// terminal, or it is still pending but past expiry, in which case it is
// lazily expired here.
func (s *Service) classifyLostRace(
	ctx context.Context,
	tx *gorm.DB,
	tokenID snowflake.ID,
	result *redemptiondomain.ValidateResult,
) error {
	var current redemptiondomain.RedemptionToken
	if err := tx.First(&current, "id = ?", tokenID).Error; err != nil {
		return fmt.Errorf("reload token: %w", err)
	}

	switch current.Status {
	case redemptiondomain.TokenStatusRedeemed:
		result.Outcome = redemptiondomain.OutcomeAlreadyUsed
	case redemptiondomain.TokenStatusCancelled:
		result.Outcome = redemptiondomain.OutcomeCancelled
	case redemptiondomain.TokenStatusExpired:
		result.Outcome = redemptiondomain.OutcomeExpired
	case redemptiondomain.TokenStatusPending:
		// Pending but the expiry guard rejected it: TTL elapsed.
		if err := s.expireToken(ctx, tx, current.ID); err != nil {
			return err
		}
		result.Outcome = redemptiondomain.OutcomeExpired
	default:
		result.Outcome = redemptiondomain.OutcomeInvalidToken
	}
	return nil
}

func (s *Service) expireToken(ctx context.Context, tx *gorm.DB, tokenID snowflake.ID) error {
	res := tx.Exec(
		`UPDATE redemption_tokens
		 SET status = ?, redeemed_at = NULL, redeemed_by_staff_id = NULL, updated_at = ?
		 WHERE id = ?`,
		redemptiondomain.TokenStatusExpired,
		s.clock.Now(),
		tokenID,
	)
	if res.Error != nil {
		return fmt.Errorf("expire token: %w", res.Error)
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      events.EventTokenExpired,
		Payload:   map[string]any{"token_id": tokenID.String()},
		DedupeKey: "token.expired:" + tokenID.String(),
	})
}

// Cancel lets the owning customer withdraw a pending token before it is
// scanned. Uses the same first-caller-wins discipline as Validate.
func (s *Service) Cancel(ctx context.Context, tokenID, userID snowflake.ID) (*redemptiondomain.RedemptionToken, error) {
	now := s.clock.Now()
	var result *redemptiondomain.RedemptionToken

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE redemption_tokens
			 SET status = ?, updated_at = ?
			 WHERE id = ? AND user_id = ? AND status = ?`,
			redemptiondomain.TokenStatusCancelled,
			now,
			tokenID,
			userID,
			redemptiondomain.TokenStatusPending,
		)
		if res.Error != nil {
			return fmt.Errorf("cancel token: %w", res.Error)
		}

		var token redemptiondomain.RedemptionToken
		if err := tx.First(&token, "id = ? AND user_id = ?", tokenID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return redemptiondomain.ErrTokenNotFound
			}
			return fmt.Errorf("load token: %w", err)
		}
		if res.RowsAffected == 0 && token.Status != redemptiondomain.TokenStatusCancelled {
			return redemptiondomain.ErrTokenNotPending
		}

		if res.RowsAffected > 0 {
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				Type:      events.EventTokenCancelled,
				Payload:   map[string]any{"token_id": token.ID.String(), "user_id": userID.String()},
				DedupeKey: "token.cancelled:" + token.ID.String(),
			}); err != nil {
				return err
			}
		}

		result = &token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Status is the customer poll: it reports the token's current state, lazily
// expiring a pending token whose TTL elapsed.
func (s *Service) Status(ctx context.Context, tokenID, userID snowflake.ID) (*redemptiondomain.RedemptionToken, error) {
	var token redemptiondomain.RedemptionToken
	err := s.db.WithContext(ctx).
		First(&token, "id = ? AND user_id = ?", tokenID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, redemptiondomain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	now := s.clock.Now()
	if token.Status == redemptiondomain.TokenStatusPending && now.After(token.ExpiresAt) {
		res := s.db.WithContext(ctx).Exec(
			`UPDATE redemption_tokens SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			redemptiondomain.TokenStatusExpired,
			now,
			token.ID,
			redemptiondomain.TokenStatusPending,
		)
		if res.Error != nil {
			return nil, fmt.Errorf("expire token: %w", res.Error)
		}
		token.Status = redemptiondomain.TokenStatusExpired
	}
	return &token, nil
}

func (s *Service) decorateResult(ctx context.Context, result *redemptiondomain.ValidateResult) {
	if result.Token == nil {
		return
	}
	var purchase purchasedomain.Purchase
	if err := s.db.WithContext(ctx).First(&purchase, "id = ?", result.Token.PurchaseID).Error; err == nil {
		result.TotalML = purchase.TotalML
		if bottle, err := s.catalogSvc.GetBottle(ctx, purchase.BottleID); err == nil {
			result.BottleBrand = bottle.Brand
			result.BottleName = bottle.Name
		}
	}
	if venue, err := s.catalogSvc.GetVenue(ctx, result.Token.VenueID); err == nil {
		result.VenueName = venue.Name
	}
}

func generateTokenValue() (string, error) {
	buf := make([]byte, tokenValueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
