package scheduler

import (
	"context"
	"time"

	"github.com/anishghanwat/storemybottle/internal/clock"
	"github.com/anishghanwat/storemybottle/internal/config"
	"github.com/anishghanwat/storemybottle/internal/events"
	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sweeper expires stale pending tokens in the background. It exists for
// reporting hygiene and dashboard accuracy only: Validate and Status compute
// expiry lazily, so correctness never depends on this loop running.
type Sweeper struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	outbox *events.Outbox
	cfg    config.SweeperConfig
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Outbox *events.Outbox
	Cfg    config.Config
}

func NewSweeper(p Params) *Sweeper {
	return &Sweeper{
		db:     p.DB,
		log:    p.Log.Named("scheduler.sweeper"),
		clock:  p.Clock,
		outbox: p.Outbox,
		cfg:    p.Cfg.Sweeper,
	}
}

func (s *Sweeper) RunForever(ctx context.Context) {
	interval := s.cfg.PollInterval.Std()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("token sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce expires one batch of overdue pending tokens and returns how many
// it transitioned.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	limit := s.cfg.BatchSize
	if limit <= 0 {
		limit = 100
	}
	now := s.clock.Now()

	expired := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overdue []struct {
			ID snowflake.ID
		}
		err := tx.Raw(
			`SELECT id FROM redemption_tokens
			 WHERE status = ? AND expires_at <= ?
			 ORDER BY expires_at ASC
			 LIMIT ?`,
			redemptiondomain.TokenStatusPending,
			now,
			limit,
		).Scan(&overdue).Error
		if err != nil {
			return err
		}

		for _, row := range overdue {
			// Guarded per-row update: a concurrent Validate may consume the
			// token between the select and here, and it must win.
			res := tx.Exec(
				`UPDATE redemption_tokens SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
				redemptiondomain.TokenStatusExpired,
				now,
				row.ID,
				redemptiondomain.TokenStatusPending,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				Type:      events.EventTokenExpired,
				Payload:   map[string]any{"token_id": row.ID.String()},
				DedupeKey: "token.expired:" + row.ID.String(),
			}); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return expired, err
	}

	if expired > 0 {
		s.log.Info("expired stale tokens", zap.Int("count", expired))
	}
	return expired, nil
}
