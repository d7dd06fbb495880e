package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DomainMetrics counts redemption activity for venue dashboards.
type DomainMetrics struct {
	tokensIssued metric.Int64Counter
	pegsRedeemed metric.Int64Counter
	mlPoured     metric.Int64Counter
}

func NewDomainMetrics(provider metric.MeterProvider) (*DomainMetrics, error) {
	meter := provider.Meter("storemybottle/redemption")

	tokensIssued, err := meter.Int64Counter("redemption.tokens_issued")
	if err != nil {
		return nil, err
	}
	pegsRedeemed, err := meter.Int64Counter("redemption.pegs_redeemed")
	if err != nil {
		return nil, err
	}
	mlPoured, err := meter.Int64Counter("redemption.ml_poured")
	if err != nil {
		return nil, err
	}

	return &DomainMetrics{
		tokensIssued: tokensIssued,
		pegsRedeemed: pegsRedeemed,
		mlPoured:     mlPoured,
	}, nil
}

func (m *DomainMetrics) IncTokenIssued(ctx context.Context, venueID string) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("venue_id", venueID)))
}

func (m *DomainMetrics) IncPegRedeemed(ctx context.Context, venueID string, pegSizeML int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("venue_id", venueID))
	m.pegsRedeemed.Add(ctx, 1, attrs)
	m.mlPoured.Add(ctx, pegSizeML, attrs)
}
