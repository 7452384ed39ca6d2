package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
)

// PricingEngine は (劇場タイプ, 券種) の料金を解決する
type PricingEngine struct {
	repo pricing.Repository
}

func NewPricingEngine(repo pricing.Repository) *PricingEngine {
	return &PricingEngine{repo: repo}
}

// Lookup は asOf 時点で有効な料金ルールの基本料金を返す
func (e *PricingEngine) Lookup(ctx context.Context, theaterTypeID, ticketTypeID int64, asOf time.Time) (int64, error) {
	rules, err := e.repo.ListRules(ctx, theaterTypeID, ticketTypeID)
	if err != nil {
		return 0, err
	}
	rule, err := pricing.SelectRule(rules, asOf)
	if err != nil {
		return 0, fmt.Errorf("%w (theater_type=%d, ticket_type=%d)", err, theaterTypeID, ticketTypeID)
	}
	return rule.Price, nil
}

// UnitPrice は基本料金に券種の割引を適用した1席あたりの単価を返す
func (e *PricingEngine) UnitPrice(ctx context.Context, theaterTypeID, ticketTypeID int64, asOf time.Time) (int64, error) {
	tt, err := e.repo.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}
	if !tt.Enabled {
		return 0, pricing.ErrTicketTypeDisabled
	}
	price, err := e.Lookup(ctx, theaterTypeID, ticketTypeID, asOf)
	if err != nil {
		return 0, err
	}
	return tt.Apply(price), nil
}

// ListTicketTypes は販売中の券種を返す
func (e *PricingEngine) ListTicketTypes(ctx context.Context) ([]*pricing.TicketType, error) {
	all, err := e.repo.ListTicketTypes(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make([]*pricing.TicketType, 0, len(all))
	for _, tt := range all {
		if tt.Enabled {
			enabled = append(enabled, tt)
		}
	}
	return enabled, nil
}
