package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
)

type ticketTypeRow struct {
	ID            int64  `db:"id"`
	Name          string `db:"name"`
	Description   string `db:"description"`
	Enabled       bool   `db:"is_enabled"`
	DiscountKind  string `db:"discount_kind"`
	DiscountValue int64  `db:"discount_value"`
}

func (r *ticketTypeRow) toEntity() *pricing.TicketType {
	return &pricing.TicketType{
		ID: r.ID, Name: r.Name, Description: r.Description, Enabled: r.Enabled,
		DiscountKind: pricing.DiscountKind(r.DiscountKind), DiscountValue: r.DiscountValue,
	}
}

type priceRuleRow struct {
	ID            int64      `db:"id"`
	TheaterTypeID int64      `db:"theater_type_id"`
	TicketTypeID  int64      `db:"ticket_type_id"`
	Price         int64      `db:"price"`
	ValidFrom     time.Time  `db:"valid_from"`
	ValidUntil    *time.Time `db:"valid_until"`
	Description   string     `db:"description"`
}

type PricingRepository struct{ db *sqlx.DB }

var _ pricing.Repository = (*PricingRepository)(nil)

func NewPricingRepository(db *sqlx.DB) *PricingRepository { return &PricingRepository{db: db} }

func (r *PricingRepository) GetTicketType(ctx context.Context, id int64) (*pricing.TicketType, error) {
	var row ticketTypeRow
	query := `SELECT id, name, description, is_enabled, discount_kind, discount_value FROM ticket_types WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pricing.ErrTicketTypeNotFound
		}
		return nil, wrapErr("券種取得に失敗", err)
	}
	return row.toEntity(), nil
}

func (r *PricingRepository) ListTicketTypes(ctx context.Context) ([]*pricing.TicketType, error) {
	var rows []ticketTypeRow
	query := `SELECT id, name, description, is_enabled, discount_kind, discount_value FROM ticket_types ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrapErr("券種一覧取得に失敗", err)
	}
	types := make([]*pricing.TicketType, len(rows))
	for i := range rows {
		types[i] = rows[i].toEntity()
	}
	return types, nil
}

// ListRules は対象の組み合わせの料金ルールを期間に関わらずすべて返す
// どれを適用するかは pricing.SelectRule が決める
func (r *PricingRepository) ListRules(ctx context.Context, theaterTypeID, ticketTypeID int64) ([]*pricing.PriceRule, error) {
	var rows []priceRuleRow
	query := `
		SELECT id, theater_type_id, ticket_type_id, price, valid_from, valid_until, description
		FROM ticket_price_rules
		WHERE theater_type_id = $1 AND ticket_type_id = $2
		ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query, theaterTypeID, ticketTypeID); err != nil {
		return nil, wrapErr("料金ルール取得に失敗", err)
	}
	rules := make([]*pricing.PriceRule, len(rows))
	for i, row := range rows {
		rules[i] = &pricing.PriceRule{
			ID: row.ID, TheaterTypeID: row.TheaterTypeID, TicketTypeID: row.TicketTypeID,
			Price: row.Price, ValidFrom: row.ValidFrom, ValidUntil: row.ValidUntil,
			Description: row.Description,
		}
	}
	return rules, nil
}
