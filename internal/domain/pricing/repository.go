package pricing

import "context"

// Repository は券種・料金ルールのリポジトリインターフェース
type Repository interface {
	// GetTicketType はIDから券種を取得する
	GetTicketType(ctx context.Context, id int64) (*TicketType, error)

	// ListTicketTypes は券種一覧を取得する
	ListTicketTypes(ctx context.Context) ([]*TicketType, error)

	// ListRules は (劇場タイプ, 券種) の料金ルールをすべて取得する
	ListRules(ctx context.Context, theaterTypeID, ticketTypeID int64) ([]*PriceRule, error)
}
