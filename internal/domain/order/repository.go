package order

import (
	"context"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// Repository は注文リポジトリのインターフェース
type Repository interface {
	// Create は注文と明細を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, o *TicketOrder) error

	// GetByID はIDから注文（明細込み）を取得する
	GetByID(ctx context.Context, id int64) (*TicketOrder, error)

	// GetByIDForUpdate は注文行をロックして取得する（トランザクション必須）
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*TicketOrder, error)

	// GetByMemberID は会員の注文一覧を新しい順に取得する
	GetByMemberID(ctx context.Context, memberID int64, limit, offset int) ([]*TicketOrder, error)

	// UpdateStatus は注文が from 状態のままの場合に限り状態と支払い情報を書き込む
	// 条件に合わない場合は ErrInvalidStateTransition を返す（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, o *TicketOrder, from Status) error

	// UpdateDetailStatus は注文の明細のうち from 状態のものを to に更新する（トランザクション必須）
	UpdateDetailStatus(ctx context.Context, tx transaction.Tx, orderID int64, from, to DetailStatus) (int, error)

	// ListExpiredPending は仮押さえ期限が now 以前の PENDING 注文のIDを取得する
	// exclude に含まれるIDは返さない
	ListExpiredPending(ctx context.Context, now time.Time, exclude []int64, limit int) ([]int64, error)

	// ListFinishedPaid は上映開始時刻が now 以前の PAID 注文のIDを取得する
	// exclude に含まれるIDは返さない
	ListFinishedPaid(ctx context.Context, now time.Time, exclude []int64, limit int) ([]int64, error)
}
