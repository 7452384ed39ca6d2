package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/order"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// マイグレーションで定義した部分一意インデックス
const (
	idxActiveSeatDetail = "uq_ticket_order_details_active_seat"
	idxLiveMemberCoupon = "uq_ticket_orders_live_member_coupon"
)

const orderColumns = `id, member_id, session_id, total_ticket_amount, total_discount, total_amount,
	member_coupon_id, status, payment_method, reserved_expired_at, created_time,
	payment_time, payment_type, payment_transaction_id, updated_at`

type orderRow struct {
	ID                   int64      `db:"id"`
	MemberID             *int64     `db:"member_id"`
	SessionID            int64      `db:"session_id"`
	TotalTicketAmount    int64      `db:"total_ticket_amount"`
	TotalDiscount        int64      `db:"total_discount"`
	TotalAmount          int64      `db:"total_amount"`
	MemberCouponID       *int64     `db:"member_coupon_id"`
	Status               string     `db:"status"`
	PaymentMethod        string     `db:"payment_method"`
	ReservedExpiredAt    time.Time  `db:"reserved_expired_at"`
	CreatedTime          time.Time  `db:"created_time"`
	PaymentTime          *time.Time `db:"payment_time"`
	PaymentType          *string    `db:"payment_type"`
	PaymentTransactionID *string    `db:"payment_transaction_id"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

func (r *orderRow) toEntity() *order.TicketOrder {
	return &order.TicketOrder{
		ID: r.ID, MemberID: r.MemberID, SessionID: r.SessionID,
		TotalTicketAmount: r.TotalTicketAmount, TotalDiscount: r.TotalDiscount, TotalAmount: r.TotalAmount,
		MemberCouponID: r.MemberCouponID, Status: order.Status(r.Status),
		PaymentMethod: order.PaymentMethod(r.PaymentMethod), ReservedExpiredAt: r.ReservedExpiredAt,
		CreatedTime: r.CreatedTime, PaymentTime: r.PaymentTime, PaymentType: r.PaymentType,
		PaymentTransactionID: r.PaymentTransactionID, UpdatedAt: r.UpdatedAt,
	}
}

type orderDetailRow struct {
	ID            int64  `db:"id"`
	OrderID       int64  `db:"order_id"`
	SessionSeatID int64  `db:"session_seat_id"`
	TicketTypeID  int64  `db:"ticket_type_id"`
	UnitPrice     int64  `db:"unit_price"`
	Status        string `db:"status"`
}

func (r *orderDetailRow) toEntity() *order.TicketOrderDetail {
	return &order.TicketOrderDetail{
		ID: r.ID, OrderID: r.OrderID, SessionSeatID: r.SessionSeatID,
		TicketTypeID: r.TicketTypeID, UnitPrice: r.UnitPrice, Status: order.DetailStatus(r.Status),
	}
}

type OrderRepository struct{ db *sqlx.DB }

var _ order.Repository = (*OrderRepository)(nil)

func NewOrderRepository(db *sqlx.DB) *OrderRepository { return &OrderRepository{db: db} }

// Create は注文と明細を挿入し、採番されたIDをエンティティに設定する
func (r *OrderRepository) Create(ctx context.Context, tx transaction.Tx, o *order.TicketOrder) error {
	q := conn(r.db, tx)
	query := `
		INSERT INTO ticket_orders (member_id, session_id, total_ticket_amount, total_discount, total_amount,
			member_coupon_id, status, payment_method, reserved_expired_at, created_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := q.QueryRowxContext(ctx, query,
		o.MemberID, o.SessionID, o.TotalTicketAmount, o.TotalDiscount, o.TotalAmount,
		o.MemberCouponID, string(o.Status), string(o.PaymentMethod), o.ReservedExpiredAt,
		o.CreatedTime, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return translateOrderErr("注文作成に失敗", err)
	}

	detailQuery := `
		INSERT INTO ticket_order_details (order_id, session_seat_id, ticket_type_id, unit_price, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	for _, d := range o.Details {
		d.OrderID = o.ID
		if err := q.QueryRowxContext(ctx, detailQuery,
			d.OrderID, d.SessionSeatID, d.TicketTypeID, d.UnitPrice, string(d.Status),
		).Scan(&d.ID); err != nil {
			return translateOrderErr("注文明細作成に失敗", err)
		}
	}
	return nil
}

// translateOrderErr は部分一意インデックス違反をドメインエラーに変換する
func translateOrderErr(op string, err error) error {
	if name, ok := uniqueViolation(err); ok {
		switch name {
		case idxActiveSeatDetail:
			return seat.ErrSeatUnavailable
		case idxLiveMemberCoupon:
			return coupon.ErrCouponNotApplicable
		}
	}
	return wrapErr(op, err)
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.TicketOrder, error) {
	return r.get(ctx, r.db, `SELECT `+orderColumns+` FROM ticket_orders WHERE id = $1`, id)
}

// GetByIDForUpdate は注文行を SELECT ... FOR UPDATE でロックして取得する
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*order.TicketOrder, error) {
	return r.get(ctx, conn(r.db, tx), `SELECT `+orderColumns+` FROM ticket_orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) get(ctx context.Context, q dbtx, query string, id int64) (*order.TicketOrder, error) {
	var row orderRow
	if err := q.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, wrapErr("注文取得に失敗", err)
	}
	o := row.toEntity()
	details, err := r.loadDetails(ctx, q, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Details = details[o.ID]
	return o, nil
}

func (r *OrderRepository) GetByMemberID(ctx context.Context, memberID int64, limit, offset int) ([]*order.TicketOrder, error) {
	var rows []orderRow
	query := `SELECT ` + orderColumns + ` FROM ticket_orders WHERE member_id = $1 ORDER BY created_time DESC, id DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, memberID, limit, offset); err != nil {
		return nil, wrapErr("注文一覧取得に失敗", err)
	}
	if len(rows) == 0 {
		return []*order.TicketOrder{}, nil
	}

	ids := make([]int64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	details, err := r.loadDetails(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}

	orders := make([]*order.TicketOrder, len(rows))
	for i := range rows {
		orders[i] = rows[i].toEntity()
		orders[i].Details = details[rows[i].ID]
	}
	return orders, nil
}

func (r *OrderRepository) loadDetails(ctx context.Context, q dbtx, orderIDs []int64) (map[int64][]*order.TicketOrderDetail, error) {
	var rows []orderDetailRow
	query := `
		SELECT id, order_id, session_seat_id, ticket_type_id, unit_price, status
		FROM ticket_order_details
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`
	if err := q.SelectContext(ctx, &rows, query, pq.Array(orderIDs)); err != nil {
		return nil, wrapErr("注文明細取得に失敗", err)
	}
	byOrder := make(map[int64][]*order.TicketOrderDetail, len(orderIDs))
	for i := range rows {
		byOrder[rows[i].OrderID] = append(byOrder[rows[i].OrderID], rows[i].toEntity())
	}
	return byOrder, nil
}

// UpdateStatus は注文が from 状態のままの場合に限り状態と支払い情報を書き込む
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, o *order.TicketOrder, from order.Status) error {
	query := `
		UPDATE ticket_orders
		SET status = $1, payment_time = $2, payment_type = $3, payment_transaction_id = $4, updated_at = $5
		WHERE id = $6 AND status = $7`
	result, err := conn(r.db, tx).ExecContext(ctx, query,
		string(o.Status), o.PaymentTime, o.PaymentType, o.PaymentTransactionID, o.UpdatedAt,
		o.ID, string(from))
	if err != nil {
		return wrapErr("注文状態の更新に失敗", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrapErr("注文状態の更新に失敗", err)
	}
	if n == 0 {
		return order.ErrInvalidStateTransition
	}
	return nil
}

func (r *OrderRepository) UpdateDetailStatus(ctx context.Context, tx transaction.Tx, orderID int64, from, to order.DetailStatus) (int, error) {
	query := `UPDATE ticket_order_details SET status = $1 WHERE order_id = $2 AND status = $3`
	result, err := conn(r.db, tx).ExecContext(ctx, query, string(to), orderID, string(from))
	if err != nil {
		return 0, wrapErr("注文明細状態の更新に失敗", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr("注文明細状態の更新に失敗", err)
	}
	return int(n), nil
}

func (r *OrderRepository) ListExpiredPending(ctx context.Context, now time.Time, exclude []int64, limit int) ([]int64, error) {
	var ids []int64
	query := `
		SELECT id FROM ticket_orders
		WHERE status = $1 AND reserved_expired_at <= $2 AND id <> ALL($3)
		ORDER BY reserved_expired_at, id
		LIMIT $4`
	if err := r.db.SelectContext(ctx, &ids, query, string(order.StatusPending), now, excludeArray(exclude), limit); err != nil {
		return nil, wrapErr("期限切れ注文の取得に失敗", err)
	}
	return ids, nil
}

func (r *OrderRepository) ListFinishedPaid(ctx context.Context, now time.Time, exclude []int64, limit int) ([]int64, error) {
	var ids []int64
	query := `
		SELECT o.id FROM ticket_orders o
		JOIN movie_sessions ms ON ms.id = o.session_id
		WHERE o.status = $1 AND ms.start_time <= $2 AND o.id <> ALL($3)
		ORDER BY ms.start_time, o.id
		LIMIT $4`
	if err := r.db.SelectContext(ctx, &ids, query, string(order.StatusPaid), now, excludeArray(exclude), limit); err != nil {
		return nil, wrapErr("上映済み注文の取得に失敗", err)
	}
	return ids, nil
}

// excludeArray は nil を空配列に変換する
// NULL を渡すと id <> ALL(NULL) が NULL になり1件も返らない
func excludeArray(ids []int64) interface{} {
	if ids == nil {
		ids = []int64{}
	}
	return pq.Array(ids)
}
