package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

type sessionSeatRow struct {
	ID                int64      `db:"id"`
	SessionID         int64      `db:"session_id"`
	SeatID            int64      `db:"seat_id"`
	RowLabel          string     `db:"row_label"`
	ColumnNumber      int        `db:"column_number"`
	Status            string     `db:"status"`
	ReservedAt        *time.Time `db:"reserved_at"`
	ReservedExpiredAt *time.Time `db:"reserved_expired_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (r *sessionSeatRow) toEntity() *seat.SessionSeat {
	return &seat.SessionSeat{
		ID: r.ID, SessionID: r.SessionID, SeatID: r.SeatID,
		RowLabel: r.RowLabel, ColumnNumber: r.ColumnNumber,
		Status: seat.Status(r.Status), ReservedAt: r.ReservedAt,
		ReservedExpiredAt: r.ReservedExpiredAt, UpdatedAt: r.UpdatedAt,
	}
}

type SessionSeatRepository struct{ db *sqlx.DB }

var _ seat.Repository = (*SessionSeatRepository)(nil)

func NewSessionSeatRepository(db *sqlx.DB) *SessionSeatRepository {
	return &SessionSeatRepository{db: db}
}

// CreateForSession は劇場の有効な物理座席から上映回の座席を作成する
// 既に作成済みの座席は無視するため、何度呼んでもよい
func (r *SessionSeatRepository) CreateForSession(ctx context.Context, tx transaction.Tx, sessionID, theaterID int64) (int, error) {
	query := `
		INSERT INTO session_seats (session_id, seat_id, status, updated_at)
		SELECT $1, s.id, $2, NOW()
		FROM seats s
		WHERE s.theater_id = $3 AND s.is_active
		ON CONFLICT (session_id, seat_id) DO NOTHING`
	result, err := conn(r.db, tx).ExecContext(ctx, query, sessionID, string(seat.StatusAvailable), theaterID)
	if err != nil {
		return 0, wrapErr("上映回座席の作成に失敗", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr("上映回座席の作成に失敗", err)
	}
	return int(n), nil
}

func (r *SessionSeatRepository) GetBySessionID(ctx context.Context, sessionID int64) ([]*seat.SessionSeat, error) {
	query := `
		SELECT ss.id, ss.session_id, ss.seat_id, s.row_label, s.column_number,
		       ss.status, ss.reserved_at, ss.reserved_expired_at, ss.updated_at
		FROM session_seats ss
		JOIN seats s ON s.id = ss.seat_id
		WHERE ss.session_id = $1
		ORDER BY s.row_label, s.column_number`
	var rows []sessionSeatRow
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, wrapErr("上映回座席の取得に失敗", err)
	}
	seats := make([]*seat.SessionSeat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats, nil
}

func (r *SessionSeatRepository) CountAvailableBySessionID(ctx context.Context, sessionID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM session_seats WHERE session_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &count, query, sessionID, string(seat.StatusAvailable)); err != nil {
		return 0, wrapErr("空席数の取得に失敗", err)
	}
	return count, nil
}

// UpdateStatus は From 状態の行だけを To に更新する
// 同じ座席を取り合った場合、後から来た側は行ロック解放後に状態を再評価するので更新件数が減る
func (r *SessionSeatRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, change seat.StatusChange) (int, error) {
	q := conn(r.db, tx)

	// 複数座席を ID 順にロックしてデッドロックを避ける
	lockQuery := `SELECT id FROM session_seats WHERE session_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`
	var locked []int64
	if err := q.SelectContext(ctx, &locked, lockQuery, change.SessionID, pq.Array(change.SeatIDs)); err != nil {
		return 0, wrapErr("座席のロックに失敗", err)
	}

	query := `
		UPDATE session_seats
		SET status = $1, reserved_at = $2, reserved_expired_at = $3, updated_at = NOW()
		WHERE session_id = $4 AND id = ANY($5) AND status = $6`
	result, err := q.ExecContext(ctx, query,
		string(change.To), change.ReservedAt, change.ReservedExpiredAt,
		change.SessionID, pq.Array(change.SeatIDs), string(change.From))
	if err != nil {
		return 0, wrapErr("座席状態の更新に失敗", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr("座席状態の更新に失敗", err)
	}
	return int(n), nil
}
