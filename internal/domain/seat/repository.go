package seat

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// StatusChange は条件付き状態更新の内容を表す
// From の状態にある行だけが To に更新される
type StatusChange struct {
	SessionID         int64
	SeatIDs           []int64
	From              Status
	To                Status
	ReservedAt        *time.Time
	ReservedExpiredAt *time.Time
}

// NewStatusChange は from→to の一括更新を組み立てる
// 遷移表にない組み合わせ、空・重複した座席IDはここで弾く
func NewStatusChange(sessionID int64, seatIDs []int64, from, to Status) (StatusChange, error) {
	if !CanTransition(from, to) {
		return StatusChange{}, fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, from, to)
	}
	if len(seatIDs) == 0 {
		return StatusChange{}, ErrSeatIDsRequired
	}
	seen := make(map[int64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			return StatusChange{}, ErrDuplicateSeatIDs
		}
		seen[id] = struct{}{}
	}
	return StatusChange{SessionID: sessionID, SeatIDs: seatIDs, From: from, To: to}, nil
}

// Repository は上映回座席リポジトリのインターフェース
type Repository interface {
	// CreateForSession は劇場の物理座席から上映回の座席を一括作成する（トランザクション必須）
	CreateForSession(ctx context.Context, tx transaction.Tx, sessionID, theaterID int64) (int, error)

	// GetBySessionID は上映回の座席一覧を取得する
	GetBySessionID(ctx context.Context, sessionID int64) ([]*SessionSeat, error)

	// CountAvailableBySessionID は上映回の空席数を取得する
	CountAvailableBySessionID(ctx context.Context, sessionID int64) (int, error)

	// UpdateStatus は From 状態の行だけを To に更新し、更新件数を返す（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, change StatusChange) (int, error)
}
