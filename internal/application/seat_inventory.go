package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/catalog"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

const defaultSeatCacheTTL = 30 * time.Second

// SeatInventory は上映回座席の状態を管理する
// 座席状態を変更するのはこのサービスだけで、Reserve/Release/Confirm/Free は呼び出し元のトランザクションに参加する
type SeatInventory struct {
	txManager transaction.Manager
	seatRepo  seat.Repository
	catalog   catalog.Reader
	cache     redisinfra.SeatCacheInterface
	cacheTTL  time.Duration
	clock     clock.Clock
}

// NewSeatInventory は SeatInventory を作成する
// cache は nil でもよい（キャッシュなしで動作する）
func NewSeatInventory(txm transaction.Manager, sr seat.Repository, cat catalog.Reader, cache redisinfra.SeatCacheInterface, cacheTTL time.Duration, clk clock.Clock) *SeatInventory {
	if cacheTTL <= 0 {
		cacheTTL = defaultSeatCacheTTL
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &SeatInventory{txManager: txm, seatRepo: sr, catalog: cat, cache: cache, cacheTTL: cacheTTL, clock: clk}
}

// Reserve は指定した座席をすべて仮押さえし、仮押さえ期限を返す
// 1席でも空席でなければ ErrSeatUnavailable を返す。呼び出し元はトランザクションをロールバックすること
func (s *SeatInventory) Reserve(ctx context.Context, tx transaction.Tx, sessionID int64, seatIDs []int64, hold time.Duration) (time.Time, error) {
	if hold <= 0 {
		return time.Time{}, seat.ErrInvalidHoldDuration
	}
	change, err := seat.NewStatusChange(sessionID, seatIDs, seat.StatusAvailable, seat.StatusReserved)
	if err != nil {
		return time.Time{}, err
	}
	now := s.clock.Now()
	expiry := now.Add(hold)
	change.ReservedAt = &now
	change.ReservedExpiredAt = &expiry

	n, err := s.seatRepo.UpdateStatus(ctx, tx, change)
	if err != nil {
		return time.Time{}, err
	}
	if n != len(seatIDs) {
		return time.Time{}, seat.ErrSeatUnavailable
	}
	return expiry, nil
}

// Release は仮押さえ中の座席を空席に戻す
// 既に空席の座席はそのままで、エラーにはならない
func (s *SeatInventory) Release(ctx context.Context, tx transaction.Tx, sessionID int64, seatIDs []int64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	change, err := seat.NewStatusChange(sessionID, seatIDs, seat.StatusReserved, seat.StatusAvailable)
	if err != nil {
		return err
	}
	_, err = s.seatRepo.UpdateStatus(ctx, tx, change)
	return err
}

// Confirm は仮押さえ中の座席を販売済みにする
func (s *SeatInventory) Confirm(ctx context.Context, tx transaction.Tx, sessionID int64, seatIDs []int64) error {
	return s.transitionAll(ctx, tx, sessionID, seatIDs, seat.StatusReserved, seat.StatusSold)
}

// Free は販売済みの座席を空席に戻す
func (s *SeatInventory) Free(ctx context.Context, tx transaction.Tx, sessionID int64, seatIDs []int64) error {
	return s.transitionAll(ctx, tx, sessionID, seatIDs, seat.StatusSold, seat.StatusAvailable)
}

// transitionAll は全座席が from 状態の場合に限り to に変更する
func (s *SeatInventory) transitionAll(ctx context.Context, tx transaction.Tx, sessionID int64, seatIDs []int64, from, to seat.Status) error {
	change, err := seat.NewStatusChange(sessionID, seatIDs, from, to)
	if err != nil {
		return err
	}
	n, err := s.seatRepo.UpdateStatus(ctx, tx, change)
	if err != nil {
		return err
	}
	if n != len(seatIDs) {
		return fmt.Errorf("%w: %d席中%d席が%sではありません", seat.ErrInvalidStateTransition, len(seatIDs), len(seatIDs)-n, from)
	}
	return nil
}

// InitializeSession は上映回の座席を劇場の物理座席から作成し、作成数を返す
func (s *SeatInventory) InitializeSession(ctx context.Context, sessionID int64) (int, error) {
	session, err := s.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	var created int
	err = runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		n, err := s.seatRepo.CreateForSession(ctx, tx, session.ID, session.TheaterID)
		created = n
		return err
	})
	if err != nil {
		return 0, err
	}

	s.InvalidateCache(ctx, sessionID)
	logger.FromContext(ctx).Info("上映回座席を作成しました",
		zap.Int64("session_id", sessionID), zap.Int("count", created))
	return created, nil
}

// MarkUnavailable は空席を販売不可にする（メンテナンス用）
func (s *SeatInventory) MarkUnavailable(ctx context.Context, sessionID int64, seatIDs []int64) error {
	err := runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		change, err := seat.NewStatusChange(sessionID, seatIDs, seat.StatusAvailable, seat.StatusUnavailable)
		if err != nil {
			return err
		}
		n, err := s.seatRepo.UpdateStatus(ctx, tx, change)
		if err != nil {
			return err
		}
		if n != len(seatIDs) {
			return seat.ErrSeatUnavailable
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.InvalidateCache(ctx, sessionID)
	return nil
}

// MarkAvailable は販売不可の座席を空席に戻す
func (s *SeatInventory) MarkAvailable(ctx context.Context, sessionID int64, seatIDs []int64) error {
	err := runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.transitionAll(ctx, tx, sessionID, seatIDs, seat.StatusUnavailable, seat.StatusAvailable)
	})
	if err != nil {
		return err
	}
	s.InvalidateCache(ctx, sessionID)
	return nil
}

// ListSeats は上映回の座席表を返す
func (s *SeatInventory) ListSeats(ctx context.Context, sessionID int64) ([]*seat.SessionSeat, error) {
	if _, err := s.catalog.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.seatRepo.GetBySessionID(ctx, sessionID)
}

// CountAvailable は上映回の空席数を返す
func (s *SeatInventory) CountAvailable(ctx context.Context, sessionID int64) (int, error) {
	log := logger.FromContext(ctx)

	// キャッシュから取得を試みる
	if s.cache != nil {
		count, err := s.cache.GetAvailableCount(ctx, sessionID)
		if err == nil {
			log.Debug("キャッシュヒット", zap.Int64("session_id", sessionID), zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			log.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	// DBから取得
	count, err := s.seatRepo.CountAvailableBySessionID(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableCount(ctx, sessionID, count, s.cacheTTL); cacheErr != nil {
			log.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return count, nil
}

// InvalidateCache は上映回の空席数キャッシュを無効化する
// 座席状態を変更したトランザクションのコミット後に呼ぶ
func (s *SeatInventory) InvalidateCache(ctx context.Context, sessionID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, sessionID); err != nil {
		logger.FromContext(ctx).Warn("キャッシュ無効化エラー", zap.Error(err), zap.Int64("session_id", sessionID))
	}
}
