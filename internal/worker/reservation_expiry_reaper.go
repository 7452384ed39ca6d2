package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

// OrderSweeper は期限切れ注文の取消と上映済み注文の完了を行う
type OrderSweeper interface {
	CancelExpiredReservations(ctx context.Context) (int, error)
	CompleteFinishedOrders(ctx context.Context) (int, error)
}

// ReservationExpiryReaper は仮押さえ期限を過ぎた注文を定期的に取り消し、座席を解放するワーカー
type ReservationExpiryReaper struct {
	orders   OrderSweeper
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewReservationExpiryReaper は新しいワーカーを作成
func NewReservationExpiryReaper(orders OrderSweeper, interval time.Duration) *ReservationExpiryReaper {
	return &ReservationExpiryReaper{
		orders:   orders,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はワーカーを開始し、停止されるまでブロックする
// 停止中に期限切れになった仮押さえを回収するため、開始直後に1回掃除する
func (r *ReservationExpiryReaper) Start(ctx context.Context) {
	logger.Info("期限切れ予約の掃除を開始", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ予約の掃除を停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("期限切れ予約の掃除を停止（シグナル受信）")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Stop はワーカーを停止し、実行中の掃除が終わるまで待つ
// Start を呼んだ後にだけ呼ぶこと
func (r *ReservationExpiryReaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

// sweep は1サイクル分の掃除を行う
// エラーはログに残して次のサイクルで再試行する
func (r *ReservationExpiryReaper) sweep(ctx context.Context) {
	log := logger.Get()
	start := time.Now()
	defer func() {
		if m := metrics.Get(); m != nil {
			m.ReaperCycleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	cancelled, err := r.orders.CancelExpiredReservations(ctx)
	if err != nil {
		log.Error("期限切れ予約の掃除に失敗", zap.Error(err))
	} else if cancelled > 0 {
		log.Info("期限切れ予約を取り消しました", zap.Int("count", cancelled))
	} else {
		log.Debug("期限切れ予約なし")
	}

	completed, err := r.orders.CompleteFinishedOrders(ctx)
	if err != nil {
		log.Error("上映済み注文の完了処理に失敗", zap.Error(err))
	} else if completed > 0 {
		log.Info("上映済み注文を完了しました", zap.Int("count", completed))
	}
}
