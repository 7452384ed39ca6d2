package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/catalog"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/order"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/ordernumber"
)

const (
	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
	defaultListMax = 20
)

// errHoldNotExpired は掃除対象として選ばれた後に状況が変わったことを表す
var errHoldNotExpired = errors.New("仮押さえはまだ有効です")

// OrderServiceConfig は注文処理の業務設定
type OrderServiceConfig struct {
	OnlineHold      time.Duration
	CounterHoldLead time.Duration
	RefundCutoff    time.Duration
	SeatLockTTL     time.Duration
	BatchSize       int
}

// OrderService は注文の作成から支払い・払い戻し・取消までの状態遷移を管理する
// 注文と注文明細を書き込むのはこのサービスだけ
type OrderService struct {
	txManager   transaction.Manager
	orderRepo   order.Repository
	catalog     catalog.Reader
	seats       *SeatInventory
	pricing     *PricingEngine
	coupons     *CouponService
	codec       *ordernumber.Codec
	lockManager redisinfra.LockManagerInterface
	notifier    Notifier
	clock       clock.Clock
	cfg         OrderServiceConfig
}

// OrderServiceDeps は OrderService の依存
// LockManager と Notifier は nil でもよい
type OrderServiceDeps struct {
	TxManager   transaction.Manager
	OrderRepo   order.Repository
	Catalog     catalog.Reader
	Seats       *SeatInventory
	Pricing     *PricingEngine
	Coupons     *CouponService
	Codec       *ordernumber.Codec
	LockManager redisinfra.LockManagerInterface
	Notifier    Notifier
	Clock       clock.Clock
}

func NewOrderService(deps OrderServiceDeps, cfg OrderServiceConfig) *OrderService {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.SeatLockTTL <= 0 {
		cfg.SeatLockTTL = 10 * time.Second
	}
	return &OrderService{
		txManager:   deps.TxManager,
		orderRepo:   deps.OrderRepo,
		catalog:     deps.Catalog,
		seats:       deps.Seats,
		pricing:     deps.Pricing,
		coupons:     deps.Coupons,
		codec:       deps.Codec,
		lockManager: deps.LockManager,
		notifier:    deps.Notifier,
		clock:       deps.Clock,
		cfg:         cfg,
	}
}

// OrderResult は注文と外部公開用の注文番号の組
type OrderResult struct {
	Order       *order.TicketOrder
	OrderNumber string
}

// CreateReservationInput は予約作成の入力
// SeatIDs と TicketTypeIDs は位置で1対1に対応する
type CreateReservationInput struct {
	MemberID       *int64
	SessionID      int64
	SeatIDs        []int64
	TicketTypeIDs  []int64
	PaymentMethod  string
	MemberCouponID *int64
}

// PaymentDescriptor は支払い情報
type PaymentDescriptor struct {
	PaymentType   string
	TransactionID string
}

// PaymentResult は決済ゲートウェイからの結果通知
type PaymentResult struct {
	OrderNumber   string
	Success       bool
	PaymentType   string
	TransactionID string
}

// CreateReservation は座席を仮押さえし、PENDING の注文を作成する
func (s *OrderService) CreateReservation(ctx context.Context, input CreateReservationInput) (*OrderResult, error) {
	res, err := s.createReservation(ctx, input)
	recordReservation(err)
	return res, err
}

func (s *OrderService) createReservation(ctx context.Context, input CreateReservationInput) (*OrderResult, error) {
	log := logger.FromContext(ctx)

	if len(input.SeatIDs) == 0 {
		return nil, seat.ErrSeatIDsRequired
	}
	if len(input.SeatIDs) != len(input.TicketTypeIDs) {
		return nil, order.ErrTicketCountMismatch
	}
	method, err := order.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if input.MemberCouponID != nil && input.MemberID == nil {
		return nil, fmt.Errorf("%w: クーポンの利用には会員ログインが必要です", coupon.ErrCouponNotApplicable)
	}

	session, err := s.catalog.GetSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	hold, err := s.holdDuration(method, session, now)
	if err != nil {
		return nil, err
	}

	// 座席ごとの単価（同じ券種は1回だけ解決する）
	prices := make(map[int64]int64)
	lines := make([]order.Line, len(input.SeatIDs))
	var subtotal int64
	for i, seatID := range input.SeatIDs {
		ttID := input.TicketTypeIDs[i]
		price, ok := prices[ttID]
		if !ok {
			price, err = s.pricing.UnitPrice(ctx, session.TheaterTypeID, ttID, now)
			if err != nil {
				return nil, err
			}
			prices[ttID] = price
		}
		lines[i] = order.Line{SessionSeatID: seatID, TicketTypeID: ttID, UnitPrice: price}
		subtotal += price
	}

	var discount int64
	if input.MemberCouponID != nil {
		discount, err = s.coupons.ValidateForOrder(ctx, *input.MemberID, *input.MemberCouponID, session, subtotal)
		if err != nil {
			return nil, err
		}
	}

	// 同じ座席集合への同時リクエストを早めに弾く（正しさは DB の条件付き更新が保証する）
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx,
			redisinfra.SeatLockKey(session.ID, input.SeatIDs), s.cfg.SeatLockTTL, lockRetries, lockRetryDelay)
		switch {
		case err == nil:
			defer lock.Release(ctx)
		case errors.Is(err, redisinfra.ErrLockNotAcquired):
			return nil, fmt.Errorf("%w: 座席が他のユーザーによって処理中です", transaction.ErrConcurrencyConflict)
		default:
			log.Warn("分散ロックを取得できないためロックなしで続行します", zap.Error(err))
		}
	}

	var o *order.TicketOrder
	err = runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		expiry, err := s.seats.Reserve(ctx, tx, session.ID, input.SeatIDs, hold)
		if err != nil {
			return err
		}
		o, err = order.NewTicketOrder(order.NewTicketOrderInput{
			MemberID:          input.MemberID,
			SessionID:         session.ID,
			PaymentMethod:     method,
			MemberCouponID:    input.MemberCouponID,
			Lines:             lines,
			Discount:          discount,
			ReservedExpiredAt: expiry,
			Now:               now,
		})
		if err != nil {
			return err
		}
		return s.orderRepo.Create(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	s.seats.InvalidateCache(ctx, session.ID)

	result, err := s.result(o)
	if err != nil {
		return nil, err
	}
	log.Info("予約を作成しました",
		zap.Int64("order_id", o.ID),
		zap.String("order_number", result.OrderNumber),
		zap.Int64("session_id", o.SessionID),
		zap.Int("count", len(o.Details)),
		zap.Int64("total_amount", o.TotalAmount),
	)
	s.notify(ctx, EventOrderReserved, result)
	return result, nil
}

// holdDuration は支払い方法ごとの仮押さえ時間を返す
// オンラインは一定時間（上映開始を超えない）、窓口は上映開始の一定時間前まで
func (s *OrderService) holdDuration(method order.PaymentMethod, session *catalog.Session, now time.Time) (time.Duration, error) {
	if session.HasStarted(now) {
		return 0, order.ErrSessionClosed
	}
	var until time.Time
	switch method {
	case order.PaymentMethodOnline:
		until = now.Add(s.cfg.OnlineHold)
		if until.After(session.StartTime) {
			until = session.StartTime
		}
	case order.PaymentMethodCounter:
		until = session.StartTime.Add(-s.cfg.CounterHoldLead)
	default:
		return 0, order.ErrInvalidPaymentMethod
	}
	if !until.After(now) {
		return 0, order.ErrSessionClosed
	}
	return until.Sub(now), nil
}

// MarkAsPaid は PENDING の注文を支払い済みにし、座席を販売確定する
func (s *OrderService) MarkAsPaid(ctx context.Context, orderNumber string, payment PaymentDescriptor) (*OrderResult, error) {
	id, err := s.codec.Decode(orderNumber)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, id, payment)
}

func (s *OrderService) markPaid(ctx context.Context, id int64, payment PaymentDescriptor) (*OrderResult, error) {
	if payment.TransactionID == "" {
		payment.TransactionID = manualTransactionID()
	}

	var o *order.TicketOrder
	err := runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		o, err = s.orderRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := o.MarkPaid(now, payment.PaymentType, payment.TransactionID); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, o, order.StatusPending); err != nil {
			return err
		}
		if err := s.seats.Confirm(ctx, tx, o.SessionID, o.ActiveSeatIDs()); err != nil {
			return err
		}
		if o.MemberCouponID != nil {
			return s.coupons.MarkUsed(ctx, tx, *o.MemberCouponID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordTransition(order.StatusPaid)
	result, err := s.result(o)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("支払いを記録しました",
		zap.Int64("order_id", o.ID),
		zap.String("order_number", result.OrderNumber),
		zap.String("payment_type", payment.PaymentType),
	)
	s.notify(ctx, EventOrderPaid, result)
	return result, nil
}

// manualTransactionID は取引IDが渡されなかった場合の控えを生成する
func manualTransactionID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "MANUAL-" + strings.ToUpper(id[:8])
}

// Refund は支払い済みの注文を払い戻し、座席を空席に戻す
// 利用したクーポンは使用済みのまま戻さない
func (s *OrderService) Refund(ctx context.Context, orderNumber string) (*OrderResult, error) {
	id, err := s.codec.Decode(orderNumber)
	if err != nil {
		return nil, err
	}

	var o *order.TicketOrder
	err = runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		o, err = s.orderRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := o.TransitionTo(order.StatusRefunded, now); err != nil {
			return err
		}
		session, err := s.catalog.GetSession(ctx, o.SessionID)
		if err != nil {
			return err
		}
		if !now.Before(session.StartTime.Add(-s.cfg.RefundCutoff)) {
			return order.ErrRefundWindowClosed
		}

		seatIDs := o.TransitionActiveDetails(order.DetailStatusRefunded)
		if err := s.transitionDetails(ctx, tx, o.ID, order.DetailStatusRefunded, len(seatIDs)); err != nil {
			return err
		}
		if err := s.seats.Free(ctx, tx, o.SessionID, seatIDs); err != nil {
			return err
		}
		return s.orderRepo.UpdateStatus(ctx, tx, o, order.StatusPaid)
	})
	if err != nil {
		return nil, err
	}
	s.seats.InvalidateCache(ctx, o.SessionID)

	recordTransition(order.StatusRefunded)
	result, err := s.result(o)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("払い戻しました",
		zap.Int64("order_id", o.ID), zap.String("order_number", result.OrderNumber))
	s.notify(ctx, EventOrderRefunded, result)
	return result, nil
}

// transitionDetails は ACTIVE な明細を一括で変更し、件数が想定と違えば競合とみなす
func (s *OrderService) transitionDetails(ctx context.Context, tx transaction.Tx, orderID int64, to order.DetailStatus, want int) error {
	n, err := s.orderRepo.UpdateDetailStatus(ctx, tx, orderID, order.DetailStatusActive, to)
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("%w: 注文明細の件数が一致しません", transaction.ErrConcurrencyConflict)
	}
	return nil
}

// CancelReservation は会員自身が PENDING の注文を取り消す
func (s *OrderService) CancelReservation(ctx context.Context, orderNumber string, memberID int64) (*OrderResult, error) {
	id, err := s.codec.Decode(orderNumber)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, id, func(o *order.TicketOrder, _ time.Time) error {
		if !o.IsOwnedBy(memberID) {
			return order.ErrNotOrderOwner
		}
		return nil
	})
}

// cancel は PENDING の注文を取り消し、明細を CANCELLED に、座席を空席に戻す
// 状態の再確認から更新までを1トランザクションで行うため、同時に走った支払いとはどちらか一方だけが成功する
func (s *OrderService) cancel(ctx context.Context, id int64, check func(o *order.TicketOrder, now time.Time) error) (*OrderResult, error) {
	var o *order.TicketOrder
	err := runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		var err error
		o, err = s.orderRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if check != nil {
			if err := check(o, now); err != nil {
				return err
			}
		}
		if err := o.TransitionTo(order.StatusCancelled, now); err != nil {
			return err
		}
		seatIDs := o.TransitionActiveDetails(order.DetailStatusCancelled)
		if err := s.transitionDetails(ctx, tx, o.ID, order.DetailStatusCancelled, len(seatIDs)); err != nil {
			return err
		}
		if err := s.seats.Release(ctx, tx, o.SessionID, seatIDs); err != nil {
			return err
		}
		return s.orderRepo.UpdateStatus(ctx, tx, o, order.StatusPending)
	})
	if err != nil {
		return nil, err
	}
	s.seats.InvalidateCache(ctx, o.SessionID)

	recordTransition(order.StatusCancelled)
	result, err := s.result(o)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("注文を取り消しました",
		zap.Int64("order_id", o.ID), zap.String("order_number", result.OrderNumber))
	s.notify(ctx, EventOrderCancelled, result)
	return result, nil
}

// HandlePaymentResult は決済ゲートウェイの結果を反映する
// 同じ結果が再送されても状態は変わらず、現在の注文を返す
func (s *OrderService) HandlePaymentResult(ctx context.Context, pr PaymentResult) (*OrderResult, error) {
	id, err := s.codec.Decode(pr.OrderNumber)
	if err != nil {
		return nil, err
	}

	if pr.Success {
		res, err := s.markPaid(ctx, id, PaymentDescriptor{PaymentType: pr.PaymentType, TransactionID: pr.TransactionID})
		if errors.Is(err, order.ErrInvalidStateTransition) {
			return s.alreadyIn(ctx, id, err, order.StatusPaid, order.StatusCompleted)
		}
		return res, err
	}

	res, err := s.cancel(ctx, id, nil)
	if errors.Is(err, order.ErrInvalidStateTransition) {
		return s.alreadyIn(ctx, id, err, order.StatusCancelled, order.StatusPaid, order.StatusCompleted, order.StatusRefunded)
	}
	return res, err
}

// alreadyIn は注文が既に statuses のいずれかにあれば現在の注文を返し、そうでなければ cause を返す
func (s *OrderService) alreadyIn(ctx context.Context, id int64, cause error, statuses ...order.Status) (*OrderResult, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if o.Status == st {
			logger.FromContext(ctx).Info("決済結果は処理済みです",
				zap.Int64("order_id", o.ID), zap.String("status", string(o.Status)))
			return s.result(o)
		}
	}
	return nil, cause
}

// CancelExpiredReservations は仮押さえ期限を過ぎた PENDING 注文をすべて取り消し、取り消した件数を返す
// 1件の失敗で掃除全体を止めず、失敗した注文は次回に再試行される
func (s *OrderService) CancelExpiredReservations(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	var cancelled int
	err := s.sweep(ctx, s.orderRepo.ListExpiredPending, func(id int64) {
		_, err := s.cancel(ctx, id, func(o *order.TicketOrder, now time.Time) error {
			if o.Status == order.StatusPending && !o.IsHoldExpired(now) {
				return errHoldNotExpired
			}
			return nil
		})
		switch {
		case err == nil:
			cancelled++
			recordReaper("cancelled")
		case errors.Is(err, order.ErrInvalidStateTransition), errors.Is(err, errHoldNotExpired):
			// 選択後に支払いが完了した、または期限が延びた
			log.Debug("期限切れ注文の取消をスキップしました", zap.Int64("order_id", id), zap.Error(err))
		default:
			recordReaper("failed")
			log.Error("期限切れ注文の取消に失敗しました", zap.Int64("order_id", id), zap.Error(err))
		}
	})
	return cancelled, err
}

// CompleteFinishedOrders は上映が始まった PAID 注文をすべて COMPLETED にし、件数を返す
func (s *OrderService) CompleteFinishedOrders(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	var completed int
	err := s.sweep(ctx, s.orderRepo.ListFinishedPaid, func(id int64) {
		err := runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
			o, err := s.orderRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := o.TransitionTo(order.StatusCompleted, s.clock.Now()); err != nil {
				return err
			}
			return s.orderRepo.UpdateStatus(ctx, tx, o, order.StatusPaid)
		})
		switch {
		case err == nil:
			completed++
			recordTransition(order.StatusCompleted)
			recordReaper("completed")
		case errors.Is(err, order.ErrInvalidStateTransition):
			log.Debug("上映済み注文の完了をスキップしました", zap.Int64("order_id", id))
		default:
			recordReaper("failed")
			log.Error("上映済み注文の完了に失敗しました", zap.Int64("order_id", id), zap.Error(err))
		}
	})
	return completed, err
}

type listPageFunc func(ctx context.Context, now time.Time, exclude []int64, limit int) ([]int64, error)

// sweep は BatchSize 未満のページが返るまで対象IDを取得して handle に渡す
// 同じ掃除で一度渡したIDは次のページから除外するため、失敗し続ける注文が後続を塞がない
func (s *OrderService) sweep(ctx context.Context, list listPageFunc, handle func(id int64)) error {
	now := s.clock.Now()
	seen := []int64{}
	for {
		ids, err := list(ctx, now, seen, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			handle(id)
		}
		if len(ids) < s.cfg.BatchSize {
			return nil
		}
		seen = append(seen[:len(seen):len(seen)], ids...)
	}
}

// GetOrder は注文番号から注文を取得する（管理者用）
func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*OrderResult, error) {
	id, err := s.codec.Decode(orderNumber)
	if err != nil {
		return nil, err
	}
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.result(o)
}

// GetOrderForMember は会員自身の注文を取得する
func (s *OrderService) GetOrderForMember(ctx context.Context, orderNumber string, memberID int64) (*OrderResult, error) {
	res, err := s.GetOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !res.Order.IsOwnedBy(memberID) {
		return nil, order.ErrNotOrderOwner
	}
	return res, nil
}

// ListMemberOrders は会員の注文を新しい順に返す
func (s *OrderService) ListMemberOrders(ctx context.Context, memberID int64, limit, offset int) ([]*OrderResult, error) {
	if limit <= 0 {
		limit = defaultListMax
	}
	orders, err := s.orderRepo.GetByMemberID(ctx, memberID, limit, offset)
	if err != nil {
		return nil, err
	}
	results := make([]*OrderResult, 0, len(orders))
	for _, o := range orders {
		r, err := s.result(o)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// result は注文番号を作成日付で採番して結果を組み立てる（同じ注文は常に同じ番号になる）
func (s *OrderService) result(o *order.TicketOrder) (*OrderResult, error) {
	number, err := s.codec.EncodeAt(o.ID, o.CreatedTime)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: o, OrderNumber: number}, nil
}

func (s *OrderService) notify(ctx context.Context, eventType string, r *OrderResult) {
	ev := OrderEvent{
		Type:        eventType,
		OrderID:     r.Order.ID,
		OrderNumber: r.OrderNumber,
		MemberID:    r.Order.MemberID,
		SessionID:   r.Order.SessionID,
		Status:      r.Order.Status,
		TotalAmount: r.Order.TotalAmount,
		OccurredAt:  s.clock.Now(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn("注文イベントの通知に失敗しました",
			zap.String("type", eventType), zap.Int64("order_id", r.Order.ID), zap.Error(err))
	}
}

func recordReservation(err error) {
	m := metrics.Get()
	if m == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, seat.ErrSeatUnavailable):
		status = "seat_unavailable"
	case errors.Is(err, coupon.ErrCouponNotApplicable):
		status = "coupon_rejected"
	case errors.Is(err, transaction.ErrConcurrencyConflict):
		status = "conflict"
	default:
		status = "error"
	}
	m.ReservationsTotal.WithLabelValues(status).Inc()
}

func recordTransition(to order.Status) {
	if m := metrics.Get(); m != nil {
		m.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	}
}

func recordReaper(result string) {
	if m := metrics.Get(); m != nil {
		m.ReaperOrdersTotal.WithLabelValues(result).Inc()
	}
}
