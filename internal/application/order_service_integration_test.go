//go:build integration
// +build integration

package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/config"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/order"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/ordernumber"
)

type testEnv struct {
	db           *sqlx.DB
	orders       *OrderService
	seats        *SeatInventory
	coupons      *CouponService
	sessionID    int64
	seatIDs      []int64
	ticketTypeID int64
	memberIDs    []int64
	eventID      int64

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func insertID(t *testing.T, db *sqlx.DB, query string, args ...interface{}) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRowx(query, args...).Scan(&id))
	return id
}

// setupTestEnv は劇場1つ（5席）・上映回1つ・券種1つ・会員10人を用意する
func setupTestEnv(t *testing.T) (*testEnv, func()) {
	cfg := config.Load()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}
	if err := postgres.RunMigrations(db.DB, "../../migrations"); err != nil {
		t.Skipf("マイグレーションエラー: %v", err)
	}

	env := &testEnv{db: db, now: time.Now().UTC().Truncate(time.Second)}
	clk := clock.Func(env.Now)
	suffix := uuid.NewString()[:8]

	theaterTypeID := insertID(t, db, `INSERT INTO theater_types (name) VALUES ($1) RETURNING id`, "2D-"+suffix)
	theaterID := insertID(t, db, `INSERT INTO theaters (theater_type_id, name) VALUES ($1, $2) RETURNING id`, theaterTypeID, "スクリーン1")
	for col := 1; col <= 5; col++ {
		insertID(t, db, `INSERT INTO seats (theater_id, row_label, column_number) VALUES ($1, 'A', $2) RETURNING id`, theaterID, col)
	}
	movieID := insertID(t, db, `INSERT INTO movies (title) VALUES ('テスト映画') RETURNING id`)
	start := env.now.Add(24 * time.Hour)
	env.sessionID = insertID(t, db,
		`INSERT INTO movie_sessions (movie_id, theater_id, start_time, end_time) VALUES ($1, $2, $3, $4) RETURNING id`,
		movieID, theaterID, start, start.Add(2*time.Hour))
	env.ticketTypeID = insertID(t, db, `INSERT INTO ticket_types (name) VALUES ($1) RETURNING id`, "一般-"+suffix)
	insertID(t, db,
		`INSERT INTO ticket_price_rules (theater_type_id, ticket_type_id, price, valid_from) VALUES ($1, $2, 1800, $3) RETURNING id`,
		theaterTypeID, env.ticketTypeID, env.now.AddDate(-1, 0, 0))
	for i := 0; i < 10; i++ {
		env.memberIDs = append(env.memberIDs,
			insertID(t, db, `INSERT INTO members (name) VALUES ($1) RETURNING id`, fmt.Sprintf("会員%d", i)))
	}
	env.eventID = insertID(t, db, `INSERT INTO events (title) VALUES ('公開記念') RETURNING id`)

	var lockManager redisinfra.LockManagerInterface
	redisClient, err := redisinfra.NewClient(&cfg.Redis)
	if err == nil {
		lockManager = redisinfra.NewLockManager(redisClient)
	} else {
		t.Logf("Redisなしで実行します: %v", err)
	}

	txManager := postgres.NewTxManager(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	env.seats = NewSeatInventory(txManager, postgres.NewSessionSeatRepository(db), catalogRepo, nil, 0, clk)
	env.coupons = NewCouponService(txManager, postgres.NewCouponRepository(db), catalogRepo, clk)
	env.orders = NewOrderService(OrderServiceDeps{
		TxManager:   txManager,
		OrderRepo:   postgres.NewOrderRepository(db),
		Catalog:     catalogRepo,
		Seats:       env.seats,
		Pricing:     NewPricingEngine(postgres.NewPricingRepository(db)),
		Coupons:     env.coupons,
		Codec:       ordernumber.New(ordernumber.WithClock(clk)),
		LockManager: lockManager,
		Clock:       clk,
	}, OrderServiceConfig{
		OnlineHold:      15 * time.Minute,
		CounterHoldLead: 30 * time.Minute,
		RefundCutoff:    2 * time.Hour,
	})

	ctx := context.Background()
	n, err := env.seats.InitializeSession(ctx, env.sessionID)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	seats, err := env.seats.ListSeats(ctx, env.sessionID)
	require.NoError(t, err)
	for _, s := range seats {
		env.seatIDs = append(env.seatIDs, s.ID)
	}

	cleanup := func() {
		db.Exec("DELETE FROM ticket_order_details")
		db.Exec("DELETE FROM ticket_orders")
		db.Exec("DELETE FROM member_coupons")
		db.Exec("DELETE FROM coupons")
		db.Exec("DELETE FROM events")
		db.Exec("DELETE FROM session_seats")
		db.Exec("DELETE FROM ticket_price_rules")
		db.Exec("DELETE FROM ticket_types")
		db.Exec("DELETE FROM movie_sessions")
		db.Exec("DELETE FROM movies")
		db.Exec("DELETE FROM seats")
		db.Exec("DELETE FROM theaters")
		db.Exec("DELETE FROM theater_types")
		db.Exec("DELETE FROM member_levels")
		db.Exec("DELETE FROM members")
		if redisClient != nil {
			redisClient.Close()
		}
		db.Close()
	}
	return env, cleanup
}

func (e *testEnv) reserve(ctx context.Context, memberIdx int, seatIDs ...int64) (*OrderResult, error) {
	types := make([]int64, len(seatIDs))
	for i := range types {
		types[i] = e.ticketTypeID
	}
	mid := e.memberIDs[memberIdx]
	return e.orders.CreateReservation(ctx, CreateReservationInput{
		MemberID:      &mid,
		SessionID:     e.sessionID,
		SeatIDs:       seatIDs,
		TicketTypeIDs: types,
		PaymentMethod: "online",
	})
}

func (e *testEnv) seatStatus(t *testing.T, seatID int64) seat.Status {
	t.Helper()
	seats, err := e.seats.ListSeats(context.Background(), e.sessionID)
	require.NoError(t, err)
	for _, s := range seats {
		if s.ID == seatID {
			return s.Status
		}
	}
	t.Fatalf("座席 %d が見つかりません", seatID)
	return ""
}

func TestConcurrentReservation(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("10並行リクエストで1席のみ予約成功", func(t *testing.T) {
		const numGoroutines = 10
		var successCount, failCount int32
		var wg sync.WaitGroup
		target := env.seatIDs[0]

		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(member int) {
				defer wg.Done()
				_, err := env.reserve(ctx, member, target)
				if err == nil {
					atomic.AddInt32(&successCount, 1)
					return
				}
				if errors.Is(err, seat.ErrSeatUnavailable) || errors.Is(err, transaction.ErrConcurrencyConflict) {
					atomic.AddInt32(&failCount, 1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), successCount, "成功は1つだけ")
		assert.Equal(t, int32(numGoroutines-1), failCount, "残りは全て座席確保失敗")
		assert.Equal(t, seat.StatusReserved, env.seatStatus(t, target))
	})

	t.Run("重なる座席集合の同時予約はどちらか一方だけ成功", func(t *testing.T) {
		a := []int64{env.seatIDs[1], env.seatIDs[2]}
		b := []int64{env.seatIDs[3], env.seatIDs[2]}
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, ids := range [][]int64{a, b} {
			wg.Add(1)
			go func(i int, ids []int64) {
				defer wg.Done()
				_, errs[i] = env.reserve(ctx, i, ids...)
			}(i, ids)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)

		n, err := env.seats.CountAvailable(ctx, env.sessionID)
		require.NoError(t, err)
		assert.Equal(t, 2, n, "失敗した側の座席は空席のまま")
	})
}

func TestReservationExpiry(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()
	target := env.seatIDs[0]

	res, err := env.reserve(ctx, 0, target)
	require.NoError(t, err)

	// 期限前は掃除されない
	n, err := env.orders.CancelExpiredReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	env.advance(16 * time.Minute)
	n, err = env.orders.CancelExpiredReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.orders.GetOrder(ctx, res.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Order.Status)
	assert.Equal(t, seat.StatusAvailable, env.seatStatus(t, target))

	// 期限切れの注文は支払えない
	_, err = env.orders.MarkAsPaid(ctx, res.OrderNumber, PaymentDescriptor{PaymentType: "CREDIT_CARD"})
	assert.ErrorIs(t, err, order.ErrInvalidStateTransition)

	// 空いた座席は再予約できる
	_, err = env.reserve(ctx, 1, target)
	assert.NoError(t, err)
}

func TestPayAndRefund(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()
	seats := []int64{env.seatIDs[0], env.seatIDs[1]}

	res, err := env.reserve(ctx, 0, seats...)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), res.Order.TotalAmount)

	paid, err := env.orders.MarkAsPaid(ctx, res.OrderNumber, PaymentDescriptor{PaymentType: "CREDIT_CARD", TransactionID: "gw-1"})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, paid.Order.Status)
	for _, id := range seats {
		assert.Equal(t, seat.StatusSold, env.seatStatus(t, id))
	}

	// 支払い済みは掃除対象にならない
	env.advance(16 * time.Minute)
	n, err := env.orders.CancelExpiredReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	refunded, err := env.orders.Refund(ctx, res.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRefunded, refunded.Order.Status)
	for _, id := range seats {
		assert.Equal(t, seat.StatusAvailable, env.seatStatus(t, id))
	}

	// 払い戻した座席は別の会員が予約できる
	_, err = env.reserve(ctx, 1, seats...)
	assert.NoError(t, err)
}

func TestPayVersusReaperRace(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	res, err := env.reserve(ctx, 0, env.seatIDs[0])
	require.NoError(t, err)
	env.advance(15 * time.Minute)

	var wg sync.WaitGroup
	var payErr error
	var cancelled int
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, payErr = env.orders.MarkAsPaid(ctx, res.OrderNumber, PaymentDescriptor{PaymentType: "CREDIT_CARD"})
	}()
	go func() {
		defer wg.Done()
		cancelled, _ = env.orders.CancelExpiredReservations(ctx)
	}()
	wg.Wait()

	got, err := env.orders.GetOrder(ctx, res.OrderNumber)
	require.NoError(t, err)
	switch got.Order.Status {
	case order.StatusPaid:
		assert.NoError(t, payErr)
		assert.Equal(t, 0, cancelled)
		assert.Equal(t, seat.StatusSold, env.seatStatus(t, env.seatIDs[0]))
	case order.StatusCancelled:
		assert.ErrorIs(t, payErr, order.ErrInvalidStateTransition)
		assert.Equal(t, 1, cancelled)
		assert.Equal(t, seat.StatusAvailable, env.seatStatus(t, env.seatIDs[0]))
	default:
		t.Fatalf("想定外の状態: %s", got.Order.Status)
	}
}

func TestCouponQuotaRace(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	couponID := insertID(t, env.db, `
		INSERT INTO coupons (event_id, serial_number, name, discount_kind, discount_amount, quantity, redeemable_times)
		VALUES ($1, $2, '先着3名 300円引き', 'FIXED', 300, 3, 1) RETURNING id`,
		env.eventID, "SN-"+uuid.NewString()[:8])

	var successCount, quotaCount int32
	var wg sync.WaitGroup
	for _, mid := range env.memberIDs {
		wg.Add(1)
		go func(mid int64) {
			defer wg.Done()
			_, err := env.coupons.Claim(ctx, mid, couponID)
			switch {
			case err == nil:
				atomic.AddInt32(&successCount, 1)
			case errors.Is(err, coupon.ErrQuotaExceeded):
				atomic.AddInt32(&quotaCount, 1)
			}
		}(mid)
	}
	wg.Wait()

	assert.Equal(t, int32(3), successCount)
	assert.Equal(t, int32(7), quotaCount)

	var claimed int
	require.NoError(t, env.db.Get(&claimed, `SELECT claimed_count FROM coupons WHERE id = $1`, couponID))
	assert.Equal(t, 3, claimed)
}

func TestCouponSingleUse(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	couponID := insertID(t, env.db, `
		INSERT INTO coupons (event_id, serial_number, name, discount_kind, discount_amount, redeemable_times)
		VALUES ($1, $2, '300円引き', 'FIXED', 300, 1) RETURNING id`,
		env.eventID, "SN-"+uuid.NewString()[:8])
	mc, err := env.coupons.Claim(ctx, env.memberIDs[0], couponID)
	require.NoError(t, err)

	// 同じ会員は2枚目を取得できない
	_, err = env.coupons.Claim(ctx, env.memberIDs[0], couponID)
	assert.ErrorIs(t, err, coupon.ErrClaimLimitReached)

	mid := env.memberIDs[0]
	input := CreateReservationInput{
		MemberID:       &mid,
		SessionID:      env.sessionID,
		SeatIDs:        []int64{env.seatIDs[0]},
		TicketTypeIDs:  []int64{env.ticketTypeID},
		PaymentMethod:  "online",
		MemberCouponID: &mc.ID,
	}
	first, err := env.orders.CreateReservation(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), first.Order.TotalAmount)

	// 同じ取得クーポンで2件目の注文は作れない
	input.SeatIDs = []int64{env.seatIDs[1]}
	_, err = env.orders.CreateReservation(ctx, input)
	assert.ErrorIs(t, err, coupon.ErrCouponNotApplicable)
	assert.Equal(t, seat.StatusAvailable, env.seatStatus(t, env.seatIDs[1]), "失敗した注文の座席は戻る")

	_, err = env.orders.MarkAsPaid(ctx, first.OrderNumber, PaymentDescriptor{PaymentType: "CREDIT_CARD"})
	require.NoError(t, err)

	h, err := postgres.NewCouponRepository(env.db).GetHolding(ctx, mc.ID)
	require.NoError(t, err)
	assert.Equal(t, coupon.ClaimUsed, h.Claim.Status)
	require.NotNil(t, h.Claim.UsageTime)

	// 使用済みになった後は検証段階で弾かれる
	_, err = env.orders.CreateReservation(ctx, input)
	assert.ErrorIs(t, err, coupon.ErrCouponNotApplicable)
}

func TestSeatInvariants(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	ctx := context.Background()
	txManager := postgres.NewTxManager(env.db)

	t.Run("仮押さえの解放を2回行っても2回目は何もしない", func(t *testing.T) {
		target := env.seatIDs[0]
		_, err := env.reserve(ctx, 0, target)
		require.NoError(t, err)
		require.Equal(t, seat.StatusReserved, env.seatStatus(t, target))

		for i := 0; i < 2; i++ {
			err := runInTx(ctx, txManager, func(tx transaction.Tx) error {
				return env.seats.Release(ctx, tx, env.sessionID, []int64{target})
			})
			require.NoError(t, err, "解放%d回目", i+1)
			assert.Equal(t, seat.StatusAvailable, env.seatStatus(t, target))
		}
	})

	t.Run("販売済みの座席は解放されない", func(t *testing.T) {
		target := env.seatIDs[2]
		res, err := env.reserve(ctx, 2, target)
		require.NoError(t, err)
		_, err = env.orders.MarkAsPaid(ctx, res.OrderNumber, PaymentDescriptor{PaymentType: "CASH"})
		require.NoError(t, err)

		err = runInTx(ctx, txManager, func(tx transaction.Tx) error {
			return env.seats.Release(ctx, tx, env.sessionID, []int64{target})
		})
		require.NoError(t, err)
		assert.Equal(t, seat.StatusSold, env.seatStatus(t, target))
	})

	t.Run("同じ座席に有効な明細を2件作れない", func(t *testing.T) {
		target := env.seatIDs[1]
		_, err := env.reserve(ctx, 1, target)
		require.NoError(t, err)

		mid := env.memberIDs[3]
		now := env.Now()
		dup := &order.TicketOrder{
			MemberID:          &mid,
			SessionID:         env.sessionID,
			Status:            order.StatusPending,
			PaymentMethod:     order.PaymentMethodOnline,
			ReservedExpiredAt: now.Add(15 * time.Minute),
			CreatedTime:       now,
			UpdatedAt:         now,
			TotalTicketAmount: 1800,
			TotalAmount:       1800,
			Details: []*order.TicketOrderDetail{{
				SessionSeatID: target,
				TicketTypeID:  env.ticketTypeID,
				UnitPrice:     1800,
				Status:        order.DetailStatusActive,
			}},
		}
		err = runInTx(ctx, txManager, func(tx transaction.Tx) error {
			return postgres.NewOrderRepository(env.db).Create(ctx, tx, dup)
		})
		assert.ErrorIs(t, err, seat.ErrSeatUnavailable)
	})
}
