package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/catalog"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/order"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-cinema-ticket-reservation/internal/infrastructure/redis"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockSeatRepository implements seat.Repository
type MockSeatRepository struct {
	mock.Mock
}

func (m *MockSeatRepository) CreateForSession(ctx context.Context, tx transaction.Tx, sessionID, theaterID int64) (int, error) {
	args := m.Called(ctx, tx, sessionID, theaterID)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatRepository) GetBySessionID(ctx context.Context, sessionID int64) ([]*seat.SessionSeat, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.SessionSeat), args.Error(1)
}

func (m *MockSeatRepository) CountAvailableBySessionID(ctx context.Context, sessionID int64) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, change seat.StatusChange) (int, error) {
	args := m.Called(ctx, tx, change)
	return args.Int(0), args.Error(1)
}

// MockOrderRepository implements order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, tx transaction.Tx, o *order.TicketOrder) error {
	args := m.Called(ctx, tx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id int64) (*order.TicketOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.TicketOrder), args.Error(1)
}

func (m *MockOrderRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*order.TicketOrder, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.TicketOrder), args.Error(1)
}

func (m *MockOrderRepository) GetByMemberID(ctx context.Context, memberID int64, limit, offset int) ([]*order.TicketOrder, error) {
	args := m.Called(ctx, memberID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.TicketOrder), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, o *order.TicketOrder, from order.Status) error {
	args := m.Called(ctx, tx, o, from)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateDetailStatus(ctx context.Context, tx transaction.Tx, orderID int64, from, to order.DetailStatus) (int, error) {
	args := m.Called(ctx, tx, orderID, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockOrderRepository) ListExpiredPending(ctx context.Context, now time.Time, exclude []int64, limit int) ([]int64, error) {
	args := m.Called(ctx, now, exclude, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockOrderRepository) ListFinishedPaid(ctx context.Context, now time.Time, exclude []int64, limit int) ([]int64, error) {
	args := m.Called(ctx, now, exclude, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// MockPricingRepository implements pricing.Repository
type MockPricingRepository struct {
	mock.Mock
}

func (m *MockPricingRepository) GetTicketType(ctx context.Context, id int64) (*pricing.TicketType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.TicketType), args.Error(1)
}

func (m *MockPricingRepository) ListTicketTypes(ctx context.Context) ([]*pricing.TicketType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pricing.TicketType), args.Error(1)
}

func (m *MockPricingRepository) ListRules(ctx context.Context, theaterTypeID, ticketTypeID int64) ([]*pricing.PriceRule, error) {
	args := m.Called(ctx, theaterTypeID, ticketTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pricing.PriceRule), args.Error(1)
}

// MockCouponRepository implements coupon.Repository
type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) GetCoupon(ctx context.Context, id int64) (*coupon.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Coupon), args.Error(1)
}

func (m *MockCouponRepository) GetHolding(ctx context.Context, memberCouponID int64) (*coupon.Holding, error) {
	args := m.Called(ctx, memberCouponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Holding), args.Error(1)
}

func (m *MockCouponRepository) ListHoldingsByMember(ctx context.Context, memberID int64) ([]*coupon.Holding, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*coupon.Holding), args.Error(1)
}

func (m *MockCouponRepository) CountClaims(ctx context.Context, tx transaction.Tx, memberID, couponID int64, status *coupon.ClaimStatus) (int, error) {
	args := m.Called(ctx, tx, memberID, couponID, status)
	return args.Int(0), args.Error(1)
}

func (m *MockCouponRepository) IncrementClaimed(ctx context.Context, tx transaction.Tx, couponID int64) (bool, error) {
	args := m.Called(ctx, tx, couponID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCouponRepository) CreateMemberCoupon(ctx context.Context, tx transaction.Tx, mc *coupon.MemberCoupon) error {
	args := m.Called(ctx, tx, mc)
	return args.Error(0)
}

func (m *MockCouponRepository) UpdateClaimStatus(ctx context.Context, tx transaction.Tx, memberCouponID int64, from, to coupon.ClaimStatus, usageTime *time.Time) error {
	args := m.Called(ctx, tx, memberCouponID, from, to, usageTime)
	return args.Error(0)
}

// MockCatalog implements catalog.Reader
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetSession(ctx context.Context, id int64) (*catalog.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Session), args.Error(1)
}

func (m *MockCatalog) GetMemberLevel(ctx context.Context, memberID int64) (int, error) {
	args := m.Called(ctx, memberID)
	return args.Int(0), args.Error(1)
}

// MockLockManager implements redisinfra.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

func (m *MockLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryDelay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLock) Extend(ctx context.Context, ttl time.Duration) error {
	args := m.Called(ctx, ttl)
	return args.Error(0)
}

// MockSeatCache implements redisinfra.SeatCacheInterface
type MockSeatCache struct {
	mock.Mock
}

func (m *MockSeatCache) GetAvailableCount(ctx context.Context, sessionID int64) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatCache) SetAvailableCount(ctx context.Context, sessionID int64, count int, ttl time.Duration) error {
	args := m.Called(ctx, sessionID, count, ttl)
	return args.Error(0)
}

func (m *MockSeatCache) Invalidate(ctx context.Context, sessionID int64) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// MockNotifier implements Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, ev OrderEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
