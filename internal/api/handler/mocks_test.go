package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
)

// MockOrderService はOrderServiceInterfaceのモック
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) result(args mock.Arguments) (*application.OrderResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.OrderResult), args.Error(1)
}

func (m *MockOrderService) CreateReservation(ctx context.Context, input application.CreateReservationInput) (*application.OrderResult, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockOrderService) MarkAsPaid(ctx context.Context, orderNumber string, payment application.PaymentDescriptor) (*application.OrderResult, error) {
	return m.result(m.Called(ctx, orderNumber, payment))
}

func (m *MockOrderService) Refund(ctx context.Context, orderNumber string) (*application.OrderResult, error) {
	return m.result(m.Called(ctx, orderNumber))
}

func (m *MockOrderService) CancelReservation(ctx context.Context, orderNumber string, memberID int64) (*application.OrderResult, error) {
	return m.result(m.Called(ctx, orderNumber, memberID))
}

func (m *MockOrderService) HandlePaymentResult(ctx context.Context, pr application.PaymentResult) (*application.OrderResult, error) {
	return m.result(m.Called(ctx, pr))
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderNumber string) (*application.OrderResult, error) {
	return m.result(m.Called(ctx, orderNumber))
}

func (m *MockOrderService) GetOrderForMember(ctx context.Context, orderNumber string, memberID int64) (*application.OrderResult, error) {
	return m.result(m.Called(ctx, orderNumber, memberID))
}

func (m *MockOrderService) ListMemberOrders(ctx context.Context, memberID int64, limit, offset int) ([]*application.OrderResult, error) {
	args := m.Called(ctx, memberID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*application.OrderResult), args.Error(1)
}

// MockSeatInventory はSeatInventoryInterfaceのモック
type MockSeatInventory struct {
	mock.Mock
}

func (m *MockSeatInventory) ListSeats(ctx context.Context, sessionID int64) ([]*seat.SessionSeat, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.SessionSeat), args.Error(1)
}

func (m *MockSeatInventory) CountAvailable(ctx context.Context, sessionID int64) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatInventory) InitializeSession(ctx context.Context, sessionID int64) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockSeatInventory) MarkUnavailable(ctx context.Context, sessionID int64, seatIDs []int64) error {
	return m.Called(ctx, sessionID, seatIDs).Error(0)
}

func (m *MockSeatInventory) MarkAvailable(ctx context.Context, sessionID int64, seatIDs []int64) error {
	return m.Called(ctx, sessionID, seatIDs).Error(0)
}

// MockCouponService はCouponServiceInterfaceのモック
type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) FindApplicable(ctx context.Context, memberID, sessionID, subtotal int64) ([]coupon.Applicability, error) {
	args := m.Called(ctx, memberID, sessionID, subtotal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coupon.Applicability), args.Error(1)
}

func (m *MockCouponService) Claim(ctx context.Context, memberID, couponID int64) (*coupon.MemberCoupon, error) {
	args := m.Called(ctx, memberID, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.MemberCoupon), args.Error(1)
}

// MockTicketTypeLister はTicketTypeListerのモック
type MockTicketTypeLister struct {
	mock.Mock
}

func (m *MockTicketTypeLister) ListTicketTypes(ctx context.Context) ([]*pricing.TicketType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pricing.TicketType), args.Error(1)
}
