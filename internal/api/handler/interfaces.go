package handler

import (
	"context"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
)

// OrderServiceInterface は注文サービスのインターフェース
type OrderServiceInterface interface {
	CreateReservation(ctx context.Context, input application.CreateReservationInput) (*application.OrderResult, error)
	MarkAsPaid(ctx context.Context, orderNumber string, payment application.PaymentDescriptor) (*application.OrderResult, error)
	Refund(ctx context.Context, orderNumber string) (*application.OrderResult, error)
	CancelReservation(ctx context.Context, orderNumber string, memberID int64) (*application.OrderResult, error)
	HandlePaymentResult(ctx context.Context, pr application.PaymentResult) (*application.OrderResult, error)
	GetOrder(ctx context.Context, orderNumber string) (*application.OrderResult, error)
	GetOrderForMember(ctx context.Context, orderNumber string, memberID int64) (*application.OrderResult, error)
	ListMemberOrders(ctx context.Context, memberID int64, limit, offset int) ([]*application.OrderResult, error)
}

// SeatInventoryInterface は上映回座席在庫のインターフェース
type SeatInventoryInterface interface {
	ListSeats(ctx context.Context, sessionID int64) ([]*seat.SessionSeat, error)
	CountAvailable(ctx context.Context, sessionID int64) (int, error)
	InitializeSession(ctx context.Context, sessionID int64) (int, error)
	MarkUnavailable(ctx context.Context, sessionID int64, seatIDs []int64) error
	MarkAvailable(ctx context.Context, sessionID int64, seatIDs []int64) error
}

// CouponServiceInterface はクーポンサービスのインターフェース
type CouponServiceInterface interface {
	FindApplicable(ctx context.Context, memberID, sessionID, subtotal int64) ([]coupon.Applicability, error)
	Claim(ctx context.Context, memberID, couponID int64) (*coupon.MemberCoupon, error)
}

// TicketTypeLister は券種一覧を返す
type TicketTypeLister interface {
	ListTicketTypes(ctx context.Context) ([]*pricing.TicketType, error)
}
