package handler

import (
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
)

type OrderDetailResponse struct {
	SessionSeatID int64  `json:"session_seat_id" example:"101"`
	TicketTypeID  int64  `json:"ticket_type_id" example:"1"`
	UnitPrice     int64  `json:"unit_price" example:"1800"`
	Status        string `json:"status" example:"ACTIVE"`
}

type OrderResponse struct {
	OrderNumber          string                `json:"order_number" example:"FX250826-OGC5O"`
	MemberID             *int64                `json:"member_id,omitempty"`
	SessionID            int64                 `json:"session_id" example:"1"`
	Status               string                `json:"status" example:"PENDING"`
	PaymentMethod        string                `json:"payment_method" example:"online"`
	TotalTicketAmount    int64                 `json:"total_ticket_amount" example:"3600"`
	TotalDiscount        int64                 `json:"total_discount" example:"300"`
	TotalAmount          int64                 `json:"total_amount" example:"3300"`
	MemberCouponID       *int64                `json:"member_coupon_id,omitempty"`
	ReservedExpiredAt    time.Time             `json:"reserved_expired_at"`
	CreatedTime          time.Time             `json:"created_time"`
	PaymentTime          *time.Time            `json:"payment_time,omitempty"`
	PaymentType          *string               `json:"payment_type,omitempty"`
	PaymentTransactionID *string               `json:"payment_transaction_id,omitempty"`
	Details              []OrderDetailResponse `json:"details"`
}

func toOrderResponse(r *application.OrderResult) OrderResponse {
	o := r.Order
	details := make([]OrderDetailResponse, len(o.Details))
	for i, d := range o.Details {
		details[i] = OrderDetailResponse{
			SessionSeatID: d.SessionSeatID,
			TicketTypeID:  d.TicketTypeID,
			UnitPrice:     d.UnitPrice,
			Status:        string(d.Status),
		}
	}
	return OrderResponse{
		OrderNumber:          r.OrderNumber,
		MemberID:             o.MemberID,
		SessionID:            o.SessionID,
		Status:               string(o.Status),
		PaymentMethod:        string(o.PaymentMethod),
		TotalTicketAmount:    o.TotalTicketAmount,
		TotalDiscount:        o.TotalDiscount,
		TotalAmount:          o.TotalAmount,
		MemberCouponID:       o.MemberCouponID,
		ReservedExpiredAt:    o.ReservedExpiredAt,
		CreatedTime:          o.CreatedTime,
		PaymentTime:          o.PaymentTime,
		PaymentType:          o.PaymentType,
		PaymentTransactionID: o.PaymentTransactionID,
		Details:              details,
	}
}

type SeatResponse struct {
	ID                int64      `json:"id" example:"101"`
	SeatID            int64      `json:"seat_id" example:"11"`
	Row               string     `json:"row" example:"A"`
	Column            int        `json:"column" example:"1"`
	Status            string     `json:"status" example:"AVAILABLE"`
	ReservedExpiredAt *time.Time `json:"reserved_expired_at,omitempty"`
}

func toSeatResponse(s *seat.SessionSeat) SeatResponse {
	return SeatResponse{
		ID:                s.ID,
		SeatID:            s.SeatID,
		Row:               s.RowLabel,
		Column:            s.ColumnNumber,
		Status:            string(s.Status),
		ReservedExpiredAt: s.ReservedExpiredAt,
	}
}

type CouponApplicabilityResponse struct {
	MemberCouponID int64  `json:"member_coupon_id" example:"5"`
	CouponID       int64  `json:"coupon_id" example:"2"`
	Name           string `json:"name" example:"平日300円引き"`
	Description    string `json:"description"`
	DiscountAmount int64  `json:"discount_amount" example:"300"`
	MinimumSpend   int64  `json:"minimum_spend" example:"1000"`
	IsUsable       bool   `json:"is_usable"`
	Reason         string `json:"reason,omitempty" example:"BELOW_MINIMUM_SPEND"`
}

func toApplicabilityResponse(a coupon.Applicability) CouponApplicabilityResponse {
	return CouponApplicabilityResponse{
		MemberCouponID: a.MemberCouponID,
		CouponID:       a.CouponID,
		Name:           a.Name,
		Description:    a.Description,
		DiscountAmount: a.DiscountAmount,
		MinimumSpend:   a.MinimumSpend,
		IsUsable:       a.IsUsable,
		Reason:         string(a.Reason),
	}
}

type MemberCouponResponse struct {
	ID              int64     `json:"id" example:"5"`
	CouponID        int64     `json:"coupon_id" example:"2"`
	Status          string    `json:"status" example:"UNUSED"`
	AcquisitionTime time.Time `json:"acquisition_time"`
}

func toMemberCouponResponse(m *coupon.MemberCoupon) MemberCouponResponse {
	return MemberCouponResponse{
		ID:              m.ID,
		CouponID:        m.CouponID,
		Status:          string(m.Status),
		AcquisitionTime: m.AcquisitionTime,
	}
}

type TicketTypeResponse struct {
	ID            int64  `json:"id" example:"1"`
	Name          string `json:"name" example:"一般"`
	Description   string `json:"description"`
	DiscountKind  string `json:"discount_kind" example:"FIXED"`
	DiscountValue int64  `json:"discount_value" example:"0"`
}

func toTicketTypeResponse(t *pricing.TicketType) TicketTypeResponse {
	return TicketTypeResponse{
		ID:            t.ID,
		Name:          t.Name,
		Description:   t.Description,
		DiscountKind:  string(t.DiscountKind),
		DiscountValue: t.DiscountValue,
	}
}
