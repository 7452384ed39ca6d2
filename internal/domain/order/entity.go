package order

import (
	"fmt"
	"strings"
	"time"
)

// Status は注文の状態を表す
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusRefunded  Status = "REFUNDED"
)

var statusTransitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusCompleted, StatusRefunded},
}

// CanTransitionTo は next への遷移が許可されているかを返す
// 注文状態の遷移可否はここでのみ判定する
func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range statusTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// IsTerminal は終端状態かを返す
func (s Status) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// DetailStatus は注文明細の状態を表す
type DetailStatus string

const (
	DetailStatusActive    DetailStatus = "ACTIVE"
	DetailStatusRefunded  DetailStatus = "REFUNDED"
	DetailStatusCancelled DetailStatus = "CANCELLED"
)

// CanTransitionTo は明細の next への遷移が許可されているかを返す
func (s DetailStatus) CanTransitionTo(next DetailStatus) bool {
	return s == DetailStatusActive && (next == DetailStatusRefunded || next == DetailStatusCancelled)
}

// PaymentMethod は支払い方法を表す（仮押さえ期限の決め方が変わる）
type PaymentMethod string

const (
	PaymentMethodOnline  PaymentMethod = "online"
	PaymentMethodCounter PaymentMethod = "counter"
)

// ParsePaymentMethod は文字列から支払い方法を解釈する
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentMethodOnline:
		return PaymentMethodOnline, nil
	case PaymentMethodCounter:
		return PaymentMethodCounter, nil
	}
	return "", ErrInvalidPaymentMethod
}

// TicketOrder はチケット注文エンティティを表す
type TicketOrder struct {
	ID                   int64
	MemberID             *int64
	SessionID            int64
	TotalTicketAmount    int64
	TotalDiscount        int64
	TotalAmount          int64
	MemberCouponID       *int64
	Status               Status
	PaymentMethod        PaymentMethod
	ReservedExpiredAt    time.Time
	CreatedTime          time.Time
	PaymentTime          *time.Time
	PaymentType          *string
	PaymentTransactionID *string
	UpdatedAt            time.Time
	Details              []*TicketOrderDetail
}

// TicketOrderDetail は注文明細（1座席1行）を表す
type TicketOrderDetail struct {
	ID            int64
	OrderID       int64
	SessionSeatID int64
	TicketTypeID  int64
	UnitPrice     int64
	Status        DetailStatus
}

// Totals は注文金額の内訳
type Totals struct {
	TicketAmount int64
	Discount     int64
	Amount       int64
}

// ComputeTotals は明細単価と割引額から合計を計算する
// 割引額はチケット合計を上限とする
func ComputeTotals(unitPrices []int64, discount int64) Totals {
	var sum int64
	for _, p := range unitPrices {
		sum += p
	}
	if discount < 0 {
		discount = 0
	}
	if discount > sum {
		discount = sum
	}
	return Totals{TicketAmount: sum, Discount: discount, Amount: sum - discount}
}

// NewTicketOrderInput は注文生成の入力
type NewTicketOrderInput struct {
	MemberID          *int64
	SessionID         int64
	PaymentMethod     PaymentMethod
	MemberCouponID    *int64
	Lines             []Line
	Discount          int64
	ReservedExpiredAt time.Time
	Now               time.Time
}

// Line は明細の元になる座席・券種・単価の組
type Line struct {
	SessionSeatID int64
	TicketTypeID  int64
	UnitPrice     int64
}

// NewTicketOrder は PENDING の注文と ACTIVE の明細を生成する
func NewTicketOrder(in NewTicketOrderInput) (*TicketOrder, error) {
	if in.SessionID == 0 {
		return nil, ErrSessionIDRequired
	}
	if len(in.Lines) == 0 {
		return nil, ErrLinesRequired
	}
	prices := make([]int64, len(in.Lines))
	details := make([]*TicketOrderDetail, len(in.Lines))
	for i, l := range in.Lines {
		if l.UnitPrice < 0 {
			return nil, ErrInvalidUnitPrice
		}
		prices[i] = l.UnitPrice
		details[i] = &TicketOrderDetail{
			SessionSeatID: l.SessionSeatID,
			TicketTypeID:  l.TicketTypeID,
			UnitPrice:     l.UnitPrice,
			Status:        DetailStatusActive,
		}
	}
	totals := ComputeTotals(prices, in.Discount)
	return &TicketOrder{
		MemberID:          in.MemberID,
		SessionID:         in.SessionID,
		TotalTicketAmount: totals.TicketAmount,
		TotalDiscount:     totals.Discount,
		TotalAmount:       totals.Amount,
		MemberCouponID:    in.MemberCouponID,
		Status:            StatusPending,
		PaymentMethod:     in.PaymentMethod,
		ReservedExpiredAt: in.ReservedExpiredAt,
		CreatedTime:       in.Now,
		UpdatedAt:         in.Now,
		Details:           details,
	}, nil
}

// TransitionTo は状態を next に変更する
func (o *TicketOrder) TransitionTo(next Status, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// MarkPaid は支払い済みにし、支払い情報を記録する
// 状態の検査が支払い種別の検査より先に行われる
func (o *TicketOrder) MarkPaid(now time.Time, paymentType, transactionID string) error {
	if !o.Status.CanTransitionTo(StatusPaid) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, o.Status, StatusPaid)
	}
	if strings.TrimSpace(paymentType) == "" {
		return ErrPaymentTypeRequired
	}
	if err := o.TransitionTo(StatusPaid, now); err != nil {
		return err
	}
	o.PaymentTime = &now
	o.PaymentType = &paymentType
	o.PaymentTransactionID = &transactionID
	return nil
}

// TransitionActiveDetails は ACTIVE の明細をすべて next に変更し、対象の座席IDを返す
func (o *TicketOrder) TransitionActiveDetails(next DetailStatus) []int64 {
	var seatIDs []int64
	for _, d := range o.Details {
		if d.Status.CanTransitionTo(next) {
			d.Status = next
			seatIDs = append(seatIDs, d.SessionSeatID)
		}
	}
	return seatIDs
}

// ActiveSeatIDs は ACTIVE な明細の座席IDを返す
func (o *TicketOrder) ActiveSeatIDs() []int64 {
	var ids []int64
	for _, d := range o.Details {
		if d.Status == DetailStatusActive {
			ids = append(ids, d.SessionSeatID)
		}
	}
	return ids
}

// IsOwnedBy は注文が会員のものかを返す
func (o *TicketOrder) IsOwnedBy(memberID int64) bool {
	return o.MemberID != nil && *o.MemberID == memberID
}

// IsHoldExpired は仮押さえの期限が切れているかを返す
func (o *TicketOrder) IsHoldExpired(now time.Time) bool {
	return o.Status == StatusPending && !now.Before(o.ReservedExpiredAt)
}
