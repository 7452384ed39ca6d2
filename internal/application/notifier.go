package application

import (
	"context"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/order"
)

// 注文イベントの種類
const (
	EventOrderReserved  = "order.reserved"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
	EventOrderRefunded  = "order.refunded"
	EventOrderCompleted = "order.completed"
)

// OrderEvent は注文の状態変化の通知内容
type OrderEvent struct {
	Type        string       `json:"type"`
	OrderID     int64        `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	MemberID    *int64       `json:"member_id,omitempty"`
	SessionID   int64        `json:"session_id"`
	Status      order.Status `json:"status"`
	TotalAmount int64        `json:"total_amount"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// Notifier は注文イベントの通知先
// 実装は呼び出し元を待たせてはならない（送信は非同期で行う）
type Notifier interface {
	Notify(ctx context.Context, ev OrderEvent) error
}

// NopNotifier は何もしない Notifier
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, OrderEvent) error { return nil }
