package seat

import "time"

// Status は上映回ごとの座席の状態を表す
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusReserved    Status = "RESERVED"
	StatusSold        Status = "SOLD"
	StatusUnavailable Status = "UNAVAILABLE"
)

// transitions は許可される状態遷移の一覧
// 座席状態の変更可否はここでのみ判定する
var transitions = map[Status][]Status{
	StatusAvailable:   {StatusReserved, StatusUnavailable},
	StatusReserved:    {StatusAvailable, StatusSold},
	StatusSold:        {StatusAvailable},
	StatusUnavailable: {StatusAvailable},
}

// CanTransition は from から to への遷移が許可されているかを返す
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValid は定義済みの状態かを返す
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// SessionSeat は上映回の座席（予約可能な最小単位）を表す
type SessionSeat struct {
	ID                int64
	SessionID         int64
	SeatID            int64
	RowLabel          string
	ColumnNumber      int
	Status            Status
	ReservedAt        *time.Time
	ReservedExpiredAt *time.Time
	UpdatedAt         time.Time
}
