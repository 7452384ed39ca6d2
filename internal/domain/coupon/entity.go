package coupon

import (
	"fmt"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
)

// Status はクーポン自体の公開状態を表す
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ClaimStatus は会員が取得したクーポンの状態を表す
type ClaimStatus string

const (
	ClaimUnused     ClaimStatus = "UNUSED"
	ClaimUsed       ClaimStatus = "USED"
	ClaimExpired    ClaimStatus = "EXPIRED"
	ClaimCancelled  ClaimStatus = "CANCELLED"
	ClaimUnreceived ClaimStatus = "UNRECEIVED"
	ClaimReceived   ClaimStatus = "RECEIVED"
)

var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimUnused:     {ClaimUsed, ClaimExpired, ClaimCancelled},
	ClaimUsed:       {ClaimUnused},
	ClaimUnreceived: {ClaimReceived},
	ClaimReceived:   {ClaimUnused},
}

// CanTransitionTo は next への遷移が許可されているかを返す
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, n := range claimTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Eligibility はクーポンの利用条件を表す
// nil の項目は制限なし
type Eligibility struct {
	MovieID        *int64
	SessionID      *int64
	MinMemberLevel *int
}

// Coupon はクーポンの定義を表す
type Coupon struct {
	ID              int64
	EventID         int64
	SerialNumber    string
	Name            string
	Description     string
	DiscountKind    pricing.DiscountKind
	DiscountAmount  int64
	MinimumSpend    int64
	Status          Status
	ExpiresAt       *time.Time
	RedeemableTimes int // 会員ごとの取得・利用上限（0 は無制限）
	Quantity        int // 全体の発行上限（0 は無制限）
	ClaimedCount    int
	Eligibility     Eligibility
	CreatedAt       time.Time
}

// IsActive は公開中かを返す
func (c *Coupon) IsActive() bool {
	return c.Status == StatusActive
}

// IsExpired は now 時点で期限切れかを返す
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Discount は小計に対する割引額を返す
func (c *Coupon) Discount(subtotal int64) int64 {
	return pricing.DiscountOff(subtotal, c.DiscountKind, c.DiscountAmount)
}

// CheckClaimable は取得可能かを判定する
func (c *Coupon) CheckClaimable(now time.Time) error {
	if !c.IsActive() {
		return ErrCouponInactive
	}
	if c.IsExpired(now) {
		return ErrCouponExpired
	}
	return nil
}

// MemberCoupon は会員によるクーポンの取得（と利用）を表す
type MemberCoupon struct {
	ID              int64
	MemberID        int64
	CouponID        int64
	Status          ClaimStatus
	AcquisitionTime time.Time
	UsageTime       *time.Time
}

// TransitionTo は取得状態を next に変更する
func (m *MemberCoupon) TransitionTo(next ClaimStatus, now time.Time) error {
	if !m.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, m.Status, next)
	}
	m.Status = next
	switch next {
	case ClaimUsed:
		m.UsageTime = &now
	case ClaimUnused:
		m.UsageTime = nil
	}
	return nil
}

// Holding は会員の取得クーポンとその定義の組
type Holding struct {
	Claim  *MemberCoupon
	Coupon *Coupon
}
