package coupon

import "time"

// Reason はクーポンが利用できない理由
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonAlreadyUsed           Reason = "ALREADY_USED"
	ReasonExpired               Reason = "EXPIRED"
	ReasonCancelled             Reason = "CANCELLED"
	ReasonInactive              Reason = "INACTIVE"
	ReasonIneligibleMovie       Reason = "INELIGIBLE_MOVIE"
	ReasonIneligibleSession     Reason = "INELIGIBLE_SESSION"
	ReasonIneligibleMemberLevel Reason = "INELIGIBLE_MEMBER_LEVEL"
	ReasonExhausted             Reason = "EXHAUSTED"
	ReasonBelowMinimumSpend     Reason = "BELOW_MINIMUM_SPEND"
)

// UsageContext はクーポン利用可否の判定に使う予約の文脈
type UsageContext struct {
	Now         time.Time
	MovieID     int64
	SessionID   int64
	MemberLevel int
	Subtotal    int64
	// UsedCount は同じクーポンを会員が既に使った回数
	UsedCount int
}

// Applicability はクーポン1件の利用可否
type Applicability struct {
	MemberCouponID int64
	CouponID       int64
	Name           string
	Description    string
	DiscountAmount int64
	MinimumSpend   int64
	IsUsable       bool
	Reason         Reason
}

// Check は利用条件を満たすかを判定する
func (e Eligibility) Check(uc UsageContext) Reason {
	if e.MovieID != nil && *e.MovieID != uc.MovieID {
		return ReasonIneligibleMovie
	}
	if e.SessionID != nil && *e.SessionID != uc.SessionID {
		return ReasonIneligibleSession
	}
	if e.MinMemberLevel != nil && uc.MemberLevel < *e.MinMemberLevel {
		return ReasonIneligibleMemberLevel
	}
	return ReasonNone
}

// Evaluate は取得クーポンが文脈上利用可能かを判定する
// 利用できない場合も理由付きで結果を返し、割引額は 0 とする
func Evaluate(h Holding, uc UsageContext) Applicability {
	c, mc := h.Coupon, h.Claim
	a := Applicability{
		MemberCouponID: mc.ID,
		CouponID:       c.ID,
		Name:           c.Name,
		Description:    c.Description,
		MinimumSpend:   c.MinimumSpend,
	}
	a.Reason = reasonFor(h, uc)
	if a.Reason == ReasonNone {
		a.IsUsable = true
		a.DiscountAmount = c.Discount(uc.Subtotal)
	}
	return a
}

func reasonFor(h Holding, uc UsageContext) Reason {
	c, mc := h.Coupon, h.Claim
	switch mc.Status {
	case ClaimUnused:
	case ClaimExpired:
		return ReasonExpired
	case ClaimCancelled:
		return ReasonCancelled
	default:
		return ReasonAlreadyUsed
	}
	if !c.IsActive() {
		return ReasonInactive
	}
	if c.IsExpired(uc.Now) {
		return ReasonExpired
	}
	if r := c.Eligibility.Check(uc); r != ReasonNone {
		return r
	}
	if c.RedeemableTimes > 0 && uc.UsedCount >= c.RedeemableTimes {
		return ReasonExhausted
	}
	if uc.Subtotal < c.MinimumSpend {
		return ReasonBelowMinimumSpend
	}
	return ReasonNone
}
