package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind は割引の種類を表す
type DiscountKind string

const (
	DiscountNone       DiscountKind = ""
	DiscountFixed      DiscountKind = "FIXED"
	DiscountPercentage DiscountKind = "PERCENTAGE"
)

// DiscountOff は amount に対する割引額を返す
// PERCENTAGE の value は支払い割合（80 なら 8 掛け、つまり 20% 引き）で、端数は四捨五入する
// 割引額は 0 以上 amount 以下に収める
func DiscountOff(amount int64, kind DiscountKind, value int64) int64 {
	var off int64
	switch kind {
	case DiscountFixed:
		off = value
	case DiscountPercentage:
		if value < 0 || value > 100 {
			return 0
		}
		off = decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(100 - value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	}
	if off < 0 {
		return 0
	}
	if off > amount {
		return amount
	}
	return off
}

// TicketType は券種（一般・学生・シニアなど）を表す
type TicketType struct {
	ID            int64
	Name          string
	Description   string
	Enabled       bool
	DiscountKind  DiscountKind
	DiscountValue int64
}

// Apply は券種の割引を基本料金に適用した単価を返す
func (t *TicketType) Apply(price int64) int64 {
	return price - DiscountOff(price, t.DiscountKind, t.DiscountValue)
}

// PriceRule は (劇場タイプ, 券種) ごとの料金ルールを表す
// ValidUntil が nil の場合は終了日なし
type PriceRule struct {
	ID            int64
	TheaterTypeID int64
	TicketTypeID  int64
	Price         int64
	ValidFrom     time.Time
	ValidUntil    *time.Time
	Description   string
}

// Covers は asOf が有効期間 [ValidFrom, ValidUntil] に含まれるかを返す
func (r *PriceRule) Covers(asOf time.Time) bool {
	if asOf.Before(r.ValidFrom) {
		return false
	}
	return r.ValidUntil == nil || !asOf.After(*r.ValidUntil)
}

// window は有効期間の長さを返す（終了日なしは最大）
func (r *PriceRule) window() time.Duration {
	if r.ValidUntil == nil {
		return time.Duration(1<<63 - 1)
	}
	return r.ValidUntil.Sub(r.ValidFrom)
}

// SelectRule は asOf に有効なルールを1つ選ぶ
// 複数のルールが重なる場合は、有効期間が最も短いもの、次に開始日が最も新しいもの、
// 次にIDが最も大きいものを採用する
func SelectRule(rules []*PriceRule, asOf time.Time) (*PriceRule, error) {
	var best *PriceRule
	for _, r := range rules {
		if !r.Covers(asOf) {
			continue
		}
		if best == nil || preferred(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNoApplicablePriceRule
	}
	return best, nil
}

func preferred(a, b *PriceRule) bool {
	if wa, wb := a.window(), b.window(); wa != wb {
		return wa < wb
	}
	if !a.ValidFrom.Equal(b.ValidFrom) {
		return a.ValidFrom.After(b.ValidFrom)
	}
	return a.ID > b.ID
}
