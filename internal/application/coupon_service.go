package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/catalog"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/metrics"
)

// CouponService はクーポンの取得と利用可否の判定を行う
type CouponService struct {
	txManager  transaction.Manager
	couponRepo coupon.Repository
	catalog    catalog.Reader
	clock      clock.Clock
}

func NewCouponService(txm transaction.Manager, cr coupon.Repository, cat catalog.Reader, clk clock.Clock) *CouponService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &CouponService{txManager: txm, couponRepo: cr, catalog: cat, clock: clk}
}

// FindApplicable は会員の取得クーポンそれぞれについて、この上映回・小計で使えるかを返す
// 使えないクーポンも理由付きで返す。使用済み・取消済みの取得は履歴なので含めない
func (s *CouponService) FindApplicable(ctx context.Context, memberID, sessionID, subtotal int64) ([]coupon.Applicability, error) {
	session, err := s.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	level, err := s.catalog.GetMemberLevel(ctx, memberID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.couponRepo.ListHoldingsByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	// 同じクーポンを既に何回使ったか
	used := make(map[int64]int)
	for _, h := range holdings {
		if h.Claim.Status == coupon.ClaimUsed {
			used[h.Coupon.ID]++
		}
	}

	now := s.clock.Now()
	result := make([]coupon.Applicability, 0, len(holdings))
	for _, h := range holdings {
		if !h.Coupon.IsActive() {
			continue
		}
		if h.Claim.Status != coupon.ClaimUnused && h.Claim.Status != coupon.ClaimExpired {
			continue
		}
		result = append(result, coupon.Evaluate(*h, coupon.UsageContext{
			Now:         now,
			MovieID:     session.MovieID,
			SessionID:   session.ID,
			MemberLevel: level,
			Subtotal:    subtotal,
			UsedCount:   used[h.Coupon.ID],
		}))
	}
	return result, nil
}

// ValidateForOrder は注文に取得クーポンを使えるか判定し、割引額を返す
// 使えない場合は理由付きの ErrCouponNotApplicable を返す
func (s *CouponService) ValidateForOrder(ctx context.Context, memberID, memberCouponID int64, session *catalog.Session, subtotal int64) (int64, error) {
	h, err := s.couponRepo.GetHolding(ctx, memberCouponID)
	if err != nil {
		if errors.Is(err, coupon.ErrMemberCouponNotFound) {
			return 0, fmt.Errorf("%w: %v", coupon.ErrCouponNotApplicable, err)
		}
		return 0, err
	}
	if h.Claim.MemberID != memberID {
		return 0, fmt.Errorf("%w: 他の会員のクーポンです", coupon.ErrCouponNotApplicable)
	}

	level, err := s.catalog.GetMemberLevel(ctx, memberID)
	if err != nil {
		return 0, err
	}
	usedStatus := coupon.ClaimUsed
	usedCount, err := s.couponRepo.CountClaims(ctx, nil, memberID, h.Coupon.ID, &usedStatus)
	if err != nil {
		return 0, err
	}

	a := coupon.Evaluate(*h, coupon.UsageContext{
		Now:         s.clock.Now(),
		MovieID:     session.MovieID,
		SessionID:   session.ID,
		MemberLevel: level,
		Subtotal:    subtotal,
		UsedCount:   usedCount,
	})
	if !a.IsUsable {
		return 0, fmt.Errorf("%w: %s", coupon.ErrCouponNotApplicable, a.Reason)
	}
	return a.DiscountAmount, nil
}

// Claim は会員にクーポンを配布する
// 発行上限は取得数カウンタの条件付き更新で守る。更新した行のロックにより同じクーポンの取得は直列化される
func (s *CouponService) Claim(ctx context.Context, memberID, couponID int64) (*coupon.MemberCoupon, error) {
	log := logger.FromContext(ctx)

	c, err := s.couponRepo.GetCoupon(ctx, couponID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := c.CheckClaimable(now); err != nil {
		recordClaim("rejected")
		return nil, err
	}

	mc := &coupon.MemberCoupon{
		MemberID:        memberID,
		CouponID:        couponID,
		Status:          coupon.ClaimUnused,
		AcquisitionTime: now,
	}
	err = runInTx(ctx, s.txManager, func(tx transaction.Tx) error {
		ok, err := s.couponRepo.IncrementClaimed(ctx, tx, couponID)
		if err != nil {
			return err
		}
		if !ok {
			return coupon.ErrQuotaExceeded
		}
		if c.RedeemableTimes > 0 {
			n, err := s.couponRepo.CountClaims(ctx, tx, memberID, couponID, nil)
			if err != nil {
				return err
			}
			if n >= c.RedeemableTimes {
				return coupon.ErrClaimLimitReached
			}
		}
		return s.couponRepo.CreateMemberCoupon(ctx, tx, mc)
	})
	if err != nil {
		switch {
		case errors.Is(err, coupon.ErrQuotaExceeded):
			recordClaim("quota_exceeded")
		case errors.Is(err, coupon.ErrClaimLimitReached):
			recordClaim("limit_reached")
		default:
			recordClaim("error")
		}
		return nil, err
	}

	recordClaim("success")
	log.Info("クーポンを取得しました",
		zap.Int64("member_id", memberID), zap.Int64("coupon_id", couponID), zap.Int64("member_coupon_id", mc.ID))
	return mc, nil
}

// MarkUsed は取得クーポンを使用済みにする（呼び出し元のトランザクションに参加する）
// 既に使用済みなら、同じクーポンを使った別の支払いに負けたとみなす
func (s *CouponService) MarkUsed(ctx context.Context, tx transaction.Tx, memberCouponID int64, now time.Time) error {
	err := s.couponRepo.UpdateClaimStatus(ctx, tx, memberCouponID, coupon.ClaimUnused, coupon.ClaimUsed, &now)
	if errors.Is(err, coupon.ErrInvalidStateTransition) {
		return fmt.Errorf("%w: クーポンは既に使用されています", transaction.ErrConcurrencyConflict)
	}
	return err
}

func recordClaim(status string) {
	if m := metrics.Get(); m != nil {
		m.CouponClaimsTotal.WithLabelValues(status).Inc()
	}
}
