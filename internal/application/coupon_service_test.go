package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/catalog"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/clock"
)

type couponDeps struct {
	txManager  *MockTxManager
	tx         *MockTx
	couponRepo *MockCouponRepository
	catalog    *MockCatalog
	service    *CouponService
}

func setupCouponService() *couponDeps {
	d := &couponDeps{
		txManager:  new(MockTxManager),
		tx:         new(MockTx),
		couponRepo: new(MockCouponRepository),
		catalog:    new(MockCatalog),
	}
	d.service = NewCouponService(d.txManager, d.couponRepo, d.catalog, clock.NewFixed(testNow))
	return d
}

func fixedCoupon(id int64, amount int64) *coupon.Coupon {
	return &coupon.Coupon{
		ID:             id,
		Name:           "300円引き",
		DiscountKind:   pricing.DiscountFixed,
		DiscountAmount: amount,
		Status:         coupon.StatusActive,
	}
}

func usedStatus() interface{} {
	return mock.MatchedBy(func(s *coupon.ClaimStatus) bool { return s != nil && *s == coupon.ClaimUsed })
}

func TestCouponService_ValidateForOrder(t *testing.T) {
	ctx := context.Background()
	session := &catalog.Session{ID: 1, MovieID: 100, StartTime: testNow.Add(24 * time.Hour)}
	otherMovie := int64(999)
	minLevel := 3

	tests := []struct {
		name         string
		holding      *coupon.Holding
		memberLevel  int
		usedCount    int
		subtotal     int64
		wantDiscount int64
		wantErr      bool
	}{
		{
			name:         "利用可能なら割引額を返す",
			holding:      &coupon.Holding{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: fixedCoupon(50, 300)},
			memberLevel:  1,
			subtotal:     3600,
			wantDiscount: 300,
		},
		{
			name:         "割引額は小計を超えない",
			holding:      &coupon.Holding{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: fixedCoupon(50, 5000)},
			memberLevel:  1,
			subtotal:     1800,
			wantDiscount: 1800,
		},
		{
			name:        "使用済み",
			holding:     &coupon.Holding{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimUsed}, Coupon: fixedCoupon(50, 300)},
			memberLevel: 1,
			subtotal:    3600,
			wantErr:     true,
		},
		{
			name: "対象外の映画",
			holding: func() *coupon.Holding {
				c := fixedCoupon(50, 300)
				c.Eligibility.MovieID = &otherMovie
				return &coupon.Holding{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: c}
			}(),
			memberLevel: 1,
			subtotal:    3600,
			wantErr:     true,
		},
		{
			name: "会員レベル不足",
			holding: func() *coupon.Holding {
				c := fixedCoupon(50, 300)
				c.Eligibility.MinMemberLevel = &minLevel
				return &coupon.Holding{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: c}
			}(),
			memberLevel: 2,
			subtotal:    3600,
			wantErr:     true,
		},
		{
			name: "最低利用金額未満",
			holding: func() *coupon.Holding {
				c := fixedCoupon(50, 300)
				c.MinimumSpend = 5000
				return &coupon.Holding{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: c}
			}(),
			memberLevel: 1,
			subtotal:    3600,
			wantErr:     true,
		},
		{
			name: "利用回数の上限",
			holding: func() *coupon.Holding {
				c := fixedCoupon(50, 300)
				c.RedeemableTimes = 1
				return &coupon.Holding{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: c}
			}(),
			memberLevel: 1,
			usedCount:   1,
			subtotal:    3600,
			wantErr:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupCouponService()
			d.couponRepo.On("GetHolding", ctx, int64(5)).Return(tt.holding, nil)
			d.catalog.On("GetMemberLevel", ctx, int64(1)).Return(tt.memberLevel, nil)
			d.couponRepo.On("CountClaims", ctx, nil, int64(1), int64(50), usedStatus()).Return(tt.usedCount, nil)

			got, err := d.service.ValidateForOrder(ctx, 1, 5, session, tt.subtotal)

			if tt.wantErr {
				assert.ErrorIs(t, err, coupon.ErrCouponNotApplicable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDiscount, got)
		})
	}

	t.Run("他の会員のクーポン", func(t *testing.T) {
		d := setupCouponService()
		d.couponRepo.On("GetHolding", ctx, int64(5)).Return(&coupon.Holding{
			Claim:  &coupon.MemberCoupon{ID: 5, MemberID: 2, Status: coupon.ClaimUnused},
			Coupon: fixedCoupon(50, 300),
		}, nil)

		_, err := d.service.ValidateForOrder(ctx, 1, 5, session, 3600)

		assert.ErrorIs(t, err, coupon.ErrCouponNotApplicable)
	})

	t.Run("取得クーポンが存在しない", func(t *testing.T) {
		d := setupCouponService()
		d.couponRepo.On("GetHolding", ctx, int64(5)).Return(nil, coupon.ErrMemberCouponNotFound)

		_, err := d.service.ValidateForOrder(ctx, 1, 5, session, 3600)

		assert.ErrorIs(t, err, coupon.ErrCouponNotApplicable)
	})
}

func TestCouponService_FindApplicable(t *testing.T) {
	ctx := context.Background()
	d := setupCouponService()
	d.catalog.On("GetSession", ctx, int64(1)).Return(&catalog.Session{ID: 1, MovieID: 100}, nil)
	d.catalog.On("GetMemberLevel", ctx, int64(1)).Return(1, nil)

	limited := fixedCoupon(60, 500)
	// 2件取得した後に利用回数の上限が1へ下げられた
	limited.RedeemableTimes = 1
	inactive := fixedCoupon(70, 500)
	inactive.Status = coupon.StatusInactive
	d.couponRepo.On("ListHoldingsByMember", ctx, int64(1)).Return([]*coupon.Holding{
		{Claim: &coupon.MemberCoupon{ID: 1, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: fixedCoupon(50, 300)},
		{Claim: &coupon.MemberCoupon{ID: 2, MemberID: 1, Status: coupon.ClaimUsed}, Coupon: limited},
		{Claim: &coupon.MemberCoupon{ID: 3, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: limited},
		{Claim: &coupon.MemberCoupon{ID: 4, MemberID: 1, Status: coupon.ClaimUnused}, Coupon: inactive},
		{Claim: &coupon.MemberCoupon{ID: 5, MemberID: 1, Status: coupon.ClaimExpired}, Coupon: fixedCoupon(80, 300)},
	}, nil)

	got, err := d.service.FindApplicable(ctx, 1, 1, 3600)

	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := make(map[int64]coupon.Applicability)
	for _, a := range got {
		byID[a.MemberCouponID] = a
	}
	assert.True(t, byID[1].IsUsable)
	assert.Equal(t, int64(300), byID[1].DiscountAmount)
	assert.False(t, byID[3].IsUsable)
	assert.Equal(t, coupon.ReasonExhausted, byID[3].Reason)
	assert.Zero(t, byID[3].DiscountAmount)
	assert.False(t, byID[5].IsUsable)
	assert.Equal(t, coupon.ReasonExpired, byID[5].Reason)
	assert.NotContains(t, byID, int64(2), "使用済みは履歴なので含めない")
	assert.NotContains(t, byID, int64(4), "公開停止中は含めない")
}

func TestCouponService_Claim(t *testing.T) {
	ctx := context.Background()

	t.Run("取得成功", func(t *testing.T) {
		d := setupCouponService()
		c := fixedCoupon(50, 300)
		c.RedeemableTimes = 2
		d.couponRepo.On("GetCoupon", ctx, int64(50)).Return(c, nil)
		d.txManager.On("Begin", ctx).Return(d.tx, nil)
		d.tx.On("Rollback").Return(nil)
		d.tx.On("Commit").Return(nil)
		d.couponRepo.On("IncrementClaimed", ctx, d.tx, int64(50)).Return(true, nil)
		d.couponRepo.On("CountClaims", ctx, d.tx, int64(1), int64(50), (*coupon.ClaimStatus)(nil)).Return(1, nil)
		d.couponRepo.On("CreateMemberCoupon", ctx, d.tx, mock.AnythingOfType("*coupon.MemberCoupon")).
			Run(func(args mock.Arguments) {
				args.Get(2).(*coupon.MemberCoupon).ID = 99
			}).Return(nil)

		mc, err := d.service.Claim(ctx, 1, 50)

		require.NoError(t, err)
		assert.Equal(t, int64(99), mc.ID)
		assert.Equal(t, coupon.ClaimUnused, mc.Status)
		assert.Equal(t, testNow, mc.AcquisitionTime)
		d.tx.AssertCalled(t, "Commit")
	})

	t.Run("発行上限に達している", func(t *testing.T) {
		d := setupCouponService()
		d.couponRepo.On("GetCoupon", ctx, int64(50)).Return(fixedCoupon(50, 300), nil)
		d.txManager.On("Begin", ctx).Return(d.tx, nil)
		d.tx.On("Rollback").Return(nil)
		d.couponRepo.On("IncrementClaimed", ctx, d.tx, int64(50)).Return(false, nil)

		_, err := d.service.Claim(ctx, 1, 50)

		assert.ErrorIs(t, err, coupon.ErrQuotaExceeded)
		d.tx.AssertNotCalled(t, "Commit")
		d.couponRepo.AssertNotCalled(t, "CreateMemberCoupon", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("会員ごとの上限に達している", func(t *testing.T) {
		d := setupCouponService()
		c := fixedCoupon(50, 300)
		c.RedeemableTimes = 1
		d.couponRepo.On("GetCoupon", ctx, int64(50)).Return(c, nil)
		d.txManager.On("Begin", ctx).Return(d.tx, nil)
		d.tx.On("Rollback").Return(nil)
		d.couponRepo.On("IncrementClaimed", ctx, d.tx, int64(50)).Return(true, nil)
		d.couponRepo.On("CountClaims", ctx, d.tx, int64(1), int64(50), (*coupon.ClaimStatus)(nil)).Return(1, nil)

		_, err := d.service.Claim(ctx, 1, 50)

		assert.ErrorIs(t, err, coupon.ErrClaimLimitReached)
		d.tx.AssertNotCalled(t, "Commit")
	})

	t.Run("期限切れのクーポンはトランザクションを開始しない", func(t *testing.T) {
		d := setupCouponService()
		c := fixedCoupon(50, 300)
		expired := testNow.Add(-time.Hour)
		c.ExpiresAt = &expired
		d.couponRepo.On("GetCoupon", ctx, int64(50)).Return(c, nil)

		_, err := d.service.Claim(ctx, 1, 50)

		assert.ErrorIs(t, err, coupon.ErrCouponExpired)
		d.txManager.AssertNotCalled(t, "Begin", mock.Anything)
	})
}

func TestCouponService_MarkUsed(t *testing.T) {
	ctx := context.Background()

	t.Run("未使用なら使用済みにする", func(t *testing.T) {
		d := setupCouponService()
		d.couponRepo.On("UpdateClaimStatus", ctx, d.tx, int64(5), coupon.ClaimUnused, coupon.ClaimUsed, mock.AnythingOfType("*time.Time")).
			Return(nil)

		assert.NoError(t, d.service.MarkUsed(ctx, d.tx, 5, testNow))
	})

	t.Run("既に使用済みなら競合", func(t *testing.T) {
		d := setupCouponService()
		d.couponRepo.On("UpdateClaimStatus", ctx, d.tx, int64(5), coupon.ClaimUnused, coupon.ClaimUsed, mock.Anything).
			Return(coupon.ErrInvalidStateTransition)

		err := d.service.MarkUsed(ctx, d.tx, 5, testNow)

		assert.ErrorIs(t, err, transaction.ErrConcurrencyConflict)
	})
}
