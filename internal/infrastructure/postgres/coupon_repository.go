package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

const couponColumns = `c.id, c.event_id, c.serial_number, c.name, c.description, c.discount_kind,
	c.discount_amount, c.minimum_spend, c.status, c.expires_at, c.redeemable_times, c.quantity,
	c.claimed_count, c.eligible_movie_id, c.eligible_session_id, c.min_member_level, c.created_at`

type couponRow struct {
	ID                int64      `db:"id"`
	EventID           int64      `db:"event_id"`
	SerialNumber      string     `db:"serial_number"`
	Name              string     `db:"name"`
	Description       string     `db:"description"`
	DiscountKind      string     `db:"discount_kind"`
	DiscountAmount    int64      `db:"discount_amount"`
	MinimumSpend      int64      `db:"minimum_spend"`
	Status            string     `db:"status"`
	ExpiresAt         *time.Time `db:"expires_at"`
	RedeemableTimes   int        `db:"redeemable_times"`
	Quantity          int        `db:"quantity"`
	ClaimedCount      int        `db:"claimed_count"`
	EligibleMovieID   *int64     `db:"eligible_movie_id"`
	EligibleSessionID *int64     `db:"eligible_session_id"`
	MinMemberLevel    *int       `db:"min_member_level"`
	CreatedAt         time.Time  `db:"created_at"`
}

func (r *couponRow) toEntity() *coupon.Coupon {
	return &coupon.Coupon{
		ID: r.ID, EventID: r.EventID, SerialNumber: r.SerialNumber,
		Name: r.Name, Description: r.Description,
		DiscountKind: pricing.DiscountKind(r.DiscountKind), DiscountAmount: r.DiscountAmount,
		MinimumSpend: r.MinimumSpend, Status: coupon.Status(r.Status), ExpiresAt: r.ExpiresAt,
		RedeemableTimes: r.RedeemableTimes, Quantity: r.Quantity, ClaimedCount: r.ClaimedCount,
		Eligibility: coupon.Eligibility{
			MovieID:        r.EligibleMovieID,
			SessionID:      r.EligibleSessionID,
			MinMemberLevel: r.MinMemberLevel,
		},
		CreatedAt: r.CreatedAt,
	}
}

// holdingRow は member_coupons と coupons の結合結果
type holdingRow struct {
	couponRow
	ClaimID         int64      `db:"claim_id"`
	ClaimMemberID   int64      `db:"claim_member_id"`
	ClaimStatus     string     `db:"claim_status"`
	AcquisitionTime time.Time  `db:"acquisition_time"`
	UsageTime       *time.Time `db:"usage_time"`
}

func (r *holdingRow) toEntity() *coupon.Holding {
	return &coupon.Holding{
		Claim: &coupon.MemberCoupon{
			ID: r.ClaimID, MemberID: r.ClaimMemberID, CouponID: r.couponRow.ID,
			Status: coupon.ClaimStatus(r.ClaimStatus), AcquisitionTime: r.AcquisitionTime,
			UsageTime: r.UsageTime,
		},
		Coupon: r.couponRow.toEntity(),
	}
}

const holdingQuery = `
	SELECT mc.id AS claim_id, mc.member_id AS claim_member_id, mc.status AS claim_status,
	       mc.acquisition_time, mc.usage_time, ` + couponColumns + `
	FROM member_coupons mc
	JOIN coupons c ON c.id = mc.coupon_id`

type CouponRepository struct{ db *sqlx.DB }

var _ coupon.Repository = (*CouponRepository)(nil)

func NewCouponRepository(db *sqlx.DB) *CouponRepository { return &CouponRepository{db: db} }

func (r *CouponRepository) GetCoupon(ctx context.Context, id int64) (*coupon.Coupon, error) {
	var row couponRow
	query := `SELECT ` + couponColumns + ` FROM coupons c WHERE c.id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, wrapErr("クーポン取得に失敗", err)
	}
	return row.toEntity(), nil
}

func (r *CouponRepository) GetHolding(ctx context.Context, memberCouponID int64) (*coupon.Holding, error) {
	var row holdingRow
	if err := r.db.GetContext(ctx, &row, holdingQuery+` WHERE mc.id = $1`, memberCouponID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, coupon.ErrMemberCouponNotFound
		}
		return nil, wrapErr("取得クーポンの取得に失敗", err)
	}
	return row.toEntity(), nil
}

func (r *CouponRepository) ListHoldingsByMember(ctx context.Context, memberID int64) ([]*coupon.Holding, error) {
	var rows []holdingRow
	query := holdingQuery + ` WHERE mc.member_id = $1 ORDER BY mc.acquisition_time, mc.id`
	if err := r.db.SelectContext(ctx, &rows, query, memberID); err != nil {
		return nil, wrapErr("取得クーポン一覧の取得に失敗", err)
	}
	holdings := make([]*coupon.Holding, len(rows))
	for i := range rows {
		holdings[i] = rows[i].toEntity()
	}
	return holdings, nil
}

func (r *CouponRepository) CountClaims(ctx context.Context, tx transaction.Tx, memberID, couponID int64, status *coupon.ClaimStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM member_coupons WHERE member_id = $1 AND coupon_id = $2`
	args := []interface{}{memberID, couponID}
	if status != nil {
		query += ` AND status = $3`
		args = append(args, string(*status))
	}
	if err := conn(r.db, tx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, wrapErr("取得クーポン数の集計に失敗", err)
	}
	return count, nil
}

// IncrementClaimed は発行上限を超えない場合だけ取得数を増やす
// 更新した行はトランザクション終了までロックされ、同じクーポンの取得処理は直列化される
func (r *CouponRepository) IncrementClaimed(ctx context.Context, tx transaction.Tx, couponID int64) (bool, error) {
	query := `
		UPDATE coupons SET claimed_count = claimed_count + 1
		WHERE id = $1 AND (quantity = 0 OR claimed_count < quantity)`
	result, err := conn(r.db, tx).ExecContext(ctx, query, couponID)
	if err != nil {
		return false, wrapErr("クーポン取得数の更新に失敗", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr("クーポン取得数の更新に失敗", err)
	}
	return n == 1, nil
}

func (r *CouponRepository) CreateMemberCoupon(ctx context.Context, tx transaction.Tx, mc *coupon.MemberCoupon) error {
	query := `
		INSERT INTO member_coupons (member_id, coupon_id, status, acquisition_time, usage_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := conn(r.db, tx).QueryRowxContext(ctx, query,
		mc.MemberID, mc.CouponID, string(mc.Status), mc.AcquisitionTime, mc.UsageTime,
	).Scan(&mc.ID); err != nil {
		return wrapErr("取得クーポンの作成に失敗", err)
	}
	return nil
}

func (r *CouponRepository) UpdateClaimStatus(ctx context.Context, tx transaction.Tx, memberCouponID int64, from, to coupon.ClaimStatus, usageTime *time.Time) error {
	query := `UPDATE member_coupons SET status = $1, usage_time = $2 WHERE id = $3 AND status = $4`
	result, err := conn(r.db, tx).ExecContext(ctx, query, string(to), usageTime, memberCouponID, string(from))
	if err != nil {
		return wrapErr("取得クーポンの状態更新に失敗", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrapErr("取得クーポンの状態更新に失敗", err)
	}
	if n == 0 {
		return coupon.ErrInvalidStateTransition
	}
	return nil
}
