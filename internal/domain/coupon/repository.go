package coupon

import (
	"context"
	"time"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// Repository はクーポンリポジトリのインターフェース
type Repository interface {
	// GetCoupon はIDからクーポンを取得する
	GetCoupon(ctx context.Context, id int64) (*Coupon, error)

	// GetHolding は取得クーポンIDから取得情報とクーポン定義を取得する
	GetHolding(ctx context.Context, memberCouponID int64) (*Holding, error)

	// ListHoldingsByMember は会員の取得クーポンをすべて取得する
	ListHoldingsByMember(ctx context.Context, memberID int64) ([]*Holding, error)

	// CountClaims は会員が取得した同一クーポンの件数を返す（status が nil なら全状態）
	CountClaims(ctx context.Context, tx transaction.Tx, memberID, couponID int64, status *ClaimStatus) (int, error)

	// IncrementClaimed は発行上限を超えない場合に限り取得数を1増やす（トランザクション必須）
	// 上限に達していれば false を返す
	IncrementClaimed(ctx context.Context, tx transaction.Tx, couponID int64) (bool, error)

	// CreateMemberCoupon は取得クーポンを作成する（トランザクション必須）
	CreateMemberCoupon(ctx context.Context, tx transaction.Tx, mc *MemberCoupon) error

	// UpdateClaimStatus は取得クーポンが from 状態のままの場合に限り to に更新する（トランザクション必須）
	// 条件に合わない場合は ErrInvalidStateTransition を返す
	UpdateClaimStatus(ctx context.Context, tx transaction.Tx, memberCouponID int64, from, to ClaimStatus, usageTime *time.Time) error
}
