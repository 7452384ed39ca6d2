package coupon

import "errors"

// Coupon ドメインのエラー定義
var (
	ErrCouponNotFound         = errors.New("クーポンが見つかりません")
	ErrMemberCouponNotFound   = errors.New("取得済みクーポンが見つかりません")
	ErrCouponNotApplicable    = errors.New("このクーポンは利用できません")
	ErrCouponInactive         = errors.New("このクーポンは現在配布していません")
	ErrCouponExpired          = errors.New("クーポンの有効期限が切れています")
	ErrQuotaExceeded          = errors.New("クーポンの配布上限に達しました")
	ErrClaimLimitReached      = errors.New("このクーポンの取得上限に達しています")
	ErrInvalidStateTransition = errors.New("クーポンの状態を変更できません")
)
