package order

import "errors"

// Order ドメインのエラー定義
var (
	ErrOrderNotFound          = errors.New("注文が見つかりません")
	ErrInvalidStateTransition = errors.New("現在の注文状態ではこの操作はできません")
	ErrNotOrderOwner          = errors.New("この注文を操作する権限がありません")
	ErrInvalidPaymentMethod   = errors.New("支払い方法が不正です")
	ErrSessionClosed          = errors.New("この上映回は予約を受け付けていません")
	ErrRefundWindowClosed     = errors.New("払い戻しの受付期限を過ぎています")
	ErrTicketCountMismatch    = errors.New("座席数と券種数が一致しません")
	ErrSessionIDRequired      = errors.New("上映回IDは必須です")
	ErrLinesRequired          = errors.New("注文明細は1件以上必要です")
	ErrInvalidUnitPrice       = errors.New("単価は0以上である必要があります")
	ErrPaymentTypeRequired    = errors.New("支払い種別は必須です")
)
