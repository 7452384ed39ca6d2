package pricing

import "errors"

// Pricing ドメインのエラー定義
var (
	ErrNoApplicablePriceRule = errors.New("適用できる料金ルールがありません")
	ErrTicketTypeNotFound    = errors.New("券種が見つかりません")
	ErrTicketTypeDisabled    = errors.New("この券種は現在販売していません")
)
