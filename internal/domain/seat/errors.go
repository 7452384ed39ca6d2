package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatUnavailable        = errors.New("選択された座席は予約できません")
	ErrInvalidStateTransition = errors.New("座席の状態を変更できません")
	ErrSeatIDsRequired        = errors.New("座席IDは必須です")
	ErrDuplicateSeatIDs       = errors.New("座席IDが重複しています")
	ErrInvalidHoldDuration    = errors.New("仮押さえ時間は正の値である必要があります")
)
