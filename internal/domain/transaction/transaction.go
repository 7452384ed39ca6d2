package transaction

import (
	"context"
	"errors"
)

// ErrConcurrencyConflict は並行更新の競合に負けたことを表す
// （座席やクーポン枠の取り合い、シリアライズ失敗など）
var ErrConcurrencyConflict = errors.New("他の処理と競合しました。再度お試しください")

// Tx はトランザクションを表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}
