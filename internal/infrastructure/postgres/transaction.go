package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// TxWrapper は sqlx.Tx を transaction.Tx インターフェースでラップする
type TxWrapper struct {
	*sqlx.Tx
}

// Commit はトランザクションをコミットする
// シリアライズ失敗などでコミットできなかった場合は ErrConcurrencyConflict に変換する
func (t *TxWrapper) Commit() error {
	if err := t.Tx.Commit(); err != nil {
		return wrapErr("コミットに失敗", err)
	}
	return nil
}

// Rollback はトランザクションをロールバックする
func (t *TxWrapper) Rollback() error {
	return t.Tx.Rollback()
}

// TxManager は sqlx.DB を使用したトランザクションマネージャー
type TxManager struct {
	db *sqlx.DB
}

var _ transaction.Manager = (*TxManager)(nil)

// NewTxManager は新しい TxManager を作成する
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin は新しいトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapErr("トランザクション開始に失敗", err)
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
// リポジトリ実装で使用する
func UnwrapTx(tx transaction.Tx) *sqlx.Tx {
	if wrapper, ok := tx.(*TxWrapper); ok {
		return wrapper.Tx
	}
	return nil
}

// dbtx は sqlx.DB と sqlx.Tx の共通部分
type dbtx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// conn はトランザクションがあればそれを、なければ DB を返す
func conn(db *sqlx.DB, tx transaction.Tx) dbtx {
	if t := UnwrapTx(tx); t != nil {
		return t
	}
	return db
}
