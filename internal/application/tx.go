package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// runInTx は fn を1つのトランザクション内で実行する
// fn がエラーを返した場合はロールバックされ、途中の変更は残らない
func runInTx(ctx context.Context, txm transaction.Manager, fn func(tx transaction.Tx) error) error {
	tx, err := txm.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}
