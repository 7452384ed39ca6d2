package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

// PostgreSQL のエラーコード
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// wrapErr は操作名を付けてエラーをラップする
// シリアライズ失敗・デッドロックは ErrConcurrencyConflict として扱う
func wrapErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%s: %w", op, transaction.ErrConcurrencyConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// uniqueViolation は一意制約違反であればその制約名を返す
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
