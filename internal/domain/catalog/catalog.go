// Package catalog は映画・劇場カタログと会員情報のうち、予約処理が参照する部分だけを表す
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("上映回が見つかりません")

// DefaultMemberLevel は会員レベルの記録がない場合の値
const DefaultMemberLevel = 1

// Session は上映回（映画・劇場・上映時刻）を表す
type Session struct {
	ID            int64
	MovieID       int64
	TheaterID     int64
	TheaterTypeID int64
	StartTime     time.Time
	EndTime       time.Time
}

// HasStarted は now 時点で上映が始まっているかを返す
func (s *Session) HasStarted(now time.Time) bool {
	return !now.Before(s.StartTime)
}

// Reader はカタログの参照インターフェース
type Reader interface {
	// GetSession は上映回を取得する
	GetSession(ctx context.Context, id int64) (*Session, error)

	// GetMemberLevel は会員の現在のレベルを返す（記録がなければ DefaultMemberLevel）
	GetMemberLevel(ctx context.Context, memberID int64) (int, error)
}
