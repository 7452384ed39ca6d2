package clock

import "time"

// Clock は現在時刻の取得を抽象化する（テストで時刻を固定するため）
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は time.Now に基づく Clock を返す
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

type fixedClock struct {
	now time.Time
}

// NewFixed は常に同じ時刻を返す Clock を返す
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// Func は関数を Clock として扱うアダプタ
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}
