// Package clock は現在時刻の取得を抽象化する。
// セッション操作はすべてこのインターフェース経由で「今」を読むため、
// テストでは固定時刻を注入できる。
package clock

import "time"

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

// System は実時刻を返すClock実装。
type System struct{}

// Now は time.Now() を返す。
func (System) Now() time.Time {
	return time.Now()
}

// Func は関数をClockとして扱うアダプタ。
type Func func() time.Time

// Now はラップした関数を呼び出す。
func (f Func) Now() time.Time {
	return f()
}

// Fixed は常に同じ時刻を返すClockを生成する。
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}
