package model

import "time"

// Session は1件の勤務セッション（打刻記録）を表す。
//
// Start/Endは正規タイムゾーン（UTC+4）で保持する。
// Endがnilの間はセッションが進行中（open）であり、
// DurationMinutesはEndが存在する場合のみ設定される。
// DateはStartの正規タイムゾーンでの暦日（YYYY-MM-DD）。
type Session struct {
	ID              string
	UserID          string
	Date            string
	Start           time.Time
	End             *time.Time
	DurationMinutes *int
	Description     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen はセッションが進行中かどうかを返す。
func (s *Session) IsOpen() bool {
	return s.End == nil
}

// IsCompleted はセッションが終了済みで所要時間が確定しているかを返す。
func (s *Session) IsCompleted() bool {
	return s.End != nil && s.DurationMinutes != nil
}

// SessionPatch はセッションの部分更新内容を表す。
// 各フィールドは「未指定」「null指定」「値指定」を区別する。
type SessionPatch struct {
	Description Optional[string]
	Start       Optional[time.Time]
	End         Optional[time.Time]
}

// IsEmpty は更新内容が一つも指定されていないかを返す。
func (p SessionPatch) IsEmpty() bool {
	return !p.Description.Set && !p.Start.Set && !p.End.Set
}
