// Package stats は勤務セッションの集計（件数・合計/平均所要時間・完了率）を提供する。
//
// 集計関数は取得済みのセッション集合に対する純粋な計算で、
// Serviceは日付条件に応じたセッションの取得と集計関数の呼び出しを行う。
package stats

import (
	"sort"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// Summary はセッション集合の集計値。所要時間の単位は分。
type Summary struct {
	TotalSessions     int
	CompletedSessions int
	OngoingSessions   int
	TotalDuration     int
	AverageDuration   float64
	CompletionRate    float64
}

// SessionDetail はドリルダウン表示用のセッション情報。
type SessionDetail struct {
	ID              string
	Date            string
	Start           time.Time
	End             *time.Time
	DurationMinutes *int
	Description     *string
	Ongoing         bool
}

// DayStats はユーザー1人分の集計とセッション明細。
type DayStats struct {
	Summary
	HasOngoingSession bool
	Sessions          []SessionDetail
}

// UserStats はユーザー横断集計における1ユーザー分の結果。
type UserStats struct {
	UserID string
	Email  string
	Name   string
	DayStats
}

// Summarize はセッション集合を完了済みと進行中に分けて集計する。
// 完了済みが0件なら平均は0、集合が空なら完了率は0。
func Summarize(sessions []*model.Session) Summary {
	var sum Summary
	sum.TotalSessions = len(sessions)

	for _, s := range sessions {
		switch {
		case s.IsCompleted():
			sum.CompletedSessions++
			sum.TotalDuration += *s.DurationMinutes
		case s.IsOpen():
			sum.OngoingSessions++
		}
	}

	if sum.CompletedSessions > 0 {
		sum.AverageDuration = float64(sum.TotalDuration) / float64(sum.CompletedSessions)
	}
	if sum.TotalSessions > 0 {
		sum.CompletionRate = 100 * float64(sum.CompletedSessions) / float64(sum.TotalSessions)
	}
	return sum
}

// Details はセッション集合を明細に変換する。順序は入力のまま。
func Details(sessions []*model.Session) []SessionDetail {
	details := make([]SessionDetail, 0, len(sessions))
	for _, s := range sessions {
		details = append(details, SessionDetail{
			ID:              s.ID,
			Date:            s.Date,
			Start:           s.Start,
			End:             s.End,
			DurationMinutes: s.DurationMinutes,
			Description:     s.Description,
			Ongoing:         s.IsOpen(),
		})
	}
	return details
}

// ForDay はセッション集合から集計と明細をまとめて作成する。
func ForDay(sessions []*model.Session) DayStats {
	sum := Summarize(sessions)
	return DayStats{
		Summary:           sum,
		HasOngoingSession: sum.OngoingSessions > 0,
		Sessions:          Details(sessions),
	}
}

// ByUser はセッションをユーザーごとに集計する。
// セッションが0件のユーザーは結果に含めず、メールアドレス、ユーザーIDの順で並べる。
// usersに存在しないユーザーのセッションはメールアドレス空として扱う。
func ByUser(users []*model.User, sessions []*model.Session) []UserStats {
	grouped := make(map[string][]*model.Session)
	for _, s := range sessions {
		grouped[s.UserID] = append(grouped[s.UserID], s)
	}

	known := make(map[string]*model.User, len(users))
	for _, u := range users {
		known[u.ID] = u
	}

	results := make([]UserStats, 0, len(grouped))
	for userID, userSessions := range grouped {
		stats := UserStats{
			UserID:   userID,
			DayStats: ForDay(userSessions),
		}
		if u, ok := known[userID]; ok {
			stats.Email = u.Email
			stats.Name = u.Name
		}
		results = append(results, stats)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Email != results[j].Email {
			return results[i].Email < results[j].Email
		}
		return results[i].UserID < results[j].UserID
	})
	return results
}
