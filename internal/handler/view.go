package handler

import (
	"time"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/stats"
	"github.com/hitoshi/timecard/internal/timezone"
)

// sessionResponse は勤務セッションのAPIレスポンス。
// 時刻は閲覧者の表示タイムゾーンのオフセット付きRFC 3339で返し、dateは正規の日付ラベルのまま返す。
type sessionResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"userId"`
	Date            string  `json:"date"`
	Start           string  `json:"start"`
	End             *string `json:"end"`
	DurationMinutes *int    `json:"durationMinutes"`
	Description     *string `json:"description"`
	Ongoing         bool    `json:"ongoing"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

type summaryResponse struct {
	TotalSessions     int     `json:"totalSessions"`
	CompletedSessions int     `json:"completedSessions"`
	OngoingSessions   int     `json:"ongoingSessions"`
	TotalDuration     int     `json:"totalDuration"`
	AverageDuration   float64 `json:"averageDuration"`
	CompletionRate    float64 `json:"completionRate"`
}

type sessionDetailResponse struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Start           string  `json:"start"`
	End             *string `json:"end"`
	DurationMinutes *int    `json:"durationMinutes"`
	Description     *string `json:"description"`
	Ongoing         bool    `json:"ongoing"`
}

type dayStatsResponse struct {
	summaryResponse
	HasOngoingSession bool                    `json:"hasOngoingSession"`
	Sessions          []sessionDetailResponse `json:"sessions"`
}

type userStatsResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	dayStatsResponse
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Timezone  string `json:"timezone"`
	AvatarURL string `json:"avatarUrl"`
}

// renderer は閲覧者の表示タイムゾーンで時刻を整形する。
type renderer struct {
	zone string
}

func (v renderer) time(t time.Time) string {
	return timezone.ToDisplay(t, v.zone).Format(time.RFC3339)
}

func (v renderer) optionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := v.time(*t)
	return &s
}

func (v renderer) session(s *model.Session) sessionResponse {
	return sessionResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		Date:            s.Date,
		Start:           v.time(s.Start),
		End:             v.optionalTime(s.End),
		DurationMinutes: s.DurationMinutes,
		Description:     s.Description,
		Ongoing:         s.IsOpen(),
		CreatedAt:       v.time(s.CreatedAt),
		UpdatedAt:       v.time(s.UpdatedAt),
	}
}

func (v renderer) sessions(list []*model.Session) []sessionResponse {
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, v.session(s))
	}
	return out
}

func toSummaryResponse(s stats.Summary) summaryResponse {
	return summaryResponse{
		TotalSessions:     s.TotalSessions,
		CompletedSessions: s.CompletedSessions,
		OngoingSessions:   s.OngoingSessions,
		TotalDuration:     s.TotalDuration,
		AverageDuration:   s.AverageDuration,
		CompletionRate:    s.CompletionRate,
	}
}

func (v renderer) dayStats(d stats.DayStats) dayStatsResponse {
	details := make([]sessionDetailResponse, 0, len(d.Sessions))
	for _, s := range d.Sessions {
		details = append(details, sessionDetailResponse{
			ID:              s.ID,
			Date:            s.Date,
			Start:           v.time(s.Start),
			End:             v.optionalTime(s.End),
			DurationMinutes: s.DurationMinutes,
			Description:     s.Description,
			Ongoing:         s.Ongoing,
		})
	}
	return dayStatsResponse{
		summaryResponse:   toSummaryResponse(d.Summary),
		HasOngoingSession: d.HasOngoingSession,
		Sessions:          details,
	}
}

func (v renderer) userStats(list []stats.UserStats) []userStatsResponse {
	out := make([]userStatsResponse, 0, len(list))
	for _, u := range list {
		out = append(out, userStatsResponse{
			UserID:           u.UserID,
			Email:            u.Email,
			Name:             u.Name,
			dayStatsResponse: v.dayStats(u.DayStats),
		})
	}
	return out
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Timezone:  u.Timezone,
		AvatarURL: u.AvatarURL,
	}
}
