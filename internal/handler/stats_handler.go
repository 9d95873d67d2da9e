package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/timecard/internal/stats"
)

// StatsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	GetSessionSummary(ctx context.Context, userID, startDate, endDate string) (stats.Summary, error)
	GetTodayStats(ctx context.Context, userID string) (stats.DayStats, error)
	GetLastDayStats(ctx context.Context, userID string) (stats.DayStats, error)
	GetAllUsersTodayStats(ctx context.Context) ([]stats.UserStats, error)
	GetAllUsersLastDayStats(ctx context.Context) ([]stats.UserStats, error)
	GetAllUsersTimeFrameStats(ctx context.Context, startDate, endDate string) ([]stats.UserStats, error)
}

// StatsHandler は集計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
	zones   ZoneResolver
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface, zones ZoneResolver) *StatsHandler {
	return &StatsHandler{
		service: service,
		zones:   zones,
	}
}

// Summary は期間内のセッション集計を返す。境界は省略可能。
// GET /api/stats/summary?startDate=&endDate=
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	sum, err := h.service.GetSessionSummary(r.Context(), userID, q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

// Today は今日の集計を返す。
// GET /api/stats/today
func (h *StatsHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.day(w, r, h.service.GetTodayStats)
}

// LastDay は前日の集計を返す。
// GET /api/stats/last-day
func (h *StatsHandler) LastDay(w http.ResponseWriter, r *http.Request) {
	h.day(w, r, h.service.GetLastDayStats)
}

// UsersToday は今日の全ユーザー集計を返す。
// GET /api/stats/users/today
func (h *StatsHandler) UsersToday(w http.ResponseWriter, r *http.Request) {
	h.users(w, r, h.service.GetAllUsersTodayStats)
}

// UsersLastDay は前日の全ユーザー集計を返す。
// GET /api/stats/users/last-day
func (h *StatsHandler) UsersLastDay(w http.ResponseWriter, r *http.Request) {
	h.users(w, r, h.service.GetAllUsersLastDayStats)
}

// UsersTimeFrame は日付範囲の全ユーザー集計を返す。
// GET /api/stats/users/timeframe?startDate=&endDate=
func (h *StatsHandler) UsersTimeFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.users(w, r, func(ctx context.Context) ([]stats.UserStats, error) {
		return h.service.GetAllUsersTimeFrameStats(ctx, q.Get("startDate"), q.Get("endDate"))
	})
}

func (h *StatsHandler) day(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) (stats.DayStats, error)) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	day, err := fetch(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	view, ok := h.viewer(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view.dayStats(day))
}

func (h *StatsHandler) users(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]stats.UserStats, error)) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	results, err := fetch(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	view, ok := h.viewer(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": view.userStats(results)})
}

func (h *StatsHandler) viewer(w http.ResponseWriter, r *http.Request, userID string) (renderer, bool) {
	zone, err := h.zones.DisplayZone(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return renderer{}, false
	}
	return renderer{zone: zone}, true
}
