package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/stats"
	"github.com/hitoshi/timecard/internal/timezone"
)

// ReportHandler はトークン認証の読み取り専用レポートAPI。
// エラーは {"error": "..."} 形式で返し、時刻はUTCで返す。
type ReportHandler struct {
	service StatsServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service StatsServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// LastDay は指定ユーザーの前日集計を返す。
// GET /api/reports/last-day?userId=
func (h *ReportHandler) LastDay(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		middleware.WriteSimpleError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if _, err := uuid.Parse(userID); err != nil {
		middleware.WriteSimpleError(w, http.StatusBadRequest, "userId must be a UUID")
		return
	}

	day, err := h.service.GetLastDayStats(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderer{}.dayStats(day))
}

// Today は今日の全ユーザー集計を返す。
// GET /api/reports/today
func (h *ReportHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.users(w, r, h.service.GetAllUsersTodayStats)
}

// LastDayAll は前日の全ユーザー集計を返す。
// GET /api/reports/last-day-all
func (h *ReportHandler) LastDayAll(w http.ResponseWriter, r *http.Request) {
	h.users(w, r, h.service.GetAllUsersLastDayStats)
}

// TimeFrame は日付範囲の全ユーザー集計を返す。
// GET /api/reports/timeframe?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD
func (h *ReportHandler) TimeFrame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startDate, endDate := q.Get("startDate"), q.Get("endDate")

	if startDate == "" || endDate == "" {
		middleware.WriteSimpleError(w, http.StatusBadRequest, "startDate and endDate are required")
		return
	}
	if err := timezone.ValidateDateRange(startDate, endDate); err != nil {
		if errors.Is(err, timezone.ErrReversedRange) {
			middleware.WriteSimpleError(w, http.StatusBadRequest, "startDate must not be after endDate")
			return
		}
		middleware.WriteSimpleError(w, http.StatusBadRequest, "dates must be in YYYY-MM-DD format")
		return
	}

	h.users(w, r, func(ctx context.Context) ([]stats.UserStats, error) {
		return h.service.GetAllUsersTimeFrameStats(ctx, startDate, endDate)
	})
}

func (h *ReportHandler) users(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]stats.UserStats, error)) {
	results, err := fetch(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": renderer{}.userStats(results)})
}

// fail はValidationエラーを400、それ以外を詳細をログに残して500に変換する。
func (h *ReportHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Category == model.CategoryValidation {
		middleware.WriteSimpleError(w, http.StatusBadRequest, apiErr.Message)
		return
	}

	slog.Error("report request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteSimpleError(w, http.StatusInternalServerError, "internal server error")
}
