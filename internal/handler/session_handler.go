package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/timezone"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	StartSession(ctx context.Context, userID string, description *string) (*model.Session, error)
	EndOwnSession(ctx context.Context, actorID, sessionID string) (*model.Session, error)
	CreateManualSession(ctx context.Context, userID string, start, end time.Time, description *string) (*model.Session, error)
	UpdateSession(ctx context.Context, sessionID, actorID string, patch model.SessionPatch) (*model.Session, error)
	DeleteSession(ctx context.Context, sessionID, actorID string) error
	GetCurrentSession(ctx context.Context, userID string) (*model.Session, error)
	GetSessionsByDate(ctx context.Context, userID, date string) ([]*model.Session, error)
	GetSessionsByDateRange(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error)
}

// ZoneResolver は閲覧者の表示タイムゾーンを解決する。
type ZoneResolver interface {
	DisplayZone(ctx context.Context, userID string) (string, error)
}

// SessionHandler は勤務セッションのHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
	zones   ZoneResolver
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface, zones ZoneResolver) *SessionHandler {
	return &SessionHandler{
		service: service,
		zones:   zones,
	}
}

type startSessionRequest struct {
	Description *string `json:"description"`
}

type manualSessionRequest struct {
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Description *string `json:"description"`
}

type updateSessionRequest struct {
	Start       model.Optional[string] `json:"start"`
	End         model.Optional[string] `json:"end"`
	Description model.Optional[string] `json:"description"`
}

// StartSession は打刻開始を処理する。
// POST /api/sessions/start
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req startSessionRequest
	if apiErr := decodeJSONBody(w, r, &req, true); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	session, err := h.service.StartSession(r.Context(), userID, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeSession(w, r, userID, http.StatusCreated, session)
}

// EndSession は打刻終了を処理する。
// POST /api/sessions/{id}/end
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.service.EndOwnSession(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeSession(w, r, userID, http.StatusOK, session)
}

// CreateManualSession は開始・終了時刻を指定したセッション登録を処理する。
// POST /api/sessions
func (h *SessionHandler) CreateManualSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req manualSessionRequest
	if apiErr := decodeJSONBody(w, r, &req, false); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	zone, err := h.zones.DisplayZone(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	start, apiErr := parseTimestamp("start", req.Start, zone)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	end, apiErr := parseTimestamp("end", req.End, zone)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	session, err := h.service.CreateManualSession(r.Context(), userID, start, end, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, renderer{zone: zone}.session(session))
}

// UpdateSession はセッションの部分更新を処理する。
// PATCH /api/sessions/{id}
func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var req updateSessionRequest
	if apiErr := decodeJSONBody(w, r, &req, false); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	zone, err := h.zones.DisplayZone(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	patch := model.SessionPatch{Description: req.Description}
	if patch.Start, err = parseOptionalTimestamp("start", req.Start, zone); err != nil {
		handleServiceError(w, err)
		return
	}
	if patch.End, err = parseOptionalTimestamp("end", req.End, zone); err != nil {
		handleServiceError(w, err)
		return
	}
	if patch.IsEmpty() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("更新する項目を指定してください"))
		return
	}

	session, err := h.service.UpdateSession(r.Context(), sessionID, userID, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, renderer{zone: zone}.session(session))
}

// DeleteSession はセッション削除を処理する。
// DELETE /api/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSession(r.Context(), sessionID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCurrentSession は進行中セッションを返す。存在しない場合は {"session": null}。
// GET /api/sessions/current
func (h *SessionHandler) GetCurrentSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	session, err := h.service.GetCurrentSession(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	body := map[string]*sessionResponse{"session": nil}
	if session != nil {
		view, err := h.renderer(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		resp := view.session(session)
		body["session"] = &resp
	}
	writeJSON(w, http.StatusOK, body)
}

// ListSessions は日付または日付範囲でセッション一覧を返す。
// GET /api/sessions?date=YYYY-MM-DD
// GET /api/sessions?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var (
		sessions []*model.Session
		err      error
	)
	switch {
	case q.Has("date"):
		sessions, err = h.service.GetSessionsByDate(r.Context(), userID, q.Get("date"))
	case q.Has("startDate") || q.Has("endDate"):
		sessions, err = h.service.GetSessionsByDateRange(r.Context(), userID, q.Get("startDate"), q.Get("endDate"))
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("date または startDate と endDate を指定してください"))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	view, err := h.renderer(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": view.sessions(sessions)})
}

func (h *SessionHandler) writeSession(w http.ResponseWriter, r *http.Request, userID string, status int, session *model.Session) {
	view, err := h.renderer(r.Context(), userID)
	if err != nil {
		// 操作自体は成功しているため、UTCで返す
		slog.Warn("表示タイムゾーンの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, view.session(session))
}

func (h *SessionHandler) renderer(ctx context.Context, userID string) (renderer, error) {
	zone, err := h.zones.DisplayZone(ctx, userID)
	if err != nil {
		return renderer{}, err
	}
	return renderer{zone: zone}, nil
}

func parseTimestamp(field, value, zone string) (time.Time, *model.APIError) {
	if value == "" {
		return time.Time{}, model.NewRequiredFieldError(field)
	}
	t, err := timezone.ParseInZone(value, zone)
	if err != nil {
		return time.Time{}, model.NewInvalidTimestampError(field, value)
	}
	return t, nil
}

// parseOptionalTimestamp は未指定・null・値の区別を保ったまま時刻に変換する。
func parseOptionalTimestamp(field string, value model.Optional[string], zone string) (model.Optional[time.Time], error) {
	if !value.Set {
		return model.Optional[time.Time]{}, nil
	}
	if value.Value == nil {
		return model.Null[time.Time](), nil
	}
	t, apiErr := parseTimestamp(field, *value.Value, zone)
	if apiErr != nil {
		return model.Optional[time.Time]{}, apiErr
	}
	return model.Some(t), nil
}

// sessionIDParam はURLのセッションIDを取り出す。UUID形式でなければ404を返す。
func sessionIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(sessionID); err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError(sessionID))
		return "", false
	}
	return sessionID, true
}
