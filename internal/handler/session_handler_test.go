package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/timezone"
)

// --- モック定義 ---

type mockSessionService struct {
	startSessionFn           func(ctx context.Context, userID string, description *string) (*model.Session, error)
	endOwnSessionFn          func(ctx context.Context, actorID, sessionID string) (*model.Session, error)
	createManualSessionFn    func(ctx context.Context, userID string, start, end time.Time, description *string) (*model.Session, error)
	updateSessionFn          func(ctx context.Context, sessionID, actorID string, patch model.SessionPatch) (*model.Session, error)
	deleteSessionFn          func(ctx context.Context, sessionID, actorID string) error
	getCurrentSessionFn      func(ctx context.Context, userID string) (*model.Session, error)
	getSessionsByDateFn      func(ctx context.Context, userID, date string) ([]*model.Session, error)
	getSessionsByDateRangeFn func(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error)
}

func (m *mockSessionService) StartSession(ctx context.Context, userID string, description *string) (*model.Session, error) {
	return m.startSessionFn(ctx, userID, description)
}

func (m *mockSessionService) EndOwnSession(ctx context.Context, actorID, sessionID string) (*model.Session, error) {
	return m.endOwnSessionFn(ctx, actorID, sessionID)
}

func (m *mockSessionService) CreateManualSession(ctx context.Context, userID string, start, end time.Time, description *string) (*model.Session, error) {
	return m.createManualSessionFn(ctx, userID, start, end, description)
}

func (m *mockSessionService) UpdateSession(ctx context.Context, sessionID, actorID string, patch model.SessionPatch) (*model.Session, error) {
	return m.updateSessionFn(ctx, sessionID, actorID, patch)
}

func (m *mockSessionService) DeleteSession(ctx context.Context, sessionID, actorID string) error {
	return m.deleteSessionFn(ctx, sessionID, actorID)
}

func (m *mockSessionService) GetCurrentSession(ctx context.Context, userID string) (*model.Session, error) {
	return m.getCurrentSessionFn(ctx, userID)
}

func (m *mockSessionService) GetSessionsByDate(ctx context.Context, userID, date string) ([]*model.Session, error) {
	return m.getSessionsByDateFn(ctx, userID, date)
}

func (m *mockSessionService) GetSessionsByDateRange(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error) {
	return m.getSessionsByDateRangeFn(ctx, userID, startDate, endDate)
}

type stubZones struct {
	zone string
	err  error
}

func (s stubZones) DisplayZone(ctx context.Context, userID string) (string, error) {
	return s.zone, s.err
}

// withURLParam はchiのURLパラメータを設定したリクエストを返す。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// 2025-03-10 09:00 UTC = 13:00 (+04)
var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC).In(timezone.StorageLocation)

const testSessionID = "5f0c2a9e-7b1d-4c3e-8a6f-2d9b4e1c7a30"

func openSession() *model.Session {
	return &model.Session{
		ID:        testSessionID,
		UserID:    "u1",
		Date:      "2025-03-10",
		Start:     testStart,
		CreatedAt: testStart,
		UpdatedAt: testStart,
	}
}

func closedSession(minutes int) *model.Session {
	s := openSession()
	end := testStart.Add(time.Duration(minutes) * time.Minute)
	s.End = &end
	s.DurationMinutes = &minutes
	return s
}

// --- テスト ---

func TestSessionHandler_StartSession(t *testing.T) {
	t.Run("空ボディで開始できる", func(t *testing.T) {
		svc := &mockSessionService{
			startSessionFn: func(ctx context.Context, userID string, description *string) (*model.Session, error) {
				if description != nil {
					t.Errorf("description = %q, want nil", *description)
				}
				return openSession(), nil
			},
		}
		h := NewSessionHandler(svc, stubZones{zone: "Asia/Tokyo"})

		w := httptest.NewRecorder()
		h.StartSession(w, withUser(httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil), "u1"))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
		}
		var body sessionResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Start != "2025-03-10T18:00:00+09:00" {
			t.Errorf("start = %q, want Tokyo wall clock", body.Start)
		}
		if !body.Ongoing || body.End != nil || body.DurationMinutes != nil {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("説明付きで開始できる", func(t *testing.T) {
		svc := &mockSessionService{
			startSessionFn: func(ctx context.Context, userID string, description *string) (*model.Session, error) {
				if description == nil || *description != "設計レビュー" {
					t.Errorf("description = %v", description)
				}
				s := openSession()
				s.Description = description
				return s, nil
			},
		}
		h := NewSessionHandler(svc, stubZones{})

		req := httptest.NewRequest(http.MethodPost, "/api/sessions/start", strings.NewReader(`{"description":"設計レビュー"}`))
		w := httptest.NewRecorder()
		h.StartSession(w, withUser(req, "u1"))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", w.Code)
		}
	})

	t.Run("進行中セッションがあれば409", func(t *testing.T) {
		svc := &mockSessionService{
			startSessionFn: func(ctx context.Context, userID string, description *string) (*model.Session, error) {
				return nil, model.NewSessionAlreadyOpenError()
			},
		}
		h := NewSessionHandler(svc, stubZones{})

		w := httptest.NewRecorder()
		h.StartSession(w, withUser(httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil), "u1"))

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
		if code := decodeErrorCode(t, w); code != model.ErrCodeSessionAlreadyOpen {
			t.Errorf("code = %q", code)
		}
	})

	t.Run("表示タイムゾーン取得に失敗してもUTCで返す", func(t *testing.T) {
		svc := &mockSessionService{
			startSessionFn: func(ctx context.Context, userID string, description *string) (*model.Session, error) {
				return openSession(), nil
			},
		}
		h := NewSessionHandler(svc, stubZones{err: errors.New("db down")})

		w := httptest.NewRecorder()
		h.StartSession(w, withUser(httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil), "u1"))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", w.Code)
		}
		var body sessionResponse
		json.NewDecoder(w.Body).Decode(&body)
		if body.Start != "2025-03-10T09:00:00Z" {
			t.Errorf("start = %q, want UTC", body.Start)
		}
	})

	t.Run("未認証は401", func(t *testing.T) {
		h := NewSessionHandler(&mockSessionService{}, stubZones{})
		w := httptest.NewRecorder()
		h.StartSession(w, httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestSessionHandler_EndSession(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"終了できる", nil, http.StatusOK},
		{"他人のセッションは403", model.NewSessionForbiddenError(), http.StatusForbidden},
		{"存在しない場合は404", model.NewSessionNotFoundError(testSessionID), http.StatusNotFound},
		{"終了済みは409", model.NewSessionAlreadyClosedError(testSessionID), http.StatusConflict},
		{"想定外のエラーは500", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				endOwnSessionFn: func(ctx context.Context, actorID, sessionID string) (*model.Session, error) {
					if actorID != "u1" || sessionID != testSessionID {
						t.Errorf("actor=%q session=%q", actorID, sessionID)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return closedSession(90), nil
				},
			}
			h := NewSessionHandler(svc, stubZones{})

			req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+testSessionID+"/end", nil)
			req = withURLParam(withUser(req, "u1"), "id", testSessionID)
			w := httptest.NewRecorder()
			h.EndSession(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.err == nil {
				var body sessionResponse
				json.NewDecoder(w.Body).Decode(&body)
				if body.DurationMinutes == nil || *body.DurationMinutes != 90 || body.Ongoing {
					t.Errorf("body = %+v", body)
				}
			}
		})
	}
}

func TestSessionHandler_CreateManualSession(t *testing.T) {
	t.Run("オフセットなしの時刻は閲覧者のゾーンで解釈する", func(t *testing.T) {
		svc := &mockSessionService{
			createManualSessionFn: func(ctx context.Context, userID string, start, end time.Time, description *string) (*model.Session, error) {
				wantStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
				if !start.Equal(wantStart) {
					t.Errorf("start = %v, want %v", start, wantStart)
				}
				if got := end.Sub(start); got != 2*time.Hour {
					t.Errorf("duration = %v", got)
				}
				return closedSession(120), nil
			},
		}
		h := NewSessionHandler(svc, stubZones{zone: "Asia/Tokyo"})

		req := httptest.NewRequest(http.MethodPost, "/api/sessions",
			strings.NewReader(`{"start":"2025-03-10T09:00","end":"2025-03-10T11:00:00+09:00"}`))
		w := httptest.NewRecorder()
		h.CreateManualSession(w, withUser(req, "u1"))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
		}
	})

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"startなし", `{"end":"2025-03-10T11:00:00Z"}`, model.ErrCodeRequiredField},
		{"endなし", `{"start":"2025-03-10T09:00:00Z"}`, model.ErrCodeRequiredField},
		{"不正な時刻", `{"start":"yesterday","end":"2025-03-10T11:00:00Z"}`, model.ErrCodeInvalidTimestamp},
		{"ボディなし", ``, model.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSessionHandler(&mockSessionService{}, stubZones{})
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.CreateManualSession(w, withUser(req, "u1"))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if code := decodeErrorCode(t, w); code != tt.wantErr {
				t.Errorf("code = %q, want %q", code, tt.wantErr)
			}
		})
	}

	t.Run("終了が開始以前なら400", func(t *testing.T) {
		svc := &mockSessionService{
			createManualSessionFn: func(ctx context.Context, userID string, start, end time.Time, description *string) (*model.Session, error) {
				return nil, model.NewInvalidTimeRangeError()
			},
		}
		h := NewSessionHandler(svc, stubZones{})
		req := httptest.NewRequest(http.MethodPost, "/api/sessions",
			strings.NewReader(`{"start":"2025-03-10T11:00:00Z","end":"2025-03-10T09:00:00Z"}`))
		w := httptest.NewRecorder()
		h.CreateManualSession(w, withUser(req, "u1"))

		if code := decodeErrorCode(t, w); code != model.ErrCodeInvalidTimeRange {
			t.Errorf("code = %q", code)
		}
	})
}

func TestSessionHandler_UpdateSession(t *testing.T) {
	t.Run("指定した項目だけを渡す", func(t *testing.T) {
		var got model.SessionPatch
		svc := &mockSessionService{
			updateSessionFn: func(ctx context.Context, sessionID, actorID string, patch model.SessionPatch) (*model.Session, error) {
				got = patch
				return closedSession(30), nil
			},
		}
		h := NewSessionHandler(svc, stubZones{zone: "UTC"})

		req := httptest.NewRequest(http.MethodPatch, "/api/sessions/"+testSessionID,
			strings.NewReader(`{"end":"2025-03-10T09:30:00Z","description":null}`))
		req = withURLParam(withUser(req, "u1"), "id", testSessionID)
		w := httptest.NewRecorder()
		h.UpdateSession(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
		}
		if got.Start.Set {
			t.Error("start should be unset")
		}
		if !got.End.Set || got.End.Value == nil || !got.End.Value.Equal(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)) {
			t.Errorf("end = %+v", got.End)
		}
		if !got.Description.IsNull() {
			t.Errorf("description should be cleared, got %+v", got.Description)
		}
	})

	t.Run("endのnullはそのままサービスへ渡す", func(t *testing.T) {
		var got model.SessionPatch
		svc := &mockSessionService{
			updateSessionFn: func(ctx context.Context, sessionID, actorID string, patch model.SessionPatch) (*model.Session, error) {
				got = patch
				return openSession(), nil
			},
		}
		h := NewSessionHandler(svc, stubZones{})

		req := httptest.NewRequest(http.MethodPatch, "/api/sessions/"+testSessionID, strings.NewReader(`{"end":null}`))
		req = withURLParam(withUser(req, "u1"), "id", testSessionID)
		w := httptest.NewRecorder()
		h.UpdateSession(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if !got.End.IsNull() {
			t.Errorf("end = %+v", got.End)
		}
	})

	t.Run("空のパッチは400", func(t *testing.T) {
		h := NewSessionHandler(&mockSessionService{}, stubZones{})
		req := httptest.NewRequest(http.MethodPatch, "/api/sessions/"+testSessionID, strings.NewReader(`{}`))
		req = withURLParam(withUser(req, "u1"), "id", testSessionID)
		w := httptest.NewRecorder()
		h.UpdateSession(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("不正な時刻は400", func(t *testing.T) {
		h := NewSessionHandler(&mockSessionService{}, stubZones{})
		req := httptest.NewRequest(http.MethodPatch, "/api/sessions/"+testSessionID, strings.NewReader(`{"start":"soon"}`))
		req = withURLParam(withUser(req, "u1"), "id", testSessionID)
		w := httptest.NewRecorder()
		h.UpdateSession(w, req)

		if code := decodeErrorCode(t, w); code != model.ErrCodeInvalidTimestamp {
			t.Errorf("code = %q", code)
		}
	})
}

func TestSessionHandler_DeleteSession(t *testing.T) {
	var deleted string
	svc := &mockSessionService{
		deleteSessionFn: func(ctx context.Context, sessionID, actorID string) error {
			deleted = sessionID
			return nil
		},
	}
	h := NewSessionHandler(svc, stubZones{})

	req := withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/sessions/"+testSessionID, nil), "u1"), "id", testSessionID)
	w := httptest.NewRecorder()
	h.DeleteSession(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if deleted != testSessionID {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestSessionHandler_GetCurrentSession(t *testing.T) {
	t.Run("進行中がなければnull", func(t *testing.T) {
		svc := &mockSessionService{
			getCurrentSessionFn: func(ctx context.Context, userID string) (*model.Session, error) {
				return nil, nil
			},
		}
		h := NewSessionHandler(svc, stubZones{})

		w := httptest.NewRecorder()
		h.GetCurrentSession(w, withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/current", nil), "u1"))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != `{"session":null}` {
			t.Errorf("body = %s", got)
		}
	})

	t.Run("進行中セッションを返す", func(t *testing.T) {
		svc := &mockSessionService{
			getCurrentSessionFn: func(ctx context.Context, userID string) (*model.Session, error) {
				return openSession(), nil
			},
		}
		h := NewSessionHandler(svc, stubZones{})

		w := httptest.NewRecorder()
		h.GetCurrentSession(w, withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/current", nil), "u1"))

		var body struct {
			Session *sessionResponse `json:"session"`
		}
		json.NewDecoder(w.Body).Decode(&body)
		if body.Session == nil || body.Session.ID != testSessionID {
			t.Errorf("session = %+v", body.Session)
		}
	})
}

func TestSessionHandler_ListSessions(t *testing.T) {
	t.Run("日付指定", func(t *testing.T) {
		svc := &mockSessionService{
			getSessionsByDateFn: func(ctx context.Context, userID, date string) ([]*model.Session, error) {
				if date != "2025-03-10" {
					t.Errorf("date = %q", date)
				}
				return []*model.Session{closedSession(60), openSession()}, nil
			},
		}
		h := NewSessionHandler(svc, stubZones{})

		w := httptest.NewRecorder()
		h.ListSessions(w, withUser(httptest.NewRequest(http.MethodGet, "/api/sessions?date=2025-03-10", nil), "u1"))

		var body struct {
			Sessions []sessionResponse `json:"sessions"`
		}
		json.NewDecoder(w.Body).Decode(&body)
		if len(body.Sessions) != 2 {
			t.Errorf("len = %d, want 2", len(body.Sessions))
		}
	})

	t.Run("範囲指定で結果なしは空配列", func(t *testing.T) {
		svc := &mockSessionService{
			getSessionsByDateRangeFn: func(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error) {
				if startDate != "2025-03-01" || endDate != "2025-03-31" {
					t.Errorf("range = %s..%s", startDate, endDate)
				}
				return nil, nil
			},
		}
		h := NewSessionHandler(svc, stubZones{})

		w := httptest.NewRecorder()
		h.ListSessions(w, withUser(httptest.NewRequest(http.MethodGet, "/api/sessions?startDate=2025-03-01&endDate=2025-03-31", nil), "u1"))

		if got := strings.TrimSpace(w.Body.String()); got != `{"sessions":[]}` {
			t.Errorf("body = %s", got)
		}
	})

	t.Run("条件なしは400", func(t *testing.T) {
		h := NewSessionHandler(&mockSessionService{}, stubZones{})
		w := httptest.NewRecorder()
		h.ListSessions(w, withUser(httptest.NewRequest(http.MethodGet, "/api/sessions", nil), "u1"))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("不正な日付はサービスのエラーを返す", func(t *testing.T) {
		svc := &mockSessionService{
			getSessionsByDateFn: func(ctx context.Context, userID, date string) ([]*model.Session, error) {
				return nil, model.NewInvalidDateError("date", date)
			},
		}
		h := NewSessionHandler(svc, stubZones{})
		w := httptest.NewRecorder()
		h.ListSessions(w, withUser(httptest.NewRequest(http.MethodGet, "/api/sessions?date=2025-02-30", nil), "u1"))
		if code := decodeErrorCode(t, w); code != model.ErrCodeInvalidDate {
			t.Errorf("code = %q", code)
		}
	})
}

// TestSessionHandler_MalformedIDIsNotFound はUUID形式でないIDがサービスに渡らず404になることを検証する。
func TestSessionHandler_MalformedIDIsNotFound(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{}, stubZones{})

	tests := []struct {
		name   string
		method string
		body   string
		serve  func(w http.ResponseWriter, r *http.Request)
	}{
		{"終了", http.MethodPost, "", h.EndSession},
		{"更新", http.MethodPatch, `{"description":"x"}`, h.UpdateSession},
		{"削除", http.MethodDelete, "", h.DeleteSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/sessions/abc", strings.NewReader(tt.body))
			req = withURLParam(withUser(req, "u1"), "id", "abc")
			w := httptest.NewRecorder()
			tt.serve(w, req)

			if w.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", w.Code)
			}
			if code := decodeErrorCode(t, w); code != model.ErrCodeSessionNotFound {
				t.Errorf("code = %q, want %q", code, model.ErrCodeSessionNotFound)
			}
		})
	}
}
