// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/timecard/internal/model"
)

// SessionCookieName はログインセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// ErrNoUserInContext はコンテキストに認証済みユーザーIDがない場合のエラー。
var ErrNoUserInContext = errors.New("user ID not found in context")

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var userIDContextKey = contextKey("user_id")

// SessionFinder はログインセッションの検索に必要なインターフェース。
// repository.AuthSessionRepositoryの部分集合。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.AuthSession, error)
}

// NewSessionMiddleware はHTTP Only Cookieからログインセッションを読み取り、
// 認証済みユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証または期限切れのリクエストには401を返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), session.UserID)))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUserInContext
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	noteUserID(ctx, userID)
	return context.WithValue(ctx, userIDContextKey, userID)
}
