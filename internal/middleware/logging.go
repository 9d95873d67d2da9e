package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードと書き込みバイト数を記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// userIDHolder はセッションミドルウェアが内側で解決したユーザーIDをログ出力まで持ち回る。
// ロギングはセッションより外側で動くため、コンテキストでは受け取れない。
type userIDHolder struct {
	userID string
}

type userIDHolderKey struct{}

// NewLoggingMiddleware はリクエストのJSON構造化ログ（http_request）を出力するミドルウェアを返す。
// method、path、status、duration_ms、bytes、認証済みの場合はuser_idを含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			holder := &userIDHolder{}
			ctx := contextWithUserIDHolder(r.Context(), holder)

			next.ServeHTTP(rec, r.WithContext(ctx))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
				slog.Int("bytes", rec.bytes),
			}
			userID := holder.userID
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				args = append(args, slog.String("user_id", userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

func contextWithUserIDHolder(ctx context.Context, h *userIDHolder) context.Context {
	return context.WithValue(ctx, userIDHolderKey{}, h)
}

// noteUserID は外側のロギングミドルウェアにユーザーIDを伝える。
func noteUserID(ctx context.Context, userID string) {
	if h, ok := ctx.Value(userIDHolderKey{}).(*userIDHolder); ok {
		h.userID = userID
	}
}
