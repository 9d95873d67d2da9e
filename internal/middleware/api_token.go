package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// NewAPITokenMiddleware は Authorization: Bearer <token> を検証するミドルウェアを返す。
// レポートAPIのようにCookieを持たない呼び出し元向け。
func NewAPITokenMiddleware(token string) func(next http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerToken(r)
			if !ok || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				slog.Warn("API token rejected",
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="reports"`)
				WriteSimpleError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
