package metrics

import (
	"net/http"
	"time"
)

// HTTPRecorder はHTTPミドルウェアから利用するメトリクス記録のインターフェース。
type HTTPRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordHTTPLatency(d time.Duration)
}

// Middleware はレスポンスのステータスコードと処理時間を記録するミドルウェアを返す。
func Middleware(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			rec.RecordHTTPStatus(sw.status)
			rec.RecordHTTPLatency(time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
