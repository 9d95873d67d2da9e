package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/timecard/internal/model"
)

func testLimiterConfig(generalBurst, clockBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    generalBurst,
		ClockRate:       rate.Limit(0.001),
		ClockBurst:      clockBurst,
		CleanupInterval: time.Minute,
	}
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func TestPerMinute(t *testing.T) {
	r, burst := PerMinute(120)
	if r != rate.Limit(2) || burst != 120 {
		t.Errorf("PerMinute(120) = (%v, %d)", r, burst)
	}
	r, _ = PerMinute(0)
	if r != rate.Inf {
		t.Errorf("PerMinute(0) = %v, want Inf", r)
	}
}

// TestGeneralMiddleware_Returns429WhenLimitExceeded はバーストを超えたリクエストに
// Retry-After付きの429が返ることを検証する。
func TestGeneralMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(2, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1000" {
		t.Errorf("Retry-After = %q, want 1000", got)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q", body.Code)
	}
}

func TestGeneralMiddleware_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestAs("user-a"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-b"))
	if w.Code != http.StatusOK {
		t.Errorf("other user should not be limited, status = %d", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

// TestClockActionMiddleware_IndependentOfGeneral は打刻操作の制限がAPI全般と独立していることを検証する。
func TestClockActionMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(10, 1))
	defer rl.Stop()
	general := rl.GeneralMiddleware()(okHandler())
	clock := rl.ClockActionMiddleware()(okHandler())

	clock.ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))
	w := httptest.NewRecorder()
	clock.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second clock action status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", w.Code)
	}
	if rl.ClockLimiterCount() != 1 {
		t.Errorf("ClockLimiterCount = %d, want 1", rl.ClockLimiterCount())
	}
}

func TestRateLimitMiddleware_RequiresUser(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()

	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 5))
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs("idle"))
	rl.ClockActionMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs("idle"))

	rl.cleanup(time.Now().Add(time.Minute))
	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("recent entry should survive, count = %d", rl.GeneralLimiterCount())
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.ClockLimiterCount() != 0 {
		t.Errorf("idle entries should be evicted, counts = %d/%d", rl.GeneralLimiterCount(), rl.ClockLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	rl.Stop()
	rl.Stop()
}
