// Package cleanup は期限切れログインセッションの定期削除ジョブを提供する。
// ワーカープロセスで一定間隔ごとに実行し、auth_sessions の肥大化を防ぐ。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/timecard/internal/clock"
)

// DefaultInterval はジョブの既定の実行間隔。
const DefaultInterval = 24 * time.Hour

// ExpiredSessionPurger は期限切れセッションを削除するインターフェース。
// repository.AuthSessionRepositoryの部分集合。
type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PurgeRecorder は削除件数をメトリクスに記録するインターフェース。
type PurgeRecorder interface {
	RecordAuthSessionsPurged(count int64)
}

// Job は期限切れログインセッションの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type Job struct {
	purger   ExpiredSessionPurger
	recorder PurgeRecorder
	clock    clock.Clock
	logger   *slog.Logger
}

// NewJob はJobを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewJob(purger ExpiredSessionPurger, recorder PurgeRecorder, clk clock.Clock, logger *slog.Logger) *Job {
	return &Job{
		purger:   purger,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
	}
}

// RunOnce は現在時刻で期限切れのセッションを1回削除し、削除件数を返す。
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := j.purger.DeleteExpired(ctx, j.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordAuthSessionsPurged(deleted)
	}

	j.logger.Info("期限切れセッションの削除が完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return deleted, nil
}

// Start はintervalごとにRunOnceを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
