// Package worksession は勤務セッションの状態遷移（開始・終了・手動登録・更新・削除）と
// ユーザー単位の参照を提供する。
//
// 1ユーザーにつき進行中のセッションは最大1件。開始処理はプロセス内の
// ユーザー単位ロックで直列化し、プロセス間の競合はDBの部分一意インデックスで検出する。
package worksession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/clock"
	"github.com/hitoshi/timecard/internal/metrics"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
	"github.com/hitoshi/timecard/internal/security"
	"github.com/hitoshi/timecard/internal/timezone"
)

// Service は勤務セッションのサービス層。
type Service struct {
	repo      repository.WorkSessionRepository
	clock     clock.Clock
	sanitizer security.DescriptionSanitizer
	recorder  metrics.SessionRecorder
	locks     *userLocks
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewService(
	repo repository.WorkSessionRepository,
	clk clock.Clock,
	sanitizer security.DescriptionSanitizer,
	recorder metrics.SessionRecorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		clock:     clk,
		sanitizer: sanitizer,
		recorder:  recorder,
		locks:     newUserLocks(),
		newID:     uuid.NewString,
	}
}

// DurationMinutes は開始から終了までの分数を四捨五入（0.5は0から遠い方へ）で返す。
// 90秒は2分になる。
func DurationMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// StartSession は現在時刻を開始時刻とする進行中セッションを作成する。
// 既に進行中のセッションがある場合はConflictエラーを返す。
func (s *Service) StartSession(ctx context.Context, userID string, description *string) (*model.Session, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	open, err := s.repo.FindOpenByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中セッションの取得に失敗しました: %w", err)
	}
	if open != nil {
		return nil, s.conflict(model.NewSessionAlreadyOpenError())
	}

	now := s.now()
	session := &model.Session{
		ID:          s.newID(),
		UserID:      userID,
		Date:        timezone.DateLabel(now),
		Start:       now,
		Description: s.cleanDescription(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrOpenSessionExists) {
			return nil, s.conflict(model.NewSessionAlreadyOpenError())
		}
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	s.recorder.RecordSessionEvent(metrics.EventStarted)
	slog.Info("勤務セッションを開始しました",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
		slog.String("date", session.Date),
	)

	return session, nil
}

// EndSession は進行中のセッションを現在時刻で終了し、所要時間を確定する。
// 存在しない場合はNotFound、既に終了している場合はConflictエラーを返す。
func (s *Service) EndSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.end(ctx, session)
}

// EndOwnSession は所有者の確認を行ったうえでEndSessionと同じ処理を行う。
func (s *Service) EndOwnSession(ctx context.Context, actorID, sessionID string) (*model.Session, error) {
	session, err := s.findOwned(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	return s.end(ctx, session)
}

func (s *Service) end(ctx context.Context, session *model.Session) (*model.Session, error) {
	if !session.IsOpen() {
		return nil, s.conflict(model.NewSessionAlreadyClosedError(session.ID))
	}

	end := s.now()
	// 時計の巻き戻りで開始より前にならないようにする
	if end.Before(session.Start) {
		end = session.Start
	}
	duration := DurationMinutes(session.Start, end)

	closed, err := s.repo.Close(ctx, session.ID, end, duration)
	if err != nil {
		return nil, fmt.Errorf("セッションの終了に失敗しました: %w", err)
	}
	if !closed {
		// 読み出し後に他のリクエストが終了または削除した
		current, err := s.repo.FindByID(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
		}
		if current == nil {
			return nil, model.NewSessionNotFoundError(session.ID)
		}
		return nil, s.conflict(model.NewSessionAlreadyClosedError(session.ID))
	}

	session.End = &end
	session.DurationMinutes = &duration
	session.UpdatedAt = end

	s.recorder.RecordSessionEvent(metrics.EventEnded)
	s.recorder.RecordSessionDuration(duration)
	slog.Info("勤務セッションを終了しました",
		slog.String("user_id", session.UserID),
		slog.String("session_id", session.ID),
		slog.Int("duration_minutes", duration),
	)

	return session, nil
}

// CreateManualSession は開始・終了時刻を指定した終了済みセッションを登録する。
// 終了時刻が開始時刻以前の場合はValidationエラーを返す。
// 進行中セッションの有無は確認しないため、進行中のセッションと並存できる。
func (s *Service) CreateManualSession(ctx context.Context, userID string, start, end time.Time, description *string) (*model.Session, error) {
	if !end.After(start) {
		return nil, model.NewInvalidTimeRangeError()
	}

	start = timezone.ToCanonical(start)
	end = timezone.ToCanonical(end)
	duration := DurationMinutes(start, end)
	now := s.now()

	session := &model.Session{
		ID:              s.newID(),
		UserID:          userID,
		Date:            timezone.DateLabel(start),
		Start:           start,
		End:             &end,
		DurationMinutes: &duration,
		Description:     s.cleanDescription(description),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	s.recorder.RecordSessionEvent(metrics.EventManual)
	s.recorder.RecordSessionDuration(duration)
	slog.Info("勤務セッションを手動登録しました",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
		slog.Int("duration_minutes", duration),
	)

	return session, nil
}

// UpdateSession はセッションの説明・開始・終了時刻を部分更新する。
//
// 開始時刻を変更した場合は日付を再導出し、終了時刻が存在すれば所要時間を再計算する。
// 開始・終了のクリア、および終了が開始より前になる更新はValidationエラー。
func (s *Service) UpdateSession(ctx context.Context, sessionID, actorID string, patch model.SessionPatch) (*model.Session, error) {
	if patch.Start.IsNull() {
		return nil, model.NewRequiredFieldError("start")
	}
	if patch.End.IsNull() {
		return nil, model.NewRequiredFieldError("end")
	}

	current, err := s.findOwned(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if patch.Description.Set {
		updated.Description = s.cleanDescription(patch.Description.Value)
	}
	if patch.Start.Set {
		updated.Start = timezone.ToCanonical(*patch.Start.Value)
	}
	if patch.End.Set {
		end := timezone.ToCanonical(*patch.End.Value)
		updated.End = &end
	}

	if updated.End != nil {
		if updated.End.Before(updated.Start) {
			return nil, model.NewInvalidTimeRangeError()
		}
		duration := DurationMinutes(updated.Start, *updated.End)
		updated.DurationMinutes = &duration
	}
	updated.Date = timezone.DateLabel(updated.Start)
	updated.UpdatedAt = s.now()

	ok, err := s.repo.Update(ctx, &updated, current)
	if err != nil {
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}
	if !ok {
		return nil, s.staleUpdate(ctx, current)
	}

	s.recorder.RecordSessionEvent(metrics.EventUpdated)
	slog.Info("勤務セッションを更新しました",
		slog.String("user_id", actorID),
		slog.String("session_id", sessionID),
	)

	return &updated, nil
}

// staleUpdate は条件付き更新が0件だった理由を再取得して判定する。
func (s *Service) staleUpdate(ctx context.Context, prev *model.Session) error {
	latest, err := s.repo.FindByID(ctx, prev.ID)
	if err != nil {
		return fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if latest == nil {
		return model.NewSessionNotFoundError(prev.ID)
	}
	if prev.IsOpen() && !latest.IsOpen() {
		return s.conflict(model.NewSessionAlreadyClosedError(prev.ID))
	}
	return s.conflict(model.NewSessionModifiedError(prev.ID))
}

// DeleteSession は所有者のみがセッションを削除できる。
func (s *Service) DeleteSession(ctx context.Context, sessionID, actorID string) error {
	if _, err := s.findOwned(ctx, sessionID, actorID); err != nil {
		return err
	}

	ok, err := s.repo.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewSessionNotFoundError(sessionID)
	}

	s.recorder.RecordSessionEvent(metrics.EventDeleted)
	slog.Info("勤務セッションを削除しました",
		slog.String("user_id", actorID),
		slog.String("session_id", sessionID),
	)

	return nil
}

// GetCurrentSession はユーザーの進行中セッションを返す。存在しない場合はnil。
func (s *Service) GetCurrentSession(ctx context.Context, userID string) (*model.Session, error) {
	session, err := s.repo.FindOpenByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中セッションの取得に失敗しました: %w", err)
	}
	return session, nil
}

// GetSessionsByDate は指定日付ラベルのセッションを開始時刻順に返す。
func (s *Service) GetSessionsByDate(ctx context.Context, userID, date string) ([]*model.Session, error) {
	if !timezone.ValidDateLabel(date) {
		return nil, model.NewInvalidDateError("date", date)
	}
	return s.list(ctx, userID, date, date)
}

// GetSessionsByDateRange は両端を含む日付範囲のセッションを開始時刻順に返す。
func (s *Service) GetSessionsByDateRange(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error) {
	if err := CheckDateRange(startDate, endDate); err != nil {
		return nil, err
	}
	return s.list(ctx, userID, startDate, endDate)
}

func (s *Service) list(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error) {
	sessions, err := s.repo.ListByUserAndDateRange(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("セッション一覧の取得に失敗しました: %w", err)
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	return sessions, nil
}

// CheckDateRange は日付範囲を検証し、不正な場合はValidationエラーを返す。
func CheckDateRange(startDate, endDate string) error {
	err := timezone.ValidateDateRange(startDate, endDate)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, timezone.ErrReversedRange):
		return model.NewInvalidDateRangeError(startDate, endDate)
	case !timezone.ValidDateLabel(startDate):
		return model.NewInvalidDateError("startDate", startDate)
	default:
		return model.NewInvalidDateError("endDate", endDate)
	}
}

// find はUUID形式でないIDをストアに問い合わせずNotFoundとして扱う。
func (s *Service) find(ctx context.Context, sessionID string) (*model.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return session, nil
}

func (s *Service) findOwned(ctx context.Context, sessionID, actorID string) (*model.Session, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != actorID {
		slog.Warn("他ユーザーのセッションへの操作を拒否しました",
			slog.String("user_id", actorID),
			slog.String("session_id", sessionID),
		)
		return nil, model.NewSessionForbiddenError()
	}
	return session, nil
}

func (s *Service) now() time.Time {
	return timezone.ToCanonical(s.clock.Now())
}

// cleanDescription はサニタイズ後に空になる説明をnilとして扱う。
func (s *Service) cleanDescription(description *string) *string {
	if description == nil {
		return nil
	}
	cleaned := *description
	if s.sanitizer != nil {
		cleaned = s.sanitizer.Sanitize(cleaned)
	}
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func (s *Service) conflict(err *model.APIError) error {
	s.recorder.RecordConflict(err.Code)
	return err
}
