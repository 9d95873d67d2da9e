package stats

import (
	"context"
	"fmt"

	"github.com/hitoshi/timecard/internal/clock"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/timezone"
	"github.com/hitoshi/timecard/internal/worksession"
)

// SessionLister は集計対象セッションの取得インターフェース。
type SessionLister interface {
	ListByUserAndDateRange(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error)
	ListByDateRange(ctx context.Context, startDate, endDate string) ([]*model.Session, error)
}

// UserLister はユーザー一覧の取得インターフェース。
type UserLister interface {
	List(ctx context.Context) ([]*model.User, error)
}

// Service は集計のサービス層。呼び出しごとにストアを再取得し、キャッシュしない。
type Service struct {
	sessions SessionLister
	users    UserLister
	clock    clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sessions SessionLister, users UserLister, clk clock.Clock) *Service {
	return &Service{
		sessions: sessions,
		users:    users,
		clock:    clk,
	}
}

// GetSessionSummary はユーザーのセッションを日付範囲で集計する。
// 空の境界は無制限として扱い、指定された境界は形式と順序を検証する。
func (s *Service) GetSessionSummary(ctx context.Context, userID, startDate, endDate string) (Summary, error) {
	if err := checkOptionalRange(startDate, endDate); err != nil {
		return Summary{}, err
	}

	sessions, err := s.sessions.ListByUserAndDateRange(ctx, userID, startDate, endDate)
	if err != nil {
		return Summary{}, fmt.Errorf("集計対象セッションの取得に失敗しました: %w", err)
	}
	return Summarize(sessions), nil
}

// GetTodayStats は今日（正規タイムゾーン）のユーザー集計を返す。
func (s *Service) GetTodayStats(ctx context.Context, userID string) (DayStats, error) {
	return s.userDay(ctx, userID, timezone.DateLabel(s.clock.Now()))
}

// GetLastDayStats は前日（正規タイムゾーン）のユーザー集計を返す。
func (s *Service) GetLastDayStats(ctx context.Context, userID string) (DayStats, error) {
	return s.userDay(ctx, userID, timezone.PreviousDateLabel(s.clock.Now()))
}

// GetAllUsersTodayStats は今日の全ユーザー集計を返す。
func (s *Service) GetAllUsersTodayStats(ctx context.Context) ([]UserStats, error) {
	today := timezone.DateLabel(s.clock.Now())
	return s.allUsers(ctx, today, today)
}

// GetAllUsersLastDayStats は前日の全ユーザー集計を返す。
func (s *Service) GetAllUsersLastDayStats(ctx context.Context) ([]UserStats, error) {
	day := timezone.PreviousDateLabel(s.clock.Now())
	return s.allUsers(ctx, day, day)
}

// GetAllUsersTimeFrameStats は両端を含む日付範囲の全ユーザー集計を返す。
func (s *Service) GetAllUsersTimeFrameStats(ctx context.Context, startDate, endDate string) ([]UserStats, error) {
	if err := worksession.CheckDateRange(startDate, endDate); err != nil {
		return nil, err
	}
	return s.allUsers(ctx, startDate, endDate)
}

func (s *Service) userDay(ctx context.Context, userID, date string) (DayStats, error) {
	sessions, err := s.sessions.ListByUserAndDateRange(ctx, userID, date, date)
	if err != nil {
		return DayStats{}, fmt.Errorf("集計対象セッションの取得に失敗しました: %w", err)
	}
	return ForDay(sessions), nil
}

func (s *Service) allUsers(ctx context.Context, startDate, endDate string) ([]UserStats, error) {
	sessions, err := s.sessions.ListByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("集計対象セッションの取得に失敗しました: %w", err)
	}
	if len(sessions) == 0 {
		return []UserStats{}, nil
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return ByUser(users, sessions), nil
}

func checkOptionalRange(startDate, endDate string) error {
	if startDate != "" && !timezone.ValidDateLabel(startDate) {
		return model.NewInvalidDateError("startDate", startDate)
	}
	if endDate != "" && !timezone.ValidDateLabel(endDate) {
		return model.NewInvalidDateError("endDate", endDate)
	}
	if startDate != "" && endDate != "" && startDate > endDate {
		return model.NewInvalidDateRangeError(startDate, endDate)
	}
	return nil
}
