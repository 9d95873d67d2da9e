// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// ErrOpenSessionExists は同一ユーザーの進行中セッションが既に存在するため
// 挿入が一意制約で拒否された場合のエラー。
var ErrOpenSessionExists = errors.New("open session already exists for user")

// ErrUserExists は同じ外部IDのユーザーが既に作成されているため挿入が拒否された場合のエラー。
var ErrUserExists = errors.New("user with the same external id already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByExternalID は外部IdPの識別子でユーザーを検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Create はユーザーを作成する。
	// 外部IDが既に登録されている場合はErrUserExistsを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのプロフィール項目を上書き更新する。
	Update(ctx context.Context, user *model.User) error

	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)
}

// AuthSessionRepository はログインセッションの永続化インターフェース。
type AuthSessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.AuthSession) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AuthSession, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired はnow時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// WorkSessionRepository は勤務セッションの永続化インターフェース。
// 時刻は正規タイムゾーンに揃えて返す。
type WorkSessionRepository interface {
	// Create はセッションを作成する。
	// 同一ユーザーの進行中セッションと衝突した場合はErrOpenSessionExistsを返す。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// FindOpenByUserID はユーザーの進行中セッションを取得する。存在しない場合はnilを返す。
	FindOpenByUserID(ctx context.Context, userID string) (*model.Session, error)

	// Close は進行中のセッションに終了時刻と所要時間を設定する。
	// 対象が存在しないか既に終了している場合はfalseを返す。
	Close(ctx context.Context, id string, end time.Time, durationMinutes int) (bool, error)

	// Update はセッションの日付・開始・終了・所要時間・説明を上書き更新する。
	// 対象が存在しない場合、またはprevの読み出し後に終了・更新された場合はfalseを返す。
	Update(ctx context.Context, session *model.Session, prev *model.Session) (bool, error)

	// Delete は指定IDのセッションを削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// ListByUserAndDateRange はユーザーのセッションを日付ラベルの範囲で取得する。
	// 範囲は両端を含み、空文字の境界は無制限として扱う。開始時刻の昇順。
	ListByUserAndDateRange(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error)

	// ListByDateRange は全ユーザーのセッションを日付ラベルの範囲で取得する。
	ListByDateRange(ctx context.Context, startDate, endDate string) ([]*model.Session, error)
}
