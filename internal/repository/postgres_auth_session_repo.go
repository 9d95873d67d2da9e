package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// PostgresAuthSessionRepo はPostgreSQLを使用したログインセッションリポジトリ。
type PostgresAuthSessionRepo struct {
	db *sql.DB
}

// NewPostgresAuthSessionRepo はPostgresAuthSessionRepoを生成する。
func NewPostgresAuthSessionRepo(db *sql.DB) *PostgresAuthSessionRepo {
	return &PostgresAuthSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresAuthSessionRepo) Create(ctx context.Context, session *model.AuthSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (id, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresAuthSessionRepo) FindByID(ctx context.Context, id string) (*model.AuthSession, error) {
	session := &model.AuthSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM auth_sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth session: %w", err)
	}

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresAuthSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}

// DeleteExpired はnow時点で期限切れのセッションを削除する。
func (r *PostgresAuthSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired auth sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ AuthSessionRepository = (*PostgresAuthSessionRepo)(nil)
