package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/timezone"
)

const (
	workSessionColumns = `id, user_id, date_label, start_at, end_at, duration_minutes, description, created_at, updated_at`

	// openSessionConstraint は進行中セッションを1ユーザー1件に制限する部分一意インデックス名。
	openSessionConstraint = "work_sessions_one_open_per_user"

	// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
	pqUniqueViolation = "23505"
)

// PostgresWorkSessionRepo はPostgreSQLを使用した勤務セッションリポジトリ。
type PostgresWorkSessionRepo struct {
	db *sql.DB
}

// NewPostgresWorkSessionRepo はPostgresWorkSessionRepoを生成する。
func NewPostgresWorkSessionRepo(db *sql.DB) *PostgresWorkSessionRepo {
	return &PostgresWorkSessionRepo{db: db}
}

// Create はセッションを作成する。
// 進行中セッションの部分一意インデックスに違反した場合はErrOpenSessionExistsを返す。
func (r *PostgresWorkSessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_sessions (id, user_id, date_label, start_at, end_at, duration_minutes, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.Date, s.Start, nullTime(s.End), nullInt(s.DurationMinutes), nullString(s.Description),
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, openSessionConstraint) {
			return ErrOpenSessionExists
		}
		return fmt.Errorf("failed to insert work session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresWorkSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s, err := scanWorkSession(r.db.QueryRowContext(ctx,
		`SELECT `+workSessionColumns+` FROM work_sessions WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find work session: %w", err)
	}
	return s, nil
}

// FindOpenByUserID はユーザーの進行中セッションを取得する。存在しない場合はnilを返す。
func (r *PostgresWorkSessionRepo) FindOpenByUserID(ctx context.Context, userID string) (*model.Session, error) {
	s, err := scanWorkSession(r.db.QueryRowContext(ctx,
		`SELECT `+workSessionColumns+`
		 FROM work_sessions
		 WHERE user_id = $1 AND end_at IS NULL
		 LIMIT 1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open work session: %w", err)
	}
	return s, nil
}

// Close は進行中のセッションに終了時刻と所要時間を設定する。
// end_at IS NULL を条件にするため、同時に終了された場合は一方のみが成功する。
func (r *PostgresWorkSessionRepo) Close(ctx context.Context, id string, end time.Time, durationMinutes int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE work_sessions
		 SET end_at = $2, duration_minutes = $3, updated_at = $4
		 WHERE id = $1 AND end_at IS NULL`,
		id, end, durationMinutes, end,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close work session: %w", err)
	}
	return affectedOne(result)
}

// Update はセッションの日付・開始・終了・所要時間・説明を上書き更新する。
// prevを読み出した時点から終了時刻か更新日時が変わっている行は更新しない。
func (r *PostgresWorkSessionRepo) Update(ctx context.Context, s *model.Session, prev *model.Session) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE work_sessions
		 SET date_label = $2, start_at = $3, end_at = $4, duration_minutes = $5, description = $6, updated_at = $7
		 WHERE id = $1 AND updated_at = $8 AND end_at IS NOT DISTINCT FROM $9`,
		s.ID, s.Date, s.Start, nullTime(s.End), nullInt(s.DurationMinutes), nullString(s.Description), s.UpdatedAt,
		prev.UpdatedAt, nullTime(prev.End),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update work session: %w", err)
	}
	return affectedOne(result)
}

// Delete は指定IDのセッションを削除する。
func (r *PostgresWorkSessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM work_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete work session: %w", err)
	}
	return affectedOne(result)
}

// ListByUserAndDateRange はユーザーのセッションを日付ラベルの範囲で取得する。
// 日付ラベルは固定長のため文字列比較で範囲判定できる。
func (r *PostgresWorkSessionRepo) ListByUserAndDateRange(ctx context.Context, userID, startDate, endDate string) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workSessionColumns+`
		 FROM work_sessions
		 WHERE user_id = $1
		   AND ($2 = '' OR date_label >= $2)
		   AND ($3 = '' OR date_label <= $3)
		 ORDER BY start_at ASC, id ASC`,
		userID, startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions by user: %w", err)
	}
	return collectWorkSessions(rows)
}

// ListByDateRange は全ユーザーのセッションを日付ラベルの範囲で取得する。
func (r *PostgresWorkSessionRepo) ListByDateRange(ctx context.Context, startDate, endDate string) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workSessionColumns+`
		 FROM work_sessions
		 WHERE ($1 = '' OR date_label >= $1)
		   AND ($2 = '' OR date_label <= $2)
		 ORDER BY user_id ASC, start_at ASC, id ASC`,
		startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}
	return collectWorkSessions(rows)
}

func collectWorkSessions(rows *sql.Rows) ([]*model.Session, error) {
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanWorkSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work session rows: %w", err)
	}
	return sessions, nil
}

// scanWorkSession は1行を読み取り、時刻を正規タイムゾーンに揃える。
// ドライバはtimestamptzをUTCやセッションのTimeZoneで返すため再正規化が必要。
func scanWorkSession(row rowScanner) (*model.Session, error) {
	var (
		s           model.Session
		end         sql.NullTime
		duration    sql.NullInt64
		description sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.Date, &s.Start, &end, &duration, &description,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Start = timezone.ToCanonical(s.Start)
	if end.Valid {
		e := timezone.ToCanonical(end.Time)
		s.End = &e
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationMinutes = &d
	}
	if description.Valid {
		desc := description.String
		s.Description = &desc
	}
	return &s, nil
}

func affectedOne(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqUniqueViolation && pqErr.Constraint == constraint
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// compile-time interface check
var _ WorkSessionRepository = (*PostgresWorkSessionRepo)(nil)
