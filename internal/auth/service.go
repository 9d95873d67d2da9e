// Package auth はOAuth認証フローとログインセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/timecard/internal/clock"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
	"github.com/hitoshi/timecard/internal/user"
)

// ErrSessionRequired はセッションIDが指定されていない場合のエラー。
var ErrSessionRequired = errors.New("session ID is required")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// UserDirectory は認証サービスが必要とするユーザー管理の操作。
type UserDirectory interface {
	GetOrCreateUser(ctx context.Context, profile user.Profile) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	users       UserDirectory
	sessionRepo repository.AuthSessionRepository
	clock       clock.Clock
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	users UserDirectory,
	sessionRepo repository.AuthSessionRepository,
	clk clock.Clock,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		users:       users,
		sessionRepo: sessionRepo,
		clock:       clk,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、ログインセッションを発行する。
// 初回ログインのユーザーはここで作成される。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.AuthSession, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	u, err := s.users.GetOrCreateUser(ctx, user.Profile{
		ExternalID: info.ExternalID,
		Name:       info.Name,
		Email:      info.Email,
		AvatarURL:  info.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	session, err := s.createSession(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", u.ID),
	)
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効または期限切れの場合はUNAUTHORIZEDを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	u, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUserNotFound {
			return nil, model.NewUnauthorizedError()
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) createSession(ctx context.Context, userID string) (*model.AuthSession, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.clock.Now().UTC()
	session := &model.AuthSession{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
