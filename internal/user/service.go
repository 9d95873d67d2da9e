// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/clock"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
	"github.com/hitoshi/timecard/internal/security"
	"github.com/hitoshi/timecard/internal/timezone"
)

// maxNameLength は表示名の最大文字数。
const maxNameLength = 100

// Profile は外部IdPから受け取ったユーザー情報。
// 空の項目は「未提供」として扱う。
type Profile struct {
	ExternalID string
	Name       string
	Email      string
	AvatarURL  string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	guard    security.URLGuard
	clock    clock.Clock
	newID    func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, guard security.URLGuard, clk clock.Clock) *Service {
	return &Service{
		userRepo: userRepo,
		guard:    guard,
		clock:    clk,
		newID:    uuid.NewString,
	}
}

// GetOrCreateUser は外部IDに対応するユーザーを返す。存在しなければ作成する。
// 既存ユーザーは、提供された項目のうち値が変わったものだけを更新する。
func (s *Service) GetOrCreateUser(ctx context.Context, profile Profile) (*model.User, error) {
	if profile.ExternalID == "" {
		return nil, model.NewRequiredFieldError("externalId")
	}

	avatarURL := s.acceptableAvatar(profile.ExternalID, profile.AvatarURL)

	existing, err := s.userRepo.FindByExternalID(ctx, profile.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	now := s.clock.Now().UTC()

	if existing == nil {
		user, err := s.create(ctx, profile, avatarURL, now)
		if !errors.Is(err, repository.ErrUserExists) {
			return user, err
		}
		// 同時の初回ログインで先に作成されたユーザーを使う
		existing, err = s.userRepo.FindByExternalID(ctx, profile.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", repository.ErrUserExists)
		}
	}

	changed := false
	if profile.Email != "" && profile.Email != existing.Email {
		existing.Email = profile.Email
		changed = true
	}
	if profile.Name != "" && profile.Name != existing.Name {
		existing.Name = profile.Name
		changed = true
	}
	if avatarURL != "" && avatarURL != existing.AvatarURL {
		existing.AvatarURL = avatarURL
		changed = true
	}
	if !changed {
		return existing, nil
	}

	existing.UpdatedAt = now
	if err := s.userRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return existing, nil
}

func (s *Service) create(ctx context.Context, profile Profile, avatarURL string, now time.Time) (*model.User, error) {
	user := &model.User{
		ID:         s.newID(),
		ExternalID: profile.ExternalID,
		Email:      profile.Email,
		Name:       profile.Name,
		AvatarURL:  avatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	slog.Info("ユーザーを作成しました",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// GetUser は指定IDのユーザーを返す。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile は表示名・表示タイムゾーン・アバターURLを部分更新する。
// nullまたは空文字を指定した項目はクリアする。
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch model.UserPatch) (*model.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Name.Set {
		name := strings.TrimSpace(valueOrEmpty(patch.Name))
		if len([]rune(name)) > maxNameLength {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("表示名は%d文字以内で指定してください", maxNameLength))
		}
		user.Name = name
	}

	if patch.Timezone.Set {
		zone := strings.TrimSpace(valueOrEmpty(patch.Timezone))
		if zone != "" && !timezone.IsKnownZone(zone) {
			return nil, model.NewInvalidTimezoneError(zone)
		}
		user.Timezone = zone
	}

	if patch.AvatarURL.Set {
		avatar := strings.TrimSpace(valueOrEmpty(patch.AvatarURL))
		if avatar != "" {
			if err := s.guard.ValidateURL(avatar); err != nil {
				return nil, model.NewInvalidAvatarURLError(err.Error())
			}
		}
		user.AvatarURL = avatar
	}

	user.UpdatedAt = s.clock.Now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	slog.Info("プロフィールを更新しました",
		slog.String("user_id", userID),
	)
	return user, nil
}

// DisplayZone はユーザーの表示タイムゾーンIDを返す。未設定の場合は空文字（UTC）。
func (s *Service) DisplayZone(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Timezone, nil
}

// acceptableAvatar はIdP由来のアバターURLを検証し、不正な場合は空文字を返す。
// ログインそのものは失敗させない。
func (s *Service) acceptableAvatar(externalID, avatarURL string) string {
	if avatarURL == "" {
		return ""
	}
	if err := s.guard.ValidateURL(avatarURL); err != nil {
		slog.Warn("IdPのアバターURLを破棄しました",
			slog.String("external_id", externalID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return avatarURL
}

func valueOrEmpty(o model.Optional[string]) string {
	if o.Value == nil {
		return ""
	}
	return *o.Value
}

