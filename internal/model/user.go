// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ExternalIDは外部IdP（Google）が発行する安定した識別子（sub）。
// Timezoneが空の場合、表示はUTCで行う。
type User struct {
	ID         string
	ExternalID string
	Email      string
	Name       string
	Timezone   string
	AvatarURL  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserPatch はユーザープロフィールの部分更新内容を表す。
type UserPatch struct {
	Name      Optional[string] `json:"name"`
	Timezone  Optional[string] `json:"timezone"`
	AvatarURL Optional[string] `json:"avatarUrl"`
}

// AuthSession はユーザーのログインセッションを表す。
type AuthSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
