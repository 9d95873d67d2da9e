package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, conflict, not_found, authorization, auth, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation    = "validation"
	CategoryConflict      = "conflict"
	CategoryNotFound      = "not_found"
	CategoryAuthorization = "authorization"
	CategoryAuth          = "auth"
	CategorySystem        = "system"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidTimeRange     = "INVALID_TIME_RANGE"
	ErrCodeInvalidTimestamp     = "INVALID_TIMESTAMP"
	ErrCodeInvalidDate          = "INVALID_DATE"
	ErrCodeInvalidDateRange     = "INVALID_DATE_RANGE"
	ErrCodeInvalidTimezone      = "INVALID_TIMEZONE"
	ErrCodeInvalidAvatarURL     = "INVALID_AVATAR_URL"
	ErrCodeRequiredField        = "REQUIRED_FIELD"
	ErrCodeSessionAlreadyOpen   = "SESSION_ALREADY_OPEN"
	ErrCodeSessionAlreadyClosed = "SESSION_ALREADY_CLOSED"
	ErrCodeSessionModified      = "SESSION_MODIFIED"
	ErrCodeSessionNotFound      = "SESSION_NOT_FOUND"
	ErrCodeSessionForbidden     = "SESSION_FORBIDDEN"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeCSRFTokenInvalid     = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidTimeRangeError は終了時刻が開始時刻以前の場合のエラーを生成する。
func NewInvalidTimeRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  "終了時刻は開始時刻より後である必要があります。",
		Category: CategoryValidation,
		Action:   "開始時刻と終了時刻を確認してください。",
	}
}

// NewInvalidTimestampError は時刻を解釈できない場合のエラーを生成する。
func NewInvalidTimestampError(field, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimestamp,
		Message:  fmt.Sprintf("%s の時刻形式が不正です: %s", field, value),
		Category: CategoryValidation,
		Action:   "RFC 3339 形式、または YYYY-MM-DDTHH:MM 形式で指定してください。",
	}
}

// NewInvalidDateError は日付ラベルの形式が不正な場合のエラーを生成する。
func NewInvalidDateError(field, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("%s の日付形式が不正です: %s", field, value),
		Category: CategoryValidation,
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewInvalidDateRangeError は日付範囲の開始が終了より後の場合のエラーを生成する。
func NewInvalidDateRangeError(start, end string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDateRange,
		Message:  fmt.Sprintf("開始日が終了日より後になっています: %s > %s", start, end),
		Category: CategoryValidation,
		Action:   "startDate は endDate 以前の日付を指定してください。",
	}
}

// NewInvalidTimezoneError は未対応のタイムゾーンが指定された場合のエラーを生成する。
func NewInvalidTimezoneError(zone string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimezone,
		Message:  fmt.Sprintf("未対応のタイムゾーンです: %s", zone),
		Category: CategoryValidation,
		Action:   "Asia/Tokyo のようなゾーン名、または +09:00 のようなオフセットを指定してください。",
	}
}

// NewInvalidAvatarURLError はアバターURLが不正な場合のエラーを生成する。
func NewInvalidAvatarURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  fmt.Sprintf("アバターURLが不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "公開されている https:// または http:// のURLを指定してください。",
	}
}

// NewRequiredFieldError は必須フィールドをクリアしようとした場合のエラーを生成する。
func NewRequiredFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeRequiredField,
		Message:  fmt.Sprintf("%s は削除できません。", field),
		Category: CategoryValidation,
		Action:   "値を指定するか、フィールドを省略してください。",
	}
}

// NewSessionAlreadyOpenError は進行中のセッションが既に存在する場合のエラーを生成する。
func NewSessionAlreadyOpenError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionAlreadyOpen,
		Message:  "進行中のセッションが既にあります。",
		Category: CategoryConflict,
		Action:   "現在のセッションを終了してから開始してください。",
	}
}

// NewSessionAlreadyClosedError はセッションが既に終了している場合のエラーを生成する。
func NewSessionAlreadyClosedError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionAlreadyClosed,
		Message:  fmt.Sprintf("セッションは既に終了しています: %s", sessionID),
		Category: CategoryConflict,
		Action:   "最新の状態を再取得してください。",
	}
}

// NewSessionModifiedError は読み出し後にセッションが他のリクエストで変更された場合のエラーを生成する。
func NewSessionModifiedError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionModified,
		Message:  fmt.Sprintf("セッションが他の操作で更新されました: %s", sessionID),
		Category: CategoryConflict,
		Action:   "最新の状態を再取得してから再度更新してください。",
	}
}

// NewSessionNotFoundError はセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: CategoryNotFound,
		Action:   "セッションIDを確認してください。",
	}
}

// NewSessionForbiddenError は他ユーザーのセッションを操作しようとした場合のエラーを生成する。
func NewSessionForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionForbidden,
		Message:  "このセッションを操作する権限がありません。",
		Category: CategoryAuthorization,
		Action:   "自分のセッションのみ変更できます。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: CategoryNotFound,
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は認証されていない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: CategoryAuthorization,
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はリクエスト回数が上限を超えた場合のエラーを生成する。
func NewRateLimitedError(retryAfterSec int) *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: CategorySystem,
		Action:   fmt.Sprintf("%d秒ほど待ってから再度お試しください。", retryAfterSec),
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
