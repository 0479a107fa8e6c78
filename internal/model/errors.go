// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, entry, insight, ai, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeEmptyContent       = "EMPTY_CONTENT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidDate        = "INVALID_DATE"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeEntryNotFound      = "ENTRY_NOT_FOUND"
	ErrCodeInsightNotFound    = "INSIGHT_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeRegistrationFailed = "REGISTRATION_FAILED"
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeAIUnavailable      = "AI_UNAVAILABLE"
	ErrCodeTranscribeFailed   = "TRANSCRIBE_FAILED"
	ErrCodeMissingCredential  = "MISSING_CREDENTIAL"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewEmptyContentError は本文が空の場合のエラーを生成する。
func NewEmptyContentError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyContent,
		Message:  "本文が空です。",
		Category: "validation",
		Action:   "本文を入力してください。",
	}
}

// NewInvalidRequestError は不正なリクエストボディのエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("不正なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidDateError は日付のパースに失敗した場合のエラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("不正な日付です: %s", value),
		Category: "validation",
		Action:   "YYYY-MM-DD形式で指定してください。",
	}
}

// NewWeakPasswordError はパスワードポリシー違反のエラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードは8文字以上で、英字と数字を両方含む必要があります。",
		Category: "validation",
		Action:   "パスワードを見直してください。",
	}
}

// NewEntryNotFoundError はエントリ未検出エラーを生成する。
// 他ユーザー所有のエントリへのアクセスも存在漏洩を防ぐため同じエラーにする。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定されたエントリが見つかりません: %s", entryID),
		Category: "entry",
		Action:   "エントリIDを確認してください。",
	}
}

// NewInsightNotFoundError はインサイト未生成エラーを生成する。
func NewInsightNotFoundError(weekStart string) *APIError {
	return &APIError{
		Code:     ErrCodeInsightNotFound,
		Message:  fmt.Sprintf("指定された週のインサイトはまだ生成されていません: %s", weekStart),
		Category: "insight",
		Action:   "インサイトの生成を実行してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRegistrationFailedError は外部IdPでのユーザー作成失敗エラーを生成する。
func NewRegistrationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  fmt.Sprintf("ユーザー登録に失敗しました: %s", reason),
		Category: "auth",
		Action:   "入力内容を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewAIUnavailableError は生成AI呼び出し失敗エラーを生成する。
// 外部APIの詳細はログにのみ記録し、ユーザーには一般的なメッセージを返す。
func NewAIUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAIUnavailable,
		Message:  "AI処理に失敗しました。",
		Category: "ai",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTranscribeFailedError は音声文字起こし失敗エラーを生成する。
func NewTranscribeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeTranscribeFailed,
		Message:  "音声の文字起こしに失敗しました。",
		Category: "ai",
		Action:   "別の形式で録音するか、しばらく待ってから再度お試しください。",
	}
}

// NewMissingCredentialError は外部API資格情報が未設定の場合のエラーを生成する。
func NewMissingCredentialError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredential,
		Message:  fmt.Sprintf("サーバーの設定が不足しています: %s", name),
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}
