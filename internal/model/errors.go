// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind はエラーの分類を表す。HTTPステータスの決定に使う。
type ErrorKind string

const (
	// KindClientInput はリクエストパラメータの欠落・不正を表す。
	KindClientInput ErrorKind = "client_input"
	// KindProviderExchange は認可コード交換の応答が不正であることを表す。
	KindProviderExchange ErrorKind = "provider_exchange"
	// KindProviderRequest はGitHubへのリクエスト自体の失敗を表す。
	KindProviderRequest ErrorKind = "provider_request"
	// KindSessionConsistency はセッションが存在しないユーザーを参照していることを表す。
	KindSessionConsistency ErrorKind = "session_consistency"
	// KindSessionDestroy はセッション破棄時の永続化失敗を表す。
	KindSessionDestroy ErrorKind = "session_destroy"
	// KindStoreWrite はストアへの書き込み・読み込みの失敗を表す。
	KindStoreWrite ErrorKind = "store_write"
)

// 定義済みエラーコード
const (
	ErrCodeMissingCode        = "MISSING_CODE"
	ErrCodeProviderExchange   = "PROVIDER_EXCHANGE_FAILED"
	ErrCodeProviderRequest    = "PROVIDER_REQUEST_FAILED"
	ErrCodeInvalidSessionUser = "INVALID_SESSION_USER"
	ErrCodeSessionDestroy     = "SESSION_DESTROY_FAILED"
	ErrCodeStoreWrite         = "STORE_WRITE_FAILED"
)

// AppError は統一エラーフォーマットを表す。
// 原因カテゴリと対処方法を含み、元のエラーをラップする。
type AppError struct {
	Kind     ErrorKind
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, provider, session, system
	Action   string // ユーザー向け対処方法
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はラップしている元のエラーを返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewClientInputError はリクエストパラメータ不正エラーを生成する。
func NewClientInputError(message string) *AppError {
	return &AppError{
		Kind:     KindClientInput,
		Code:     ErrCodeMissingCode,
		Message:  message,
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewProviderExchangeError は認可コード交換の応答不正エラーを生成する。
// 調査用にGitHubの応答ボディをそのままメッセージに含める。
func NewProviderExchangeError(rawBody string) *AppError {
	return &AppError{
		Kind:     KindProviderExchange,
		Code:     ErrCodeProviderExchange,
		Message:  fmt.Sprintf("Bad response from GitHub. %s", rawBody),
		Category: "provider",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewProviderRequestError はGitHubへのリクエスト失敗エラーを生成する。
func NewProviderRequestError(endpoint string, err error) *AppError {
	return &AppError{
		Kind:     KindProviderRequest,
		Code:     ErrCodeProviderRequest,
		Message:  fmt.Sprintf("request to GitHub %s failed", endpoint),
		Category: "provider",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewSessionConsistencyError はセッションのuserIdに対応するユーザーが存在しない場合のエラーを生成する。
func NewSessionConsistencyError(userID string) *AppError {
	return &AppError{
		Kind:     KindSessionConsistency,
		Code:     ErrCodeInvalidSessionUser,
		Message:  fmt.Sprintf("Invalid Session userId: %s", userID),
		Category: "session",
		Action:   "Cookieを削除してからログインし直してください。",
	}
}

// NewSessionDestroyError はセッション破棄の失敗エラーを生成する。
func NewSessionDestroyError(err error) *AppError {
	return &AppError{
		Kind:     KindSessionDestroy,
		Code:     ErrCodeSessionDestroy,
		Message:  "failed to destroy session",
		Category: "session",
		Action:   "しばらく待ってから再度ログアウトしてください。",
		Err:      err,
	}
}

// NewStoreWriteError は永続化の失敗エラーを生成する。
func NewStoreWriteError(op string, err error) *AppError {
	return &AppError{
		Kind:     KindStoreWrite,
		Code:     ErrCodeStoreWrite,
		Message:  fmt.Sprintf("failed to %s", op),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// KindOf はエラーチェーンからErrorKindを取り出す。
// AppErrorを含まない場合は空文字列を返す。
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// StatusCode はエラーに対応するHTTPステータスコードを返す。
// クライアント入力エラーのみ400で、それ以外はすべて500。
func StatusCode(err error) int {
	if KindOf(err) == KindClientInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
