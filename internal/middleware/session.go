// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/ghlogin/internal/session"
)

// SessionLoader はリクエストのセッションを読み込む、または新規に割り当てる。
// session.Managerが実装する。
type SessionLoader interface {
	LoadOrCreate(w http.ResponseWriter, r *http.Request) (*session.Handle, error)
}

// NewSessionMiddleware はすべてのリクエストにセッションを割り当て、
// ハンドルをリクエストコンテキストに注入するミドルウェアを返す。
// 匿名リクエストも拒否しない。ストアの失敗は500を返す。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, err := loader.LoadOrCreate(w, r)
			if err != nil {
				WriteAppError(w, r, err)
				return
			}

			ctx := session.NewContext(r.Context(), h)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストのセッションからユーザーIDを取得する。
// 匿名セッション、またはセッションミドルウェアを通過していない場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	h, ok := session.FromContext(ctx)
	if !ok {
		return "", fmt.Errorf("session not found in context")
	}
	userID := h.UserID()
	if userID == "" {
		return "", fmt.Errorf("user ID not found in session")
	}
	return userID, nil
}
