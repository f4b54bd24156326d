// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ghlogin/internal/auth"
	"github.com/hitoshi/ghlogin/internal/middleware"
	"github.com/hitoshi/ghlogin/internal/session"
	"github.com/hitoshi/ghlogin/internal/view"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginRedirectURL(h *session.Handle) string
	HandleCallback(ctx context.Context, w http.ResponseWriter, h *session.Handle, code string) error
	Home(ctx context.Context, h *session.Handle) (*auth.HomeView, error)
	Logout(ctx context.Context, w http.ResponseWriter, h *session.Handle) error
}

// HomeRenderer はホーム画面を描画するインターフェース。
type HomeRenderer interface {
	RenderHome(w io.Writer, page view.HomePage) error
}

// AuthHandler はログインフローのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer HomeRenderer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer HomeRenderer) *AuthHandler {
	return &AuthHandler{
		service:  service,
		renderer: renderer,
	}
}

// Home はホーム画面を表示する。
// GET /
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	home, err := h.service.Home(r.Context(), sess)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	page := view.HomePage{}
	if home != nil {
		page.User = &view.HomeUser{Name: home.Name, Profile: home.Profile}
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderHome(&buf, page); err != nil {
		slog.Error("failed to render home", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Login はGitHubの認可画面へリダイレクトする。認証済みの場合はホームへ戻す。
// GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	http.Redirect(w, r, h.service.LoginRedirectURL(sess), http.StatusFound)
}

// Callback はGitHubからのOAuthコールバックを処理する。
// GET /github?code=
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	code := r.URL.Query().Get("code")
	if err := h.service.HandleCallback(r.Context(), w, sess, code); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout はユーザーとセッションを削除してホームへリダイレクトする。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), w, sess); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// sessionFromRequest はセッションミドルウェアが注入したハンドルを取り出す。
// 見つからない場合は500を書き込んでfalseを返す。
func sessionFromRequest(w http.ResponseWriter, r *http.Request) (*session.Handle, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		slog.Error("session handle missing from request context",
			slog.String("path", r.URL.Path),
		)
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return sess, true
}
