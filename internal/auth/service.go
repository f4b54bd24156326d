// Package auth はGitHub OAuthによるログインフローを提供する。
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/hitoshi/ghlogin/internal/session"
)

// コールバック結果のメトリクスラベル
const (
	OutcomeSuccess      = "success"
	OutcomeMissingCode  = "missing_code"
	OutcomeExchangeFail = "exchange_failed"
	OutcomeStoreFail    = "store_failed"
)

// OAuthClient はGitHubとの通信のインターフェース。
type OAuthClient interface {
	// AuthorizationURL は認可画面のURLを返す。
	AuthorizationURL() string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
	// FetchProfile はアクセストークンでプロフィールを取得する。
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// UserService はユーザーのライフサイクルを扱うインターフェース。
type UserService interface {
	Register(ctx context.Context, accessToken string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	FillName(ctx context.Context, u *model.User, login string) (*model.User, error)
	Remove(ctx context.Context, id string) error
}

// SessionManager はセッションへの書き込み操作のインターフェース。
type SessionManager interface {
	AttachUser(ctx context.Context, w http.ResponseWriter, h *session.Handle, userID string) error
	CurrentUserID(h *session.Handle) (string, bool)
	Destroy(ctx context.Context, w http.ResponseWriter, h *session.Handle) error
}

// FlowRecorder は認証フローのイベントを記録する。
type FlowRecorder interface {
	RecordLoginRedirect()
	RecordCallback(outcome string)
	RecordLogout()
}

// HomeView はログイン中ユーザーのホーム画面の内容。
type HomeView struct {
	Name    string
	Profile *Profile
}

// Service は認証フローのビジネスロジックを提供する。
// 状態はセッションとストアにのみ持ち、リクエスト間で共有するメモリ状態はない。
type Service struct {
	oauth    OAuthClient
	users    UserService
	sessions SessionManager
	recorder FlowRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(oauth OAuthClient, users UserService, sessions SessionManager, recorder FlowRecorder) *Service {
	return &Service{
		oauth:    oauth,
		users:    users,
		sessions: sessions,
		recorder: recorder,
	}
}

// LoginRedirectURL はログイン開始時のリダイレクト先を返す。
// 認証済みの場合は "/"、未認証の場合はGitHubの認可画面。
func (s *Service) LoginRedirectURL(h *session.Handle) string {
	if _, ok := s.sessions.CurrentUserID(h); ok {
		return "/"
	}
	if s.recorder != nil {
		s.recorder.RecordLoginRedirect()
	}
	return s.oauth.AuthorizationURL()
}

// HandleCallback はOAuthコールバックを処理する。
// コードをトークンに交換し、ユーザーを作成してセッションに紐付ける。
// コードが空の場合はユーザーもセッションも変更しない。
func (s *Service) HandleCallback(ctx context.Context, w http.ResponseWriter, h *session.Handle, code string) error {
	if code == "" {
		s.recordCallback(OutcomeMissingCode)
		return model.NewClientInputError("No GitHub code passed.")
	}

	// クライアントが切断してもGitHubへの呼び出しは中断しない
	token, err := s.oauth.ExchangeCode(context.WithoutCancel(ctx), code)
	if err != nil {
		s.recordCallback(OutcomeExchangeFail)
		return err
	}

	u, err := s.users.Register(ctx, token)
	if err != nil {
		s.recordCallback(OutcomeStoreFail)
		return err
	}

	if err := s.sessions.AttachUser(ctx, w, h, u.ID); err != nil {
		s.recordCallback(OutcomeStoreFail)
		return err
	}

	s.recordCallback(OutcomeSuccess)
	slog.Info("github authentication succeeded",
		slog.String("user_id", u.ID),
	)
	return nil
}

// Home はホーム画面の内容を組み立てる。匿名セッションの場合はnilを返す。
// 表示のたびにGitHubからプロフィールを取得し、名前が未設定ならloginで埋める。
func (s *Service) Home(ctx context.Context, h *session.Handle) (*HomeView, error) {
	userID, ok := s.sessions.CurrentUserID(h)
	if !ok {
		return nil, nil
	}

	u, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.oauth.FetchProfile(context.WithoutCancel(ctx), u.GitHubAccessToken)
	if err != nil {
		return nil, err
	}

	u, err = s.users.FillName(ctx, u, profile.Login)
	if err != nil {
		return nil, err
	}

	return &HomeView{Name: u.Name, Profile: profile}, nil
}

// Logout はユーザーを削除してからセッションを破棄する。
// 匿名セッションの場合は何もしない。
func (s *Service) Logout(ctx context.Context, w http.ResponseWriter, h *session.Handle) error {
	userID, ok := s.sessions.CurrentUserID(h)
	if !ok {
		return nil
	}

	u, err := s.currentUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.users.Remove(ctx, u.ID); err != nil {
		return err
	}

	if err := s.sessions.Destroy(ctx, w, h); err != nil {
		return err
	}

	if s.recorder != nil {
		s.recorder.RecordLogout()
	}
	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// currentUser はセッションのユーザーを取得する。
// 存在しない場合はSessionConsistencyErrorを返す。
func (s *Service) currentUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, model.NewSessionConsistencyError(userID)
	}
	return u, nil
}

func (s *Service) recordCallback(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordCallback(outcome)
	}
}
