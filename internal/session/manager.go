// Package session はサーバー側セッションのライフサイクルと署名付きCookieを管理する。
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/hitoshi/ghlogin/internal/repository"
)

const (
	// CookieName はセッションIDを保持するCookie名。
	CookieName = "SID"
	// DefaultTTL はセッションの既定の有効期間。
	DefaultTTL = 24 * time.Hour

	sessionIDBytes = 32
)

// Options はManagerの設定。
type Options struct {
	TTL    time.Duration
	Secret string
	Secure bool // BASE_URLがhttpsのときtrue
	// falseの場合、匿名セッションはAttachUserまで保存もCookie発行もしない
	SaveUninitialized bool
}

// Recorder はセッションの作成・破棄を記録する。
type Recorder interface {
	RecordSessionCreated()
	RecordSessionDestroyed()
}

// Handle は1リクエスト分のセッションへの参照。
// リクエストをまたいで共有しない。
type Handle struct {
	session   *model.Session
	persisted bool
	isNew     bool
	destroyed bool
}

// ID はセッションIDを返す。
func (h *Handle) ID() string {
	return h.session.ID
}

// UserID はセッションに紐付くユーザーIDを返す。匿名の場合は空文字列。
func (h *Handle) UserID() string {
	if h == nil || h.destroyed || h.session == nil {
		return ""
	}
	return h.session.UserID
}

// IsNew はこのリクエストで新しく割り当てたセッションかどうかを返す。
func (h *Handle) IsNew() bool {
	return h.isNew
}

// ExpiresAt はセッションの失効時刻を返す。
func (h *Handle) ExpiresAt() time.Time {
	return h.session.ExpiresAt
}

// Manager はセッションの読み込み・作成・ユーザー紐付け・破棄を担う。
// セッション行とCookieの発行はこの型だけが行う。
type Manager struct {
	repo     repository.SessionRepository
	opts     Options
	recorder Recorder
	now      func() time.Time
}

// NewManager はManagerを生成する。recorderはnilでもよい。
func NewManager(repo repository.SessionRepository, opts Options, recorder Recorder) (*Manager, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Manager{
		repo:     repo,
		opts:     opts,
		recorder: recorder,
		now:      time.Now,
	}, nil
}

// LoadOrCreate はCookieのセッションを読み込む。
// Cookieが無い、署名が不正、期限切れ、ストアに無い場合は新しい匿名セッションを割り当てる。
// プロバイダーへの通信は行わない。
func (m *Manager) LoadOrCreate(w http.ResponseWriter, r *http.Request) (*Handle, error) {
	ctx := r.Context()

	if sid, ok := m.sessionIDFromRequest(r); ok {
		s, err := m.repo.FindByID(ctx, sid)
		if err != nil {
			return nil, model.NewStoreWriteError("load session", err)
		}
		if s != nil && !s.IsExpired(m.now()) {
			return &Handle{session: s, persisted: true}, nil
		}
	}

	sid, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := m.now().UTC()
	s := &model.Session{
		ID:        sid,
		ExpiresAt: now.Add(m.opts.TTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.SyncData(m.opts.TTL)
	h := &Handle{session: s, isNew: true}

	if !m.opts.SaveUninitialized {
		return h, nil
	}

	if err := m.repo.Save(ctx, s); err != nil {
		return nil, model.NewStoreWriteError("create session", err)
	}
	h.persisted = true
	m.setCookie(w, s)
	if m.recorder != nil {
		m.recorder.RecordSessionCreated()
	}
	return h, nil
}

// AttachUser はセッションにユーザーを紐付け、有効期限を延長して保存し、Cookieを再発行する。
func (m *Manager) AttachUser(ctx context.Context, w http.ResponseWriter, h *Handle, userID string) error {
	if h.destroyed {
		return fmt.Errorf("session %s is already destroyed", h.session.ID)
	}

	now := m.now().UTC()
	updated := *h.session
	updated.UserID = userID
	updated.ExpiresAt = now.Add(m.opts.TTL)
	updated.UpdatedAt = now
	updated.SyncData(m.opts.TTL)

	if err := m.repo.Save(ctx, &updated); err != nil {
		return model.NewStoreWriteError("save session", err)
	}

	wasPersisted := h.persisted
	h.session = &updated
	h.persisted = true
	m.setCookie(w, &updated)
	if !wasPersisted && m.recorder != nil {
		m.recorder.RecordSessionCreated()
	}
	return nil
}

// CurrentUserID はセッションに紐付くユーザーIDを返す。匿名の場合はfalse。
func (m *Manager) CurrentUserID(h *Handle) (string, bool) {
	id := h.UserID()
	return id, id != ""
}

// Destroy はセッション行を削除してからCookieを消去する。
// 削除に失敗した場合はCookieを残したままSessionDestroyErrorを返す。
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, h *Handle) error {
	if err := m.repo.DeleteByID(ctx, h.session.ID); err != nil {
		return model.NewSessionDestroyError(err)
	}

	h.destroyed = true
	m.clearCookie(w)
	if m.recorder != nil {
		m.recorder.RecordSessionDestroyed()
	}
	return nil
}

// sessionIDFromRequest はCookieの署名を検証し、セッションIDを返す。
func (m *Manager) sessionIDFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return m.verify(cookie.Value)
}

func (m *Manager) setCookie(w http.ResponseWriter, s *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(s.ID),
		Path:     "/",
		MaxAge:   int(m.opts.TTL.Seconds()),
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sign は "<sid>.<base64url(HMAC-SHA256(secret, sid))>" を返す。
func (m *Manager) sign(sid string) string {
	return sid + "." + base64.RawURLEncoding.EncodeToString(m.mac(sid))
}

func (m *Manager) verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	sid, sig := value[:i], value[i+1:]
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, m.mac(sid)) {
		return "", false
	}
	return sid, true
}

func (m *Manager) mac(sid string) []byte {
	h := hmac.New(sha256.New, []byte(m.opts.Secret))
	h.Write([]byte(sid))
	return h.Sum(nil)
}

// generateSessionID は暗号論的乱数でセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
