package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxSessionDataSize はsession.dataカラムに格納できる最大バイト数。
const MaxSessionDataSize = 50000

// Session はブラウザとサーバー側の認証状態を結び付けるセッションを表す。
// UserIDが空のセッションは匿名セッション。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	Data      SessionData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionCookieData はセッションCookieの属性をdataに保存する際の形式。
type SessionCookieData struct {
	OriginalMaxAge int64     `json:"originalMaxAge"` // ミリ秒
	Expires        time.Time `json:"expires"`
}

// SessionData はsession.dataに文字列として保存される属性の閉じた集合。
type SessionData struct {
	Cookie    SessionCookieData `json:"cookie"`
	UserID    string            `json:"userId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// IsAuthenticated はセッションにユーザーが紐付いているかどうかを返す。
func (s *Session) IsAuthenticated() bool {
	return s.UserID != ""
}

// IsExpired は指定時刻の時点でセッションが失効しているかどうかを返す。
// ExpiresAtちょうどの時刻も失効として扱う。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SyncData はセッションの各フィールドをDataへ反映する。
// 保存直前に呼び出す。
func (s *Session) SyncData(maxAge time.Duration) {
	s.Data.UserID = s.UserID
	s.Data.CreatedAt = s.CreatedAt
	s.Data.ExpiresAt = s.ExpiresAt
	s.Data.Cookie = SessionCookieData{
		OriginalMaxAge: maxAge.Milliseconds(),
		Expires:        s.ExpiresAt,
	}
}

// EncodeSessionData はSessionDataをストア保存用の文字列にシリアライズする。
func EncodeSessionData(d SessionData) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session data: %w", err)
	}
	if len(b) > MaxSessionDataSize {
		return "", fmt.Errorf("session data too large: %d bytes", len(b))
	}
	return string(b), nil
}

// DecodeSessionData はストアから読み出した文字列をSessionDataに復元する。
// 空文字列はゼロ値として扱う。
func DecodeSessionData(raw string) (SessionData, error) {
	var d SessionData
	if raw == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return d, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return d, nil
}
