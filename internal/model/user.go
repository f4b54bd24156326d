// Package model はドメインモデルを定義する。
package model

import "time"

// User はGitHubでログインしたユーザーを表す。
// ログイン（OAuthコールバック成功）ごとに1レコード作成される。
type User struct {
	ID                string
	GitHubAccessToken string
	Name              string // 初回のホーム表示時にGitHubのloginで埋める
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasName は表示名がキャッシュ済みかどうかを返す。
func (u *User) HasName() bool {
	return u.Name != ""
}
