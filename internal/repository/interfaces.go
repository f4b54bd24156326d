// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/ghlogin/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// UpdateName はユーザーの表示名を更新する。
	UpdateName(ctx context.Context, id, name string) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 各操作は1行単位でアトミックであればよく、行をまたぐトランザクションは要求しない。
type SessionRepository interface {
	// Save はセッションを作成または上書きする。
	Save(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しない、または期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// ExpiredSessionDeleter は期限切れセッションを一括削除できるストアのインターフェース。
// キーのTTLで自動失効するストアは実装しない。
type ExpiredSessionDeleter interface {
	// DeleteExpired はexpiresが現在時刻以前のセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
