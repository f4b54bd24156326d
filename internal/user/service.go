// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/ghlogin/internal/model"
	"github.com/hitoshi/ghlogin/internal/repository"
)

// Service はユーザーのライフサイクル（作成・表示名の補完・削除）を扱うサービス層。
// ストアの失敗はStoreWriteErrorとして返す。
type Service struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		now:      time.Now,
	}
}

// Register はアクセストークンを持つ新しいユーザーを作成する。
// GitHub上の同一人物かどうかは確認せず、呼び出しごとに新しい行を作る。
func (s *Service) Register(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	now := s.now().UTC()
	u := &model.User{
		ID:                uuid.New().String(),
		GitHubAccessToken: accessToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, model.NewStoreWriteError("create user", err)
	}

	slog.Info("ユーザーを作成しました", slog.String("user_id", u.ID))
	return u, nil
}

// Get は指定IDのユーザーを取得する。存在しない場合はnilを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreWriteError("load user", err)
	}
	return u, nil
}

// FillName は表示名が未設定の場合にGitHubのloginで埋めて保存する。
// 設定済みの場合は何もしない。
func (s *Service) FillName(ctx context.Context, u *model.User, login string) (*model.User, error) {
	if u.HasName() || login == "" {
		return u, nil
	}

	if err := s.userRepo.UpdateName(ctx, u.ID, login); err != nil {
		return nil, model.NewStoreWriteError("update user name", err)
	}

	updated := *u
	updated.Name = login
	updated.UpdatedAt = s.now().UTC()
	return &updated, nil
}

// Remove は指定IDのユーザーを削除する。
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		return model.NewStoreWriteError("delete user", err)
	}

	slog.Info("ユーザーを削除しました", slog.String("user_id", id))
	return nil
}
