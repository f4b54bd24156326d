package user

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hitoshi/ghlogin/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	createFn     func(ctx context.Context, user *model.User) error
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	updateNameFn func(ctx context.Context, id, name string) error
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) UpdateName(ctx context.Context, id, name string) error {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, id, name)
	}
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// --- テスト ---

// TestService_Register はトークン付きで名前未設定のユーザーが作成されることを検証する。
func TestService_Register(t *testing.T) {
	var created *model.User
	svc := NewService(&mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	})

	u, err := svc.Register(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created == nil || created != u {
		t.Fatal("expected repository Create to receive the returned user")
	}
	if u.GitHubAccessToken != "abc" {
		t.Errorf("GitHubAccessToken = %q, want %q", u.GitHubAccessToken, "abc")
	}
	if u.Name != "" {
		t.Errorf("Name = %q, want empty", u.Name)
	}
	if _, err := uuid.Parse(u.ID); err != nil {
		t.Errorf("ID should be a UUID, got %q", u.ID)
	}
}

// TestService_Register_CreatesNewRowEachTime は同じトークンでも毎回別ユーザーになることを検証する。
func TestService_Register_CreatesNewRowEachTime(t *testing.T) {
	count := 0
	svc := NewService(&mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			count++
			return nil
		},
	})

	u1, _ := svc.Register(context.Background(), "abc")
	u2, _ := svc.Register(context.Background(), "abc")
	if count != 2 {
		t.Errorf("Create called %d times, want 2", count)
	}
	if u1.ID == u2.ID {
		t.Error("expected distinct user IDs")
	}
}

func TestService_Register_EmptyToken(t *testing.T) {
	svc := NewService(&mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			t.Error("Create should not be called")
			return nil
		},
	})
	if _, err := svc.Register(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestService_Register_StoreError(t *testing.T) {
	svc := NewService(&mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return errors.New("db down")
		},
	})
	_, err := svc.Register(context.Background(), "abc")
	if model.KindOf(err) != model.KindStoreWrite {
		t.Errorf("kind = %q, want %q", model.KindOf(err), model.KindStoreWrite)
	}
}

func TestService_Get(t *testing.T) {
	svc := NewService(&mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id == "known" {
				return &model.User{ID: id, GitHubAccessToken: "abc"}, nil
			}
			return nil, nil
		},
	})

	u, err := svc.Get(context.Background(), "known")
	if err != nil || u == nil || u.ID != "known" {
		t.Errorf("Get(known) = %+v, %v", u, err)
	}

	u, err = svc.Get(context.Background(), "unknown")
	if err != nil || u != nil {
		t.Errorf("Get(unknown) = %+v, %v, want nil, nil", u, err)
	}
}

// TestService_FillName は未設定の名前だけが更新されることを検証する。
func TestService_FillName(t *testing.T) {
	var updated []string
	svc := NewService(&mockUserRepo{
		updateNameFn: func(ctx context.Context, id, name string) error {
			updated = append(updated, name)
			return nil
		},
	})

	u := &model.User{ID: "u1", GitHubAccessToken: "abc"}
	got, err := svc.FillName(context.Background(), u, "alice")
	if err != nil {
		t.Fatalf("FillName() error = %v", err)
	}
	if got.Name != "alice" {
		t.Errorf("Name = %q, want %q", got.Name, "alice")
	}

	// 2回目は既に名前があるので更新しない
	got, err = svc.FillName(context.Background(), got, "renamed")
	if err != nil {
		t.Fatalf("FillName() error = %v", err)
	}
	if got.Name != "alice" {
		t.Errorf("Name = %q, want %q", got.Name, "alice")
	}
	if len(updated) != 1 {
		t.Errorf("UpdateName called %d times, want 1", len(updated))
	}
}

func TestService_FillName_StoreError(t *testing.T) {
	svc := NewService(&mockUserRepo{
		updateNameFn: func(ctx context.Context, id, name string) error {
			return errors.New("db down")
		},
	})
	_, err := svc.FillName(context.Background(), &model.User{ID: "u1"}, "alice")
	if model.KindOf(err) != model.KindStoreWrite {
		t.Errorf("kind = %q, want %q", model.KindOf(err), model.KindStoreWrite)
	}
}

func TestService_Remove(t *testing.T) {
	var deleted string
	svc := NewService(&mockUserRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	})
	if err := svc.Remove(context.Background(), "u1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if deleted != "u1" {
		t.Errorf("deleted = %q, want %q", deleted, "u1")
	}
}

func TestService_Remove_StoreError(t *testing.T) {
	svc := NewService(&mockUserRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			return errors.New("db down")
		},
	})
	err := svc.Remove(context.Background(), "u1")
	if model.KindOf(err) != model.KindStoreWrite {
		t.Errorf("kind = %q, want %q", model.KindOf(err), model.KindStoreWrite)
	}
}
