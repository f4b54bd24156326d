package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ghlogin/internal/model"
)

// PostgresSessionRepo はPostgreSQLのsessionテーブルを使用したセッションリポジトリ。
// user_idはdataとは別カラムにも保持し、ユーザー単位の検索に使えるようにする。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Save はセッションを作成または上書きする。
func (r *PostgresSessionRepo) Save(ctx context.Context, session *model.Session) error {
	data, err := model.EncodeSessionData(session.Data)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO session (sid, user_id, expires, data, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		 ON CONFLICT (sid) DO UPDATE
		 SET user_id = EXCLUDED.user_id,
		     expires = EXCLUDED.expires,
		     data = EXCLUDED.data,
		     updated_at = EXCLUDED.updated_at`,
		session.ID, session.UserID, session.ExpiresAt, data, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var userID sql.NullString
	var data sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT sid, user_id, expires, data, created_at, updated_at
		 FROM session
		 WHERE sid = $1 AND expires > now()`,
		id,
	).Scan(&session.ID, &userID, &session.ExpiresAt, &data, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session.UserID = userID.String
	session.Data, err = model.DecodeSessionData(data.String)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
// 行が存在しない場合もエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session WHERE sid = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM session WHERE expires <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ SessionRepository     = (*PostgresSessionRepo)(nil)
	_ ExpiredSessionDeleter = (*PostgresSessionRepo)(nil)
)
