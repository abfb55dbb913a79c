package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/minami/naraigoto/internal/model"
)

// PostgresChildRepo はPostgreSQLを使用した子ども情報リポジトリ。
type PostgresChildRepo struct {
	db *sql.DB
}

// NewPostgresChildRepo はPostgresChildRepoを生成する。
func NewPostgresChildRepo(db *sql.DB) *PostgresChildRepo {
	return &PostgresChildRepo{db: db}
}

// FindByID は指定IDの子ども情報を取得する。見つからない場合はnilを返す。
func (r *PostgresChildRepo) FindByID(ctx context.Context, id string) (*model.Child, error) {
	child := &model.Child{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, parent_id, name, birth_year, notes, created_at, updated_at
		 FROM children WHERE id = $1`,
		id,
	).Scan(&child.ID, &child.ParentID, &child.Name, &child.BirthYear, &child.Notes,
		&child.CreatedAt, &child.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find child by ID: %w", err)
	}

	return child, nil
}

// ListByParentID は保護者の子ども一覧を登録順で返す。0件の場合は空スライスを返す。
func (r *PostgresChildRepo) ListByParentID(ctx context.Context, parentID string) ([]model.Child, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, parent_id, name, birth_year, notes, created_at, updated_at
		 FROM children WHERE parent_id = $1 ORDER BY created_at ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	children := []model.Child{}
	for rows.Next() {
		var c model.Child
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.BirthYear, &c.Notes,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan child row: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate child rows: %w", err)
	}

	return children, nil
}

// Create は子ども情報を作成する。
func (r *PostgresChildRepo) Create(ctx context.Context, child *model.Child) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO children (id, parent_id, name, birth_year, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		child.ID, child.ParentID, child.Name, child.BirthYear, child.Notes,
		child.CreatedAt, child.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert child: %w", err)
	}
	return nil
}

// Update は子ども情報を更新する。
func (r *PostgresChildRepo) Update(ctx context.Context, child *model.Child) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE children SET name = $2, birth_year = $3, notes = $4, updated_at = now()
		 WHERE id = $1`,
		child.ID, child.Name, child.BirthYear, child.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	return requireRowAffected(result, "child", child.ID)
}

// Delete は指定IDの子ども情報を削除する。
func (r *PostgresChildRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM children WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	return requireRowAffected(result, "child", id)
}

// DeleteByParentID は保護者の全子ども情報を削除する。
// 削除対象が0件でもエラーにしない（冪等）。
func (r *PostgresChildRepo) DeleteByParentID(ctx context.Context, parentID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM children WHERE parent_id = $1`,
		parentID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete children by parent ID: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ChildRepository = (*PostgresChildRepo)(nil)
