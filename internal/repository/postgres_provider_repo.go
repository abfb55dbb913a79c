package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/minami/naraigoto/internal/model"
)

// providerColumns はprovidersテーブルのSELECT対象カラム。
const providerColumns = `id, owner_id, business_name, owner_name, email, phone, city, address,
	website_url, description, status, reject_reason, verified,
	logo_data, logo_mime, logo_fetched_at, profile_image_path, created_at, updated_at`

// PostgresProviderRepo はPostgreSQLを使用した教室プロフィールリポジトリ。
type PostgresProviderRepo struct {
	db *sql.DB
}

// NewPostgresProviderRepo はPostgresProviderRepoを生成する。
func NewPostgresProviderRepo(db *sql.DB) *PostgresProviderRepo {
	return &PostgresProviderRepo{db: db}
}

// FindByID は指定IDの教室プロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProviderRepo) FindByID(ctx context.Context, id string) (*model.ProviderRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1`,
		id,
	)
	provider, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find provider by ID: %w", err)
	}
	return provider, nil
}

// FindByOwnerID は所有者のidentity IDで教室プロフィールを検索する。
// 該当行なしは正常系としてnilを返す。
func (r *PostgresProviderRepo) FindByOwnerID(ctx context.Context, ownerID string) (*model.ProviderRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE owner_id = $1`,
		ownerID,
	)
	provider, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find provider by owner ID: %w", err)
	}
	return provider, nil
}

// Create は教室プロフィールを作成する。
func (r *PostgresProviderRepo) Create(ctx context.Context, p *model.ProviderRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO providers (id, owner_id, business_name, owner_name, email, phone, city, address,
			website_url, description, status, reject_reason, verified, profile_image_path, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.OwnerID, p.BusinessName, p.OwnerName, p.Email, p.Phone, p.City, p.Address,
		p.WebsiteURL, p.Description, p.Status, p.RejectReason, p.Verified, p.ProfileImagePath,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert provider: %w", err)
	}
	return nil
}

// Update は教室プロフィールの事業情報を更新する。審査状態は変更しない。
func (r *PostgresProviderRepo) Update(ctx context.Context, p *model.ProviderRecord) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE providers
		 SET business_name = $2, owner_name = $3, email = $4, phone = $5, city = $6,
		     address = $7, website_url = $8, description = $9, updated_at = now()
		 WHERE id = $1`,
		p.ID, p.BusinessName, p.OwnerName, p.Email, p.Phone, p.City,
		p.Address, p.WebsiteURL, p.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}
	return requireRowAffected(result, "provider", p.ID)
}

// UpdateStatus は審査状態と却下理由を更新する。
// 承認時には掲載済みフラグ（verified）も立てる。
func (r *PostgresProviderRepo) UpdateStatus(ctx context.Context, id string, status model.ProviderStatus, rejectReason string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE providers
		 SET status = $2, reject_reason = $3, verified = ($2 = 'approved'), updated_at = now()
		 WHERE id = $1`,
		id, status, rejectReason,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider status: %w", err)
	}
	return requireRowAffected(result, "provider", id)
}

// UpdateLogo はロゴデータと取得日時を更新する。
func (r *PostgresProviderRepo) UpdateLogo(ctx context.Context, id string, data []byte, mime string, fetchedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE providers SET logo_data = $2, logo_mime = $3, logo_fetched_at = $4, updated_at = now()
		 WHERE id = $1`,
		id, data, mime, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider logo: %w", err)
	}
	return requireRowAffected(result, "provider", id)
}

// UpdateProfileImagePath はファイルストレージ上のプロフィール画像パスを更新する。
func (r *PostgresProviderRepo) UpdateProfileImagePath(ctx context.Context, id string, path string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE providers SET profile_image_path = $2, updated_at = now() WHERE id = $1`,
		id, path,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider profile image path: %w", err)
	}
	return requireRowAffected(result, "provider", id)
}

// ListByStatus は指定した審査状態の教室プロフィール一覧を申請順で返す。
func (r *PostgresProviderRepo) ListByStatus(ctx context.Context, status model.ProviderStatus) ([]*model.ProviderRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE status = $1 ORDER BY created_at ASC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers by status: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// SearchApproved は承認済みの教室を検索する。
// cityは完全一致、keywordは事業名と説明文に対する部分一致で絞り込む。
func (r *PostgresProviderRepo) SearchApproved(ctx context.Context, city, keyword string, limit int) ([]*model.ProviderRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM providers
		 WHERE status = 'approved'
		   AND ($1 = '' OR city = $1)
		   AND ($2 = '' OR business_name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		 ORDER BY business_name ASC
		 LIMIT $3`,
		city, keyword, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search approved providers: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// ListNeedingLogoFetch はロゴ取得が必要な承認済み教室を排他的に取得する。
// logo_fetched_at IS NULL（未取得）を優先し、次に取得が古い順に処理する。
func (r *PostgresProviderRepo) ListNeedingLogoFetch(ctx context.Context, refreshAfter time.Duration, limit int) ([]*model.ProviderRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	cutoff := time.Now().Add(-refreshAfter)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM providers
		 WHERE status = 'approved'
		   AND website_url <> ''
		   AND (logo_fetched_at IS NULL OR logo_fetched_at < $1)
		 ORDER BY logo_fetched_at ASC NULLS FIRST
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers needing logo fetch: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProvider は1行をProviderRecordに読み取る。
func scanProvider(row rowScanner) (*model.ProviderRecord, error) {
	p := &model.ProviderRecord{}
	var logoFetchedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.BusinessName, &p.OwnerName, &p.Email, &p.Phone, &p.City, &p.Address,
		&p.WebsiteURL, &p.Description, &p.Status, &p.RejectReason, &p.Verified,
		&p.LogoData, &p.LogoMime, &logoFetchedAt, &p.ProfileImagePath, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if logoFetchedAt.Valid {
		t := logoFetchedAt.Time
		p.LogoFetchedAt = &t
	}

	return p, nil
}

// scanProviders は複数行をProviderRecordのスライスに読み取る。
func scanProviders(rows *sql.Rows) ([]*model.ProviderRecord, error) {
	providers := []*model.ProviderRecord{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider rows: %w", err)
	}
	return providers, nil
}

// requireRowAffected は更新系クエリで1件以上の行が影響を受けたことを確認する。
func requireRowAffected(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// compile-time interface check
var _ ProviderRepository = (*PostgresProviderRepo)(nil)
