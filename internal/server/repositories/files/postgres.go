package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/dbx"
	"github.com/dropgate/dropgate/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new metadata row.
func (r *PostgresRepository) Insert(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, owner_id, file_name, storage_key, size, content_type, password_hash, batch_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.OwnerID, file.FileName, file.StorageKey, file.Size,
		file.ContentType, file.PasswordHash, file.BatchID, file.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the row for id, or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `
		SELECT id, owner_id, file_name, storage_key, size, content_type, password_hash, batch_id, downloads, expires_at, created_at
		FROM files WHERE id=$1
	`
	result := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&result.ID, &result.OwnerID, &result.FileName, &result.StorageKey, &result.Size,
		&result.ContentType, &result.PasswordHash, &result.BatchID, &result.Downloads,
		&result.ExpiresAt, &result.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return result, nil
}

// IncrementDownloads bumps the download counter after a successful transfer.
// Exactly one row must be affected.
func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE files SET downloads = downloads + 1 WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

// SelectExpired returns up to limit rows whose expiry has passed, oldest
// first, so the cleanup sweep can purge their storage keys.
func (r *PostgresRepository) SelectExpired(ctx context.Context, now time.Time, limit int) ([]*models.File, error) {
	query := `
		SELECT id, owner_id, file_name, storage_key, size, content_type, password_hash, batch_id, downloads, expires_at, created_at
		FROM files WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		var item models.File
		if err := rows.Scan(
			&item.ID, &item.OwnerID, &item.FileName, &item.StorageKey, &item.Size,
			&item.ContentType, &item.PasswordHash, &item.BatchID, &item.Downloads,
			&item.ExpiresAt, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByID removes the metadata row. Callers must purge the storage key
// first; a dangling row is recoverable, orphaned bytes are not.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
