// Package files persists file metadata rows. The transfer core never reads
// these rows; the HTTP layer and the cleanup sweep do.
package files

import (
	"context"
	"time"

	"github.com/dropgate/dropgate/internal/server/models"
)

// Repository is the storage contract for file metadata.
type Repository interface {
	Insert(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	IncrementDownloads(ctx context.Context, id string) error
	SelectExpired(ctx context.Context, now time.Time, limit int) ([]*models.File, error)
	DeleteByID(ctx context.Context, id string) error
}
