package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pictoria/service-api/internal/generation/entity"
)

// expected table schema (both drivers accept it):
// CREATE TABLE generated_images (
//   id VARCHAR(27) PRIMARY KEY,   -- KSUID, sortable by creation time
//   user_id TEXT NOT NULL,
//   model TEXT NOT NULL,
//   prompt TEXT NOT NULL,
//   image_url TEXT NOT NULL,
//   seed_url TEXT,
//   created_at TIMESTAMP NOT NULL
// );

type ImageRepo struct {
	db *sqlx.DB
}

func NewImageRepo(db *sqlx.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

const ddl = `
CREATE TABLE IF NOT EXISTS generated_images (
  id VARCHAR(27) PRIMARY KEY,
  user_id TEXT NOT NULL,
  model TEXT NOT NULL,
  prompt TEXT NOT NULL,
  image_url TEXT NOT NULL,
  seed_url TEXT,
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generated_images_user_id ON generated_images(user_id, created_at);
`

func (r *ImageRepo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// SaveMany inserts every image of one request in a single transaction.
func (r *ImageRepo) SaveMany(ctx context.Context, images []entity.GeneratedImage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := tx.Rebind(`INSERT INTO generated_images (id, user_id, model, prompt, image_url, seed_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, img := range images {
		if _, err := tx.ExecContext(ctx, q, img.ID, img.UserID, img.Model, img.Prompt, img.ImageURL, img.SeedURL, img.CreatedAt); err != nil {
			return fmt.Errorf("insert generated image %s: %w", img.ID, err)
		}
	}
	return tx.Commit()
}

// ListByUser returns the user's images, newest first.
func (r *ImageRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]entity.GeneratedImage, error) {
	rows := []entity.GeneratedImage{}
	q := r.db.Rebind(`SELECT id, user_id, model, prompt, image_url, seed_url, created_at
		FROM generated_images WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list generated images: %w", err)
	}
	return rows, nil
}

func (r *ImageRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM generated_images WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("count generated images: %w", err)
	}
	return n, nil
}

// Delete removes the image only when it is owned by userID.
func (r *ImageRepo) Delete(ctx context.Context, id, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM generated_images WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete generated image %s: %w", id, err)
	}
	return res.RowsAffected()
}
