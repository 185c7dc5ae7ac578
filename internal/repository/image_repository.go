package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"photovault/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

const imageColumns = `
	id, user_id, filename, original_filename, preview_path, full_path,
	preview_size, full_size, mime_type, width, height, created_at, updated_at
`

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// Create inserts image and returns the stored row with its timestamps.
func (r *ImageRepository) Create(ctx context.Context, image models.Image) (models.Image, error) {
	const query = `
		INSERT INTO images (
			id, user_id, filename, original_filename, preview_path, full_path,
			preview_size, full_size, mime_type, width, height, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
		)
		RETURNING` + imageColumns

	row := r.pool.QueryRow(ctx, query,
		image.ID,
		image.UserID,
		image.Filename,
		image.OriginalFilename,
		image.PreviewPath,
		image.FullPath,
		image.PreviewSize,
		image.FullSize,
		image.MIMEType,
		image.Width,
		image.Height,
	)
	return scanImage(row)
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	query := `SELECT` + imageColumns + `FROM images WHERE id = $1`

	image, err := scanImage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Image{}, ErrImageNotFound
	}
	return image, err
}

func (r *ImageRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Image, error) {
	query := `SELECT` + imageColumns + `
		FROM images
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectImages(rows)
}

func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]models.Image, error) {
	query := `SELECT` + imageColumns + `
		FROM images
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectImages(rows)
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func scanImage(row pgx.Row) (models.Image, error) {
	var image models.Image
	err := row.Scan(
		&image.ID,
		&image.UserID,
		&image.Filename,
		&image.OriginalFilename,
		&image.PreviewPath,
		&image.FullPath,
		&image.PreviewSize,
		&image.FullSize,
		&image.MIMEType,
		&image.Width,
		&image.Height,
		&image.CreatedAt,
		&image.UpdatedAt,
	)
	return image, err
}

func collectImages(rows pgx.Rows) ([]models.Image, error) {
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}
