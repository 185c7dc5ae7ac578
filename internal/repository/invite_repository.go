package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"photovault/internal/models"
)

var (
	ErrInviteInvalid = errors.New("invite code invalid or exhausted")
	ErrInviteExists  = errors.New("invite code already exists")
)

type InviteRepository struct {
	pool *pgxpool.Pool
}

func NewInviteRepository(pool *pgxpool.Pool) *InviteRepository {
	return &InviteRepository{pool: pool}
}

// Consume spends one use of code in a single statement. Concurrent
// registrations can never push used_count past max_uses.
func (r *InviteRepository) Consume(ctx context.Context, code string) (string, error) {
	const query = `
		UPDATE invite_codes
		SET used_count = used_count + 1
		WHERE code = $1
		  AND used_count < max_uses
		  AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING id
	`
	var id string
	if err := r.pool.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInviteInvalid
		}
		return "", err
	}
	return id, nil
}

// Release returns a use consumed by a registration that did not complete.
func (r *InviteRepository) Release(ctx context.Context, id string) error {
	const query = `UPDATE invite_codes SET used_count = used_count - 1 WHERE id = $1 AND used_count > 0`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *InviteRepository) Create(ctx context.Context, invite models.InviteCode) (models.InviteCode, error) {
	const query = `
		INSERT INTO invite_codes (id, code, max_uses, used_count, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, 0, $4, NULLIF($5, ''), NOW())
		RETURNING id, code, max_uses, used_count, expires_at, COALESCE(created_by, ''), created_at
	`
	out, err := scanInvite(r.pool.QueryRow(ctx, query,
		invite.ID,
		invite.Code,
		invite.MaxUses,
		invite.ExpiresAt,
		invite.CreatedBy,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return models.InviteCode{}, ErrInviteExists
	}
	return out, err
}

func (r *InviteRepository) List(ctx context.Context, limit, offset int) ([]models.InviteCode, error) {
	const query = `
		SELECT id, code, max_uses, used_count, expires_at, COALESCE(created_by, ''), created_at
		FROM invite_codes
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []models.InviteCode
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

func scanInvite(row pgx.Row) (models.InviteCode, error) {
	var invite models.InviteCode
	err := row.Scan(
		&invite.ID,
		&invite.Code,
		&invite.MaxUses,
		&invite.UsedCount,
		&invite.ExpiresAt,
		&invite.CreatedBy,
		&invite.CreatedAt,
	)
	return invite, err
}
