package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"photovault/internal/ids"
	"photovault/internal/models"
	"photovault/internal/repository"
)

var ErrInvalidInvite = errors.New("invalid invite parameters")

type InviteStore interface {
	Create(ctx context.Context, invite models.InviteCode) (models.InviteCode, error)
	List(ctx context.Context, limit, offset int) ([]models.InviteCode, error)
}

type InviteService struct {
	invites InviteStore
	log     zerolog.Logger
}

func NewInviteService(invites InviteStore, log zerolog.Logger) *InviteService {
	return &InviteService{invites: invites, log: log}
}

type CreateInviteInput struct {
	Code    string
	MaxUses int
	TTL     time.Duration
}

// Create issues an invite. An empty Code gets a random one.
func (s *InviteService) Create(ctx context.Context, actor models.User, input CreateInviteInput) (models.InviteCode, error) {
	if input.MaxUses <= 0 {
		input.MaxUses = 1
	}
	if input.TTL < 0 {
		return models.InviteCode{}, fmt.Errorf("%w: negative ttl", ErrInvalidInvite)
	}

	code := input.Code
	if code == "" {
		var err error
		if code, err = randomInviteCode(); err != nil {
			return models.InviteCode{}, err
		}
	}

	invite := models.InviteCode{
		ID:        ids.New(),
		Code:      code,
		MaxUses:   input.MaxUses,
		CreatedBy: actor.ID,
	}
	if input.TTL > 0 {
		expires := time.Now().Add(input.TTL)
		invite.ExpiresAt = &expires
	}

	created, err := s.invites.Create(ctx, invite)
	if err != nil {
		if errors.Is(err, repository.ErrInviteExists) {
			return models.InviteCode{}, fmt.Errorf("%w: code already exists", ErrInvalidInvite)
		}
		return models.InviteCode{}, fmt.Errorf("create invite: %w", err)
	}

	s.log.Info().Str("invite_id", created.ID).Str("created_by", actor.ID).Int("max_uses", created.MaxUses).Msg("invite created")
	return created, nil
}

func (s *InviteService) List(ctx context.Context, page, perPage int) ([]models.InviteCode, error) {
	limit, offset := Paginate(page, perPage)
	return s.invites.List(ctx, limit, offset)
}

func randomInviteCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
