package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"photovault/internal/models"
	"photovault/internal/repository"
)

var ErrImageNotFound = errors.New("image not found")

const (
	defaultPerPage = 30
	maxPerPage     = 100
	maxPage        = 10_000
)

type ImageRepository interface {
	GetByID(ctx context.Context, id string) (models.Image, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Image, error)
	List(ctx context.Context, limit, offset int) ([]models.Image, error)
	Delete(ctx context.Context, id string) error
}

type ObjectDeleter interface {
	Delete(ctx context.Context, objectPaths []string) error
}

// ImageView is an image with display URLs. Either URL may be empty when
// signing failed.
type ImageView struct {
	Image      models.Image
	PreviewURL string
	FullURL    string
}

type ImageService struct {
	images  ImageRepository
	objects ObjectDeleter
	purge   PurgeQueue
	urls    *URLIssuer
	log     zerolog.Logger
}

func NewImageService(images ImageRepository, objects ObjectDeleter, purge PurgeQueue, urls *URLIssuer, log zerolog.Logger) *ImageService {
	return &ImageService{
		images:  images,
		objects: objects,
		purge:   purge,
		urls:    urls,
		log:     log,
	}
}

func Paginate(page, perPage int) (limit, offset int) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	page = min(max(page, 1), maxPage)
	return perPage, (page - 1) * perPage
}

func (s *ImageService) List(ctx context.Context, ownerID string, page, perPage int) ([]ImageView, error) {
	limit, offset := Paginate(page, perPage)
	images, err := s.images.ListByUser(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return s.views(ctx, images), nil
}

// ListAll is the admin listing across owners.
func (s *ImageService) ListAll(ctx context.Context, page, perPage int) ([]ImageView, error) {
	limit, offset := Paginate(page, perPage)
	images, err := s.images.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return s.views(ctx, images), nil
}

// Get returns the image when actor owns it or is an admin. Anything else is
// reported as not found.
func (s *ImageService) Get(ctx context.Context, actor models.User, id string) (ImageView, error) {
	image, err := s.load(ctx, actor, id)
	if err != nil {
		return ImageView{}, err
	}
	return s.view(ctx, image), nil
}

// Delete removes the record first, then its objects. Objects that survive
// are queued for purge.
func (s *ImageService) Delete(ctx context.Context, actor models.User, id string) error {
	image, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.images.Delete(ctx, image.ID); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("delete image record: %w", err)
	}

	log := s.log.With().Str("image_id", image.ID).Str("user_id", image.UserID).Logger()
	if err := s.objects.Delete(ctx, image.ObjectPaths()); err != nil {
		log.Warn().Err(err).Strs("paths", image.ObjectPaths()).Msg("delete objects failed")
		if s.purge != nil {
			if qerr := s.purge.EnqueuePurge(context.WithoutCancel(ctx), image.ObjectPaths(), "image_delete"); qerr != nil {
				log.Error().Err(qerr).Msg("orphan objects not queued for purge")
			}
		}
	}

	log.Info().Msg("image deleted")
	return nil
}

func (s *ImageService) load(ctx context.Context, actor models.User, id string) (models.Image, error) {
	image, err := s.images.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, fmt.Errorf("get image: %w", err)
	}
	if image.UserID != actor.ID && !actor.IsAdmin() {
		return models.Image{}, ErrImageNotFound
	}
	return image, nil
}

func (s *ImageService) views(ctx context.Context, images []models.Image) []ImageView {
	out := make([]ImageView, 0, len(images))
	for _, image := range images {
		out = append(out, s.view(ctx, image))
	}
	return out
}

func (s *ImageService) view(ctx context.Context, image models.Image) ImageView {
	return ImageView{
		Image:      image,
		PreviewURL: s.urls.Sign(ctx, image.PreviewPath),
		FullURL:    s.urls.Sign(ctx, image.FullPath),
	}
}
