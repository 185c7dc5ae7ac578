package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"photovault/internal/config"
	"photovault/internal/ids"
	"photovault/internal/media/codec"
	"photovault/internal/media/derive"
	"photovault/internal/media/sniffer"
	"photovault/internal/models"
	"photovault/internal/storage"
)

var (
	ErrValidation = errors.New("invalid upload")
	ErrProcessing = errors.New("image processing failed")
	ErrStorage    = errors.New("object storage failed")
	ErrMetadata   = errors.New("metadata write failed")

	ErrUnsupportedMIME = fmt.Errorf("%w: mime type not allowed", ErrValidation)
	ErrFileTooLarge    = fmt.Errorf("%w: file too large", ErrValidation)
)

const (
	maxOriginalFilename = 255
	compensationTimeout = 30 * time.Second
)

type ObjectStore interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	Sign(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, objectPaths []string) error
}

type ImageStore interface {
	Create(ctx context.Context, image models.Image) (models.Image, error)
}

type DerivativeGenerator interface {
	Generate(data []byte) (derive.Set, error)
}

// PurgeQueue takes object paths that could not be deleted inline.
type PurgeQueue interface {
	EnqueuePurge(ctx context.Context, paths []string, reason string) error
}

type IngestObserver interface {
	RecordIngest(outcome string)
	RecordCompensation(step string, err error)
}

// UploadedBlob is one user-submitted file held in memory.
type UploadedBlob struct {
	Data     []byte
	MIMEType string
	Size     int64
}

type IngestResult struct {
	Image      models.Image
	PreviewURL string
	FullURL    string
}

type IngestService struct {
	objects   ObjectStore
	images    ImageStore
	generator DerivativeGenerator
	purge     PurgeQueue
	urls      *URLIssuer
	observer  IngestObserver
	maxBytes  int64
	allowed   map[string]struct{}
	log       zerolog.Logger
}

func NewIngestService(
	objects ObjectStore,
	images ImageStore,
	generator DerivativeGenerator,
	purge PurgeQueue,
	urls *URLIssuer,
	observer IngestObserver,
	cfg config.MediaConfig,
	log zerolog.Logger,
) *IngestService {
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMETypes))
	for _, m := range cfg.AllowedMIMETypes {
		allowed[sniffer.NormalizeMIME(m)] = struct{}{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &IngestService{
		objects:   objects,
		images:    images,
		generator: generator,
		purge:     purge,
		urls:      urls,
		observer:  observer,
		maxBytes:  cfg.MaxUploadBytes(),
		allowed:   allowed,
		log:       log,
	}
}

// Ingest validates blob, stores its two derivatives, records the image and
// returns it with signed display URLs. Failures after the first upload undo
// what was stored before returning.
func (s *IngestService) Ingest(ctx context.Context, ownerID string, blob UploadedBlob, filename string) (IngestResult, error) {
	log := s.log.With().Str("user_id", ownerID).Logger()

	if err := s.validate(blob); err != nil {
		s.observer.RecordIngest("validation")
		return IngestResult{}, err
	}

	set, err := s.generator.Generate(blob.Data)
	if err != nil {
		s.observer.RecordIngest("processing")
		log.Info().Err(err).Str("stage", "derive").Msg("upload rejected")
		return IngestResult{}, fmt.Errorf("%w: %w", ErrProcessing, err)
	}

	paths := storage.PlanPaths(ownerID, set.Filename)
	log = log.With().Str("filename", set.Filename).Logger()

	undo := &compensator{}
	if err := s.upload(ctx, paths, set, undo); err != nil {
		s.observer.RecordIngest("storage")
		log.Error().Err(err).Str("stage", "upload").Msg("ingest failed")
		s.compensate(ctx, log, undo)
		return IngestResult{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	record, err := s.images.Create(ctx, models.Image{
		ID:               ids.New(),
		UserID:           ownerID,
		Filename:         set.Filename,
		OriginalFilename: cleanOriginalFilename(filename),
		PreviewPath:      paths.Preview,
		FullPath:         paths.Full,
		PreviewSize:      set.Preview.Size,
		FullSize:         set.Full.Size,
		MIMEType:         codec.MIMEType,
		Width:            &set.Full.Width,
		Height:           &set.Full.Height,
	})
	if err != nil {
		s.observer.RecordIngest("metadata")
		log.Error().Err(err).Str("stage", "record").Msg("ingest failed")
		s.compensate(ctx, log, undo)
		return IngestResult{}, fmt.Errorf("%w: %w", ErrMetadata, err)
	}

	s.observer.RecordIngest("ok")
	log.Info().
		Str("image_id", record.ID).
		Int("width", set.Full.Width).
		Int("height", set.Full.Height).
		Int64("preview_bytes", set.Preview.Size).
		Int64("full_bytes", set.Full.Size).
		Msg("image ingested")

	return IngestResult{
		Image:      record,
		PreviewURL: s.urls.Sign(ctx, record.PreviewPath),
		FullURL:    s.urls.Sign(ctx, record.FullPath),
	}, nil
}

func (s *IngestService) validate(blob UploadedBlob) error {
	mime := sniffer.NormalizeMIME(blob.MIMEType)
	if _, ok := s.allowed[mime]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedMIME, mime)
	}
	size := blob.Size
	if n := int64(len(blob.Data)); n > size {
		size = n
	}
	if size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, s.maxBytes)
	}
	return nil
}

// upload writes both renditions concurrently and waits for both. Every
// object that landed gets an undo step, whether or not its sibling did.
func (s *IngestService) upload(ctx context.Context, paths storage.Paths, set derive.Set, undo *compensator) error {
	var g errgroup.Group
	var previewErr, fullErr error
	g.Go(func() error {
		previewErr = s.objects.Put(ctx, paths.Preview, set.Preview.Data, codec.MIMEType)
		return previewErr
	})
	g.Go(func() error {
		fullErr = s.objects.Put(ctx, paths.Full, set.Full.Data, codec.MIMEType)
		return fullErr
	})
	_ = g.Wait()

	if previewErr == nil {
		undo.push("delete_preview", s.deleteObject(paths.Preview))
	}
	if fullErr == nil {
		undo.push("delete_full", s.deleteObject(paths.Full))
	}

	var errs []error
	if previewErr != nil {
		errs = append(errs, fmt.Errorf("preview: %w", previewErr))
	}
	if fullErr != nil {
		errs = append(errs, fmt.Errorf("full: %w", fullErr))
	}
	return errors.Join(errs...)
}

// deleteObject removes one stored object, handing it to the purge queue when
// the store refuses.
func (s *IngestService) deleteObject(objectPath string) func(context.Context) error {
	return func(ctx context.Context) error {
		err := s.objects.Delete(ctx, []string{objectPath})
		if err == nil {
			return nil
		}
		if s.purge != nil {
			if qerr := s.purge.EnqueuePurge(ctx, []string{objectPath}, "ingest_compensation"); qerr != nil {
				s.log.Error().Err(qerr).Str("path", objectPath).Msg("orphan object not queued for purge")
			}
		}
		return err
	}
}

func (s *IngestService) compensate(ctx context.Context, log zerolog.Logger, undo *compensator) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	undo.run(ctx, log, s.observer)
}

func cleanOriginalFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if len(name) > maxOriginalFilename {
		name = strings.ToValidUTF8(name[:maxOriginalFilename], "")
	}
	return name
}

type nopObserver struct{}

func (nopObserver) RecordIngest(string) {}

func (nopObserver) RecordCompensation(string, error) {}
