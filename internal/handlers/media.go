package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"photovault/internal/media/codec"
	"photovault/internal/media/sniffer"
	"photovault/internal/service"
)

// multipartOverhead is the allowance for multipart framing on top of the
// file itself.
const multipartOverhead = 1 << 20

type imageResponse struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	MIMEType         string    `json:"mimeType"`
	Width            *int      `json:"width"`
	Height           *int      `json:"height"`
	PreviewSize      int64     `json:"previewSize"`
	FullSize         int64     `json:"fullSize"`
	PreviewURL       *string   `json:"previewUrl"`
	FullURL          *string   `json:"fullUrl"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toImageResponse(view service.ImageView) imageResponse {
	img := view.Image
	return imageResponse{
		ID:               img.ID,
		Filename:         img.Filename,
		OriginalFilename: img.OriginalFilename,
		MIMEType:         img.MIMEType,
		Width:            img.Width,
		Height:           img.Height,
		PreviewSize:      img.PreviewSize,
		FullSize:         img.FullSize,
		PreviewURL:       optional(view.PreviewURL),
		FullURL:          optional(view.FullURL),
		CreatedAt:        img.CreatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h HandlerSet) UploadMedia(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	maxBytes := h.cfg.Media.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_upload"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("open multipart file failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_upload"})
		return
	}
	defer file.Close()

	// One byte past the limit is enough for validation to reject it.
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_upload"})
		return
	}

	size := header.Size
	if n := int64(len(data)); n > size {
		size = n
	}

	result, err := h.ingest.Ingest(c.Request.Context(), user.ID, service.UploadedBlob{
		Data:     data,
		MIMEType: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
		Size:     size,
	}, header.Filename)
	if err != nil {
		status, code := ingestErrorStatus(err)
		event := h.log.Warn()
		if status >= http.StatusInternalServerError {
			event = h.log.Error()
		}
		event.Err(err).Str("user_id", user.ID).Str("code", code).Msg("upload failed")
		c.JSON(status, gin.H{"error": code})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"image": toImageResponse(service.ImageView{
			Image:      result.Image,
			PreviewURL: result.PreviewURL,
			FullURL:    result.FullURL,
		}),
	})
}

// ingestErrorStatus maps an ingestion failure to a status and a stable code.
// Error text never reaches the client.
func ingestErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.Is(err, service.ErrUnsupportedMIME):
		return http.StatusUnsupportedMediaType, "unsupported_type"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid_upload"
	case errors.Is(err, codec.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_type"
	case errors.Is(err, service.ErrProcessing):
		return http.StatusUnprocessableEntity, "unreadable_image"
	default:
		return http.StatusInternalServerError, "upload_failed"
	}
}

func (h HandlerSet) ListMedia(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, perPage := pageParams(c)
	views, err := h.images.List(c.Request.Context(), user.ID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("list media failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]imageResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toImageResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetMedia(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	view, err := h.images.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.imageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": toImageResponse(view)})
}

func (h HandlerSet) DeleteMedia(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.images.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		h.imageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) imageError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrImageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	h.log.Error().Err(err).Str("image_id", c.Param("id")).Msg("image request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
