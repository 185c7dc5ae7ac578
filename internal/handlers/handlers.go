package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"photovault/internal/config"
	"photovault/internal/middleware"
	"photovault/internal/models"
	"photovault/internal/repository"
	"photovault/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Ingester interface {
	Ingest(ctx context.Context, ownerID string, blob service.UploadedBlob, filename string) (service.IngestResult, error)
}

type ImageReader interface {
	List(ctx context.Context, ownerID string, page, perPage int) ([]service.ImageView, error)
	ListAll(ctx context.Context, page, perPage int) ([]service.ImageView, error)
	Get(ctx context.Context, actor models.User, id string) (service.ImageView, error)
	Delete(ctx context.Context, actor models.User, id string) error
}

// Dependencies are the constructed collaborators the handlers serve.
type Dependencies struct {
	Config   *config.AppConfig
	Log      zerolog.Logger
	DB       Pinger
	Cache    *redis.Client
	Auth     *service.AuthService
	Ingest   Ingester
	Images   ImageReader
	Invites  *service.InviteService
	Users    *repository.UserRepository
	Sessions *repository.SessionRepository
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	db       Pinger
	cache    *redis.Client
	auth     *service.AuthService
	ingest   Ingester
	images   ImageReader
	invites  *service.InviteService
	users    *repository.UserRepository
	sessions *repository.SessionRepository
}

func NewHandlerSet(deps Dependencies) HandlerSet {
	return HandlerSet{
		log:      deps.Log,
		cfg:      deps.Config,
		db:       deps.DB,
		cache:    deps.Cache,
		auth:     deps.Auth,
		ingest:   deps.Ingest,
		images:   deps.Images,
		invites:  deps.Invites,
		users:    deps.Users,
		sessions: deps.Sessions,
	}
}

func (h HandlerSet) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	requireAuth := middleware.Auth(h.cfg.Security.JWTAccessSecret, h.users, h.sessions)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)

		protected := v1.Group("/auth")
		protected.Use(requireAuth)
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
	}

	uploadLimit := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	if h.cache != nil {
		uploadLimit = middleware.RateLimit(h.cache, "upload", h.cfg.RateLimit.Uploads, h.cfg.RateLimit.Window, h.log)
	}

	media := v1.Group("/media")
	media.Use(requireAuth)
	media.POST("/upload", uploadLimit, h.UploadMedia)
	media.GET("", h.ListMedia)
	media.GET("/:id", h.GetMedia)
	media.DELETE("/:id", h.DeleteMedia)

	admin := v1.Group("/admin")
	admin.Use(requireAuth, middleware.RequireAdmin(h.log))
	admin.GET("/images", h.AdminListImages)
	admin.GET("/users", h.AdminListUsers)
	admin.PATCH("/users/:id/status", h.AdminUpdateUserStatus)
	admin.POST("/invites", h.AdminCreateInvite)
	admin.GET("/invites", h.AdminListInvites)
}

func currentUser(c *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return user, ok
}

func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.Query("page"))
	perPage, _ = strconv.Atoi(c.Query("perPage"))
	return page, perPage
}
