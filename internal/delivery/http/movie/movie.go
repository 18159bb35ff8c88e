package http_movie

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reelpick/core/internal/model"
	usecase_catalog "github.com/reelpick/core/internal/usecase/catalog"
)

// Controller is the catalog admin surface: movie upload, listing and
// deletion. The session engine only ever reads the catalog.
type Controller struct {
	uc     *usecase_catalog.Usecase
	logger *slog.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(uc *usecase_catalog.Usecase, opts ...ControllerOption) *Controller {
	c := &Controller{
		uc:     uc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	movies := router.Group("/movies")
	{
		movies.POST("", c.upload)
		movies.GET("", c.list)
		movies.DELETE("/:movie_id", c.delete)
	}
}

type MovieDTO struct {
	ID            string    `json:"id,omitempty"`
	Title         string    `json:"title" binding:"required"`
	Year          int       `json:"year" binding:"required"`
	Genres        []string  `json:"genres"`
	RatingIMDB    *float64  `json:"rating_imdb,omitempty"`
	RatingRT      *float64  `json:"rating_rt,omitempty"`
	RuntimeMin    int       `json:"runtime_min"`
	Overview      string    `json:"overview"`
	ContentRating string    `json:"content_rating"`
	PosterLink    string    `json:"poster_link"`
	AddedAt       time.Time `json:"added_at,omitempty"`
	Watched       bool      `json:"watched"`
}

func (c *Controller) upload(ctx *gin.Context) {
	var req MovieDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "incorrect request"})
		return
	}

	mm := model.MovieMeta{
		Title:         req.Title,
		Year:          req.Year,
		Genres:        req.Genres,
		RatingIMDB:    req.RatingIMDB,
		RatingRT:      req.RatingRT,
		RuntimeMin:    req.RuntimeMin,
		Overview:      req.Overview,
		ContentRating: req.ContentRating,
		PosterLink:    req.PosterLink,
		AddedAt:       req.AddedAt,
		Watched:       req.Watched,
	}
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "incorrect request"})
			return
		}
		mm.ID = id
	}

	if err := c.uc.Upload(ctx.Request.Context(), mm); err != nil {
		c.logger.Error("failed to upload movie", slog.String("error", err.Error()))
		if errors.Is(err, usecase_catalog.ErrInvalidInput) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "incorrect request"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx.Status(http.StatusCreated)
}

func (c *Controller) list(ctx *gin.Context) {
	items, err := c.uc.Snapshot(ctx.Request.Context())
	if err != nil {
		c.logger.Error("failed to load catalog", slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"movies": items, "count": len(items)})
}

func (c *Controller) delete(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("movie_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "incorrect request"})
		return
	}

	if err := c.uc.Delete(ctx.Request.Context(), id); err != nil {
		c.logger.Error("failed to delete movie", slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
