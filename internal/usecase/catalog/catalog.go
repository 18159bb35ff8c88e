package usecase_catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/reelpick/core/internal/model"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrFailedToStoreMovie  = errors.New("failed to store movie")
	ErrFailedToLoadMovies  = errors.New("failed to load movies")
	ErrFailedToDeleteMovie = errors.New("failed to delete movie")
)

// Repository is the persistent movie catalog.
type Repository interface {
	Store(ctx context.Context, mm model.MovieMeta) error
	Load(ctx context.Context) ([]model.MovieMeta, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// SnapshotCache holds a serialized copy of the whole catalog so snapshot
// reads during readiness checks stay off the database.
type SnapshotCache interface {
	Get() ([]model.MovieMeta, bool, error)
	Set(items []model.MovieMeta) error
	Invalidate() error
}

type Usecase struct {
	repository Repository
	cache      SnapshotCache
}

func New(repository Repository, cache SnapshotCache) *Usecase {
	return &Usecase{
		repository: repository,
		cache:      cache,
	}
}

// Snapshot returns the catalog, read-through cached. A stale snapshot is
// acceptable to callers; the session engine never forces a refresh.
func (u *Usecase) Snapshot(ctx context.Context) ([]model.MovieMeta, error) {
	if items, ok, err := u.cache.Get(); err == nil && ok {
		return items, nil
	}

	items, err := u.repository.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadMovies, err)
	}

	// cache failures are not fatal; next read just hits the database again
	_ = u.cache.Set(items)

	return items, nil
}

func (u *Usecase) Upload(ctx context.Context, mm model.MovieMeta) error {
	if mm.Title == model.EmptyTitle {
		return fmt.Errorf("%w: movie title cannot be empty", ErrInvalidInput)
	}
	if mm.ID == uuid.Nil {
		mm.ID = uuid.New()
	}

	if err := u.repository.Store(ctx, mm); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToStoreMovie, err)
	}

	_ = u.cache.Invalidate()
	return nil
}

func (u *Usecase) Delete(ctx context.Context, id uuid.UUID) error {
	if err := u.repository.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToDeleteMovie, err)
	}

	_ = u.cache.Invalidate()
	return nil
}
