package infra_postgres_movie

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/reelpick/core/internal/model"
)

type Driver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

type movieRow struct {
	ID            uuid.UUID      `db:"id"`
	Title         string         `db:"title"`
	Year          int            `db:"year"`
	Genres        pq.StringArray `db:"genres"`
	RatingIMDB    *float64       `db:"rating_imdb"`
	RatingRT      *float64       `db:"rating_rt"`
	RuntimeMin    int            `db:"runtime_min"`
	Overview      string         `db:"overview"`
	ContentRating string         `db:"content_rating"`
	PosterLink    string         `db:"poster_link"`
	AddedAt       time.Time      `db:"added_at"`
	Watched       bool           `db:"watched"`
}

func (r movieRow) toModel() model.MovieMeta {
	return model.MovieMeta{
		ID:            r.ID,
		Title:         r.Title,
		Year:          r.Year,
		Genres:        []string(r.Genres),
		RatingIMDB:    r.RatingIMDB,
		RatingRT:      r.RatingRT,
		RuntimeMin:    r.RuntimeMin,
		Overview:      r.Overview,
		ContentRating: r.ContentRating,
		PosterLink:    r.PosterLink,
		AddedAt:       r.AddedAt,
		Watched:       r.Watched,
	}
}

// EnsureSchema creates the movies table if it is missing. Safe to call on
// every start.
func (d *Driver) EnsureSchema(ctx context.Context) error {
	const q = `
	CREATE TABLE IF NOT EXISTS movies (
		id             UUID PRIMARY KEY,
		title          TEXT NOT NULL,
		year           INT NOT NULL,
		genres         TEXT[] NOT NULL DEFAULT '{}',
		rating_imdb    DOUBLE PRECISION,
		rating_rt      DOUBLE PRECISION,
		runtime_min    INT NOT NULL DEFAULT 0,
		overview       TEXT NOT NULL DEFAULT '',
		content_rating TEXT NOT NULL DEFAULT '',
		poster_link    TEXT NOT NULL DEFAULT '',
		added_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		watched        BOOLEAN NOT NULL DEFAULT false
	)
	`
	if _, err := d.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to ensure movies schema: %w", err)
	}
	return nil
}

func (d *Driver) Store(ctx context.Context, mm model.MovieMeta) error {
	const q = `
	INSERT INTO movies (id, title, year, genres, rating_imdb, rating_rt,
		runtime_min, overview, content_rating, poster_link, added_at, watched)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		year = EXCLUDED.year,
		genres = EXCLUDED.genres,
		rating_imdb = EXCLUDED.rating_imdb,
		rating_rt = EXCLUDED.rating_rt,
		runtime_min = EXCLUDED.runtime_min,
		overview = EXCLUDED.overview,
		content_rating = EXCLUDED.content_rating,
		poster_link = EXCLUDED.poster_link,
		watched = EXCLUDED.watched
	`

	addedAt := mm.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	_, err := d.db.ExecContext(ctx, q,
		mm.ID,
		mm.Title,
		mm.Year,
		pq.StringArray(mm.Genres),
		mm.RatingIMDB,
		mm.RatingRT,
		mm.RuntimeMin,
		mm.Overview,
		mm.ContentRating,
		mm.PosterLink,
		addedAt,
		mm.Watched,
	)
	if err != nil {
		return fmt.Errorf("failed to store movie: %w", err)
	}
	return nil
}

func (d *Driver) Load(ctx context.Context) ([]model.MovieMeta, error) {
	const q = `
	SELECT id, title, year, genres, rating_imdb, rating_rt,
		runtime_min, overview, content_rating, poster_link, added_at, watched
	FROM movies
	ORDER BY title
	`

	var rows []movieRow
	if err := d.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("failed to load movies: %w", err)
	}

	movies := make([]model.MovieMeta, 0, len(rows))
	for _, row := range rows {
		movies = append(movies, row.toModel())
	}
	return movies, nil
}

func (d *Driver) DeleteByID(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM movies WHERE id = $1`

	result, err := d.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("movie with ID %s not found", id)
	}
	return nil
}
