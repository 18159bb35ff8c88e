package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelpick/core/internal/config"
	http_health "github.com/reelpick/core/internal/delivery/http/health"
	http_init "github.com/reelpick/core/internal/delivery/http/init"
	http_movie "github.com/reelpick/core/internal/delivery/http/movie"
	http_session "github.com/reelpick/core/internal/delivery/http/session"
	ws_session "github.com/reelpick/core/internal/delivery/ws/session"
	infra_pg_init "github.com/reelpick/core/internal/infra/postgres/init"
	infra_postgres_movie "github.com/reelpick/core/internal/infra/postgres/movie"
	infra_redis_init "github.com/reelpick/core/internal/infra/redis/init"
	infra_snapshot_cache "github.com/reelpick/core/internal/infra/redis/snapshot"
	"github.com/reelpick/core/internal/session"
	usecase_catalog "github.com/reelpick/core/internal/usecase/catalog"
)

func Go(cfg *config.Config) {
	const snapshotKey = "catalog_snapshot"

	pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)
	redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)

	movieRepository := infra_postgres_movie.New(pgConn)
	if err := movieRepository.EnsureSchema(context.Background()); err != nil {
		log.Fatal(err)
	}
	snapshotCache := infra_snapshot_cache.New(redisConn, snapshotKey, cfg.Session.SnapshotTTL)

	catalogUC := usecase_catalog.New(movieRepository, snapshotCache)

	registry := session.New(catalogUC, session.Config{
		Capacity:    cfg.Session.RoomCapacity,
		GracePeriod: cfg.Session.GracePeriod,
	})
	dispatcher := ws_session.New(registry)

	// cancel all pending grace timers on shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		registry.Close()
		os.Exit(0)
	}()

	server := http_init.NewServer(
		http_health.New(),
		http_session.New(dispatcher),
		http_movie.New(catalogUC),
	)
	server.Run(cfg.HTTP.Host, cfg.HTTP.Port)
}
