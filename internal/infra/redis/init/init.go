package infra_redis_init

import (
	"log"
	"net"

	"github.com/go-redis/redis"

	"github.com/reelpick/core/internal/config"
)

func MustEstablishConn(cfg config.RedisCache) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
	})

	if err := client.Ping().Err(); err != nil {
		log.Fatalf("failed to ping redis at %s:%s: %v", cfg.Host, cfg.Port, err)
	}
	return client
}
