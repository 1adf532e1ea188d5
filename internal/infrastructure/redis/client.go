package redisinfra

import (
	"github.com/idgate/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient creates a redis client for the transient verification stores.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
