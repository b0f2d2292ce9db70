package queue

import (
	"strings"

	"github.com/hibiken/asynq"

	"ticketing-chatbot-platform/internal/config"
)

// RedisConnOpt builds the asynq Redis connection from the same settings the
// cache client uses, accepting either a full URL or host:port.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return asynq.ParseRedisURI(cfg.RedisURL)
	}

	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
