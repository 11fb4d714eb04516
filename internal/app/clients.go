package app

import (
	"fmt"

	"github.com/yungbote/powerlens-backend/internal/clients/redis"
	"github.com/yungbote/powerlens-backend/internal/inference/client"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
)

type Clients struct {
	Locker    services.KeyLocker
	Inference services.Predictor

	redisLocker *redis.Locker
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	out := Clients{Locker: services.NewLocalLocker()}

	// Redis
	if cfg.RedisAddr != "" {
		lk, err := redis.NewLocker(log, redis.LockerOptions{Addr: cfg.RedisAddr, TTL: cfg.RedisLockTTL})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis locker: %w", err)
		}
		out.Locker = lk
		out.redisLocker = lk
	}

	// Inference
	if cfg.InferenceBaseURL != "" {
		c, err := client.New(client.Options{
			BaseURL:    cfg.InferenceBaseURL,
			APIKey:     cfg.InferenceAPIKey,
			Timeout:    cfg.InferenceTimeout,
			MaxRetries: cfg.InferenceMaxRetries,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init inference client: %w", err)
		}
		out.Inference = c
	}
	return out, nil
}

func (c Clients) Close() {
	if c.redisLocker != nil {
		_ = c.redisLocker.Close()
	}
}
