package config

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

func InitRedis(cfg RedisConfig) error {
	val := cfg.Addr
	if val == "" {
		val = cfg.URL
	}
	if val == "" {
		return errors.New("REDIS_ADDR (or REDIS_URL) is not set")
	}

	if strings.HasPrefix(val, "redis://") || strings.HasPrefix(val, "rediss://") {
		opt, err := redis.ParseURL(val)
		if err != nil {
			return err
		}
		RedisClient = redis.NewClient(opt)
	} else {
		RedisClient = redis.NewClient(&redis.Options{Addr: val})
	}

	_, err := RedisClient.Ping(context.Background()).Result()
	return err
}
