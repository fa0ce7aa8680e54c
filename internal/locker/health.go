package locker

import (
	"context"
	"errors"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/redis/go-redis/v9"
)

type RedisLockerHealth struct {
	Client *redis.Client
}

// NewRedisClient connects to the redis uri and checks it answers before handing the client back.
func NewRedisClient(ctx context.Context, uri string) (*redis.Client, error) {
	connection, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(connection)
	if res := client.Ping(ctx); res.Err() != nil {
		return nil, res.Err()
	}
	return client, nil
} // .NewRedisClient

func (h *RedisLockerHealth) Health(ctx context.Context) models.ServiceHealthResp {
	var shr models.ServiceHealthResp
	shr.Service = models.REDIS_LOCKER

	if h.Client == nil {
		return shr.BuildErrorResponse(errors.New("redis client not configured"))
	}
	// Ping redis service
	if res := h.Client.Ping(ctx); res.Err() != nil {
		return shr.BuildErrorResponse(res.Err())
	}

	// all good
	return shr.BuildUpResponse()
}
