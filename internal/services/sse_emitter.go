package services

import (
	"context"

	redisclient "github.com/reelpost/reelpost-backend/internal/clients/redis"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/sse"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg sse.SSEMessage)
}

// HubEmitter broadcasts to clients connected to this process.
type HubEmitter struct {
	Hub *sse.SSEHub
}

func (e *HubEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}

// RedisEmitter publishes to the Redis channel so other API instances can
// fan out to their own clients.
type RedisEmitter struct {
	Bus redisclient.SSEBus
	Log *logger.Logger
}

func (e *RedisEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	if e == nil || e.Bus == nil {
		return
	}
	if err := e.Bus.Publish(ctx, msg); err != nil && e.Log != nil {
		e.Log.Warn("Failed to publish SSE message to redis", "error", err)
	}
}
