package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/voicebridge/voicebridge/internal/types"
)

// presenceTTL bounds staleness; clients refresh their state well within it
const presenceTTL = 90 * time.Second

// RedisPresence tracks voice-client readiness in Redis. Entries expire so
// a crashed client falls back to offline on its own.
type RedisPresence struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisPresence connects and verifies the connection
func NewRedisPresence(ctx context.Context, addr string, logger zerolog.Logger) (*RedisPresence, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return &RedisPresence{client: client, logger: logger}, nil
}

func presenceKey(userID string) string {
	return "presence:client:" + userID
}

// ClientReady reports whether the user's voice client is registered and
// idle. Missing keys mean offline, not an error.
func (p *RedisPresence) ClientReady(ctx context.Context, userID string) (bool, error) {
	state, err := p.client.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence lookup failed for %s: %w", userID, err)
	}
	return types.PresenceState(state) == types.PresenceReady, nil
}

// SetState records the client state with the standard TTL
func (p *RedisPresence) SetState(ctx context.Context, userID string, state types.PresenceState) error {
	if err := p.client.Set(ctx, presenceKey(userID), string(state), presenceTTL).Err(); err != nil {
		return fmt.Errorf("presence update failed for %s: %w", userID, err)
	}
	p.logger.Debug().Str("user_id", userID).Str("state", string(state)).Msg("presence updated")
	return nil
}

func (p *RedisPresence) Close() error {
	return p.client.Close()
}

// NoPresence is the fallback when no presence backend is configured.
// Every client reads as offline, so routing dials numbers instead.
type NoPresence struct{}

func (NoPresence) ClientReady(_ context.Context, _ string) (bool, error) {
	return false, nil
}
