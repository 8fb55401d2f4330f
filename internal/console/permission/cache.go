package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Logger captures the logging contract required by the cache.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// SessionCache pins the capabilities of a session in Redis the first time
// they are resolved. A cached entry can only narrow what the gate grants:
// revocations apply immediately, new grants apply to new sessions.
type SessionCache struct {
	rdb    *redis.Client
	gate   *Gate
	ttl    time.Duration
	logger Logger
}

// NewSessionCache constructs a SessionCache.
func NewSessionCache(rdb *redis.Client, gate *Gate, ttl time.Duration, logger Logger) *SessionCache {
	return &SessionCache{rdb: rdb, gate: gate, ttl: ttl, logger: logger}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("console:caps:%s", sessionID)
}

func sessionField(screen, role string) string {
	return screen + "|" + normalizeRole(role)
}

func encodeFlags(c Capability) string {
	b := []byte("0000")
	if c.View {
		b[0] = '1'
	}
	if c.Add {
		b[1] = '1'
	}
	if c.Edit {
		b[2] = '1'
	}
	if c.Delete {
		b[3] = '1'
	}
	return string(b)
}

func decodeFlags(screen, s string) (Capability, bool) {
	if len(s) != 4 {
		return Capability{}, false
	}
	for i := 0; i < 4; i++ {
		if s[i] != '0' && s[i] != '1' {
			return Capability{}, false
		}
	}
	return Capability{
		ScreenID: screen,
		View:     s[0] == '1',
		Add:      s[1] == '1',
		Edit:     s[2] == '1',
		Delete:   s[3] == '1',
	}, true
}

// CapabilitiesFor resolves the capability for a session. Without a session
// or when Redis fails it falls back to the gate.
func (c *SessionCache) CapabilitiesFor(ctx context.Context, sessionID, screen, role string) Capability {
	current := c.gate.CapabilitiesFor(screen, role)
	if c.rdb == nil || sessionID == "" {
		return current
	}

	key := sessionKey(sessionID)
	field := sessionField(screen, role)
	val, err := c.rdb.HGet(ctx, key, field).Result()
	switch {
	case err == nil:
		if pinned, ok := decodeFlags(screen, val); ok {
			return pinned.Intersect(current)
		}
		c.logf("permission: corrupt cache entry %s/%s: %q", key, field, val)
	case !errors.Is(err, redis.Nil):
		c.logf("permission: cache read %s failed: %v", key, err)
		return current
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, field, encodeFlags(current))
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logf("permission: cache write %s failed: %v", key, err)
	}
	return current
}

// Forget drops the cached capabilities of a session.
func (c *SessionCache) Forget(ctx context.Context, sessionID string) error {
	if c.rdb == nil || sessionID == "" {
		return nil
	}
	return c.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

func (c *SessionCache) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Errorf(format, args...)
	}
}
