// Package redis implementa el lease distribuido del ciclo de sincronización.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultCycleLockKey clave compartida por todas las réplicas.
const DefaultCycleLockKey = "stockout-sync:cycle-lock"

// releaseScript borra la clave solo si el token sigue siendo el nuestro.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// CycleLock lease con SET NX PX; si el proceso muere el lease expira por TTL.
type CycleLock struct {
	client *goredis.Client
	key    string
}

func NewCycleLock(client *goredis.Client, key string) *CycleLock {
	if key == "" {
		key = DefaultCycleLockKey
	}
	return &CycleLock{client: client, key: key}
}

// TryAcquire intenta tomar el lease. ok=false si otra réplica lo tiene.
func (l *CycleLock) TryAcquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("redis release %s: %w", l.key, err)
		}
		return nil
	}
	return release, true, nil
}
