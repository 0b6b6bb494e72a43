package sync

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard suprime sincronizações concorrentes do mesmo card usando um marcador
// de curta duração no Redis. Gatilhos de webhook e de polling podem disparar
// SyncOne sobre o mesmo card quase ao mesmo tempo; o marcador evita entradas
// duplicadas no histórico sem introduzir um lock global.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGuard cria o guard. ttl limita quanto tempo um card fica marcado caso o
// processo morra no meio de uma sincronização.
func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Guard{rdb: rdb, ttl: ttl}
}

// TryAcquire tenta marcar o card como em sincronização. Em caso de falha do
// Redis a sincronização prossegue: o upsert é idempotente e a duplicata de
// histórico é tolerada.
func (g *Guard) TryAcquire(ctx context.Context, cardID string) bool {
	ok, err := g.rdb.SetNX(ctx, guardKey(cardID), "1", g.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release libera o marcador do card.
func (g *Guard) Release(ctx context.Context, cardID string) {
	g.rdb.Del(ctx, guardKey(cardID))
}

func guardKey(cardID string) string {
	return "sync:card:" + cardID
}
