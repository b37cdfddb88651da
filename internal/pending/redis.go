package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rastreador-precos/internal/models"
)

const keyPrefix = "pending:"

// RedisStore guarda os candidatos no Redis, compartilhados entre instâncias do bot
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore cria o armazenamento no Redis
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, c models.Candidate) (string, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("codificar candidato: %w", err)
	}

	token := newToken()
	if err := s.client.Set(ctx, keyPrefix+token, raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("gravar candidato: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Take(ctx context.Context, token, ownerID string) (models.Candidate, error) {
	key := keyPrefix + token

	// confere o dono antes de consumir
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Candidate{}, ErrNotFound
	}
	if err != nil {
		return models.Candidate{}, fmt.Errorf("ler candidato: %w", err)
	}
	var c models.Candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Candidate{}, fmt.Errorf("decodificar candidato: %w", err)
	}
	if c.OwnerID != ownerID {
		return models.Candidate{}, ErrNotOwner
	}

	// GETDEL garante uso único mesmo com dois cliques simultâneos
	if err := s.client.GetDel(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Candidate{}, ErrNotFound
		}
		return models.Candidate{}, fmt.Errorf("consumir candidato: %w", err)
	}
	return c, nil
}
