package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultSessionKey = "extraction-orchestrator:session:state"

// markExpiredScript flips the state to expired and returns 1 only for the
// caller that performed the flip.
var markExpiredScript = goredis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

// SessionStore shares the session state between every process that talks
// to the same backend.
type SessionStore struct {
	client goredis.UniversalClient
	key    string
	script *goredis.Script
}

func NewSessionStore(client goredis.UniversalClient, key string) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultSessionKey
	}

	return &SessionStore{
		client: client,
		key:    key,
		script: markExpiredScript,
	}, nil
}

func (s *SessionStore) Load(ctx context.Context) (domain.SessionState, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.SessionValid, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session state: %w", err)
	}

	state := domain.SessionState(value)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: unknown session state %q", domain.ErrValidation, value)
	}
	return state, nil
}

func (s *SessionStore) MarkExpired(ctx context.Context) (bool, error) {
	result, err := s.script.Run(ctx, s.client, []string{s.key}, domain.SessionExpired.String()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to mark session expired: %w", err)
	}
	return result == 1, nil
}

func (s *SessionStore) MarkValid(ctx context.Context) error {
	if err := s.client.Set(ctx, s.key, domain.SessionValid.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to mark session valid: %w", err)
	}
	return nil
}
