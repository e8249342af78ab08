package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// API keys take the form "tsk_<prefix>_<secret>". The prefix is stored in
// clear for lookup, the secret only as a bcrypt hash.
const apiKeyScheme = "tsk"

// APIKeyStore resolves bearer API keys to tenant actors.
type APIKeyStore struct {
	pool *pgxpool.Pool
}

// NewAPIKeyStore constructs the store.
func NewAPIKeyStore(pool *pgxpool.Pool) *APIKeyStore {
	return &APIKeyStore{pool: pool}
}

// ErrInvalidAPIKey indicates the presented key is unknown or revoked.
var ErrInvalidAPIKey = errors.New("invalid api key")

// Issue creates a key for a tenant and returns the one-time plaintext.
func (s *APIKeyStore) Issue(ctx context.Context, tenantID, actorID int64, canOverride bool) (string, error) {
	if s == nil {
		return "", errors.New("api key store not initialised")
	}
	prefix, err := randomHex(6)
	if err != nil {
		return "", err
	}
	secret, err := randomHex(24)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO api_keys (prefix, secret_hash, tenant_id, actor_id, can_override, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`, prefix, string(hash), tenantID, actorID, canOverride)
	if err != nil {
		return "", err
	}
	return apiKeyScheme + "_" + prefix + "_" + secret, nil
}

// Resolve validates a plaintext key and returns the actor it authenticates.
func (s *APIKeyStore) Resolve(ctx context.Context, key string) (Actor, error) {
	if s == nil {
		return Actor{}, errors.New("api key store not initialised")
	}
	parts := strings.Split(key, "_")
	if len(parts) != 3 || parts[0] != apiKeyScheme {
		return Actor{}, ErrInvalidAPIKey
	}
	prefix, secret := parts[1], parts[2]

	var hash string
	var actor Actor
	err := s.pool.QueryRow(ctx, `SELECT secret_hash, tenant_id, actor_id, can_override
FROM api_keys WHERE prefix = $1 AND revoked_at IS NULL`, prefix).
		Scan(&hash, &actor.TenantID, &actor.ActorID, &actor.CanOverride)
	if errors.Is(err, pgx.ErrNoRows) {
		return Actor{}, ErrInvalidAPIKey
	}
	if err != nil {
		return Actor{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return Actor{}, ErrInvalidAPIKey
	}
	return actor, nil
}

// Revoke disables a key by prefix.
func (s *APIKeyStore) Revoke(ctx context.Context, tenantID int64, prefix string) error {
	if s == nil {
		return errors.New("api key store not initialised")
	}
	tag, err := s.pool.Exec(ctx, `UPDATE api_keys SET revoked_at = NOW()
WHERE prefix = $1 AND tenant_id = $2 AND revoked_at IS NULL`, prefix, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
