// Package registry manages registered credential holders: it mints API keys
// backed by Slack user tokens, authenticates bearer keys, and owns the
// user:, apikey:, token: and stats: key namespaces.
package registry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cherrin1/remote-slack-server/domain"
	apperrors "github.com/cherrin1/remote-slack-server/errors"
	"github.com/cherrin1/remote-slack-server/internal/slack"
	"github.com/cherrin1/remote-slack-server/internal/store"
)

// APIKeyPrefix marks keys minted by this server.
const APIKeyPrefix = "smcp_"

const (
	userKeyPrefix   = "user:"
	apiKeyKeyPrefix = "apikey:"
	tokenKeyPrefix  = "token:"
	usageKeyPrefix  = "usage:"

	statsTotalUsersKey  = "stats:total_users"
	statsActiveUsersKey = "stats:active_users"
)

// Service implements the user registry on top of a key-value store. It is
// the only writer of its namespaces; the two-key writes in CreateUser and
// RotateAPIKey are not transactional, which is accepted (an unindexed record
// is inert, and the inconsistency window is one store round trip).
type Service struct {
	store store.Store
}

// New creates a registry service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// generateAPIKey mints an unguessable bearer secret: the smcp_ prefix
// followed by 64 hex characters.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// hashToken produces the audit digest kept alongside the raw token. Never
// used for auth decisions.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) getRecord(ctx context.Context, id string) (*domain.UserRecord, error) {
	raw, err := s.store.Get(ctx, userKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	var rec domain.UserRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("corrupt user record %s: %w", id, err)
	}

	// Usage lives under its own key. Overlay it so callers see current
	// counters without the write-back ever touching the record itself.
	if usageRaw, err := s.store.Get(ctx, usageKeyPrefix+id); err == nil {
		var usage domain.Usage
		if err := json.Unmarshal([]byte(usageRaw), &usage); err == nil {
			rec.Usage = usage
			if !usage.LastRequestAt.IsZero() {
				rec.LastUsed = usage.LastRequestAt
			}
		}
	}

	return &rec, nil
}

func (s *Service) putRecord(ctx context.Context, rec *domain.UserRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal user record: %w", err)
	}
	return s.store.Set(ctx, userKeyPrefix+rec.ID, string(raw))
}

// CreateUser registers a new credential holder. The platform token must
// already have passed live validation; only its shape is re-checked here.
func (s *Service) CreateUser(ctx context.Context, platformToken string, info domain.UserInfo) (*domain.UserRecord, error) {
	if !slack.ValidTokenFormat(platformToken) {
		return nil, apperrors.NewInvalidCredentialFormat(
			"platformToken must be a Slack user token (xoxp-...)")
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &domain.UserRecord{
		ID:                uuid.NewString(),
		APIKey:            apiKey,
		PlatformToken:     platformToken,
		PlatformTokenHash: hashToken(platformToken),
		CreatedAt:         now,
		LastUsed:          now,
		Active:            true,
		UserInfo:          info,
	}

	if err := s.putRecord(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, apiKeyKeyPrefix+apiKey, rec.ID); err != nil {
		return nil, err
	}
	// Last registration with a given token wins the token index.
	if err := s.store.Set(ctx, tokenKeyPrefix+rec.PlatformTokenHash, rec.ID); err != nil {
		return nil, err
	}

	if _, err := s.store.Incr(ctx, statsTotalUsersKey); err != nil {
		log.Warn().Err(err).Msg("failed to increment total user counter")
	}
	if _, err := s.store.Incr(ctx, statsActiveUsersKey); err != nil {
		log.Warn().Err(err).Msg("failed to increment active user counter")
	}

	log.Info().
		Str("user_id", rec.ID).
		Str("team_id", info.TeamID).
		Msg("registered new user")

	return rec, nil
}

// GetUserByAPIKey resolves a bearer key to its record. It fails closed: any
// malformed input, missing index entry, missing record or inactive record
// yields nil without error. Usage stats are updated fire-and-forget.
func (s *Service) GetUserByAPIKey(ctx context.Context, apiKey string) *domain.UserRecord {
	if len(apiKey) <= len(APIKeyPrefix) || apiKey[:len(APIKeyPrefix)] != APIKeyPrefix {
		return nil
	}

	id, err := s.store.Get(ctx, apiKeyKeyPrefix+apiKey)
	if err != nil {
		return nil
	}

	rec, err := s.getRecord(ctx, id)
	if err != nil || !rec.Active {
		return nil
	}

	go s.touchUsage(rec.ID)

	return rec
}

// touchUsage bumps the usage counters on a background context so a slow or
// failing stat write never affects the authenticated request. It only writes
// the usage: key; the user record, and with it the key and active flags, is
// never rewritten here no matter how late the goroutine lands.
func (s *Service) touchUsage(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var usage domain.Usage
	if raw, err := s.store.Get(ctx, usageKeyPrefix+id); err == nil {
		if err := json.Unmarshal([]byte(raw), &usage); err != nil {
			usage = domain.Usage{}
		}
	}
	usage.TotalRequests++
	usage.LastRequestAt = time.Now()

	raw, err := json.Marshal(usage)
	if err != nil {
		log.Warn().Err(err).Str("user_id", id).Msg("failed to marshal usage stats")
		return
	}
	if err := s.store.Set(ctx, usageKeyPrefix+id, string(raw)); err != nil {
		log.Warn().Err(err).Str("user_id", id).Msg("failed to update usage stats")
	}
}

// RotateAPIKey replaces a user's key. The old index entry is removed before
// the new one is installed, so the old key stops authenticating immediately.
func (s *Service) RotateAPIKey(ctx context.Context, id string) (string, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return "", err
	}

	newKey, err := generateAPIKey()
	if err != nil {
		return "", err
	}

	if err := s.store.Delete(ctx, apiKeyKeyPrefix+rec.APIKey); err != nil {
		return "", err
	}

	rec.APIKey = newKey
	if err := s.putRecord(ctx, rec); err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, apiKeyKeyPrefix+newKey, rec.ID); err != nil {
		return "", err
	}

	log.Info().Str("user_id", id).Msg("rotated api key")

	return newKey, nil
}

// DeactivateUser marks a record inactive and removes its key mapping so the
// key can no longer authenticate. The record itself is retained for audit.
func (s *Service) DeactivateUser(ctx context.Context, id string) (bool, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !rec.Active {
		return false, nil
	}

	rec.Active = false
	if err := s.putRecord(ctx, rec); err != nil {
		return false, err
	}
	if err := s.store.Delete(ctx, apiKeyKeyPrefix+rec.APIKey); err != nil {
		return false, err
	}

	if _, err := s.store.Decr(ctx, statsActiveUsersKey); err != nil {
		log.Warn().Err(err).Msg("failed to decrement active user counter")
	}

	log.Info().Str("user_id", id).Msg("deactivated user")

	return true, nil
}

// ReactivateUser re-enables a record under a freshly minted key. The old key
// is never restored since its compromise cannot be ruled out.
func (s *Service) ReactivateUser(ctx context.Context, id string) (string, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return "", err
	}

	newKey, err := generateAPIKey()
	if err != nil {
		return "", err
	}

	wasActive := rec.Active
	if wasActive {
		// A still-active record gets its old mapping removed first, same
		// as a rotation.
		if err := s.store.Delete(ctx, apiKeyKeyPrefix+rec.APIKey); err != nil {
			return "", err
		}
	}

	rec.APIKey = newKey
	rec.Active = true
	if err := s.putRecord(ctx, rec); err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, apiKeyKeyPrefix+newKey, rec.ID); err != nil {
		return "", err
	}

	if !wasActive {
		if _, err := s.store.Incr(ctx, statsActiveUsersKey); err != nil {
			log.Warn().Err(err).Msg("failed to increment active user counter")
		}
	}

	log.Info().Str("user_id", id).Msg("reactivated user")

	return newKey, nil
}

// UserList is one page of sanitized records.
type UserList struct {
	Users   []domain.SanitizedUser `json:"users"`
	Cursor  string                 `json:"cursor,omitempty"`
	HasMore bool                   `json:"has_more"`
}

// ListUsers returns a page of records with credentials stripped.
func (s *Service) ListUsers(ctx context.Context, limit int64, cursor string) (*UserList, error) {
	if limit <= 0 {
		limit = 50
	}

	keys, next, err := s.store.Scan(ctx, userKeyPrefix, cursor, limit)
	if err != nil {
		return nil, err
	}

	out := &UserList{
		Users:   make([]domain.SanitizedUser, 0, len(keys)),
		Cursor:  next,
		HasMore: next != "",
	}
	for _, key := range keys {
		rec, err := s.getRecord(ctx, key[len(userKeyPrefix):])
		if err != nil {
			// Records can disappear between scan and get.
			continue
		}
		out.Users = append(out.Users, rec.Sanitize())
	}
	return out, nil
}

// CleanupInactiveUsers deactivates every active record whose last use
// predates the cutoff. Returns the number of records deactivated.
func (s *Service) CleanupInactiveUsers(ctx context.Context, daysInactive int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -daysInactive)
	count := 0
	cursor := ""

	for {
		keys, next, err := s.store.Scan(ctx, userKeyPrefix, cursor, 100)
		if err != nil {
			return count, err
		}
		for _, key := range keys {
			rec, err := s.getRecord(ctx, key[len(userKeyPrefix):])
			if err != nil || !rec.Active {
				continue
			}
			lastSeen := rec.LastUsed
			if lastSeen.IsZero() {
				lastSeen = rec.CreatedAt
			}
			if lastSeen.Before(cutoff) {
				if _, err := s.DeactivateUser(ctx, rec.ID); err != nil {
					log.Warn().Err(err).Str("user_id", rec.ID).Msg("cleanup failed to deactivate user")
					continue
				}
				count++
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}

	log.Info().Int("deactivated", count).Int("days_inactive", daysInactive).Msg("cleanup pass complete")

	return count, nil
}

// Stats reports the global registration counters.
func (s *Service) Stats(ctx context.Context) (total, active int64, err error) {
	total, err = s.readCounter(ctx, statsTotalUsersKey)
	if err != nil {
		return 0, 0, err
	}
	active, err = s.readCounter(ctx, statsActiveUsersKey)
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func (s *Service) readCounter(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}
