package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	performerdomain "github.com/stagewire/stagewire/internal/performer/domain"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a best-effort distributed lock over redis SET NX. A nil
// Locker means single-instance mode: every TryLock succeeds.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the lock only when the token still matches, so an
// expired lock re-acquired by another instance is never clobbered.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// WorkFee is the slice of a fee record the clearing sweep needs.
type WorkFee struct {
	GigID       snowflake.ID
	PerformerID snowflake.ID
	Status      performerdomain.FeeStatus
	ClearAt     *time.Time
}

// fetchDueFeesForWork returns pending fee records whose clearing deadline
// has passed.
func (s *Scheduler) fetchDueFeesForWork(ctx context.Context, now time.Time, limit int) ([]WorkFee, error) {
	if limit <= 0 {
		limit = s.cfg.MaxClearBatchSize
	}
	var fees []WorkFee
	err := s.db.WithContext(ctx).Raw(
		`SELECT gig_id, performer_id, status, clear_at
		 FROM fee_records
		 WHERE status = ? AND clear_at IS NOT NULL AND clear_at <= ?
		 ORDER BY clear_at ASC, gig_id ASC
		 LIMIT ?`,
		performerdomain.FeeStatusPending,
		now,
		limit,
	).Scan(&fees).Error
	if err != nil {
		return nil, err
	}
	return fees, nil
}
