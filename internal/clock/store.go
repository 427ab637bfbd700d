// Package clock is the authoritative record of when each attempt expires.
// Deadlines are absolute timestamps stored in Redis and mirrored on the
// attempt row in PostgreSQL, so every request handler in a horizontally
// scaled deployment computes "is this attempt still open" from the same
// source regardless of which process serves the request or what the client
// clock claims. There are no in-process timers: expiry is detected lazily
// by whichever read or write touches the attempt past its deadline.
package clock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/prepdeck-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrDeadlineAlreadySet is returned when SetDeadline is called twice for
	// the same attempt. Deadlines are set exactly once, at attempt creation.
	ErrDeadlineAlreadySet = errors.New("deadline already set for attempt")

	// ErrDeadlineNotFound is returned when neither Redis nor durable storage
	// has a deadline for the attempt.
	ErrDeadlineNotFound = errors.New("no deadline recorded for attempt")
)

const (
	remainingRetries = 2
	retryBackoff     = 50 * time.Millisecond
)

// DeadlineFallback resolves an attempt's deadline from durable storage when
// the Redis record is missing (evicted, or written before a cache restart).
type DeadlineFallback interface {
	AttemptDeadline(ctx context.Context, attemptID uuid.UUID) (deadline time.Time, found bool, err error)
}

// Store reads and writes attempt deadlines.
type Store struct {
	rdb       *redis.Client
	fallback  DeadlineFallback
	retention time.Duration
	log       zerolog.Logger

	now func() time.Time // overridable in tests
}

// NewStore creates a deadline store. retention controls how long the Redis
// record outlives the deadline itself so late requests resolve from cache.
func NewStore(rdb *redis.Client, fallback DeadlineFallback, retention time.Duration, log zerolog.Logger) *Store {
	return &Store{
		rdb:       rdb,
		fallback:  fallback,
		retention: retention,
		log:       log.With().Str("component", "clock_store").Logger(),
		now:       time.Now,
	}
}

// SetDeadline records the attempt's absolute deadline. Called exactly once at
// attempt creation; a second call for the same attempt fails with
// ErrDeadlineAlreadySet.
func (s *Store) SetDeadline(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error {
	ttl := deadline.Sub(s.now()) + s.retention
	if ttl < s.retention {
		ttl = s.retention
	}

	key := config.CacheKey.AttemptDeadlineKey(attemptID.String())
	ok, err := s.rdb.SetNX(ctx, key, deadline.Unix(), ttl).Result()
	if err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if !ok {
		return ErrDeadlineAlreadySet
	}
	return nil
}

// Remaining returns the seconds left before the attempt's deadline, clamped
// to zero, and whether the deadline has passed. The Redis read is retried
// with a short backoff; on a cache miss the durable attempt record is the
// source of truth and the cache is re-primed. ErrDeadlineNotFound means no
// record exists anywhere for the attempt.
//
// Callers must treat an error here as "unknown", never as "not expired":
// mutations fail closed on ambiguity.
func (s *Store) Remaining(ctx context.Context, attemptID uuid.UUID) (int64, bool, error) {
	key := config.CacheKey.AttemptDeadlineKey(attemptID.String())

	var (
		val string
		err error
	)
	for attempt := 0; ; attempt++ {
		val, err = s.rdb.Get(ctx, key).Result()
		if err == nil || errors.Is(err, redis.Nil) || attempt >= remainingRetries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt+1)):
		}
	}

	switch {
	case errors.Is(err, redis.Nil):
		deadline, found, fbErr := s.fallback.AttemptDeadline(ctx, attemptID)
		if fbErr != nil {
			return 0, false, fmt.Errorf("deadline fallback: %w", fbErr)
		}
		if !found {
			return 0, false, ErrDeadlineNotFound
		}
		// Re-prime the cache so the next read is fast.
		if healErr := s.rdb.Set(ctx, key, deadline.Unix(), s.retention).Err(); healErr != nil {
			s.log.Warn().Err(healErr).Str("attempt_id", attemptID.String()).Msg("Deadline cache heal failed")
		}
		return s.remainingUntil(deadline)

	case err != nil:
		return 0, false, fmt.Errorf("get deadline: %w", err)
	}

	unix, parseErr := strconv.ParseInt(val, 10, 64)
	if parseErr != nil {
		return 0, false, fmt.Errorf("invalid deadline format in cache: %w", parseErr)
	}
	return s.remainingUntil(time.Unix(unix, 0))
}

// Clear releases the deadline record after finalization. Best-effort:
// correctness is driven by attempt status, not by key presence.
func (s *Store) Clear(ctx context.Context, attemptID uuid.UUID) error {
	key := config.CacheKey.AttemptDeadlineKey(attemptID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear deadline: %w", err)
	}
	return nil
}

func (s *Store) remainingUntil(deadline time.Time) (int64, bool, error) {
	remaining := deadline.Sub(s.now())
	if remaining <= 0 {
		return 0, true, nil
	}
	// Round up so a freshly started attempt reports its full duration.
	secs := int64((remaining + time.Second - 1) / time.Second)
	return secs, false, nil
}
