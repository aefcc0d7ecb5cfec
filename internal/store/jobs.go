// Package store adapts the persistent job-document collection. Jobs are
// whole JSON documents; the document write is the atomic unit, and watchers
// receive full replace-on-change snapshots (last write observed wins).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/fieldpunch/api/internal/model"
)

// ErrJobNotFound is returned for a stale reference to a deleted job.
var ErrJobNotFound = errors.New("job not found")

// JobStore is the persistent collection of job documents.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*model.Job, error)
	Create(ctx context.Context, job *model.Job) error
	Update(ctx context.Context, job *model.Job) error
	Delete(ctx context.Context, job *model.Job) error
	ListByUser(ctx context.Context, userID string) ([]model.Job, error)
	// Watch streams full job-list snapshots for one owner: an initial
	// snapshot, then one per observed change, until ctx is done.
	Watch(ctx context.Context, userID string) (<-chan []model.Job, error)
}

// RedisJobStore implements JobStore on redis. Each job is one JSON document;
// a per-user list index preserves newest-first insertion order independent
// of createdAt clock skew; a per-user pub/sub channel fans out changes.
type RedisJobStore struct {
	redis *redis.Client
}

func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: redisClient}
}

func jobKey(jobID string) string   { return fmt.Sprintf("punchlist:job:%s", jobID) }
func userKey(userID string) string { return fmt.Sprintf("punchlist:user:%s:jobs", userID) }
func changeChannel(userID string) string {
	return fmt.Sprintf("punchlist:changes:%s", userID)
}

func (s *RedisJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *RedisJobStore) Create(ctx context.Context, job *model.Job) error {
	if err := s.put(ctx, job); err != nil {
		return err
	}
	if err := s.redis.LPush(ctx, userKey(job.UserID), job.ID).Err(); err != nil {
		return err
	}
	s.notify(ctx, job.UserID)
	return nil
}

func (s *RedisJobStore) Update(ctx context.Context, job *model.Job) error {
	if err := s.put(ctx, job); err != nil {
		return err
	}
	s.notify(ctx, job.UserID)
	return nil
}

func (s *RedisJobStore) Delete(ctx context.Context, job *model.Job) error {
	if err := s.redis.Del(ctx, jobKey(job.ID)).Err(); err != nil {
		return err
	}
	if err := s.redis.LRem(ctx, userKey(job.UserID), 0, job.ID).Err(); err != nil {
		return err
	}
	s.notify(ctx, job.UserID)
	return nil
}

func (s *RedisJobStore) ListByUser(ctx context.Context, userID string) ([]model.Job, error) {
	ids, err := s.redis.LRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				// Stale index entry from a concurrent delete.
				continue
			}
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

func (s *RedisJobStore) Watch(ctx context.Context, userID string) (<-chan []model.Job, error) {
	sub := s.redis.Subscribe(ctx, changeChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan []model.Job, 8)

	go func() {
		defer close(out)
		defer sub.Close()

		s.sendSnapshot(ctx, userID, out)

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Channel():
				if !ok {
					return
				}
				s.sendSnapshot(ctx, userID, out)
			}
		}
	}()

	return out, nil
}

func (s *RedisJobStore) sendSnapshot(ctx context.Context, userID string, out chan []model.Job) {
	jobs, err := s.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("Failed to load job snapshot for user %s: %v", userID, err)
		return
	}

	select {
	case out <- jobs:
	case <-ctx.Done():
	default:
		// Slow subscriber: drop the stale pending snapshot for this one.
		select {
		case <-out:
		default:
		}
		select {
		case out <- jobs:
		default:
		}
	}
}

func (s *RedisJobStore) put(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, 0).Err()
}

func (s *RedisJobStore) notify(ctx context.Context, userID string) {
	if err := s.redis.Publish(ctx, changeChannel(userID), "changed").Err(); err != nil {
		log.Printf("Failed to publish job change for user %s: %v", userID, err)
	}
}
