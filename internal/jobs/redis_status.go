package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// RedisStatusStore keeps descriptors in Redis so several API processes can
// poll the same jobs. Each owner has a sorted index of job IDs by creation
// time, and a shared set holds the keys of running jobs.
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusStore creates a store. Descriptors expire after ttl; zero
// keeps them forever.
func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{client: client, ttl: ttl}
}

func jobKey(ownerID, jobID string) string {
	return fmt.Sprintf("exco:job:%s:%s", ownerID, jobID)
}

func ownerIndexKey(ownerID string) string {
	return fmt.Sprintf("exco:jobs:%s", ownerID)
}

const runningKey = "exco:running"


func (s *RedisStatusStore) Save(ctx context.Context, d model.JobDescriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, jobKey(d.OwnerID, d.JobID), data, s.ttl)
		p.ZAdd(ctx, ownerIndexKey(d.OwnerID), redis.Z{
			Score:  float64(d.CreatedAt.UnixMilli()),
			Member: d.JobID,
		})
		if d.Status == model.JobRunning {
			p.SAdd(ctx, runningKey, jobKey(d.OwnerID, d.JobID))
		} else {
			p.SRem(ctx, runningKey, jobKey(d.OwnerID, d.JobID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save descriptor: %w", err)
	}
	return nil
}

func (s *RedisStatusStore) Get(ctx context.Context, ownerID, jobID string) (*model.JobDescriptor, error) {
	data, err := s.client.Get(ctx, jobKey(ownerID, jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get descriptor: %w", err)
	}
	var d model.JobDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	return &d, nil
}

func (s *RedisStatusStore) List(ctx context.Context, ownerID string) ([]model.JobDescriptor, error) {
	ids, err := s.client.ZRevRange(ctx, ownerIndexKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(ownerID, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	var list []model.JobDescriptor
	var expired []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var d model.JobDescriptor
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode descriptor %s: %w", ids[i], err)
		}
		list = append(list, d)
	}
	if len(expired) > 0 {
		s.client.ZRem(ctx, ownerIndexKey(ownerID), expired...)
	}
	return list, nil
}

func (s *RedisStatusStore) Running(ctx context.Context) ([]model.JobDescriptor, error) {
	keys, err := s.client.SMembers(ctx, runningKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list running jobs: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load running jobs: %w", err)
	}

	var running []model.JobDescriptor
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		var d model.JobDescriptor
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode descriptor %s: %w", keys[i], err)
		}
		if d.Status != model.JobRunning {
			stale = append(stale, keys[i])
			continue
		}
		running = append(running, d)
	}
	if len(stale) > 0 {
		s.client.SRem(ctx, runningKey, stale...)
	}
	return running, nil
}
