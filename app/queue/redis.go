package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
)

const promoteBatchSize = 100

// promoteScript moves one delayed entry to the ready list atomically. It
// returns 0 when another promoter already took the entry.
const promoteScript = `
if redis.call("ZREM", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("LPUSH", KEYS[2], ARGV[1])
return 1
`

// redisClient is the subset of *redis.Client the queue uses.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisQueue keeps jobs in four keys: a ready list, one in-flight list per
// consumer, a sorted set of delayed retries scored by due time, and a dead list.
type RedisQueue struct {
	client      redisClient
	name        string
	consumer    string
	maxAttempts int
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewRedisQueue(client redisClient, name, consumer string, maxAttempts int) *RedisQueue {
	return &RedisQueue{
		client:      client,
		name:        name,
		consumer:    consumer,
		maxAttempts: maxAttempts,
		logger:      factory.NewModuleLogger("queue"),
		now:         time.Now,
	}
}

func (q *RedisQueue) readyKey() string      { return q.name + ":ready" }
func (q *RedisQueue) processingKey() string { return q.name + ":processing:" + q.consumer }
func (q *RedisQueue) delayedKey() string    { return q.name + ":delayed" }
func (q *RedisQueue) deadKey() string       { return q.name + ":dead" }

func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, payload any) error {
	job, err := NewJob(jobType, payload, q.maxAttempts, q.now())
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", jobType, err)
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.readyKey(), string(raw)).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}

	q.logger.WithFields(logrus.Fields{"job_id": job.ID, "job_type": jobType}).Debug("job_enqueued")
	return nil
}

// Dequeue blocks up to timeout for the next job and moves it to this
// consumer's in-flight list. It returns nil when nothing arrived in time.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	raw, err := q.client.BLMove(ctx, q.readyKey(), q.processingKey(), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job := &Job{}
	if err := json.Unmarshal([]byte(raw), job); err != nil {
		q.logger.WithError(err).Error("job_undecodable")
		if buryErr := q.moveToDead(ctx, raw); buryErr != nil {
			return nil, errors.Join(err, buryErr)
		}
		return nil, nil
	}

	return &Delivery{Job: job, raw: raw}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, delivery *Delivery) error {
	return q.client.LRem(ctx, q.processingKey(), 1, delivery.raw).Err()
}

// Retry schedules the job again after delay. The delayed entry is written
// before the in-flight entry is removed so a crash in between duplicates the
// job rather than losing it.
func (q *RedisQueue) Retry(ctx context.Context, delivery *Delivery, delay time.Duration, cause error) error {
	job := *delivery.Job
	if cause != nil {
		job.LastError = cause.Error()
	}
	raw, err := json.Marshal(&job)
	if err != nil {
		return err
	}

	due := q.now().Add(delay)
	if err := q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(due.UnixMilli()), Member: string(raw)}).Err(); err != nil {
		return err
	}
	return q.Ack(ctx, delivery)
}

func (q *RedisQueue) Bury(ctx context.Context, delivery *Delivery, cause error) error {
	job := *delivery.Job
	if cause != nil {
		job.LastError = cause.Error()
	}
	raw, err := json.Marshal(&job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.deadKey(), string(raw)).Err(); err != nil {
		return err
	}
	return q.Ack(ctx, delivery)
}

// PromoteDue moves delayed jobs whose time has come back to the ready list.
// Each entry is removed and pushed in one script, so a crash cannot lose it
// and concurrent promoters never duplicate it.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: promoteBatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, member := range members {
		moved, err := q.client.Eval(ctx, promoteScript, []string{q.delayedKey(), q.readyKey()}, member).Int()
		if err != nil {
			return promoted, err
		}
		promoted += moved
	}
	return promoted, nil
}

// Requeue returns jobs left in this consumer's in-flight list by a previous
// run that stopped before settling them.
func (q *RedisQueue) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processingKey(), q.readyKey(), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}

func (q *RedisQueue) moveToDead(ctx context.Context, raw string) error {
	if err := q.client.LPush(ctx, q.deadKey(), raw).Err(); err != nil {
		return err
	}
	return q.client.LRem(ctx, q.processingKey(), 1, raw).Err()
}
