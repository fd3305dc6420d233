package pricefeed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const redisFeedPrefix = "pricefeed:v1:"

const (
	fieldAnswer    = "answer"
	fieldDecimals  = "decimals"
	fieldRound     = "round"
	fieldUpdatedAt = "updated_at"
)

// RedisFeeds stores feeds as Redis hashes so that every replica reads the
// same answer. Readings are never cached in-process.
type RedisFeeds struct {
	client *redis.Client
}

// NewRedisFeeds builds a feed registry on top of a Redis client.
func NewRedisFeeds(client *redis.Client) *RedisFeeds {
	return &RedisFeeds{client: client}
}

func feedKey(ref string) string {
	return redisFeedPrefix + ref
}

// Resolve returns an oracle bound to ref if the feed exists.
func (f *RedisFeeds) Resolve(ctx context.Context, ref string) (Oracle, error) {
	ok, err := f.client.HExists(ctx, feedKey(ref), fieldDecimals).Result()
	if err != nil {
		return nil, fmt.Errorf("lookup feed %s: %w", ref, err)
	}
	if !ok {
		return nil, ErrFeedNotFound
	}
	return &redisOracle{client: f.client, key: feedKey(ref)}, nil
}

// createFeed writes every field of a feed in one step. A hash without the
// decimals field is incomplete and is overwritten.
var createFeed = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'decimals') == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'answer', ARGV[1], 'decimals', ARGV[2], 'round', 1, 'updated_at', ARGV[3])
return 1
`)

// Create stores a new feed. The existence check and the write run as one
// script, so concurrent creators and readers never see a partial feed.
func (f *RedisFeeds) Create(ctx context.Context, ref string, decimals int32, answer decimal.Decimal) (Price, error) {
	if ref == "" {
		return Price{}, ErrFeedNotFound
	}
	if err := validate(decimals, answer); err != nil {
		return Price{}, err
	}
	now := time.Now().UTC()
	created, err := createFeed.Run(ctx, f.client, []string{feedKey(ref)},
		answer.String(), decimals, now.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return Price{}, fmt.Errorf("create feed %s: %w", ref, err)
	}
	if created == 0 {
		return Price{}, ErrFeedExists
	}
	return Price{Rate: answer, Decimals: decimals, Round: 1, UpdatedAt: now}, nil
}

// UpdateAnswer sets a new answer and bumps the round counter.
func (f *RedisFeeds) UpdateAnswer(ctx context.Context, ref string, answer decimal.Decimal) (Price, error) {
	oracle, err := f.Resolve(ctx, ref)
	if err != nil {
		return Price{}, err
	}
	current, err := oracle.Latest(ctx)
	if err != nil {
		return Price{}, err
	}
	if err := validate(current.Decimals, answer); err != nil {
		return Price{}, err
	}

	key := feedKey(ref)
	now := time.Now().UTC()
	var round *redis.IntCmd
	_, err = f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldAnswer, answer.String(), fieldUpdatedAt, now.Format(time.RFC3339Nano))
		round = pipe.HIncrBy(ctx, key, fieldRound, 1)
		return nil
	})
	if err != nil {
		return Price{}, fmt.Errorf("update feed %s: %w", ref, err)
	}
	return Price{Rate: answer, Decimals: current.Decimals, Round: uint64(round.Val()), UpdatedAt: now}, nil
}

type redisOracle struct {
	client *redis.Client
	key    string
}

func (o *redisOracle) Latest(ctx context.Context) (Price, error) {
	values, err := o.client.HMGet(ctx, o.key, fieldAnswer, fieldDecimals, fieldRound, fieldUpdatedAt).Result()
	if err != nil {
		return Price{}, fmt.Errorf("read feed: %w", err)
	}
	if values[0] == nil || values[1] == nil {
		return Price{}, ErrFeedNotFound
	}

	raw := make([]string, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			raw[i] = s
		}
	}

	answer, err := decimal.NewFromString(raw[0])
	if err != nil {
		return Price{}, fmt.Errorf("decode answer: %w", err)
	}
	decimals, err := strconv.ParseInt(raw[1], 10, 32)
	if err != nil {
		return Price{}, fmt.Errorf("decode decimals: %w", err)
	}
	p := Price{Rate: answer, Decimals: int32(decimals)}
	if raw[2] != "" {
		if p.Round, err = strconv.ParseUint(raw[2], 10, 64); err != nil {
			return Price{}, fmt.Errorf("decode round: %w", err)
		}
	}
	if raw[3] != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw[3])
		if err != nil {
			return Price{}, fmt.Errorf("decode updated_at: %w", err)
		}
		p.UpdatedAt = ts
	}
	return p, nil
}

var _ Admin = (*RedisFeeds)(nil)
