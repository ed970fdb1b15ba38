package bloom

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/starnotary-service/internal/pkg/bloom"
)

// RedisBloomFilter keeps the bitset in a single Redis string so every
// service instance shares it. Bit positions match pkg/bloom.
type RedisBloomFilter struct {
	client redis.Cmdable
	key    string
	m      uint64 // size in bits
	k      uint64 // number of hash functions
}

func NewRedisBloomFilter(client redis.Cmdable, key string, m, k uint64) *RedisBloomFilter {
	return &RedisBloomFilter{
		client: client,
		key:    key,
		m:      m,
		k:      k,
	}
}

func NewRedisBloomFilterWithExpectedItems(client redis.Cmdable, key string, expectedItems uint64, falsePositiveRate float64) *RedisBloomFilter {
	m, k := bloom.OptimalParameters(expectedItems, falsePositiveRate)
	return NewRedisBloomFilter(client, key, m, k)
}

func (bf *RedisBloomFilter) Add(ctx context.Context, element string) error {
	pipe := bf.client.Pipeline()

	for _, bitPos := range bloom.Positions(element, bf.m, bf.k) {
		pipe.SetBit(ctx, bf.key, int64(bitPos), 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (bf *RedisBloomFilter) Contains(ctx context.Context, element string) (bool, error) {
	pipe := bf.client.Pipeline()
	cmds := make([]*redis.IntCmd, 0, bf.k)

	for _, bitPos := range bloom.Positions(element, bf.m, bf.k) {
		cmds = append(cmds, pipe.GetBit(ctx, bf.key, int64(bitPos)))
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	for _, cmd := range cmds {
		if cmd.Val() == 0 {
			return false, nil
		}
	}

	return true, nil
}

func (bf *RedisBloomFilter) Clear(ctx context.Context) error {
	return bf.client.Del(ctx, bf.key).Err()
}
