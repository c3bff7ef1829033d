package memory

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
)

const episodePrefix = "memory:episodic:"

// RedisEpisodicStore implements EpisodicStore using Redis hashes
type RedisEpisodicStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEpisodicStore connects to Redis and verifies the connection
func NewRedisEpisodicStore(config *Config) (*RedisEpisodicStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisURL,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisEpisodicStore{
		client: client,
		ttl:    time.Duration(config.RetentionDays) * 24 * time.Hour,
	}, nil
}

// Store upserts an episode as a hash with a retention TTL
func (s *RedisEpisodicStore) Store(ctx context.Context, ep *Episode) error {
	body := *ep
	body.Embedding = nil // stored separately as packed floats
	data, err := json.Marshal(&body)
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}

	key := episodePrefix + ep.ID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"data":       data,
		"embedding":  serializeEmbedding(ep.Embedding),
		"task_type":  string(ep.TaskType),
		"importance": ep.Importance,
		"timestamp":  ep.CreatedAt.Unix(),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store episode: %w", err)
	}
	return nil
}

// Load returns every stored episode
func (s *RedisEpisodicStore) Load(ctx context.Context) ([]*Episode, error) {
	var episodes []*Episode

	iter := s.client.Scan(ctx, 0, episodePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read episode %s: %w", iter.Val(), err)
		}
		data, ok := fields["data"]
		if !ok {
			continue
		}

		var ep Episode
		if err := json.Unmarshal([]byte(data), &ep); err != nil {
			continue // skip malformed entries
		}
		ep.Embedding = deserializeEmbedding([]byte(fields["embedding"]))
		episodes = append(episodes, &ep)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return episodes, nil
}

// Delete removes an episode
func (s *RedisEpisodicStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, episodePrefix+id).Err()
}

// Count returns total number of stored episodes
func (s *RedisEpisodicStore) Count(ctx context.Context) (int64, error) {
	iter := s.client.Scan(ctx, 0, episodePrefix+"*", 0).Iterator()
	count := int64(0)
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// Close closes the Redis connection
func (s *RedisEpisodicStore) Close() error {
	return s.client.Close()
}

// serializeEmbedding packs a float32 vector as little-endian bytes
func serializeEmbedding(embedding []float32) []byte {
	out := make([]byte, len(embedding)*4)
	for i, val := range embedding {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(val))
	}
	return out
}

// deserializeEmbedding reverses serializeEmbedding
func deserializeEmbedding(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
