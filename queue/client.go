package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	council "github.com/zero-day-ai/council"
)

// Client defines the broker operations used by producers, workers and recovery.
type Client interface {
	// Keys returns the key layout for the client's namespace.
	Keys() Keys

	// Enqueue appends a task payload to the tail of the main queue (RPUSH).
	Enqueue(ctx context.Context, payload string) error

	// AwaitResult blocks up to timeout for the first result on a subtask's
	// result list (BLPOP). Returns ErrNoResult when nothing arrives.
	AwaitResult(ctx context.Context, subtaskID string, timeout time.Duration) (string, error)

	// Claim atomically moves the head of the main queue into the worker's
	// processing list (BLMOVE), blocking up to timeout. Returns nil on an idle tick.
	Claim(ctx context.Context, workerID string, timeout time.Duration) (*Claim, error)

	// Commit removes one occurrence of the claimed payload from the processing list.
	Commit(ctx context.Context, claim *Claim) error

	// PublishResult appends a response to the result list and sets its TTL
	// in a single transaction.
	PublishResult(ctx context.Context, subtaskID, payload string, ttl time.Duration) error

	// Heartbeat writes the worker's liveness key with the given TTL.
	Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error

	// ClearHeartbeat deletes the worker's liveness key.
	ClearHeartbeat(ctx context.Context, workerID string) error

	// IsAlive reports whether the worker's liveness key exists.
	IsAlive(ctx context.Context, workerID string) (bool, error)

	// ProcessingWorkers lists the worker ids that own a processing list.
	ProcessingWorkers(ctx context.Context) ([]string, error)

	// Requeue moves the oldest payload of a worker's processing list to the
	// tail of the main queue. Returns false once the list is empty.
	Requeue(ctx context.Context, workerID string) (bool, error)

	// DeadLetter moves a claimed payload to the dead-letter list.
	DeadLetter(ctx context.Context, claim *Claim) error

	// Pending returns the payloads currently held in a worker's processing list.
	Pending(ctx context.Context, workerID string) ([]string, error)

	// QueueLength returns the number of payloads waiting on the main queue.
	QueueLength(ctx context.Context) (int64, error)

	// Ping checks broker connectivity.
	Ping(ctx context.Context) error

	// Close closes the broker connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Namespace prefixes every key. Defaults to DefaultNamespace.
	Namespace string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations.
	// Blocking commands extend it by their own timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisClient implements the Client interface using go-redis/v9.
type RedisClient struct {
	client *redis.Client
	keys   Keys
}

// NewRedisClient creates a new Redis queue client with the given options.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, council.NewConfigurationError("NewRedisClient",
			fmt.Errorf("failed to parse Redis URL %s: %w", SanitizeURL(opts.URL), err))
	}

	if opts.TLS != nil {
		redisOpts.TLSConfig = opts.TLS
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, council.NewBrokerError("NewRedisClient",
			fmt.Errorf("failed to connect to Redis at %s: %w", SanitizeURL(opts.URL), err))
	}

	return &RedisClient{client: client, keys: NewKeys(opts.Namespace)}, nil
}

// NewRedisClientFrom wraps an existing go-redis client without pinging it.
func NewRedisClientFrom(client *redis.Client, namespace string) *RedisClient {
	return &RedisClient{client: client, keys: NewKeys(namespace)}
}

// Keys returns the key layout for the client's namespace.
func (c *RedisClient) Keys() Keys {
	return c.keys
}

// Enqueue appends a task payload to the tail of the main queue.
func (c *RedisClient) Enqueue(ctx context.Context, payload string) error {
	if err := c.client.RPush(ctx, c.keys.Tasks(), payload).Err(); err != nil {
		return council.NewBrokerError("RedisClient.Enqueue",
			fmt.Errorf("failed to push to queue %s: %w", c.keys.Tasks(), err))
	}
	return nil
}

// AwaitResult blocks up to timeout for the first result on the subtask's list.
// A non-positive timeout polls once without blocking. Positive timeouts are
// rounded up to whole seconds, the resolution of BLPOP.
func (c *RedisClient) AwaitResult(ctx context.Context, subtaskID string, timeout time.Duration) (string, error) {
	key := c.keys.Result(subtaskID)

	if timeout <= 0 {
		payload, err := c.client.LPop(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", ErrNoResult
		}
		if err != nil {
			return "", council.NewBrokerError("RedisClient.AwaitResult",
				fmt.Errorf("failed to pop result %s: %w", key, err))
		}
		return payload, nil
	}

	// BLPOP returns [key, value] or redis.Nil on timeout
	result, err := c.client.BLPop(ctx, blockTimeout(timeout), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoResult
		}
		return "", council.NewBrokerError("RedisClient.AwaitResult",
			fmt.Errorf("failed to wait on result %s: %w", key, err))
	}

	if len(result) != 2 {
		return "", council.NewBrokerError("RedisClient.AwaitResult",
			fmt.Errorf("unexpected BLPOP result length: %d", len(result)))
	}

	return result[1], nil
}

// Claim moves the head of the main queue to the head of the worker's
// processing list. The move is atomic on the broker, so a payload is always
// in exactly one of the two lists. The timeout is rounded up to whole
// seconds, and a non-positive timeout waits one second.
func (c *RedisClient) Claim(ctx context.Context, workerID string, timeout time.Duration) (*Claim, error) {
	payload, err := c.client.BLMove(ctx, c.keys.Tasks(), c.keys.Processing(workerID), "LEFT", "LEFT", blockTimeout(timeout)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, council.NewBrokerError("RedisClient.Claim",
			fmt.Errorf("failed to claim from queue %s: %w", c.keys.Tasks(), err))
	}

	return &Claim{WorkerID: workerID, Payload: payload, ClaimedAt: time.Now()}, nil
}

// Commit removes exactly one occurrence of the claimed payload.
func (c *RedisClient) Commit(ctx context.Context, claim *Claim) error {
	key := c.keys.Processing(claim.WorkerID)
	if err := c.client.LRem(ctx, key, 1, claim.Payload).Err(); err != nil {
		return council.NewBrokerError("RedisClient.Commit",
			fmt.Errorf("failed to remove claim from %s: %w", key, err))
	}
	return nil
}

// PublishResult appends a response and sets the result list's TTL atomically.
func (c *RedisClient) PublishResult(ctx context.Context, subtaskID, payload string, ttl time.Duration) error {
	key := c.keys.Result(subtaskID)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return council.NewBrokerError("RedisClient.PublishResult",
			fmt.Errorf("failed to publish result %s: %w", key, err))
	}
	return nil
}

// Heartbeat writes the worker's liveness key with the given TTL.
func (c *RedisClient) Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error {
	key := c.keys.Heartbeat(workerID)
	if err := c.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return council.NewBrokerError("RedisClient.Heartbeat",
			fmt.Errorf("failed to set heartbeat for worker %s: %w", workerID, err))
	}
	return nil
}

// ClearHeartbeat deletes the worker's liveness key.
func (c *RedisClient) ClearHeartbeat(ctx context.Context, workerID string) error {
	if err := c.client.Del(ctx, c.keys.Heartbeat(workerID)).Err(); err != nil {
		return council.NewBrokerError("RedisClient.ClearHeartbeat",
			fmt.Errorf("failed to delete heartbeat for worker %s: %w", workerID, err))
	}
	return nil
}

// IsAlive reports whether the worker's liveness key exists.
func (c *RedisClient) IsAlive(ctx context.Context, workerID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.keys.Heartbeat(workerID)).Result()
	if err != nil {
		return false, council.NewBrokerError("RedisClient.IsAlive",
			fmt.Errorf("failed to check heartbeat for worker %s: %w", workerID, err))
	}
	return n > 0, nil
}

// ProcessingWorkers scans for processing lists and returns their worker ids.
func (c *RedisClient) ProcessingWorkers(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var workers []string

	iter := c.client.Scan(ctx, 0, c.keys.ProcessingPattern(), 100).Iterator()
	for iter.Next(ctx) {
		id, ok := c.keys.WorkerFromProcessing(iter.Val())
		if !ok {
			continue
		}
		// SCAN may return a key more than once
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		workers = append(workers, id)
	}
	if err := iter.Err(); err != nil {
		return nil, council.NewBrokerError("RedisClient.ProcessingWorkers",
			fmt.Errorf("failed to scan %s: %w", c.keys.ProcessingPattern(), err))
	}

	return workers, nil
}

// Requeue moves the oldest claim of a worker back to the tail of the main queue.
func (c *RedisClient) Requeue(ctx context.Context, workerID string) (bool, error) {
	src := c.keys.Processing(workerID)

	// Claims are pushed on the left, so the right end holds the oldest
	err := c.client.LMove(ctx, src, c.keys.Tasks(), "RIGHT", "RIGHT").Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, council.NewBrokerError("RedisClient.Requeue",
			fmt.Errorf("failed to requeue from %s: %w", src, err))
	}
	return true, nil
}

// DeadLetter moves a claimed payload from the processing list to the
// dead-letter list in one transaction.
func (c *RedisClient) DeadLetter(ctx context.Context, claim *Claim) error {
	src := c.keys.Processing(claim.WorkerID)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, src, 1, claim.Payload)
		pipe.RPush(ctx, c.keys.DeadLetter(), claim.Payload)
		return nil
	})
	if err != nil {
		return council.NewBrokerError("RedisClient.DeadLetter",
			fmt.Errorf("failed to dead-letter claim from %s: %w", src, err))
	}
	return nil
}

// Pending returns the payloads held in a worker's processing list, newest first.
func (c *RedisClient) Pending(ctx context.Context, workerID string) ([]string, error) {
	key := c.keys.Processing(workerID)
	items, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, council.NewBrokerError("RedisClient.Pending",
			fmt.Errorf("failed to read %s: %w", key, err))
	}
	return items, nil
}

// QueueLength returns the number of payloads waiting on the main queue.
func (c *RedisClient) QueueLength(ctx context.Context) (int64, error) {
	n, err := c.client.LLen(ctx, c.keys.Tasks()).Result()
	if err != nil {
		return 0, council.NewBrokerError("RedisClient.QueueLength",
			fmt.Errorf("failed to read length of %s: %w", c.keys.Tasks(), err))
	}
	return n, nil
}

// Ping checks broker connectivity.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return council.NewBrokerError("RedisClient.Ping", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// SanitizeURL masks the password in a connection URL for logging.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}

// blockTimeout rounds d up to the whole seconds Redis blocking commands
// accept. go-redis would otherwise truncate fractions and log a warning for
// every sub-second wait.
func blockTimeout(d time.Duration) time.Duration {
	if d <= time.Second {
		return time.Second
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}
