// Package events publishes moderation stage transitions over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"moderation-service/internal/models"
)

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	// connectionTimeout is the timeout for verifying Redis connection.
	connectionTimeout = 5 * time.Second

	defaultChannel  = "moderation:stages"
	defaultStateTTL = 24 * time.Hour
	stateKeyPrefix  = "moderation:stage:"
)

// Config holds Redis connection configuration.
type Config struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Channel  string        `yaml:"channel"`
	StateTTL time.Duration `yaml:"state_ttl"`
}

// NewClient creates a new Redis client with the given configuration.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisPublisher publishes stage events and keeps the latest event per
// submission under a key with a TTL.
type RedisPublisher struct {
	client   *redis.Client
	channel  string
	stateTTL time.Duration
	logger   *zap.Logger
}

// NewRedisPublisher creates a publisher on client
func NewRedisPublisher(client *redis.Client, cfg Config, logger *zap.Logger) *RedisPublisher {
	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = defaultStateTTL
	}

	return &RedisPublisher{
		client:   client,
		channel:  cfg.Channel,
		stateTTL: cfg.StateTTL,
		logger:   logger,
	}
}

// PublishStage broadcasts ev and records it as the submission's latest stage
func (p *RedisPublisher) PublishStage(ctx context.Context, ev models.StageEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal stage event: %w", err)
	}

	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, stateKeyPrefix+ev.SubmissionID, payload, p.stateTTL)
		pipe.Publish(ctx, p.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish stage event: %w", err)
	}

	p.logger.Debug("Stage event published",
		zap.String("submission_id", ev.SubmissionID),
		zap.String("stage", string(ev.Stage)))

	return nil
}

// LatestStage returns the most recent event for a submission, if still retained
func (p *RedisPublisher) LatestStage(ctx context.Context, submissionID string) (*models.StageEvent, error) {
	raw, err := p.client.Get(ctx, stateKeyPrefix+submissionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stage: %w", err)
	}

	var ev models.StageEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode stage event: %w", err)
	}
	return &ev, nil
}

// Channel returns the pub/sub channel events are published on
func (p *RedisPublisher) Channel() string {
	return p.channel
}
