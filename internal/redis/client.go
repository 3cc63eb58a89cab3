package redis

import (
	"cafe_bot/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// maxStoredTurns bounds each customer's history list; reads only ever need the tail.
const maxStoredTurns = 50

type Client struct {
	rdb        *redis.Client
	historyTTL time.Duration
}

func Initialize(redisURL string, historyTTL time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, historyTTL: historyTTL}, nil
}

const historyPrefix = "chat_history:"

func historyKey(customerID string) string {
	return historyPrefix + customerID
}

// AppendTurn pushes a turn onto the customer's history, trims it and refreshes the TTL.
func (c *Client) AppendTurn(ctx context.Context, customerID string, turn models.ConversationTurn) error {
	turn.Timestamp = turn.Timestamp.UTC()
	jsonData, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := historyKey(customerID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, jsonData)
		pipe.LTrim(ctx, key, -maxStoredTurns, -1)
		if c.historyTTL > 0 {
			pipe.Expire(ctx, key, c.historyTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// GetRecentTurns returns up to limit turns, oldest first.
func (c *Client) GetRecentTurns(ctx context.Context, customerID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	vals, err := c.rdb.LRange(ctx, historyKey(customerID), int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}

	turns := make([]models.ConversationTurn, 0, len(vals))
	for _, val := range vals {
		var turn models.ConversationTurn
		if err := json.Unmarshal([]byte(val), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turn.Timestamp = turn.Timestamp.UTC()
		turns = append(turns, turn)
	}
	return turns, nil
}

// ClearHistory deletes every customer's conversation history and returns how
// many histories were removed.
func (c *Client) ClearHistory(ctx context.Context) (int, error) {
	removed := 0
	iter := c.rdb.Scan(ctx, 0, historyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.rdb.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete chat history: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan chat history: %w", err)
	}
	return removed, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
