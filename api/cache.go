package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// boardCache keeps rendered kanban feeds in Redis, one key per user and
// project filter, so board polling does not hammer Postgres.
type boardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func newBoardCache(rdb *redis.Client, ttl time.Duration) *boardCache {
	return &boardCache{rdb: rdb, ttl: ttl}
}

func boardKey(userID, projectID int) string {
	if projectID == 0 {
		return fmt.Sprintf("board:user:%d:all", userID)
	}
	return fmt.Sprintf("board:user:%d:project:%d", userID, projectID)
}

// get returns the cached feed or nil on a miss.
func (c *boardCache) get(ctx context.Context, userID, projectID int) ([]boardTask, error) {
	b, err := c.rdb.Get(ctx, boardKey(userID, projectID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tasks []boardTask
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *boardCache) set(ctx context.Context, userID, projectID int, tasks []boardTask) error {
	b, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, boardKey(userID, projectID), b, c.ttl).Err()
}

// invalidateUser drops every board key of one user (cache invalidation on
// write). Boards of project-mates refresh through the TTL instead.
func (c *boardCache) invalidateUser(ctx context.Context, userID int) error {
	pattern := fmt.Sprintf("board:user:%d:*", userID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
