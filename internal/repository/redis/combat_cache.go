package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis combat state.
func snapshotKey(encounterID string) string { return "combat:" + encounterID + ":snapshot" }
func rollsKey(adventureID string) string    { return "adventure:" + adventureID + ":rolls" }

// snapshotTTL bounds how long a combat snapshot outlives its last save.
// Postgres stays the source of truth; the cache only shortcuts reads.
const snapshotTTL = time.Hour

// rollHistorySize is how many recent rolls an adventure keeps.
const rollHistorySize = 50

// rollHistoryTTL expires an idle adventure's roll history.
const rollHistoryTTL = 24 * time.Hour

// SetSnapshot stores the encounter snapshot JSON.
func (c *Client) SetSnapshot(ctx context.Context, encounterID string, snapshot json.RawMessage) error {
	return c.rdb.Set(ctx, snapshotKey(encounterID), []byte(snapshot), snapshotTTL).Err()
}

// GetSnapshot retrieves the encounter snapshot JSON, or nil on a miss.
func (c *Client) GetSnapshot(ctx context.Context, encounterID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(encounterID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get combat snapshot: %w", err)
	}
	return json.RawMessage(data), nil
}

// DeleteSnapshot removes the snapshot (on combat end).
func (c *Client) DeleteSnapshot(ctx context.Context, encounterID string) error {
	return c.rdb.Del(ctx, snapshotKey(encounterID)).Err()
}

// PushRoll prepends a roll to the adventure's history, trimming it to
// the most recent rollHistorySize entries.
func (c *Client) PushRoll(ctx context.Context, adventureID string, roll json.RawMessage) error {
	key := rollsKey(adventureID)
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, []byte(roll))
	pipe.LTrim(ctx, key, 0, rollHistorySize-1)
	pipe.Expire(ctx, key, rollHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push roll: %w", err)
	}
	return nil
}

// RecentRolls returns up to limit most recent rolls, newest first.
func (c *Client) RecentRolls(ctx context.Context, adventureID string, limit int64) ([]json.RawMessage, error) {
	if limit <= 0 || limit > rollHistorySize {
		limit = rollHistorySize
	}
	values, err := c.rdb.LRange(ctx, rollsKey(adventureID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent rolls: %w", err)
	}
	rolls := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		rolls = append(rolls, json.RawMessage(v))
	}
	return rolls, nil
}
