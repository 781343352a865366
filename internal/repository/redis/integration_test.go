//go:build integration

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/freeeve/natural-twenty/api/internal/testutil"
)

func setup(t *testing.T) *Client {
	t.Helper()
	rdb := testutil.SetupRedis(t)
	testutil.CleanupRedis(t, rdb)
	return NewClientFromPool(rdb)
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	snapshot := json.RawMessage(`{"id":"enc-1","status":"Active","round":2}`)
	if err := c.SetSnapshot(ctx, "enc-1", snapshot); err != nil {
		t.Fatalf("set snapshot: %v", err)
	}

	got, err := c.GetSnapshot(ctx, "enc-1")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if string(got) != string(snapshot) {
		t.Errorf("snapshot = %s, want %s", got, snapshot)
	}

	// The snapshot must expire on its own; Postgres is the source of truth.
	ttl, err := c.rdb.TTL(ctx, "combat:enc-1:snapshot").Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 {
		t.Errorf("snapshot has no TTL (%v)", ttl)
	}
}

func TestSnapshotMissReturnsNil(t *testing.T) {
	c := setup(t)

	got, err := c.GetSnapshot(context.Background(), "no-such-encounter")
	if err != nil {
		t.Fatalf("get missing snapshot: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %s", got)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	if err := c.SetSnapshot(ctx, "enc-2", json.RawMessage(`{"status":"Completed"}`)); err != nil {
		t.Fatalf("set snapshot: %v", err)
	}
	if err := c.DeleteSnapshot(ctx, "enc-2"); err != nil {
		t.Fatalf("delete snapshot: %v", err)
	}

	got, err := c.GetSnapshot(ctx, "enc-2")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Errorf("snapshot survived delete: %s", got)
	}
}

func TestRollHistoryNewestFirst(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		roll := json.RawMessage(fmt.Sprintf(`{"expression":"1d20","final_total":%d}`, i))
		if err := c.PushRoll(ctx, "adv-1", roll); err != nil {
			t.Fatalf("push roll %d: %v", i, err)
		}
	}

	rolls, err := c.RecentRolls(ctx, "adv-1", 2)
	if err != nil {
		t.Fatalf("recent rolls: %v", err)
	}
	if len(rolls) != 2 {
		t.Fatalf("got %d rolls, want 2", len(rolls))
	}

	var first struct {
		FinalTotal int `json:"final_total"`
	}
	if err := json.Unmarshal(rolls[0], &first); err != nil {
		t.Fatalf("unmarshal roll: %v", err)
	}
	if first.FinalTotal != 3 {
		t.Errorf("newest roll total = %d, want 3", first.FinalTotal)
	}
}

func TestRollHistoryTrimsToCap(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	for i := 0; i < rollHistorySize+5; i++ {
		roll := json.RawMessage(fmt.Sprintf(`{"final_total":%d}`, i))
		if err := c.PushRoll(ctx, "adv-2", roll); err != nil {
			t.Fatalf("push roll %d: %v", i, err)
		}
	}

	rolls, err := c.RecentRolls(ctx, "adv-2", 0)
	if err != nil {
		t.Fatalf("recent rolls: %v", err)
	}
	if len(rolls) != rollHistorySize {
		t.Errorf("history holds %d rolls, want %d", len(rolls), rollHistorySize)
	}

	var newest struct {
		FinalTotal int `json:"final_total"`
	}
	if err := json.Unmarshal(rolls[0], &newest); err != nil {
		t.Fatalf("unmarshal roll: %v", err)
	}
	if newest.FinalTotal != rollHistorySize+4 {
		t.Errorf("newest total = %d, want %d", newest.FinalTotal, rollHistorySize+4)
	}
}

func TestRollHistoryIsolatedPerAdventure(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	if err := c.PushRoll(ctx, "adv-a", json.RawMessage(`{"final_total":7}`)); err != nil {
		t.Fatalf("push roll: %v", err)
	}

	rolls, err := c.RecentRolls(ctx, "adv-b", 10)
	if err != nil {
		t.Fatalf("recent rolls: %v", err)
	}
	if len(rolls) != 0 {
		t.Errorf("adventure b sees %d rolls from adventure a", len(rolls))
	}
}
