// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sulog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/sudb"
)

var epoch = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *sudb.DB, *clock.FakeClock) {
	t.Helper()
	db, err := sudb.Open(context.Background(), sudb.Config{Path: filepath.Join(t.TempDir(), "su.db")})
	if err != nil {
		t.Fatalf("sudb.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fake := clock.Fake(epoch)
	store, err := NewStore(Config{DB: db, Clock: fake, Location: time.UTC})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, db, fake
}

func appendAt(t *testing.T, store *Store, uid int, command string, at time.Time) {
	t.Helper()
	err := store.Append(context.Background(), Entry{
		FromUID:     uid,
		FromPID:     4242,
		PackageName: "com.example",
		AppName:     "Example",
		Command:     command,
		Granted:     true,
		Time:        at,
	})
	if err != nil {
		t.Fatalf("Append(%s): %v", command, err)
	}
}

func TestListGroupsByDayNewestFirst(t *testing.T) {
	store, _, _ := newTestStore(t)
	yesterday := epoch.Add(-24 * time.Hour)

	appendAt(t, store, 10001, "first", yesterday.Add(-time.Hour))
	appendAt(t, store, 10001, "second", yesterday)
	appendAt(t, store, 10001, "third", epoch.Add(-time.Hour))
	appendAt(t, store, 10001, "fourth", epoch)

	days, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2: %+v", len(days), days)
	}
	if days[0].Label != "Mar 10, 2026" || days[1].Label != "Mar 9, 2026" {
		t.Fatalf("labels = %q, %q", days[0].Label, days[1].Label)
	}
	if days[0].Entries[0].Command != "fourth" || days[0].Entries[1].Command != "third" {
		t.Fatalf("today not newest first: %+v", days[0].Entries)
	}
	if days[1].Entries[0].Command != "second" {
		t.Fatalf("yesterday not newest first: %+v", days[1].Entries)
	}
}

func TestListHonorsLocation(t *testing.T) {
	db, err := sudb.Open(context.Background(), sudb.Config{Path: filepath.Join(t.TempDir(), "su.db")})
	if err != nil {
		t.Fatalf("sudb.Open: %v", err)
	}
	defer db.Close()

	// 15:30 UTC is already the next day at UTC+10.
	east := time.FixedZone("east", 10*3600)
	store, err := NewStore(Config{DB: db, Clock: clock.Fake(epoch), Location: east})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	appendAt(t, store, 10001, "id", epoch)

	days, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(days) != 1 || days[0].Label != "Mar 11, 2026" {
		t.Fatalf("days = %+v", days)
	}
}

func TestListFiltersByUser(t *testing.T) {
	store, _, _ := newTestStore(t)
	appendAt(t, store, 10001, "owner", epoch)
	appendAt(t, store, 1010001, "guest", epoch)

	days, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(days) != 1 || len(days[0].Entries) != 1 || days[0].Entries[0].Command != "guest" {
		t.Fatalf("List(10) = %+v", days)
	}
}

func TestEntryTimesKeepMilliseconds(t *testing.T) {
	store, _, _ := newTestStore(t)
	at := epoch.Add(123 * time.Millisecond)
	appendAt(t, store, 10001, "id", at)

	days, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := days[0].Entries[0].Time; !got.Equal(at) {
		t.Fatalf("time = %v, want %v", got, at)
	}
}

func TestRetentionFollowsSetting(t *testing.T) {
	store, db, fake := newTestStore(t)
	appendAt(t, store, 10001, "old", epoch.Add(-3*24*time.Hour))
	appendAt(t, store, 10001, "recent", epoch.Add(-time.Hour))

	days, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total := countEntries(days); total != 2 {
		t.Fatalf("entries with default retention = %d, want 2", total)
	}

	if err := db.SetSetting(context.Background(), sudb.KeyLogTimeout, 2); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	days, err = store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total := countEntries(days); total != 1 {
		t.Fatalf("entries with 2-day retention = %d, want 1", total)
	}

	fake.Advance(2 * 24 * time.Hour)
	removed, err := store.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Purge removed %d, want 1", removed)
	}
}

func TestAppendStampsZeroTime(t *testing.T) {
	store, _, _ := newTestStore(t)
	if err := store.Append(context.Background(), Entry{FromUID: 10001, Command: "id"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	days, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := days[0].Entries[0].Time; !got.Equal(epoch) {
		t.Fatalf("stamped time = %v, want %v", got, epoch)
	}
}

func TestClear(t *testing.T) {
	store, _, _ := newTestStore(t)
	appendAt(t, store, 10001, "id", epoch)
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	days, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(days) != 0 {
		t.Fatalf("List after Clear = %+v", days)
	}
}

func countEntries(days []Day) int {
	total := 0
	for _, day := range days {
		total += len(day.Entries)
	}
	return total
}
