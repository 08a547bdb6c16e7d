// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"os"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
)

func newTestStores(t *testing.T) (*GameStore, *TeamStore) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "registry_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	s := storage.New(tempDir, nil)
	return NewGameStore(tempDir, s), NewTeamStore(tempDir, s)
}

// recordFor plays a short game under the given date and league and
// returns its completed record.
func recordFor(t *testing.T, gameId, date, leagueId string) *GameRecord {
	t.Helper()
	cfg := testGameConfig(gameId)
	cfg.Date = date
	cfg.LeagueID = leagueId
	e, err := StartGame(cfg)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if _, err := e.ApplyHit(EventSingle); err != nil {
		t.Fatalf("single: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.ApplyStrike(); err != nil {
			t.Fatalf("strike %d: %v", i, err)
		}
	}
	if _, err := e.ApplyHit(EventDouble); err != nil {
		t.Fatalf("double: %v", err)
	}
	final, events, err := e.CompleteGame()
	if err != nil {
		t.Fatalf("CompleteGame: %v", err)
	}
	return &GameRecord{
		ID:            gameId,
		SchemaVersion: CurrentSchemaVersion,
		Date:          date,
		LeagueID:      leagueId,
		Config:        cfg,
		Events:        events,
		FinalState:    &final,
		Status:        StatusFinal,
	}
}

func seedGames(t *testing.T, gs *GameStore) {
	t.Helper()
	for _, g := range []struct{ id, date, league string }{
		{"g1", "2025-05-01T10:00:00Z", "spring"},
		{"g2", "2026-05-01T10:00:00Z", "spring"},
		{"g3", "2026-06-01T10:00:00Z", "fall"},
	} {
		if err := gs.SaveGame(recordFor(t, g.id, g.date, g.league)); err != nil {
			t.Fatalf("SaveGame(%s): %v", g.id, err)
		}
	}
}

func TestRegistryRebuildCounts(t *testing.T) {
	gs, ts := newTestStores(t)
	seedGames(t, gs)
	if err := gs.DeleteGame("g3"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if err := ts.SaveTeam(&Team{ID: "t1", SchemaVersion: CurrentSchemaVersion, Name: "Locals"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}

	r := NewRegistry(gs, ts)
	defer r.StopGC()

	if got := r.CountTotalGames(); got != 2 {
		t.Errorf("CountTotalGames = %d, want 2 (tombstone excluded)", got)
	}
	if got := r.CountTotalTeams(); got != 1 {
		t.Errorf("CountTotalTeams = %d, want 1", got)
	}
	if !r.GameExists("g1") {
		t.Error("GameExists(g1) = false")
	}
	if r.GameExists("nope") {
		t.Error("GameExists(nope) = true")
	}
}

func TestRegistryListGames(t *testing.T) {
	gs, ts := newTestStores(t)
	seedGames(t, gs)
	r := NewRegistry(gs, ts)
	defer r.StopGC()

	// 1. Default listing: newest first.
	ids := r.ListGames("", "", "")
	if len(ids) != 3 || ids[0] != "g3" || ids[2] != "g1" {
		t.Errorf("default listing = %v, want [g3 g2 g1]", ids)
	}

	// 2. Ascending date.
	ids = r.ListGames("date", "asc", "")
	if len(ids) != 3 || ids[0] != "g1" {
		t.Errorf("ascending listing = %v, want g1 first", ids)
	}

	// 3. Filters.
	testCases := []struct {
		query string
		want  []string
	}{
		{"league:spring", []string{"g2", "g1"}},
		{"league:FALL", []string{"g3"}},
		{"year:2026", []string{"g3", "g2"}},
		{"year:2024..2025", []string{"g1"}},
		{"year:>=2026 league:spring", []string{"g2"}},
		{"game:g2", []string{"g2"}},
		{"status:final", []string{"g3", "g2", "g1"}},
		{"status:live", nil},
		{"visitors", []string{"g3", "g2", "g1"}}, // matches the away label
		{"nobody-here", nil},
	}
	for _, tc := range testCases {
		got := r.ListGames("", "", tc.query)
		if len(got) != len(tc.want) {
			t.Errorf("ListGames(%q) = %v, want %v", tc.query, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ListGames(%q) = %v, want %v", tc.query, got, tc.want)
				break
			}
		}
	}

	// 4. Deleted games disappear from listings.
	if err := gs.DeleteGame("g2"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	r.DeleteGame("g2")
	ids = r.ListGames("", "", "")
	if len(ids) != 2 {
		t.Errorf("listing after delete = %v, want 2 games", ids)
	}
}

func TestRegistryLeaderboard(t *testing.T) {
	gs, ts := newTestStores(t)
	seedGames(t, gs)
	r := NewRegistry(gs, ts)
	defer r.StopGC()

	// 1. Unscoped: identities merge across all three games.
	rows, total := r.Leaderboard("", SortByHits, 100, 0)
	if total == 0 || len(rows) == 0 {
		t.Fatalf("empty leaderboard: rows=%d total=%d", len(rows), total)
	}
	ana := findRow(t, rows, "person-ana")
	if ana.Games != 3 || ana.Hits != 3 {
		t.Errorf("ana games=%d hits=%d, want 3/3", ana.Games, ana.Hits)
	}

	// 2. Scoped to one league.
	rows, _ = r.Leaderboard("league:spring", SortByHits, 100, 0)
	ana = findRow(t, rows, "person-ana")
	if ana.Games != 2 {
		t.Errorf("spring games = %d, want 2", ana.Games)
	}

	// 3. Paging happens after sorting; total is the unpaged count.
	all, total := r.Leaderboard("", SortByHits, 100, 0)
	page, pagedTotal := r.Leaderboard("", SortByHits, 1, 1)
	if pagedTotal != total {
		t.Errorf("paged total = %d, want %d", pagedTotal, total)
	}
	if len(page) != 1 || page[0].Hits != all[1].Hits {
		t.Errorf("page = %+v, want one row with %d hits", page, all[1].Hits)
	}

	// 4. Deleted games drop out of the aggregate.
	if err := gs.DeleteGame("g1"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	rows, _ = r.Leaderboard("", SortByHits, 100, 0)
	ana = findRow(t, rows, "person-ana")
	if ana.Games != 2 {
		t.Errorf("games after delete = %d, want 2", ana.Games)
	}
}

func TestRegistryPurgesExpiredTombstones(t *testing.T) {
	gs, ts := newTestStores(t)

	// An expired tombstone, written as an old build would have left it.
	old := &GameRecord{
		ID:            "g-old",
		SchemaVersion: CurrentSchemaVersion,
		Status:        StatusDeleted,
		DeletedAt:     time.Now().Add(-31 * 24 * time.Hour).UnixNano(),
	}
	if err := gs.SaveGame(old); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	// A fresh tombstone stays.
	if err := gs.SaveGame(recordFor(t, "g-new", "2026-05-01T10:00:00Z", "spring")); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	if err := gs.DeleteGame("g-new"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}

	r := NewRegistry(gs, ts)
	defer r.StopGC()
	r.PurgeOldTombstones()

	gs.cache.Delete("g-old")
	if _, err := gs.LoadGame("g-old"); !os.IsNotExist(err) {
		t.Errorf("expired tombstone still present: err = %v", err)
	}
	gs.cache.Delete("g-new")
	if rec, err := gs.LoadGame("g-new"); err != nil || rec.Status != StatusDeleted {
		t.Errorf("fresh tombstone lost: rec=%+v err=%v", rec, err)
	}
}
