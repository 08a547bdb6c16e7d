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
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/parthivFarazi/bblApp/backend/search"
)

const tombstoneTTL = 30 * 24 * time.Hour
const gcInterval = 12 * time.Hour

// Registry maintains the index of games and teams so that listing and
// leaderboard scope resolution do not rescan the data directory on
// every request. Metadata lives in LRU caches backed by the stores.
type Registry struct {
	gameStore *GameStore
	teamStore *TeamStore

	mu sync.RWMutex

	// Metadata caches, also holding tombstones (Status="deleted").
	gameMetadata *lru.Cache[string, GameRecordMeta]
	teamMetadata *lru.Cache[string, *Team]

	gameCount int
	teamCount int

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a new Registry and populates it from the stores.
func NewRegistry(gs *GameStore, ts *TeamStore) *Registry {
	gmCache, _ := lru.New[string, GameRecordMeta](5000)
	tmCache, _ := lru.New[string, *Team](2000)

	r := &Registry{
		gameStore:    gs,
		teamStore:    ts,
		gameMetadata: gmCache,
		teamMetadata: tmCache,
		stopChan:     make(chan struct{}),
	}
	r.Rebuild()
	r.StartGC()
	return r
}

// StartGC starts the background tombstone garbage collector.
func (r *Registry) StartGC() {
	go func() {
		ticker := time.NewTicker(gcInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.PurgeOldTombstones()
			case <-r.stopChan:
				return
			}
		}
	}()
}

// StopGC stops the background tombstone garbage collector.
func (r *Registry) StopGC() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

// PurgeOldTombstones permanently deletes expired tombstones from disk.
func (r *Registry) PurgeOldTombstones() {
	cutoff := time.Now().UnixNano() - tombstoneTTL.Nanoseconds()

	var purgedGames, purgedTeams int
	for meta, err := range r.gameStore.ListAllGameMetadata() {
		if err == nil && meta.Status == StatusDeleted && meta.DeletedAt > 0 && meta.DeletedAt < cutoff {
			if err := r.gameStore.PurgeGame(meta.ID); err == nil {
				r.gameMetadata.Remove(meta.ID)
				purgedGames++
			}
		}
	}
	for t, err := range r.teamStore.ListAllTeams() {
		if err == nil && t.Status == StatusDeleted && t.DeletedAt > 0 && t.DeletedAt < cutoff {
			if err := r.teamStore.PurgeTeam(t.ID); err == nil {
				r.teamMetadata.Remove(t.ID)
				purgedTeams++
			}
		}
	}
	if purgedGames > 0 || purgedTeams > 0 {
		log.Printf("Registry: GC complete. Purged %d games, %d teams.", purgedGames, purgedTeams)
	}
}

// Rebuild reconstructs the index by scanning the underlying stores.
func (r *Registry) Rebuild() {
	cutoff := time.Now().UnixNano() - tombstoneTTL.Nanoseconds()

	var gameCount, teamCount int
	for meta, err := range r.gameStore.ListAllGameMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing games: %v", err)
			break
		}
		if meta.Status == StatusDeleted && meta.DeletedAt > 0 && meta.DeletedAt < cutoff {
			r.gameStore.PurgeGame(meta.ID)
			continue
		}
		r.gameMetadata.Add(meta.ID, meta)
		if meta.Status != StatusDeleted {
			gameCount++
		}
	}
	for t, err := range r.teamStore.ListAllTeams() {
		if err != nil {
			log.Printf("Registry: Error listing teams: %v", err)
			break
		}
		if t.Status == StatusDeleted && t.DeletedAt > 0 && t.DeletedAt < cutoff {
			r.teamStore.PurgeTeam(t.ID)
			continue
		}
		r.teamMetadata.Add(t.ID, t)
		if t.Status != StatusDeleted {
			teamCount++
		}
	}

	r.mu.Lock()
	r.gameCount = gameCount
	r.teamCount = teamCount
	r.mu.Unlock()

	log.Printf("Registry: Rebuild complete. Indexed %d games, %d teams.", gameCount, teamCount)
}

// UpdateGame refreshes the cached metadata for a game record.
func (r *Registry) UpdateGame(rec *GameRecord) {
	_, existed := r.gameMetadata.Peek(rec.ID)
	r.gameMetadata.Add(rec.ID, rec.Meta())
	if !existed && rec.Status != StatusDeleted {
		r.mu.Lock()
		r.gameCount++
		r.mu.Unlock()
	}
}

// UpdateTeam refreshes the cached metadata for a team.
func (r *Registry) UpdateTeam(t *Team) {
	_, existed := r.teamMetadata.Peek(t.ID)
	r.teamMetadata.Add(t.ID, t)
	if !existed && t.Status != StatusDeleted {
		r.mu.Lock()
		r.teamCount++
		r.mu.Unlock()
	}
}

// DeleteGame caches a tombstone for a deleted game.
func (r *Registry) DeleteGame(gameId string) {
	if m, ok := r.gameMetadata.Peek(gameId); ok && m.Status == StatusDeleted {
		return
	}
	r.mu.Lock()
	r.gameCount--
	r.mu.Unlock()
	r.gameMetadata.Add(gameId, GameRecordMeta{
		ID: gameId, Status: StatusDeleted, DeletedAt: time.Now().UnixNano(),
	})
}

// DeleteTeam caches a tombstone for a deleted team.
func (r *Registry) DeleteTeam(teamId string) {
	if t, ok := r.teamMetadata.Peek(teamId); ok && t.Status == StatusDeleted {
		return
	}
	r.mu.Lock()
	r.teamCount--
	r.mu.Unlock()
	r.teamMetadata.Add(teamId, &Team{
		ID: teamId, Status: StatusDeleted, DeletedAt: time.Now().UnixNano(),
	})
}

func (r *Registry) getGameMeta(id string) (GameRecordMeta, bool) {
	if m, ok := r.gameMetadata.Get(id); ok {
		return m, true
	}
	rec, err := r.gameStore.LoadGame(id)
	if err != nil {
		return GameRecordMeta{}, false
	}
	meta := rec.Meta()
	r.gameMetadata.Add(id, meta)
	return meta, true
}

// GameExists reports whether a non-deleted game record exists.
func (r *Registry) GameExists(id string) bool {
	meta, ok := r.getGameMeta(id)
	return ok && meta.Status != StatusDeleted
}

func (r *Registry) CountTotalGames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameCount
}

func (r *Registry) CountTotalTeams() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teamCount
}

// ListGames returns game IDs matching the query, sorted by date unless
// another sort key is requested.
func (r *Registry) ListGames(sortBy, order, query string) []string {
	if sortBy == "" {
		sortBy = "date"
	}
	if order == "" {
		if sortBy == "date" {
			order = "desc"
		} else {
			order = "asc"
		}
	}

	q := search.Parse(query)
	for i, t := range q.FreeText {
		q.FreeText[i] = strings.ToLower(t)
	}
	for i, f := range q.Filters {
		if f.Key != "date" && f.Key != "year" {
			q.Filters[i].Value = strings.ToLower(f.Value)
		}
	}

	var ids []string
	for meta, err := range r.gameStore.ListAllGameMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing games: %v", err)
			break
		}
		r.gameMetadata.Add(meta.ID, meta)
		if meta.Status == StatusDeleted || !matchesGame(meta, q) {
			continue
		}
		ids = append(ids, meta.ID)
	}

	sort.Slice(ids, func(i, j int) bool {
		m1, ok1 := r.getGameMeta(ids[i])
		m2, ok2 := r.getGameMeta(ids[j])
		var less bool
		switch {
		case !ok1 || !ok2:
			less = ids[i] < ids[j]
		case sortBy == "date" && m1.Date != m2.Date:
			less = m1.Date < m2.Date
		case sortBy == "league" && m1.LeagueID != m2.LeagueID:
			less = m1.LeagueID < m2.LeagueID
		default:
			less = ids[i] < ids[j]
		}
		if order == "desc" {
			return !less
		}
		return less
	})
	return ids
}

func containsLower(s, substrLower string) bool {
	return strings.Contains(strings.ToLower(s), substrLower)
}

func matchesGame(m GameRecordMeta, q search.Query) bool {
	for _, token := range q.FreeText {
		if !containsLower(m.AwayLabel, token) && !containsLower(m.HomeLabel, token) &&
			!containsLower(m.LeagueID, token) {
			return false
		}
	}
	for _, f := range q.Filters {
		switch f.Key {
		case "game":
			if !strings.EqualFold(m.ID, f.Value) {
				return false
			}
		case "league":
			if !containsLower(m.LeagueID, f.Value) {
				return false
			}
		case "away":
			if !containsLower(m.AwayLabel, f.Value) {
				return false
			}
		case "home":
			if !containsLower(m.HomeLabel, f.Value) {
				return false
			}
		case "status":
			if !strings.EqualFold(m.Status, f.Value) {
				return false
			}
		case "date":
			if !checkDateFilter(m.Date, f) {
				return false
			}
		case "year":
			min, max := yearBounds(f)
			y := GameMeta{ID: m.ID, Date: m.Date}.Year()
			if min != 0 && y < min {
				return false
			}
			if max != 0 && y > max {
				return false
			}
		}
	}
	return true
}

func checkDateFilter(dateVal string, f search.Filter) bool {
	switch f.Operator {
	case search.OpEqual:
		return strings.HasPrefix(dateVal, f.Value)
	case search.OpGreater:
		return dateVal > f.Value
	case search.OpGreaterOrEqual:
		return dateVal >= f.Value
	case search.OpLess:
		return dateVal < f.Value
	case search.OpLessOrEqual:
		return dateVal <= f.Value
	case search.OpRange:
		// "~" sorts after any digit, making the upper bound inclusive
		// for prefix values like 2025-06.
		return dateVal >= f.Value && dateVal <= f.MaxValue+"~"
	}
	return true
}

// yearBounds converts a year filter into inclusive min/max bounds.
// Zero means unbounded on that side.
func yearBounds(f search.Filter) (int, int) {
	v, _ := strconv.Atoi(f.Value)
	switch f.Operator {
	case search.OpEqual:
		return v, v
	case search.OpGreater:
		return v + 1, 0
	case search.OpGreaterOrEqual:
		return v, 0
	case search.OpLess:
		return 0, v - 1
	case search.OpLessOrEqual:
		return 0, v
	case search.OpRange:
		max, _ := strconv.Atoi(f.MaxValue)
		return v, max
	}
	return 0, 0
}

// ScopeFromQuery converts a parsed scope query into the aggregator's
// filter. Only the game, league and year keys participate; other keys
// are listing-only.
func ScopeFromQuery(q search.Query) ScopeFilter {
	var scope ScopeFilter
	if f, ok := q.Filter("game"); ok {
		scope.GameID = f.Value
	}
	if f, ok := q.Filter("league"); ok {
		scope.LeagueID = f.Value
	}
	if f, ok := q.Filter("year"); ok {
		scope.YearMin, scope.YearMax = yearBounds(f)
	}
	return scope
}

// Leaderboard aggregates stats across all stored games matching the
// scope query, sorted descending by sortKey, with offset/limit paging
// applied after sorting. The total row count before paging is returned
// alongside the page.
func (r *Registry) Leaderboard(query, sortKey string, limit, offset int) ([]PlayerStatsRow, int) {
	q := search.Parse(query)
	scope := ScopeFromQuery(q)

	var events []GameEvent
	games := make(map[string]GameMeta)
	players := make(map[string]Player)

	for rec, err := range r.gameStore.ListAllGames() {
		if err != nil {
			log.Printf("Registry: Error listing games for leaderboard: %v", err)
			break
		}
		if rec.Status == StatusDeleted {
			continue
		}
		meta := GameMeta{ID: rec.ID, Date: rec.Date, LeagueID: rec.LeagueID}
		if !scope.matches(meta) {
			continue
		}
		games[rec.ID] = meta
		for _, team := range []TeamConfig{rec.Config.Away, rec.Config.Home} {
			for _, p := range team.Players {
				players[p.ID] = p
			}
		}
		events = append(events, rec.Events...)
	}

	rows := Aggregate(events, games, players, scope, sortKey)
	total := len(rows)

	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, total
}
