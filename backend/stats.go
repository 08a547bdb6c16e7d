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
	"sort"
	"time"
)

// GameMeta is the slice of game metadata the aggregator needs to place an
// event in a scope: when the game was played and which league owns it.
type GameMeta struct {
	ID       string `json:"id"`
	Date     string `json:"date,omitempty"` // RFC3339
	LeagueID string `json:"leagueId,omitempty"`
}

// Year returns the calendar year of the game, or 0 if the date is absent
// or unparseable.
func (m GameMeta) Year() int {
	if m.Date == "" {
		return 0
	}
	if t, err := time.Parse(time.RFC3339, m.Date); err == nil {
		return t.Year()
	}
	if t, err := time.Parse("2006-01-02", m.Date); err == nil {
		return t.Year()
	}
	return 0
}

// ScopeFilter selects the subset of events to aggregate. Zero fields
// match everything; set fields narrow the scope.
type ScopeFilter struct {
	GameID   string
	LeagueID string
	YearMin  int
	YearMax  int
}

func (f ScopeFilter) matches(meta GameMeta) bool {
	if f.GameID != "" && meta.ID != f.GameID {
		return false
	}
	if f.LeagueID != "" && meta.LeagueID != f.LeagueID {
		return false
	}
	if f.YearMin != 0 || f.YearMax != 0 {
		y := meta.Year()
		if f.YearMin != 0 && y < f.YearMin {
			return false
		}
		if f.YearMax != 0 && y > f.YearMax {
			return false
		}
	}
	return true
}

// PlayerStatsRow is one leaderboard row: a player's accumulated counting
// stats and the rates derived from them. Rows are never persisted; they
// are always recomputed from the event log.
type PlayerStatsRow struct {
	PlayerKey string `json:"playerKey"`
	Name      string `json:"name"`
	Games     int    `json:"games"`

	AtBats   int `json:"atBats"`
	Hits     int `json:"hits"`
	Singles  int `json:"singles"`
	Doubles  int `json:"doubles"`
	Triples  int `json:"triples"`
	Homeruns int `json:"homeruns"`

	Strikeouts int `json:"strikeouts"`
	Catches    int `json:"catches"`
	Errors     int `json:"errors"`

	StealAttempts int `json:"stealAttempts"`
	StealWins     int `json:"stealWins"`
	StealLosses   int `json:"stealLosses"`
	BasesDefended int `json:"basesDefended"`

	TotalBases int `json:"totalBases"`
	RBI        int `json:"rbi"`

	BattingAverage float64 `json:"battingAverage"`
	Slugging       float64 `json:"slugging"`
	StealRate      float64 `json:"stealRate"`
}

// accumulator tracks one merged player identity during a fold.
type accumulator struct {
	row   PlayerStatsRow
	games map[string]bool
}

type statsBuilder struct {
	players map[string]Player // per-game player id -> Player
	rows    map[string]*accumulator
}

// identityKey collapses duplicate records for the same real person.
// Guests never merge: their key is scoped to the game they played in.
func (b *statsBuilder) identityKey(gameId, playerId string) string {
	p, ok := b.players[playerId]
	if ok && !p.Guest && p.IdentityKey != "" {
		return p.IdentityKey
	}
	return gameId + "/" + playerId
}

func (b *statsBuilder) acc(gameId, playerId string) *accumulator {
	key := b.identityKey(gameId, playerId)
	a, ok := b.rows[key]
	if !ok {
		name := playerId
		if p, ok := b.players[playerId]; ok && p.Name != "" {
			name = p.Name
		}
		a = &accumulator{
			row:   PlayerStatsRow{PlayerKey: key, Name: name},
			games: make(map[string]bool),
		}
		b.rows[key] = a
	}
	a.games[gameId] = true
	return a
}

// Aggregate folds a filtered event slice into leaderboard rows, sorted
// descending by the requested stat key. Events referencing a game absent
// from the supplied index are skipped rather than aborting the whole
// computation. The function is pure: it reads its inputs and returns
// fresh rows.
//
// Folding rules: hits count an at-bat, a hit, total bases by type and the
// event's RBI; strikeouts and caught-outs count an at-bat without a hit;
// errors, catches and steals credit the defender or runner and do not
// touch the batter's at-bats.
func Aggregate(events []GameEvent, games map[string]GameMeta, players map[string]Player, scope ScopeFilter, sortKey string) []PlayerStatsRow {
	b := &statsBuilder{
		players: players,
		rows:    make(map[string]*accumulator),
	}

	for _, ev := range events {
		meta, ok := games[ev.GameID]
		if !ok {
			continue // unresolved reference, skip
		}
		if !scope.matches(meta) {
			continue
		}
		b.fold(ev)
	}

	rows := make([]PlayerStatsRow, 0, len(b.rows))
	for _, a := range b.rows {
		r := a.row
		r.Games = len(a.games)
		if r.AtBats > 0 {
			r.BattingAverage = float64(r.Hits) / float64(r.AtBats)
			r.Slugging = float64(r.TotalBases) / float64(r.AtBats)
		}
		if r.StealAttempts > 0 {
			r.StealRate = float64(r.StealWins) / float64(r.StealAttempts)
		}
		rows = append(rows, r)
	}

	sortRows(rows, sortKey)
	return rows
}

func (b *statsBuilder) fold(ev GameEvent) {
	switch ev.EventType {
	case EventSingle, EventDouble, EventTriple, EventHomerun:
		batter := b.acc(ev.GameID, ev.BatterID)
		batter.row.AtBats++
		batter.row.Hits++
		batter.row.TotalBases += ev.EventType.BaseValue()
		batter.row.RBI += ev.RBI
		switch ev.EventType {
		case EventSingle:
			batter.row.Singles++
		case EventDouble:
			batter.row.Doubles++
		case EventTriple:
			batter.row.Triples++
		case EventHomerun:
			batter.row.Homeruns++
		}

	case EventStrikeout:
		batter := b.acc(ev.GameID, ev.BatterID)
		batter.row.AtBats++
		batter.row.Strikeouts++

	case EventCaughtOut:
		batter := b.acc(ev.GameID, ev.BatterID)
		batter.row.AtBats++
		if ev.DefenderID != "" {
			b.acc(ev.GameID, ev.DefenderID).row.Catches++
		}

	case EventError:
		if ev.DefenderID != "" {
			b.acc(ev.GameID, ev.DefenderID).row.Errors++
		}

	case EventStealSuccess:
		runner := b.acc(ev.GameID, ev.RunnerID)
		runner.row.StealAttempts++
		runner.row.StealWins++

	case EventStealFail:
		runner := b.acc(ev.GameID, ev.RunnerID)
		runner.row.StealAttempts++
		runner.row.StealLosses++
		if ev.DefenderID != "" {
			b.acc(ev.GameID, ev.DefenderID).row.BasesDefended++
		}

	case EventStrike:
		// Intermediate count only; no stat impact.
	}
}

func sortRows(rows []PlayerStatsRow, sortKey string) {
	value := func(r PlayerStatsRow) float64 {
		switch sortKey {
		case SortBySlugging:
			return r.Slugging
		case SortByHits:
			return float64(r.Hits)
		case SortByRBI:
			return float64(r.RBI)
		case SortByTotalBases:
			return float64(r.TotalBases)
		case SortByAtBats:
			return float64(r.AtBats)
		case SortByStealWins:
			return float64(r.StealWins)
		case SortByStealRate:
			return r.StealRate
		case SortByCatches:
			return float64(r.Catches)
		}
		return r.BattingAverage
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return value(rows[i]) > value(rows[j])
	})
}
