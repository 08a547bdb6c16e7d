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
	"errors"
	"reflect"
	"testing"
)

func testGameConfig(gameId string) GameConfig {
	return GameConfig{
		GameID:   gameId,
		Date:     "2026-04-12T18:00:00Z",
		LeagueID: "spring",
		Away: TeamConfig{
			ID:    "away",
			Label: "Visitors",
			Players: []Player{
				{ID: "a1", Name: "Ana", IdentityKey: "person-ana"},
				{ID: "a2", Name: "Ben", IdentityKey: "person-ben"},
				{ID: "a3", Name: "Cleo", Guest: true},
			},
		},
		Home: TeamConfig{
			ID:    "home",
			Label: "Locals",
			Players: []Player{
				{ID: "h1", Name: "Dee", IdentityKey: "person-dee"},
				{ID: "h2", Name: "Eli", IdentityKey: "person-eli"},
				{ID: "h3", Name: "Fay", IdentityKey: "person-fay"},
			},
		},
		PlannedInnings: 3,
	}
}

func mustStart(t *testing.T, gameId string) *Engine {
	t.Helper()
	e, err := StartGame(testGameConfig(gameId))
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return e
}

func TestStartGameValidation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*GameConfig)
	}{
		{"missing game id", func(c *GameConfig) { c.GameID = "" }},
		{"missing team id", func(c *GameConfig) { c.Home.ID = "" }},
		{"identical team ids", func(c *GameConfig) { c.Home.ID = c.Away.ID }},
		{"empty lineup", func(c *GameConfig) { c.Away.Players = nil }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testGameConfig("g1")
			tc.mutate(&cfg)
			_, err := StartGame(cfg)
			var se *SetupError
			if !errors.As(err, &se) {
				t.Errorf("err = %v, want SetupError", err)
			}
		})
	}
}

func TestEngineGameFlow(t *testing.T) {
	e := mustStart(t, "g1")

	// 1. Top of the first: a single, a steal and a homerun, then three
	// strikeouts to retire the side.
	if _, err := e.ApplyHit(EventSingle); err != nil {
		t.Fatalf("single: %v", err)
	}
	if _, err := e.ApplySteal("a1", "h1", true); err != nil {
		t.Fatalf("steal: %v", err)
	}
	if _, err := e.ApplyHit(EventHomerun); err != nil {
		t.Fatalf("homerun: %v", err)
	}
	for i := 0; i < 9; i++ {
		if _, err := e.ApplyStrike(); err != nil {
			t.Fatalf("strike %d: %v", i, err)
		}
	}

	s := e.State()
	if s.Away.Runs != 2 || s.Away.Hits != 2 {
		t.Errorf("away runs=%d hits=%d, want 2/2", s.Away.Runs, s.Away.Hits)
	}
	if s.Half != HalfBottom || s.Inning != 1 {
		t.Errorf("half=%s inning=%d, want bottom/1", s.Half, s.Inning)
	}
	if s.OffenseID != "home" {
		t.Errorf("offense = %s, want home", s.OffenseID)
	}
	if got := len(e.Events()); got != 12 {
		t.Errorf("log length = %d, want 12", got)
	}

	// 2. Every run in the log is accounted for in the team totals.
	var logged int
	for _, ev := range e.Events() {
		logged += ev.RunsScored
	}
	if logged != s.TotalRuns() {
		t.Errorf("logged runs = %d, state total = %d", logged, s.TotalRuns())
	}

	// 3. Per-inning buckets sum to the team total.
	var perInning int
	for _, r := range s.Away.RunsPerInning {
		perInning += r
	}
	if perInning != s.Away.Runs {
		t.Errorf("per-inning sum = %d, away runs = %d", perInning, s.Away.Runs)
	}
}

func TestEngineUndoIsExactInverse(t *testing.T) {
	e := mustStart(t, "g1")
	if _, err := e.ApplyHit(EventDouble); err != nil {
		t.Fatalf("double: %v", err)
	}
	if _, err := e.ApplyStrike(); err != nil {
		t.Fatalf("strike: %v", err)
	}

	before := e.State()
	beforeLog := e.Events()

	if _, err := e.ApplyHit(EventTriple); err != nil {
		t.Fatalf("triple: %v", err)
	}
	if err := e.UndoLast(); err != nil {
		t.Fatalf("UndoLast: %v", err)
	}

	if !reflect.DeepEqual(e.State(), before) {
		t.Errorf("state after undo differs:\nwant %+v\ngot  %+v", before, e.State())
	}
	if !reflect.DeepEqual(e.Events(), beforeLog) {
		t.Errorf("log after undo differs")
	}
}

func TestEngineUndoToEmpty(t *testing.T) {
	e := mustStart(t, "g1")
	initial := e.State()

	if _, err := e.ApplyStrike(); err != nil {
		t.Fatalf("strike: %v", err)
	}
	if err := e.UndoLast(); err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if !reflect.DeepEqual(e.State(), initial) {
		t.Errorf("state after undoing everything differs from initial")
	}

	// Undo past the start of the log is rejected.
	if err := e.UndoLast(); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("undo on empty log: err = %v, want ErrInvalidAction", err)
	}
}

func TestEngineRejectedActionLeavesLogAlone(t *testing.T) {
	e := mustStart(t, "g1")
	if _, err := e.ApplyStrike(); err != nil {
		t.Fatalf("strike: %v", err)
	}
	before := e.State()

	if _, err := e.ApplySteal("a1", "", true); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("steal with empty bases: err = %v, want ErrInvalidAction", err)
	}
	if got := len(e.Events()); got != 1 {
		t.Errorf("log length = %d, want 1", got)
	}
	if !reflect.DeepEqual(e.State(), before) {
		t.Error("rejected action changed the state")
	}
}

func TestEngineReplayEquivalence(t *testing.T) {
	e := mustStart(t, "g1")
	if _, err := e.ApplyHit(EventSingle); err != nil {
		t.Fatalf("single: %v", err)
	}
	if _, err := e.ApplyError("h2"); err != nil {
		t.Fatalf("error: %v", err)
	}
	if _, err := e.ApplySteal("a1", "h1", false); err != nil {
		t.Fatalf("steal: %v", err)
	}
	if _, err := e.ApplyCaughtOut("h3"); err != nil {
		t.Fatalf("caught-out: %v", err)
	}

	rebuilt, err := RebuildState(e.Config(), e.Events(), false)
	if err != nil {
		t.Fatalf("RebuildState: %v", err)
	}
	if !reflect.DeepEqual(rebuilt, e.State()) {
		t.Errorf("replayed state differs:\nwant %+v\ngot  %+v", e.State(), rebuilt)
	}
}

func TestResumeGame(t *testing.T) {
	e := mustStart(t, "g1")
	if _, err := e.ApplyHit(EventSingle); err != nil {
		t.Fatalf("single: %v", err)
	}
	if _, err := e.ApplyStrike(); err != nil {
		t.Fatalf("strike: %v", err)
	}

	resumed, err := ResumeGame(e.Config(), e.Events())
	if err != nil {
		t.Fatalf("ResumeGame: %v", err)
	}
	if !reflect.DeepEqual(resumed.State(), e.State()) {
		t.Errorf("resumed state differs from live state")
	}
	if !reflect.DeepEqual(resumed.Events(), e.Events()) {
		t.Errorf("resumed log differs from live log")
	}

	// The resumed engine keeps scoring from where the original stopped.
	ev, err := resumed.ApplyStrike()
	if err != nil {
		t.Fatalf("ApplyStrike on resumed engine: %v", err)
	}
	if ev.EventType != EventStrike {
		t.Errorf("event = %s, want %s", ev.EventType, EventStrike)
	}
}

func TestResumeGameRejectsCorruptLog(t *testing.T) {
	e := mustStart(t, "g1")
	if _, err := e.ApplyHit(EventSingle); err != nil {
		t.Fatalf("single: %v", err)
	}

	// A stored log that fails validation is rejected before replay.
	events := e.Events()
	events[0].ID = "not-a-uuid"
	if _, err := ResumeGame(e.Config(), events); err == nil {
		t.Error("ResumeGame accepted a log with a malformed event ID")
	}

	events = e.Events()
	events[0].EventType = "bunt"
	if _, err := ResumeGame(e.Config(), events); err == nil {
		t.Error("ResumeGame accepted a log with an unknown event type")
	}
}

func TestCompleteGame(t *testing.T) {
	e := mustStart(t, "g1")
	if _, err := e.ApplyHit(EventHomerun); err != nil {
		t.Fatalf("homerun: %v", err)
	}

	final, events, err := e.CompleteGame()
	if err != nil {
		t.Fatalf("CompleteGame: %v", err)
	}
	if !final.Completed {
		t.Error("final state not marked completed")
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}

	// 1. Scoring after completion is rejected.
	if _, err := e.ApplyStrike(); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("apply after complete: err = %v, want ErrInvalidAction", err)
	}

	// 2. Completing twice is rejected.
	if _, _, err := e.CompleteGame(); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("second complete: err = %v, want ErrInvalidAction", err)
	}
}

func TestEngineUndoRejectedAfterComplete(t *testing.T) {
	e := mustStart(t, "g1")
	if _, err := e.ApplyHit(EventHomerun); err != nil {
		t.Fatalf("homerun: %v", err)
	}
	if _, _, err := e.CompleteGame(); err != nil {
		t.Fatalf("CompleteGame: %v", err)
	}

	// 1. Undo on a completed game is rejected. Replaying the log never
	//    restores the completed flag, so allowing it would silently
	//    reopen a final record.
	if err := e.UndoLast(); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("undo after complete: err = %v, want ErrInvalidAction", err)
	}

	// 2. The rejected undo left the engine untouched.
	if !e.State().Completed {
		t.Error("state no longer marked completed")
	}
	if got := len(e.Events()); got != 1 {
		t.Errorf("log length = %d, want 1", got)
	}
}

func TestEngineStateIsSnapshot(t *testing.T) {
	e := mustStart(t, "g1")
	s := e.State()
	s.Away.Runs = 99
	s.Away.RunsPerInning[1] = 99
	if got := e.State().Away.Runs; got != 0 {
		t.Errorf("mutating a snapshot leaked into the engine: runs = %d", got)
	}
	if got := e.State().Away.RunsPerInning[1]; got != 0 {
		t.Errorf("mutating a snapshot map leaked into the engine: %d", got)
	}
}
