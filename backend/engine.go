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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TeamConfig describes one side of a game at setup time.
type TeamConfig struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Players []Player `json:"players"`
}

// GameConfig is everything needed to start a game, and later to rebuild
// its initial state for replay.
type GameConfig struct {
	GameID         string     `json:"gameId"`
	Date           string     `json:"date,omitempty"` // RFC3339
	LeagueID       string     `json:"leagueId,omitempty"`
	Away           TeamConfig `json:"away"`
	Home           TeamConfig `json:"home"`
	PlannedInnings int        `json:"plannedInnings,omitempty"`
}

// initialState validates the config and builds the pre-first-pitch state.
func initialState(cfg GameConfig) (LivePlayState, error) {
	if cfg.GameID == "" {
		return LivePlayState{}, &SetupError{Reason: "missing game id"}
	}
	if cfg.Away.ID == "" || cfg.Home.ID == "" {
		return LivePlayState{}, &SetupError{Reason: "missing team id"}
	}
	if cfg.Away.ID == cfg.Home.ID {
		return LivePlayState{}, &SetupError{Reason: "away and home team ids are identical"}
	}

	awayLineup, err := NewLineup(cfg.Away.Players)
	if err != nil {
		return LivePlayState{}, err
	}
	homeLineup, err := NewLineup(cfg.Home.Players)
	if err != nil {
		return LivePlayState{}, err
	}

	away := TeamSide{ID: cfg.Away.ID, Label: cfg.Away.Label, Lineup: awayLineup}
	home := TeamSide{ID: cfg.Home.ID, Label: cfg.Home.Label, Lineup: homeLineup}
	return NewLivePlayState(cfg.GameID, away, home, cfg.PlannedInnings), nil
}

// Engine owns the live state and event log of exactly one game. It is a
// single-actor, single-timeline core: callers must serialize access (the
// Hub does this by funneling every request through one goroutine), and
// the engine itself never blocks.
//
// The event log doubles as the undo stack: events are applied strictly in
// order and only ever removed from the tail.
type Engine struct {
	cfg     GameConfig
	initial LivePlayState
	state   LivePlayState
	log     []GameEvent
}

// StartGame validates the config and creates an engine with an empty
// event log and a fresh LivePlayState. Setup failures are reported before
// any state exists.
func StartGame(cfg GameConfig) (*Engine, error) {
	init, err := initialState(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		initial: init,
		state:   init.Clone(),
		log:     make([]GameEvent, 0),
	}, nil
}

// ResumeGame rebuilds an engine from a stored config and event log by
// replaying the log from the initial state. The stored log is validated
// before replay so that a corrupted record fails here rather than
// mid-game.
func ResumeGame(cfg GameConfig, events []GameEvent) (*Engine, error) {
	init, err := initialState(cfg)
	if err != nil {
		return nil, err
	}
	if err := ValidateEventLog(events); err != nil {
		return nil, fmt.Errorf("stored event log: %w", err)
	}
	state, err := ReplayEvents(init, events)
	if err != nil {
		return nil, err
	}
	log := make([]GameEvent, len(events))
	copy(log, events)
	return &Engine{
		cfg:     cfg,
		initial: init,
		state:   state,
		log:     log,
	}, nil
}

// Config returns the setup the game was started with.
func (e *Engine) Config() GameConfig {
	return e.cfg
}

// State returns a snapshot of the current live state. The returned value
// does not alias engine internals.
func (e *Engine) State() LivePlayState {
	return e.state.Clone()
}

// Events returns a copy of the active event log.
func (e *Engine) Events() []GameEvent {
	out := make([]GameEvent, len(e.log))
	copy(out, e.log)
	return out
}

// Apply runs one scoring action through its reducer, appends the produced
// event and replaces the live state. A rejected action leaves both log
// and state untouched and returns a non-nil error; no event is ever
// appended for a rejection.
func (e *Engine) Apply(a Action) (GameEvent, error) {
	next, ev, err := Reduce(e.state, a)
	if err != nil {
		return GameEvent{}, err
	}
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UnixMilli()
	e.state = next
	e.log = append(e.log, ev)
	return ev, nil
}

// ApplyHit records a single, double, triple or homerun.
func (e *Engine) ApplyHit(kind EventKind) (GameEvent, error) {
	return e.Apply(HitAction{Kind: kind})
}

// ApplyStrike records a strike, converting to a strikeout on the third.
func (e *Engine) ApplyStrike() (GameEvent, error) {
	return e.Apply(StrikeAction{})
}

// ApplyError records a fielding error against the defense.
func (e *Engine) ApplyError(defenderId string) (GameEvent, error) {
	return e.Apply(ErrorAction{DefenderID: defenderId})
}

// ApplyCaughtOut records a catch by the given defender.
func (e *Engine) ApplyCaughtOut(defenderId string) (GameEvent, error) {
	return e.Apply(CaughtOutAction{DefenderID: defenderId})
}

// ApplySteal records a steal attempt by the given runner.
func (e *Engine) ApplySteal(runnerId, defenderId string, success bool) (GameEvent, error) {
	return e.Apply(StealAction{RunnerID: runnerId, DefenderID: defenderId, Success: success})
}

// UndoLast removes the most recent event and rebuilds the live state by
// replaying the surviving log from the initial state through the same
// reducers. Undo past the start of the log is rejected, as is undo on a
// completed game: completion freezes the record.
func (e *Engine) UndoLast() error {
	if e.state.Completed {
		return fmt.Errorf("game %s is completed: %w", e.cfg.GameID, ErrInvalidAction)
	}
	if len(e.log) == 0 {
		return fmt.Errorf("nothing to undo: %w", ErrInvalidAction)
	}
	survivors := e.log[:len(e.log)-1]
	state, err := ReplayEvents(e.initial, survivors)
	if err != nil {
		// The surviving log was produced by these same reducers, so a
		// replay failure means engine state is corrupt.
		return fmt.Errorf("replay after undo: %v", err)
	}
	e.log = survivors
	e.state = state
	return nil
}

// CompleteGame freezes the state and returns the full record for handoff
// to persistence. Further scoring actions are rejected.
func (e *Engine) CompleteGame() (LivePlayState, []GameEvent, error) {
	if e.state.Completed {
		return LivePlayState{}, nil, fmt.Errorf("game %s already completed: %w", e.cfg.GameID, ErrInvalidAction)
	}
	e.state.Completed = true
	return e.state.Clone(), e.Events(), nil
}
