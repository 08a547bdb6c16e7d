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

import "fmt"

// actionForEvent maps a logged event back to the action that produced it.
// Replay goes through the reducers rather than hand-rolled inverse
// mutations, which makes replay equivalence true by construction.
func actionForEvent(e GameEvent) (Action, error) {
	switch e.EventType {
	case EventSingle, EventDouble, EventTriple, EventHomerun:
		return HitAction{Kind: e.EventType, Notes: e.Notes}, nil
	case EventStrike, EventStrikeout:
		// A logged strikeout is just the strike that happened to be the
		// third; the reducer re-derives the split from state.
		return StrikeAction{}, nil
	case EventError:
		return ErrorAction{DefenderID: e.DefenderID}, nil
	case EventCaughtOut:
		return CaughtOutAction{DefenderID: e.DefenderID}, nil
	case EventStealSuccess:
		return StealAction{RunnerID: e.RunnerID, DefenderID: e.DefenderID, Success: true}, nil
	case EventStealFail:
		return StealAction{RunnerID: e.RunnerID, DefenderID: e.DefenderID, Success: false}, nil
	}
	return nil, fmt.Errorf("event %s has unknown type %q", e.ID, e.EventType)
}

// ReplayEvents folds an event log over the reducers from the given
// initial state. Folding the full log reproduces the exact state obtained
// by the original incremental application.
func ReplayEvents(initial LivePlayState, events []GameEvent) (LivePlayState, error) {
	state := initial.Clone()
	for i, ev := range events {
		action, err := actionForEvent(ev)
		if err != nil {
			return LivePlayState{}, fmt.Errorf("replay event %d: %w", i, err)
		}
		next, _, err := Reduce(state, action)
		if err != nil {
			return LivePlayState{}, fmt.Errorf("replay event %d (%s): %w", i, ev.EventType, err)
		}
		state = next
	}
	return state, nil
}

// RebuildState reconstructs the final live state of a stored record by
// replaying its events from the config's initial state. Stores use this
// to verify that a persisted record reproduces the state it was saved
// with.
func RebuildState(cfg GameConfig, events []GameEvent, completed bool) (LivePlayState, error) {
	init, err := initialState(cfg)
	if err != nil {
		return LivePlayState{}, err
	}
	state, err := ReplayEvents(init, events)
	if err != nil {
		return LivePlayState{}, err
	}
	state.Completed = completed
	return state, nil
}
