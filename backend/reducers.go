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

// Action is the closed set of operator scoring actions. Each variant
// drives exactly one reducer; Reduce switches exhaustively so a new kind
// cannot be silently ignored.
type Action interface {
	isAction()
}

// HitAction records a hit of one of the four hit kinds.
type HitAction struct {
	Kind  EventKind
	Notes string
}

// StrikeAction records a called strike against the current batter.
type StrikeAction struct{}

// ErrorAction records a fielding error charged to the defense.
type ErrorAction struct {
	DefenderID string
}

// CaughtOutAction records a ball caught in the air by a defender.
type CaughtOutAction struct {
	DefenderID string
}

// StealAction records a steal attempt by a runner.
type StealAction struct {
	RunnerID   string
	DefenderID string
	Success    bool
}

func (HitAction) isAction()       {}
func (StrikeAction) isAction()    {}
func (ErrorAction) isAction()     {}
func (CaughtOutAction) isAction() {}
func (StealAction) isAction()     {}

// Reduce applies one scoring action to a state and returns the next state
// and the event to append. It never mutates its input; on a guard failure
// it returns ErrInvalidAction and the input state unchanged, and no event
// is produced. The returned event carries no ID or timestamp; the engine
// stamps those on append.
func Reduce(s LivePlayState, a Action) (LivePlayState, GameEvent, error) {
	if s.Completed {
		return s, GameEvent{}, fmt.Errorf("game %s is completed: %w", s.GameID, ErrInvalidAction)
	}

	next := s.Clone()
	switch act := a.(type) {
	case HitAction:
		return reduceHit(s, next, act)
	case StrikeAction:
		return reduceStrike(s, next)
	case ErrorAction:
		return reduceError(s, next, act)
	case CaughtOutAction:
		return reduceCaughtOut(s, next, act)
	case StealAction:
		return reduceSteal(s, next, act)
	}
	return s, GameEvent{}, fmt.Errorf("unknown action type %T: %w", a, ErrInvalidAction)
}

// newEvent captures the pre-action context. Inning and half are always
// those in effect when the action happened, even if the action itself
// triggers a rotation.
func newEvent(s LivePlayState, kind EventKind) GameEvent {
	return GameEvent{
		GameID:          s.GameID,
		EventType:       kind,
		Inning:          s.Inning,
		Half:            s.Half,
		BatterID:        s.offense().Lineup.CurrentBatter().ID,
		BaseStateBefore: s.Bases,
		BaseStateAfter:  s.Bases,
	}
}

func reduceHit(orig, s LivePlayState, a HitAction) (LivePlayState, GameEvent, error) {
	if !a.Kind.IsHit() {
		return orig, GameEvent{}, fmt.Errorf("kind %q is not a hit: %w", a.Kind, ErrInvalidAction)
	}

	ev := newEvent(s, a.Kind)
	ev.Notes = a.Notes

	res := AdvanceForHit(s.Bases, a.Kind.BaseValue(), ev.BatterID)
	s.Bases = res.After
	ev.BaseStateAfter = res.After
	ev.RunsScored = res.RunsScored
	ev.RBI = res.RBI

	off := s.offense()
	off.Hits++
	off.creditRuns(s.Inning, res.RunsScored)

	s = advanceBatter(s)
	s.Strikes = 0
	return s, ev, nil
}

func reduceStrike(orig, s LivePlayState) (LivePlayState, GameEvent, error) {
	if s.Strikes < StrikesPerOut-1 {
		ev := newEvent(s, EventStrike)
		s.Strikes++
		return s, ev, nil
	}

	// Third strike: the batter is out.
	ev := newEvent(s, EventStrikeout)
	s.Strikes = 0
	s = advanceBatter(s)
	s = recordOut(s)
	return s, ev, nil
}

// reduceError charges the defense with an error. When the batter already
// has two strikes the error resolves the at-bat like a strikeout: the
// batter is out and the order advances. This mirrors the scoring rule
// that an error on what would have been the third strike still retires
// the batter.
func reduceError(orig, s LivePlayState, a ErrorAction) (LivePlayState, GameEvent, error) {
	if a.DefenderID != "" {
		if _, ok := s.defense().Lineup.FindPlayer(a.DefenderID); !ok {
			return orig, GameEvent{}, fmt.Errorf("defender %s not on defense roster: %w", a.DefenderID, ErrInvalidAction)
		}
	}

	ev := newEvent(s, EventError)
	ev.DefenderID = a.DefenderID
	s.defense().Errors++

	if s.Strikes < StrikesPerOut-1 {
		s.Strikes++
		return s, ev, nil
	}

	s.Strikes = 0
	s = advanceBatter(s)
	s = recordOut(s)
	return s, ev, nil
}

func reduceCaughtOut(orig, s LivePlayState, a CaughtOutAction) (LivePlayState, GameEvent, error) {
	if a.DefenderID == "" {
		return orig, GameEvent{}, fmt.Errorf("caught-out requires a defender: %w", ErrInvalidAction)
	}
	if _, ok := s.defense().Lineup.FindPlayer(a.DefenderID); !ok {
		return orig, GameEvent{}, fmt.Errorf("defender %s not on defense roster: %w", a.DefenderID, ErrInvalidAction)
	}

	ev := newEvent(s, EventCaughtOut)
	ev.DefenderID = a.DefenderID

	s.Strikes = 0
	s = advanceBatter(s)
	s = recordOut(s)
	return s, ev, nil
}

// reduceSteal never advances the batter and never resets strikes; the
// at-bat continues around the attempt.
func reduceSteal(orig, s LivePlayState, a StealAction) (LivePlayState, GameEvent, error) {
	if a.RunnerID == "" {
		return orig, GameEvent{}, fmt.Errorf("steal requires a runner: %w", ErrInvalidAction)
	}
	if !s.Bases.Occupied() {
		return orig, GameEvent{}, fmt.Errorf("steal with empty bases: %w", ErrInvalidAction)
	}

	kind := EventStealFail
	if a.Success {
		kind = EventStealSuccess
	}
	ev := newEvent(s, kind)
	ev.RunnerID = a.RunnerID
	ev.DefenderID = a.DefenderID

	res := ResolveSteal(s.Bases, a.RunnerID, a.Success)
	s.Bases = res.After
	ev.BaseStateAfter = res.After
	ev.RunsScored = res.RunsScored

	if a.Success {
		s.offense().creditRuns(s.Inning, res.RunsScored)
		return s, ev, nil
	}

	s = recordOut(s)
	return s, ev, nil
}
