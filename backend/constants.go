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

// Schema Versions
const (
	SchemaVersionV1 = 1
)

const CurrentSchemaVersion = SchemaVersionV1

// EventKind identifies the kind of a scoring event. The set is closed:
// reducers switch exhaustively over it with no default branch.
type EventKind string

const (
	EventSingle       EventKind = "single"
	EventDouble       EventKind = "double"
	EventTriple       EventKind = "triple"
	EventHomerun      EventKind = "homerun"
	EventStrike       EventKind = "strike"
	EventStrikeout    EventKind = "strikeout"
	EventError        EventKind = "error"
	EventCaughtOut    EventKind = "caught-out"
	EventStealSuccess EventKind = "steal-success"
	EventStealFail    EventKind = "steal-fail"
)

// IsHit reports whether the kind is one of the four hit kinds.
func (k EventKind) IsHit() bool {
	return k.BaseValue() > 0
}

// BaseValue returns the number of bases a hit advances runners (1-4),
// or 0 for non-hit kinds.
func (k EventKind) BaseValue() int {
	switch k {
	case EventSingle:
		return 1
	case EventDouble:
		return 2
	case EventTriple:
		return 3
	case EventHomerun:
		return 4
	}
	return 0
}

// IsValid reports whether the kind is a member of the closed set.
func (k EventKind) IsValid() bool {
	switch k {
	case EventSingle, EventDouble, EventTriple, EventHomerun,
		EventStrike, EventStrikeout, EventError, EventCaughtOut,
		EventStealSuccess, EventStealFail:
		return true
	}
	return false
}

// Half identifies one team's turn to bat within an inning.
// The away team bats in the top half, the home team in the bottom half;
// this convention is applied uniformly across scoring, persistence and
// aggregation.
type Half string

const (
	HalfTop    Half = "top"
	HalfBottom Half = "bottom"
)

// IsValid reports whether the half is "top" or "bottom".
func (h Half) IsValid() bool {
	return h == HalfTop || h == HalfBottom
}

// Rollover thresholds. Outs and strikes count 0-2; the third one triggers
// a transition instead of being stored.
const (
	OutsPerHalf      = 3
	StrikesPerOut    = 3
	DefaultInnings   = 5
	MaxLineupPlayers = 30
)

// Leaderboard sort keys.
const (
	SortByBattingAverage = "avg"
	SortBySlugging       = "slg"
	SortByHits           = "hits"
	SortByRBI            = "rbi"
	SortByTotalBases     = "totalBases"
	SortByAtBats         = "atBats"
	SortByStealWins      = "stealWins"
	SortByStealRate      = "stealRate"
	SortByCatches        = "catches"
)

// Game status values as stored on disk.
const (
	StatusLive    = "live"
	StatusFinal   = "final"
	StatusDeleted = "deleted"
)
