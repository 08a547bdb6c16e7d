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

// Player represents a player in a lineup or team roster.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`

	// IdentityKey links per-game player records that represent the same
	// real person, for cross-game stat merging. Guests leave it empty and
	// are never merged across games.
	IdentityKey string `json:"identityKey,omitempty"`
	Guest       bool   `json:"guest,omitempty"`
}

// Lineup is the ordered batting list for one team with a circular cursor.
// The zero value is invalid; construct with NewLineup.
type Lineup struct {
	Players []Player `json:"players"`
	AtBat   int      `json:"atBat"`
}

// NewLineup builds a lineup from an ordered player list. An empty list is
// a SetupError; the cursor invariant (0 <= AtBat < len) therefore holds
// for every constructed lineup and is never re-checked at runtime.
func NewLineup(players []Player) (Lineup, error) {
	if len(players) == 0 {
		return Lineup{}, &SetupError{Reason: "lineup has no players"}
	}
	if len(players) > MaxLineupPlayers {
		return Lineup{}, &SetupError{Reason: "lineup too large"}
	}
	return Lineup{Players: players}, nil
}

// CurrentBatter returns the player at the batting cursor.
func (l Lineup) CurrentBatter() Player {
	return l.Players[l.AtBat]
}

// advance returns the lineup with the cursor moved to the next batter,
// wrapping around at the end of the order. The player list is shared, not
// copied; it is never mutated after construction.
func (l Lineup) advance() Lineup {
	l.AtBat = (l.AtBat + 1) % len(l.Players)
	return l
}

// FindPlayer returns the lineup player with the given ID.
func (l Lineup) FindPlayer(id string) (Player, bool) {
	for _, p := range l.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}
