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

// TeamSide carries one team's identity and running totals within a game.
type TeamSide struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Runs   int    `json:"runs"`
	Hits   int    `json:"hits"`
	Errors int    `json:"errors"`

	// RunsPerInning maps inning number to runs scored by this team in it.
	RunsPerInning map[int]int `json:"runsPerInning"`

	Lineup Lineup `json:"lineup"`
}

func (t TeamSide) clone() TeamSide {
	rpi := make(map[int]int, len(t.RunsPerInning))
	for k, v := range t.RunsPerInning {
		rpi[k] = v
	}
	t.RunsPerInning = rpi
	return t
}

// creditRuns adds runs to the team total and the current inning bucket.
func (t *TeamSide) creditRuns(inning, runs int) {
	if runs <= 0 {
		return
	}
	t.Runs += runs
	t.RunsPerInning[inning] += runs
}

// LivePlayState is the current snapshot of an in-progress game. It is a
// value: reducers take a state and return a new one, and the surrounding
// application holds the current value. There is no shared mutable
// singleton.
type LivePlayState struct {
	GameID  string    `json:"gameId"`
	Inning  int       `json:"inning"`
	Half    Half      `json:"half"`
	Outs    int       `json:"outs"`
	Strikes int       `json:"strikes"`
	Bases   BaseState `json:"bases"`

	OffenseID string `json:"offenseId"`
	DefenseID string `json:"defenseId"`

	Away TeamSide `json:"away"`
	Home TeamSide `json:"home"`

	PlannedInnings int  `json:"plannedInnings"`
	Completed      bool `json:"completed"`
}

// NewLivePlayState builds the initial state for a game: inning 1, top
// half, zero outs and strikes, empty bases, away team on offense.
func NewLivePlayState(gameId string, away, home TeamSide, plannedInnings int) LivePlayState {
	if plannedInnings < 1 {
		plannedInnings = DefaultInnings
	}
	if away.RunsPerInning == nil {
		away.RunsPerInning = make(map[int]int)
	}
	if home.RunsPerInning == nil {
		home.RunsPerInning = make(map[int]int)
	}
	return LivePlayState{
		GameID:         gameId,
		Inning:         1,
		Half:           HalfTop,
		OffenseID:      away.ID,
		DefenseID:      home.ID,
		Away:           away,
		Home:           home,
		PlannedInnings: plannedInnings,
	}
}

// Clone returns a deep copy. Reducers clone before touching anything so
// the caller's value is never aliased.
func (s LivePlayState) Clone() LivePlayState {
	s.Away = s.Away.clone()
	s.Home = s.Home.clone()
	return s
}

// offense returns a pointer to the batting team's side within s.
func (s *LivePlayState) offense() *TeamSide {
	if s.Away.ID == s.OffenseID {
		return &s.Away
	}
	return &s.Home
}

// defense returns a pointer to the fielding team's side within s.
func (s *LivePlayState) defense() *TeamSide {
	if s.Away.ID == s.DefenseID {
		return &s.Away
	}
	return &s.Home
}

// TotalRuns returns the sum of both teams' runs.
func (s LivePlayState) TotalRuns() int {
	return s.Away.Runs + s.Home.Runs
}
