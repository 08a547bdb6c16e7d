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

// advanceBatter moves the offense's batting cursor to the next player.
func advanceBatter(s LivePlayState) LivePlayState {
	off := s.offense()
	off.Lineup = off.Lineup.advance()
	return s
}

// recordOut increments outs and rotates sides when the third out is
// reached. Callers must have already settled the play's base state.
func recordOut(s LivePlayState) LivePlayState {
	s.Outs++
	if s.Outs >= OutsPerHalf {
		s = rotateSides(s)
	}
	return s
}

// rotateSides ends the current half-inning: the half flips, the inning
// advances only after the bottom half completes, outs and strikes reset,
// the bases clear, and offense and defense swap. Planned innings extend
// so extra innings need no prior configuration.
func rotateSides(s LivePlayState) LivePlayState {
	if s.Half == HalfTop {
		s.Half = HalfBottom
	} else {
		s.Half = HalfTop
		s.Inning++
	}
	s.Outs = 0
	s.Strikes = 0
	s.Bases = BaseState{}
	s.OffenseID, s.DefenseID = s.DefenseID, s.OffenseID
	if s.Inning > s.PlannedInnings {
		s.PlannedInnings = s.Inning
	}
	return s
}
