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

// BaseState holds the occupancy of the three bases by runner ID.
// Empty string means the base is unoccupied. A runner ID appears in at
// most one slot at a time.
type BaseState struct {
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`
	Third  string `json:"third,omitempty"`
}

// Occupied reports whether any base holds a runner.
func (b BaseState) Occupied() bool {
	return b.First != "" || b.Second != "" || b.Third != ""
}

// Holds reports whether the given runner is on a base.
func (b BaseState) Holds(runnerId string) bool {
	if runnerId == "" {
		return false
	}
	return b.First == runnerId || b.Second == runnerId || b.Third == runnerId
}

// slots returns the base occupants indexed 0=first, 1=second, 2=third.
func (b BaseState) slots() [3]string {
	return [3]string{b.First, b.Second, b.Third}
}

func fromSlots(s [3]string) BaseState {
	return BaseState{First: s[0], Second: s[1], Third: s[2]}
}

// HitResolution is the outcome of advancing runners on a hit.
type HitResolution struct {
	Before     BaseState
	After      BaseState
	RunsScored int
	RBI        int
}

// AdvanceForHit computes the base transition for a hit worth basesAdvanced
// bases (1-4). Runners advance in lead order (third, then second, then
// first), each moving basesAdvanced slots; a runner whose destination is
// past third scores. The batter occupies the base matching the hit value,
// or scores outright on a homerun. Every run on a hit is batted in, so
// RBI always equals RunsScored.
//
// The function is pure: identical inputs always yield identical outputs.
// Undo and replay depend on that.
func AdvanceForHit(bases BaseState, basesAdvanced int, batterId string) HitResolution {
	res := HitResolution{Before: bases}
	before := bases.slots()
	var after [3]string

	for i := 2; i >= 0; i-- {
		runner := before[i]
		if runner == "" {
			continue
		}
		dest := i + basesAdvanced
		if dest > 2 {
			res.RunsScored++
			continue
		}
		after[dest] = runner
	}

	if basesAdvanced >= 4 {
		res.RunsScored++
	} else {
		after[basesAdvanced-1] = batterId
	}

	res.RBI = res.RunsScored
	res.After = fromSlots(after)
	return res
}

// StealResolution is the outcome of a steal attempt.
type StealResolution struct {
	Before     BaseState
	After      BaseState
	RunsScored int
	// AdvancedRunner is the runner moved on a successful steal (the lead
	// runner), or the runner removed on a failed one.
	AdvancedRunner string
}

// ResolveSteal computes the base transition for a steal attempt. On
// success only the lead runner advances, by exactly one base, scoring
// from third. On failure the named runner is removed from whichever base
// holds them; if they are on none, the state is unchanged. Calling this
// with no base occupied is a caller contract violation guarded in the
// reducer.
func ResolveSteal(bases BaseState, runnerId string, success bool) StealResolution {
	res := StealResolution{Before: bases, After: bases}

	if !success {
		after := bases.slots()
		for i := range after {
			if after[i] == runnerId {
				res.AdvancedRunner = runnerId
				after[i] = ""
				break
			}
		}
		res.After = fromSlots(after)
		return res
	}

	after := bases.slots()
	switch {
	case after[2] != "":
		res.AdvancedRunner = after[2]
		after[2] = ""
		res.RunsScored = 1
	case after[1] != "":
		res.AdvancedRunner = after[1]
		after[2] = after[1]
		after[1] = ""
	case after[0] != "":
		res.AdvancedRunner = after[0]
		after[1] = after[0]
		after[0] = ""
	}
	res.After = fromSlots(after)
	return res
}
