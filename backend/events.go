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

// GameEvent is one appended entry in a game's event log. Events are
// created exactly once per scoring action and never mutated or deleted;
// undo removes an event from the active log rather than editing it. Any
// store receiving this record must treat it as immutable and keyed by ID.
type GameEvent struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	EventType EventKind `json:"eventType"`
	Inning    int       `json:"inning"`
	Half      Half      `json:"half"`

	BatterID   string `json:"batterId"`
	DefenderID string `json:"defenderId,omitempty"`
	RunnerID   string `json:"runnerId,omitempty"`

	BaseStateBefore BaseState `json:"baseStateBefore"`
	BaseStateAfter  BaseState `json:"baseStateAfter"`

	RunsScored int `json:"runsScored"`
	RBI        int `json:"rbi"`

	// Timestamp is Unix milliseconds at creation.
	Timestamp int64 `json:"timestamp"`

	Notes string `json:"notes,omitempty"`
}

// SemanticEqual reports whether two events carry the same scoring content,
// ignoring ID and Timestamp. Applying the same reducer to the same state
// twice produces semantically equal events.
func (e GameEvent) SemanticEqual(other GameEvent) bool {
	e.ID, other.ID = "", ""
	e.Timestamp, other.Timestamp = 0, 0
	return e == other
}
