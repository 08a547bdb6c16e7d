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
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// uuidRegex is a regex for standard UUIDs (8-4-4-4-12 hex digits)
var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// isValidUUID checks if the string is a valid UUID.
func isValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// Action request types accepted at the transport boundary.
const (
	ActionHit       = "HIT"
	ActionStrike    = "STRIKE"
	ActionError     = "ERROR"
	ActionCaughtOut = "CAUGHT_OUT"
	ActionSteal     = "STEAL"
)

// ActionRequest is the wire form of a scoring action. The payload shape
// depends on Type.
type ActionRequest struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if len(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

// ValidateActionRequest checks a raw action request for structural
// problems before it reaches the engine. Rule violations (wrong half,
// empty bases and so on) are the engine's job; this only rejects input
// that is malformed at the boundary.
func ValidateActionRequest(raw json.RawMessage) error {
	var req ActionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("malformed action JSON")
	}
	if !isValidUUID(req.ID) {
		return fmt.Errorf("invalid action ID: %s", req.ID)
	}
	_, err := decodeActionPayload(req.Type, req.Payload)
	return err
}

// DecodeAction converts a validated raw request into an engine Action.
func DecodeAction(raw json.RawMessage) (Action, error) {
	var req ActionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("malformed action JSON")
	}
	return decodeActionPayload(req.Type, req.Payload)
}

func decodeActionPayload(actionType string, payload json.RawMessage) (Action, error) {
	switch actionType {
	case ActionHit:
		return decodeHit(payload)
	case ActionStrike:
		return StrikeAction{}, nil
	case ActionError:
		return decodeError(payload)
	case ActionCaughtOut:
		return decodeCaughtOut(payload)
	case ActionSteal:
		return decodeSteal(payload)
	case "":
		return nil, fmt.Errorf("missing action type")
	default:
		return nil, fmt.Errorf("unknown action type: %s", actionType)
	}
}

func decodeHit(payload json.RawMessage) (Action, error) {
	var p struct {
		Kind  string `json:"kind"`
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	kind := EventKind(p.Kind)
	if !kind.IsHit() {
		return nil, fmt.Errorf("invalid hit kind: %s", p.Kind)
	}
	if err := validateStringLen(p.Notes, 200, "notes"); err != nil {
		return nil, err
	}
	return HitAction{Kind: kind, Notes: p.Notes}, nil
}

func decodeError(payload json.RawMessage) (Action, error) {
	var p struct {
		DefenderID string `json:"defenderId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	// Defender attribution is optional on errors.
	if p.DefenderID != "" && !isValidUUID(p.DefenderID) {
		return nil, fmt.Errorf("invalid defender ID")
	}
	return ErrorAction{DefenderID: p.DefenderID}, nil
}

func decodeCaughtOut(payload json.RawMessage) (Action, error) {
	var p struct {
		DefenderID string `json:"defenderId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	if !isValidUUID(p.DefenderID) {
		return nil, fmt.Errorf("invalid defender ID")
	}
	return CaughtOutAction{DefenderID: p.DefenderID}, nil
}

func decodeSteal(payload json.RawMessage) (Action, error) {
	var p struct {
		RunnerID   string `json:"runnerId"`
		DefenderID string `json:"defenderId"`
		Success    bool   `json:"success"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	if !isValidUUID(p.RunnerID) {
		return nil, fmt.Errorf("invalid runner ID")
	}
	if p.DefenderID != "" && !isValidUUID(p.DefenderID) {
		return nil, fmt.Errorf("invalid defender ID")
	}
	return StealAction{RunnerID: p.RunnerID, DefenderID: p.DefenderID, Success: p.Success}, nil
}

// ValidateGameConfig checks a new-game request before the engine builds
// its initial state.
func ValidateGameConfig(cfg GameConfig) error {
	if !isValidUUID(cfg.GameID) {
		return fmt.Errorf("invalid game ID: %s", cfg.GameID)
	}
	if cfg.Date != "" {
		if _, err := time.Parse(time.RFC3339, cfg.Date); err != nil {
			return fmt.Errorf("invalid date format: %v", err)
		}
	}
	if err := validateStringLen(cfg.LeagueID, 50, "league ID"); err != nil {
		return err
	}
	if cfg.PlannedInnings < 0 || cfg.PlannedInnings > 99 {
		return fmt.Errorf("invalid planned innings: %d", cfg.PlannedInnings)
	}
	for _, team := range []TeamConfig{cfg.Away, cfg.Home} {
		if err := validateStringLen(team.Label, 50, "team label"); err != nil {
			return err
		}
		if len(team.Players) == 0 {
			return fmt.Errorf("team %s has no players", team.ID)
		}
		if len(team.Players) > MaxLineupPlayers {
			return fmt.Errorf("team %s roster too large (max %d)", team.ID, MaxLineupPlayers)
		}
		for _, p := range team.Players {
			if !isValidUUID(p.ID) {
				return fmt.Errorf("invalid player ID: %s", p.ID)
			}
			if err := validateStringLen(p.Name, 50, "player name"); err != nil {
				return err
			}
			if err := validateStringLen(p.Number, 10, "player number"); err != nil {
				return err
			}
			if err := validateStringLen(p.IdentityKey, 100, "identity key"); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateEventLog checks every event of a stored log. Run before a
// stored game is replayed for resumption.
func ValidateEventLog(events []GameEvent) error {
	for i, ev := range events {
		if err := validateEvent(ev); err != nil {
			return fmt.Errorf("invalid event at index %d: %w", i, err)
		}
	}
	return nil
}

func validateEvent(ev GameEvent) error {
	if !isValidUUID(ev.ID) {
		return fmt.Errorf("invalid event ID: %s", ev.ID)
	}
	if !ev.EventType.IsValid() {
		return fmt.Errorf("unknown event type: %s", ev.EventType)
	}
	if ev.Inning < 1 {
		return fmt.Errorf("invalid inning: %d", ev.Inning)
	}
	if !ev.Half.IsValid() {
		return fmt.Errorf("invalid half: %s", ev.Half)
	}
	if ev.RunsScored < 0 || ev.RunsScored > 4 {
		return fmt.Errorf("invalid runs scored: %d", ev.RunsScored)
	}
	return nil
}
