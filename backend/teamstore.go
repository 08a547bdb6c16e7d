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
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
)

// Team is a persistent roster that can be reused across games. Game
// configs reference a team snapshot at start time; editing a stored
// team never rewrites past games.
type Team struct {
	ID            string   `json:"id"`
	SchemaVersion int      `json:"schemaVersion"`
	Name          string   `json:"name,omitempty"`
	ShortName     string   `json:"shortName,omitempty"`
	Color         string   `json:"color,omitempty"`
	LeagueID      string   `json:"leagueId,omitempty"`
	Roster        []Player `json:"roster,omitempty"`
	UpdatedAt     int64    `json:"updatedAt,omitempty"`

	// Status can be "active" (default/empty) or "deleted"
	Status string `json:"status,omitempty"`
	// DeletedAt is the timestamp (Unix Nano) when the team was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`
}

func (t *Team) normalize() {
	if t.SchemaVersion == 0 {
		t.SchemaVersion = CurrentSchemaVersion
	}
	if t.Roster == nil {
		t.Roster = make([]Player, 0)
	}
}

// TeamStore manages team persistence to disk.
type TeamStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // *sync.Mutex per team id
}

// NewTeamStore creates a new TeamStore.
func NewTeamStore(dataDir string, s *storage.Storage) *TeamStore {
	return &TeamStore{
		DataDir: dataDir,
		storage: s,
	}
}

func teamFilename(teamId string) string {
	return filepath.Join("teams", fmt.Sprintf("%s.json", url.PathEscape(teamId)))
}

func (ts *TeamStore) lock(teamId string) *sync.Mutex {
	m, _ := ts.mu.LoadOrStore(teamId, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// SaveTeam saves the team data atomically.
func (ts *TeamStore) SaveTeam(team *Team) error {
	mutex := ts.lock(team.ID)
	mutex.Lock()
	defer mutex.Unlock()

	if err := ts.storage.SaveDataFile(teamFilename(team.ID), team); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// LoadTeam loads the team data by ID.
func (ts *TeamStore) LoadTeam(teamId string) (*Team, error) {
	var t Team
	if err := ts.storage.ReadDataFile(teamFilename(teamId), &t); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	t.normalize()
	return &t, nil
}

// ListAllTeams returns an iterator over all teams found in the flat
// teams directory.
func (ts *TeamStore) ListAllTeams() iter.Seq2[*Team, error] {
	return func(yield func(*Team, error) bool) {
		teamsDir := filepath.Join(ts.DataDir, "teams")
		files, err := os.ReadDir(teamsDir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(nil, fmt.Errorf("could not read teams directory: %w", err))
			}
			return
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			teamId, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
			if err != nil {
				continue
			}
			t, err := ts.LoadTeam(teamId)
			if err != nil {
				log.Printf("Warning: could not load team '%s': %v", teamId, err)
				continue
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// DeleteTeam deletes a specific team by overwriting it with a tombstone.
func (ts *TeamStore) DeleteTeam(teamId string) error {
	if _, err := ts.LoadTeam(teamId); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	mutex := ts.lock(teamId)
	mutex.Lock()
	defer mutex.Unlock()

	tombstone := &Team{
		ID:            teamId,
		SchemaVersion: CurrentSchemaVersion,
		Status:        StatusDeleted,
		DeletedAt:     time.Now().UnixNano(),
	}
	if err := ts.storage.SaveDataFile(teamFilename(teamId), tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}
	return nil
}

// PurgeTeam permanently deletes the team file.
func (ts *TeamStore) PurgeTeam(teamId string) error {
	mutex := ts.lock(teamId)
	mutex.Lock()
	defer mutex.Unlock()

	if err := os.Remove(filepath.Join(ts.DataDir, teamFilename(teamId))); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not purge team file: %w", err)
	}
	return nil
}
