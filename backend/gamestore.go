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

// GameRecord is the full persisted form of a game: its configuration,
// the append-only event log, and the final state snapshot once the game
// is completed. The event log is authoritative; FinalState is a
// convenience snapshot that must equal a replay of the log.
type GameRecord struct {
	ID            string         `json:"id"`
	SchemaVersion int            `json:"schemaVersion"`
	Date          string         `json:"date,omitempty"`
	LeagueID      string         `json:"leagueId,omitempty"`
	Config        GameConfig     `json:"config"`
	Events        []GameEvent    `json:"events,omitempty"`
	FinalState    *LivePlayState `json:"finalState,omitempty"`
	Status        string         `json:"status"`

	// DeletedAt is the timestamp (Unix Nano) when the record was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`
}

func (r *GameRecord) normalize() {
	if r.SchemaVersion == 0 {
		r.SchemaVersion = CurrentSchemaVersion
	}
	if r.Events == nil {
		r.Events = make([]GameEvent, 0)
	}
}

// Meta returns the sidecar view of the record.
func (r *GameRecord) Meta() GameRecordMeta {
	return GameRecordMeta{
		ID:         r.ID,
		Date:       r.Date,
		LeagueID:   r.LeagueID,
		AwayLabel:  r.Config.Away.Label,
		HomeLabel:  r.Config.Home.Label,
		Status:     r.Status,
		EventCount: len(r.Events),
		DeletedAt:  r.DeletedAt,
	}
}

// GameRecordMeta contains only the fields needed for indexing, so that
// listing games does not deserialize whole event logs.
type GameRecordMeta struct {
	ID         string `json:"id"`
	Date       string `json:"date,omitempty"`
	LeagueID   string `json:"leagueId,omitempty"`
	AwayLabel  string `json:"awayLabel,omitempty"`
	HomeLabel  string `json:"homeLabel,omitempty"`
	Status     string `json:"status"`
	EventCount int    `json:"eventCount"`
	DeletedAt  int64  `json:"deletedAt,omitempty"`
}

// GameStore manages game persistence to disk.
type GameStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage
	mu      sync.Map // *sync.RWMutex per game id
	cache   sync.Map // latest JSON []byte per game id

	dirtyMu sync.Mutex
	dirty   map[string]bool
}

// NewGameStore creates a new GameStore.
func NewGameStore(dataDir string, s *storage.Storage) *GameStore {
	return &GameStore{
		DataDir: dataDir,
		storage: s,
		dirty:   make(map[string]bool),
	}
}

func gameFilenames(gameId string) (string, string) {
	encoded := url.PathEscape(gameId)
	return filepath.Join("games", fmt.Sprintf("%s.json", encoded)),
		filepath.Join("games", fmt.Sprintf("%s.meta.json", encoded))
}

func (gs *GameStore) lock(gameId string) *sync.RWMutex {
	m, _ := gs.mu.LoadOrStore(gameId, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

// SaveGame writes the record and its metadata sidecar atomically and
// clears the dirty flag.
func (gs *GameStore) SaveGame(rec *GameRecord) error {
	gameId := rec.ID
	mutex := gs.lock(gameId)
	mutex.Lock()
	defer mutex.Unlock()

	filename, metaFilename := gameFilenames(gameId)

	if err := gs.storage.SaveDataFile(filename, rec); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}

	meta := rec.Meta()
	if err := gs.storage.SaveDataFile(metaFilename, &meta); err != nil {
		// Non-fatal, listing falls back to the main file.
		log.Printf("Warning: Failed to save metadata sidecar for game %s: %v", gameId, err)
	}

	if jsonBytes, err := json.Marshal(rec); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}

	gs.dirtyMu.Lock()
	delete(gs.dirty, gameId)
	gs.dirtyMu.Unlock()

	return nil
}

// SaveGameInMemory updates the cache and marks the record dirty. With
// forceSync it writes through to disk immediately.
func (gs *GameStore) SaveGameInMemory(rec *GameRecord, forceSync bool) error {
	jsonBytes, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	gs.cache.Store(rec.ID, jsonBytes)

	if forceSync {
		return gs.SaveGame(rec)
	}

	gs.dirtyMu.Lock()
	gs.dirty[rec.ID] = true
	gs.dirtyMu.Unlock()

	return nil
}

// Flush persists a specific game to disk if it is dirty.
func (gs *GameStore) Flush(gameId string) error {
	gs.dirtyMu.Lock()
	isDirty := gs.dirty[gameId]
	gs.dirtyMu.Unlock()
	if !isDirty {
		return nil
	}

	val, ok := gs.cache.Load(gameId)
	if !ok {
		gs.dirtyMu.Lock()
		delete(gs.dirty, gameId)
		gs.dirtyMu.Unlock()
		return fmt.Errorf("game %s marked dirty but not found in cache", gameId)
	}

	var rec GameRecord
	if err := json.Unmarshal(val.([]byte), &rec); err != nil {
		return fmt.Errorf("failed to unmarshal game from cache for flush: %w", err)
	}

	// SaveGame clears the dirty flag.
	return gs.SaveGame(&rec)
}

// FlushAll persists all dirty games to disk.
func (gs *GameStore) FlushAll() error {
	gs.dirtyMu.Lock()
	dirtyIds := make([]string, 0, len(gs.dirty))
	for id := range gs.dirty {
		dirtyIds = append(dirtyIds, id)
	}
	gs.dirtyMu.Unlock()

	for _, id := range dirtyIds {
		if err := gs.Flush(id); err != nil {
			return fmt.Errorf("failed to flush game %s: %w", id, err)
		}
	}
	return nil
}

// LoadGame loads a game record by ID, preferring the in-memory cache.
func (gs *GameStore) LoadGame(gameId string) (*GameRecord, error) {
	if val, ok := gs.cache.Load(gameId); ok {
		var rec GameRecord
		if err := json.Unmarshal(val.([]byte), &rec); err == nil {
			if gs.Debug {
				log.Printf("[CACHE] Hit for game %s", gameId)
			}
			rec.normalize()
			return &rec, nil
		}
		gs.cache.Delete(gameId)
	}
	if gs.Debug {
		log.Printf("[CACHE] Miss for game %s", gameId)
	}

	mutex := gs.lock(gameId)
	mutex.RLock()
	defer mutex.RUnlock()

	filename, _ := gameFilenames(gameId)

	var rec GameRecord
	if err := gs.storage.ReadDataFile(filename, &rec); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	rec.normalize()

	if jsonBytes, err := json.Marshal(&rec); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}

	return &rec, nil
}

// VerifyGame replays the stored event log and compares it against the
// stored final state snapshot. Run after a completed game is persisted
// to catch records whose snapshot drifted from the log.
func (gs *GameStore) VerifyGame(gameId string) error {
	rec, err := gs.LoadGame(gameId)
	if err != nil {
		return err
	}
	if rec.FinalState == nil {
		return nil
	}
	replayed, err := RebuildState(rec.Config, rec.Events, rec.FinalState.Completed)
	if err != nil {
		return fmt.Errorf("replay of game %s: %w", gameId, err)
	}
	if replayed.TotalRuns() != rec.FinalState.TotalRuns() ||
		replayed.Inning != rec.FinalState.Inning ||
		replayed.Half != rec.FinalState.Half {
		return fmt.Errorf("game %s: stored final state diverges from replayed log", gameId)
	}
	return nil
}

// DeleteGame deletes a specific game by overwriting it with a tombstone.
func (gs *GameStore) DeleteGame(gameId string) error {
	if _, err := gs.LoadGame(gameId); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	mutex := gs.lock(gameId)
	mutex.Lock()
	defer mutex.Unlock()

	tombstone := &GameRecord{
		ID:            gameId,
		SchemaVersion: CurrentSchemaVersion,
		Status:        StatusDeleted,
		DeletedAt:     time.Now().UnixNano(),
	}

	filename, metaFilename := gameFilenames(gameId)

	if err := gs.storage.SaveDataFile(filename, tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}
	meta := tombstone.Meta()
	if err := gs.storage.SaveDataFile(metaFilename, &meta); err != nil {
		log.Printf("Warning: Failed to save metadata tombstone for game %s: %v", gameId, err)
	}

	if jsonBytes, err := json.Marshal(tombstone); err == nil {
		gs.cache.Store(gameId, jsonBytes)
	}

	gs.dirtyMu.Lock()
	delete(gs.dirty, gameId)
	gs.dirtyMu.Unlock()

	return nil
}

// PurgeGame permanently deletes the game file and its sidecar.
func (gs *GameStore) PurgeGame(gameId string) error {
	mutex := gs.lock(gameId)
	mutex.Lock()
	defer mutex.Unlock()

	gs.cache.Delete(gameId)
	gs.dirtyMu.Lock()
	delete(gs.dirty, gameId)
	gs.dirtyMu.Unlock()

	filename, metaFilename := gameFilenames(gameId)

	if err := os.Remove(filepath.Join(gs.DataDir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not purge game file: %w", err)
	}
	if err := os.Remove(filepath.Join(gs.DataDir, metaFilename)); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not purge meta file for game %s: %v", gameId, err)
	}
	return nil
}

// ListAllGameMetadata yields metadata for all games without loading full
// event logs. Sidecar files are the fast path; records without one fall
// back to loading the main file. Dirty in-memory records are included
// last.
func (gs *GameStore) ListAllGameMetadata() iter.Seq2[GameRecordMeta, error] {
	return func(yield func(GameRecordMeta, error) bool) {
		gamesDir := filepath.Join(gs.DataDir, "games")
		files, err := os.ReadDir(gamesDir)
		if err != nil && !os.IsNotExist(err) {
			yield(GameRecordMeta{}, fmt.Errorf("could not read games directory: %w", err))
			return
		}

		hasMeta := make(map[string]bool)
		hasGame := make(map[string]bool)
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			switch {
			case strings.HasSuffix(name, ".meta.json"):
				if id, err := url.PathUnescape(strings.TrimSuffix(name, ".meta.json")); err == nil {
					hasMeta[id] = true
				}
			case strings.HasSuffix(name, ".json"):
				if id, err := url.PathUnescape(strings.TrimSuffix(name, ".json")); err == nil {
					hasGame[id] = true
				}
			}
		}

		processed := make(map[string]bool)

		for id := range hasMeta {
			processed[id] = true

			_, metaFilename := gameFilenames(id)
			var meta GameRecordMeta
			if err := gs.storage.ReadDataFile(metaFilename, &meta); err != nil {
				log.Printf("Registry Warning: failed to load metadata for %s: %v. Falling back to main file.", id, err)
				hasGame[id] = true
				processed[id] = false
				continue
			}
			if !yield(meta, nil) {
				return
			}
		}

		for id := range hasGame {
			if processed[id] {
				continue
			}
			processed[id] = true

			rec, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Registry Warning: failed to load game %s from disk: %v", id, err)
				continue
			}
			if !yield(rec.Meta(), nil) {
				return
			}
		}

		// Dirty cache holds games created in memory but not yet flushed.
		gs.dirtyMu.Lock()
		dirtyIds := make([]string, 0, len(gs.dirty))
		for id := range gs.dirty {
			dirtyIds = append(dirtyIds, id)
		}
		gs.dirtyMu.Unlock()

		for _, id := range dirtyIds {
			if processed[id] {
				continue
			}
			rec, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}
			if !yield(rec.Meta(), nil) {
				return
			}
		}
	}
}

// ListAllGames yields every game record, disk first, then unflushed
// in-memory records.
func (gs *GameStore) ListAllGames() iter.Seq2[*GameRecord, error] {
	return func(yield func(*GameRecord, error) bool) {
		gamesDir := filepath.Join(gs.DataDir, "games")
		files, err := os.ReadDir(gamesDir)
		if err != nil && !os.IsNotExist(err) {
			yield(nil, fmt.Errorf("could not read games directory: %w", err))
			return
		}

		seen := make(map[string]bool)

		for _, file := range files {
			name := file.Name()
			if file.IsDir() || strings.HasSuffix(name, ".meta.json") || !strings.HasSuffix(name, ".json") {
				continue
			}
			gameId, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
			if err != nil {
				continue
			}
			seen[gameId] = true

			rec, err := gs.LoadGame(gameId)
			if err != nil {
				log.Printf("Warning: could not load game '%s': %v", gameId, err)
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}

		gs.dirtyMu.Lock()
		dirtyIds := make([]string, 0, len(gs.dirty))
		for id := range gs.dirty {
			dirtyIds = append(dirtyIds, id)
		}
		gs.dirtyMu.Unlock()

		for _, id := range dirtyIds {
			if seen[id] {
				continue
			}
			rec, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
