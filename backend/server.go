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
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/c2FmZQ/storage"
)

func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

func hubBusyResponse(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	http.Error(w, "Too Many Requests: Server is busy", http.StatusTooManyRequests)
}

func parsePagination(r *http.Request) (int, int, string, string, string) {
	limit := 50
	offset := 0
	sortBy := r.URL.Query().Get("sortBy")
	order := r.URL.Query().Get("order")
	query := r.URL.Query().Get("q")

	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil {
			offset = val
		}
	}

	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset, sortBy, order, query
}

// Options represent server options.
type Options struct {
	Addr       string
	DataDir    string
	Debug      bool
	GameStore  *GameStore
	TeamStore  *TeamStore
	Storage    *storage.Storage
	Registry   *Registry
	HubManager *HubManager
	Listener   net.Listener
}

const (
	retryAfterAction   = "5"
	retryAfterSnapshot = "2"
)

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	gameStore  *GameStore
	registry   *Registry
}

// Shutdown gracefully shuts down the server, flushing dirty game state
// to disk before and after draining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []string

	if err := s.gameStore.FlushAll(); err != nil {
		errs = append(errs, fmt.Sprintf("flush: %v", err))
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("http: %v", err))
	}
	if err := s.gameStore.FlushAll(); err != nil {
		errs = append(errs, fmt.Sprintf("flush: %v", err))
	}
	s.registry.StopGC()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	handler, gs, registry := NewServerHandler(opts)

	httpServer := &http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}

	go func() {
		var err error
		if opts.Listener != nil {
			log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
			err = httpServer.Serve(opts.Listener)
		} else {
			log.Printf("Server starting on %s...", opts.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return &Server{
		httpServer: httpServer,
		gameStore:  gs,
		registry:   registry,
	}, nil
}

// writeEngineError maps engine and store errors to HTTP status codes.
// Rule violations are conflicts, setup problems are bad requests.
func writeEngineError(w http.ResponseWriter, err error) {
	var setupErr *SetupError
	switch {
	case errors.As(err, &setupErr):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidAction):
		http.Error(w, "Conflict: "+err.Error(), http.StatusConflict)
	case os.IsNotExist(err):
		http.Error(w, "Not Found: Game not found", http.StatusNotFound)
	default:
		log.Printf("Internal Server Error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// NewServerHandler creates and configures the HTTP handler for the server.
func NewServerHandler(opts Options) (http.Handler, *GameStore, *Registry) {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}

	store := opts.GameStore
	if store == nil {
		store = NewGameStore(opts.DataDir, opts.Storage)
	}
	store.Debug = opts.Debug
	tStore := opts.TeamStore
	if tStore == nil {
		tStore = NewTeamStore(opts.DataDir, opts.Storage)
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(store, tStore)
	}
	hm := opts.HubManager
	if hm == nil {
		hm = NewHubManager(store, registry)
	}

	// hubRoundTrip sends a request to the game's hub and waits for its
	// reply, honoring client disconnects and hub backpressure.
	hubRoundTrip := func(w http.ResponseWriter, r *http.Request, gameId string, req HubRequest, retryAfter string) (HubResponse, bool) {
		hub, err := hm.GetHub(gameId)
		if err != nil {
			writeEngineError(w, err)
			return HubResponse{}, false
		}
		reply := make(chan HubResponse, 1)
		req.Reply = reply
		select {
		case hub.requests <- req:
			select {
			case resp := <-reply:
				if resp.Error != nil {
					writeEngineError(w, resp.Error)
					return HubResponse{}, false
				}
				return resp, true
			case <-r.Context().Done():
				return HubResponse{}, false
			}
		default:
			hubBusyResponse(w, retryAfter)
			return HubResponse{}, false
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/game/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var cfg GameConfig
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&cfg); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if err := ValidateGameConfig(cfg); err != nil {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}

		hub, err := hm.StartHub(cfg)
		if err != nil {
			var setupErr *SetupError
			if errors.As(err, &setupErr) {
				http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			} else {
				http.Error(w, "Conflict: "+err.Error(), http.StatusConflict)
			}
			return
		}

		reply := make(chan HubResponse, 1)
		hub.requests <- HubRequest{Type: ReqTypeSnapshot, Reply: reply}
		resp := <-reply

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"gameId": cfg.GameID,
			"state":  resp.State,
		})
	})

	mux.HandleFunc("/api/game/action", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var msg Message
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&msg); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		gameId := msg.GameId
		if gameId == "" || !isValidUUID(gameId) {
			gameId = r.URL.Query().Get("gameId")
			if gameId == "" || !isValidUUID(gameId) {
				http.Error(w, "Bad Request: gameId is missing or invalid", http.StatusBadRequest)
				return
			}
		}
		if err := ValidateActionRequest(msg.Action); err != nil {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		a, err := DecodeAction(msg.Action)
		if err != nil {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}

		resp, ok := hubRoundTrip(w, r, gameId, HubRequest{Type: ReqTypeAction, Action: a}, retryAfterAction)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"event": resp.Event,
			"state": resp.State,
		})
	})

	mux.HandleFunc("/api/game/undo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var data struct {
			GameId string `json:"gameId"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&data); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if data.GameId == "" || !isValidUUID(data.GameId) {
			http.Error(w, "Bad Request: gameId is missing or invalid", http.StatusBadRequest)
			return
		}

		resp, ok := hubRoundTrip(w, r, data.GameId, HubRequest{Type: ReqTypeUndo}, retryAfterAction)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"state": resp.State})
	})

	mux.HandleFunc("/api/game/complete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var data struct {
			GameId string `json:"gameId"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&data); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if data.GameId == "" || !isValidUUID(data.GameId) {
			http.Error(w, "Bad Request: gameId is missing or invalid", http.StatusBadRequest)
			return
		}

		resp, ok := hubRoundTrip(w, r, data.GameId, HubRequest{Type: ReqTypeComplete}, retryAfterAction)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"state":  resp.State,
			"events": resp.Events,
		})
	})

	mux.HandleFunc("/api/game", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		gameId := r.URL.Query().Get("gameId")
		if gameId == "" || !isValidUUID(gameId) {
			http.Error(w, "Bad Request: gameId is missing or invalid", http.StatusBadRequest)
			return
		}

		// Live games keep their latest state in the store's cache, so
		// reads do not need to go through the hub.
		rec, err := store.LoadGame(gameId)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if rec.Status == StatusDeleted {
			http.Error(w, "Not Found: Game not found", http.StatusNotFound)
			return
		}

		data, err := json.Marshal(rec)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		etag := generateETag(data)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/api/game/delete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var data struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&data); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if data.ID == "" || !isValidUUID(data.ID) {
			http.Error(w, "Bad Request: gameId is missing or invalid", http.StatusBadRequest)
			return
		}

		if err := store.DeleteGame(data.ID); err != nil {
			log.Printf("Internal Server Error during DeleteGame: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		registry.DeleteGame(data.ID)
		hm.RemoveHub(data.ID)

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Game %s deleted successfully", data.ID)
	})

	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		limit, offset, sortBy, order, query := parsePagination(r)
		ids := registry.ListGames(sortBy, order, query)
		total := len(ids)

		var pageIds []string
		if offset < total {
			end := offset + limit
			if end > total {
				end = total
			}
			pageIds = ids[offset:end]
		}

		games := make([]GameRecordMeta, 0, len(pageIds))
		for _, gid := range pageIds {
			meta, ok := registry.getGameMeta(gid)
			if !ok {
				continue
			}
			games = append(games, meta)
		}

		respData := struct {
			Data []GameRecordMeta `json:"data"`
			Meta struct {
				Total  int `json:"total"`
				Offset int `json:"offset"`
				Limit  int `json:"limit"`
			} `json:"meta"`
		}{Data: games}
		respData.Meta.Total = total
		respData.Meta.Offset = offset
		respData.Meta.Limit = limit

		response, err := json.Marshal(respData)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		etag := generateETag(response)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.Write(response)
	})

	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		limit, offset, sortBy, _, query := parsePagination(r)
		if sortBy == "" {
			sortBy = SortByBattingAverage
		}

		rows, total := registry.Leaderboard(query, sortBy, limit, offset)

		respData := struct {
			Data []PlayerStatsRow `json:"data"`
			Meta struct {
				Total  int    `json:"total"`
				Offset int    `json:"offset"`
				Limit  int    `json:"limit"`
				SortBy string `json:"sortBy"`
			} `json:"meta"`
		}{Data: rows}
		respData.Meta.Total = total
		respData.Meta.Offset = offset
		respData.Meta.Limit = limit
		respData.Meta.SortBy = sortBy

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(respData)
	})

	mux.HandleFunc("/api/team", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			teamId := r.URL.Query().Get("teamId")
			if teamId == "" || !isValidUUID(teamId) {
				http.Error(w, "Bad Request: teamId is missing or invalid", http.StatusBadRequest)
				return
			}
			t, err := tStore.LoadTeam(teamId)
			if err != nil {
				if os.IsNotExist(err) {
					http.Error(w, "Not Found: Team not found", http.StatusNotFound)
					return
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(t)

		case http.MethodPost:
			var t Team
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&t); err != nil {
				http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
				return
			}
			if t.ID == "" || !isValidUUID(t.ID) {
				http.Error(w, "Bad Request: teamId is missing or invalid", http.StatusBadRequest)
				return
			}
			for _, p := range t.Roster {
				if !isValidUUID(p.ID) {
					http.Error(w, "Bad Request: invalid roster player ID", http.StatusBadRequest)
					return
				}
			}
			t.SchemaVersion = CurrentSchemaVersion
			if err := tStore.SaveTeam(&t); err != nil {
				log.Printf("Internal Server Error during SaveTeam: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			registry.UpdateTeam(&t)
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "Team %s saved successfully", t.ID)

		default:
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/team/delete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var data struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&data); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if data.ID == "" || !isValidUUID(data.ID) {
			http.Error(w, "Bad Request: teamId is missing or invalid", http.StatusBadRequest)
			return
		}

		if err := tStore.DeleteTeam(data.ID); err != nil {
			log.Printf("Internal Server Error during DeleteTeam: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		registry.DeleteTeam(data.ID)

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Team %s deleted successfully", data.ID)
	})

	mux.HandleFunc("/api/teams", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		teams := make([]*Team, 0)
		for t, err := range tStore.ListAllTeams() {
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if t.Status == StatusDeleted {
				continue
			}
			teams = append(teams, t)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": teams})
	})

	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hm, w, r)
	})

	handler := http.Handler(mux)
	handler = loggingMiddleware(handler)
	handler = securityMiddleware(handler)

	return handler, store, registry
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs the method and URL path of every incoming HTTP request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
