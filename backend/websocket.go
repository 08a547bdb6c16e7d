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
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Message types for WebSocket communication
const (
	MsgTypeJoin     = "JOIN"
	MsgTypeAck      = "ACK"
	MsgTypeAction   = "ACTION"
	MsgTypeUndo     = "UNDO"
	MsgTypeEvent    = "EVENT"
	MsgTypeSnapshot = "SNAPSHOT"
	MsgTypeError    = "ERROR"
)

// Message represents a WebSocket message. Event carries the single
// applied event on broadcasts; State carries the play state snapshot.
type Message struct {
	Type   string          `json:"type"`
	GameId string          `json:"gameId,omitempty"`
	Action json.RawMessage `json:"action,omitempty"`
	Event  *GameEvent      `json:"event,omitempty"`
	Events []GameEvent     `json:"events,omitempty"`
	State  *LivePlayState  `json:"state,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// HubRequest types
const (
	ReqTypeWSJoin   = "WS_JOIN"
	ReqTypeAction   = "ACTION"
	ReqTypeUndo     = "UNDO"
	ReqTypeSnapshot = "SNAPSHOT"
	ReqTypeComplete = "COMPLETE"
)

// HubRequest represents a request to the Hub. All game mutations flow
// through the hub's request channel, so the engine never sees two
// actions at once.
type HubRequest struct {
	Type   string
	Client *wsClient // set for WS-originated requests
	Action Action
	Reply  chan HubResponse // set for HTTP-originated requests
}

// HubResponse represents a response from the Hub.
type HubResponse struct {
	Event  *GameEvent
	Events []GameEvent
	State  *LivePlayState
	Error  error
}

// Hub owns the engine of one live game and broadcasts applied events to
// connected clients.
type Hub struct {
	gameId string

	engine *Engine

	// Registered clients.
	clients map[*wsClient]bool

	// Inbound requests
	requests chan HubRequest

	// Register requests from the clients.
	register chan *wsClient

	// Unregister requests from clients.
	unregister chan *wsClient

	gs *GameStore
	r  *Registry
	hm *HubManager
}

func newHub(gameId string, engine *Engine, gs *GameStore, r *Registry, hm *HubManager) *Hub {
	return &Hub{
		gameId:     gameId,
		engine:     engine,
		requests:   make(chan HubRequest, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		clients:    make(map[*wsClient]bool),
		gs:         gs,
		r:          r,
		hm:         hm,
	}
}

func (h *Hub) run() {
	idleTimer := time.NewTicker(5 * time.Minute)
	defer idleTimer.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case req := <-h.requests:
			switch req.Type {
			case ReqTypeWSJoin:
				if req.Client != nil && h.clients[req.Client] {
					h.handleJoin(req.Client)
				}
			case ReqTypeAction:
				h.handleAction(req)
			case ReqTypeUndo:
				h.handleUndo(req)
			case ReqTypeSnapshot:
				h.handleSnapshot(req)
			case ReqTypeComplete:
				h.handleComplete(req)
			}
		case <-idleTimer.C:
			if len(h.clients) == 0 {
				if err := h.gs.Flush(h.gameId); err != nil {
					log.Printf("Hub: Error flushing game %s: %v", h.gameId, err)
				}
				h.hm.RemoveHub(h.gameId)
				return
			}
		}
	}
}

func (h *Hub) handleJoin(c *wsClient) {
	state := h.engine.State()
	c.sendJSON(Message{
		Type:   MsgTypeSnapshot,
		GameId: h.gameId,
		State:  &state,
		Events: h.engine.Events(),
	})
}

func (h *Hub) handleAction(req HubRequest) {
	ev, err := h.engine.Apply(req.Action)
	if err != nil {
		h.replyError(req, err)
		return
	}

	h.persist(false)

	state := h.engine.State()
	h.broadcast(Message{Type: MsgTypeEvent, GameId: h.gameId, Event: &ev, State: &state})

	if req.Reply != nil {
		req.Reply <- HubResponse{Event: &ev, State: &state}
	}
}

func (h *Hub) handleUndo(req HubRequest) {
	if err := h.engine.UndoLast(); err != nil {
		h.replyError(req, err)
		return
	}

	h.persist(false)

	state := h.engine.State()
	h.broadcast(Message{Type: MsgTypeSnapshot, GameId: h.gameId, State: &state, Events: h.engine.Events()})

	if req.Reply != nil {
		req.Reply <- HubResponse{State: &state}
	}
}

func (h *Hub) handleSnapshot(req HubRequest) {
	state := h.engine.State()
	if req.Reply != nil {
		req.Reply <- HubResponse{State: &state, Events: h.engine.Events()}
	}
}

func (h *Hub) handleComplete(req HubRequest) {
	final, events, err := h.engine.CompleteGame()
	if err != nil {
		h.replyError(req, err)
		return
	}

	// Completion writes through to disk immediately, then the stored
	// record is checked against a replay of its log before clients are
	// told the game is final.
	h.persist(true)
	if err := h.gs.VerifyGame(h.gameId); err != nil {
		log.Printf("Hub: Final record for game %s failed verification: %v", h.gameId, err)
	}

	h.broadcast(Message{Type: MsgTypeSnapshot, GameId: h.gameId, State: &final, Events: events})

	if req.Reply != nil {
		req.Reply <- HubResponse{State: &final, Events: events}
	}
}

func (h *Hub) replyError(req HubRequest, err error) {
	if req.Reply != nil {
		req.Reply <- HubResponse{Error: err}
		return
	}
	if req.Client != nil {
		req.Client.sendJSON(Message{Type: MsgTypeError, GameId: h.gameId, Error: err.Error()})
	}
}

// persist snapshots the engine into a GameRecord. Live games stay in the
// store's dirty cache; forceSync writes through to disk.
func (h *Hub) persist(forceSync bool) {
	cfg := h.engine.Config()
	state := h.engine.State()

	rec := &GameRecord{
		ID:            h.gameId,
		SchemaVersion: CurrentSchemaVersion,
		Date:          cfg.Date,
		LeagueID:      cfg.LeagueID,
		Config:        cfg,
		Events:        h.engine.Events(),
		Status:        StatusLive,
	}
	if state.Completed {
		rec.Status = StatusFinal
		rec.FinalState = &state
	}

	if err := h.gs.SaveGameInMemory(rec, forceSync); err != nil {
		log.Printf("Hub: Error persisting game %s: %v", h.gameId, err)
		return
	}
	h.r.UpdateGame(rec)
}

func (h *Hub) broadcast(msg Message) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// HubManager tracks the hub of every live game.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.Mutex

	gs *GameStore
	r  *Registry
}

func NewHubManager(gs *GameStore, r *Registry) *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
		gs:   gs,
		r:    r,
	}
}

// StartHub creates the engine for a new game and its hub. The initial
// record is persisted before the hub accepts requests.
func (hm *HubManager) StartHub(cfg GameConfig) (*Hub, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if _, ok := hm.hubs[cfg.GameID]; ok {
		return nil, fmt.Errorf("game %s already live", cfg.GameID)
	}
	if rec, err := hm.gs.LoadGame(cfg.GameID); err == nil && rec.Status != StatusDeleted {
		return nil, fmt.Errorf("game %s already exists", cfg.GameID)
	}

	engine, err := StartGame(cfg)
	if err != nil {
		return nil, err
	}

	hub := newHub(cfg.GameID, engine, hm.gs, hm.r, hm)
	hub.persist(true)
	hm.hubs[cfg.GameID] = hub
	go hub.run()
	return hub, nil
}

// GetHub returns the hub of a live game, resuming it from the store if
// its hub was idle-collected. Completed games do not get a hub back.
func (hm *HubManager) GetHub(gameId string) (*Hub, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if hub, ok := hm.hubs[gameId]; ok {
		return hub, nil
	}

	rec, err := hm.gs.LoadGame(gameId)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	if rec.Status == StatusDeleted {
		return nil, os.ErrNotExist
	}
	if rec.Status == StatusFinal {
		return nil, fmt.Errorf("game %s is completed: %w", gameId, ErrInvalidAction)
	}

	engine, err := ResumeGame(rec.Config, rec.Events)
	if err != nil {
		return nil, err
	}

	hub := newHub(gameId, engine, hm.gs, hm.r, hm)
	hm.hubs[gameId] = hub
	go hub.run()
	return hub, nil
}

func (hm *HubManager) RemoveHub(gameId string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	delete(hm.hubs, gameId)
}

func (hm *HubManager) Clear() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.hubs = make(map[string]*Hub)
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message

	gameId string
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypeJoin:
			c.hub.requests <- HubRequest{Type: ReqTypeWSJoin, Client: c}
		case MsgTypeAction:
			if err := ValidateActionRequest(msg.Action); err != nil {
				c.sendJSON(Message{Type: MsgTypeError, GameId: c.gameId, Error: err.Error()})
				continue
			}
			a, err := DecodeAction(msg.Action)
			if err != nil {
				c.sendJSON(Message{Type: MsgTypeError, GameId: c.gameId, Error: err.Error()})
				continue
			}
			c.hub.requests <- HubRequest{Type: ReqTypeAction, Client: c, Action: a}
		case MsgTypeUndo:
			c.hub.requests <- HubRequest{Type: ReqTypeUndo, Client: c}
		case "PING":
			c.sendJSON(Message{Type: "PONG"})
		default:
			log.Printf("Unknown message type: %s", msg.Type)
			c.sendJSON(Message{Type: MsgTypeError, Error: "Unknown message type"})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) sendJSON(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// ServeWS handles websocket requests from the peer.
func ServeWS(hm *HubManager, w http.ResponseWriter, req *http.Request) {
	gameId := req.URL.Query().Get("gameId")
	if gameId == "" || !isValidUUID(gameId) {
		http.Error(w, "Invalid gameId", http.StatusBadRequest)
		return
	}

	hub, err := hm.GetHub(gameId)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "Game not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Game not available", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &wsClient{hub: hub, conn: conn, send: make(chan Message, 256), gameId: gameId}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
