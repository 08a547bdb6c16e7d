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
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, f *serverFixture, gameId string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws?gameId=" + gameId
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestWebSocketJoinAndAction(t *testing.T) {
	f := newTestServer(t)
	cfg, _, _ := wireGameConfig()
	resp := f.post(t, "/api/game/start", cfg)
	drain(resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: status = %d", resp.StatusCode)
	}

	// 1. Two clients join and each gets a snapshot.
	c1 := dialWS(t, f, cfg.GameID)
	c2 := dialWS(t, f, cfg.GameID)
	for i, c := range []*websocket.Conn{c1, c2} {
		if err := c.WriteJSON(Message{Type: MsgTypeJoin}); err != nil {
			t.Fatalf("client %d join: %v", i+1, err)
		}
		snap := readMessage(t, c)
		if snap.Type != MsgTypeSnapshot {
			t.Fatalf("client %d got %s, want %s", i+1, snap.Type, MsgTypeSnapshot)
		}
		if snap.State == nil || snap.State.Inning != 1 {
			t.Fatalf("client %d snapshot state = %+v", i+1, snap.State)
		}
		if len(snap.Events) != 0 {
			t.Fatalf("client %d snapshot has %d events, want 0", i+1, len(snap.Events))
		}
	}

	// 2. One client scores; both see the event broadcast.
	if err := c1.WriteJSON(actionMessage(t, cfg.GameID, ActionHit, `{"kind":"triple"}`)); err != nil {
		t.Fatalf("write action: %v", err)
	}
	for i, c := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, c)
		if msg.Type != MsgTypeEvent {
			t.Fatalf("client %d got %s, want %s", i+1, msg.Type, MsgTypeEvent)
		}
		if msg.Event == nil || msg.Event.EventType != EventTriple {
			t.Errorf("client %d event = %+v, want a triple", i+1, msg.Event)
		}
		if msg.State == nil || msg.State.Away.Hits != 1 {
			t.Errorf("client %d state = %+v, want 1 away hit", i+1, msg.State)
		}
	}

	// 3. Undo broadcasts a fresh snapshot to everyone.
	if err := c2.WriteJSON(Message{Type: MsgTypeUndo}); err != nil {
		t.Fatalf("write undo: %v", err)
	}
	for i, c := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, c)
		if msg.Type != MsgTypeSnapshot {
			t.Fatalf("client %d got %s, want %s", i+1, msg.Type, MsgTypeSnapshot)
		}
		if msg.State == nil || msg.State.Away.Hits != 0 {
			t.Errorf("client %d state after undo = %+v", i+1, msg.State)
		}
		if len(msg.Events) != 0 {
			t.Errorf("client %d has %d events after undo, want 0", i+1, len(msg.Events))
		}
	}
}

func TestWebSocketInvalidAction(t *testing.T) {
	f := newTestServer(t)
	cfg, _, _ := wireGameConfig()
	resp := f.post(t, "/api/game/start", cfg)
	drain(resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: status = %d", resp.StatusCode)
	}

	c := dialWS(t, f, cfg.GameID)

	// 1. A malformed action comes back as an error, not a broadcast.
	if err := c.WriteJSON(actionMessage(t, cfg.GameID, ActionHit, `{"kind":"bunt"}`)); err != nil {
		t.Fatalf("write action: %v", err)
	}
	msg := readMessage(t, c)
	if msg.Type != MsgTypeError || msg.Error == "" {
		t.Errorf("got %+v, want an error message", msg)
	}

	// 2. Unknown message types are reported.
	if err := c.WriteJSON(Message{Type: "DANCE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = readMessage(t, c)
	if msg.Type != MsgTypeError {
		t.Errorf("got %s, want %s", msg.Type, MsgTypeError)
	}

	// 3. PING keeps working afterwards.
	if err := c.WriteJSON(Message{Type: "PING"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg = readMessage(t, c); msg.Type != "PONG" {
		t.Errorf("got %s, want PONG", msg.Type)
	}
}

func TestWebSocketRejectsUnknownGame(t *testing.T) {
	f := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws?gameId=" + uuid.NewString()
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial to unknown game succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("handshake response = %+v, want 404", resp)
	}

	wsURL = "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws?gameId=not-a-uuid"
	_, resp, err = websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial with bad gameId succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("handshake response = %+v, want 400", resp)
	}
}

func roundTrip(t *testing.T, hub *Hub, req HubRequest) HubResponse {
	t.Helper()
	reply := make(chan HubResponse, 1)
	req.Reply = reply
	hub.requests <- req
	select {
	case resp := <-reply:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not reply")
		return HubResponse{}
	}
}

func TestHubManagerResume(t *testing.T) {
	gs, ts := newTestStores(t)
	r := NewRegistry(gs, ts)
	defer r.StopGC()
	hm := NewHubManager(gs, r)
	defer hm.Clear()

	cfg, _, _ := wireGameConfig()
	hub, err := hm.StartHub(cfg)
	if err != nil {
		t.Fatalf("StartHub: %v", err)
	}

	// 1. Starting the same game twice is rejected.
	if _, err := hm.StartHub(cfg); err == nil {
		t.Error("second StartHub succeeded")
	}

	// 2. Score through the hub.
	resp := roundTrip(t, hub, HubRequest{Type: ReqTypeAction, Action: HitAction{Kind: EventDouble}})
	if resp.Error != nil {
		t.Fatalf("action: %v", resp.Error)
	}
	if resp.State.Away.Hits != 1 {
		t.Errorf("away hits = %d, want 1", resp.State.Away.Hits)
	}

	// 3. Drop the hub, as the idle collector would. GetHub rebuilds it
	// from the stored record with the log intact.
	hm.RemoveHub(cfg.GameID)
	resumed, err := hm.GetHub(cfg.GameID)
	if err != nil {
		t.Fatalf("GetHub after removal: %v", err)
	}
	snap := roundTrip(t, resumed, HubRequest{Type: ReqTypeSnapshot})
	if snap.State.Away.Hits != 1 || len(snap.Events) != 1 {
		t.Errorf("resumed state = %+v with %d events, want 1 hit and 1 event",
			snap.State, len(snap.Events))
	}

	// 4. Completed games do not resume as live hubs.
	if resp := roundTrip(t, resumed, HubRequest{Type: ReqTypeComplete}); resp.Error != nil {
		t.Fatalf("complete: %v", resp.Error)
	}
	hm.RemoveHub(cfg.GameID)
	if _, err := hm.GetHub(cfg.GameID); err == nil {
		t.Error("GetHub on a completed game succeeded")
	}
}
