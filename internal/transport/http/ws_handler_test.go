package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/arotu/chat-server/internal/proto"
)

type wsEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T) (*httptest.Server, *gin.Engine) {
	t.Helper()

	st := createTestStore(t)
	t.Cleanup(func() { st.Close() })
	_, router := newTestRouter(t, st)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return ts, router
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendWS(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil reads frames until one matches the wanted event name,
// skipping unrelated traffic like online-users broadcasts.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) wsEnvelope {
	t.Helper()

	for {
		var envelope wsEnvelope
		if err := wsjson.Read(ctx, conn, &envelope); err != nil {
			t.Fatalf("read waiting for %s: %v", event, err)
		}
		if envelope.Type == proto.OutboundTypeError && event != proto.OutboundTypeError {
			t.Fatalf("unexpected error event while waiting for %s: %+v", event, envelope.Error)
		}
		if envelope.Event == event || envelope.Type == event {
			return envelope
		}
	}
}

func TestWSRequiresToken(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("upgrade without token returned %d, want 401", resp.StatusCode)
	}
}

func TestWSPrivateMessageDelivery(t *testing.T) {
	ts, router := startTestServer(t)

	alice := registerUser(t, router, "alice")
	bob := registerUser(t, router, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	aliceConn := dialWS(t, ctx, ts, alice.Token)
	bobConn := dialWS(t, ctx, ts, bob.Token)

	sendWS(t, ctx, aliceConn, proto.InboundTypeAnnounce, struct{}{})
	sendWS(t, ctx, bobConn, proto.InboundTypeAnnounce, struct{}{})

	// wait until bob is online before sending, otherwise the message
	// is persisted but the live copy is dropped
	for {
		envelope := readUntil(t, ctx, bobConn, proto.EventOnlineUsers)
		var users proto.EventOnlineUsersData
		if err := json.Unmarshal(envelope.Data, &users); err != nil {
			t.Fatalf("unmarshal online users: %v", err)
		}
		if len(users.Users) == 2 {
			break
		}
	}

	sendWS(t, ctx, aliceConn, proto.InboundTypeSendPrivate, proto.SendPrivateData{
		Receiver: bob.UserID,
		Text:     "hi bob",
	})

	envelope := readUntil(t, ctx, bobConn, proto.EventReceivePrivate)
	var msg proto.EventMessage
	if err := json.Unmarshal(envelope.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Sender.ID != alice.UserID || msg.Text != "hi bob" {
		t.Fatalf("unexpected message payload: %+v", msg)
	}

	// the sender's own topic receives the same message id
	envelope = readUntil(t, ctx, aliceConn, proto.EventReceivePrivate)
	var echo proto.EventMessage
	if err := json.Unmarshal(envelope.Data, &echo); err != nil {
		t.Fatalf("unmarshal sender copy: %v", err)
	}
	if echo.ID != msg.ID {
		t.Fatalf("sender copy id %q != receiver copy id %q", echo.ID, msg.ID)
	}
}

func TestWSRoomMessageDelivery(t *testing.T) {
	ts, router := startTestServer(t)

	alice := registerUser(t, router, "alice")
	bob := registerUser(t, router, "bob")

	resp := doRequest(t, router, http.MethodPost, "/api/rooms", alice.Token, `{"name":"general"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create room returned %d: %s", resp.Code, resp.Body.String())
	}
	var room RoomResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &room); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	aliceConn := dialWS(t, ctx, ts, alice.Token)
	bobConn := dialWS(t, ctx, ts, bob.Token)

	sendWS(t, ctx, aliceConn, proto.InboundTypeAnnounce, struct{}{})
	sendWS(t, ctx, bobConn, proto.InboundTypeAnnounce, struct{}{})
	sendWS(t, ctx, bobConn, proto.InboundTypeJoinRoom, proto.RoomData{Room: room.ID})

	// bob's own room message coming back proves the join was processed
	sendWS(t, ctx, bobConn, proto.InboundTypeSendRoom, proto.SendRoomData{Room: room.ID, Text: "ping"})
	readUntil(t, ctx, bobConn, proto.EventReceiveRoom)

	// a REST write reaches the room's live subscribers too
	restResp := doRequest(t, router, http.MethodPost, "/api/rooms/"+room.ID+"/messages", alice.Token, `{"text":"from rest"}`)
	if restResp.Code != http.StatusCreated {
		t.Fatalf("create room message returned %d: %s", restResp.Code, restResp.Body.String())
	}

	envelope := readUntil(t, ctx, bobConn, proto.EventReceiveRoom)
	var msg proto.EventMessage
	if err := json.Unmarshal(envelope.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Room != room.ID || msg.Text != "from rest" {
		t.Fatalf("unexpected room message: %+v", msg)
	}
}

func TestWSJoinPrivateRoomRejected(t *testing.T) {
	ts, router := startTestServer(t)

	alice := registerUser(t, router, "alice")
	bob := registerUser(t, router, "bob")

	resp := doRequest(t, router, http.MethodPost, "/api/rooms", alice.Token, `{"name":"secret","isPrivate":true}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create room returned %d: %s", resp.Code, resp.Body.String())
	}
	var room RoomResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &room); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bobConn := dialWS(t, ctx, ts, bob.Token)
	sendWS(t, ctx, bobConn, proto.InboundTypeAnnounce, struct{}{})
	sendWS(t, ctx, bobConn, proto.InboundTypeJoinRoom, proto.RoomData{Room: room.ID})

	for {
		var envelope wsEnvelope
		if err := wsjson.Read(ctx, bobConn, &envelope); err != nil {
			t.Fatalf("read: %v", err)
		}
		if envelope.Type != proto.OutboundTypeError {
			continue
		}
		if envelope.Error == nil || envelope.Error.Code != "forbidden" {
			t.Fatalf("unexpected error payload: %+v", envelope.Error)
		}
		return
	}
}
