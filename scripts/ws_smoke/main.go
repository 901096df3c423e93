// Command ws_smoke exercises a running server end to end: it registers
// (or logs in) a user over REST, opens the WebSocket feed, announces,
// and optionally sends a message, printing every event it receives.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/arotu/chat-server/internal/proto"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	user := flag.String("user", "smoketester", "username to register or log in as")
	password := flag.String("password", "smoketest123", "password for the user")
	receiver := flag.String("receiver", "", "user id to send a private message to")
	room := flag.String("room", "", "room id to join and send to")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, userID, err := authenticate(ctx, *addr, *user, *password)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	log.Printf("authenticated as %s (%s)", *user, userID)

	wsURL := "ws" + (*addr)[len("http"):] + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(msgType string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Fatalf("marshal %s: %v", msgType, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
			log.Fatalf("send %s: %v", msgType, err)
		}
	}

	mustSend(proto.InboundTypeAnnounce, struct{}{})

	switch {
	case *room != "":
		mustSend(proto.InboundTypeJoinRoom, proto.RoomData{Room: *room})
		mustSend(proto.InboundTypeSendRoom, proto.SendRoomData{Room: *room, Text: *text})
	case *receiver != "":
		mustSend(proto.InboundTypeSendPrivate, proto.SendPrivateData{Receiver: *receiver, Text: *text})
	}

	for {
		var envelope map[string]any
		if err := wsjson.Read(ctx, conn, &envelope); err != nil {
			log.Printf("read: %v", err)
			return
		}
		pretty, _ := json.Marshal(envelope)
		log.Printf("<- %s", pretty)
	}
}

// authenticate registers the user, falling back to login when the
// username is taken.
func authenticate(ctx context.Context, addr, user, password string) (token, userID string, err error) {
	body, _ := json.Marshal(map[string]string{"username": user, "password": password})

	token, userID, err = authRequest(ctx, addr+"/api/auth/register", body)
	if err == nil {
		return token, userID, nil
	}
	return authRequest(ctx, addr+"/api/auth/login", body)
}

func authRequest(ctx context.Context, url string, body []byte) (token, userID string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}

	var auth struct {
		UserID string `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", "", err
	}
	return auth.Token, auth.UserID, nil
}
