package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hua914255/media/pkg/continuation"
	"github.com/Hua914255/media/pkg/story"
)

func dialStory(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	return dialPath(t, ts, "/api/ws/story/"+id)
}

func dialPath(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one message as either a turn or an error.
func readMessage(t *testing.T, conn *websocket.Conn) (story.Turn, string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var e wsError
	if json.Unmarshal(data, &e); e.Error != "" {
		return story.Turn{}, e.Error
	}
	var turn story.Turn
	if err := json.Unmarshal(data, &turn); err != nil {
		t.Fatalf("decode turn %s: %v", data, err)
	}
	return turn, ""
}

func TestWS_StreamsTurns(t *testing.T) {
	src := newTextSource("门开了。风吹进来。灯灭了。")
	ts, stories := newTestServer(t, src)
	id := createStory(t, ts)
	conn := dialStory(t, ts, id)

	if err := conn.WriteJSON(wsRequest{UserText: "小明推开门。", Rounds: 2}); err != nil {
		t.Fatal(err)
	}
	want := []story.Turn{
		{StoryID: id, Turn: 1, Author: story.AuthorHuman, Text: "小明推开门。"},
		{StoryID: id, Turn: 2, Author: story.AuthorAI, Text: "门开了。"},
		{StoryID: id, Turn: 3, Author: story.AuthorAI, Text: "风吹进来。"},
	}
	for i, w := range want {
		got, errMsg := readMessage(t, conn)
		if errMsg != "" {
			t.Fatalf("message %d: error %q", i, errMsg)
		}
		if got != w {
			t.Errorf("message %d = %+v, want %+v", i, got, w)
		}
	}

	// The socket serves further requests.
	if err := conn.WriteJSON(wsRequest{UserText: "他回头。", Rounds: 1}); err != nil {
		t.Fatal(err)
	}
	human, _ := readMessage(t, conn)
	ai, _ := readMessage(t, conn)
	if human.Turn != 4 || ai.Turn != 5 || ai.Author != story.AuthorAI {
		t.Errorf("second request turns = %+v, %+v", human, ai)
	}
	if got := src.LastUser(); !strings.HasPrefix(got, "他回头。") {
		t.Errorf("last user message = %q", got)
	}

	turns, err := stories.Turns(context.Background(), id)
	if err != nil || len(turns) != 5 {
		t.Errorf("stored turns = %d, %v; want 5", len(turns), err)
	}
}

func TestWS_Routes(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	id := createStory(t, ts)
	for _, path := range []string{
		"/api/ws/story/" + id,
		"/ws/story/" + id,
		"/api/ws/ws/story/" + id,
	} {
		t.Run(path, func(t *testing.T) {
			conn := dialPath(t, ts, path)
			if err := conn.WriteJSON(wsRequest{UserText: "雨停了。", Mode: continuation.ModeHumanOnly}); err != nil {
				t.Fatal(err)
			}
			got, errMsg := readMessage(t, conn)
			if errMsg != "" || got.Author != story.AuthorHuman || got.Text != "雨停了。" {
				t.Errorf("first message = %+v, %q", got, errMsg)
			}
		})
	}
}

func TestWS_InvalidRequest(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	id := createStory(t, ts)
	conn := dialStory(t, ts, id)

	conn.WriteMessage(websocket.TextMessage, []byte("{"))
	if _, errMsg := readMessage(t, conn); !strings.Contains(errMsg, "invalid message") {
		t.Errorf("error = %q, want invalid message", errMsg)
	}

	conn.WriteJSON(wsRequest{UserText: "  "})
	if _, errMsg := readMessage(t, conn); errMsg != "user_text is required" {
		t.Errorf("error = %q", errMsg)
	}

	conn.WriteJSON(wsRequest{UserText: "x", Rounds: 20})
	if _, errMsg := readMessage(t, conn); !strings.Contains(errMsg, "rounds") {
		t.Errorf("error = %q", errMsg)
	}

	// The connection survives bad requests.
	conn.WriteJSON(wsRequest{UserText: "开始。"})
	if turn, errMsg := readMessage(t, conn); errMsg != "" || turn.Author != story.AuthorHuman {
		t.Errorf("after errors got %+v, %q", turn, errMsg)
	}
}

func TestWS_UnknownStory(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/story/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() error = nil, want handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("handshake response = %v, want 404", resp)
	}
	resp.Body.Close()
}

func TestWS_DisconnectCancelsRun(t *testing.T) {
	src := newTextSource("门开了。风吹进来。灯灭了。")
	src.hang = true
	ts, stories := newTestServer(t, src)
	id := createStory(t, ts)
	conn := dialStory(t, ts, id)

	conn.WriteJSON(wsRequest{UserText: "小明推开门。", Rounds: 3, Mode: "ai_only"})
	readMessage(t, conn)
	if ai, _ := readMessage(t, conn); ai.Text != "门开了。" {
		t.Fatalf("first AI turn = %+v", ai)
	}
	conn.Close()

	select {
	case <-src.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream stream was not closed after disconnect")
	}
	turns, err := stories.Turns(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Errorf("stored turns = %d, want 2 (no fallback after cancel)", len(turns))
	}
}
