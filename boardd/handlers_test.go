package boardd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/realtime"
)

const testSecret = "handlers-secret"

func seedBoard() *domain.Board {
	return &domain.Board{
		ID:      "b1",
		Title:   "Launch",
		OwnerID: "alice",
		Columns: []domain.Column{
			{ID: "colA", BoardID: "b1", Title: "Todo", Cards: []domain.Card{
				{ID: "c1", ColumnID: "colA", Title: "first"},
				{ID: "c2", ColumnID: "colA", Title: "second"},
			}},
			{ID: "colB", BoardID: "b1", Title: "Done"},
		},
	}
}

func newTestEnv(t *testing.T) (*httptest.Server, *MemStore, *Broker) {
	t.Helper()
	store := NewMemStore()
	store.PutBoard(seedBoard())
	broker := NewBroker()
	logger, _ := logtest.NewNullLogger()
	e := echo.New()
	Register(e, store, NewTestAuth(testSecret), NewBridge(broker, nil, logger), broker, logger)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, store, broker
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := SignTestToken(testSecret, userID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + tok
}

func doJSON(t *testing.T, method, url, auth string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGetBoardRequiresAuth(t *testing.T) {
	srv, _, _ := newTestEnv(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/boards/b1", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestGetBoardRoundTrip(t *testing.T) {
	srv, _, _ := newTestEnv(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/boards/b1", bearer(t, "alice"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var board domain.Board
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&board); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if board.ID != "b1" || len(board.Columns) != 2 {
		t.Fatalf("unexpected board %+v", board)
	}
	if board.Columns[0].Cards[1].Position != 1 {
		t.Fatalf("positions not normalized: %+v", board.Columns[0].Cards)
	}
}

func TestMoveCardBroadcastsToOthers(t *testing.T) {
	srv, store, broker := newTestEnv(t)
	sub := broker.Subscribe("b1", domain.PresenceUser{ID: "bob", Name: "Bob"})
	defer broker.Unsubscribe("b1", sub)
	drainPresence(t, sub)

	resp := doJSON(t, http.MethodPut, srv.URL+"/cards/c1/move", bearer(t, "alice"),
		map[string]any{"toColumnId": "colB", "position": 0})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	ev := nextEvent(t, sub)
	if ev.Type != domain.EventCardMoved {
		t.Fatalf("expected card:moved, got %q", ev.Type)
	}
	moved, err := ev.CardMoved()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if moved.CardID != "c1" || moved.ToColumnID != "colB" || moved.Position != 0 {
		t.Fatalf("unexpected payload %+v", moved)
	}

	board, err := store.GetBoard("b1")
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if col := board.FindColumn("colB"); len(col.Cards) != 1 || col.Cards[0].ID != "c1" {
		t.Fatalf("move not applied: %+v", col.Cards)
	}
}

func TestMoveCardDoesNotEchoToOriginator(t *testing.T) {
	srv, _, broker := newTestEnv(t)
	sub := broker.Subscribe("b1", domain.PresenceUser{ID: "alice", Name: "Alice"})
	defer broker.Unsubscribe("b1", sub)
	drainPresence(t, sub)

	resp := doJSON(t, http.MethodPut, srv.URL+"/cards/c1/move", bearer(t, "alice"),
		map[string]any{"toColumnId": "colB", "position": 0})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	select {
	case data := <-sub.ch:
		t.Fatalf("originator received its own event: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeleteColumnRefusesNonEmpty(t *testing.T) {
	srv, _, _ := newTestEnv(t)
	resp := doJSON(t, http.MethodDelete, srv.URL+"/columns/colA", bearer(t, "alice"), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["columnId"] != "colA" {
		t.Fatalf("expected columnId in body, got %v", body)
	}
}

func TestCardLifecycle(t *testing.T) {
	srv, store, _ := newTestEnv(t)
	auth := bearer(t, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/columns/colB/cards?boardId=b1", auth,
		map[string]string{"title": "new card", "description": "details"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var card domain.Card
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if card.ID == "" || card.ColumnID != "colB" || card.Position != 0 {
		t.Fatalf("unexpected card %+v", card)
	}

	resp = doJSON(t, http.MethodPatch, srv.URL+"/cards/"+card.ID, auth,
		map[string]string{"title": "renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/cards/"+card.ID+"/comments", auth,
		map[string]string{"body": "looks good"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment: expected 201, got %d", resp.StatusCode)
	}

	board, err := store.GetBoard("b1")
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	stored, _ := board.FindCard(card.ID)
	if stored.Title != "renamed" || stored.CommentCount != 1 {
		t.Fatalf("updates not applied: %+v", stored)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/cards/"+card.ID, auth, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	board, _ = store.GetBoard("b1")
	if c, _ := board.FindCard(card.ID); c != nil {
		t.Fatal("card still present after delete")
	}
}

func TestChatTranscript(t *testing.T) {
	srv, _, _ := newTestEnv(t)
	auth := bearer(t, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/boards/b1/chat", auth,
		map[string]string{"body": "shipping today"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post chat: expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/boards/b1/chat", auth, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get chat: expected 200, got %d", resp.StatusCode)
	}
	var msgs []domain.ChatMessage
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "shipping today" || msgs[0].AuthorID != "alice" {
		t.Fatalf("unexpected transcript %+v", msgs)
	}
}

func TestStreamEventsDeliversFrames(t *testing.T) {
	srv, _, _ := newTestEnv(t)
	tok, err := SignTestToken(testSecret, "alice")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/boards/b1/events?token="+tok+"&name=Alice", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan domain.Event, 16)
	go func() {
		var dec realtime.FrameDecoder
		buf := make([]byte, 512)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				for _, frame := range dec.Feed(buf[:n]) {
					if ev, err := domain.DecodeEvent(frame); err == nil {
						events <- ev
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()

	waitEvent := func(want string) domain.Event {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev.Type == want {
					return ev
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitEvent(domain.EventConnected)
	pres := waitEvent(domain.EventPresenceUpdate)
	snapshot, err := pres.Presence()
	if err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if len(snapshot.Users) != 1 || snapshot.Users[0].Name != "Alice" {
		t.Fatalf("unexpected presence %+v", snapshot.Users)
	}

	// A second user moves a card; the stream must carry it.
	resp2 := doJSON(t, http.MethodPut, srv.URL+"/cards/c2/move", bearer(t, "bob"),
		map[string]any{"toColumnId": "colB", "position": 0})
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("move: expected 204, got %d", resp2.StatusCode)
	}
	moved := waitEvent(domain.EventCardMoved)
	payload, err := moved.CardMoved()
	if err != nil {
		t.Fatalf("decode move: %v", err)
	}
	if payload.CardID != "c2" || payload.ToColumnID != "colB" {
		t.Fatalf("unexpected move payload %+v", payload)
	}
}

func drainPresence(t *testing.T, sub *subscriber) {
	t.Helper()
	select {
	case <-sub.ch:
	case <-time.After(time.Second):
		t.Fatal("no presence snapshot after subscribe")
	}
}

func nextEvent(t *testing.T, sub *subscriber) domain.Event {
	t.Helper()
	select {
	case data := <-sub.ch:
		ev, err := domain.DecodeEvent(data)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return domain.Event{}
	}
}
