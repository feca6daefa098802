package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GitBakko/Notiq-sub001/domain"
)

func TestFetchBoardSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization header = %q", got)
		}
		if r.URL.Path != "/boards/b1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(domain.Board{ID: "b1", Title: "Sprint"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil, StaticToken("tok-1"))
	board, err := c.FetchBoard(context.Background(), "b1")
	if err != nil {
		t.Fatalf("fetch board: %v", err)
	}
	if board.ID != "b1" || board.Title != "Sprint" {
		t.Fatalf("unexpected board: %+v", board)
	}
}

func TestMoveCardBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/cards/c1/move" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var body struct {
			ToColumnID string `json:"toColumnId"`
			Position   int    `json:"position"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.ToColumnID != "colB" || body.Position != 2 {
			t.Errorf("unexpected body: %+v", body)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, nil)
	if err := c.MoveCard(context.Background(), "c1", "colB", 2); err != nil {
		t.Fatalf("move card: %v", err)
	}
}

func TestReorderColumnsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/columns/reorder" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Columns []struct {
				ID       string `json:"id"`
				Position int    `json:"position"`
			} `json:"columns"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		want := []string{"colY", "colZ", "colX"}
		if len(body.Columns) != len(want) {
			t.Fatalf("columns = %+v", body.Columns)
		}
		for i, col := range body.Columns {
			if col.ID != want[i] || col.Position != i {
				t.Errorf("column %d = %+v, want %s/%d", i, col, want[i], i)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, nil, nil)
	if err := c.ReorderColumns(context.Background(), []string{"colY", "colZ", "colX"}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"conflict", http.StatusConflict, `{"error":"conflict"}`, func(err error) bool { return errors.Is(err, ErrConflict) }},
		{"forbidden", http.StatusForbidden, `{"error":"forbidden"}`, func(err error) bool { return errors.Is(err, ErrForbidden) }},
		{"not found", http.StatusNotFound, ``, func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{"column not empty", http.StatusUnprocessableEntity, `{"error":"column not empty","columnId":"colA"}`, func(err error) bool {
			var cerr *ColumnNotEmptyError
			return errors.As(err, &cerr) && cerr.ColumnID == "colA"
		}},
		{"server error", http.StatusInternalServerError, `boom`, func(err error) bool {
			var serr *StatusError
			return errors.As(err, &serr) && serr.Status == http.StatusInternalServerError
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(srv.URL, nil, nil)
			err := c.MoveCard(context.Background(), "c1", "colB", 0)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
