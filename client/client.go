// Package client talks to the board REST API: the external collaborator
// that owns persistence, activity logging, and the realtime broadcast.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GitBakko/Notiq-sub001/domain"
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource func() string

// StaticToken returns a TokenSource for a fixed token.
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

// Client is a thin REST client for the board API.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

// New creates a client for the API at baseURL. A nil httpClient uses
// http.DefaultClient; a nil token sends unauthenticated requests.
func New(baseURL string, httpClient *http.Client, token TokenSource) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		token:   token,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the current bearer token, or "".
func (c *Client) Token() string {
	if c.token == nil {
		return ""
	}
	return c.token()
}

// FetchBoard retrieves the authoritative board snapshot.
func (c *Client) FetchBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	var board domain.Board
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID, nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

type moveCardRequest struct {
	ToColumnID string `json:"toColumnId"`
	Position   int    `json:"position"`
}

// MoveCard issues the authoritative card move. The server returns no
// body; callers refetch the snapshot afterwards.
func (c *Client) MoveCard(ctx context.Context, cardID, toColumnID string, position int) error {
	body := moveCardRequest{ToColumnID: toColumnID, Position: position}
	return c.do(ctx, http.MethodPut, "/cards/"+cardID+"/move", body, nil)
}

type columnPosition struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

type reorderColumnsRequest struct {
	Columns []columnPosition `json:"columns"`
}

// ReorderColumns issues the authoritative column order: positions are the
// indexes of orderedColumnIDs.
func (c *Client) ReorderColumns(ctx context.Context, orderedColumnIDs []string) error {
	req := reorderColumnsRequest{Columns: make([]columnPosition, len(orderedColumnIDs))}
	for i, id := range orderedColumnIDs {
		req.Columns[i] = columnPosition{ID: id, Position: i}
	}
	return c.do(ctx, http.MethodPatch, "/columns/reorder", req, nil)
}

// FetchChat retrieves the board's chat transcript.
func (c *Client) FetchChat(ctx context.Context, boardID string) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID+"/chat", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp)
	}
	if out != nil {
		dec := sonic.ConfigStd.NewDecoder(resp.Body)
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type apiErrorBody struct {
	Error    string `json:"error"`
	ColumnID string `json:"columnId,omitempty"`
}

func errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body apiErrorBody
	_ = sonic.ConfigStd.Unmarshal(raw, &body)

	switch resp.StatusCode {
	case http.StatusConflict:
		return ErrConflict
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnprocessableEntity:
		if body.ColumnID != "" {
			return &ColumnNotEmptyError{ColumnID: body.ColumnID}
		}
	}
	return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
