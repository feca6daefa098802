package boardd

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/internal/consts"
)

const requestBodyMaxSize = 1 << 20

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Server bundles the simulator's handlers.
type Server struct {
	store  *MemStore
	auth   Authenticator
	broker *Broker
	bridge *Bridge
	logger *log.Logger
}

// Register wires up all board API routes on the provided Echo instance.
func Register(e *echo.Echo, store *MemStore, auth Authenticator, bridge *Bridge, broker *Broker, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{store: store, auth: auth, broker: broker, bridge: bridge, logger: logger}

	e.GET("/boards/:id", s.getBoard)
	e.GET("/boards/:id/events", s.streamEvents)
	e.GET("/boards/:id/chat", s.getChat)
	e.POST("/boards/:id/chat", s.postChat)
	e.POST("/boards", s.postBoard)
	e.POST("/boards/:id/columns", s.postColumn)
	e.PATCH("/columns/reorder", s.reorderColumns)
	e.PATCH("/columns/:id", s.patchColumn)
	e.DELETE("/columns/:id", s.deleteColumn)
	e.POST("/columns/:id/cards", s.postCard)
	e.PUT("/cards/:id/move", s.moveCard)
	e.PATCH("/cards/:id", s.patchCard)
	e.DELETE("/cards/:id", s.deleteCard)
	e.POST("/cards/:id/comments", s.postComment)
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	return s
}

func (s *Server) userID(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			authHeader = "Bearer " + token
		}
	}
	return s.auth.UserIDFromAuthHeader(authHeader)
}

func (s *Server) decode(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func (s *Server) fail(c echo.Context, err error) error {
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFound.Error()})
	}
	var notEmpty *NotEmptyError
	if errors.As(err, &notEmpty) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error":    notEmpty.Error(),
			"columnId": notEmpty.ColumnID,
		})
	}
	s.logger.Errorf("board api: %v", err)
	return c.String(http.StatusInternalServerError, err.Error())
}

// publish builds and routes one event frame.
func (s *Server) publish(boardID, originUserID, eventType string, payload any) {
	data, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return
	}
	s.bridge.Publish(boardID, originUserID, domain.Event{
		Type:    eventType,
		BoardID: boardID,
		Data:    sonic.NoCopyRawMessage(data),
	})
}

func (s *Server) getBoard(c echo.Context) error {
	if _, err := s.userID(c); err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	board, err := s.store.GetBoard(c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, board)
}

func (s *Server) postBoard(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var board domain.Board
	if err := s.decode(c, &board); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	board.OwnerID = userID
	boardID := s.store.PutBoard(&board)
	stored, err := s.store.GetBoard(boardID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, stored)
}

type moveCardRequest struct {
	ToColumnID string `json:"toColumnId"`
	Position   int    `json:"position"`
}

func (s *Server) moveCard(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req moveCardRequest
	if err := s.decode(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	cardID := c.Param("id")
	boardID, err := s.store.MoveCard(cardID, req.ToColumnID, req.Position)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventCardMoved, domain.CardMovedData{
		CardID:     cardID,
		ToColumnID: req.ToColumnID,
		Position:   req.Position,
	})
	return c.NoContent(http.StatusNoContent)
}

type reorderColumnsRequest struct {
	Columns []struct {
		ID       string `json:"id"`
		Position int    `json:"position"`
	} `json:"columns"`
}

func (s *Server) reorderColumns(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req reorderColumnsRequest
	if err := s.decode(c, &req); err != nil || len(req.Columns) == 0 {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	sort.SliceStable(req.Columns, func(i, j int) bool {
		return req.Columns[i].Position < req.Columns[j].Position
	})
	ids := make([]string, len(req.Columns))
	for i, col := range req.Columns {
		ids[i] = col.ID
	}
	boardID, err := s.store.ReorderColumns(ids)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventColumnsOrdered, map[string][]string{"order": ids})
	return c.NoContent(http.StatusNoContent)
}

type columnRequest struct {
	Title string `json:"title"`
}

func (s *Server) postColumn(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req columnRequest
	if err := s.decode(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	col, err := s.store.CreateColumn(c.Param("id"), req.Title)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(col.BoardID, userID, domain.EventColumnCreated, domain.ColumnData{Column: col})
	return c.JSON(http.StatusCreated, col)
}

func (s *Server) patchColumn(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req columnRequest
	if err := s.decode(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	col, boardID, err := s.store.RenameColumn(c.Param("id"), req.Title)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventColumnUpdated, domain.ColumnData{Column: col})
	return c.JSON(http.StatusOK, col)
}

func (s *Server) deleteColumn(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	col, boardID, err := s.store.DeleteColumn(c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventColumnDeleted, domain.ColumnData{Column: col})
	return c.NoContent(http.StatusNoContent)
}

type cardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) postCard(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req cardRequest
	if err := s.decode(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	columnID := c.Param("id")
	boardID := c.QueryParam("boardId")
	card, err := s.store.CreateCard(boardID, columnID, req.Title, req.Description)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventCardCreated, domain.CardData{Card: card})
	return c.JSON(http.StatusCreated, card)
}

type cardPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (s *Server) patchCard(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req cardPatchRequest
	if err := s.decode(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	card, boardID, err := s.store.UpdateCard(c.Param("id"), req.Title, req.Description)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventCardUpdated, domain.CardData{Card: card})
	return c.JSON(http.StatusOK, card)
}

func (s *Server) deleteCard(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	card, boardID, err := s.store.DeleteCard(c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventCardDeleted, domain.CardData{Card: card})
	return c.NoContent(http.StatusNoContent)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) postComment(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req commentRequest
	if err := s.decode(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	comment, boardID, err := s.store.AddComment(c.Param("id"), userID, req.Body)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(boardID, userID, domain.EventCommentAdded, domain.CommentData{Comment: comment})
	return c.JSON(http.StatusCreated, comment)
}

func (s *Server) getChat(c echo.Context) error {
	if _, err := s.userID(c); err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(http.StatusOK, s.store.ChatMessages(c.Param("id")))
}

type chatRequest struct {
	Body string `json:"body"`
}

func (s *Server) postChat(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req chatRequest
	if err := s.decode(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	msg, err := s.store.AddChatMessage(c.Param("id"), userID, req.Body)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(msg.BoardID, userID, domain.EventChatMessage, domain.ChatMessageData{Message: msg})
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) streamEvents(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	boardID := c.Param("id")
	if _, err := s.store.GetBoard(boardID); err != nil {
		return s.fail(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	// Write an initial comment to ensure headers are flushed to the client.
	if _, err := c.Response().Write([]byte(":ok\n\n")); err != nil {
		return nil
	}
	flusher.Flush()

	name := c.QueryParam("name")
	if name == "" {
		name = userID
	}
	sub := s.broker.Subscribe(boardID, domain.PresenceUser{
		ID:    userID,
		Name:  name,
		Color: c.QueryParam("color"),
	})
	defer s.broker.Unsubscribe(boardID, sub)

	if err := writeFrame(c, flusher, domain.Event{Type: domain.EventConnected, BoardID: boardID}); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	ticker := time.NewTicker(consts.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case data := <-sub.ch:
			if err := writeData(c, flusher, data); err != nil {
				return nil
			}
		case <-ticker.C:
			// Send a comment as a heartbeat to keep the connection alive.
			if _, err := c.Response().Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

func writeFrame(c echo.Context, flusher http.Flusher, ev domain.Event) error {
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		return err
	}
	return writeData(c, flusher, data)
}

func writeData(c echo.Context, flusher http.Flusher, data []byte) error {
	if _, err := c.Response().Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
