package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/internal/consts"
)

// Sink receives decoded stream events, one at a time and in arrival
// order. Implementations must not assume a strict global order across
// clients; mutation events only signal that a refetch is due.
type Sink interface {
	// Connected marks a (re)established stream.
	Connected()
	// PresenceSnapshot replaces the complete viewer list.
	PresenceSnapshot(users []domain.PresenceUser)
	// ChatInvalidated signals that the chat transcript must be refetched.
	ChatInvalidated()
	// CardMoved reports a remote move before the generic refresh fires.
	CardMoved(move domain.CardMovedData)
	// BoardChanged signals that the board snapshot must be refetched.
	// cardID names the affected card when the event carried one, so a
	// detail view showing that card can invalidate its activity log.
	BoardChanged(cardID string)
	// Disconnected is called when the consumer stops for good (context
	// cancelled); presence must be cleared so no ghost viewers linger.
	Disconnected()
}

// Consumer maintains one long-lived SSE connection for an open board,
// reconnecting after a fixed delay on any non-deliberate failure.
type Consumer struct {
	boardID        string
	url            string
	token          func() string
	http           *http.Client
	sink           Sink
	logger         *log.Logger
	reconnectDelay time.Duration
}

// Config assembles a Consumer.
type Config struct {
	BoardID string
	// URL is the full events endpoint, e.g. base+"/boards/b1/events".
	URL string
	// Token supplies the bearer token per connection attempt; nil sends none.
	Token func() string
	// HTTPClient defaults to http.DefaultClient. It must not set a
	// request timeout, the stream body stays open indefinitely.
	HTTPClient *http.Client
	Sink       Sink
	Logger     *log.Logger
	// ReconnectDelay defaults to the fixed 5s backoff.
	ReconnectDelay time.Duration
}

// NewConsumer creates a consumer; Run starts it.
func NewConsumer(cfg Config) *Consumer {
	c := &Consumer{
		boardID:        cfg.BoardID,
		url:            cfg.URL,
		token:          cfg.Token,
		http:           cfg.HTTPClient,
		sink:           cfg.Sink,
		logger:         cfg.Logger,
		reconnectDelay: cfg.ReconnectDelay,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = log.StandardLogger()
	}
	if c.reconnectDelay <= 0 {
		c.reconnectDelay = consts.ReconnectDelay
	}
	return c
}

// Run connects and dispatches events until ctx is cancelled. Stream
// failures are silent to the caller: the consumer waits the fixed delay
// and reconnects. On cancellation the in-flight request is aborted and
// the sink's presence state is cleared before returning.
func (c *Consumer) Run(ctx context.Context) {
	defer c.sink.Disconnected()
	var dec FrameDecoder
	for {
		if err := c.stream(ctx, &dec); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithFields(log.Fields{
				"board": c.boardID,
				"error": err.Error(),
			}).Warn("event stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
		dec.Reset()
	}
}

func (c *Consumer) stream(ctx context.Context, dec *FrameDecoder) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("stream status " + resp.Status)
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				c.dispatch(frame)
			}
		}
		if err != nil {
			return err
		}
	}
}

// dispatch applies one frame. Malformed frames are dropped; they must
// never take the stream down.
func (c *Consumer) dispatch(frame []byte) {
	ev, err := domain.DecodeEvent(frame)
	if err != nil {
		c.logger.WithFields(log.Fields{
			"board": c.boardID,
			"error": err.Error(),
		}).Debug("dropping malformed event frame")
		return
	}
	if ev.BoardID != "" && ev.BoardID != c.boardID {
		return
	}

	switch ev.Type {
	case domain.EventConnected:
		c.sink.Connected()
	case domain.EventPresenceUpdate:
		d, err := ev.Presence()
		if err != nil {
			return
		}
		c.sink.PresenceSnapshot(d.Users)
	case domain.EventChatMessage:
		c.sink.ChatInvalidated()
	case domain.EventCardMoved:
		d, err := ev.CardMoved()
		if err != nil {
			return
		}
		c.sink.CardMoved(d)
		c.sink.BoardChanged(d.CardID)
	case domain.EventCardCreated, domain.EventCardUpdated, domain.EventCardDeleted,
		domain.EventColumnCreated, domain.EventColumnUpdated, domain.EventColumnDeleted,
		domain.EventColumnsOrdered, domain.EventCommentAdded:
		c.sink.BoardChanged(ev.CardID())
	default:
		// Unknown variant from a newer server: ignore.
	}
}
