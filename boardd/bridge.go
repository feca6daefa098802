package boardd

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/internal/consts"
)

// envelope carries an event across instances together with its
// originator, so the receiving instance can keep the no-self-echo rule.
type envelope struct {
	OriginUserID string       `json:"originUserId,omitempty"`
	Event        domain.Event `json:"event"`
}

// Bridge publishes board events through redis pub/sub so several server
// instances share one stream. With a nil redis client events go straight
// to the local broker.
type Bridge struct {
	broker *Broker
	redis  *redis.Client
	logger *log.Logger
}

// NewBridge creates a bridge in front of broker. client may be nil.
func NewBridge(broker *Broker, client *redis.Client, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Bridge{broker: broker, redis: client, logger: logger}
}

// Publish routes one event to all subscribers, through redis when
// configured. Publish failures fall back to the local broker so a single
// instance setup keeps working with redis down.
func (b *Bridge) Publish(boardID, originUserID string, ev domain.Event) {
	if b.redis == nil {
		b.broker.Publish(boardID, originUserID, ev)
		return
	}
	data, err := sonic.ConfigStd.Marshal(envelope{OriginUserID: originUserID, Event: ev})
	if err != nil {
		return
	}
	if err := b.redis.Publish(context.Background(), eventsChannel(boardID), data).Err(); err != nil {
		b.logger.Errorf("publish event: %v", err)
		b.broker.Publish(boardID, originUserID, ev)
	}
}

// SubscribeUpdates listens for events published by any instance and
// rebroadcasts them to local SSE subscribers. It resubscribes after a
// second when the pub/sub channel closes.
func (b *Bridge) SubscribeUpdates(ctx context.Context) {
	if b.redis == nil {
		return
	}
	for {
		sub := b.redis.PSubscribe(ctx, eventsChannel("*"))
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var env envelope
				if err := sonic.ConfigStd.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.logger.Errorf("unable to parse event envelope: %v", err)
					continue
				}
				b.broker.Publish(env.Event.BoardID, env.OriginUserID, env.Event)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("pubsub channel closed, resubscribing")
		time.Sleep(time.Second)
	}
}

func eventsChannel(boardID string) string {
	return consts.BoardEventsChannelPrefix + boardID
}
