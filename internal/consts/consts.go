package consts

import "time"

const (
	// ReconnectDelay is the fixed wait between event stream reconnect attempts.
	ReconnectDelay = 5 * time.Second
	// HighlightTTL is how long a remotely moved card stays highlighted.
	HighlightTTL = 2 * time.Second
	// KeepaliveInterval is how often the simulator emits SSE comment frames.
	KeepaliveInterval = 30 * time.Second

	// BoardEventsChannelPrefix is the redis pub/sub channel prefix for board events.
	BoardEventsChannelPrefix = "board-events:"
	// BoardCacheKeyPrefix is the redis key prefix for cached board snapshots.
	BoardCacheKeyPrefix = "board:"
)
