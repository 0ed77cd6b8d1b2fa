package broadcast

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/example/pmv-rental/internal/ids"
)

// DefaultChannel is the pub/sub channel station firmware publishes on.
const DefaultChannel = "station-broadcasts"

// RedisSignal relays station announcements published on a Redis channel to a
// receiver. Where Signal simulates one station's beacon, RedisSignal lets
// the whole station fleet announce through shared infrastructure.
type RedisSignal struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisSignal(addr, password, channel string, logger *slog.Logger) *RedisSignal {
	if channel == "" {
		channel = DefaultChannel
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisSignal{client: c, channel: channel, logger: logger}
}

// Run subscribes and forwards every well-formed station id until ctx is
// cancelled. Malformed payloads are logged and dropped, matching the
// best-effort nature of the channel.
func (r *RedisSignal) Run(ctx context.Context, recv Receiver) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			st, err := ids.ParseStationID(msg.Payload)
			if err != nil {
				if r.logger != nil {
					r.logger.Warn("dropping malformed station broadcast", "payload", msg.Payload)
				}
				continue
			}
			if err := recv.ReceiveStationBroadcast(st); err != nil && r.logger != nil {
				r.logger.Warn("station broadcast not delivered", "station", st.String(), "error", err)
			}
		}
	}
}

func (r *RedisSignal) Close() error { return r.client.Close() }
