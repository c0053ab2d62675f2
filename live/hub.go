// Package live keeps a count of open dashboard sockets and pushes it to every
// connected client.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"sitepulse/api/database"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisKeyActive    = "sitepulse:live:active"
	redisKeyMaxOnline = "sitepulse:live:max_online"
	redisChanCounter  = "sitepulse:live:counter"

	redisTimeout = 2 * time.Second
	sendBuffer   = 8
)

// CounterMessage is pushed to every socket when the count changes.
type CounterMessage struct {
	ActiveConnections int64 `json:"activeConnections"`
}

type relayMessage struct {
	Instance          string `json:"instance"`
	ActiveConnections int64  `json:"activeConnections"`
}

// hubEvent is a register or unregister request. Both travel on one channel
// so a socket's unregister is never handled before its register.
type hubEvent struct {
	client   *client
	register bool
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	events chan hubEvent
	relay  chan int64
	done   chan struct{}

	rc       *database.RedisClient
	instance string
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewHub builds a hub. rc may be nil, in which case the count is local to
// this process.
func NewHub(rc *database.RedisClient, log *zap.Logger) *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		events:   make(chan hubEvent, 128),
		relay:    make(chan int64, 64),
		done:     make(chan struct{}),
		rc:       rc,
		instance: uuid.NewString(),
		log:      log.With(zap.String("component", "live")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rc != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case ev := <-h.events:
			if ev.register {
				h.add(ev.client)
			} else {
				h.remove(ev.client)
			}

		case n := <-h.relay:
			h.deliver(n)
		}
	}
}

// Count returns the number of sockets held by this process.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the socket registered until the
// peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.events <- hubEvent{client: c, register: true}:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump()

	select {
	case h.events <- hubEvent{client: c}:
	case <-h.done:
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.changed(1)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.changed(-1)
	}
}

func (h *Hub) changed(delta int64) {
	n := h.adjust(delta)
	h.deliver(n)
	if h.rc == nil {
		return
	}
	h.publish(n)
	if delta > 0 {
		h.updateDailyMax(n)
	}
}

// adjust applies delta to the shared counter, or reads the local count when
// Redis is not configured or fails.
func (h *Hub) adjust(delta int64) int64 {
	local := int64(h.Count())
	if h.rc == nil {
		return local
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	n, err := h.rc.Raw().IncrBy(ctx, redisKeyActive, delta).Result()
	if err != nil {
		h.log.Warn("live counter update failed", zap.Error(err))
		return local
	}
	if n < 0 {
		n = 0
	}
	return n
}

func (h *Hub) deliver(n int64) {
	data, err := json.Marshal(CounterMessage{ActiveConnections: n})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow reader; the next update carries the latest count.
		}
	}
}

func (h *Hub) publish(n int64) {
	data, err := json.Marshal(relayMessage{Instance: h.instance, ActiveConnections: n})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := h.rc.Publish(ctx, redisChanCounter, string(data)); err != nil {
		h.log.Warn("live counter publish failed", zap.Error(err))
	}
}

// subscribeRedis relays counts published by other instances.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChanCounter)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil || m.Instance == h.instance {
				continue
			}
			select {
			case h.relay <- m.ActiveConnections:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) updateDailyMax(n int64) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	day := dailyKey(h.now())
	var current int64
	raw, err := h.rc.Raw().HGet(ctx, redisKeyMaxOnline, day).Result()
	switch {
	case err == nil:
		current, _ = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case errors.Is(err, redis.Nil):
	default:
		h.log.Warn("live max online read failed", zap.Error(err))
		return
	}
	if n > current {
		if err := h.rc.Raw().HSet(ctx, redisKeyMaxOnline, day, n).Err(); err != nil {
			h.log.Warn("live max online write failed", zap.Error(err))
		}
	}
}

// shutdown closes every socket and returns this instance's share of the
// shared counter.
func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	n := int64(len(h.clients))
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if h.rc != nil && n > 0 {
		h.adjust(-n)
	}
	h.log.Info("live hub stopped", zap.Int64("closed", n))
}

func dailyKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
