package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/observability/metrics"
	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/predict"
)

const (
	clientBuffer = 32
	writeTimeout = 10 * time.Second
)

// forwardedKinds are the bus events relayed verbatim to live subscribers.
var forwardedKinds = []eventbus.Kind{
	ops.KindQueueUpdate,
	ops.KindWaitPrediction,
	ops.KindShockEvent,
	ops.KindShockResolved,
	ops.KindAlert,
	ops.KindFairnessViolation,
	ops.KindAuditEvent,
	ops.KindSustainability,
	ops.KindSystemStatus,
	ops.KindStateChanged,
}

// Frame is the wire envelope sent to websocket subscribers.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	id     uuid.UUID
	conn   *websocket.Conn
	send   chan Frame
	done   chan struct{}
	tokens []eventbus.Token
	once   sync.Once
}

// Hub upgrades live subscribers onto the event bus. Each client gets a
// bounded send queue; when it fills, new frames for that client are dropped
// so one slow consumer never stalls the publishers.
type Hub struct {
	bus       *eventbus.Bus
	engine    *ops.Engine
	predictor *predict.Predictor
	logger    *log.Logger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*client
}

// NewHub constructs a Hub.
func NewHub(bus *eventbus.Bus, engine *ops.Engine, predictor *predict.Predictor, logger *log.Logger) (*Hub, error) {
	if bus == nil || engine == nil || predictor == nil {
		return nil, errors.New("gateway: missing dependencies")
	}
	return &Hub{
		bus:       bus,
		engine:    engine,
		predictor: predictor,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*client),
	}, nil
}

// ServeHTTP handles GET /ws: upgrade, snapshot burst, then live fan-out
// until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("gateway: upgrade error: %v", err)
		}
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan Frame, clientBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	metrics.ClientConnected()

	h.sendSnapshots(c)
	h.subscribeClient(c)

	go h.writePump(c)
	go h.readPump(c)
}

// sendSnapshots queues the connect-time burst so a new subscriber is never
// in an undefined initial state.
func (h *Hub) sendSnapshots(c *client) {
	status := h.engine.SystemStatus()
	queue := h.engine.QueueUpdate()
	snap := h.engine.Snapshot()
	pred := h.predictor.PredictWait(snap.QueueCount, snap.ActiveShock != nil)
	best := h.predictor.BestTimeToArrive(snap.QueueCount)

	h.push(c, Frame{Event: string(ops.KindSystemStatus), Data: status})
	h.push(c, Frame{Event: string(ops.KindQueueUpdate), Data: queue})
	h.push(c, Frame{Event: string(ops.KindWaitPrediction), Data: ops.WaitPrediction{
		WaitMinutes: pred.WaitMinutes,
		Confidence:  pred.Confidence,
		QueueCount:  snap.QueueCount,
		BestTimeToArrive: ops.ArrivalSuggestion{
			ArriveInMinutes:      best.ArriveInMinutes,
			EstimatedSaveMinutes: best.EstimatedSaveMinutes,
			SuggestedTime:        best.SuggestedTime,
		},
		ShockActive: snap.ActiveShock != nil,
		Timestamp:   snap.At,
	}})
}

func (h *Hub) subscribeClient(c *client) {
	for _, kind := range forwardedKinds {
		frameEvent := string(kind)
		token := h.bus.Subscribe(kind, func(_ context.Context, event eventbus.Event) error {
			h.push(c, Frame{Event: frameEvent, Data: event})
			return nil
		})
		c.tokens = append(c.tokens, token)
	}
}

// push queues a frame, dropping it when the client's buffer is full or the
// client is gone.
func (h *Hub) push(c *client, frame Frame) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		metrics.ObserveFrameDropped("ws")
	}
}

func (h *Hub) writePump(c *client) {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				h.disconnect(c)
				return
			}
		}
	}
}

// readPump drains the connection; subscribers send nothing meaningful, the
// read is how peer disconnects surface.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.disconnect(c)
			return
		}
	}
}

// disconnect deregisters every handler for the client and closes the
// connection. Idempotent; a handler racing the removal just drops its frame.
func (h *Hub) disconnect(c *client) {
	c.once.Do(func() {
		for _, token := range c.tokens {
			h.bus.Unsubscribe(token)
		}
		close(c.done)
		_ = c.conn.Close()
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		metrics.ClientDisconnected()
	})
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
