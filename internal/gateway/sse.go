package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/observability/metrics"
	"messhall-cloud/internal/ops"
)

// AlertBroker fans out alert-grade events to SSE clients.
type AlertBroker struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewAlertBroker constructs a broker and wires it to the bus.
func NewAlertBroker(bus *eventbus.Bus) *AlertBroker {
	b := &AlertBroker{clients: make(map[chan []byte]struct{})}
	for _, kind := range []eventbus.Kind{ops.KindAlert, ops.KindShockEvent, ops.KindShockResolved} {
		kind := kind
		bus.Subscribe(kind, func(_ context.Context, event eventbus.Event) error {
			b.notify(string(kind), event)
			return nil
		})
	}
	return b
}

func (b *AlertBroker) notify(event string, data any) {
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return
	}
	b.mu.Lock()
	clients := make([]chan []byte, 0, len(b.clients))
	for ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()
	for _, ch := range clients {
		select {
		case ch <- payload:
		default:
			metrics.ObserveFrameDropped("sse")
		}
	}
}

// Subscribe registers a new client channel.
func (b *AlertBroker) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client channel. The channel is left open so a
// notify racing the removal cannot send on a closed channel.
func (b *AlertBroker) Unsubscribe(ch chan []byte) {
	if ch == nil {
		return
	}
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

// AlertStreamHandler serves the SSE alert stream.
type AlertStreamHandler struct {
	broker *AlertBroker
}

// NewAlertStreamHandler constructs a stream handler.
func NewAlertStreamHandler(broker *AlertBroker) *AlertStreamHandler {
	return &AlertStreamHandler{broker: broker}
}

// ServeHTTP handles GET /api/v1/alerts/stream.
func (h *AlertStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: alert\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
