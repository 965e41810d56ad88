package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicebridge/internal/domain"
	"voicebridge/internal/metrics"
	"voicebridge/internal/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The control plane carries no credentials; origin policy is left to the
	// deployment in front of us.
	CheckOrigin: func(*http.Request) bool { return true },
}

// AudioSink receives presenter audio frames read off the realtime channel.
type AudioSink func(code string, frame []byte)

// Hub tracks realtime connections per session and fans events out to them.
// It implements ports.Broadcaster.
type Hub struct {
	store      ports.SessionStore
	registry   ports.ListenerRegistry
	metrics    *metrics.Metrics
	log        *slog.Logger
	emitLegacy bool

	audioMu   sync.RWMutex
	audioSink AudioSink

	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

func NewHub(store ports.SessionStore, registry ports.ListenerRegistry, m *metrics.Metrics, log *slog.Logger, emitLegacy bool) *Hub {
	return &Hub{
		store:      store,
		registry:   registry,
		metrics:    m,
		log:        log,
		emitLegacy: emitLegacy,
		rooms:      make(map[string]map[string]*Client),
	}
}

// SetAudioSink binds the presenter audio path after construction; the
// controller and the hub reference each other.
func (h *Hub) SetAudioSink(sink AudioSink) {
	h.audioMu.Lock()
	defer h.audioMu.Unlock()
	h.audioSink = sink
}

// ServeWS upgrades the connection and runs its pumps. The connection id
// comes from the query when the client already holds one (it must match the
// id used for avatar signaling), otherwise a fresh one is issued.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("connectionId"))
	if id == "" {
		id = uuid.NewString()
	}
	client := newClient(id, conn)
	h.log.Debug("realtime connection opened", "connection", id)

	go client.writePump()
	go h.readPump(client)
}

func (h *Hub) readPump(client *Client) {
	defer h.unregister(client)

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("realtime read error", "connection", client.ID, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case inboundSubscribe:
			h.subscribe(client, msg)
		case inboundAudioFrame:
			h.pushAudio(client, msg)
		}
	}
}

func (h *Hub) subscribe(client *Client, msg inbound) {
	// A dropped client's read pump may deliver one more in-flight message;
	// it must not re-enter the rooms.
	if client.closed() {
		return
	}

	code := strings.TrimSpace(msg.SessionCode)
	role := msg.Role
	if role != RolePresenter {
		role = RoleListener
	}

	if _, err := h.store.Get(context.Background(), code); err != nil {
		h.notify(client, domain.EventError, domain.ErrorNotice{Message: "session not found: " + code})
		return
	}

	prevCode, prevRole := client.session()
	// A client may claim its signaling connection id, but only before it has
	// joined a room under the issued one.
	if id := strings.TrimSpace(msg.ConnectionID); id != "" && prevCode == "" {
		client.ID = id
	}
	if prevCode != "" && prevCode != code {
		h.leaveRoom(prevCode, client, prevRole)
	}

	h.mu.Lock()
	room, ok := h.rooms[code]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[code] = room
	}
	room[client.ID] = client
	h.mu.Unlock()
	client.setSession(code, role)

	if role == RolePresenter {
		if err := h.store.SetPresenter(context.Background(), code, client.ID); err != nil {
			h.log.Warn("failed to record presenter", "session", code, "error", err)
		}
	} else {
		count := h.registry.Add(code, client.ID)
		h.metrics.ListenersJoined.Inc()
		h.Publish(code, domain.EventListenerCountUpdated, domain.ListenerCount{Count: count})
	}

	_ = h.store.Touch(context.Background(), code)
	h.log.Info("subscribed", "session", code, "connection", client.ID, "role", role)
}

func (h *Hub) pushAudio(client *Client, msg inbound) {
	code, role := client.session()
	if code == "" || role != RolePresenter {
		return
	}

	frame, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil || len(frame) == 0 {
		return
	}

	h.audioMu.RLock()
	sink := h.audioSink
	h.audioMu.RUnlock()
	if sink != nil {
		sink(code, frame)
	}
}

// Publish delivers one event to the presenter and every listener connection
// of the session. Fire-and-forget: a slow client is dropped, the rest are
// unaffected.
func (h *Hub) Publish(code string, kind domain.EventKind, payload any) {
	messages := encodeEvent(kind, payload, h.emitLegacy)
	if len(messages) == 0 {
		return
	}
	h.metrics.EventsPublished.WithLabelValues(string(kind)).Inc()

	var stale []*Client
	h.mu.RLock()
	for _, client := range h.rooms[code] {
		for _, message := range messages {
			if !client.enqueue(message) {
				stale = append(stale, client)
				break
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.metrics.EventsDropped.Inc()
		h.log.Warn("dropping slow realtime client", "session", code, "connection", client.ID)
		h.disconnect(client)
	}
}

// DropSession closes the session's room. Callers publish their final event
// (sessionEnded) before dropping.
func (h *Hub) DropSession(code string) {
	h.mu.Lock()
	room := h.rooms[code]
	delete(h.rooms, code)
	h.mu.Unlock()

	for _, client := range room {
		client.setSession("", "")
		client.close()
	}
}

func (h *Hub) notify(client *Client, kind domain.EventKind, payload any) {
	for _, message := range encodeEvent(kind, payload, false) {
		client.enqueue(message)
	}
}

func (h *Hub) unregister(client *Client) {
	code, role := client.session()
	if code != "" {
		h.leaveRoom(code, client, role)
	}
	client.close()
	h.log.Debug("realtime connection closed", "connection", client.ID)
}

// disconnect force-closes a client that is still registered in a room.
func (h *Hub) disconnect(client *Client) {
	code, role := client.session()
	if code != "" {
		h.leaveRoom(code, client, role)
	}
	client.close()
}

func (h *Hub) leaveRoom(code string, client *Client, role string) {
	h.mu.Lock()
	if room, ok := h.rooms[code]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, code)
		}
	}
	h.mu.Unlock()

	if role == RoleListener {
		if memberCode, ok := h.registry.SessionOf(client.ID); ok && memberCode == code {
			count := h.registry.Remove(code, client.ID)
			h.metrics.ListenersLeft.Inc()
			h.Publish(code, domain.EventListenerCountUpdated, domain.ListenerCount{Count: count})
		}
	}
}
