package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/config"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

// room is the live state for one share token. All fields are guarded
// by the hub mutex; a room exists only while it has at least one
// viewer or a connected owner.
type room struct {
	shareToken   string
	ownerID      string
	ownerName    string
	title        string
	description  string
	ownerConn    *Client
	viewers      map[string]*Client
	lastActivity time.Time
	lastEventAt  time.Time
}

// RoomSnapshot is a read-only view of a room.
type RoomSnapshot struct {
	ShareToken     string
	Title          string
	Description    string
	OwnerID        string
	OwnerName      string
	ViewerCount    int
	OwnerConnected bool
	LastActivity   time.Time
}

// RoomStats is the presence view exposed to the reporting surface.
type RoomStats struct {
	ViewerCount  int       `json:"viewer_count"`
	LastActivity time.Time `json:"last_activity"`
}

// roomMessage carries one fan-out with its recipients already
// resolved. Resolving at enqueue time pins the audience to the room
// membership at the moment the event was accepted, so a participant
// joining afterwards never sees it.
type roomMessage struct {
	Message    []byte
	Recipients []*Client
}

// Hub owns the connection table and the room registry. Registry
// mutations go through its mutex; fan-out goes through a single
// broadcast channel consumed by Run, which keeps delivery order per
// room equal to acceptance order.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]*room
	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// NewHub creates a hub. Call Run in its own goroutine before use.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
		config:     cfg,
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	l := log.L()
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				// Safety sweep: the service removes room membership on
				// disconnect before this runs, but an abrupt close can
				// skip it. Only rooms this client belongs to are
				// touched; other rooms are left alone.
				for token, r := range h.rooms {
					_, isViewer := r.viewers[client.ID]
					if !isViewer && r.ownerConn != client {
						continue
					}
					delete(r.viewers, client.ID)
					if r.ownerConn == client {
						r.ownerConn = nil
					}
					h.disposeIfEmptyLocked(token, r)
				}
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			for _, client := range msg.Recipients {
				h.deliver(client, msg.Message)
			}
		}
	}
}

// deliver pushes a message to one client. A slow or gone client is
// dropped rather than blocking the rest of the room.
func (h *Hub) deliver(client *Client, data []byte) {
	if !client.trySend(data) {
		go h.removeClient(client)
	}
}

// Register adds a connection to the connection table.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a connection from the table and from any room.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom creates the room for a share if absent and registers the
// client in it, all under one lock acquisition. A join racing with a
// disposal therefore re-creates the room rather than failing; a room
// never exists without at least one member. Returns the viewer count
// and a post-join snapshot.
func (h *Hub) JoinRoom(share *domain.Share, client *Client, asOwner bool) (int, RoomSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[share.ShareToken]
	if !ok {
		r = &room{
			shareToken:  share.ShareToken,
			ownerID:     share.OwnerID,
			ownerName:   share.OwnerUsername,
			title:       share.Title,
			description: share.Description,
			viewers:     make(map[string]*Client),
		}
		h.rooms[share.ShareToken] = r
		l := log.L()
		l.Info().Str(log.FieldShareToken, share.ShareToken).Msg("room created")
	}
	if asOwner {
		r.ownerConn = client
	} else {
		r.viewers[client.ID] = client
	}
	r.lastActivity = time.Now()
	return len(r.viewers), snapshotLocked(r)
}

// RemoveViewer takes a connection out of the viewer set. Removing an
// absent viewer is a no-op, so duplicate disconnect signals cannot
// double-decrement. The room is disposed once it has no viewers and
// no connected owner.
func (h *Hub) RemoveViewer(shareToken string, client *Client) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[shareToken]
	if !ok {
		return 0, false
	}
	if _, present := r.viewers[client.ID]; !present {
		return len(r.viewers), false
	}
	delete(r.viewers, client.ID)
	r.lastActivity = time.Now()
	count := len(r.viewers)
	h.disposeIfEmptyLocked(shareToken, r)
	return count, true
}

// ClearOwnerConn detaches the owner's socket if it is the given one.
// The guard matters when the owner reconnects before the old socket's
// disconnect has been processed.
func (h *Hub) ClearOwnerConn(shareToken string, client *Client) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[shareToken]
	if !ok {
		return 0, false
	}
	if r.ownerConn != client {
		return len(r.viewers), false
	}
	r.ownerConn = nil
	r.lastActivity = time.Now()
	count := len(r.viewers)
	h.disposeIfEmptyLocked(shareToken, r)
	return count, true
}

func (h *Hub) disposeIfEmptyLocked(shareToken string, r *room) {
	if len(r.viewers) == 0 && r.ownerConn == nil {
		delete(h.rooms, shareToken)
		l := log.L()
		l.Info().Str(log.FieldShareToken, shareToken).Msg("room disposed")
	}
}

// Snapshot returns a read-only view of a room.
func (h *Hub) Snapshot(shareToken string) (RoomSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[shareToken]
	if !ok {
		return RoomSnapshot{}, false
	}
	return snapshotLocked(r), true
}

func snapshotLocked(r *room) RoomSnapshot {
	return RoomSnapshot{
		ShareToken:     r.shareToken,
		Title:          r.title,
		Description:    r.description,
		OwnerID:        r.ownerID,
		OwnerName:      r.ownerName,
		ViewerCount:    len(r.viewers),
		OwnerConnected: r.ownerConn != nil,
		LastActivity:   r.lastActivity,
	}
}

// Stats returns viewer counts and last activity for every live room.
func (h *Hub) Stats() map[string]RoomStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make(map[string]RoomStats, len(h.rooms))
	for token, r := range h.rooms {
		stats[token] = RoomStats{
			ViewerCount:  len(r.viewers),
			LastActivity: r.lastActivity,
		}
	}
	return stats
}

// NextEventTime assigns a server timestamp for an event in a room,
// strictly increasing per room even when events land within the same
// clock tick.
func (h *Hub) NextEventTime(shareToken string) time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	r, ok := h.rooms[shareToken]
	if !ok {
		return now
	}
	if !now.After(r.lastEventAt) {
		now = r.lastEventAt.Add(time.Microsecond)
	}
	r.lastEventAt = now
	r.lastActivity = now
	return now
}

// Broadcast queues a message for everyone in the room, skipping the
// excluded client ID if non-empty. The recipient set is fixed here,
// under the registry lock, so later joins and leaves do not change
// who receives an already accepted event. Broadcasting to a room that
// no longer exists is a no-op.
func (h *Hub) Broadcast(shareToken string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	var recipients []*Client
	if r, ok := h.rooms[shareToken]; ok {
		recipients = make([]*Client, 0, len(r.viewers)+1)
		if r.ownerConn != nil && r.ownerConn.ID != exclude {
			recipients = append(recipients, r.ownerConn)
		}
		for _, client := range r.viewers {
			if client.ID != exclude {
				recipients = append(recipients, client)
			}
		}
	}
	h.mu.RUnlock()

	if len(recipients) == 0 {
		return nil
	}
	h.broadcast <- &roomMessage{
		Message:    data,
		Recipients: recipients,
	}
	return nil
}

func (h *Hub) removeClient(client *Client) {
	h.unregister <- client
}
