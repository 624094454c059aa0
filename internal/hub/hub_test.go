package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/config"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

func testShare(token, ownerID string) *domain.Share {
	return &domain.Share{
		ID:            "share-" + token,
		OwnerID:       ownerID,
		OwnerUsername: "owner",
		ShareToken:    token,
		Title:         "My progress",
		ShareType:     domain.ShareTypePublic,
		IsActive:      true,
	}
}

// newTestClient builds a client without a real socket; messages pile
// up in its Send buffer for inspection.
func newTestClient(h *Hub, id string) *Client {
	return NewClient(id, h, nil, domain.Identity{}, testConfig())
}

func TestHub_RoomLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		run       func(t *testing.T, h *Hub)
		wantRooms int
	}{
		{
			name: "repeated joins observe one room",
			run: func(t *testing.T, h *Hub) {
				count, _ := h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "v1"), false)
				require.Equal(t, 1, count)
				count, _ = h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "v2"), false)
				require.Equal(t, 2, count)
			},
			wantRooms: 1,
		},
		{
			name: "room disposed when last viewer leaves and no owner",
			run: func(t *testing.T, h *Hub) {
				v := newTestClient(h, "v1")
				count, _ := h.JoinRoom(testShare("abc", "u1"), v, false)
				require.Equal(t, 1, count)

				count, removed := h.RemoveViewer("abc", v)
				require.True(t, removed)
				require.Equal(t, 0, count)
			},
			wantRooms: 0,
		},
		{
			name: "connected owner keeps room alive without viewers",
			run: func(t *testing.T, h *Hub) {
				o := newTestClient(h, "o1")
				v := newTestClient(h, "v1")
				h.JoinRoom(testShare("abc", "u1"), o, true)
				h.JoinRoom(testShare("abc", "u1"), v, false)
				h.RemoveViewer("abc", v)
			},
			wantRooms: 1,
		},
		{
			name: "room disposed when owner leaves last",
			run: func(t *testing.T, h *Hub) {
				o := newTestClient(h, "o1")
				h.JoinRoom(testShare("abc", "u1"), o, true)
				_, cleared := h.ClearOwnerConn("abc", o)
				require.True(t, cleared)
			},
			wantRooms: 0,
		},
		{
			name: "join after disposal re-creates the room",
			run: func(t *testing.T, h *Hub) {
				v := newTestClient(h, "v1")
				h.JoinRoom(testShare("abc", "u1"), v, false)
				h.RemoveViewer("abc", v)

				count, snap := h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "v2"), false)
				require.Equal(t, 1, count)
				require.False(t, snap.OwnerConnected)
			},
			wantRooms: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(testConfig())
			tt.run(t, h)
			assert.Len(t, h.Stats(), tt.wantRooms)
		})
	}
}

func TestHub_RemoveViewerIdempotent(t *testing.T) {
	h := NewHub(testConfig())
	h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "o1"), true)

	v := newTestClient(h, "v1")
	h.JoinRoom(testShare("abc", "u1"), v, false)

	count, removed := h.RemoveViewer("abc", v)
	require.True(t, removed)
	require.Equal(t, 0, count)

	count, removed = h.RemoveViewer("abc", v)
	assert.False(t, removed)
	assert.Equal(t, 0, count)
}

func TestHub_ClearOwnerConnGuard(t *testing.T) {
	h := NewHub(testConfig())

	old := newTestClient(h, "o-old")
	fresh := newTestClient(h, "o-new")
	h.JoinRoom(testShare("abc", "u1"), old, true)
	h.JoinRoom(testShare("abc", "u1"), fresh, true)

	// The stale socket's disconnect must not detach the new one.
	_, cleared := h.ClearOwnerConn("abc", old)
	assert.False(t, cleared)

	snap, ok := h.Snapshot("abc")
	require.True(t, ok)
	assert.True(t, snap.OwnerConnected)
}

func TestHub_UnregisterLeavesOtherRoomsAlone(t *testing.T) {
	h := NewHub(testConfig())
	go h.Run()

	owner := newTestClient(h, "o1")
	h.Register(owner)
	h.JoinRoom(testShare("abc", "u1"), owner, true)

	// A bystander's disconnect must not touch rooms it never joined.
	other := newTestClient(h, "other")
	h.Register(other)
	h.Unregister(other)

	require.Eventually(t, func() bool {
		other.sendMu.Lock()
		defer other.sendMu.Unlock()
		return other.closed
	}, time.Second, 5*time.Millisecond)

	_, ok := h.Snapshot("abc")
	require.True(t, ok, "room must survive an unrelated disconnect")

	count, _ := h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "v1"), false)
	assert.Equal(t, 1, count)
}

func TestHub_BroadcastFiltering(t *testing.T) {
	tests := []struct {
		name    string
		exclude func(owner, v1, v2 *Client) string
		want    func(owner, v1, v2 *Client) map[*Client]int
	}{
		{
			name:    "exclude sender delivers to everyone else",
			exclude: func(owner, v1, v2 *Client) string { return owner.ID },
			want: func(owner, v1, v2 *Client) map[*Client]int {
				return map[*Client]int{owner: 0, v1: 1, v2: 1}
			},
		},
		{
			name:    "no exclusion delivers to all participants",
			exclude: func(owner, v1, v2 *Client) string { return "" },
			want: func(owner, v1, v2 *Client) map[*Client]int {
				return map[*Client]int{owner: 1, v1: 1, v2: 1}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(testConfig())
			go h.Run()

			owner := newTestClient(h, "o1")
			v1 := newTestClient(h, "v1")
			v2 := newTestClient(h, "v2")
			h.JoinRoom(testShare("abc", "u1"), owner, true)
			h.JoinRoom(testShare("abc", "u1"), v1, false)
			h.JoinRoom(testShare("abc", "u1"), v2, false)

			require.NoError(t, h.Broadcast("abc", map[string]string{"type": "test"}, tt.exclude(owner, v1, v2)))

			want := tt.want(owner, v1, v2)
			require.Eventually(t, func() bool {
				for c, n := range want {
					if n > 0 && len(c.Send) != n {
						return false
					}
				}
				return true
			}, time.Second, 5*time.Millisecond)

			for c, n := range want {
				assert.Len(t, c.Send, n, "client %s", c.ID)
			}
		})
	}
}

func TestHub_BroadcastAudienceFixedAtSend(t *testing.T) {
	h := NewHub(testConfig())
	go h.Run()

	owner := newTestClient(h, "o1")
	h.JoinRoom(testShare("abc", "u1"), owner, true)

	// Sent while the owner is alone in the room.
	require.NoError(t, h.Broadcast("abc", map[string]string{"seq": "1"}, owner.ID))

	// A viewer joining afterwards must not receive it.
	v := newTestClient(h, "v1")
	h.JoinRoom(testShare("abc", "u1"), v, false)
	require.NoError(t, h.Broadcast("abc", map[string]string{"seq": "2"}, owner.ID))

	require.Eventually(t, func() bool { return len(v.Send) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"seq":"2"}`, string(<-v.Send))
	assert.Empty(t, owner.Send)
}

func TestHub_BroadcastUnknownRoom(t *testing.T) {
	h := NewHub(testConfig())
	go h.Run()

	// Delivery to a room that no longer exists is a no-op.
	require.NoError(t, h.Broadcast("gone", map[string]string{"type": "test"}, ""))
}

func TestHub_SendAfterUnregisterDoesNotPanic(t *testing.T) {
	h := NewHub(testConfig())
	go h.Run()

	c := newTestClient(h, "c1")
	h.Register(c)
	h.Unregister(c)

	require.Eventually(t, func() bool {
		c.sendMu.Lock()
		defer c.sendMu.Unlock()
		return c.closed
	}, time.Second, 5*time.Millisecond)

	// A late write from a still-running read loop must drop, not panic.
	require.NotPanics(t, func() {
		require.NoError(t, c.SendMessage(map[string]string{"type": "test"}))
	})
}

func TestHub_SlowConsumerDropped(t *testing.T) {
	h := NewHub(testConfig())
	go h.Run()

	owner := newTestClient(h, "o1")
	slow := newTestClient(h, "v1")
	h.Register(owner)
	h.Register(slow)
	h.JoinRoom(testShare("abc", "u1"), owner, true)
	h.JoinRoom(testShare("abc", "u1"), slow, false)

	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- []byte("backlog")
	}
	require.NoError(t, h.Broadcast("abc", map[string]string{"type": "test"}, owner.ID))

	require.Eventually(t, func() bool {
		slow.sendMu.Lock()
		defer slow.sendMu.Unlock()
		return slow.closed
	}, time.Second, 5*time.Millisecond)

	require.NotPanics(t, func() {
		require.NoError(t, slow.SendMessage(map[string]string{"type": "late"}))
	})
}

func TestHub_NextEventTimeMonotonic(t *testing.T) {
	h := NewHub(testConfig())
	h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "v1"), false)

	prev := h.NextEventTime("abc")
	for i := 0; i < 100; i++ {
		next := h.NextEventTime("abc")
		require.True(t, next.After(prev), "timestamps must be strictly increasing")
		prev = next
	}
}

func TestHub_Stats(t *testing.T) {
	h := NewHub(testConfig())
	h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "v1"), false)
	h.JoinRoom(testShare("abc", "u1"), newTestClient(h, "v2"), false)
	h.JoinRoom(testShare("xyz", "u2"), newTestClient(h, "o2"), true)

	stats := h.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats["abc"].ViewerCount)
	assert.Equal(t, 0, stats["xyz"].ViewerCount)
	assert.False(t, stats["abc"].LastActivity.IsZero())
}
