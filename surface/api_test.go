package surface

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSnapshot struct {
	patterns []PatternView
	pointers []PointerView
}

func (s staticSnapshot) Patterns() []PatternView { return s.patterns }
func (s staticSnapshot) Pointers() []PointerView { return s.pointers }

func TestRouterElements(t *testing.T) {
	snapshot := staticSnapshot{
		patterns: []PatternView{{Key: "1_-1", SessionID: 1, UserID: -1, Symbol: SymbolView{UUID: "card"}}},
		pointers: []PointerView{{Key: "2_-1_-1", SessionID: 2, X: 0.5}},
	}
	server := httptest.NewServer(NewRouter(snapshot, nil, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/patterns")
	require.NoError(t, err)
	var patterns []PatternView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&patterns))
	resp.Body.Close()
	assert.Equal(t, snapshot.patterns, patterns)

	resp, err = http.Get(server.URL + "/api/pointers/2_-1_-1")
	require.NoError(t, err)
	var pointer PointerView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pointer))
	resp.Body.Close()
	assert.Equal(t, 0.5, pointer.X)

	resp, err = http.Get(server.URL + "/api/patterns/7_7")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(server.URL+"/api/patterns", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouterStream(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	server := httptest.NewServer(NewRouter(staticSnapshot{}, hub, nil))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(Event{Kind: "pattern", Action: ActionEvict, Key: "3_1"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, Event{Kind: "pattern", Action: ActionEvict, Key: "3_1"}, event)
}
