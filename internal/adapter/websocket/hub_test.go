package websocket_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wsadapter "github.com/couchcryptid/sounding-graphs/internal/adapter/websocket"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

func fixture(site string) pipeline.Result {
	now := time.Date(2017, 9, 2, 12, 0, 0, 0, time.UTC)
	ens := timeseries.EnsembleSeries[sounding.AnalyzedData]{
		Meta: domain.MetaData{Site: domain.Site{ID: site}, Model: "gfs", Now: now},
		Runs: []timeseries.Run[timeseries.TimeSeries[sounding.AnalyzedData]]{
			{InitTime: now, Data: timeseries.TimeSeries[sounding.AnalyzedData]{Data: []sounding.AnalyzedData{
				{Valid: now, HDW: 42, T0: 20, DT0: 1, E0: 100, DE: 10},
			}}},
		},
	}
	return pipeline.Result{Ensemble: ens, Merged: timeseries.Merge(ens)}
}

func startHub(t *testing.T, opts ...wsadapter.Option) (*wsadapter.Hub, string) {
	t.Helper()
	hub := wsadapter.NewHub(slog.Default(), opts...)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsadapter.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env wsadapter.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_BroadcastsDeliveries(t *testing.T) {
	hub, url := startHub(t)
	first, second := dial(t, url), dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Deliver(context.Background(), fixture("kmso")))

	for _, conn := range []*websocket.Conn{first, second} {
		env := readEnvelope(t, conn)
		assert.Equal(t, "series", env.Type)
		assert.NotEmpty(t, env.ID)
		assert.Equal(t, "kmso", env.Payload.Site)
		require.Len(t, env.Payload.Points, 1)
	}
}

func TestHub_ReplaysLatestOnConnect(t *testing.T) {
	hub, url := startHub(t)

	for _, site := range []string{"kmso", "kgpi", "kmso"} {
		require.NoError(t, hub.Deliver(context.Background(), fixture(site)))
	}

	conn := dial(t, url)
	// One document per series, ordered by key.
	assert.Equal(t, "kgpi", readEnvelope(t, conn).Payload.Site)
	assert.Equal(t, "kmso", readEnvelope(t, conn).Payload.Site)
}

func TestHub_RemovesDisconnectedClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, hub.Deliver(context.Background(), fixture("kmso")))
}

func TestHub_KeepsIdleClientsAlive(t *testing.T) {
	const timeout = 500 * time.Millisecond
	hub, url := startHub(t, wsadapter.WithReadTimeout(timeout))
	conn := dial(t, url)

	var pings atomic.Int32
	conn.SetPingHandler(func(appData string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	// Control frames are only handled while the client reads.
	msgs := make(chan []byte, 1)
	go func() {
		defer close(msgs)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- data
		}
	}()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	// The client sends nothing for several read timeouts.
	time.Sleep(3 * timeout)
	assert.Equal(t, 1, hub.Clients())
	assert.GreaterOrEqual(t, pings.Load(), int32(2))

	require.NoError(t, hub.Deliver(context.Background(), fixture("kmso")))
	select {
	case data, ok := <-msgs:
		require.True(t, ok, "connection closed while idle")
		var env wsadapter.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, "kmso", env.Payload.Site)
	case <-time.After(2 * time.Second):
		t.Fatal("no document after idling")
	}
}

func TestHub_DropsClientsThatStopReading(t *testing.T) {
	const timeout = 150 * time.Millisecond
	hub, url := startHub(t, wsadapter.WithReadTimeout(timeout))
	_ = dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	// Without a reader on the client side no pong is ever sent.
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 20*time.Millisecond)
}
