package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyline/apps/server/internal/codec"
	"partyline/apps/server/internal/fanout"
	"partyline/apps/server/internal/lobby"
	"partyline/apps/server/internal/room"
	"partyline/game"
)

func newTestServer(t *testing.T) (*httptest.Server, *lobby.Lobby, *fanout.Router) {
	t.Helper()
	router := fanout.New()
	lby := lobby.New(lobby.Config{IdleTimeout: time.Hour, IdleBuffer: time.Hour, SweepInterval: time.Hour}, room.Deps{
		Games:        game.NewRegistry(),
		Send:         router.Send,
		TickInterval: time.Hour,
	}, nil)
	t.Cleanup(lby.Close)

	mux := http.NewServeMux()
	NewHandler(lby, router, 4).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, lby, router
}

type frame struct {
	event string
	env   codec.Envelope
}

func readFrames(body *bufio.Reader, out chan<- frame) {
	var event string
	for {
		line, err := body.ReadString('\n')
		if err != nil {
			close(out)
			return
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var env codec.Envelope
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err == nil {
				out <- frame{event: event, env: env}
			}
		}
	}
}

func TestStreamDeliversRoomEnvelopes(t *testing.T) {
	srv, lby, router := newTestServer(t)
	_, err := lby.JoinPlayer("ABCD", "p1", "Alice")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse/abcd", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan frame, 16)
	go readFrames(bufio.NewReader(resp.Body), frames)

	first := <-frames
	assert.Equal(t, codec.TypeState, first.event)
	assert.Equal(t, "ABCD", first.env.Room)

	_, err = lby.JoinPlayer("ABCD", "p2", "Bob")
	require.NoError(t, err)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.event == codec.TypePlayerJoined {
				cancel()
				require.Eventually(t, func() bool { return router.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
				return
			}
		case <-deadline:
			t.Fatal("no player_joined frame")
		}
	}
}

func TestStreamRejectsUnknownOrInvalidRoom(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/sse/ZZZZ")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sse/bad!")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
