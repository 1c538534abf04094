package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/store"
	"github.com/teslashibe/go-pocketbench/pkg/turn"
)

// Compile-time interface check
var _ pipeline.Publisher = (*Server)(nil)

func getJSON(t *testing.T, s *Server, method, path, body string, v interface{}) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func outcomeEvent(session uuid.UUID, n int, errPx float64) pipeline.Event {
	o := outcome.MoveOutcome{DistanceError: errPx, Verdict: outcome.VerdictOvershoot, Units: outcome.UnitsPixels}
	return pipeline.Event{Type: pipeline.EventOutcome, Session: session, Turn: n, State: turn.Finished, Outcome: &o}
}

func TestStatusTracksEvents(t *testing.T) {
	s := NewServer()
	session := uuid.New()

	s.Publish(pipeline.Event{Type: pipeline.EventTurnStarted, Session: session, Turn: 1, State: turn.Active})
	s.Publish(pipeline.Event{Type: pipeline.EventStateChanged, Session: session, Turn: 1, State: turn.Settling})

	var st Status
	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodGet, "/api/status", "", &st))
	assert.Equal(t, session, st.Session)
	assert.Equal(t, turn.Settling, st.State)
	assert.Equal(t, pipeline.EventStateChanged, st.LastEvent)
	assert.Equal(t, 1, st.Turns)
	assert.Nil(t, st.LastOutcome)

	s.Publish(outcomeEvent(session, 1, 42))
	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodGet, "/api/status", "", &st))
	assert.Equal(t, turn.Finished, st.State)
	require.NotNil(t, st.LastOutcome)
	assert.Equal(t, 42.0, st.LastOutcome.DistanceError)
}

func TestOutcomesFromMemory(t *testing.T) {
	s := NewServer()
	session := uuid.New()
	for i := 1; i <= 5; i++ {
		s.Publish(outcomeEvent(session, i, float64(i*10)))
	}

	var events []pipeline.Event
	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodGet, "/api/outcomes?limit=3", "", &events))
	require.Len(t, events, 3)
	assert.Equal(t, 5, events[0].Turn, "newest first")
	assert.Equal(t, 3, events[2].Turn)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, s, http.MethodGet, "/api/outcomes?limit=zero", "", &errBody))
	assert.Contains(t, errBody["error"], "limit")
}

type fakeHistory struct {
	recs  []store.OutcomeRecord
	limit int
	err   error
}

func (f *fakeHistory) Recent(_ context.Context, n int) ([]store.OutcomeRecord, error) {
	f.limit = n
	return f.recs, f.err
}

func (f *fakeHistory) Stats(context.Context) (store.Stats, error) {
	return store.Stats{Total: len(f.recs)}, f.err
}

func TestOutcomesFromHistory(t *testing.T) {
	h := &fakeHistory{recs: []store.OutcomeRecord{{Turn: 9, Verdict: "hit"}}}
	s := NewServer(WithHistory(h))

	var recs []store.OutcomeRecord
	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodGet, "/api/outcomes", "", &recs))
	assert.Equal(t, defaultOutcomeLimit, h.limit)
	require.Len(t, recs, 1)
	assert.Equal(t, 9, recs[0].Turn)

	getJSON(t, s, http.MethodGet, "/api/outcomes?limit=100000", "", &recs)
	assert.Equal(t, maxOutcomeLimit, h.limit)

	var st store.Stats
	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodGet, "/api/stats", "", &st))
	assert.Equal(t, 1, st.Total)

	h.err = errors.New("database is locked")
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, s, http.MethodGet, "/api/outcomes", "", nil))
}

func TestStatsWithoutHistory(t *testing.T) {
	s := NewServer()
	assert.Equal(t, http.StatusNotFound, getJSON(t, s, http.MethodGet, "/api/stats", "", nil))
}

func TestConfigEndpoint(t *testing.T) {
	s := NewServer(WithSettings(map[string]interface{}{"turn": map[string]interface{}{"preset": "fast"}}))
	var got map[string]map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodGet, "/api/config", "", &got))
	assert.Equal(t, "fast", got["turn"]["preset"])
}

func TestTurnTuningEndpoints(t *testing.T) {
	tuning := pipeline.NewTuning(turn.StandardConfig())
	s := NewServer(WithTuning(tuning))

	var got map[string]interface{}
	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodGet, "/api/turn", "", &got))
	assert.Equal(t, 10.0, got["stable_frame_count"])

	require.Equal(t, http.StatusOK, getJSON(t, s, http.MethodPut, "/api/turn", `{"preset":"explosive"}`, &got))
	assert.Equal(t, turn.ExplosiveConfig(), tuning.Config())
	assert.Equal(t, "explosive", got["preset"])

	assert.Equal(t, http.StatusBadRequest, getJSON(t, s, http.MethodPut, "/api/turn", `{"stable_frame_count":0}`, nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, s, http.MethodPut, "/api/turn", `not json`, nil))
	assert.Equal(t, turn.ExplosiveConfig(), tuning.Config(), "rejected updates must not apply")

	assert.Equal(t, http.StatusNotFound, getJSON(t, NewServer(), http.MethodGet, "/api/turn", "", nil))
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer()
	assert.Equal(t, http.StatusUpgradeRequired, getJSON(t, s, http.MethodGet, "/ws/events", "", nil))
}

func TestEventsWebSocket(t *testing.T) {
	s := NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ctx, ln)

	url := "ws://" + ln.Addr().String() + "/ws/events"
	var ws *websocket.Conn
	require.Eventually(t, func() bool {
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer ws.Close()

	// First frame is the status snapshot.
	var st Status
	require.NoError(t, ws.ReadJSON(&st))
	assert.Equal(t, turn.Active, st.State)

	require.Eventually(t, func() bool { return s.Status().Clients == 1 }, 2*time.Second, 10*time.Millisecond)

	session := uuid.New()
	s.Publish(outcomeEvent(session, 1, -12))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e pipeline.Event
	require.NoError(t, ws.ReadJSON(&e))
	assert.Equal(t, pipeline.EventOutcome, e.Type)
	assert.Equal(t, session, e.Session)
	require.NotNil(t, e.Outcome)
	assert.Equal(t, -12.0, e.Outcome.DistanceError)

	ws.Close()
	require.Eventually(t, func() bool { return s.Status().Clients == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventsWebSocket_TypeFilter(t *testing.T) {
	s := NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ctx, ln)

	url := "ws://" + ln.Addr().String() + "/ws/events?types=outcome"
	var ws *websocket.Conn
	require.Eventually(t, func() bool {
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer ws.Close()

	var st Status
	require.NoError(t, ws.ReadJSON(&st))
	require.Eventually(t, func() bool { return s.Status().Clients == 1 }, 2*time.Second, 10*time.Millisecond)

	session := uuid.New()
	s.Publish(pipeline.Event{Type: pipeline.EventStateChanged, Session: session, Turn: 1, State: turn.Settling})
	s.Publish(outcomeEvent(session, 1, 7))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e pipeline.Event
	require.NoError(t, ws.ReadJSON(&e))
	assert.Equal(t, pipeline.EventOutcome, e.Type, "state changes are filtered out")
	require.NotNil(t, e.Outcome)
	assert.Equal(t, 7.0, e.Outcome.DistanceError)
}
