package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcollins22/rugchekr/internal/analysis"
	"github.com/rcollins22/rugchekr/internal/risk"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func event(typ EventType, addr string, score int) *Event {
	return &Event{Type: typ, Timestamp: time.Now(), Data: Summary{Address: addr, RiskScore: score}}
}

func runHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func highRiskAnalysis() *analysis.ContractAnalysis {
	return &analysis.ContractAnalysis{
		ID:             "an_1",
		Address:        "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984",
		Token:          analysis.Token{Name: "Rug", Symbol: "RUG"},
		RiskScore:      85,
		RiskLevel:      risk.LevelHigh,
		HoneypotStatus: analysis.HoneypotSuspected,
		Sources:        []analysis.SourceStatus{{Name: "goplus", OK: false, ErrorKind: "timeout"}},
	}
}

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.Stats().Subscribers == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestSubscription_Matches(t *testing.T) {
	tests := []struct {
		name string
		sub  *Subscription
		ev   *Event
		want bool
	}{
		{"nil matches", nil, event(EventAnalysisCompleted, "0xabc", 0), true},
		{"empty matches", &Subscription{}, event(EventAnalysisCompleted, "0xabc", 0), true},
		{"all events wins over filters", &Subscription{AllEvents: true, MinRiskScore: 90}, event(EventAnalysisCompleted, "0xabc", 10), true},
		{"type filtered out", &Subscription{EventTypes: []EventType{EventHighRisk}}, event(EventAnalysisCompleted, "0xabc", 90), false},
		{"type matched", &Subscription{EventTypes: []EventType{EventHighRisk}}, event(EventHighRisk, "0xabc", 90), true},
		{"address case-insensitive", &Subscription{Addresses: []string{"0xAbC"}}, event(EventAnalysisCompleted, "0xabc", 0), true},
		{"other address", &Subscription{Addresses: []string{"0xAbC"}}, event(EventAnalysisCompleted, "0xdef", 0), false},
		{"below minimum", &Subscription{MinRiskScore: 70}, event(EventAnalysisCompleted, "0xabc", 69), false},
		{"at minimum", &Subscription{MinRiskScore: 70}, event(EventAnalysisCompleted, "0xabc", 70), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.Matches(tt.ev))
		})
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	strict := originChecker(nil)
	assert.True(t, strict(req("")), "non-browser clients pass")
	assert.True(t, strict(req("https://api.example.com")), "same origin passes")
	assert.False(t, strict(req("https://evil.example")))

	listed := originChecker([]string{"https://app.example.com"})
	assert.True(t, listed(req("https://app.example.com")))
	assert.False(t, listed(req("https://other.example.com")))

	assert.True(t, originChecker([]string{"*"})(req("https://anything.example")))
}

func TestSummarize(t *testing.T) {
	s := Summarize(highRiskAnalysis())
	assert.Equal(t, "HIGH RISK", s.RiskLevel)
	assert.Equal(t, "RUG", s.Symbol)
	assert.Equal(t, "Suspected", s.HoneypotStatus)
	assert.Equal(t, []string{"goplus"}, s.FailedSources)
}

func TestHub_StatsInitial(t *testing.T) {
	assert.Equal(t, Stats{}, testHub().Stats())
}

func TestHub_PublishLowRiskQueuesOneEvent(t *testing.T) {
	h := testHub()
	a := highRiskAnalysis()
	a.RiskLevel = risk.LevelLow

	h.PublishAnalysis(a)
	assert.Len(t, h.events, 1)
}

func TestHub_DropsWhenQueueFull(t *testing.T) {
	h := testHub()
	for range eventBuffer + 3 {
		h.publish(event(EventAnalysisCompleted, "0xabc", 1))
	}
	assert.Equal(t, int64(3), h.Stats().EventsDropped)
}

func TestHub_DeliversCompletedThenHighRisk(t *testing.T) {
	h := testHub()
	runHub(t, h)
	conn := dial(t, h)

	h.PublishAnalysis(highRiskAnalysis())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Event
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, EventAnalysisCompleted, first.Type)
	assert.Equal(t, EventHighRisk, second.Type)
	assert.Equal(t, 85, first.Data.RiskScore)

	stats := h.Stats()
	assert.Equal(t, int64(2), stats.EventsPublished)
	assert.Equal(t, int64(1), stats.PeakSubscribers)
}

func TestHub_SubscriptionNarrowsFeed(t *testing.T) {
	h := testHub()
	runHub(t, h)
	conn := dial(t, h)

	require.NoError(t, conn.WriteJSON(Subscription{MinRiskScore: 50}))
	time.Sleep(100 * time.Millisecond)

	low := highRiskAnalysis()
	low.RiskScore = 10
	low.RiskLevel = risk.LevelLow
	h.PublishAnalysis(low)
	h.PublishAnalysis(highRiskAnalysis())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, 85, ev.Data.RiskScore, "the low-risk result is filtered out")
}

func TestHub_MalformedSubscriptionKeepsFilter(t *testing.T) {
	h := testHub()
	runHub(t, h)
	conn := dial(t, h)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	time.Sleep(50 * time.Millisecond)

	h.PublishAnalysis(highRiskAnalysis())
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, EventAnalysisCompleted, ev.Type)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h := testHub()
	runHub(t, h)
	conn := dial(t, h)

	_ = conn.Close()
	assert.Eventually(t, func() bool { return h.Stats().Subscribers == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), h.Stats().TotalConnections)
}

func TestHub_RejectsWhenFull(t *testing.T) {
	h := testHub()
	h.maxSubs = 0

	w := httptest.NewRecorder()
	h.HandleWebSocket(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "too many connections")
}

func TestHub_RejectsAfterShutdown(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}

	w := httptest.NewRecorder()
	h.HandleWebSocket(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
