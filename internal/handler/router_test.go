package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/pubsub"
	"github.com/zhouzirui/botrix/backend/internal/service/ai"
	analyticssvc "github.com/zhouzirui/botrix/backend/internal/service/analytics"
	botsvc "github.com/zhouzirui/botrix/backend/internal/service/bot"
	"github.com/zhouzirui/botrix/backend/internal/service/dispatch"
	"github.com/zhouzirui/botrix/backend/internal/service/session"
	widgetsvc "github.com/zhouzirui/botrix/backend/internal/service/widget"
	"github.com/zhouzirui/botrix/backend/internal/store"
)

// newTestServer wires the full stack on sqlite with the demo bot answering
// through the server's own webhook.
func newTestServer(t *testing.T) *httptest.Server {
	srv, _ := newTestServerWithDemo(t)
	return srv
}

func newTestServerWithDemo(t *testing.T) (*httptest.Server, *ai.Service) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "botrix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	broker := pubsub.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	recorder := session.NewRecorder(repo, repo, broker, 16)
	t.Cleanup(recorder.Close)

	registry, err := botsvc.NewRegistry(repo)
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	var router http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, registry.EnsureSeed(context.Background(), botmodel.Seed(srv.URL+"/api/demo/webhook")))

	demo := ai.NewEchoService(0)
	manager := widgetsvc.NewManager(widgetsvc.Options{
		Bots:       registry,
		Dispatcher: dispatch.NewClient(dispatch.WithTimeout(5 * time.Second)),
		Tracker:    session.NewTracker(recorder),
		OnClose:    demo.Forget,
	})
	t.Cleanup(manager.CloseAll)

	router = NewRouter(Deps{
		CORSOrigins: []string{"*"},
		Widgets:     manager,
		Bots:        registry,
		Analytics:   analyticssvc.NewService(repo, 30*time.Minute),
		Demo:        demo,
		Store:       repo,
	})
	return srv, demo
}

func call(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	if resp.ContentLength != 0 {
		_ = json.NewDecoder(resp.Body).Decode(&raw)
	}
	return resp, raw
}

// fetch is safe to use inside Eventually conditions.
func fetch(url string, dst any) bool {
	resp, err := http.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(dst) == nil
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, body := call(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","store":"ok"}`, string(body))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db gone") }

func TestHealthDegraded(t *testing.T) {
	rec := httptest.NewRecorder()
	healthCheck(failingPinger{})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db gone")
}

func TestDemoConversationEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	resp, body := call(t, http.MethodPost, srv.URL+"/api/widgets", `{"botId":"`+botmodel.DemoBotID+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view widgetsvc.View
	require.NoError(t, json.Unmarshal(body, &view))
	require.Len(t, view.Messages, 1)

	resp, _ = call(t, http.MethodPost, srv.URL+"/api/widgets/"+view.SessionID+"/messages", `{"text":"batteries please"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		var v widgetsvc.View
		return fetch(srv.URL+"/api/widgets/"+view.SessionID, &v) && len(v.Messages) == 3 && !v.Loading
	}, 5*time.Second, 20*time.Millisecond)

	_, body = call(t, http.MethodGet, srv.URL+"/api/widgets/"+view.SessionID, "")
	require.NoError(t, json.Unmarshal(body, &view))
	reply := view.Messages[2]
	assert.Contains(t, reply.Text, "Tall Tubular 150Ah")

	require.Eventually(t, func() bool {
		var stats analyticssvc.Stats
		// 只统计用户消息
		return fetch(srv.URL+"/api/analytics/stats", &stats) && stats.TotalMessages == 1 && stats.TotalConversations == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestUnmountForgetsDemoHistory(t *testing.T) {
	srv, demo := newTestServerWithDemo(t)

	resp, body := call(t, http.MethodPost, srv.URL+"/api/widgets", `{"botId":"`+botmodel.DemoBotID+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view widgetsvc.View
	require.NoError(t, json.Unmarshal(body, &view))

	resp, _ = call(t, http.MethodPost, srv.URL+"/api/widgets/"+view.SessionID+"/messages", `{"text":"ups"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool {
		return len(demo.History(view.SessionID)) == 2
	}, 5*time.Second, 20*time.Millisecond)

	// 等回复落地后再卸载，避免与进行中的请求竞争
	require.Eventually(t, func() bool {
		var v widgetsvc.View
		return fetch(srv.URL+"/api/widgets/"+view.SessionID, &v) && !v.Loading
	}, 5*time.Second, 20*time.Millisecond)

	resp, _ = call(t, http.MethodDelete, srv.URL+"/api/widgets/"+view.SessionID, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, demo.History(view.SessionID))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/bots", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://shop.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSpeechDisabledWithoutRecognizer(t *testing.T) {
	srv := newTestServer(t)
	resp, body := call(t, http.MethodGet, srv.URL+"/api/speech/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "disabled")
}
