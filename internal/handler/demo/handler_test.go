package demo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/botrix/backend/internal/service/ai"
	"github.com/zhouzirui/botrix/backend/internal/service/dispatch"
)

func setupRouter() *chi.Mux {
	r := chi.NewRouter()
	New(ai.NewEchoService(0)).RegisterRoutes(r)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/demo/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAnswersEnvelope(t *testing.T) {
	rec := post(setupRouter(), `{"action":"sendMessage","sessionId":"widget_a_1","chatInput":"batteries","message":"batteries"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Contains(t, reply.Output, "Batteries:")
}

func TestWebhookFallsBackToMessageField(t *testing.T) {
	rec := post(setupRouter(), `{"sessionId":"s","message":"ups"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPS Systems")
}

func TestWebhookRejectsEmptyInput(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, post(setupRouter(), `{"sessionId":"s"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(setupRouter(), `nope`).Code)
}

// The dispatcher and the demo webhook speak the same envelope.
func TestDispatcherRoundTrip(t *testing.T) {
	srv := httptest.NewServer(setupRouter())
	defer srv.Close()

	res := dispatch.NewClient().Send(context.Background(), srv.URL+"/demo/webhook", "widget_a_1", "inverter")
	assert.Equal(t, dispatch.OutcomeField, res.Outcome)
	assert.Contains(t, res.Reply, "Home Inverter 1100")
}
