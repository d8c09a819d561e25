package bot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	botsvc "github.com/zhouzirui/botrix/backend/internal/service/bot"
	"github.com/zhouzirui/botrix/backend/internal/store"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "bots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg, err := botsvc.NewRegistry(s)
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	r := chi.NewRouter()
	New(reg).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBotCRUD(t *testing.T) {
	r := setupRouter(t)

	rec := do(r, http.MethodPost, "/bots", `{"ownerId":"u1","name":"Support","webhookUrl":"https://hooks.example.com/a","primaryColor":"#123456"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created botmodel.BotConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = do(r, http.MethodGet, "/bots?owner=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []botmodel.BotConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Support", list[0].Name)

	rec = do(r, http.MethodPut, "/bots/"+created.ID, `{"name":"Sales","webhookUrl":"https://hooks.example.com/b"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated botmodel.BotConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Sales", updated.Name)
	assert.Equal(t, "u1", updated.OwnerID)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/bots/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/bots/"+created.ID, "").Code)
}

func TestListEmptyIsArray(t *testing.T) {
	r := setupRouter(t)
	rec := do(r, http.MethodGet, "/bots?owner=nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateValidation(t *testing.T) {
	r := setupRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/bots", `{"webhookUrl":"https://x.io"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/bots", `{"name":"x","webhookUrl":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/bots", `not json`).Code)
}

func TestThemeAndEmbed(t *testing.T) {
	r := setupRouter(t)
	rec := do(r, http.MethodPost, "/bots", `{"name":"Support","webhookUrl":"https://hooks.example.com/a","primaryColor":"not-a-color"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created botmodel.BotConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(r, http.MethodGet, "/bots/"+created.ID+"/theme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var theme botmodel.Theme
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &theme))
	assert.Equal(t, botmodel.DefaultPrimaryColor, theme.PrimaryColor)
	assert.Equal(t, "Support", theme.HeaderTitle)

	rec = do(r, http.MethodGet, "/bots/"+created.ID+"/embed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var embed EmbedCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &embed))
	assert.Equal(t, "http://example.com/widget/"+created.ID, embed.WidgetURL)
	assert.Contains(t, embed.Script, embed.WidgetURL)
}
