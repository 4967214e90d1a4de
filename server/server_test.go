package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/engine"
	"github.com/hupe1980/runmesh/events"
	"github.com/hupe1980/runmesh/internal/testutil"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/tool"
)

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *tool.ErrorBody `json:"error"`
}

func newTestServer(t *testing.T, m model.Model, optFns ...func(o *engine.Options)) (*Server, *engine.Engine, *events.Bus) {
	t.Helper()

	bus := events.New()
	t.Cleanup(bus.Close)

	catalog := testutil.NewCatalog("researcher", "coder")
	eng := engine.New(catalog, m, append([]func(o *engine.Options){func(o *engine.Options) { o.Bus = bus }}, optFns...)...)
	tools := tool.NewSet(tool.NewOrchestrateTools(eng)...)

	return New(eng, tools, bus, func(o *Options) { o.Catalog = catalog }), eng, bus
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, testutil.ScriptedModel("none", nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := s.Echo().NewContext(req, rec)

	require.NoError(t, s.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestOrchestrate_FanOut(t *testing.T) {
	m := testutil.ScriptedModel("none", map[string]testutil.AgentReply{
		"researcher": {Text: "Research output"},
		"coder":      {Text: "Code output"},
	})
	s, _, _ := newTestServer(t, m)

	rec, env := do(t, s, http.MethodPost, "/v1/orchestrate",
		`{"task":"Summarize AI","strategy":"fan-out","agents":["researcher","coder"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, env.OK)

	var out struct {
		Strategy string `json:"strategy"`
		Results  []struct {
			AgentID string `json:"agentId"`
			Text    string `json:"text"`
		} `json:"results"`
		RunID string `json:"runId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "fan-out", out.Strategy)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "researcher", out.Results[0].AgentID)
	assert.Equal(t, "Research output", out.Results[0].Text)
	assert.Equal(t, "coder", out.Results[1].AgentID)
	assert.Equal(t, "Code output", out.Results[1].Text)
	assert.NotEmpty(t, out.RunID)
}

func TestOrchestrate_Errors(t *testing.T) {
	s, _, _ := newTestServer(t, testutil.ScriptedModel("none", nil))

	rec, env := do(t, s, http.MethodPost, "/v1/orchestrate", `{"task":"t","strategy":"pipeline","agents":["coder"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = do(t, s, http.MethodPost, "/v1/orchestrate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.OK)

	noLLM, _, _ := newTestServer(t, nil)
	rec, env = do(t, noLLM, http.MethodPost, "/v1/orchestrate", `{"task":"t"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NO_LLM", env.Error.Code)
}

func TestBackgroundRunLifecycle(t *testing.T) {
	release := make(chan struct{})
	s, eng, _ := newTestServer(t, testutil.Blocking(release), func(o *engine.Options) {
		o.Config.MaxConcurrent = 1
	})

	rec, env := do(t, s, http.MethodPost, "/v1/orchestrate", `{"task":"long job","background":true,"label":"job"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted engine.Accepted
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, "accepted", accepted.Status)
	assert.Equal(t, "job", accepted.Label)

	rec, env = do(t, s, http.MethodPost, "/v1/orchestrate", `{"task":"more","background":true}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "CONCURRENCY_LIMIT", env.Error.Code)

	rec, env = do(t, s, http.MethodGet, "/v1/runs?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), accepted.RunID)

	rec, env = do(t, s, http.MethodPost, "/v1/runs/job/kill", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), "Killed run")

	rec, env = do(t, s, http.MethodPost, "/v1/runs/job/kill", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_ACTIVE", env.Error.Code)

	rec, _ = do(t, s, http.MethodPost, "/v1/runs/ghost/kill", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/v1/runs?active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	close(release)
	require.NoError(t, eng.Wait(context.Background()))
}

func TestListUsageAgentsHistory(t *testing.T) {
	s, _, _ := newTestServer(t, testutil.ScriptedModel("none", nil))

	_, env := do(t, s, http.MethodGet, "/v1/runs", "")
	assert.JSONEq(t, `"No runs."`, string(env.Data))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/usage", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orchestrate.kill")

	_, env = do(t, s, http.MethodGet, "/v1/agents", "")
	assert.Contains(t, string(env.Data), `"researcher"`)

	rec, env = do(t, s, http.MethodGet, "/v1/runs/history?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec, _ = do(t, s, http.MethodGet, "/v1/runs/history?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsWebsocket(t *testing.T) {
	s, _, bus := newTestServer(t, testutil.ScriptedModel("none", nil))

	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events?types=" + string(core.EventSpawned)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	rec, _ := do(t, s, http.MethodPost, "/v1/orchestrate", `{"task":"t","label":"streamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev core.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, core.EventSpawned, ev.Type)
	assert.Equal(t, "streamed", ev.Payload["label"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, StatusFor("POLICY_DENIED"))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("ORCHESTRATE_ERROR"))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("EXECUTION_ERROR"))
}
