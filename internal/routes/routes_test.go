package routes

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	commonroutes "rcmos/commons/routes"
	"rcmos/internal/artifacts"
	cachememory "rcmos/internal/cache/memory"
	"rcmos/internal/domain"
	"rcmos/internal/dto"
	eventbus "rcmos/internal/eventbus/iface"
	busmemory "rcmos/internal/eventbus/memory"
	"rcmos/internal/flow"
	"rcmos/internal/handler"
	"rcmos/internal/logger"
	"rcmos/internal/orchestrator"
	queue "rcmos/internal/queue/iface"
	queuememory "rcmos/internal/queue/memory"
	repomemory "rcmos/internal/repository/memory"
	"rcmos/internal/retry"
	"rcmos/internal/schemas"
	"rcmos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubArtifacts struct{}

func (stubArtifacts) List(ctx context.Context, runID string) ([]artifacts.Artifact, error) {
	return []artifacts.Artifact{{Key: artifacts.Prefix(runID) + "screenshot.png", URL: "http://minio.local/s.png"}}, nil
}

type envelope struct {
	Status    string          `json:"status"`
	ErrorCode int             `json:"errorCode"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, eventbus.Bus) {
	t.Helper()
	log := logger.NewNop()

	runs := repomemory.NewRunRepository(log)
	instances := repomemory.NewInstanceRepository(log)
	bus := busmemory.NewMemoryBus(log)
	c := cachememory.NewMemoryCache()

	opts := orchestrator.Options{
		MfaTimeout:        time.Minute,
		AwaitPollInterval: 5 * time.Millisecond,
		ActivityRetry:     retry.Policy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxAttempts: 2},
	}
	engine := orchestrator.NewEngine(orchestrator.EngineDeps{
		Instances: instances,
		Runs:      runs,
		Bus:       bus,
		Flow:      flow.NewEngine(log),
		Timers:    orchestrator.NewCacheTimers(c, ""),
	}, opts, log)

	q := queuememory.NewMemoryQueue[orchestrator.Task](queue.MessageProcessorFunc[orchestrator.Task](
		func(ctx context.Context, task orchestrator.Task) bool {
			return engine.Advance(ctx, task.InstanceID) == nil
		}), 2, log)
	require.NoError(t, q.StartConsumer(context.Background()))
	t.Cleanup(func() { q.StopConsumer(context.Background()) })

	client := orchestrator.NewClient(instances, orchestrator.NewTaskQueue(q), opts, log)
	runService := service.NewRunService(runs, client, bus, c, stubArtifacts{},
		service.RunServiceConfig{AwaitTimeout: 2 * time.Second, TerminalTTL: time.Minute}, log)
	portalService := service.NewPortalService(client, 2*time.Second, log)

	catalog, err := schemas.Build()
	require.NoError(t, err)

	router := commonroutes.NewRouter(commonroutes.RouterConfig{ServiceName: "api", Version: "v1"},
		commonroutes.RouteDependencies{Logger: log})
	InitHealthRoutes(router, handler.NewHealthHandler(log, "api",
		dto.InfoResponse{App: "rcm-os", Env: "test", StoreDriver: "memory"}, "0.1.0"), log)
	InitMetricsRoute(router)
	InitRunRoutes(router, handler.NewRunHandler(log, runService), log)
	InitPortalRoutes(router, handler.NewPortalHandler(log, portalService), log)
	InitSchemaRoutes(router, handler.NewSchemaHandler(catalog), log)
	InitEventRoutes(router, handler.NewEventsHandler(log, bus, time.Second))
	return router, bus
}

func do(t *testing.T, router http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func createRun(t *testing.T, router http.Handler) dto.CreateRunResponse {
	t.Helper()
	code, env := do(t, router, http.MethodPost, "/api/v1/runs", map[string]any{
		"purpose":  "eligibility",
		"payer_id": "PAYER1",
		"input":    map[string]any{"member_id": "M1"},
	})
	require.Equal(t, http.StatusOK, code)

	var run dto.CreateRunResponse
	require.NoError(t, json.Unmarshal(env.Data, &run))
	return run
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/healthz"} {
		code, env := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "SUCCESS", env.Status)
		assert.JSONEq(t, `{"status":"ok","service":"api"}`, string(env.Data))
	}

	_, env := do(t, router, http.MethodGet, "/api/v1/info", nil)
	assert.JSONEq(t, `{"app":"rcm-os","env":"test","queue_url":"","store_driver":"memory"}`, string(env.Data))

	_, env = do(t, router, http.MethodGet, "/api/v1/version", nil)
	assert.JSONEq(t, `{"version":"0.1.0"}`, string(env.Data))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRunValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/runs", map[string]any{"purpose": "eligibility"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "FAILED", env.Status)
	assert.Equal(t, 400, env.ErrorCode)
}

func TestCreateRunDeduplicates(t *testing.T) {
	router, _ := newTestRouter(t)

	first := createRun(t, router)
	second := createRun(t, router)

	assert.False(t, first.Deduplicated)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "PAYER1", second.PayerID)
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)
	run := createRun(t, router)
	base := "/api/v1/runs/" + run.ID

	require.Eventually(t, func() bool {
		code, env := do(t, router, http.MethodGet, base+"/state", nil)
		if code != http.StatusOK {
			return false
		}
		var state dto.RunStateResponse
		return json.Unmarshal(env.Data, &state) == nil && state.Phase == string(domain.PhaseAwaitingCode)
	}, 2*time.Second, 10*time.Millisecond)

	code, _ := do(t, router, http.MethodPost, base+"/mfa", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do(t, router, http.MethodPost, base+"/mfa", map[string]any{"code": "123456"})
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, router, http.MethodGet, base+"/outcome?timeout=2s", nil)
	require.Equal(t, http.StatusOK, code)
	var outcome dto.OutcomeResponse
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	assert.Equal(t, "completed", outcome.Status)
	assert.EqualValues(t, 4, outcome.Output["steps"])

	require.Eventually(t, func() bool {
		_, env := do(t, router, http.MethodGet, base, nil)
		var r dto.RunResponse
		return json.Unmarshal(env.Data, &r) == nil && r.Status == string(domain.RunStatusSucceeded)
	}, 2*time.Second, 10*time.Millisecond)

	// a completed instance no longer accepts codes
	code, env = do(t, router, http.MethodPost, base+"/mfa", map[string]any{"code": "654321"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 409, env.ErrorCode)
}

func TestRunLookupErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodGet, "/api/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 404, env.ErrorCode)

	code, _ = do(t, router, http.MethodGet, "/api/v1/runs/missing/artifacts", nil)
	assert.Equal(t, http.StatusNotFound, code)

	run := createRun(t, router)
	code, _ = do(t, router, http.MethodGet, "/api/v1/runs/"+run.ID+"/outcome?timeout=soon", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListArtifactsRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	run := createRun(t, router)

	code, env := do(t, router, http.MethodGet, "/api/v1/runs/"+run.ID+"/artifacts", nil)
	require.Equal(t, http.StatusOK, code)

	var resp dto.ListArtifactsResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Artifacts, 1)
	assert.Equal(t, "runs/"+run.ID+"/screenshot.png", resp.Artifacts[0].Key)
}

func TestPortalRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/test/portal/run", map[string]any{})
	require.Equal(t, http.StatusOK, code)
	var started struct {
		WorkflowID string         `json:"workflow_id"`
		State      map[string]any `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, service.DefaultPortalWorkflowID, started.WorkflowID)
	assert.Equal(t, started.WorkflowID, started.State["instance_id"])

	code, _ = do(t, router, http.MethodPost, "/api/v1/test/portal/wf-test-1/mfa", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	require.Eventually(t, func() bool {
		_, env := do(t, router, http.MethodGet, "/api/v1/test/portal/wf-test-1/state", nil)
		var state dto.RunStateResponse
		return json.Unmarshal(env.Data, &state) == nil && state.WaitingMfa
	}, 2*time.Second, 10*time.Millisecond)

	code, env = do(t, router, http.MethodPost, "/api/v1/test/portal/wf-test-1/mfa", map[string]any{"code": "111111"})
	require.Equal(t, http.StatusOK, code)
	var mfa dto.PortalMfaResponse
	require.NoError(t, json.Unmarshal(env.Data, &mfa))
	assert.Equal(t, "test-flow", mfa.Result["flow_id"])

	code, _ = do(t, router, http.MethodPost, "/api/v1/test/portal/run", map[string]any{
		"workflow_id": "wf-yaml",
		"flow_yaml":   "flow_id: x\n",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodGet, "/api/v1/test/portal/wf-none/state", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSchemasRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodGet, "/api/v1/schemas", nil)
	require.Equal(t, http.StatusOK, code)

	var catalog map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &catalog))
	for _, name := range []string{"EligibilityInput", "EligibilityResponse", "ClaimStatusInput", "ClaimStatusResponse"} {
		assert.Contains(t, catalog, name)
	}
}

func TestEventStreamFiltersByRun(t *testing.T) {
	router, bus := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events?run_id=r-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	other, err := domain.NewEvent(domain.EventRunCreated, "r-2", domain.RunCreatedPayload{Purpose: "eligibility"})
	require.NoError(t, err)
	mine, err := domain.NewEvent(domain.EventRunCreated, "r-1", domain.RunCreatedPayload{Purpose: "claim_status"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, other))
	require.NoError(t, bus.Publish(ctx, mine))

	frames := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				frames <- strings.TrimPrefix(line, "data: ")
				return
			}
		}
	}()

	select {
	case frame := <-frames:
		event, err := domain.ParseEvent([]byte(frame))
		require.NoError(t, err)
		assert.Equal(t, "r-1", event.RunID)
		assert.Equal(t, domain.EventRunCreated, event.Type)
		assert.Equal(t, domain.DefaultEventSource, event.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no event frame received")
	}
}

func TestRunRepresentationKeepsNullFields(t *testing.T) {
	router, _ := newTestRouter(t)

	code, env := do(t, router, http.MethodPost, "/api/v1/runs", map[string]any{
		"purpose":  "claim_status",
		"payer_id": "PAYER1",
		"input":    map[string]any{"claim_id": "C1"},
	})
	require.Equal(t, http.StatusOK, code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	for _, key := range []string{"id", "purpose", "payer_id", "provider_npi", "status", "source", "input", "output", "error_code", "error_msg"} {
		assert.Contains(t, raw, key)
	}
	assert.Nil(t, raw["provider_npi"])
	assert.Nil(t, raw["output"])
	assert.Nil(t, raw["error_code"])
	assert.Nil(t, raw["error_msg"])
}
