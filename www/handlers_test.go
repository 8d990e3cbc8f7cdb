package www

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"visionlink/audit"
	"visionlink/config"
	"visionlink/engine"
	"visionlink/nodeclient"
	"visionlink/nodestate"
	"visionlink/rpc"
	"visionlink/store"
)

// routineCaller plays back canned rows per routine name and records calls.
// The poller sweeps concurrently with the test's own request, so every map
// access is guarded.
type routineCaller struct {
	mu    sync.Mutex
	rows  map[string]string
	errs  map[string]error
	calls map[string][]any
}

func newRoutineCaller() *routineCaller {
	return &routineCaller{
		rows:  map[string]string{"get_approved_nodes": `[]`},
		errs:  map[string]error{},
		calls: map[string][]any{},
	}
}

func (c *routineCaller) Function(ctx context.Context, schema, name string, params ...any) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name] = params
	if err := c.errs[name]; err != nil {
		return nil, err
	}
	doc, ok := c.rows[name]
	if !ok {
		return []json.RawMessage{json.RawMessage(`null`)}, nil
	}
	return []json.RawMessage{json.RawMessage(doc)}, nil
}

func (c *routineCaller) Procedure(ctx context.Context, schema, name string, params ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name] = params
	return c.errs[name]
}

func (c *routineCaller) params(name string) ([]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.calls[name]
	return p, ok
}

func testRouter(t *testing.T, caller *routineCaller) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.Node.PollInterval = config.Duration(time.Hour)
	cfg.Node.ProbeAttempts = 1
	cfg.Node.ProbeDelay = config.Duration(time.Millisecond)
	cfg.Access.AllowedIPs = []string{"192.0.2.1"}
	cfg.Events.Topic = "visionlink.events"

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sink, err := audit.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	st := store.New(caller)
	eng := engine.New(engine.Config{
		AppConfig: cfg,
		Gateway:   rpc.NewGateway(db),
		Store:     st,
		NodeState: nodestate.NewManager(st, nil),
		Audit:     sink,
		// Port 9 (discard) refuses connections, so every push fails fast.
		NodeClient: nodeclient.New(9, 200*time.Millisecond),
		LogFunc:    func(format string, args ...any) {},
	})
	eng.Start()
	t.Cleanup(eng.Stop)

	return NewRouter(eng)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:51234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	}
	return rr, decoded
}

func TestConnectHandlerSuccess(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["create_connection"] = `{"create_connection":{"map":"new","node_id":7}}`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodPost, "/nodes/connect",
		`{"node_key_value":"key-1","node_name":"dock-west"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Connected", body["status"])
	assert.Equal(t, float64(7), body["node_id"])
}

func TestConnectHandlerInvalidKey(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["create_connection"] = `{"create_connection":{"map":"missing"}}`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodPost, "/nodes/connect", `{"node_key_value":"bogus"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Key is invalid", body["error"])
}

func TestConnectHandlerAssignedKey(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["create_connection"] = `{"create_connection":{"map":"different"}}`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodPost, "/nodes/connect", `{"node_key_value":"key-1","node_id":"3"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Key is already assigned to a different node", body["error"])
}

func TestConnectHandlerStringNodeID(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["create_connection"] = `{"create_connection":{"map":"existing","node_id":3}}`
	h := testRouter(t, caller)

	rr, _ := doJSON(t, h, http.MethodPost, "/nodes/connect", `{"node_key_value":"key-1","node_id":"3"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	got, ok := caller.params("create_connection")
	require.True(t, ok)
	assert.Equal(t, []any{"key-1", int64(3), nil, nil, nil}, got)
}

func TestDeviceSyncHandler(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["insert_devices"] = `[3,4]`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodPost, "/nodes/connect/devices",
		`{"node_id":12,"cameras":["front","rear"]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Synced", body["status"])
	got, ok := caller.params("update_node_device_map")
	require.True(t, ok)
	assert.Equal(t, []any{int64(12), `[3,4]`, store.StatusConnected}, got)
}

func TestDeviceSyncHandlerEmptyListDisconnects(t *testing.T) {
	caller := newRoutineCaller()
	h := testRouter(t, caller)

	rr, _ := doJSON(t, h, http.MethodPost, "/nodes/connect/devices", `{"node_id":12,"cameras":[]}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	got, ok := caller.params("update_disconnect_all_devices")
	require.True(t, ok)
	assert.Equal(t, []any{int64(12)}, got)
	_, called := caller.params("insert_devices")
	assert.False(t, called)
}

func TestConnectedDevicesHandler(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["get_node_devices"] = `{"get_node_devices":{"devices":[4]}}`
	caller.rows["get_devices_details"] = `{"get_devices_details":{"devices":[{"device_id":4,"device_name":"front","status_value":"Connected"}]}}`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodGet, "/nodes/id/12/devices/connected?itemLimit=5&currentPage=2", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	devices := body["devices"].([]any)
	require.Len(t, devices, 1)
	assert.Equal(t, "front", devices[0].(map[string]any)["device_name"])
	got, ok := caller.params("get_node_devices")
	require.True(t, ok)
	assert.Equal(t, []any{int64(12), 5, 2}, got)
}

func TestActiveDeploymentsHandler(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["get_nodes_deployment_models"] = `{"nodes":[{"node_id":12,"deployment_id":42,"model_id":3}]}`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodGet, "/nodes/deployments/active", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	nodes := body["nodes"].([]any)
	require.Len(t, nodes, 1)
	assert.Equal(t, float64(42), nodes[0].(map[string]any)["deployment_id"])
	_, ok := caller.params("get_nodes_deployment_models")
	assert.True(t, ok)
}

func TestKeyGenerateHandler(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["insert_node_key"] = `{"key_id":9,"key_value":"fresh-key","creation_date":"2026-08-30T10:00:00Z"}`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodPost, "/nodes/key/generate", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "fresh-key", body["key_value"])
}

func TestDeploymentCreateHandler(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["insert_deployments"] = `42`
	caller.rows["get_devices_details"] = `{"get_devices_details":{"devices":[{"device_id":4,"device_name":"front"}]}}`
	caller.rows["get_addr_from_node"] = `{"get_addr_from_node":{"node_address":"10.0.0.5"}}`
	h := testRouter(t, caller)

	// Future-dated: row inserted, no push attempted, no node involved.
	rr, body := doJSON(t, h, http.MethodPost, "/deployments/create", `{
		"deployment_name":"line-check","target_id":1,"model_id":3,
		"creation_date":"2026-08-30T10:00:00Z",
		"start_date":"2026-09-01T10:00:00Z",
		"expiry_date":"2026-09-30T10:00:00Z",
		"node_id":12,"device_id":4
	}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Created", body["status"])
	assert.Equal(t, float64(42), body["deployment_id"])
	_, called := caller.params("get_addr_from_node")
	assert.False(t, called)
}

func TestDeploymentCreateHandlerBadDate(t *testing.T) {
	h := testRouter(t, newRoutineCaller())

	rr, _ := doJSON(t, h, http.MethodPost, "/deployments/create", `{
		"deployment_name":"line-check",
		"creation_date":"tomorrow",
		"start_date":"2026-09-01T10:00:00Z",
		"expiry_date":"2026-09-30T10:00:00Z"
	}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeploymentSwitchHandlerPersistsDisabledOnUnreachableNode(t *testing.T) {
	caller := newRoutineCaller()
	caller.rows["get_devices_details"] = `{"get_devices_details":{"devices":[{"device_id":4,"device_name":"front"}]}}`
	caller.rows["get_addr_from_node"] = `{"get_addr_from_node":{"node_address":"127.0.0.1"}}`
	h := testRouter(t, caller)

	rr, body := doJSON(t, h, http.MethodPost, "/deployments/switch/status", `{
		"deployment_id":42,"deployment_name":"line-check","target_id":1,
		"status_value":"Active","model_id":3,
		"creation_date":"2026-08-30T10:00:00Z",
		"start_date":"2026-08-30T10:00:00Z",
		"expiry_date":"2026-09-30T10:00:00Z",
		"node_id":12,"device_id":4
	}`)

	// The node is unreachable: the stop push fails, the caller sees an
	// error, and Disabled is persisted anyway.
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, body["error"])

	got, ok := caller.params("update_deployment_status")
	require.True(t, ok)
	assert.Equal(t, []any{int64(42), store.DeploymentDisabled}, got)
}

func TestGateDeniesUnknownCaller(t *testing.T) {
	h := testRouter(t, newRoutineCaller())

	req := httptest.NewRequest(http.MethodGet, "/deployments/", nil)
	req.RemoteAddr = "198.51.100.9:51234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	h := testRouter(t, newRoutineCaller())

	rr, body := doJSON(t, h, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["database"])
	assert.Equal(t, false, body["cache"])
}

func TestNotFoundIsJSON(t *testing.T) {
	h := testRouter(t, newRoutineCaller())

	rr, body := doJSON(t, h, http.MethodGet, "/nowhere", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Not Found", body["error"])
}
