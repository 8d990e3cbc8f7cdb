package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"visionlink/engine"
	"visionlink/fleet"
	"visionlink/store"
)

type nodeConnectRequest struct {
	NodeKeyValue string        `json:"node_key_value"`
	NodeID       *store.FlexID `json:"node_id"`
	NodeName     string        `json:"node_name"`
	CreationDate string        `json:"creation_date"`
}

func (h *Handlers) handleNodeConnect(w http.ResponseWriter, r *http.Request) {
	var req nodeConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	connectReq := fleet.ConnectRequest{
		KeyValue:     req.NodeKeyValue,
		NodeName:     req.NodeName,
		CreationDate: req.CreationDate,
		RemoteAddr:   r.RemoteAddr,
	}
	if req.NodeID != nil {
		id := req.NodeID.Int64()
		connectReq.NodeID = &id
	}

	result, err := h.engine.Registrar().Connect(r.Context(), connectReq)
	switch {
	case err == nil:
		h.jsonOK(w, map[string]any{"status": "Connected", "node_id": result.NodeID})
	case errors.Is(err, fleet.ErrKeyInvalid):
		h.jsonError(w, "Key is invalid", http.StatusInternalServerError)
	case errors.Is(err, fleet.ErrKeyAssigned):
		h.jsonError(w, "Key is already assigned to a different node", http.StatusInternalServerError)
	default:
		h.jsonError(w, "Unknown error", http.StatusInternalServerError)
	}
}

type deviceSyncRequest struct {
	NodeID  store.FlexID `json:"node_id"`
	Cameras []string     `json:"cameras"`
}

func (h *Handlers) handleNodeDevicesSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req deviceSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.engine.Reconciler().Reconcile(r.Context(), req.NodeID.Int64(), req.Cameras)
	duration := int(time.Since(start).Round(time.Second) / time.Second)
	h.engine.Events.Emit(engine.Event{Type: engine.EventDevicesSynced, Payload: engine.DevicesSyncedEvent{
		NodeID:       req.NodeID.Int64(),
		OK:           err == nil,
		DurationSecs: duration,
	}})
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": err.Error()})
		return
	}
	h.jsonOK(w, map[string]string{"status": "Synced"})
}

func (h *Handlers) handleNodesList(w http.ResponseWriter, r *http.Request) {
	limit, page := pageParams(r)
	nodes, err := h.engine.Store().LatestNodes(r.Context(), limit, page)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, nodes)
}

func (h *Handlers) handleActiveDeployments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.engine.Store().ActiveNodeDeployments(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) handleNodeDevicesConnected(w http.ResponseWriter, r *http.Request) {
	nodeID, err := strconv.ParseInt(chi.URLParam(r, "node_id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid node id", http.StatusBadRequest)
		return
	}
	limit, page := pageParams(r)

	ids, err := h.engine.Store().NodeDevices(r.Context(), nodeID, limit, page)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(ids) == 0 {
		h.jsonOK(w, map[string]any{"devices": []store.DeviceDetail{}})
		return
	}
	details, err := h.engine.Store().DeviceDetails(r.Context(), ids)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"devices": details})
}

func (h *Handlers) handleKeyGenerate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Store().InsertNodeKey(r.Context(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rec)
}

func (h *Handlers) handleKeyGet(w http.ResponseWriter, r *http.Request) {
	keyID, err := strconv.ParseInt(chi.URLParam(r, "key_id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid key id", http.StatusBadRequest)
		return
	}
	rec, err := h.engine.Store().Key(r.Context(), keyID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rec)
}

func (h *Handlers) handleDeviceFromName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("deviceName")
	if name == "" {
		h.jsonError(w, "deviceName is required", http.StatusBadRequest)
		return
	}
	device, err := h.engine.Store().DeviceFromName(r.Context(), name)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, device)
}

type resultsRequest struct {
	DeploymentID store.FlexID    `json:"deployment_id"`
	Data         json.RawMessage `json:"data"`
}

func (h *Handlers) handleResults(w http.ResponseWriter, r *http.Request) {
	var req resultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.Store().InsertResults(r.Context(), req.DeploymentID.Int64(), req.Data); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func pageParams(r *http.Request) (limit, page int) {
	limit, page = 10, 1
	if v, err := strconv.Atoi(r.URL.Query().Get("itemLimit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("currentPage")); err == nil && v > 0 {
		page = v
	}
	return limit, page
}
