package www

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"visionlink/deploy"
	"visionlink/store"
)

type deploymentRequest struct {
	DeploymentID   store.FlexID `json:"deployment_id"`
	DeploymentName string       `json:"deployment_name"`
	TargetID       store.FlexID `json:"target_id"`
	StatusValue    string       `json:"status_value"`
	ModelID        store.FlexID `json:"model_id"`
	CreationDate   string       `json:"creation_date"`
	StartDate      string       `json:"start_date"`
	ExpiryDate     string       `json:"expiry_date"`
	NodeID         store.FlexID `json:"node_id"`
	DeviceID       store.FlexID `json:"device_id"`
}

func (req *deploymentRequest) toDeployment() (deploy.Deployment, error) {
	creation, err := time.Parse(time.RFC3339, req.CreationDate)
	if err != nil {
		return deploy.Deployment{}, err
	}
	start, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return deploy.Deployment{}, err
	}
	expiry, err := time.Parse(time.RFC3339, req.ExpiryDate)
	if err != nil {
		return deploy.Deployment{}, err
	}
	return deploy.Deployment{
		DeploymentID: req.DeploymentID.Int64(),
		Name:         req.DeploymentName,
		TargetID:     req.TargetID.Int64(),
		Status:       req.StatusValue,
		ModelID:      req.ModelID.Int64(),
		CreationDate: creation,
		StartDate:    start,
		ExpiryDate:   expiry,
		NodeID:       req.NodeID.Int64(),
		DeviceID:     req.DeviceID.Int64(),
	}, nil
}

func (h *Handlers) handleDeploymentCreate(w http.ResponseWriter, r *http.Request) {
	var req deploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d, err := req.toDeployment()
	if err != nil {
		h.jsonError(w, "invalid date: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.Orchestrator().Create(r.Context(), d)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := "Created"
	if res.Pushed {
		status = "Created and Deployed"
	}
	h.jsonOK(w, map[string]any{"status": status, "deployment_id": res.DeploymentID})
}

func (h *Handlers) handleDeploymentSwitch(w http.ResponseWriter, r *http.Request) {
	var req deploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d, err := req.toDeployment()
	if err != nil {
		h.jsonError(w, "invalid date: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.Orchestrator().SwitchStatus(r.Context(), d)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if res.PushErr != nil {
		// The status change is already persisted; the failed node push still
		// surfaces as an error to the operator.
		h.jsonError(w, res.PushErr.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{"result": res.NewStatus, "deployment_id": res.DeploymentID})
}

func (h *Handlers) handleDeploymentsList(w http.ResponseWriter, r *http.Request) {
	limit, page := pageParams(r)
	deployments, err := h.engine.Store().LatestDeployments(r.Context(), limit, page)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, deployments)
}

func (h *Handlers) handleDeploymentGet(w http.ResponseWriter, r *http.Request) {
	deploymentID, err := strconv.ParseInt(chi.URLParam(r, "deployment_id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid deployment id", http.StatusBadRequest)
		return
	}
	deployment, err := h.engine.Store().Deployment(r.Context(), deploymentID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, deployment)
}
