// Package www is the HTTP surface of the server. Every route sits behind the
// CORS filter and the address gate; the registration endpoint is the one path
// the gate always admits.
package www

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"visionlink/engine"
	"visionlink/gate"
)

type Handlers struct {
	engine *engine.Engine
}

func NewRouter(eng *engine.Engine) http.Handler {
	h := &Handlers{engine: eng}
	cfg := eng.AppConfig()

	r := chi.NewRouter()
	r.Use(gate.CORS(cfg.Access.CORSOrigins))
	r.Use(gate.Access(cfg.Access.AllowedIPs, eng.NodeState()))

	r.Route("/nodes", func(r chi.Router) {
		r.Post("/connect", h.handleNodeConnect)
		r.Post("/connect/devices", h.handleNodeDevicesSync)
		r.Get("/", h.handleNodesList)
		r.Get("/deployments/active", h.handleActiveDeployments)
		r.Get("/id/{node_id}/devices/connected", h.handleNodeDevicesConnected)
		r.Post("/key/generate", h.handleKeyGenerate)
		r.Get("/key/{key_id}", h.handleKeyGet)
		r.Get("/device/name", h.handleDeviceFromName)
		r.Post("/results", h.handleResults)
	})

	r.Route("/deployments", func(r chi.Router) {
		r.Post("/create", h.handleDeploymentCreate)
		r.Post("/switch/status", h.handleDeploymentSwitch)
		r.Get("/", h.handleDeploymentsList)
		r.Get("/id/{deployment_id}", h.handleDeploymentGet)
	})

	r.Get("/healthz", h.handleHealth)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.jsonError(w, "Not Found", http.StatusNotFound)
	})

	return r
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
